package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"
	"math/big"
)

// Alphabets used for generated credentials.
const (
	LowerAlphanumeric = "abcdefghijklmnopqrstuvwxyz0123456789"
	Alphanumeric      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

const (
	usernamePrefix    = "user_"
	usernameSuffixLen = 8
	passwordLen       = 12
)

// Reader is the entropy source. Tests may swap it.
var Reader io.Reader = rand.Reader

// RandomString draws n characters uniformly from alphabet using a cryptographically secure source.
func RandomString(alphabet string, n int) (string, error) {
	if alphabet == "" {
		return "", errors.New("crypto: empty alphabet")
	}
	if n < 0 {
		return "", errors.New("crypto: negative length")
	}
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}

// GenerateUsername returns "user_" followed by 8 lowercase alphanumerics.
func GenerateUsername() (string, error) {
	suffix, err := RandomString(LowerAlphanumeric, usernameSuffixLen)
	if err != nil {
		return "", err
	}
	return usernamePrefix + suffix, nil
}

// GeneratePassword returns a 12 character mixed-case alphanumeric password.
func GeneratePassword() (string, error) {
	return RandomString(Alphanumeric, passwordLen)
}

// SecretsEqual compares two secrets in constant time. An empty expected secret never matches.
func SecretsEqual(expected, provided string) bool {
	if expected == "" {
		return false
	}
	if len(expected) != len(provided) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
