package crypto

import (
	"bytes"
	"regexp"
	"testing"
)

var (
	usernamePattern = regexp.MustCompile(`^user_[a-z0-9]{8}$`)
	passwordPattern = regexp.MustCompile(`^[A-Za-z0-9]{12}$`)
)

func TestGenerateUsernameMatchesPattern(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		name, err := GenerateUsername()
		if err != nil {
			t.Fatalf("generate username: %v", err)
		}
		if !usernamePattern.MatchString(name) {
			t.Fatalf("username %q does not match pattern", name)
		}
		seen[name] = struct{}{}
	}
	if len(seen) < 190 {
		t.Fatalf("expected mostly unique usernames, got %d distinct", len(seen))
	}
}

func TestGeneratePasswordMatchesPattern(t *testing.T) {
	for i := 0; i < 200; i++ {
		pw, err := GeneratePassword()
		if err != nil {
			t.Fatalf("generate password: %v", err)
		}
		if !passwordPattern.MatchString(pw) {
			t.Fatalf("password %q does not match pattern", pw)
		}
	}
}

func TestRandomStringPropagatesReaderFailure(t *testing.T) {
	prev := Reader
	Reader = bytes.NewReader(nil)
	t.Cleanup(func() { Reader = prev })

	if _, err := RandomString(Alphanumeric, 4); err == nil {
		t.Fatalf("expected error from exhausted reader")
	}
}

func TestRandomStringRejectsEmptyAlphabet(t *testing.T) {
	if _, err := RandomString("", 3); err == nil {
		t.Fatalf("expected error for empty alphabet")
	}
}

func TestSecretsEqual(t *testing.T) {
	if !SecretsEqual("s3cret", "s3cret") {
		t.Fatalf("expected equal secrets to match")
	}
	if SecretsEqual("s3cret", "s3cre") || SecretsEqual("s3cret", "S3cret") {
		t.Fatalf("expected mismatched secrets to fail")
	}
	if SecretsEqual("", "") {
		t.Fatalf("empty configured secret must never match")
	}
}
