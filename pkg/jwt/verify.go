package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const (
	issuerPrefix  = "https://securetoken.google.com/"
	maxSubjectLen = 128
	defaultLeeway = 5 * time.Second
)

var (
	// ErrMalformed reports a token that could not be decoded.
	ErrMalformed = errors.New("jwt: malformed token")
	// ErrExpired reports a token past its expiry.
	ErrExpired = errors.New("jwt: token expired")
	// ErrUnverifiable reports a signature, key or claim check failure.
	ErrUnverifiable = errors.New("jwt: token could not be verified")
)

// Claims defines the payload of a Firebase ID token.
type Claims struct {
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	AuthTime int64  `json:"auth_time,omitempty"`
	jwtlib.RegisteredClaims
}

// UID returns the verified subject.
func (c *Claims) UID() string {
	return c.Subject
}

// Verifier checks RS256 ID tokens issued for a Firebase project.
type Verifier struct {
	projectID string
	keys      KeySource
	leeway    time.Duration
	now       func() time.Time
}

// VerifierOption customises a Verifier.
type VerifierOption func(*Verifier)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithLeeway sets the tolerated clock skew.
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d >= 0 {
			v.leeway = d
		}
	}
}

// NewVerifier returns a Verifier for projectID using keys.
func NewVerifier(projectID string, keys KeySource, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		projectID: strings.TrimSpace(projectID),
		keys:      keys,
		leeway:    defaultLeeway,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Issuer returns the issuer expected in tokens for the project.
func (v *Verifier) Issuer() string {
	return issuerPrefix + v.projectID
}

// Verify decodes token, checks its signature against the current signing keys and
// validates audience, issuer, expiry, issue time, auth time and subject.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" || strings.Count(token, ".") != 2 {
		return nil, ErrMalformed
	}
	if v.projectID == "" {
		return nil, fmt.Errorf("%w: project id not configured", ErrUnverifiable)
	}
	keyFunc := func(t *jwtlib.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid header")
		}
		keys, err := v.keys.Keys(ctx)
		if err != nil {
			return nil, err
		}
		key, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown signing key %q", kid)
		}
		return key, nil
	}
	parsed, err := jwtlib.ParseWithClaims(token, &Claims{}, keyFunc,
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodRS256.Name}),
		jwtlib.WithAudience(v.projectID),
		jwtlib.WithIssuer(v.Issuer()),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithIssuedAt(),
		jwtlib.WithLeeway(v.leeway),
		jwtlib.WithTimeFunc(v.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwtlib.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		case errors.Is(err, jwtlib.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrUnverifiable, err)
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrUnverifiable
	}
	if claims.Subject == "" || len(claims.Subject) > maxSubjectLen {
		return nil, fmt.Errorf("%w: invalid subject", ErrUnverifiable)
	}
	if claims.AuthTime > 0 && time.Unix(claims.AuthTime, 0).After(v.now().Add(v.leeway)) {
		return nil, fmt.Errorf("%w: auth_time in the future", ErrUnverifiable)
	}
	return claims, nil
}
