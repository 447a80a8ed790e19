// Package identity fronts the identity provider: account creation, bearer
// token verification and the application profile kept alongside each account.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gooji/deployer/internal/domain"
	"github.com/gooji/deployer/internal/repository"
	"github.com/gooji/deployer/internal/tokencache"
	"github.com/gooji/deployer/pkg/jwt"
)

const compensationTimeout = 10 * time.Second

// Accounts is the identity provider's account administration API.
type Accounts interface {
	CreateAccount(ctx context.Context, email, password, displayName string) (string, error)
	DeleteAccount(ctx context.Context, uid string) error
}

// TokenVerifier validates ID tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*jwt.Claims, error)
}

// Gateway coordinates the identity provider with the profile store.
type Gateway struct {
	accounts Accounts
	verifier TokenVerifier
	profiles repository.ProfileRepository
	cache    tokencache.Cache
	cacheTTL time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithTokenCache remembers verified tokens for at most ttl.
func WithTokenCache(cache tokencache.Cache, ttl time.Duration) Option {
	return func(g *Gateway) {
		if cache != nil && ttl > 0 {
			g.cache = cache
			g.cacheTTL = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// New constructs a Gateway.
func New(accounts Accounts, verifier TokenVerifier, profiles repository.ProfileRepository, logger *slog.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		accounts: accounts,
		verifier: verifier,
		profiles: profiles,
		cache:    tokencache.Nop{},
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CreateAccount registers the account with the provider and then writes the
// profile. A failed profile write deletes the provider account again.
func (g *Gateway) CreateAccount(ctx context.Context, email, password, username string) (string, error) {
	uid, err := g.accounts.CreateAccount(ctx, email, password, username)
	if err != nil {
		return "", err
	}

	profile := domain.Profile{UID: uid, Username: username, Email: email}
	if err := g.profiles.CreateProfile(ctx, profile); err != nil {
		g.compensate(ctx, uid)
		return "", fmt.Errorf("store profile: %w", err)
	}
	return uid, nil
}

func (g *Gateway) compensate(ctx context.Context, uid string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := g.accounts.DeleteAccount(ctx, uid); err != nil {
		g.logger.Error("orphaned identity account", "uid", uid, "error", err)
		return
	}
	g.logger.Warn("identity account rolled back", "uid", uid)
}

// VerifyToken returns the uid a bearer token was issued to.
func (g *Gateway) VerifyToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.ErrInvalidToken
	}
	if uid, ok := g.cache.Get(ctx, token); ok {
		return uid, nil
	}

	claims, err := g.verifier.Verify(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	uid := claims.UID()

	if g.cacheTTL > 0 {
		ttl := g.cacheTTL
		if claims.ExpiresAt != nil {
			if remaining := claims.ExpiresAt.Sub(g.now()); remaining < ttl {
				ttl = remaining
			}
		}
		g.cache.Set(ctx, token, uid, ttl)
	}
	return uid, nil
}

// GetProfile reads the stored profile.
func (g *Gateway) GetProfile(ctx context.Context, uid string) (*domain.Profile, error) {
	profile, err := g.profiles.GetProfile(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return profile, nil
}

// UpdateProfile merges fields into the stored profile. The provider's own user
// record is left untouched.
func (g *Gateway) UpdateProfile(ctx context.Context, uid string, update domain.ProfileUpdate) error {
	if update.Empty() {
		return nil
	}
	if err := g.profiles.UpdateProfile(ctx, uid, update); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}
