package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/gooji/deployer/internal/domain"
	"github.com/gooji/deployer/internal/repository/memory"
	"github.com/gooji/deployer/internal/tokencache"
	"github.com/gooji/deployer/pkg/jwt"
	"github.com/gooji/deployer/pkg/logger"
)

type fakeAccounts struct {
	uid        string
	createErr  error
	deleteErr  error
	created    int
	deletedUID string
}

func (f *fakeAccounts) CreateAccount(_ context.Context, _, _, _ string) (string, error) {
	f.created++
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.uid, nil
}

func (f *fakeAccounts) DeleteAccount(_ context.Context, uid string) error {
	f.deletedUID = uid
	return f.deleteErr
}

type failingProfiles struct {
	*memory.Store
	err error
}

func (f failingProfiles) CreateProfile(context.Context, domain.Profile) error {
	return f.err
}

type fakeVerifier struct {
	claims *jwt.Claims
	err    error
	calls  int
}

func (f *fakeVerifier) Verify(context.Context, string) (*jwt.Claims, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

func TestCreateAccountWritesProfile(t *testing.T) {
	store := memory.New()
	accounts := &fakeAccounts{uid: "uid-1"}
	gw := New(accounts, &fakeVerifier{}, store, logger.Discard())

	uid, err := gw.CreateAccount(context.Background(), "a@b.co", "Secret123456", "user_abcd1234")
	if err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	if uid != "uid-1" {
		t.Fatalf("expected uid-1, got %q", uid)
	}

	profile, err := gw.GetProfile(context.Background(), uid)
	if err != nil {
		t.Fatalf("GetProfile returned error: %v", err)
	}
	if profile.Username != "user_abcd1234" || profile.Email != "a@b.co" {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestCreateAccountDuplicateEmailWritesNothing(t *testing.T) {
	store := memory.New()
	accounts := &fakeAccounts{uid: "uid-1", createErr: domain.ErrDuplicateEmail}
	gw := New(accounts, &fakeVerifier{}, store, logger.Discard())

	_, err := gw.CreateAccount(context.Background(), "a@b.co", "pw", "user_abcd1234")
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if _, err := store.GetProfile(context.Background(), "uid-1"); err == nil {
		t.Fatalf("expected no profile to be written")
	}
}

func TestCreateAccountRollsBackOnProfileFailure(t *testing.T) {
	accounts := &fakeAccounts{uid: "uid-9"}
	profiles := failingProfiles{Store: memory.New(), err: errors.New("firestore unavailable")}
	gw := New(accounts, &fakeVerifier{}, profiles, logger.Discard())

	_, err := gw.CreateAccount(context.Background(), "a@b.co", "pw", "user_abcd1234")
	if err == nil {
		t.Fatal("expected error")
	}
	if accounts.deletedUID != "uid-9" {
		t.Fatalf("expected compensation delete for uid-9, got %q", accounts.deletedUID)
	}
}

func TestCreateAccountCompensatesAfterCancellation(t *testing.T) {
	accounts := &fakeAccounts{uid: "uid-9", deleteErr: errors.New("boom")}
	profiles := failingProfiles{Store: memory.New(), err: context.Canceled}
	gw := New(accounts, &fakeVerifier{}, profiles, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gw.CreateAccount(ctx, "a@b.co", "pw", "user_abcd1234"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the profile error to surface, got %v", err)
	}
	if accounts.deletedUID != "uid-9" {
		t.Fatalf("expected compensation attempt, got %q", accounts.deletedUID)
	}
}

func TestVerifyTokenMapsFailures(t *testing.T) {
	for _, cause := range []error{jwt.ErrMalformed, jwt.ErrExpired, jwt.ErrUnverifiable} {
		gw := New(&fakeAccounts{}, &fakeVerifier{err: cause}, memory.New(), logger.Discard())
		_, err := gw.VerifyToken(context.Background(), "a.b.c")
		if !errors.Is(err, domain.ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %v, got %v", cause, err)
		}
		if !errors.Is(err, cause) {
			t.Fatalf("expected cause %v to be preserved, got %v", cause, err)
		}
	}
}

func TestVerifyTokenRejectsEmpty(t *testing.T) {
	verifier := &fakeVerifier{}
	gw := New(&fakeAccounts{}, verifier, memory.New(), logger.Discard())
	if _, err := gw.VerifyToken(context.Background(), "  "); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if verifier.calls != 0 {
		t.Fatalf("verifier should not be called for an empty token")
	}
}

func TestVerifyTokenUsesCache(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	claims := &jwt.Claims{RegisteredClaims: jwtlib.RegisteredClaims{
		Subject:   "uid-1",
		ExpiresAt: jwtlib.NewNumericDate(now.Add(time.Hour)),
	}}
	verifier := &fakeVerifier{claims: claims}
	cache := tokencache.NewMemory()
	defer cache.Close()

	gw := New(&fakeAccounts{}, verifier, memory.New(), logger.Discard(),
		WithTokenCache(cache, 5*time.Minute),
		WithClock(func() time.Time { return now }),
	)

	for i := 0; i < 3; i++ {
		uid, err := gw.VerifyToken(context.Background(), "a.b.c")
		if err != nil {
			t.Fatalf("VerifyToken returned error: %v", err)
		}
		if uid != "uid-1" {
			t.Fatalf("expected uid-1, got %q", uid)
		}
	}
	if verifier.calls != 1 {
		t.Fatalf("expected a single verification, got %d", verifier.calls)
	}
}

func TestVerifyTokenSkipsCacheForExpiringToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	claims := &jwt.Claims{RegisteredClaims: jwtlib.RegisteredClaims{
		Subject:   "uid-1",
		ExpiresAt: jwtlib.NewNumericDate(now),
	}}
	cache := tokencache.NewMemory()
	defer cache.Close()

	gw := New(&fakeAccounts{}, &fakeVerifier{claims: claims}, memory.New(), logger.Discard(),
		WithTokenCache(cache, 5*time.Minute),
		WithClock(func() time.Time { return now }),
	)
	if _, err := gw.VerifyToken(context.Background(), "a.b.c"); err != nil {
		t.Fatalf("VerifyToken returned error: %v", err)
	}
	if cache.Len() != 0 {
		t.Fatalf("expected nothing cached, got %d entries", cache.Len())
	}
}

func TestProfileNotFound(t *testing.T) {
	gw := New(&fakeAccounts{}, &fakeVerifier{}, memory.New(), logger.Discard())
	if _, err := gw.GetProfile(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	name := "x"
	if err := gw.UpdateProfile(context.Background(), "ghost", domain.ProfileUpdate{Username: &name}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientOptions(t *testing.T) {
	if opts := ClientOptions(""); opts != nil {
		t.Fatalf("expected no options, got %d", len(opts))
	}
	if opts := ClientOptions(`{"type":"service_account"}`); len(opts) != 1 {
		t.Fatalf("expected one option for inline json")
	}
	if opts := ClientOptions("/etc/creds.json"); len(opts) != 1 {
		t.Fatalf("expected one option for a file path")
	}
}
