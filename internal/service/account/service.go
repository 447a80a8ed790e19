package account

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/gooji/deployer/internal/domain"
	"github.com/gooji/deployer/pkg/crypto"
	"github.com/gooji/deployer/pkg/validate"
)

// Identity is the slice of the identity gateway the account workflows need.
type Identity interface {
	CreateAccount(ctx context.Context, email, password, username string) (string, error)
	VerifyToken(ctx context.Context, token string) (string, error)
	GetProfile(ctx context.Context, uid string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, uid string, update domain.ProfileUpdate) error
}

// Service handles registration, authorization and profile workflows.
type Service struct {
	identity  Identity
	validator *validate.Validator
	logger    *slog.Logger
}

// New constructs a Service.
func New(identity Identity, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{identity: identity, validator: validate.New(), logger: logger}
}

type registerInput struct {
	Email string `json:"email" validate:"required,email"`
}

// Register creates an account for email with a generated username and password.
// The credentials are returned exactly once and never logged.
func (s Service) Register(ctx context.Context, email string) (domain.Credentials, error) {
	input := registerInput{Email: strings.TrimSpace(email)}
	if err := s.validator.Struct(input); err != nil {
		return domain.Credentials{}, asValidation(err)
	}

	username, err := crypto.GenerateUsername()
	if err != nil {
		return domain.Credentials{}, err
	}
	password, err := crypto.GeneratePassword()
	if err != nil {
		return domain.Credentials{}, err
	}

	uid, err := s.identity.CreateAccount(ctx, input.Email, password, username)
	if err != nil {
		s.logger.Warn("registration failed", "error", err)
		return domain.Credentials{}, err
	}
	s.logger.Info("account registered", "user_id", uid, "username", username)
	return domain.Credentials{UID: uid, Username: username, Password: password}, nil
}

// Authorize resolves a bearer token to a uid.
func (s Service) Authorize(ctx context.Context, token string) (string, error) {
	return s.identity.VerifyToken(ctx, token)
}

// Profile returns the caller's profile.
func (s Service) Profile(ctx context.Context, uid string) (*domain.Profile, error) {
	return s.identity.GetProfile(ctx, uid)
}

// UpdateProfile applies a partial update. Only username and email may change;
// any other key is rejected before the store is touched.
func (s Service) UpdateProfile(ctx context.Context, uid string, fields map[string]json.RawMessage) error {
	update, err := s.parseUpdate(fields)
	if err != nil {
		return err
	}
	if err := s.identity.UpdateProfile(ctx, uid, update); err != nil {
		return err
	}
	s.logger.Info("profile updated", "user_id", uid)
	return nil
}

func (s Service) parseUpdate(fields map[string]json.RawMessage) (domain.ProfileUpdate, error) {
	var update domain.ProfileUpdate
	if len(fields) == 0 {
		return update, domain.NewValidationError("", "no profile fields to update")
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch key {
		case "username":
			value, err := s.stringField(key, fields[key], "required,username")
			if err != nil {
				return update, err
			}
			update.Username = &value
		case "email":
			value, err := s.stringField(key, fields[key], "required,email")
			if err != nil {
				return update, err
			}
			update.Email = &value
		default:
			return update, domain.NewValidationError(key, "field cannot be updated")
		}
	}
	return update, nil
}

func (s Service) stringField(key string, raw json.RawMessage, tag string) (string, error) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", domain.NewValidationError(key, "must be a string")
	}
	value = strings.TrimSpace(value)
	if err := s.validator.Var(key, value, tag); err != nil {
		return "", asValidation(err)
	}
	return value, nil
}

func asValidation(err error) error {
	var fe *validate.FieldError
	if errors.As(err, &fe) {
		return domain.NewValidationError(fe.Field, fe.Message)
	}
	return domain.NewValidationError("", err.Error())
}
