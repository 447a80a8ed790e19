package identity

import (
	"context"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/gooji/deployer/internal/domain"
)

const providerFirebase = "firebase"

// ClientOptions turns a credential setting into Google client options. Inline
// JSON and file paths are both accepted; empty means application defaults.
func ClientOptions(credentials string) []option.ClientOption {
	credentials = strings.TrimSpace(credentials)
	if credentials == "" {
		return nil
	}
	if strings.HasPrefix(credentials, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credentials))}
	}
	return []option.ClientOption{option.WithCredentialsFile(credentials)}
}

// NewApp initialises the Firebase Admin SDK for projectID.
func NewApp(ctx context.Context, projectID, credentials string) (*firebase.App, error) {
	return firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, ClientOptions(credentials)...)
}

// FirebaseAccounts implements Accounts with Firebase Authentication.
type FirebaseAccounts struct {
	client *auth.Client
}

// NewFirebaseAccounts wraps an admin auth client.
func NewFirebaseAccounts(client *auth.Client) *FirebaseAccounts {
	return &FirebaseAccounts{client: client}
}

// CreateAccount creates an email/password user.
func (f *FirebaseAccounts) CreateAccount(ctx context.Context, email, password, displayName string) (string, error) {
	params := (&auth.UserToCreate{}).
		Email(email).
		Password(password).
		DisplayName(displayName)

	user, err := f.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return "", domain.ErrDuplicateEmail
		}
		return "", &domain.ProviderError{Provider: providerFirebase, Message: err.Error(), Err: err}
	}
	return user.UID, nil
}

// DeleteAccount removes a user; an already missing user counts as deleted.
func (f *FirebaseAccounts) DeleteAccount(ctx context.Context, uid string) error {
	if err := f.client.DeleteUser(ctx, uid); err != nil && !auth.IsUserNotFound(err) {
		return &domain.ProviderError{Provider: providerFirebase, Message: err.Error(), Err: err}
	}
	return nil
}
