// Package firestore stores profiles and ledger records in Cloud Firestore using
// the document layout users/{uid} and users/{uid}/vercel_projects/{id}.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gooji/deployer/internal/domain"
	"github.com/gooji/deployer/internal/repository"
)

const (
	usersCollection  = "users"
	ledgerCollection = "vercel_projects"
	fieldCreatedAt   = "createdAt"
	fieldUsername    = "username"
	fieldEmail       = "email"
	fieldName        = "name"
	fieldURL         = "url"
)

// Repository implements repository.Store on Firestore.
type Repository struct {
	client *firestore.Client
}

var _ repository.Store = (*Repository)(nil)

// New wraps an initialised Firestore client.
func New(client *firestore.Client) *Repository {
	return &Repository{client: client}
}

type profileDoc struct {
	Username  string    `firestore:"username"`
	Email     string    `firestore:"email"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type recordDoc struct {
	Name      string    `firestore:"name"`
	URL       string    `firestore:"url"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func (r *Repository) user(uid string) *firestore.DocumentRef {
	return r.client.Collection(usersCollection).Doc(uid)
}

func (r *Repository) ledger(uid string) *firestore.CollectionRef {
	return r.user(uid).Collection(ledgerCollection)
}

// CreateProfile writes the profile document with a server timestamp.
func (r *Repository) CreateProfile(ctx context.Context, profile domain.Profile) error {
	_, err := r.user(profile.UID).Set(ctx, map[string]any{
		fieldUsername:  profile.Username,
		fieldEmail:     profile.Email,
		fieldCreatedAt: firestore.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// GetProfile reads users/{uid}.
func (r *Repository) GetProfile(ctx context.Context, uid string) (*domain.Profile, error) {
	snap, err := r.user(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	var doc profileDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &domain.Profile{
		UID:       snap.Ref.ID,
		Username:  doc.Username,
		Email:     doc.Email,
		CreatedAt: doc.CreatedAt,
	}, nil
}

// UpdateProfile merges the given fields into an existing profile document.
func (r *Repository) UpdateProfile(ctx context.Context, uid string, update domain.ProfileUpdate) error {
	fields := update.Fields()
	if len(fields) == 0 {
		return nil
	}
	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	if _, err := r.user(uid).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return repository.ErrNotFound
		}
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// PutRecord upserts users/{uid}/vercel_projects/{id}.
func (r *Repository) PutRecord(ctx context.Context, record domain.DeploymentRecord) error {
	_, err := r.ledger(record.UserID).Doc(record.ID).Set(ctx, map[string]any{
		fieldName:      record.Name,
		fieldURL:       record.URL,
		fieldCreatedAt: firestore.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("store deployment record: %w", err)
	}
	return nil
}

// GetRecord reads one ledger document.
func (r *Repository) GetRecord(ctx context.Context, uid, recordID string) (*domain.DeploymentRecord, error) {
	snap, err := r.ledger(uid).Doc(recordID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get deployment record: %w", err)
	}
	return decodeRecord(uid, snap)
}

// ListRecords streams the user's ledger ordered by createdAt descending.
func (r *Repository) ListRecords(ctx context.Context, uid string) ([]domain.DeploymentRecord, error) {
	iter := r.ledger(uid).OrderBy(fieldCreatedAt, firestore.Desc).Documents(ctx)
	defer iter.Stop()

	records := make([]domain.DeploymentRecord, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list deployment records: %w", err)
		}
		record, err := decodeRecord(uid, snap)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// DeleteRecord removes a ledger document. Firestore deletes of missing documents succeed.
func (r *Repository) DeleteRecord(ctx context.Context, uid, recordID string) error {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return nil
	}
	if _, err := r.ledger(uid).Doc(recordID).Delete(ctx); err != nil {
		return fmt.Errorf("delete deployment record: %w", err)
	}
	return nil
}

// Ping issues a minimal read to confirm the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	iter := r.client.Collection(usersCollection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

// Close releases the client.
func (r *Repository) Close() error {
	return r.client.Close()
}

func decodeRecord(uid string, snap *firestore.DocumentSnapshot) (*domain.DeploymentRecord, error) {
	var doc recordDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode deployment record %s: %w", snap.Ref.ID, err)
	}
	return &domain.DeploymentRecord{
		UserID:    uid,
		ID:        snap.Ref.ID,
		Name:      doc.Name,
		URL:       doc.URL,
		CreatedAt: doc.CreatedAt,
	}, nil
}
