package repository

import (
	"context"

	"github.com/gooji/deployer/internal/domain"
)

// ProfileRepository persists user profiles keyed by identity-provider uid.
type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile domain.Profile) error
	GetProfile(ctx context.Context, uid string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, uid string, update domain.ProfileUpdate) error
}

// LedgerRepository records which deployments belong to which user. Records only
// exist nested under their owner.
type LedgerRepository interface {
	// PutRecord upserts a record and assigns its creation time on the server side.
	PutRecord(ctx context.Context, record domain.DeploymentRecord) error
	GetRecord(ctx context.Context, uid, recordID string) (*domain.DeploymentRecord, error)
	// ListRecords returns the user's records, most recent first.
	ListRecords(ctx context.Context, uid string) ([]domain.DeploymentRecord, error)
	// DeleteRecord succeeds whether or not the record existed.
	DeleteRecord(ctx context.Context, uid, recordID string) error
}

// Store bundles both repositories with lifecycle hooks.
type Store interface {
	ProfileRepository
	LedgerRepository
	Ping(ctx context.Context) error
	Close() error
}
