package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gooji/deployer/internal/domain"
	"github.com/gooji/deployer/internal/repository"
)

// DB is the subset of *pgxpool.Pool the repository relies on.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool DB
}

// New constructs a Repository.
func New(pool DB) *Repository {
	return &Repository{pool: pool}
}

var _ repository.Store = (*Repository)(nil)

// CreateProfile inserts a profile, replacing any previous row for the uid.
func (r *Repository) CreateProfile(ctx context.Context, profile domain.Profile) error {
	const query = `INSERT INTO profiles (uid, username, email, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (uid) DO UPDATE SET username = EXCLUDED.username, email = EXCLUDED.email, created_at = now()`
	if _, err := r.pool.Exec(ctx, query, profile.UID, profile.Username, profile.Email); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// GetProfile fetches a profile by uid.
func (r *Repository) GetProfile(ctx context.Context, uid string) (*domain.Profile, error) {
	const query = `SELECT uid, username, email, created_at FROM profiles WHERE uid = $1`
	row := r.pool.QueryRow(ctx, query, uid)
	var p domain.Profile
	if err := row.Scan(&p.UID, &p.Username, &p.Email, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpdateProfile overwrites the non-nil fields of an existing profile.
func (r *Repository) UpdateProfile(ctx context.Context, uid string, update domain.ProfileUpdate) error {
	if update.Empty() {
		return nil
	}
	const query = `UPDATE profiles
		SET username = COALESCE($2, username), email = COALESCE($3, email)
		WHERE uid = $1`
	tag, err := r.pool.Exec(ctx, query, uid, update.Username, update.Email)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// PutRecord upserts a ledger row and stamps it with the database clock.
func (r *Repository) PutRecord(ctx context.Context, record domain.DeploymentRecord) error {
	const query = `INSERT INTO deployment_records (uid, record_id, name, url, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (uid, record_id) DO UPDATE SET name = EXCLUDED.name, url = EXCLUDED.url, created_at = now()`
	if _, err := r.pool.Exec(ctx, query, record.UserID, record.ID, record.Name, record.URL); err != nil {
		return fmt.Errorf("store deployment record: %w", err)
	}
	return nil
}

// GetRecord returns one ledger row owned by uid.
func (r *Repository) GetRecord(ctx context.Context, uid, recordID string) (*domain.DeploymentRecord, error) {
	const query = `SELECT uid, record_id, name, url, created_at FROM deployment_records
		WHERE uid = $1 AND record_id = $2`
	row := r.pool.QueryRow(ctx, query, uid, recordID)
	var rec domain.DeploymentRecord
	if err := row.Scan(&rec.UserID, &rec.ID, &rec.Name, &rec.URL, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListRecords returns the user's ledger newest first.
func (r *Repository) ListRecords(ctx context.Context, uid string) ([]domain.DeploymentRecord, error) {
	const query = `SELECT uid, record_id, name, url, created_at FROM deployment_records
		WHERE uid = $1
		ORDER BY created_at DESC, record_id DESC`
	rows, err := r.pool.Query(ctx, query, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.DeploymentRecord, 0)
	for rows.Next() {
		var rec domain.DeploymentRecord
		if err := rows.Scan(&rec.UserID, &rec.ID, &rec.Name, &rec.URL, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteRecord removes a ledger row; deleting a missing row is not an error.
func (r *Repository) DeleteRecord(ctx context.Context, uid, recordID string) error {
	const query = `DELETE FROM deployment_records WHERE uid = $1 AND record_id = $2`
	if _, err := r.pool.Exec(ctx, query, uid, recordID); err != nil {
		return fmt.Errorf("delete deployment record: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases pooled connections.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}
