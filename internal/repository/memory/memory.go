// Package memory keeps profiles and ledger records in process memory. It backs
// local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gooji/deployer/internal/domain"
	"github.com/gooji/deployer/internal/repository"
)

// Store implements repository.Store in memory.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
	records  map[string]map[string]entry
	seq      uint64
	now      func() time.Time
}

type entry struct {
	record domain.DeploymentRecord
	seq    uint64
}

var _ repository.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		profiles: make(map[string]domain.Profile),
		records:  make(map[string]map[string]entry),
		now:      time.Now,
	}
}

// WithClock replaces the time source used for server-assigned timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// CreateProfile stores a profile, stamping its creation time.
func (s *Store) CreateProfile(_ context.Context, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile.CreatedAt = s.now().UTC()
	s.profiles[profile.UID] = profile
	return nil
}

// GetProfile returns the profile for uid.
func (s *Store) GetProfile(_ context.Context, uid string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[uid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &profile, nil
}

// UpdateProfile merges update into an existing profile.
func (s *Store) UpdateProfile(_ context.Context, uid string, update domain.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[uid]
	if !ok {
		return repository.ErrNotFound
	}
	if update.Username != nil {
		profile.Username = *update.Username
	}
	if update.Email != nil {
		profile.Email = *update.Email
	}
	s.profiles[uid] = profile
	return nil
}

// PutRecord upserts a ledger record.
func (s *Store) PutRecord(_ context.Context, record domain.DeploymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned, ok := s.records[record.UserID]
	if !ok {
		owned = make(map[string]entry)
		s.records[record.UserID] = owned
	}
	s.seq++
	record.CreatedAt = s.now().UTC()
	owned[record.ID] = entry{record: record, seq: s.seq}
	return nil
}

// GetRecord returns one record owned by uid.
func (s *Store) GetRecord(_ context.Context, uid, recordID string) (*domain.DeploymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[uid][recordID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	record := e.record
	return &record, nil
}

// ListRecords returns records for uid ordered by creation time, newest first.
func (s *Store) ListRecords(_ context.Context, uid string) ([]domain.DeploymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owned := s.records[uid]
	entries := make([]entry, 0, len(owned))
	for _, e := range owned {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.record.CreatedAt.Equal(b.record.CreatedAt) {
			return a.record.CreatedAt.After(b.record.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]domain.DeploymentRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.record)
	}
	return out, nil
}

// DeleteRecord removes a record; missing records are ignored.
func (s *Store) DeleteRecord(_ context.Context, uid, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owned, ok := s.records[uid]; ok {
		delete(owned, strings.TrimSpace(recordID))
	}
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }
