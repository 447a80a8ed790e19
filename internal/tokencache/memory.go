package tokencache

import (
	"context"
	"sync"
	"time"
)

const cleanupInterval = time.Minute

type entry struct {
	uid       string
	expiresAt time.Time
}

// Memory is a process-local cache with per-entry expiry.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemory starts a cache that sweeps expired entries every minute until Close.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Get returns the uid for an unexpired token.
func (m *Memory) Get(_ context.Context, token string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, found := m.entries[Key(token)]
	if !found || !m.now().Before(e.expiresAt) {
		return "", false
	}
	return e.uid, true
}

// Set stores uid for ttl. Non-positive ttls are ignored.
func (m *Memory) Set(_ context.Context, token, uid string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[Key(token)] = entry{uid: uid, expiresAt: m.now().Add(ttl)}
}

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the sweeper.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

func (m *Memory) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, key)
		}
	}
}

func (m *Memory) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stop:
			return
		}
	}
}
