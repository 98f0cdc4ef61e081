// Package cache keeps per-user dashboard preferences between connections.
package cache

import (
	"context"
	"sync"

	"cobitis_web/internal/models"
)

// PreferenceStore loads and saves the range/sensor selection of a user.
// Load reports false when nothing was stored.
type PreferenceStore interface {
	Load(ctx context.Context, userID int) (models.Preferences, bool, error)
	Save(ctx context.Context, userID int, p models.Preferences) error
}

// MemoryStore is a process-local PreferenceStore used when Redis is not configured.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[int]models.Preferences
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: make(map[int]models.Preferences)}
}

func (m *MemoryStore) Load(_ context.Context, userID int) (models.Preferences, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prefs[userID]
	return p, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, userID int, p models.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[userID] = p
	return nil
}
