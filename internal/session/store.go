// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package session

import (
	"context"
	"sync"

	"github.com/itinera/itinera/internal/models"
)

// Store persists the single operator session across restarts.
type Store interface {
	// Load returns the persisted session, if any.
	Load(ctx context.Context) (models.Session, bool, error)
	// Save replaces the persisted session.
	Save(ctx context.Context, s models.Session) error
	// Clear removes the persisted session. Clearing an empty store is not
	// an error.
	Clear(ctx context.Context) error
}

// MemoryStore is an in-memory Store for tests and dev mode.
type MemoryStore struct {
	mu      sync.Mutex
	session models.Session
	present bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) (models.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.present, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	m.present = true
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = models.Session{}
	m.present = false
	return nil
}
