// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package session

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/itinera/itinera/internal/models"
)

// sessionKey is the single key under which the operator session lives.
var sessionKey = []byte("itinera/session")

// BadgerStore persists the operator session in a Badger database so a
// process restart does not log the operator out.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an open Badger database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Load implements Store.
func (b *BadgerStore) Load(_ context.Context) (models.Session, bool, error) {
	var s models.Session
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, fmt.Errorf("loading session: %w", err)
	}
	return s, true, nil
}

// Save implements Store.
func (b *BadgerStore) Save(_ context.Context, s models.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey, data)
	})
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Clear implements Store.
func (b *BadgerStore) Clear(_ context.Context) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(sessionKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
