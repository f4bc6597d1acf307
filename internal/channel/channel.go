// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package channel

import (
	"context"

	"github.com/goccy/go-json"
)

// Well-known document paths. Path segments are separated by '/'; the first
// segment of a collection member is the collection path.
const (
	// ConfigPath addresses the singleton configuration document.
	ConfigPath = "settings/config"

	// UsersPath addresses the tracked-user collection.
	UsersPath = "users"
)

// DocumentSnapshot is the full current value of one document, delivered on
// every change. Data is the complete JSON body; there are no deltas.
type DocumentSnapshot struct {
	// Path is the document address, e.g. "users/u1".
	Path string

	// Revision increases monotonically per document.
	Revision uint64

	// Data is the full JSON body of the document.
	Data []byte
}

// Decode unmarshals the snapshot body into v.
func (s DocumentSnapshot) Decode(v any) error {
	return json.Unmarshal(s.Data, v)
}

// DocumentEvent is one delivery on a document subscription: either a
// snapshot or a non-fatal channel error.
type DocumentEvent struct {
	Snapshot DocumentSnapshot
	Err      error
}

// CollectionEvent is one delivery on a collection subscription: the full
// set of member snapshots (sorted by path) or a non-fatal channel error.
type CollectionEvent struct {
	Snapshots []DocumentSnapshot
	Err       error
}

// DocumentSubscription is a cancellable stream of document snapshots.
type DocumentSubscription interface {
	// Events returns the delivery channel. It is closed after Close, or
	// when the subscription context is cancelled.
	Events() <-chan DocumentEvent

	// Close stops delivery. Idempotent; no events follow its return.
	Close()
}

// CollectionSubscription is a cancellable stream of collection snapshots.
type CollectionSubscription interface {
	Events() <-chan CollectionEvent
	Close()
}

// Channel is the remote document store seen by the rest of the system. Any
// push-capable document store can satisfy it.
type Channel interface {
	// SubscribeDocument streams snapshots of a single document. The current
	// value, if the document exists, is delivered first.
	SubscribeDocument(ctx context.Context, path string) (DocumentSubscription, error)

	// SubscribeCollection streams full-collection snapshots of every
	// document under the given collection path.
	SubscribeCollection(ctx context.Context, path string) (CollectionSubscription, error)

	// ReadDocument fetches the current document at path. The second return
	// is false if the document does not exist.
	ReadDocument(ctx context.Context, path string) (DocumentSnapshot, bool, error)

	// WriteDocument replaces the document at path with the JSON encoding
	// of doc. Errors are wrapped as *Error.
	WriteDocument(ctx context.Context, path string, doc any) error
}
