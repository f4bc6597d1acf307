// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package channel

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/itinera/itinera/internal/logging"
)

// DefaultBucket is the KV bucket holding all Itinera documents.
const DefaultBucket = "itinera"

// NATSKV backs the Channel interface with a JetStream Key-Value bucket.
// KV watchers give exactly the push semantics the core needs: the latest
// value per key on attach, then every put in apply order.
type NATSKV struct {
	kv jetstream.KeyValue
}

// NewNATSKV wraps an existing KV bucket handle.
func NewNATSKV(kv jetstream.KeyValue) *NATSKV {
	return &NATSKV{kv: kv}
}

// EnsureBucket opens the named bucket, creating it if absent.
func EnsureBucket(ctx context.Context, js jetstream.JetStream, bucket string) (*NATSKV, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "itinera documents",
			History:     1,
		})
	}
	if err != nil {
		return nil, wrapErr("subscribe", bucket, err)
	}
	return &NATSKV{kv: kv}, nil
}

// pathKey maps a document path to a KV key. KV keys use '.' as the
// hierarchy separator; document paths use '/'.
func pathKey(path string) string {
	return strings.ReplaceAll(path, "/", ".")
}

// keyPath is the inverse of pathKey.
func keyPath(key string) string {
	return strings.ReplaceAll(key, ".", "/")
}

// SubscribeDocument implements Channel.
func (n *NATSKV) SubscribeDocument(ctx context.Context, path string) (DocumentSubscription, error) {
	watcher, err := n.kv.Watch(ctx, pathKey(path))
	if err != nil {
		return nil, wrapErr("watch", path, err)
	}

	sub := &natsDocSub{
		watcher: watcher,
		events:  make(chan DocumentEvent, subscriptionBuffer),
	}
	go sub.run()
	return sub, nil
}

// SubscribeCollection implements Channel. The watcher's initial replay is
// folded into one full-collection snapshot; afterwards every put or delete
// of a member re-emits the whole collection, sorted by path.
func (n *NATSKV) SubscribeCollection(ctx context.Context, path string) (CollectionSubscription, error) {
	watcher, err := n.kv.Watch(ctx, pathKey(path)+".>")
	if err != nil {
		return nil, wrapErr("watch", path, err)
	}

	sub := &natsColSub{
		watcher: watcher,
		events:  make(chan CollectionEvent, subscriptionBuffer),
	}
	go sub.run()
	return sub, nil
}

// ReadDocument implements Channel.
func (n *NATSKV) ReadDocument(ctx context.Context, path string) (DocumentSnapshot, bool, error) {
	entry, err := n.kv.Get(ctx, pathKey(path))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return DocumentSnapshot{}, false, nil
	}
	if err != nil {
		return DocumentSnapshot{}, false, wrapErr("read", path, err)
	}
	return DocumentSnapshot{
		Path:     path,
		Revision: entry.Revision(),
		Data:     entry.Value(),
	}, true, nil
}

// WriteDocument implements Channel.
func (n *NATSKV) WriteDocument(ctx context.Context, path string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return wrapErr("write", path, err)
	}
	if _, err := n.kv.Put(ctx, pathKey(path), data); err != nil {
		return wrapErr("write", path, err)
	}
	return nil
}

type natsDocSub struct {
	watcher jetstream.KeyWatcher
	events  chan DocumentEvent
	once    sync.Once
}

func (s *natsDocSub) Events() <-chan DocumentEvent { return s.events }

func (s *natsDocSub) Close() {
	s.once.Do(func() {
		if err := s.watcher.Stop(); err != nil {
			logging.Debug().Err(err).Msg("stopping document watcher")
		}
	})
}

// run pumps watcher updates into the event channel until the watcher is
// stopped. The nil entry marking the end of the initial replay and delete
// operations are skipped; the config document is never deleted.
func (s *natsDocSub) run() {
	defer close(s.events)
	for entry := range s.watcher.Updates() {
		if entry == nil || entry.Operation() != jetstream.KeyValuePut {
			continue
		}
		s.events <- DocumentEvent{Snapshot: DocumentSnapshot{
			Path:     keyPath(entry.Key()),
			Revision: entry.Revision(),
			Data:     entry.Value(),
		}}
	}
}

type natsColSub struct {
	watcher jetstream.KeyWatcher
	events  chan CollectionEvent
	once    sync.Once
}

func (s *natsColSub) Events() <-chan CollectionEvent { return s.events }

func (s *natsColSub) Close() {
	s.once.Do(func() {
		if err := s.watcher.Stop(); err != nil {
			logging.Debug().Err(err).Msg("stopping collection watcher")
		}
	})
}

func (s *natsColSub) run() {
	defer close(s.events)

	members := make(map[string]DocumentSnapshot)
	replaying := true

	for entry := range s.watcher.Updates() {
		if entry == nil {
			// End of initial replay: emit the first full snapshot, which
			// may legitimately be empty.
			replaying = false
			s.events <- CollectionEvent{Snapshots: collect(members)}
			continue
		}

		path := keyPath(entry.Key())
		switch entry.Operation() {
		case jetstream.KeyValuePut:
			members[path] = DocumentSnapshot{
				Path:     path,
				Revision: entry.Revision(),
				Data:     entry.Value(),
			}
		case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
			delete(members, path)
		}
		if !replaying {
			s.events <- CollectionEvent{Snapshots: collect(members)}
		}
	}
}

// collect sorts the member snapshots by path for deterministic delivery.
func collect(members map[string]DocumentSnapshot) []DocumentSnapshot {
	snaps := make([]DocumentSnapshot, 0, len(members))
	for _, snap := range members {
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Path < snaps[j].Path })
	return snaps
}
