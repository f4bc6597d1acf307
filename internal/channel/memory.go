// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package channel

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/itinera/itinera/internal/logging"
)

// subscriptionBuffer bounds how many undelivered events a slow subscriber
// may accumulate before new deliveries are dropped.
const subscriptionBuffer = 64

// Memory is an in-process Channel for tests and dev mode. Deliveries are
// made synchronously under the store lock, so a write observed by one
// subscriber has been delivered (or dropped) to all of them.
type Memory struct {
	mu      sync.Mutex
	docs    map[string]DocumentSnapshot
	docSubs map[string]map[*memoryDocSub]struct{}
	colSubs map[string]map[*memoryColSub]struct{}
}

// NewMemory creates an empty in-memory channel.
func NewMemory() *Memory {
	return &Memory{
		docs:    make(map[string]DocumentSnapshot),
		docSubs: make(map[string]map[*memoryDocSub]struct{}),
		colSubs: make(map[string]map[*memoryColSub]struct{}),
	}
}

// SubscribeDocument implements Channel. The document's current value, if it
// exists, is delivered before any subsequent update.
func (m *Memory) SubscribeDocument(ctx context.Context, path string) (DocumentSubscription, error) {
	sub := &memoryDocSub{
		owner:  m,
		path:   path,
		events: make(chan DocumentEvent, subscriptionBuffer),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if m.docSubs[path] == nil {
		m.docSubs[path] = make(map[*memoryDocSub]struct{})
	}
	m.docSubs[path][sub] = struct{}{}
	if snap, ok := m.docs[path]; ok {
		sub.events <- DocumentEvent{Snapshot: snap}
	}
	m.mu.Unlock()

	go closeOnDone(ctx, sub.done, sub.Close)
	return sub, nil
}

// SubscribeCollection implements Channel. The full current collection
// (possibly empty) is delivered before any subsequent update.
func (m *Memory) SubscribeCollection(ctx context.Context, path string) (CollectionSubscription, error) {
	sub := &memoryColSub{
		owner:  m,
		path:   path,
		events: make(chan CollectionEvent, subscriptionBuffer),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if m.colSubs[path] == nil {
		m.colSubs[path] = make(map[*memoryColSub]struct{})
	}
	m.colSubs[path][sub] = struct{}{}
	sub.events <- CollectionEvent{Snapshots: m.collectionLocked(path)}
	m.mu.Unlock()

	go closeOnDone(ctx, sub.done, sub.Close)
	return sub, nil
}

// ReadDocument implements Channel.
func (m *Memory) ReadDocument(ctx context.Context, path string) (DocumentSnapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return DocumentSnapshot{}, false, wrapErr("read", path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.docs[path]
	return snap, ok, nil
}

// WriteDocument implements Channel. The new snapshot fans out to document
// subscribers of the path and collection subscribers of its parent.
func (m *Memory) WriteDocument(ctx context.Context, path string, doc any) error {
	if err := ctx.Err(); err != nil {
		return wrapErr("write", path, err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return wrapErr("write", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := DocumentSnapshot{
		Path:     path,
		Revision: m.docs[path].Revision + 1,
		Data:     data,
	}
	m.docs[path] = snap

	for sub := range m.docSubs[path] {
		select {
		case sub.events <- DocumentEvent{Snapshot: snap}:
		default:
			logging.Warn().Str("path", path).Msg("document subscriber buffer full, dropping snapshot")
		}
	}
	for colPath, subs := range m.colSubs {
		if !memberOf(path, colPath) {
			continue
		}
		snaps := m.collectionLocked(colPath)
		for sub := range subs {
			select {
			case sub.events <- CollectionEvent{Snapshots: snaps}:
			default:
				logging.Warn().Str("collection", colPath).Msg("collection subscriber buffer full, dropping snapshot")
			}
		}
	}
	return nil
}

// FailSubscriptions injects a non-fatal error event into every open
// subscription. Tests use this to exercise degraded-channel handling.
func (m *Memory) FailSubscriptions(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, subs := range m.docSubs {
		for sub := range subs {
			select {
			case sub.events <- DocumentEvent{Err: wrapErr("subscribe", path, err)}:
			default:
			}
		}
	}
	for path, subs := range m.colSubs {
		for sub := range subs {
			select {
			case sub.events <- CollectionEvent{Err: wrapErr("subscribe", path, err)}:
			default:
			}
		}
	}
}

// collectionLocked snapshots every document under the collection path,
// sorted by path for deterministic delivery order. Caller holds mu.
func (m *Memory) collectionLocked(colPath string) []DocumentSnapshot {
	var snaps []DocumentSnapshot
	for path, snap := range m.docs {
		if memberOf(path, colPath) {
			snaps = append(snaps, snap)
		}
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Path < snaps[j].Path })
	return snaps
}

// memberOf reports whether docPath is a direct member of colPath.
func memberOf(docPath, colPath string) bool {
	rest, ok := strings.CutPrefix(docPath, colPath+"/")
	return ok && rest != "" && !strings.Contains(rest, "/")
}

// closeOnDone invokes closeFn when the context is cancelled, and returns
// without action once the subscription is closed explicitly.
func closeOnDone(ctx context.Context, done <-chan struct{}, closeFn func()) {
	select {
	case <-ctx.Done():
		closeFn()
	case <-done:
	}
}

type memoryDocSub struct {
	owner  *Memory
	path   string
	events chan DocumentEvent
	done   chan struct{}
	once   sync.Once
}

func (s *memoryDocSub) Events() <-chan DocumentEvent { return s.events }

// Close implements DocumentSubscription. Safe to call more than once; no
// event is delivered after it returns.
func (s *memoryDocSub) Close() {
	s.once.Do(func() {
		s.owner.mu.Lock()
		delete(s.owner.docSubs[s.path], s)
		close(s.events)
		s.owner.mu.Unlock()
		close(s.done)
	})
}

type memoryColSub struct {
	owner  *Memory
	path   string
	events chan CollectionEvent
	done   chan struct{}
	once   sync.Once
}

func (s *memoryColSub) Events() <-chan CollectionEvent { return s.events }

func (s *memoryColSub) Close() {
	s.once.Do(func() {
		s.owner.mu.Lock()
		delete(s.owner.colSubs[s.path], s)
		close(s.events)
		s.owner.mu.Unlock()
		close(s.done)
	})
}
