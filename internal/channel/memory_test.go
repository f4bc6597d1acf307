// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package channel

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/itinera/itinera/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Output: io.Discard})
}

type testDoc struct {
	Value string `json:"value"`
}

func recvDoc(t *testing.T, sub DocumentSubscription) DocumentEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for document event")
	}
	return DocumentEvent{}
}

func recvCol(t *testing.T, sub CollectionSubscription) CollectionEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for collection event")
	}
	return CollectionEvent{}
}

func TestMemory_DocumentSubscription(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.WriteDocument(ctx, ConfigPath, testDoc{Value: "v1"}); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}

	sub, err := m.SubscribeDocument(ctx, ConfigPath)
	if err != nil {
		t.Fatalf("SubscribeDocument: %v", err)
	}
	defer sub.Close()

	ev := recvDoc(t, sub)
	var doc testDoc
	if err := ev.Snapshot.Decode(&doc); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Value != "v1" {
		t.Errorf("initial snapshot value = %q, want v1", doc.Value)
	}
	if ev.Snapshot.Revision != 1 {
		t.Errorf("initial revision = %d, want 1", ev.Snapshot.Revision)
	}

	if err := m.WriteDocument(ctx, ConfigPath, testDoc{Value: "v2"}); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	ev = recvDoc(t, sub)
	if err := ev.Snapshot.Decode(&doc); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Value != "v2" || ev.Snapshot.Revision != 2 {
		t.Errorf("update snapshot = %q rev %d, want v2 rev 2", doc.Value, ev.Snapshot.Revision)
	}
}

func TestMemory_DocumentOrdering(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	sub, err := m.SubscribeDocument(ctx, ConfigPath)
	if err != nil {
		t.Fatalf("SubscribeDocument: %v", err)
	}
	defer sub.Close()

	for _, v := range []string{"a", "b", "c"} {
		if err := m.WriteDocument(ctx, ConfigPath, testDoc{Value: v}); err != nil {
			t.Fatalf("WriteDocument(%s): %v", v, err)
		}
	}

	// Snapshots must arrive in apply order.
	for i, want := range []string{"a", "b", "c"} {
		var doc testDoc
		ev := recvDoc(t, sub)
		if err := ev.Snapshot.Decode(&doc); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if doc.Value != want {
			t.Errorf("event %d value = %q, want %q", i, doc.Value, want)
		}
	}
}

func TestMemory_CollectionSubscription(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	sub, err := m.SubscribeCollection(ctx, UsersPath)
	if err != nil {
		t.Fatalf("SubscribeCollection: %v", err)
	}
	defer sub.Close()

	// Initial snapshot of an empty collection is delivered, not withheld.
	ev := recvCol(t, sub)
	if len(ev.Snapshots) != 0 {
		t.Fatalf("initial collection has %d members, want 0", len(ev.Snapshots))
	}

	if err := m.WriteDocument(ctx, "users/u2", testDoc{Value: "beta"}); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	if err := m.WriteDocument(ctx, "users/u1", testDoc{Value: "alpha"}); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}

	ev = recvCol(t, sub) // after u2
	if len(ev.Snapshots) != 1 || ev.Snapshots[0].Path != "users/u2" {
		t.Fatalf("after first write: %+v", ev.Snapshots)
	}

	ev = recvCol(t, sub) // after u1: full body set, sorted by path
	if len(ev.Snapshots) != 2 {
		t.Fatalf("after second write: %d members, want 2", len(ev.Snapshots))
	}
	if ev.Snapshots[0].Path != "users/u1" || ev.Snapshots[1].Path != "users/u2" {
		t.Errorf("collection order = %s, %s; want users/u1, users/u2",
			ev.Snapshots[0].Path, ev.Snapshots[1].Path)
	}
}

func TestMemory_CollectionMembership(t *testing.T) {
	tests := []struct {
		name    string
		docPath string
		colPath string
		want    bool
	}{
		{"direct member", "users/u1", "users", true},
		{"unrelated document", "settings/config", "users", false},
		{"nested path", "users/u1/extra", "users", false},
		{"prefix but not member", "users2/u1", "users", false},
		{"empty member name", "users/", "users", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := memberOf(tt.docPath, tt.colPath); got != tt.want {
				t.Errorf("memberOf(%q, %q) = %v, want %v", tt.docPath, tt.colPath, got, tt.want)
			}
		})
	}
}

func TestMemory_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	sub, err := m.SubscribeDocument(ctx, ConfigPath)
	if err != nil {
		t.Fatalf("SubscribeDocument: %v", err)
	}

	sub.Close()
	sub.Close() // must not panic

	// Writes after close must not reach the subscription.
	if err := m.WriteDocument(ctx, ConfigPath, testDoc{Value: "late"}); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("received event after Close")
	}
}

func TestMemory_ContextCancelStopsDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMemory()

	sub, err := m.SubscribeCollection(ctx, UsersPath)
	if err != nil {
		t.Fatalf("SubscribeCollection: %v", err)
	}
	recvCol(t, sub) // initial

	cancel()

	// Drain until the events channel closes; cancellation must close it.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel not closed after context cancel")
		}
	}
}

func TestMemory_FailSubscriptions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	sub, err := m.SubscribeDocument(ctx, ConfigPath)
	if err != nil {
		t.Fatalf("SubscribeDocument: %v", err)
	}
	defer sub.Close()

	cause := errors.New("store unreachable")
	m.FailSubscriptions(cause)

	ev := recvDoc(t, sub)
	if ev.Err == nil {
		t.Fatal("expected error event")
	}
	var cerr *Error
	if !errors.As(ev.Err, &cerr) {
		t.Fatalf("error event is %T, want *Error", ev.Err)
	}
	if !errors.Is(ev.Err, cause) {
		t.Error("error event does not wrap the injected cause")
	}

	// The subscription survives the error: a later write still arrives.
	if err := m.WriteDocument(ctx, ConfigPath, testDoc{Value: "after"}); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	ev = recvDoc(t, sub)
	if ev.Err != nil {
		t.Fatalf("unexpected error event: %v", ev.Err)
	}
}

func TestPathKeyRoundTrip(t *testing.T) {
	for _, path := range []string{"settings/config", "users/u1", "users"} {
		if got := keyPath(pathKey(path)); got != path {
			t.Errorf("keyPath(pathKey(%q)) = %q", path, got)
		}
	}
}
