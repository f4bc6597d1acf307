// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package engine

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/itinera/itinera/internal/channel"
	"github.com/itinera/itinera/internal/logging"
	"github.com/itinera/itinera/internal/models"
	"github.com/itinera/itinera/internal/reconcile"
	"github.com/itinera/itinera/internal/session"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Output: io.Discard})
}

var engNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type publishedEvent struct {
	event   string
	payload any
}

type fakePub struct {
	events chan publishedEvent
}

func newFakePub() *fakePub {
	return &fakePub{events: make(chan publishedEvent, 64)}
}

func (p *fakePub) Publish(event string, payload any) {
	select {
	case p.events <- publishedEvent{event: event, payload: payload}:
	default:
	}
}

// next returns the next published event of the given type, discarding
// others.
func (p *fakePub) next(t *testing.T, event string) publishedEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-p.events:
			if ev.event == event {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", event)
		}
	}
}

func seedDoc() models.ConfigDocument {
	return models.ConfigDocument{
		TimeStart:             "08:00",
		TimeEnd:               "18:00",
		Interval:              "5",
		IsRecording:           true,
		Password:              "orienteering",
		SessionTimeoutMinutes: 30,
		UpdatedAt:             "2026-03-14T08:00:00Z",
	}
}

func startEngine(t *testing.T) (*Engine, *channel.Memory, *fakePub) {
	t.Helper()
	mem := channel.NewMemory()
	rec := reconcile.New(mem, func() time.Time { return engNow })
	gate := session.NewGate(session.NewMemoryStore(), func() time.Time { return engNow })
	pub := newFakePub()
	e := New(mem, rec, gate, pub)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = e.Serve(ctx)
	}()
	return e, mem, pub
}

func startSeededEngine(t *testing.T) (*Engine, *channel.Memory, *fakePub) {
	t.Helper()
	e, mem, pub := startEngine(t)
	if err := mem.WriteDocument(context.Background(), channel.ConfigPath, seedDoc()); err != nil {
		t.Fatalf("seeding config: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.WaitReady(ctx); err != nil {
		t.Fatalf("engine never became ready: %v", err)
	}
	return e, mem, pub
}

func TestEngine_AbsorbsConfigSnapshot(t *testing.T) {
	e, _, pub := startSeededEngine(t)

	view, err := e.Config(context.Background())
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if !view.Loaded {
		t.Fatal("view not loaded after snapshot")
	}
	if view.TimeStart != "08:00" || view.TimeEnd != "18:00" || view.Interval != "5" {
		t.Errorf("view fields = %+v", view.FormState)
	}
	if view.IsRecording != "true" {
		t.Errorf("view IsRecording = %q, want \"true\"", view.IsRecording)
	}
	if view.Dirty {
		t.Error("freshly absorbed view reports dirty")
	}

	ev := pub.next(t, EventConfig)
	if _, ok := ev.payload.(ConfigView); !ok {
		t.Errorf("config payload is %T, want ConfigView", ev.payload)
	}
}

func TestEngine_SetFieldPublishesDirtyView(t *testing.T) {
	e, _, pub := startSeededEngine(t)
	pub.next(t, EventConfig) // initial snapshot

	view, err := e.SetField(context.Background(), reconcile.FieldInterval, "10")
	if err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if view.Interval != "10" || !view.Dirty {
		t.Errorf("view after edit = %+v", view)
	}

	ev := pub.next(t, EventConfig)
	if got := ev.payload.(ConfigView); got.Interval != "10" {
		t.Errorf("published interval = %q, want 10", got.Interval)
	}
}

func TestEngine_CommitRoundTrip(t *testing.T) {
	e, _, _ := startSeededEngine(t)

	if _, err := e.SetField(context.Background(), reconcile.FieldInterval, "10"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	doc, err := e.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if doc.Interval != "10" || doc.Password != "orienteering" {
		t.Errorf("committed document = %+v", doc)
	}

	// The write echoes back through the subscription and clears the dirty
	// flag.
	deadline := time.After(2 * time.Second)
	for {
		view, err := e.Config(context.Background())
		if err != nil {
			t.Fatalf("Config: %v", err)
		}
		if !view.Dirty && view.Interval == "10" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("echoed commit never cleared dirty state: %+v", view)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestEngine_CommitRejectsInvalidEdit(t *testing.T) {
	e, _, _ := startSeededEngine(t)

	if _, err := e.SetField(context.Background(), reconcile.FieldTimeStart, "19:00"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if _, err := e.Commit(context.Background()); !errors.Is(err, reconcile.ErrInvalidRange) {
		t.Errorf("Commit error = %v, want ErrInvalidRange", err)
	}

	// The rejected edit stays staged.
	view, err := e.Config(context.Background())
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if view.TimeStart != "19:00" || !view.Dirty {
		t.Errorf("buffer disturbed by rejected commit: %+v", view)
	}
}

func TestEngine_TracksFollowCollection(t *testing.T) {
	e, mem, pub := startSeededEngine(t)

	user := models.TrackedUser{
		ID:   "u1",
		Name: "Ada",
		Location: []models.Position{
			{Lat: 52.1, Long: 4.3, Timestamp: 1000},
		},
	}
	if err := mem.WriteDocument(context.Background(), "users/u1", user); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}

	for {
		ev := pub.next(t, EventTracks)
		tracks := ev.payload.([]models.UserTrack)
		if len(tracks) == 0 {
			continue // initial empty snapshot
		}
		if tracks[0].ID != "u1" || tracks[0].Color != "yellow" {
			t.Errorf("track = %+v", tracks[0])
		}
		break
	}

	tracks, err := e.Tracks(context.Background())
	if err != nil {
		t.Fatalf("Tracks: %v", err)
	}
	if len(tracks) != 1 || tracks[0].Name != "Ada" {
		t.Errorf("Tracks = %+v", tracks)
	}
}

func TestEngine_ChannelErrorDegradesWithNotice(t *testing.T) {
	e, mem, pub := startSeededEngine(t)

	mem.FailSubscriptions(errors.New("kv hiccup"))
	pub.next(t, EventNotice)

	// Last-known state survives the error.
	view, err := e.Config(context.Background())
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if !view.Loaded || view.TimeStart != "08:00" {
		t.Errorf("state lost after channel error: %+v", view)
	}
}

func TestEngine_LoginThroughLoop(t *testing.T) {
	e, _, _ := startSeededEngine(t)
	ctx := context.Background()

	if _, err := e.Login(ctx, "wrong"); !errors.Is(err, session.ErrBadPassword) {
		t.Fatalf("Login error = %v, want ErrBadPassword", err)
	}

	s, err := e.Login(ctx, "orienteering")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	ok, err := e.Authenticate(ctx, s.Token)
	if err != nil || !ok {
		t.Fatalf("Authenticate = %v, %v", ok, err)
	}

	if err := e.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	ok, err = e.Authenticate(ctx, s.Token)
	if err != nil || ok {
		t.Fatalf("token valid after logout: %v, %v", ok, err)
	}
}

func TestEngine_CurrentConfigLockFree(t *testing.T) {
	e, _, _ := startSeededEngine(t)

	doc, ok := e.CurrentConfig()
	if !ok {
		t.Fatal("CurrentConfig not populated")
	}
	if doc.Interval != "5" || !doc.IsRecording {
		t.Errorf("CurrentConfig = %+v", doc)
	}
}
