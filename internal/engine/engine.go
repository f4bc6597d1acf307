// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/itinera/itinera/internal/channel"
	"github.com/itinera/itinera/internal/logging"
	"github.com/itinera/itinera/internal/metrics"
	"github.com/itinera/itinera/internal/models"
	"github.com/itinera/itinera/internal/reconcile"
	"github.com/itinera/itinera/internal/session"
	"github.com/itinera/itinera/internal/track"
)

// Event types published to clients.
const (
	EventConfig = "config"
	EventTracks = "tracks"
	EventNotice = "notice"
)

// Publisher pushes an event to all connected clients. The websocket hub
// implements it.
type Publisher interface {
	Publish(event string, payload any)
}

// Notice is a transient operator-facing message, published when the engine
// degrades rather than fails.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ConfigView is the client-facing configuration state: the edit buffer
// merged with the non-editable remote fields. The password never leaves the
// engine.
type ConfigView struct {
	reconcile.FormState
	UpdatedAt string `json:"updatedAt"`
	Loaded    bool   `json:"loaded"`
}

// ErrStopped is returned by commands issued after the engine loop exits.
var ErrStopped = errors.New("engine stopped")

// Engine owns the reconciler, gate, and derived track state, and serializes
// all access to them through its loop. It implements suture.Service.
type Engine struct {
	ch   channel.Channel
	rec  *reconcile.Reconciler
	gate *session.Gate
	pub  Publisher

	cmds chan func(ctx context.Context)
	done chan struct{}

	// cfg mirrors the last absorbed configuration for lock-free readers on
	// the ingest path.
	cfg atomic.Pointer[models.ConfigDocument]

	tracks       []models.UserTrack
	bootstrapped bool
}

// New assembles an engine. pub may be nil in tests that do not observe
// published events.
func New(ch channel.Channel, rec *reconcile.Reconciler, gate *session.Gate, pub Publisher) *Engine {
	return &Engine{
		ch:   ch,
		rec:  rec,
		gate: gate,
		pub:  pub,
		cmds: make(chan func(ctx context.Context)),
		done: make(chan struct{}),
	}
}

// String implements suture's service naming.
func (e *Engine) String() string { return "engine" }

// Serve implements suture.Service. It subscribes to the configuration
// document and the tracked-user collection, then runs the loop until the
// context is cancelled. A closed subscription ends Serve with an error so
// the supervisor restarts it with fresh subscriptions.
func (e *Engine) Serve(ctx context.Context) error {
	if !e.bootstrapped {
		if err := e.gate.Bootstrap(ctx); err != nil {
			logging.Warn().Err(err).Msg("session bootstrap failed, starting logged out")
		}
		e.bootstrapped = true
	}

	docSub, err := e.ch.SubscribeDocument(ctx, channel.ConfigPath)
	if err != nil {
		return fmt.Errorf("subscribing to configuration: %w", err)
	}
	defer docSub.Close()

	colSub, err := e.ch.SubscribeCollection(ctx, channel.UsersPath)
	if err != nil {
		return fmt.Errorf("subscribing to tracked users: %w", err)
	}
	defer colSub.Close()

	logging.Info().Msg("engine loop started")
	for {
		select {
		case <-ctx.Done():
			e.closeDone()
			return ctx.Err()

		case ev, ok := <-docSub.Events():
			if !ok {
				return errors.New("configuration subscription closed")
			}
			e.handleDocEvent(ev)

		case ev, ok := <-colSub.Events():
			if !ok {
				return errors.New("tracked-user subscription closed")
			}
			e.handleColEvent(ev)

		case fn := <-e.cmds:
			fn(ctx)
		}
	}
}

// closeDone marks the engine permanently stopped. Only a cancelled context
// reaches it; subscription failures leave done open so commands block until
// the supervisor restarts Serve.
func (e *Engine) closeDone() {
	select {
	case <-e.done:
	default:
		close(e.done)
	}
}

func (e *Engine) handleDocEvent(ev channel.DocumentEvent) {
	if ev.Err != nil {
		metrics.ChannelErrors.WithLabelValues("config").Inc()
		logging.Warn().Err(ev.Err).Msg("configuration subscription degraded")
		e.publish(EventNotice, Notice{Level: "warning", Message: "live configuration updates interrupted"})
		return
	}

	var doc models.ConfigDocument
	if err := ev.Snapshot.Decode(&doc); err != nil {
		metrics.ChannelErrors.WithLabelValues("config").Inc()
		logging.Error().Err(err).Msg("undecodable configuration snapshot, keeping last known state")
		return
	}

	e.rec.AbsorbRemoteSnapshot(doc)
	e.gate.ApplyConfig(doc)
	e.cfg.Store(&doc)
	metrics.ConfigSnapshotsAbsorbed.Inc()
	e.publish(EventConfig, e.configView())
}

func (e *Engine) handleColEvent(ev channel.CollectionEvent) {
	if ev.Err != nil {
		metrics.ChannelErrors.WithLabelValues("users").Inc()
		logging.Warn().Err(ev.Err).Msg("tracked-user subscription degraded")
		e.publish(EventNotice, Notice{Level: "warning", Message: "live track updates interrupted"})
		return
	}

	users := make([]models.TrackedUser, 0, len(ev.Snapshots))
	for _, snap := range ev.Snapshots {
		var user models.TrackedUser
		if err := snap.Decode(&user); err != nil {
			logging.Warn().Err(err).Str("path", snap.Path).Msg("skipping undecodable tracked-user document")
			continue
		}
		users = append(users, user)
	}

	e.tracks = track.Rebuild(users)
	metrics.TrackRebuilds.Inc()
	e.publish(EventTracks, e.tracks)
}

func (e *Engine) publish(event string, payload any) {
	if e.pub != nil {
		e.pub.Publish(event, payload)
	}
}

func (e *Engine) configView() ConfigView {
	view := ConfigView{FormState: e.rec.Form()}
	if doc, ok := e.rec.Baseline(); ok {
		view.UpdatedAt = doc.UpdatedAt
		view.Loaded = true
	}
	return view
}

// do runs fn on the engine goroutine and waits for it to finish.
func (e *Engine) do(ctx context.Context, fn func(ctx context.Context)) error {
	ran := make(chan struct{})
	select {
	case e.cmds <- func(ctx context.Context) {
		fn(ctx)
		close(ran)
	}:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Login checks the password and opens the operator session.
func (e *Engine) Login(ctx context.Context, password string) (models.Session, error) {
	var (
		s   models.Session
		err error
	)
	doErr := e.do(ctx, func(ctx context.Context) {
		s, err = e.gate.Login(ctx, password)
	})
	if doErr != nil {
		return models.Session{}, doErr
	}
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("rejected").Inc()
		return models.Session{}, err
	}
	metrics.LoginAttempts.WithLabelValues("accepted").Inc()
	return s, nil
}

// Logout ends the operator session.
func (e *Engine) Logout(ctx context.Context) error {
	var err error
	if doErr := e.do(ctx, func(ctx context.Context) {
		err = e.gate.Logout(ctx)
	}); doErr != nil {
		return doErr
	}
	return err
}

// Authenticate reports whether token identifies the active session.
func (e *Engine) Authenticate(ctx context.Context, token string) (bool, error) {
	var ok bool
	if err := e.do(ctx, func(context.Context) {
		ok = e.gate.Authenticate(token)
	}); err != nil {
		return false, err
	}
	return ok, nil
}

// SessionInfo returns the active session, if any.
func (e *Engine) SessionInfo(ctx context.Context) (models.Session, bool, error) {
	var (
		s  models.Session
		ok bool
	)
	if err := e.do(ctx, func(context.Context) {
		s, ok = e.gate.Session()
	}); err != nil {
		return models.Session{}, false, err
	}
	return s, ok, nil
}

// Config returns the current client-facing configuration view.
func (e *Engine) Config(ctx context.Context) (ConfigView, error) {
	var view ConfigView
	if err := e.do(ctx, func(context.Context) {
		view = e.configView()
	}); err != nil {
		return ConfigView{}, err
	}
	return view, nil
}

// SetField stages a local edit and publishes the updated view.
func (e *Engine) SetField(ctx context.Context, field reconcile.Field, value string) (ConfigView, error) {
	var (
		view ConfigView
		err  error
	)
	if doErr := e.do(ctx, func(context.Context) {
		if err = e.rec.SetField(field, value); err != nil {
			return
		}
		view = e.configView()
		e.publish(EventConfig, view)
	}); doErr != nil {
		return ConfigView{}, doErr
	}
	return view, err
}

// Commit validates and writes the staged edits. The write happens on the
// engine goroutine, so at most one commit is in flight at a time.
func (e *Engine) Commit(ctx context.Context) (models.ConfigDocument, error) {
	var (
		doc models.ConfigDocument
		err error
	)
	if doErr := e.do(ctx, func(ctx context.Context) {
		doc, err = e.rec.Commit(ctx)
	}); doErr != nil {
		return models.ConfigDocument{}, doErr
	}
	switch {
	case err == nil:
		metrics.Commits.WithLabelValues("committed").Inc()
	case errors.Is(err, reconcile.ErrWriteFailed):
		metrics.Commits.WithLabelValues("write_failed").Inc()
	default:
		metrics.Commits.WithLabelValues("rejected").Inc()
	}
	return doc, err
}

// Tracks returns the current track set.
func (e *Engine) Tracks(ctx context.Context) ([]models.UserTrack, error) {
	var tracks []models.UserTrack
	if err := e.do(ctx, func(context.Context) {
		tracks = e.tracks
	}); err != nil {
		return nil, err
	}
	return tracks, nil
}

// CurrentConfig returns the last absorbed configuration without touching
// the engine loop. The ingest path reads it per report.
func (e *Engine) CurrentConfig() (models.ConfigDocument, bool) {
	doc := e.cfg.Load()
	if doc == nil {
		return models.ConfigDocument{}, false
	}
	return *doc, true
}

// WaitReady blocks until a configuration snapshot has been absorbed or the
// context expires. The readiness probe uses it.
func (e *Engine) WaitReady(ctx context.Context) error {
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, ok := e.CurrentConfig(); ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}
