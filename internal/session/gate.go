// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/itinera/itinera/internal/logging"
	"github.com/itinera/itinera/internal/models"
)

// Sentinel errors for the login path.
var (
	ErrBadPassword = errors.New("password does not match")
	ErrNoPassword  = errors.New("no password configured yet")
)

// defaultTimeout applies when the configuration document carries no
// session timeout.
const defaultTimeout = 60 * time.Minute

// Gate decides whether the operator surface is open. It holds at most one
// active session and mirrors it into the Store. Like the reconciler it is
// owned by the engine loop and is not safe for concurrent use.
type Gate struct {
	store Store
	now   func() time.Time

	password       string
	timeoutMinutes int
	hasConfig      bool

	session models.Session
	active  bool
}

// NewGate creates a gate backed by store. The clock is split out so tests
// can pin expiry times.
func NewGate(store Store, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{store: store, now: now}
}

// Bootstrap loads a persisted session. A session already expired at load
// time is cleared from the store rather than resumed.
func (g *Gate) Bootstrap(ctx context.Context) error {
	s, ok, err := g.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("bootstrapping session: %w", err)
	}
	if !ok {
		return nil
	}
	if s.IsExpired(g.now()) {
		logging.Info().Time("expiredAt", s.ExpiresAt).Msg("discarding expired persisted session")
		if err := g.store.Clear(ctx); err != nil {
			return fmt.Errorf("clearing expired session: %w", err)
		}
		return nil
	}
	g.session = s
	g.active = true
	logging.Info().
		Str("token", logging.SanitizeToken(s.Token)).
		Time("expiresAt", s.ExpiresAt).
		Msg("resumed persisted session")
	return nil
}

// ApplyConfig absorbs the password and timeout from a configuration
// snapshot. A password change does not end an active session.
func (g *Gate) ApplyConfig(doc models.ConfigDocument) {
	g.password = doc.Password
	g.timeoutMinutes = doc.SessionTimeoutMinutes
	g.hasConfig = true
}

// Login checks the candidate password against the configured one. The
// comparison is an exact, case-sensitive string match. On success the new
// session is persisted before it becomes active; a persistence failure
// leaves the gate closed.
func (g *Gate) Login(ctx context.Context, password string) (models.Session, error) {
	if !g.hasConfig || g.password == "" {
		return models.Session{}, ErrNoPassword
	}
	if password != g.password {
		logging.Warn().Msg("login rejected")
		return models.Session{}, ErrBadPassword
	}

	now := g.now()
	s := models.Session{
		Token:     uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(g.timeout()),
	}
	if err := g.store.Save(ctx, s); err != nil {
		return models.Session{}, fmt.Errorf("persisting session: %w", err)
	}
	g.session = s
	g.active = true
	logging.Info().Time("expiresAt", s.ExpiresAt).Msg("operator logged in")
	return s, nil
}

// Logout ends the active session and clears the store. Logging out while
// already logged out is a no-op.
func (g *Gate) Logout(ctx context.Context) error {
	if !g.active {
		return nil
	}
	if err := g.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	g.session = models.Session{}
	g.active = false
	logging.Info().Msg("operator logged out")
	return nil
}

// IsAuthenticated reports whether a session is active. Expiry is not
// re-checked here: a session that outlives its timeout mid-use stays valid
// until logout or restart.
func (g *Gate) IsAuthenticated() bool {
	return g.active
}

// Session returns the active session, if any.
func (g *Gate) Session() (models.Session, bool) {
	return g.session, g.active
}

// Authenticate reports whether token identifies the active session.
func (g *Gate) Authenticate(token string) bool {
	return g.active && token != "" && token == g.session.Token
}

func (g *Gate) timeout() time.Duration {
	if g.timeoutMinutes <= 0 {
		return defaultTimeout
	}
	return time.Duration(g.timeoutMinutes) * time.Minute
}
