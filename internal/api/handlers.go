// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/itinera/itinera/internal/engine"
	"github.com/itinera/itinera/internal/logging"
	"github.com/itinera/itinera/internal/reconcile"
	"github.com/itinera/itinera/internal/session"
	ws "github.com/itinera/itinera/internal/websocket"
)

// LoginRequest is the login payload.
type LoginRequest struct {
	Password string `json:"password"`
}

// SessionResponse describes the operator session to the client. The raw
// session token never appears; the signed cookie is the only carrier.
type SessionResponse struct {
	Authenticated bool      `json:"authenticated"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
}

// Login checks the password and sets the session cookie.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	sess, err := s.core.Login(r.Context(), req.Password)
	switch {
	case errors.Is(err, session.ErrBadPassword), errors.Is(err, session.ErrNoPassword):
		writeError(w, http.StatusUnauthorized, "password does not match")
		return
	case err != nil:
		logging.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "login unavailable")
		return
	}

	if err := s.setSessionCookie(w, sess); err != nil {
		logging.Error().Err(err).Msg("signing session cookie")
		writeError(w, http.StatusInternalServerError, "login unavailable")
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Authenticated: true, ExpiresAt: sess.ExpiresAt})
}

// Logout ends the session and clears the cookie.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.core.Logout(r.Context()); err != nil {
		logging.Error().Err(err).Msg("logout failed")
		writeError(w, http.StatusInternalServerError, "logout unavailable")
		return
	}
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, SessionResponse{Authenticated: false})
}

// SessionInfo reports whether the caller holds the live session.
func (s *Server) SessionInfo(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionFromRequest(r)
	if sid == "" {
		writeJSON(w, http.StatusOK, SessionResponse{Authenticated: false})
		return
	}
	ok, err := s.core.Authenticate(r.Context(), sid)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "session check unavailable")
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, SessionResponse{Authenticated: false})
		return
	}
	sess, _, err := s.core.SessionInfo(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "session check unavailable")
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Authenticated: true, ExpiresAt: sess.ExpiresAt})
}

// GetConfig returns the current configuration view.
func (s *Server) GetConfig(w http.ResponseWriter, r *http.Request) {
	view, err := s.core.Config(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "configuration unavailable")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// PatchFieldsRequest stages edits to the editable fields. Absent fields are
// untouched.
type PatchFieldsRequest struct {
	Fields map[string]string `json:"fields"`
}

// PatchFields stages local edits without committing them.
func (s *Server) PatchFields(w http.ResponseWriter, r *http.Request) {
	var req PatchFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(req.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "no fields given")
		return
	}

	var view engine.ConfigView
	for name, value := range req.Fields {
		v, err := s.core.SetField(r.Context(), reconcile.Field(name), value)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown field "+name)
			return
		}
		view = v
	}
	writeJSON(w, http.StatusOK, view)
}

// CommitResponse reports a successful commit. The password stays server
// side.
type CommitResponse struct {
	TimeStart   string `json:"timeStart"`
	TimeEnd     string `json:"timeEnd"`
	Interval    string `json:"interval"`
	IsRecording bool   `json:"isRecording"`
	UpdatedAt   string `json:"updatedAt"`
}

// Commit validates the staged edits and writes them through. Overlapping
// commits get 409; the client retries after the first one resolves.
func (s *Server) Commit(w http.ResponseWriter, r *http.Request) {
	if !s.commitBusy.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a commit is already in flight")
		return
	}
	defer s.commitBusy.Store(false)

	doc, err := s.core.Commit(r.Context())
	switch {
	case errors.Is(err, reconcile.ErrMissingField),
		errors.Is(err, reconcile.ErrInvalidRange),
		errors.Is(err, reconcile.ErrInvalidValue):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, reconcile.ErrWriteFailed):
		writeError(w, http.StatusBadGateway, "configuration store rejected the write")
		return
	case errors.Is(err, reconcile.ErrNoBaseline):
		writeError(w, http.StatusServiceUnavailable, "configuration not loaded yet")
		return
	case err != nil:
		logging.Error().Err(err).Msg("commit failed")
		writeError(w, http.StatusInternalServerError, "commit unavailable")
		return
	}

	writeJSON(w, http.StatusOK, CommitResponse{
		TimeStart:   doc.TimeStart,
		TimeEnd:     doc.TimeEnd,
		Interval:    doc.Interval,
		IsRecording: doc.IsRecording,
		UpdatedAt:   doc.UpdatedAt,
	})
}

// Tracks returns the current track set.
func (s *Server) Tracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.core.Tracks(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "tracks unavailable")
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS middleware and the
	// session cookie; the upgrade itself accepts any origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WebSocket upgrades the connection and attaches it to the hub.
func (s *Server) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	ws.NewClient(s.hub, conn).Start()
}

// HealthLive reports process liveness.
func (s *Server) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady reports readiness: the engine must have absorbed a
// configuration snapshot.
func (s *Server) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.core.WaitReady(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "configuration not loaded yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
