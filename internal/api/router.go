// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itinera/itinera/internal/engine"
	"github.com/itinera/itinera/internal/middleware"
	"github.com/itinera/itinera/internal/models"
	"github.com/itinera/itinera/internal/reconcile"
	ws "github.com/itinera/itinera/internal/websocket"
)

// Core is the engine surface the handlers need.
type Core interface {
	Login(ctx context.Context, password string) (models.Session, error)
	Logout(ctx context.Context) error
	Authenticate(ctx context.Context, token string) (bool, error)
	SessionInfo(ctx context.Context) (models.Session, bool, error)
	Config(ctx context.Context) (engine.ConfigView, error)
	SetField(ctx context.Context, field reconcile.Field, value string) (engine.ConfigView, error)
	Commit(ctx context.Context) (models.ConfigDocument, error)
	Tracks(ctx context.Context) ([]models.UserTrack, error)
	WaitReady(ctx context.Context) error
}

// Config tunes the HTTP surface.
type Config struct {
	CORSOrigins    []string
	LoginRateLimit int // attempts per IP per minute
	JWTSecret      []byte
}

// Server holds the handler dependencies.
type Server struct {
	core      Core
	hub       *ws.Hub
	jwtSecret []byte
	cfg       Config

	// commitBusy rejects overlapping commits with 409 instead of queueing
	// them behind one another on the engine loop.
	commitBusy atomic.Bool
}

// NewServer creates the handler set.
func NewServer(core Core, hub *ws.Hub, cfg Config) *Server {
	return &Server{
		core:      core,
		hub:       hub,
		jwtSecret: cfg.JWTSecret,
		cfg:       cfg,
	}
}

// Routes assembles the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestMetrics)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", s.HealthLive)
		r.Get("/ready", s.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		loginLimit := s.cfg.LoginRateLimit
		if loginLimit <= 0 {
			loginLimit = 10
		}
		r.With(httprate.LimitByIP(loginLimit, time.Minute)).Post("/login", s.Login)
		r.Post("/logout", s.Logout)
		r.Get("/session", s.SessionInfo)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/config", s.GetConfig)
		r.Patch("/config/fields", s.PatchFields)
		r.Post("/config/commit", s.Commit)
		r.Get("/tracks", s.Tracks)
		r.Get("/ws", s.WebSocket)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
