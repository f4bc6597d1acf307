// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

// Package main is the entry point for the Itinera server.
//
// Itinera shows live location trails for a group of tracked users and lets
// an operator adjust the recording configuration remotely. The server
// initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered defaults, YAML file, environment
//  2. NATS: embedded or external JetStream, key-value document bucket
//  3. Session store: Badger, on disk or in memory
//  4. Engine: the single loop owning reconciliation, gating and tracks
//  5. Ingest: Watermill pipeline consuming device position reports
//  6. HTTP server: REST API, websocket feed, Prometheus metrics
//
// Everything long-running is placed under a suture supervisor tree and
// restarts independently on failure. Shutdown is graceful on SIGINT and
// SIGTERM: the HTTP listener drains, the ingest router closes its
// subscriptions, and the NATS connection and session store close last.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/itinera/itinera/internal/api"
	"github.com/itinera/itinera/internal/channel"
	"github.com/itinera/itinera/internal/config"
	"github.com/itinera/itinera/internal/engine"
	"github.com/itinera/itinera/internal/ingest"
	"github.com/itinera/itinera/internal/logging"
	"github.com/itinera/itinera/internal/reconcile"
	"github.com/itinera/itinera/internal/session"
	"github.com/itinera/itinera/internal/supervisor"
	ws "github.com/itinera/itinera/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "itinera: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", listenAddr(cfg)).
		Bool("embedded_nats", cfg.NATS.EmbeddedServer).
		Bool("ingest", cfg.Ingest.Enabled).
		Msg("starting itinera")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("startup failed")
	}
	logging.Info().Msg("stopped")
}

//nolint:gocyclo // startup wiring is inherently sequential
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// NATS carries both the document store and the ingest stream.
	natsURL := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		srv, err := channel.NewEmbeddedServer(channel.ServerConfig{
			Host:     "127.0.0.1",
			Port:     4222,
			StoreDir: cfg.NATS.StoreDir,
		})
		if err != nil {
			return fmt.Errorf("starting embedded nats: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("embedded nats shutdown")
			}
		}()
		natsURL = srv.ClientURL()
		logging.Info().Str("url", natsURL).Msg("embedded nats server started")
	}

	nc, err := natsgo.Connect(natsURL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("creating jetstream context: %w", err)
	}

	kv, err := channel.EnsureBucket(ctx, js, cfg.NATS.Bucket)
	if err != nil {
		return fmt.Errorf("ensuring document bucket: %w", err)
	}
	ch := channel.NewBreaker(kv)
	logging.Info().Str("bucket", cfg.NATS.Bucket).Msg("document channel ready")

	// Session persistence. Without a store path the session lives only as
	// long as the process.
	badgerOpts := badger.DefaultOptions(cfg.Session.StorePath).WithLogger(nil)
	if cfg.Session.StorePath == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
		logging.Warn().Msg("session store path empty, sessions will not survive restarts")
	}
	sessionDB, err := badger.Open(badgerOpts)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer func() {
		if err := sessionDB.Close(); err != nil {
			logging.Error().Err(err).Msg("closing session store")
		}
	}()

	gate := session.NewGate(session.NewBadgerStore(sessionDB), time.Now)
	rec := reconcile.New(ch, time.Now)
	hub := ws.NewHub()
	eng := engine.New(ch, rec, gate, hub)

	jwtSecret, err := loadJWTSecret(cfg)
	if err != nil {
		return err
	}

	apiServer := api.NewServer(eng, hub, api.Config{
		CORSOrigins:    cfg.Server.CORSOrigins,
		LoginRateLimit: cfg.Server.LoginRateLimit,
		JWTSecret:      jwtSecret,
	})
	httpSrv := &http.Server{
		Addr:         listenAddr(cfg),
		Handler:      apiServer.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(
		slog.New(logging.NewSlogHandler()),
		supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout},
	)
	tree.AddCoreService(hub)
	tree.AddCoreService(eng)

	if cfg.Ingest.Enabled {
		pipeline, err := buildIngest(cfg, natsURL, ch, eng)
		if err != nil {
			return err
		}
		tree.AddCoreService(pipeline)
		logging.Info().Str("queue_group", cfg.Ingest.QueueGroup).Msg("ingest pipeline enabled")
	}

	tree.AddAPIService(supervisor.NewHTTPService(httpSrv, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service missed the shutdown timeout")
		}
	}
	return nil
}

// buildIngest assembles the position report pipeline over JetStream.
func buildIngest(cfg *config.Config, natsURL string, ch channel.Channel, eng *engine.Engine) (*ingest.Pipeline, error) {
	wmLogger := logging.NewWatermillAdapter()

	natsCfg := ingest.DefaultNATSConfig(natsURL)
	natsCfg.QueueGroup = cfg.Ingest.QueueGroup
	natsCfg.DurableName = cfg.Ingest.Durable

	sub, err := ingest.NewNATSSubscriber(natsCfg, wmLogger)
	if err != nil {
		return nil, err
	}
	poisonPub, err := ingest.NewNATSPublisher(natsCfg, wmLogger)
	if err != nil {
		return nil, err
	}

	routerCfg := ingest.DefaultRouterConfig()
	routerCfg.RetryMaxRetries = cfg.Ingest.RetryMaxRetries
	if cfg.Ingest.RetryInitialInterval > 0 {
		routerCfg.RetryInitialInterval = cfg.Ingest.RetryInitialInterval
	}
	routerCfg.PoisonTopic = cfg.Ingest.PoisonTopic

	return ingest.NewPipeline(routerCfg, sub, poisonPub, ingest.NewRecorder(ch, eng, time.Now), wmLogger)
}

// loadJWTSecret returns the configured cookie-signing secret, generating
// an ephemeral one when none is set. Generated secrets invalidate cookies
// on restart.
func loadJWTSecret(cfg *config.Config) ([]byte, error) {
	if cfg.Server.JWTSecret != "" {
		return []byte(cfg.Server.JWTSecret), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating jwt secret: %w", err)
	}
	logging.Warn().Msg("no jwt secret configured, generated an ephemeral one")
	return secret, nil
}

func listenAddr(cfg *config.Config) string {
	return net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
}
