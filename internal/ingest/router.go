// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// RouterConfig tunes the ingest pipeline.
type RouterConfig struct {
	CloseTimeout time.Duration

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	PoisonTopic string
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      5,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     time.Minute,
		RetryMultiplier:      2.0,
		PoisonTopic:          TopicPoison,
	}
}

// Pipeline is the supervised ingest unit: a Watermill router consuming
// position reports into the recorder. It implements suture.Service.
type Pipeline struct {
	router *message.Router
}

// NewPipeline assembles the ingest router. Panics in handlers become
// errors, permanently invalid messages go to the poison topic, and
// transient errors are retried with backoff; a message that exhausts its
// retries is nacked back to the stream for redelivery.
func NewPipeline(
	cfg RouterConfig,
	sub message.Subscriber,
	poisonPub message.Publisher,
	rec *Recorder,
	logger watermill.LoggerAdapter,
) (*Pipeline, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating ingest router: %w", err)
	}

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}

	// Innermost first from the handler's point of view: the poison filter
	// diverts permanent failures before the retry middleware sees them.
	poison, err := middleware.PoisonQueueWithFilter(poisonPub, cfg.PoisonTopic, IsPermanent)
	if err != nil {
		return nil, fmt.Errorf("creating poison queue: %w", err)
	}

	router.AddMiddleware(
		middleware.Recoverer,
		retry.Middleware,
		poison,
	)

	router.AddNoPublisherHandler(
		"position-recorder",
		TopicPositionFix,
		sub,
		rec.Handle,
	)

	return &Pipeline{router: router}, nil
}

// String implements suture's service naming.
func (p *Pipeline) String() string { return "ingest-pipeline" }

// Serve implements suture.Service.
func (p *Pipeline) Serve(ctx context.Context) error {
	return p.router.Run(ctx)
}

// Running returns a channel closed once the router is consuming. Tests use
// it to avoid publishing before the handler is attached.
func (p *Pipeline) Running() chan struct{} {
	return p.router.Running()
}
