// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

// Package metrics defines the Prometheus instruments exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConfigSnapshotsAbsorbed counts remote configuration snapshots folded
	// into the reconciler.
	ConfigSnapshotsAbsorbed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "itinera_config_snapshots_absorbed_total",
		Help: "Remote configuration snapshots absorbed by the engine.",
	})

	// TrackRebuilds counts wholesale track rebuilds from collection
	// snapshots.
	TrackRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "itinera_track_rebuilds_total",
		Help: "Track set rebuilds triggered by tracked-user snapshots.",
	})

	// ChannelErrors counts non-fatal channel error events, labelled by the
	// subscription they arrived on.
	ChannelErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itinera_channel_errors_total",
		Help: "Non-fatal errors delivered on channel subscriptions.",
	}, []string{"subscription"})

	// Commits counts configuration commits by outcome: committed,
	// rejected, or write_failed.
	Commits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itinera_config_commits_total",
		Help: "Configuration commit attempts by outcome.",
	}, []string{"outcome"})

	// LoginAttempts counts password checks by outcome: accepted or
	// rejected.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itinera_login_attempts_total",
		Help: "Operator login attempts by outcome.",
	}, []string{"outcome"})

	// WebsocketClients tracks currently connected websocket clients.
	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "itinera_websocket_clients",
		Help: "Currently connected websocket clients.",
	})

	// IngestReports counts device position reports by disposition:
	// accepted, off, outside_window, throttled, or invalid.
	IngestReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "itinera_ingest_reports_total",
		Help: "Device position reports by disposition.",
	}, []string{"disposition"})

	// HTTPRequestDuration observes request latency per route and status
	// class.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "itinera_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status class.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)
