// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full process configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	NATS    NATSConfig    `koanf:"nats"`
	Session SessionConfig `koanf:"session"`
	Ingest  IngestConfig  `koanf:"ingest"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`

	// CORSOrigins lists allowed origins for the browser frontend.
	CORSOrigins []string `koanf:"cors_origins"`

	// LoginRateLimit bounds login attempts per client IP per minute.
	LoginRateLimit int `koanf:"login_rate_limit" validate:"min=1"`

	// JWTSecret signs the session cookie. Generated at startup when empty.
	JWTSecret string `koanf:"jwt_secret"`
}

// NATSConfig configures the document store and ingest stream transport.
type NATSConfig struct {
	URL            string `koanf:"url" validate:"required"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	Bucket         string `koanf:"bucket" validate:"required"`
}

// SessionConfig configures operator session persistence.
type SessionConfig struct {
	// StorePath is the Badger database directory. Empty means in-memory,
	// losing the session on restart.
	StorePath string `koanf:"store_path"`
}

// IngestConfig configures the position report pipeline.
type IngestConfig struct {
	Enabled    bool   `koanf:"enabled"`
	QueueGroup string `koanf:"queue_group" validate:"required_if=Enabled true"`
	Durable    string `koanf:"durable" validate:"required_if=Enabled true"`

	RetryMaxRetries      int           `koanf:"retry_max_retries" validate:"min=0"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	PoisonTopic          string        `koanf:"poison_topic" validate:"required_if=Enabled true"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, overridden by the config
// file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8475,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
			LoginRateLimit:  10,
			JWTSecret:       "",
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/itinera/jetstream",
			Bucket:         "itinera",
		},
		Session: SessionConfig{
			StorePath: "/data/itinera/session",
		},
		Ingest: IngestConfig{
			Enabled:              true,
			QueueGroup:           "itinera-ingest",
			Durable:              "itinera-ingest",
			RetryMaxRetries:      5,
			RetryInitialInterval: time.Second,
			PoisonTopic:          "dlq.position",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
