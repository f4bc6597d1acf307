// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where the config file is searched, first match
// wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/itinera/config.yaml",
	"/etc/itinera/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "ITINERA_CONFIG"

// Load builds the configuration: defaults, then the config file if one
// exists, then environment variables.
func Load() (*Config, error) {
	return loadFrom(findConfigFile())
}

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unknown variables are ignored so unrelated environment noise cannot
// corrupt the configuration.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"HTTP_HOST":             "server.host",
		"HTTP_PORT":             "server.port",
		"HTTP_READ_TIMEOUT":     "server.read_timeout",
		"HTTP_WRITE_TIMEOUT":    "server.write_timeout",
		"HTTP_SHUTDOWN_TIMEOUT": "server.shutdown_timeout",
		"CORS_ORIGINS":          "server.cors_origins",
		"LOGIN_RATE_LIMIT":      "server.login_rate_limit",
		"JWT_SECRET":            "server.jwt_secret",

		"NATS_URL":       "nats.url",
		"NATS_EMBEDDED":  "nats.embedded_server",
		"NATS_STORE_DIR": "nats.store_dir",
		"NATS_BUCKET":    "nats.bucket",

		"SESSION_STORE_PATH": "session.store_path",

		"INGEST_ENABLED":                "ingest.enabled",
		"INGEST_QUEUE_GROUP":            "ingest.queue_group",
		"INGEST_DURABLE":                "ingest.durable",
		"INGEST_RETRY_MAX_RETRIES":      "ingest.retry_max_retries",
		"INGEST_RETRY_INITIAL_INTERVAL": "ingest.retry_initial_interval",
		"INGEST_POISON_TOPIC":           "ingest.poison_topic",

		"LOG_LEVEL":  "logging.level",
		"LOG_FORMAT": "logging.format",
		"LOG_CALLER": "logging.caller",
	}
	if path, ok := envMappings[strings.ToUpper(key)]; ok {
		return path
	}
	return ""
}
