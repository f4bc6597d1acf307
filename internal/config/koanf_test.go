// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadFrom("")
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if cfg.Server.Port != 8475 {
		t.Errorf("Server.Port = %d, want 8475", cfg.Server.Port)
	}
	if cfg.NATS.URL != "nats://127.0.0.1:4222" {
		t.Errorf("NATS.URL = %q", cfg.NATS.URL)
	}
	if !cfg.Ingest.Enabled {
		t.Error("Ingest.Enabled default = false, want true")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  port: 9000
  read_timeout: 5s
logging:
  level: debug
  format: console
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	// Untouched sections keep their defaults.
	if cfg.NATS.Bucket != "itinera" {
		t.Errorf("NATS.Bucket = %q, want default", cfg.NATS.Bucket)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("NATS_EMBEDDED", "false")

	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.NATS.EmbeddedServer {
		t.Error("NATS.EmbeddedServer not overridden by env")
	}
}

func TestLoad_UnknownEnvIgnored(t *testing.T) {
	t.Setenv("PATH_INFO", "should-not-matter")

	if _, err := loadFrom(""); err != nil {
		t.Fatalf("loadFrom with unrelated env: %v", err)
	}
}

func TestLoad_ValidationRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: 0\n"},
		{"bad log level", "logging:\n  level: loud\n"},
		{"missing nats url", "nats:\n  url: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatalf("writing config file: %v", err)
			}
			if _, err := loadFrom(path); err == nil {
				t.Error("invalid configuration accepted")
			}
		})
	}
}
