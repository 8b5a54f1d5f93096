// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validBase is a minimal coherent config built from defaults.
func validBase() *Config {
	cfg := defaultConfig()
	cfg.Cities = []CityConfig{{
		Name: "nyc",
		Feeds: []FeedConfig{
			{ID: "nypd-citywide", Kind: "stream", URL: "https://audio.example.test/nypd"},
		},
	}}
	return cfg
}

func TestValidateAcceptsBaseConfig(t *testing.T) {
	if err := validBase().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateCities(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "no cities",
			mutate:  func(c *Config) { c.Cities = nil },
			wantErr: "at least one city",
		},
		{
			name: "duplicate city",
			mutate: func(c *Config) {
				c.Cities = append(c.Cities, c.Cities[0])
			},
			wantErr: "declared twice",
		},
		{
			name: "duplicate city differing only in case",
			mutate: func(c *Config) {
				dup := c.Cities[0]
				dup.Name = "NYC"
				dup.Feeds = nil
				c.Cities = append(c.Cities, dup)
			},
			wantErr: "declared twice",
		},
		{
			name: "unknown geography without boroughs",
			mutate: func(c *Config) {
				c.Cities[0].Name = "atlantis"
			},
			wantErr: "no built-in geography",
		},
		{
			name: "unknown geography with boroughs is fine",
			mutate: func(c *Config) {
				c.Cities[0].Name = "atlantis"
				c.Cities[0].Boroughs = []string{"north", "south"}
			},
		},
		{
			name: "duplicate feed id",
			mutate: func(c *Config) {
				c.Cities[0].Feeds = append(c.Cities[0].Feeds, c.Cities[0].Feeds[0])
			},
			wantErr: "declared twice",
		},
		{
			name: "stream feed without url",
			mutate: func(c *Config) {
				c.Cities[0].Feeds[0].URL = ""
			},
			wantErr: "requires a url",
		},
		{
			name: "poll feed with poller disabled",
			mutate: func(c *Config) {
				c.Cities[0].Feeds = append(c.Cities[0].Feeds, FeedConfig{
					ID: "nypd-calls", Kind: "poll", Talkgroup: "1234",
				})
			},
			wantErr: "poller is disabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePollerCredentials(t *testing.T) {
	cfg := validBase()
	cfg.Poller.Enabled = true
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "base_url") {
		t.Fatalf("error = %v, want base_url requirement", err)
	}

	cfg.Poller.BaseURL = "https://calls.example.test"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "token_secret") {
		t.Fatalf("error = %v, want token_secret requirement", err)
	}

	cfg.Poller.TokenSecret = "secret"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "username") {
		t.Fatalf("error = %v, want credential requirement", err)
	}

	cfg.Poller.Username = "svc"
	cfg.Poller.Password = "pw"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("complete poller config rejected: %v", err)
	}
}

func TestValidateNATS(t *testing.T) {
	cfg := validBase()
	cfg.NATS.Enabled = true
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "nats.url") {
		t.Fatalf("error = %v, want nats.url requirement", err)
	}

	cfg.NATS.EmbeddedServer = true
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "store_dir") {
		t.Fatalf("error = %v, want store_dir requirement", err)
	}

	cfg.NATS.StoreDir = "/tmp/citywatch-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("embedded nats config rejected: %v", err)
	}
}

func TestCityNamesNormalized(t *testing.T) {
	cfg := validBase()
	cfg.Cities[0].Name = "  NYC "
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Cities[0].Name != "nyc" {
		t.Errorf("city name = %q, want nyc", cfg.Cities[0].Name)
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9999
cities:
  - name: nyc
    feeds:
      - id: nypd-citywide
        kind: stream
        url: https://audio.example.test/nypd
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("CITYWATCH_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999 (file layer)", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q, want debug (env layer)", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Streams.ChunkDuration != 15*time.Second {
		t.Errorf("chunk duration = %v, want default 15s", cfg.Streams.ChunkDuration)
	}
	if cfg.Bureau.PatternSimilarity != 0.5 {
		t.Errorf("pattern similarity = %v, want default 0.5", cfg.Bureau.PatternSimilarity)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := map[string]string{
		"CITYWATCH_POLLER_BASE_URL":   "poller.base_url",
		"CITYWATCH_SERVER_PORT":       "server.port",
		"CITYWATCH_LOGGING_LEVEL":     "logging.level",
		"CITYWATCH_NATS_STREAM_NAME":  "nats.stream_name",
		"CITYWATCH_DEDUP_CACHE_SIZES": "dedup.cache_sizes",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
