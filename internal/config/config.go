// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package config loads and validates Citywatch configuration via Koanf v2
// with layered sources: built-in defaults, then an optional YAML file,
// then CITYWATCH_-prefixed environment variables.
package config

import (
	"time"
)

// Config is the root configuration for the Citywatch server.
type Config struct {
	Logging       LoggingConfig       `koanf:"logging"`
	Server        ServerConfig        `koanf:"server"`
	Cities        []CityConfig        `koanf:"cities"`
	Streams       StreamConfig        `koanf:"streams"`
	Poller        PollerConfig        `koanf:"poller"`
	Dedup         DedupConfig         `koanf:"dedup"`
	Transcription TranscriptionConfig `koanf:"transcription"`
	Extraction    ExtractionConfig    `koanf:"extraction"`
	Bureau        BureauConfig        `koanf:"bureau"`
	NATS          NATSConfig          `koanf:"nats"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ServerConfig configures the ops HTTP listener (healthz, metrics, the
// broadcast WebSocket endpoint, and read-only intel queries). The full
// application REST surface is an external collaborator, not part of this
// process.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout     time.Duration `koanf:"timeout"`
	CORSOrigins []string      `koanf:"cors_origins"`

	// RateLimitReqs requests per RateLimitWindow per client IP on the
	// intel query routes.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// CityConfig declares one monitored city and its source feeds.
type CityConfig struct {
	// Name is the canonical lowercase city key, e.g. "nyc". Must match a
	// built-in geo profile or carry its own boroughs list.
	Name  string       `koanf:"name" validate:"required"`
	Feeds []FeedConfig `koanf:"feeds" validate:"dive"`

	// Boroughs overrides the built-in profile's subdivision list for
	// cities without built-in geography.
	Boroughs []string `koanf:"boroughs"`

	// Cameras is the static camera directory for camera-switch events.
	Cameras []CameraConfig `koanf:"cameras"`
}

// FeedConfig declares one audio source.
type FeedConfig struct {
	ID          string `koanf:"id" validate:"required"`
	DisplayName string `koanf:"display_name"`
	Kind        string `koanf:"kind" validate:"required,oneof=stream poll"`
	URL         string `koanf:"url"`
	Talkgroup   string `koanf:"talkgroup"`
}

// CameraConfig declares one camera in a city's directory.
type CameraConfig struct {
	ID       string `koanf:"id" validate:"required"`
	Name     string `koanf:"name"`
	Borough  string `koanf:"borough"`
	Location string `koanf:"location" validate:"required"`
}

// StreamConfig governs the stream connectors.
type StreamConfig struct {
	// MaxConcurrent caps how many stream connections are open at once.
	// Excess feeds wait; this is capacity, not an error.
	MaxConcurrent int `koanf:"max_concurrent" validate:"gt=0"`

	// LivenessInterval is how often each connector checks for silence.
	LivenessInterval time.Duration `koanf:"liveness_interval"`

	// SilenceThreshold is how long without data before a connection is
	// declared silent and force-reconnected.
	SilenceThreshold time.Duration `koanf:"silence_threshold"`

	// ReconnectDelay is the fixed backoff before reconnecting.
	ReconnectDelay time.Duration `koanf:"reconnect_delay"`

	// ChunkDuration is how much buffered audio is flushed downstream as
	// one unit.
	ChunkDuration time.Duration `koanf:"chunk_duration"`

	// BytesPerSecond is the assumed stream bitrate used to convert the
	// byte buffer into a duration. 16000 ≈ 128 kbit/s MP3.
	BytesPerSecond int `koanf:"bytes_per_second"`

	// AuthToken is sent on stream connection requests when set.
	AuthToken string `koanf:"auth_token"`
}

// PollerConfig governs the call-log API poller.
type PollerConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`

	// Interval between polls.
	Interval time.Duration `koanf:"interval"`

	// TokenIssuer, TokenSecret, and TokenTTL shape the short-lived signed
	// request token regenerated per request.
	TokenIssuer string        `koanf:"token_issuer"`
	TokenSecret string        `koanf:"token_secret"`
	TokenTTL    time.Duration `koanf:"token_ttl"`

	// Username and Password obtain the separately cached session token.
	Username string `koanf:"username"`
	Password string `koanf:"password"`

	// MaxConsecutiveFailures disables the poller once reached (fail-stop,
	// not an infinite retry storm).
	MaxConsecutiveFailures int `koanf:"max_consecutive_failures"`

	// RatePerSecond and RateBurst bound outbound API calls.
	RatePerSecond float64 `koanf:"rate_per_second"`
	RateBurst     int     `koanf:"rate_burst"`

	// DownloadTimeout bounds each audio download.
	DownloadTimeout time.Duration `koanf:"download_timeout"`
}

// DedupConfig sizes the two dedup caches.
type DedupConfig struct {
	CallCacheSize       int `koanf:"call_cache_size" validate:"gt=0"`
	TranscriptCacheSize int `koanf:"transcript_cache_size" validate:"gt=0"`
}

// TranscriptionConfig points at the external speech-to-text collaborator.
type TranscriptionConfig struct {
	URL     string        `koanf:"url" validate:"omitempty,url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// ExtractionConfig points at the external understanding service.
type ExtractionConfig struct {
	URL     string        `koanf:"url" validate:"omitempty,url"`
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
}

// BureauConfig governs the per-city agent orchestrator.
type BureauConfig struct {
	IncidentRingSize   int `koanf:"incident_ring_size" validate:"gt=0"`
	TranscriptRingSize int `koanf:"transcript_ring_size" validate:"gt=0"`

	// Predictor cycle
	PredictorInterval   time.Duration `koanf:"predictor_interval"`
	PredictorMinHistory int           `koanf:"predictor_min_history"`
	PredictionWindow    time.Duration `koanf:"prediction_window"`

	// Prediction expiry sweep, in addition to on-event checks.
	PredictionSweepInterval time.Duration `koanf:"prediction_sweep_interval"`

	// Pattern agent
	PatternWindow           time.Duration `koanf:"pattern_window"`
	PatternDeepScanInterval time.Duration `koanf:"pattern_deep_scan_interval"`
	PatternDeepScanDepth    int           `koanf:"pattern_deep_scan_depth"`
	PatternSimilarity       float64       `koanf:"pattern_similarity" validate:"gte=0,lte=1"`
	PatternValidity         time.Duration `koanf:"pattern_validity"`
	PatternMinConfidence    float64       `koanf:"pattern_min_confidence" validate:"gte=0,lte=1"`

	// Pursuit agent
	PursuitCooldown time.Duration `koanf:"pursuit_cooldown"`
	PursuitTokenCap int           `koanf:"pursuit_token_cap"`
}

// NATSConfig governs the optional broker bridge. When disabled the bus
// stays purely in-process with best-effort local delivery.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	StreamName     string `koanf:"stream_name"`
}

// defaultConfig returns a Config with all defaults applied. These are
// overridden by config file and environment layers.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8790,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Streams: StreamConfig{
			MaxConcurrent:    5,
			LivenessInterval: 30 * time.Second,
			SilenceThreshold: 90 * time.Second,
			ReconnectDelay:   10 * time.Second,
			ChunkDuration:    15 * time.Second,
			BytesPerSecond:   16000,
		},
		Poller: PollerConfig{
			Enabled:                false,
			Interval:               30 * time.Second,
			TokenIssuer:            "citywatch",
			TokenTTL:               time.Minute,
			MaxConsecutiveFailures: 5,
			RatePerSecond:          2,
			RateBurst:              4,
			DownloadTimeout:        30 * time.Second,
		},
		Dedup: DedupConfig{
			CallCacheSize:       500,
			TranscriptCacheSize: 300,
		},
		Transcription: TranscriptionConfig{
			Timeout: 60 * time.Second,
		},
		Extraction: ExtractionConfig{
			Model:   "fast",
			Timeout: 45 * time.Second,
		},
		Bureau: BureauConfig{
			IncidentRingSize:        200,
			TranscriptRingSize:      100,
			PredictorInterval:       15 * time.Minute,
			PredictorMinHistory:     5,
			PredictionWindow:        time.Hour,
			PredictionSweepInterval: time.Minute,
			PatternWindow:           2 * time.Hour,
			PatternDeepScanInterval: 5 * time.Minute,
			PatternDeepScanDepth:    50,
			PatternSimilarity:       0.5,
			PatternValidity:         6 * time.Hour,
			PatternMinConfidence:    0.6,
			PursuitCooldown:         30 * time.Minute,
			PursuitTokenCap:         350,
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: false,
			StoreDir:       "/data/nats/jetstream",
			StreamName:     "CITYWATCH",
		},
	}
}
