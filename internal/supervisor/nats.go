// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/citywatch-project/citywatch/internal/config"
	"github.com/citywatch-project/citywatch/internal/logging"
)

// EmbeddedNATSService runs an in-process NATS JetStream server for
// single-instance deployments that forward bus events without an
// external broker.
type EmbeddedNATSService struct {
	cfg config.NATSConfig
}

// NewEmbeddedNATSService wraps the broker config as a supervised
// service.
func NewEmbeddedNATSService(cfg config.NATSConfig) *EmbeddedNATSService {
	return &EmbeddedNATSService{cfg: cfg}
}

// String names the service in supervisor logs.
func (s *EmbeddedNATSService) String() string { return "embedded-nats" }

// Serve starts the broker, waits for context cancellation, then shuts
// it down. Implements suture.Service. A server that never becomes ready
// returns an error so the supervisor retries with backoff.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	opts := &server.Options{
		ServerName: "citywatch-events",
		JetStream:  true,
		StoreDir:   s.cfg.StoreDir,
		MaxPayload: 8 * 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return fmt.Errorf("create nats server: %w", err)
	}
	ns.ConfigureLogger()

	go ns.Start()
	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return fmt.Errorf("nats server not ready within timeout")
	}
	logging.Info().Str("url", ns.ClientURL()).Msg("embedded nats server ready")

	<-ctx.Done()
	ns.Shutdown()
	ns.WaitForShutdown()
	return ctx.Err()
}
