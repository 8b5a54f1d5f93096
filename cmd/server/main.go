// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Command server runs the full Citywatch process: stream connectors and
// the call poller feeding the shared pipeline, one detective bureau per
// city, the event bus with optional broker forwarding, and the HTTP and
// websocket surfaces, all under one supervision tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/citywatch-project/citywatch/internal/api"
	"github.com/citywatch-project/citywatch/internal/broadcast"
	"github.com/citywatch-project/citywatch/internal/bureau"
	"github.com/citywatch-project/citywatch/internal/bus"
	"github.com/citywatch-project/citywatch/internal/cache"
	"github.com/citywatch-project/citywatch/internal/city"
	"github.com/citywatch-project/citywatch/internal/config"
	"github.com/citywatch-project/citywatch/internal/extraction"
	"github.com/citywatch-project/citywatch/internal/geo"
	"github.com/citywatch-project/citywatch/internal/ingest"
	"github.com/citywatch-project/citywatch/internal/logging"
	"github.com/citywatch-project/citywatch/internal/models"
	"github.com/citywatch-project/citywatch/internal/pipeline"
	"github.com/citywatch-project/citywatch/internal/poller"
	"github.com/citywatch-project/citywatch/internal/supervisor"
	"github.com/citywatch-project/citywatch/internal/transcribe"
)

var version = "dev"

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "citywatch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().Str("version", version).Int("cities", len(cfg.Cities)).Msg("citywatch starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventBus := bus.New()
	defer eventBus.Close()

	gateway := extraction.NewGateway(extraction.NewClient(cfg.Extraction))
	transcriber := transcribe.NewClient(cfg.Transcription)

	// Per-city state, bureaus, and pipeline routes.
	bureaus := make(map[string]*bureau.Bureau, len(cfg.Cities))
	routes := make(map[string]pipeline.Route, len(cfg.Cities))
	for _, cc := range cfg.Cities {
		state := city.NewState(cc.Name, geo.Profile(cc.Name), city.Options{
			IncidentRingSize:   cfg.Bureau.IncidentRingSize,
			TranscriptRingSize: cfg.Bureau.TranscriptRingSize,
			Cameras:            cameras(cc),
		})
		br := bureau.New(state, gateway, eventBus, cfg.Bureau)
		bureaus[cc.Name] = br
		routes[cc.Name] = pipeline.Route{State: state, Sink: br}
	}

	transcriptDedup := cache.NewDedupSet(cfg.Dedup.TranscriptCacheSize)
	callDedup := cache.NewDedupSet(cfg.Dedup.CallCacheSize)
	pipe := pipeline.New(transcriber, transcriptDedup, gateway, eventBus, routes)

	streams := ingest.NewManager(cfg.Cities, cfg.Streams, pipe.ProcessChunk)
	callPoller := poller.New(cfg.Poller, cfg.Cities, callDedup, func(ctx context.Context, chunk models.AudioChunk) {
		pipe.ProcessChunk(ctx, chunk)
	})

	hub := broadcast.NewHub()
	bridge := broadcast.NewBridge(eventBus, hub)
	httpServer := api.New(cfg.Server, bureaus, hub, streams.Statuses)

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())

	for _, conn := range streams.Connectors() {
		tree.AddIngestService(conn)
	}
	if cfg.Poller.Enabled {
		tree.AddIngestService(callPoller)
	}
	for _, br := range bureaus {
		tree.AddAnalysisService(br)
	}
	if cfg.NATS.Enabled {
		if cfg.NATS.EmbeddedServer {
			tree.AddGatewayService(supervisor.NewEmbeddedNATSService(cfg.NATS))
		}
		forwarder, err := bus.NewForwarder(eventBus, cfg.NATS)
		if err != nil {
			return fmt.Errorf("broker forwarder: %w", err)
		}
		tree.AddAnalysisService(forwarder)
	}
	tree.AddGatewayService(hub)
	tree.AddGatewayService(bridge)
	tree.AddGatewayService(httpServer)

	err = tree.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		logging.Info().Msg("citywatch stopped")
		return nil
	}
	return err
}

func cameras(cc config.CityConfig) []models.Camera {
	out := make([]models.Camera, 0, len(cc.Cameras))
	for _, cam := range cc.Cameras {
		out = append(out, models.Camera{
			ID:          cam.ID,
			Name:        cam.Name,
			Borough:     cam.Borough,
			LocationKey: geo.LocationKey(cam.Location),
		})
	}
	return out
}
