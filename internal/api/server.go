// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package api exposes the intel query surface: per-city incident and
// prediction queries, agent status, the analyst ask/briefing endpoints,
// the websocket event feed, and the operational endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/citywatch-project/citywatch/internal/broadcast"
	"github.com/citywatch-project/citywatch/internal/bureau"
	"github.com/citywatch-project/citywatch/internal/config"
	"github.com/citywatch-project/citywatch/internal/ingest"
	"github.com/citywatch-project/citywatch/internal/logging"
)

// Server is the HTTP front of the process.
type Server struct {
	cfg     config.ServerConfig
	bureaus map[string]*bureau.Bureau
	hub     *broadcast.Hub
	feeds   func() []ingest.FeedStatus
	httpSrv *http.Server
}

// New builds the server over the per-city bureaus, the websocket hub,
// and the feed status source.
func New(cfg config.ServerConfig, bureaus map[string]*bureau.Bureau, hub *broadcast.Hub, feeds func() []ingest.FeedStatus) *Server {
	s := &Server{
		cfg:     cfg,
		bureaus: bureaus,
		hub:     hub,
		feeds:   feeds,
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		IdleTimeout:  2 * timeout,
	}
	return s
}

// String names the server in supervisor logs.
func (s *Server) String() string { return "http-server" }

// Serve runs the listener until the context ends. Implements
// suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("http shutdown incomplete")
		}
		return ctx.Err()
	}
}

// routes assembles the router. The websocket and ops endpoints sit
// outside the rate limiter; only the intel queries are limited.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		broadcast.ServeWS(s.hub, s.cfg.CORSOrigins, w, req)
	})

	r.Route("/api/v1", func(r chi.Router) {
		reqs, window := s.cfg.RateLimitReqs, s.cfg.RateLimitWindow
		if reqs <= 0 {
			reqs = 60
		}
		if window <= 0 {
			window = time.Minute
		}
		r.Use(httprate.LimitByIP(reqs, window))

		r.Get("/cities", s.handleCities)
		r.Get("/feeds", s.handleFeeds)

		r.Route("/cities/{city}", func(r chi.Router) {
			r.Use(s.cityCtx)
			r.Get("/incidents", s.handleIncidents)
			r.Get("/transcripts", s.handleTranscripts)
			r.Get("/agents", s.handleAgents)
			r.Get("/predictions", s.handlePredictions)
			r.Get("/patterns", s.handlePatterns)
			r.Get("/hotspots", s.handleHotspots)
			r.Post("/ask", s.handleAsk)
			r.Get("/briefing", s.handleBriefing)
		})
	})
	return r
}

// requestLogger logs completed requests at debug.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", ww.Status()).Dur("elapsed", time.Since(start)).Msg("request")
	})
}
