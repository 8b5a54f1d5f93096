// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package api

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/citywatch-project/citywatch/internal/bureau"
	"github.com/citywatch-project/citywatch/internal/logging"
)

type ctxKey int

const bureauKey ctxKey = iota

// cityCtx resolves the {city} path parameter to its bureau.
func (s *Server) cityCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		city := strings.ToLower(chi.URLParam(r, "city"))
		br, ok := s.bureaus[city]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown city")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), bureauKey, br)))
	})
}

func bureauFrom(r *http.Request) *bureau.Bureau {
	return r.Context().Value(bureauKey).(*bureau.Bureau)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	cities := make([]string, 0, len(s.bureaus))
	for name := range s.bureaus {
		cities = append(cities, name)
	}
	sort.Strings(cities)
	writeJSON(w, http.StatusOK, map[string]interface{}{"cities": cities})
}

func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"feeds": s.feeds()})
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	br := bureauFrom(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"city":      br.City(),
		"incidents": br.RecentIncidents(limitParam(r, 50)),
	})
}

func (s *Server) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	br := bureauFrom(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"city":        br.City(),
		"transcripts": br.RecentTranscripts(limitParam(r, 50)),
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	br := bureauFrom(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"city":   br.City(),
		"agents": br.AgentStatuses(),
	})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	br := bureauFrom(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"city":  br.City(),
		"stats": br.PredictionStats(),
	})
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	br := bureauFrom(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"city":     br.City(),
		"patterns": br.ActivePatterns(),
	})
}

func (s *Server) handleHotspots(w http.ResponseWriter, r *http.Request) {
	br := bureauFrom(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"city":     br.City(),
		"hotspots": br.Hotspots(limitParam(r, 10)),
	})
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	br := bureauFrom(r)

	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := br.Ask(r.Context(), req.Question)
	if err != nil {
		logging.Warn().Err(err).Str("city", br.City()).Msg("ask failed")
		writeError(w, http.StatusBadGateway, "analysis unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"city":   br.City(),
		"answer": answer,
	})
}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	br := bureauFrom(r)
	briefing, err := br.Briefing(r.Context())
	if err != nil {
		logging.Warn().Err(err).Str("city", br.City()).Msg("briefing failed")
		writeError(w, http.StatusBadGateway, "briefing unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"city":     br.City(),
		"briefing": briefing,
	})
}

func limitParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 500 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
