// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/citywatch-project/citywatch/internal/broadcast"
	"github.com/citywatch-project/citywatch/internal/bureau"
	"github.com/citywatch-project/citywatch/internal/bus"
	"github.com/citywatch-project/citywatch/internal/city"
	"github.com/citywatch-project/citywatch/internal/config"
	"github.com/citywatch-project/citywatch/internal/extraction"
	"github.com/citywatch-project/citywatch/internal/geo"
	"github.com/citywatch-project/citywatch/internal/ingest"
	"github.com/citywatch-project/citywatch/internal/models"
)

// plainCompleter answers every extraction-service call with fixed text.
type plainCompleter struct {
	response string
}

func (c *plainCompleter) Complete(context.Context, string, int) (string, error) {
	return c.response, nil
}

func newTestHandler(t *testing.T, completion string) http.Handler {
	t.Helper()

	b := bus.New()
	t.Cleanup(func() { b.Close() })

	state := city.NewState("nyc", geo.Profile("nyc"), city.Options{})
	for i := 0; i < 3; i++ {
		state.AppendIncident(models.Incident{
			ID:        state.NextIncidentID(),
			Type:      "theft",
			Location:  "125th and Lenox",
			Borough:   "Manhattan",
			City:      "nyc",
			CreatedAt: time.Now(),
		})
	}

	br := bureau.New(state, extraction.NewGateway(&plainCompleter{response: completion}), b, config.BureauConfig{
		IncidentRingSize:   50,
		TranscriptRingSize: 50,
	})

	s := New(config.ServerConfig{Port: 8080}, map[string]*bureau.Bureau{"nyc": br},
		broadcast.NewHub(), func() []ingest.FeedStatus {
			return []ingest.FeedStatus{{
				Feed:  models.Feed{ID: "nypd-citywide", City: "nyc", Kind: models.FeedKindStream},
				State: ingest.StateStreaming,
			}}
		})
	return s.routes()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestHandler(t, ""), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestCities(t *testing.T) {
	rec := get(t, newTestHandler(t, ""), "/api/v1/cities")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Cities []string `json:"cities"`
	}
	decode(t, rec, &body)
	if len(body.Cities) != 1 || body.Cities[0] != "nyc" {
		t.Errorf("cities = %v", body.Cities)
	}
}

func TestFeeds(t *testing.T) {
	rec := get(t, newTestHandler(t, ""), "/api/v1/feeds")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Feeds []ingest.FeedStatus `json:"feeds"`
	}
	decode(t, rec, &body)
	if len(body.Feeds) != 1 || body.Feeds[0].Feed.ID != "nypd-citywide" {
		t.Errorf("feeds = %+v", body.Feeds)
	}
}

func TestIncidents(t *testing.T) {
	h := newTestHandler(t, "")

	rec := get(t, h, "/api/v1/cities/nyc/incidents")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		City      string            `json:"city"`
		Incidents []models.Incident `json:"incidents"`
	}
	decode(t, rec, &body)
	if body.City != "nyc" || len(body.Incidents) != 3 {
		t.Errorf("city = %q, incidents = %d", body.City, len(body.Incidents))
	}

	rec = get(t, h, "/api/v1/cities/nyc/incidents?limit=2")
	decode(t, rec, &body)
	if len(body.Incidents) != 2 {
		t.Errorf("limited incidents = %d, want 2", len(body.Incidents))
	}
}

func TestCityIsCaseInsensitive(t *testing.T) {
	rec := get(t, newTestHandler(t, ""), "/api/v1/cities/NYC/incidents")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestUnknownCity(t *testing.T) {
	rec := get(t, newTestHandler(t, ""), "/api/v1/cities/gotham/incidents")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["error"] != "unknown city" {
		t.Errorf("body = %v", body)
	}
}

func TestAgents(t *testing.T) {
	rec := get(t, newTestHandler(t, ""), "/api/v1/cities/nyc/agents")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Agents []bureau.AgentStatus `json:"agents"`
	}
	decode(t, rec, &body)
	if len(body.Agents) != 4 {
		t.Errorf("agents = %d, want 4", len(body.Agents))
	}
}

func TestAsk(t *testing.T) {
	h := newTestHandler(t, "Three thefts clustered around 125th and Lenox this evening.")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cities/nyc/ask",
		strings.NewReader(`{"question": "what is happening in harlem?"}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["answer"] == "" {
		t.Errorf("body = %v", body)
	}
}

func TestAskRequiresQuestion(t *testing.T) {
	h := newTestHandler(t, "unused")

	for name, payload := range map[string]string{
		"empty question": `{"question": "  "}`,
		"bad json":       `{not json`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/cities/nyc/ask", strings.NewReader(payload))
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRateLimitHeadersPresent(t *testing.T) {
	rec := get(t, newTestHandler(t, ""), "/api/v1/cities")
	if rec.Header().Get("X-RateLimit-Limit") == "" {
		t.Error("rate limit headers missing on intel routes")
	}
}
