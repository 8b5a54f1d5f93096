// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package bureau

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/citywatch-project/citywatch/internal/bus"
	"github.com/citywatch-project/citywatch/internal/city"
	"github.com/citywatch-project/citywatch/internal/config"
	"github.com/citywatch-project/citywatch/internal/extraction"
	"github.com/citywatch-project/citywatch/internal/geo"
	"github.com/citywatch-project/citywatch/internal/models"
)

// stubCompleter returns a fixed extraction-service response.
type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) Complete(context.Context, string, int) (string, error) {
	return s.response, s.err
}

func testBureauConfig() config.BureauConfig {
	return config.BureauConfig{
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
	}
}

func newTestBureau(t *testing.T, response string) (*Bureau, *bus.Bus) {
	t.Helper()
	state := city.NewState("nyc", geo.Profile("nyc"), city.Options{
		Cameras: []models.Camera{
			{ID: "cam-1", Name: "Lenox North", Borough: "Manhattan", LocationKey: geo.LocationKey("125th St & Lenox Ave")},
		},
	})
	b := bus.New()
	t.Cleanup(func() { b.Close() })
	gateway := extraction.NewGateway(&stubCompleter{response: response})
	return New(state, gateway, b, testBureauConfig()), b
}

func submission(incidentType, location, region, summary string) Submission {
	return Submission{
		Candidate: extraction.IncidentCandidate{
			HasIncident:  true,
			IncidentType: incidentType,
			Location:     location,
			Region:       region,
			Priority:     "medium",
			Summary:      summary,
		},
		Transcript: models.Transcript{Text: summary, City: "nyc", CapturedAt: time.Now()},
	}
}

func TestProcessSubmissionAssignsSequentialIDs(t *testing.T) {
	br, _ := newTestBureau(t, "no structured content")
	ctx := context.Background()

	br.processSubmission(ctx, submission("robbery", "Fordham Rd", "Bronx", "robbery reported"))
	br.processSubmission(ctx, submission("assault", "Atlantic Ave", "Brooklyn", "assault reported"))

	incidents := br.RecentIncidents(10)
	if len(incidents) != 2 {
		t.Fatalf("incidents = %d, want 2", len(incidents))
	}
	if incidents[0].ID != 1 || incidents[1].ID != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", incidents[0].ID, incidents[1].ID)
	}
	if incidents[0].Borough != "Bronx" {
		t.Errorf("borough = %q, want Bronx", incidents[0].Borough)
	}
	if incidents[0].SourceTranscript != "robbery reported" {
		t.Errorf("source transcript = %q", incidents[0].SourceTranscript)
	}
}

func TestBuildIncidentPrecinctBackfill(t *testing.T) {
	br, _ := newTestBureau(t, "")

	inc := br.buildIncident(Submission{
		Candidate: extraction.IncidentCandidate{
			HasIncident:  true,
			IncidentType: "assault",
			Location:     "E 67th St",
			Precinct:     "19",
		},
	})
	if inc.Borough != "Manhattan" {
		t.Errorf("borough = %q, want Manhattan", inc.Borough)
	}
}

func TestProcessSubmissionResolvesPrediction(t *testing.T) {
	br, _ := newTestBureau(t, "no structured content")
	ctx := context.Background()

	br.ledger.Add(models.Prediction{
		ID:           "pred-1",
		Agent:        "predictor",
		IncidentType: "robbery",
		Borough:      "Manhattan",
		Location:     "125th and Lenox",
		CreatedAt:    time.Now(),
		ExpiresAt:    time.Now().Add(time.Hour),
	})

	br.processSubmission(ctx, submission("robbery", "125th and Lenox", "Manhattan", "robbery in progress"))

	incidents := br.RecentIncidents(1)
	if len(incidents) != 1 {
		t.Fatalf("incidents = %d, want 1", len(incidents))
	}
	if incidents[0].MatchedPredictionID != "pred-1" {
		t.Errorf("matched prediction = %q, want pred-1", incidents[0].MatchedPredictionID)
	}

	stats := br.PredictionStats()
	if stats.Total != 1 || stats.Correct != 1 {
		t.Errorf("total = %d, correct = %d, want 1, 1", stats.Total, stats.Correct)
	}
	if len(stats.Pending) != 0 {
		t.Errorf("pending = %d, want 0", len(stats.Pending))
	}
}

func TestProcessSubmissionCameraSwitch(t *testing.T) {
	br, b := newTestBureau(t, "no structured content")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	messages, err := b.Subscribe(ctx, bus.ChannelCameraSwitches)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	br.processSubmission(ctx, submission("shooting", "125th St & Lenox Ave", "Manhattan", "shots fired"))

	select {
	case msg := <-messages:
		var ev models.CameraSwitchEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		msg.Ack()
		if ev.Camera.ID != "cam-1" {
			t.Errorf("camera = %q, want cam-1", ev.Camera.ID)
		}
	case <-ctx.Done():
		t.Fatal("no camera switch event published")
	}
}

func TestIssuePredictionWindowDefaults(t *testing.T) {
	br, _ := newTestBureau(t, "")

	before := time.Now()
	br.issuePrediction(extraction.Forecast{
		Location:     "Fordham Rd",
		Region:       "Bronx",
		IncidentType: "theft",
		Confidence:   0.7,
	}, "predictor")

	stats := br.PredictionStats()
	if len(stats.Pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(stats.Pending))
	}
	p := stats.Pending[0]
	want := before.Add(time.Hour)
	if p.ExpiresAt.Before(want.Add(-time.Minute)) || p.ExpiresAt.After(want.Add(time.Minute)) {
		t.Errorf("expiry = %v, want about %v", p.ExpiresAt, want)
	}
	if p.Agent != "predictor" || p.City != "nyc" {
		t.Errorf("prediction = %+v", p)
	}
}

func TestIssuePredictionHonorsForecastWindow(t *testing.T) {
	br, _ := newTestBureau(t, "")

	before := time.Now()
	br.issuePrediction(extraction.Forecast{
		Location:      "Fordham Rd",
		IncidentType:  "theft",
		WindowMinutes: 90,
		Confidence:    0.7,
	}, "pattern")

	p := br.PredictionStats().Pending[0]
	want := before.Add(90 * time.Minute)
	if p.ExpiresAt.Before(want.Add(-time.Minute)) || p.ExpiresAt.After(want.Add(time.Minute)) {
		t.Errorf("expiry = %v, want about %v", p.ExpiresAt, want)
	}
}

func TestSweepPredictionsExpires(t *testing.T) {
	br, _ := newTestBureau(t, "")

	br.ledger.Add(models.Prediction{
		ID:           "stale",
		IncidentType: "theft",
		Location:     "x",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})
	br.sweepPredictions(time.Now())

	stats := br.PredictionStats()
	if len(stats.Pending) != 0 {
		t.Errorf("pending = %d, want 0", len(stats.Pending))
	}
	if stats.Total != 0 {
		t.Errorf("expiry moved total to %d", stats.Total)
	}
}

func TestAgentStatuses(t *testing.T) {
	br, _ := newTestBureau(t, "")

	statuses := br.AgentStatuses()
	if len(statuses) != 4 {
		t.Fatalf("statuses = %d, want 4", len(statuses))
	}
	names := map[string]bool{}
	for _, st := range statuses {
		names[st.Name] = true
	}
	for _, want := range []string{"pursuit", "historian", "pattern", "predictor"} {
		if !names[want] {
			t.Errorf("missing agent %q", want)
		}
	}
}
