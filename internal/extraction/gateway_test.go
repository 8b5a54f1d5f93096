// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/citywatch-project/citywatch/internal/geo"
	"github.com/citywatch-project/citywatch/internal/models"
)

// cannedCompleter returns a fixed response and records the last prompt.
type cannedCompleter struct {
	response string
	err      error
	prompt   string
}

func (c *cannedCompleter) Complete(_ context.Context, prompt string, _ int) (string, error) {
	c.prompt = prompt
	return c.response, c.err
}

func TestExtractIncidentAccepted(t *testing.T) {
	completer := &cannedCompleter{
		response: `The transcript describes an incident. {"hasIncident": true, "incidentType": "robbery", "location": "125th and Lenox", "region": "Manhattan", "priority": "high", "summary": "robbery in progress", "isArrest": false}`,
	}
	g := NewGateway(completer)

	res := g.ExtractIncident(context.Background(), "unit 23 robbery in progress", geo.Profile("nyc"))
	if res.Kind != Accepted {
		t.Fatalf("kind = %v, want Accepted (reason %q)", res.Kind, res.Reason)
	}
	if res.Candidate.IncidentType != "robbery" || res.Candidate.Region != "Manhattan" {
		t.Errorf("candidate = %+v", res.Candidate)
	}
	if !strings.Contains(completer.prompt, "unit 23 robbery in progress") {
		t.Error("transcript missing from prompt")
	}
	if !strings.Contains(completer.prompt, "New York City") {
		t.Error("city context missing from prompt")
	}
}

func TestExtractIncidentPrecinctBackfill(t *testing.T) {
	completer := &cannedCompleter{
		response: `{"hasIncident": true, "incidentType": "assault", "location": "E 67th St", "region": "", "precinct": "19", "priority": "medium", "summary": "assault reported", "isArrest": false}`,
	}
	g := NewGateway(completer)

	res := g.ExtractIncident(context.Background(), "assault at east 67th", geo.Profile("nyc"))
	if res.Kind != Accepted {
		t.Fatalf("kind = %v, want Accepted", res.Kind)
	}
	if res.Candidate.Region != "Manhattan" {
		t.Errorf("region = %q, want Manhattan (backfilled from precinct 19)", res.Candidate.Region)
	}
}

func TestExtractIncidentRejected(t *testing.T) {
	t.Run("no incident", func(t *testing.T) {
		g := NewGateway(&cannedCompleter{response: `{"hasIncident": false}`})
		res := g.ExtractIncident(context.Background(), "routine radio check", geo.Profile("nyc"))
		if res.Kind != Rejected {
			t.Errorf("kind = %v, want Rejected", res.Kind)
		}
	})

	t.Run("service error degrades to rejected", func(t *testing.T) {
		g := NewGateway(&cannedCompleter{err: errors.New("connection refused")})
		res := g.ExtractIncident(context.Background(), "anything", geo.Profile("nyc"))
		if res.Kind != Rejected {
			t.Errorf("kind = %v, want Rejected", res.Kind)
		}
	})

	t.Run("garbage response is a parse error", func(t *testing.T) {
		g := NewGateway(&cannedCompleter{response: "I'm sorry, I can't help with that."})
		res := g.ExtractIncident(context.Background(), "anything", geo.Profile("nyc"))
		if res.Kind != ParseError {
			t.Errorf("kind = %v, want ParseError", res.Kind)
		}
	})
}

func TestJudgePattern(t *testing.T) {
	completer := &cannedCompleter{
		response: `{"patternDetected": true, "name": "Lenox corridor robberies", "connections": ["same block", "same MO"], "linkedIds": [1, 2, 3], "confidence": 0.8, "prediction": {"location": "125th and Lenox", "region": "Manhattan", "incidentType": "robbery", "windowMinutes": 90, "confidence": 0.7, "reasoning": "third strike likely"}}`,
	}
	g := NewGateway(completer)

	verdict, err := g.JudgePattern(context.Background(), nil, geo.Profile("nyc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verdict.PatternDetected || verdict.Name == "" {
		t.Fatalf("verdict = %+v", verdict)
	}
	if verdict.Prediction == nil || verdict.Prediction.WindowMinutes != 90 {
		t.Errorf("embedded prediction = %+v", verdict.Prediction)
	}
}

func TestForecasts(t *testing.T) {
	completer := &cannedCompleter{
		response: `{"forecasts": [{"location": "Fordham Rd", "region": "Bronx", "incidentType": "theft", "windowMinutes": 60, "confidence": 0.65, "reasoning": "hotspot trend"}]}`,
	}
	g := NewGateway(completer)

	forecasts, err := g.Forecasts(context.Background(), nil, 0.5, geo.Profile("nyc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(forecasts) != 1 || forecasts[0].IncidentType != "theft" {
		t.Errorf("forecasts = %+v", forecasts)
	}
	if !strings.Contains(completer.prompt, "50%") {
		t.Error("accuracy feedback missing from prompt")
	}
}

func TestBriefingPromptRendersStats(t *testing.T) {
	completer := &cannedCompleter{response: "Quiet shift overall."}
	g := NewGateway(completer)

	stats := models.PredictionStats{
		Total:    2,
		Correct:  1,
		Accuracy: 0.5,
		Pending:  []models.Prediction{{ID: "p1"}, {ID: "p2"}},
	}
	out, err := g.Briefing(context.Background(),
		[]models.Incident{{ID: 1, Type: "theft", Location: "125th and Lenox"}}, nil, stats, geo.Profile("nyc"))
	if err != nil {
		t.Fatalf("Briefing: %v", err)
	}
	if out != "Quiet shift overall." {
		t.Errorf("briefing = %q", out)
	}
	if !strings.Contains(completer.prompt, "2 issued, 1 correct, 2 pending (50% accuracy)") {
		t.Errorf("track record malformed: %q", completer.prompt)
	}
	if strings.Contains(completer.prompt, "%!") {
		t.Errorf("format noise in prompt: %q", completer.prompt)
	}
}
