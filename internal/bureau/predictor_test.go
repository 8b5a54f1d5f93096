// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package bureau

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/citywatch-project/citywatch/internal/extraction"
	"github.com/citywatch-project/citywatch/internal/geo"
	"github.com/citywatch-project/citywatch/internal/models"
)

// countingCompleter fails loudly when the gateway is consulted on a
// cycle that should have been skipped.
type countingCompleter struct {
	response string
	calls    int
}

func (c *countingCompleter) Complete(context.Context, string, int) (string, error) {
	c.calls++
	return c.response, nil
}

func seedIncidents(mem *Memory, n int) {
	for i := 0; i < n; i++ {
		inc := models.Incident{
			ID:        mem.State().NextIncidentID(),
			Type:      "theft",
			Location:  fmt.Sprintf("%dth St and Broadway", 100+i),
			Borough:   "Manhattan",
			CreatedAt: time.Now(),
		}
		mem.State().AppendIncident(inc)
		mem.recordIncident(&inc)
	}
}

func TestPredictorSkipsThinHistory(t *testing.T) {
	mem := newTestMemory()
	seedIncidents(mem, 3)

	completer := &countingCompleter{}
	agent := NewPredictorAgent(
		extraction.NewGateway(completer),
		geo.Profile("nyc"),
		func(extraction.Forecast, string) { t.Error("forecast issued below history threshold") },
		PredictorConfig{MinHistory: 5},
	)

	agent.OnTick(context.Background(), time.Now(), mem)
	if completer.calls != 0 {
		t.Errorf("gateway calls = %d, want 0", completer.calls)
	}
}

func TestPredictorIssuesForecasts(t *testing.T) {
	mem := newTestMemory()
	seedIncidents(mem, 6)

	response := `{"forecasts": [
		{"location": "103th St and Broadway", "region": "Manhattan", "incidentType": "theft", "windowMinutes": 120, "confidence": 0.7, "reasoning": "repeat cluster"},
		{"location": "104th St and Broadway", "region": "Manhattan", "incidentType": "theft", "windowMinutes": 60, "confidence": 0.5, "reasoning": "adjacent block"}
	]}`

	var issued []extraction.Forecast
	agent := NewPredictorAgent(
		extraction.NewGateway(&countingCompleter{response: response}),
		geo.Profile("nyc"),
		func(f extraction.Forecast, name string) {
			if name != "predictor" {
				t.Errorf("issuing agent = %q, want predictor", name)
			}
			issued = append(issued, f)
		},
		PredictorConfig{MinHistory: 5, HotspotCount: 5},
	)

	agent.OnTick(context.Background(), time.Now(), mem)

	if len(issued) != 2 {
		t.Fatalf("issued = %d forecasts, want 2", len(issued))
	}
	if issued[0].WindowMinutes != 120 || issued[1].Confidence != 0.5 {
		t.Errorf("forecasts carried wrong fields: %+v", issued)
	}

	st := agent.Status()
	if !st.Active || st.Detail != "2 forecasts last cycle" {
		t.Errorf("status = %+v", st)
	}
}

func TestPredictorStatusBeforeFirstCycle(t *testing.T) {
	agent := NewPredictorAgent(
		extraction.NewGateway(&countingCompleter{}),
		geo.Profile("nyc"),
		func(extraction.Forecast, string) {},
		PredictorConfig{},
	)

	st := agent.Status()
	if st.Active || st.Detail != "" || st.Name != "predictor" {
		t.Errorf("idle status = %+v", st)
	}
}

func TestPredictorUnparseableCycle(t *testing.T) {
	mem := newTestMemory()
	seedIncidents(mem, 6)

	agent := NewPredictorAgent(
		extraction.NewGateway(&countingCompleter{response: "no json in this reply"}),
		geo.Profile("nyc"),
		func(extraction.Forecast, string) { t.Error("unparseable cycle issued a forecast") },
		PredictorConfig{MinHistory: 5},
	)

	agent.OnTick(context.Background(), time.Now(), mem)

	// A failed cycle must not report activity.
	if st := agent.Status(); st.Active {
		t.Errorf("status after failed cycle = %+v", st)
	}
}
