// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package bureau

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/citywatch-project/citywatch/internal/extraction"
	"github.com/citywatch-project/citywatch/internal/geo"
	"github.com/citywatch-project/citywatch/internal/logging"
	"github.com/citywatch-project/citywatch/internal/metrics"
	"github.com/citywatch-project/citywatch/internal/models"
)

// PredictorConfig tunes the forecasting cycle.
type PredictorConfig struct {
	// MinHistory is how many incidents must exist before forecasting.
	MinHistory int

	// HotspotCount is how many top hotspots feed each cycle.
	HotspotCount int
}

// PredictorAgent runs a periodic forecasting cycle: top hotspots plus
// the ledger's running accuracy go to the extraction service, which
// returns zero or more forecasts. Each becomes a pending prediction.
// The accuracy feedback is the self-calibration loop: a cold or
// inaccurate ledger tells the model to be conservative.
type PredictorAgent struct {
	gateway *extraction.Gateway
	profile *geo.CityProfile
	issue   func(f extraction.Forecast, agentName string)
	cfg     PredictorConfig

	mu           sync.Mutex
	lastActivity time.Time
	lastCount    int
}

// NewPredictorAgent builds the forecaster for one city.
func NewPredictorAgent(gateway *extraction.Gateway, profile *geo.CityProfile, issue func(extraction.Forecast, string), cfg PredictorConfig) *PredictorAgent {
	if cfg.MinHistory <= 0 {
		cfg.MinHistory = 5
	}
	if cfg.HotspotCount <= 0 {
		cfg.HotspotCount = 5
	}
	return &PredictorAgent{
		gateway: gateway,
		profile: profile,
		issue:   issue,
		cfg:     cfg,
	}
}

func (a *PredictorAgent) Name() string { return "predictor" }
func (a *PredictorAgent) Icon() string { return "🔮" }

// OnIncident is a no-op: the predictor is purely cycle-driven.
func (a *PredictorAgent) OnIncident(ctx context.Context, inc *models.Incident, mem *Memory) {}

// OnTick runs one forecasting cycle. Cycles with too little history are
// skipped silently.
func (a *PredictorAgent) OnTick(ctx context.Context, now time.Time, mem *Memory) {
	if mem.State().IncidentCount() < a.cfg.MinHistory {
		return
	}
	hotspots := mem.TopHotspots(a.cfg.HotspotCount)
	if len(hotspots) == 0 {
		return
	}

	city := mem.State().Name()
	metrics.AgentActivations.WithLabelValues(city, a.Name()).Inc()

	forecasts, err := a.gateway.Forecasts(ctx, hotspots, mem.Ledger().Accuracy(), a.profile)
	if err != nil {
		logging.Warn().Err(err).Str("city", city).Msg("forecast cycle failed")
		return
	}

	a.mu.Lock()
	a.lastActivity = now
	a.lastCount = len(forecasts)
	a.mu.Unlock()

	for _, f := range forecasts {
		a.issue(f, a.Name())
	}
	logging.Debug().Str("city", city).Int("forecasts", len(forecasts)).Msg("forecast cycle complete")
}

// Status reports the last cycle outcome.
func (a *PredictorAgent) Status() AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := AgentStatus{
		Name:         a.Name(),
		Icon:         a.Icon(),
		Active:       a.lastCount > 0,
		LastActivity: a.lastActivity,
	}
	if !a.lastActivity.IsZero() {
		st.Detail = fmt.Sprintf("%d forecasts last cycle", a.lastCount)
	}
	return st
}
