// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package bureau runs the per-city detective bureau: a serialized event
// loop that turns accepted extraction candidates into incidents, settles
// pending predictions, and dispatches the agents. One Bureau per city;
// each is its own supervised service, so a wedged city never stalls the
// others.
package bureau

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/citywatch-project/citywatch/internal/bus"
	"github.com/citywatch-project/citywatch/internal/city"
	"github.com/citywatch-project/citywatch/internal/config"
	"github.com/citywatch-project/citywatch/internal/extraction"
	"github.com/citywatch-project/citywatch/internal/geo"
	"github.com/citywatch-project/citywatch/internal/ledger"
	"github.com/citywatch-project/citywatch/internal/logging"
	"github.com/citywatch-project/citywatch/internal/metrics"
	"github.com/citywatch-project/citywatch/internal/models"
)

// Submission is one accepted extraction result handed to the bureau by
// the ingestion pipeline.
type Submission struct {
	Candidate  extraction.IncidentCandidate
	Transcript models.Transcript
}

// Bureau is the orchestrator for one city. All incident processing runs
// on a single goroutine (the Serve loop), which is what makes id
// assignment, the hit-before-agents ordering, and memory updates safe
// without fine-grained locking in the agents.
type Bureau struct {
	cityName string
	profile  *geo.CityProfile
	state    *city.State
	memory   *Memory
	ledger   *ledger.Ledger
	gateway  *extraction.Gateway
	bus      *bus.Bus
	cfg      config.BureauConfig

	agents    []Agent
	pursuit   *PursuitAgent
	pattern   *PatternAgent
	predictor *PredictorAgent

	submissions chan Submission
}

// New wires a bureau for one city. state carries the city's rings and
// camera directory; the agents are constructed here so their callbacks
// close over the bureau.
func New(state *city.State, gateway *extraction.Gateway, b *bus.Bus, cfg config.BureauConfig) *Bureau {
	br := &Bureau{
		cityName:    state.Name(),
		profile:     state.Profile(),
		state:       state,
		ledger:      ledger.New(state.Name()),
		gateway:     gateway,
		bus:         b,
		cfg:         cfg,
		submissions: make(chan Submission, 128),
	}
	br.memory = NewMemory(state, br.ledger)

	br.pursuit = NewPursuitAgent(gateway, br.profile, br.announce, cfg.PursuitCooldown, cfg.PursuitTokenCap)
	historian := NewHistorianAgent(gateway, br.profile, br.announce)
	br.pattern = NewPatternAgent(gateway, br.profile, br.announce, br.issuePrediction, PatternConfig{
		Window:        cfg.PatternWindow,
		Similarity:    cfg.PatternSimilarity,
		MinConfidence: cfg.PatternMinConfidence,
		DeepScanDepth: cfg.PatternDeepScanDepth,
		Validity:      cfg.PatternValidity,
	})
	br.predictor = NewPredictorAgent(gateway, br.profile, br.issuePrediction, PredictorConfig{
		MinHistory: cfg.PredictorMinHistory,
	})

	// Dispatch order is fixed: pursuit first (time-critical), then
	// historian, then pattern. The predictor is cycle-driven only.
	br.agents = []Agent{br.pursuit, historian, br.pattern, br.predictor}
	return br
}

// City returns the bureau's city key.
func (br *Bureau) City() string { return br.cityName }

// String names the bureau in supervisor logs.
func (br *Bureau) String() string { return "bureau-" + br.cityName }

// Submit hands an accepted candidate to the event loop. Blocks when the
// queue is full so a slow bureau back-pressures the pipeline instead of
// silently losing incidents.
func (br *Bureau) Submit(ctx context.Context, sub Submission) error {
	select {
	case br.submissions <- sub:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve runs the bureau event loop until the context ends. Implements
// suture.Service.
func (br *Bureau) Serve(ctx context.Context) error {
	predictorTick := time.NewTicker(durationOr(br.cfg.PredictorInterval, 15*time.Minute))
	defer predictorTick.Stop()
	deepScanTick := time.NewTicker(durationOr(br.cfg.PatternDeepScanInterval, 5*time.Minute))
	defer deepScanTick.Stop()
	sweepTick := time.NewTicker(durationOr(br.cfg.PredictionSweepInterval, time.Minute))
	defer sweepTick.Stop()

	logging.Info().Str("city", br.cityName).Msg("bureau started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("city", br.cityName).Msg("bureau stopped")
			return ctx.Err()
		case sub := <-br.submissions:
			br.processSubmission(ctx, sub)
		case now := <-sweepTick.C:
			br.sweepPredictions(now)
			br.pursuit.OnTick(ctx, now, br.memory)
		case now := <-deepScanTick.C:
			br.pattern.OnTick(ctx, now, br.memory)
		case now := <-predictorTick.C:
			br.predictor.OnTick(ctx, now, br.memory)
		}
	}
}

// processSubmission is the whole life of one incident: id assignment,
// the prediction hit check, state and memory updates, camera switching,
// the bus announcement, and finally agent dispatch. Order matters: the
// hit check runs before agents so agents see the settled ledger.
func (br *Bureau) processSubmission(ctx context.Context, sub Submission) {
	inc := br.buildIncident(sub)

	hits, expired := br.ledger.ResolveIncident(&inc)
	for _, p := range expired {
		br.publishExpiry(p)
	}
	if len(hits) > 0 {
		inc.MatchedPredictionID = hits[0].ID
	}
	for _, p := range hits {
		metrics.PredictionOutcomes.WithLabelValues(br.cityName, string(models.PredictionHit)).Inc()
		if err := br.bus.PublishPredictionHit(models.PredictionHitEvent{
			Prediction:        p,
			MatchedIncidentID: inc.ID,
			Accuracy:          br.ledger.Accuracy(),
			Timestamp:         time.Now(),
		}); err != nil {
			logging.Error().Err(err).Str("city", br.cityName).Msg("publish prediction hit failed")
		}
		logging.Info().Str("city", br.cityName).Str("prediction", p.ID).
			Int64("incident", inc.ID).Msg("prediction hit")
	}
	metrics.PredictionAccuracy.WithLabelValues(br.cityName).Set(br.ledger.Accuracy())

	br.state.AppendIncident(inc)
	br.memory.recordIncident(&inc)
	metrics.IncidentsCreated.WithLabelValues(br.cityName, inc.Type).Inc()

	br.maybeSwitchCamera(&inc)

	if err := br.bus.PublishIncident(models.IncidentEvent{
		Incident:  inc,
		City:      br.cityName,
		Timestamp: time.Now(),
	}); err != nil {
		logging.Error().Err(err).Str("city", br.cityName).Msg("publish incident failed")
	}

	for _, agent := range br.agents {
		agent.OnIncident(ctx, &inc, br.memory)
	}
}

// buildIncident materializes an accepted candidate into an Incident with
// the next id for this city. Borough resolution prefers the explicit
// region, then the precinct table.
func (br *Bureau) buildIncident(sub Submission) models.Incident {
	c := sub.Candidate
	borough := c.Region
	if borough == "" && c.Precinct != "" && br.profile != nil {
		borough = br.profile.BoroughForPrecinct(c.Precinct)
	}
	return models.Incident{
		ID:               br.state.NextIncidentID(),
		Type:             c.IncidentType,
		Location:         c.Location,
		Borough:          borough,
		Priority:         c.Priority,
		Summary:          c.Summary,
		City:             br.cityName,
		CreatedAt:        time.Now(),
		IsArrest:         c.IsArrest,
		SourceTranscript: sub.Transcript.Text,
	}
}

// maybeSwitchCamera publishes a camera-switch event when the incident
// lands on a location covered by the city's camera directory.
func (br *Bureau) maybeSwitchCamera(inc *models.Incident) {
	if inc.Location == "" {
		return
	}
	cam, ok := br.state.CameraForLocation(geo.LocationKey(inc.Location))
	if !ok {
		return
	}
	if err := br.bus.PublishCameraSwitch(models.CameraSwitchEvent{
		Camera:    cam,
		Reason:    fmt.Sprintf("%s at %s", inc.Type, inc.Location),
		Priority:  inc.Priority,
		City:      br.cityName,
		Timestamp: time.Now(),
	}); err != nil {
		logging.Error().Err(err).Str("city", br.cityName).Msg("publish camera switch failed")
	}
}

// sweepPredictions expires overdue predictions that no incident touched.
func (br *Bureau) sweepPredictions(now time.Time) {
	for _, p := range br.ledger.ExpireDue(now) {
		br.publishExpiry(p)
	}
	metrics.PredictionAccuracy.WithLabelValues(br.cityName).Set(br.ledger.Accuracy())
}

func (br *Bureau) publishExpiry(p models.Prediction) {
	metrics.PredictionOutcomes.WithLabelValues(br.cityName, string(models.PredictionExpired)).Inc()
	if err := br.bus.PublishPrediction(models.PredictionEvent{
		Prediction: p,
		Timestamp:  time.Now(),
	}); err != nil {
		logging.Error().Err(err).Str("city", br.cityName).Msg("publish prediction expiry failed")
	}
	logging.Debug().Str("city", br.cityName).Str("prediction", p.ID).Msg("prediction expired")
}

// announce is the agents' insight callback. Safe from any goroutine
// (pursuit analysis runs async); the bus handles its own locking.
func (br *Bureau) announce(agent Agent, incidentID int64, analysis, urgency string) {
	if err := br.bus.PublishAgentInsight(models.AgentInsightEvent{
		Agent:      agent.Name(),
		AgentIcon:  agent.Icon(),
		IncidentID: incidentID,
		Analysis:   analysis,
		Urgency:    urgency,
		City:       br.cityName,
		Timestamp:  time.Now(),
	}); err != nil {
		logging.Error().Err(err).Str("city", br.cityName).Str("agent", agent.Name()).
			Msg("publish agent insight failed")
	}
}

// issuePrediction enters a forecast into the ledger as a pending
// prediction and announces it. Called from pattern and predictor inside
// the event loop.
func (br *Bureau) issuePrediction(f extraction.Forecast, agentName string) {
	now := time.Now()
	window := durationOr(br.cfg.PredictionWindow, time.Hour)
	if f.WindowMinutes > 0 {
		window = time.Duration(f.WindowMinutes) * time.Minute
	}
	p := models.Prediction{
		ID:           uuid.New().String(),
		Agent:        agentName,
		Location:     f.Location,
		Borough:      f.Region,
		IncidentType: f.IncidentType,
		Confidence:   f.Confidence,
		Reasoning:    f.Reasoning,
		City:         br.cityName,
		CreatedAt:    now,
		ExpiresAt:    now.Add(window),
	}
	br.ledger.Add(p)
	metrics.PredictionsIssued.WithLabelValues(br.cityName, agentName).Inc()

	if err := br.bus.PublishPrediction(models.PredictionEvent{
		Prediction: p,
		Timestamp:  now,
	}); err != nil {
		logging.Error().Err(err).Str("city", br.cityName).Msg("publish prediction failed")
	}
	logging.Info().Str("city", br.cityName).Str("agent", agentName).
		Str("type", p.IncidentType).Str("location", p.Location).
		Float64("confidence", p.Confidence).Msg("prediction issued")
}

// --- intel query surface ---
//
// These run on the caller's goroutine (the HTTP layer). Everything they
// touch is internally locked, so they never wait on the event loop.

// AgentStatuses reports each agent's current activity.
func (br *Bureau) AgentStatuses() []AgentStatus {
	out := make([]AgentStatus, 0, len(br.agents))
	for _, a := range br.agents {
		out = append(out, a.Status())
	}
	return out
}

// PredictionStats returns the ledger's counters and pending set.
func (br *Bureau) PredictionStats() models.PredictionStats {
	return br.ledger.Stats()
}

// ActivePatterns returns the city's unexpired patterns.
func (br *Bureau) ActivePatterns() []models.Pattern {
	return br.memory.ActivePatterns()
}

// Hotspots returns the top n locations by rolling incident count.
func (br *Bureau) Hotspots(n int) []models.Hotspot {
	return br.memory.TopHotspots(n)
}

// RecentIncidents returns the newest n incidents.
func (br *Bureau) RecentIncidents(n int) []models.Incident {
	return br.state.RecentIncidents(n)
}

// RecentTranscripts returns the newest n accepted transcripts.
func (br *Bureau) RecentTranscripts(n int) []models.Transcript {
	return br.state.RecentTranscripts(n)
}

// Ask answers a free-form analyst question against this city's recent
// history and active patterns.
func (br *Bureau) Ask(ctx context.Context, question string) (string, error) {
	return br.gateway.Ask(ctx, question, br.state.RecentIncidents(30), br.memory.ActivePatterns(), br.profile)
}

// Briefing produces a situation briefing for this city.
func (br *Bureau) Briefing(ctx context.Context) (string, error) {
	return br.gateway.Briefing(ctx, br.state.RecentIncidents(30), br.memory.ActivePatterns(), br.ledger.Stats(), br.profile)
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
