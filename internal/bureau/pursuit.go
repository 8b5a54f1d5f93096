// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package bureau

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/citywatch-project/citywatch/internal/extraction"
	"github.com/citywatch-project/citywatch/internal/geo"
	"github.com/citywatch-project/citywatch/internal/logging"
	"github.com/citywatch-project/citywatch/internal/metrics"
	"github.com/citywatch-project/citywatch/internal/models"
)

// pursuitKeywords activate the pursuit tracker. Matched against the
// incident's summary and source transcript, case-insensitively.
var pursuitKeywords = []string{
	"pursuit", "fled", "fleeing", "chase", "chasing", "pursuing",
	"rabbit", "foot pursuit", "vehicle pursuit", "evading",
}

// PursuitAgent tracks an active pursuit: on a matching incident it
// requests a tactical analysis seeded with the city's street topology,
// then stands down after the cooldown or when a newer pursuit incident
// supersedes it.
type PursuitAgent struct {
	gateway  *extraction.Gateway
	profile  *geo.CityProfile
	announce announcer
	cooldown time.Duration
	tokenCap int

	mu           sync.Mutex
	activeID     int64
	activatedAt  time.Time
	lastActivity time.Time
}

// NewPursuitAgent builds the pursuit tracker for one city.
func NewPursuitAgent(gateway *extraction.Gateway, profile *geo.CityProfile, announce announcer, cooldown time.Duration, tokenCap int) *PursuitAgent {
	if cooldown <= 0 {
		cooldown = 30 * time.Minute
	}
	if tokenCap <= 0 {
		tokenCap = 350
	}
	return &PursuitAgent{
		gateway:  gateway,
		profile:  profile,
		announce: announce,
		cooldown: cooldown,
		tokenCap: tokenCap,
	}
}

func (a *PursuitAgent) Name() string { return "pursuit" }
func (a *PursuitAgent) Icon() string { return "🚨" }

// OnIncident activates on pursuit keywords. The tactical analysis call
// runs off the event loop; if a newer pursuit supersedes this one before
// the call returns, the late result is discarded rather than applied
// retroactively.
func (a *PursuitAgent) OnIncident(ctx context.Context, inc *models.Incident, mem *Memory) {
	if !isPursuit(inc) {
		return
	}

	a.mu.Lock()
	a.activeID = inc.ID
	a.activatedAt = time.Now()
	a.lastActivity = a.activatedAt
	a.mu.Unlock()

	metrics.AgentActivations.WithLabelValues(inc.City, a.Name()).Inc()
	logging.Info().Str("city", inc.City).Int64("incident", inc.ID).Msg("pursuit tracker activated")

	incCopy := *inc
	go a.analyze(ctx, &incCopy)
}

// analyze requests the tactical read and publishes it only if this
// pursuit is still the active one.
func (a *PursuitAgent) analyze(ctx context.Context, inc *models.Incident) {
	analysis, err := a.gateway.TacticalAnalysis(ctx, inc, a.profile, a.tokenCap)
	if err != nil {
		logging.Warn().Err(err).Str("city", inc.City).Int64("incident", inc.ID).Msg("tactical analysis failed")
		return
	}

	a.mu.Lock()
	superseded := a.activeID != inc.ID
	a.mu.Unlock()
	if superseded {
		logging.Debug().Int64("incident", inc.ID).Msg("discarding tactical analysis for superseded pursuit")
		return
	}

	a.announce(a, inc.ID, analysis, "high")
}

// OnTick deactivates the tracker after the cooldown.
func (a *PursuitAgent) OnTick(ctx context.Context, now time.Time, mem *Memory) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeID != 0 && now.Sub(a.activatedAt) >= a.cooldown {
		logging.Info().Int64("incident", a.activeID).Msg("pursuit tracker cooled down")
		a.activeID = 0
	}
}

// Status reports whether a pursuit is currently tracked.
func (a *PursuitAgent) Status() AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	status := AgentStatus{
		Name:         a.Name(),
		Icon:         a.Icon(),
		Active:       a.activeID != 0,
		LastActivity: a.lastActivity,
	}
	if status.Active {
		status.Detail = "tracking active pursuit"
	}
	return status
}

// isPursuit reports whether the incident text matches the keyword set.
func isPursuit(inc *models.Incident) bool {
	text := strings.ToLower(inc.Summary + " " + inc.SourceTranscript)
	for _, kw := range pursuitKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
