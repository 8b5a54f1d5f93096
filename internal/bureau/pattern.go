// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package bureau

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/citywatch-project/citywatch/internal/extraction"
	"github.com/citywatch-project/citywatch/internal/geo"
	"github.com/citywatch-project/citywatch/internal/logging"
	"github.com/citywatch-project/citywatch/internal/metrics"
	"github.com/citywatch-project/citywatch/internal/models"
)

// PatternConfig tunes the pattern linker. The thresholds and windows are
// behavioral contract, not implementation detail: downstream consumers
// calibrate against them.
type PatternConfig struct {
	// Window bounds how far back incremental clustering looks.
	Window time.Duration

	// Similarity is the Jaccard word-set threshold for textual matches.
	Similarity float64

	// MinConfidence gates forwarding an embedded prediction.
	MinConfidence float64

	// DeepScanDepth is how many recent incidents the periodic deep scan
	// re-examines.
	DeepScanDepth int

	// Validity is how long a pattern stays active with no new link.
	Validity time.Duration
}

// PatternAgent links related incidents into named patterns. It clusters
// incrementally on every new incident and re-examines recent history on
// a periodic deep scan for clusters the incremental pass missed.
type PatternAgent struct {
	gateway  *extraction.Gateway
	profile  *geo.CityProfile
	announce announcer
	issue    func(f extraction.Forecast, agentName string)
	cfg      PatternConfig

	mu           sync.Mutex
	lastActivity time.Time
}

// NewPatternAgent builds the pattern linker for one city. issue receives
// embedded predictions that clear the confidence gate.
func NewPatternAgent(gateway *extraction.Gateway, profile *geo.CityProfile, announce announcer, issue func(extraction.Forecast, string), cfg PatternConfig) *PatternAgent {
	if cfg.Window <= 0 {
		cfg.Window = 2 * time.Hour
	}
	if cfg.Similarity <= 0 {
		cfg.Similarity = 0.5
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.6
	}
	if cfg.DeepScanDepth <= 0 {
		cfg.DeepScanDepth = 50
	}
	if cfg.Validity <= 0 {
		cfg.Validity = 6 * time.Hour
	}
	return &PatternAgent{
		gateway:  gateway,
		profile:  profile,
		announce: announce,
		issue:    issue,
		cfg:      cfg,
	}
}

func (a *PatternAgent) Name() string { return "pattern" }
func (a *PatternAgent) Icon() string { return "🔗" }

// OnIncident runs the incremental cluster check: the new incident plus
// at least two related incidents inside the window form a candidate
// cluster sent to the extraction service for judgment.
func (a *PatternAgent) OnIncident(ctx context.Context, inc *models.Incident, mem *Memory) {
	peers := a.relatedWithin(inc, mem, a.cfg.Window)
	if len(peers) < 2 {
		return
	}

	// If an active pattern already covers one of the peers, link the new
	// incident instead of judging a fresh cluster.
	if pat, ok := a.matchingActivePattern(peers, mem); ok {
		mem.touchPattern(pat.ID, []int64{inc.ID}, time.Now())
		logging.Debug().Str("pattern", pat.ID).Int64("incident", inc.ID).Msg("linked incident to existing pattern")
		return
	}

	cluster := append(peers, *inc)
	a.judge(ctx, cluster, mem)
}

// OnTick runs the deep scan: re-examine recent incidents for clusters
// the incremental pass missed, and expire stale patterns.
func (a *PatternAgent) OnTick(ctx context.Context, now time.Time, mem *Memory) {
	for _, p := range mem.expirePatterns(now, a.cfg.Validity) {
		logging.Info().Str("pattern", p.ID).Str("name", p.Name).Msg("pattern expired")
	}

	recent := mem.State().RecentIncidents(a.cfg.DeepScanDepth)
	if len(recent) < 3 {
		return
	}

	// Group by incident type; any unpatterned group of three or more
	// inside the deep-scan range is worth a judgment.
	byType := make(map[string][]models.Incident)
	for _, inc := range recent {
		t := strings.ToLower(inc.Type)
		byType[t] = append(byType[t], inc)
	}
	for _, group := range byType {
		if len(group) < 3 {
			continue
		}
		if _, ok := a.matchingActivePattern(group, mem); ok {
			continue
		}
		a.judge(ctx, group, mem)
	}
}

// judge sends a candidate cluster to the extraction service and records
// the verdict. Failures are logged and skipped.
func (a *PatternAgent) judge(ctx context.Context, cluster []models.Incident, mem *Memory) {
	city := cluster[0].City
	metrics.AgentActivations.WithLabelValues(city, a.Name()).Inc()

	verdict, err := a.gateway.JudgePattern(ctx, cluster, a.profile)
	if err != nil {
		logging.Warn().Err(err).Str("city", city).Msg("pattern judgment failed")
		return
	}
	if !verdict.PatternDetected {
		return
	}

	linked := verdict.LinkedIDs
	if len(linked) == 0 {
		for _, inc := range cluster {
			linked = append(linked, inc.ID)
		}
	}

	now := time.Now()
	pattern := models.Pattern{
		ID:                uuid.New().String(),
		Name:              verdict.Name,
		Connections:       verdict.Connections,
		LinkedIncidentIDs: linked,
		Confidence:        verdict.Confidence,
		Status:            models.PatternActive,
		City:              city,
		CreatedAt:         now,
		LastLinkedAt:      now,
	}
	mem.addPattern(pattern)
	metrics.PatternsDetected.WithLabelValues(city).Inc()

	a.mu.Lock()
	a.lastActivity = now
	a.mu.Unlock()

	newest := cluster[len(cluster)-1]
	a.announce(a, newest.ID,
		fmt.Sprintf("Pattern detected: %s (%d linked incidents, confidence %.0f%%)",
			pattern.Name, len(pattern.LinkedIncidentIDs), pattern.Confidence*100),
		"high")

	if verdict.Prediction != nil && verdict.Prediction.Confidence >= a.cfg.MinConfidence {
		a.issue(*verdict.Prediction, a.Name())
	}
}

// relatedWithin returns incidents inside the window that share type,
// region, or textual similarity with inc. inc itself is excluded.
func (a *PatternAgent) relatedWithin(inc *models.Incident, mem *Memory, window time.Duration) []models.Incident {
	cutoff := inc.CreatedAt.Add(-window)

	var related []models.Incident
	for _, other := range mem.State().Incidents() {
		if other.ID == inc.ID || other.CreatedAt.Before(cutoff) {
			continue
		}
		if a.similar(inc, &other) {
			related = append(related, other)
		}
	}
	return related
}

// similar implements the three-way relation: same type, same region, or
// Jaccard similarity over summary word sets above the threshold.
func (a *PatternAgent) similar(x, y *models.Incident) bool {
	if strings.EqualFold(x.Type, y.Type) {
		return true
	}
	if x.Borough != "" && strings.EqualFold(x.Borough, y.Borough) {
		return true
	}
	return jaccard(wordSet(x.Summary), wordSet(y.Summary)) >= a.cfg.Similarity
}

// matchingActivePattern finds an active pattern already linking any of
// the given incidents.
func (a *PatternAgent) matchingActivePattern(incidents []models.Incident, mem *Memory) (models.Pattern, bool) {
	ids := make(map[int64]struct{}, len(incidents))
	for _, inc := range incidents {
		ids[inc.ID] = struct{}{}
	}
	for _, p := range mem.ActivePatterns() {
		for _, lid := range p.LinkedIncidentIDs {
			if _, ok := ids[lid]; ok {
				return p, true
			}
		}
	}
	return models.Pattern{}, false
}

// Status reports recent pattern activity.
func (a *PatternAgent) Status() AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AgentStatus{
		Name:         a.Name(),
		Icon:         a.Icon(),
		Active:       !a.lastActivity.IsZero() && time.Since(a.lastActivity) < a.cfg.Validity,
		LastActivity: a.lastActivity,
	}
}

// wordSet tokenizes text into a lowercase word set.
func wordSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) > 2 {
			out[w] = struct{}{}
		}
	}
	return out
}

// jaccard computes |a∩b| / |a∪b| for two word sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
