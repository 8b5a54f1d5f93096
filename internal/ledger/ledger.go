// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package ledger tracks every prediction's lifecycle for one city:
// pending until a matching incident arrives before expiry (hit) or the
// expiry passes (expired). Hit and expired are terminal; a prediction
// transitions exactly once.
package ledger

import (
	"strings"
	"sync"
	"time"

	"github.com/citywatch-project/citywatch/internal/geo"
	"github.com/citywatch-project/citywatch/internal/models"
)

// Ledger holds the pending set and the rolling accuracy counters for one
// city. Counters are monotonically non-decreasing and derived purely from
// status transitions, never recomputed from history.
type Ledger struct {
	mu sync.RWMutex

	city    string
	total   int
	correct int

	// pending preserves insertion order so stats and sweeps are
	// deterministic.
	pending []models.Prediction
}

// New creates an empty ledger for a city.
func New(city string) *Ledger {
	return &Ledger{city: city}
}

// Add enters a prediction into the pending set. The status is forced to
// pending; terminal states only ever arise through ResolveIncident/ExpireDue.
func (l *Ledger) Add(p models.Prediction) {
	p.Status = models.PredictionPending
	p.City = l.city

	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, p)
}

// ResolveIncident checks every pending prediction against a new incident.
// Predictions whose expiry has already passed transition to expired;
// otherwise a match (incident type equal, and borough or location key
// equal) transitions the prediction to hit, incrementing total and
// correct exactly once each. Resolved predictions, either way, leave the
// pending set.
//
// This runs before any agent analysis of the incident, so agent
// annotations cannot influence the outcome.
func (l *Ledger) ResolveIncident(inc *models.Incident) (hits, expired []models.Prediction) {
	if inc == nil {
		return nil, nil
	}
	incKey := geo.LocationKey(inc.Location)

	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.pending[:0]
	now := time.Now()

	for _, p := range l.pending {
		if !now.Before(p.ExpiresAt) {
			p.Status = models.PredictionExpired
			expired = append(expired, p)
			continue
		}
		if matches(&p, inc, incKey) {
			p.Status = models.PredictionHit
			p.MatchedIncidentID = inc.ID
			l.total++
			l.correct++
			hits = append(hits, p)
			continue
		}
		remaining = append(remaining, p)
	}
	l.pending = remaining
	return hits, expired
}

// ExpireDue transitions every pending prediction whose expiry has passed
// to expired and removes it from the pending set. Counters are unchanged:
// only hits move the accuracy counters.
func (l *Ledger) ExpireDue(now time.Time) []models.Prediction {
	l.mu.Lock()
	defer l.mu.Unlock()

	var expired []models.Prediction
	remaining := l.pending[:0]
	for _, p := range l.pending {
		if !now.Before(p.ExpiresAt) {
			p.Status = models.PredictionExpired
			expired = append(expired, p)
			continue
		}
		remaining = append(remaining, p)
	}
	l.pending = remaining
	return expired
}

// matches implements the hit rule: incident type equal (case-insensitive)
// and either borough equal or normalized location key equal.
func matches(p *models.Prediction, inc *models.Incident, incKey string) bool {
	if !strings.EqualFold(p.IncidentType, inc.Type) {
		return false
	}
	if p.Borough != "" && strings.EqualFold(p.Borough, inc.Borough) {
		return true
	}
	pKey := geo.LocationKey(p.Location)
	return pKey != "" && pKey == incKey
}

// Stats snapshots the ledger. Accuracy is correct/total, zero when no
// predictions have resolved.
func (l *Ledger) Stats() models.PredictionStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pending := make([]models.Prediction, len(l.pending))
	copy(pending, l.pending)

	return models.PredictionStats{
		Total:    l.total,
		Correct:  l.correct,
		Accuracy: accuracy(l.correct, l.total),
		Pending:  pending,
	}
}

// Accuracy returns the current rolling accuracy.
func (l *Ledger) Accuracy() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return accuracy(l.correct, l.total)
}

// PendingCount returns the size of the pending set.
func (l *Ledger) PendingCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pending)
}

func accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}
