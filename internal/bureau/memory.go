// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package bureau is the per-city agent orchestrator: four cooperating
// agents (pursuit tracker, pattern linker, predictor, historian) sharing
// one bounded memory, driven by incoming incidents and periodic cycles.
// Each city gets its own Bureau; cities never share state.
package bureau

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/citywatch-project/citywatch/internal/city"
	"github.com/citywatch-project/citywatch/internal/geo"
	"github.com/citywatch-project/citywatch/internal/ledger"
	"github.com/citywatch-project/citywatch/internal/models"
)

// Memory is the per-city aggregate the agents share: the city's bounded
// state, rolling hotspot and address-history counts, detected patterns,
// and the prediction ledger. Mutated only from the bureau's serialized
// event loop; read access (the intel query surface) takes the read lock.
type Memory struct {
	mu sync.RWMutex

	state  *city.State
	ledger *ledger.Ledger

	// hotspots counts incidents per normalized location key.
	hotspots map[string]int

	// hotspotBoroughs remembers the borough last seen for a location key,
	// for hotspot reporting.
	hotspotBoroughs map[string]string

	// addressHistory counts incidents per raw lowercased location string.
	addressHistory map[string]int

	patterns []models.Pattern
}

// NewMemory wires memory around an existing city state and ledger.
func NewMemory(state *city.State, led *ledger.Ledger) *Memory {
	return &Memory{
		state:           state,
		ledger:          led,
		hotspots:        make(map[string]int),
		hotspotBoroughs: make(map[string]string),
		addressHistory:  make(map[string]int),
	}
}

// State returns the underlying city state.
func (m *Memory) State() *city.State {
	return m.state
}

// Ledger returns the city's prediction ledger.
func (m *Memory) Ledger() *ledger.Ledger {
	return m.ledger
}

// recordIncident updates the rolling counts for a new incident and
// returns how many prior incidents this location had (the historian's
// trigger input).
func (m *Memory) recordIncident(inc *models.Incident) (prior int) {
	key := geo.LocationKey(inc.Location)
	addr := strings.ToLower(strings.TrimSpace(inc.Location))

	m.mu.Lock()
	defer m.mu.Unlock()

	if key != "" {
		prior = m.hotspots[key]
		m.hotspots[key]++
		if inc.Borough != "" {
			m.hotspotBoroughs[key] = inc.Borough
		}
	}
	if addr != "" {
		m.addressHistory[addr]++
	}
	return prior
}

// AddressCount returns how many incidents have been recorded at the
// given raw location.
func (m *Memory) AddressCount(location string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.addressHistory[strings.ToLower(strings.TrimSpace(location))]
}

// TopHotspots returns the n highest-count hotspots, ranked by count then
// key for determinism.
func (m *Memory) TopHotspots(n int) []models.Hotspot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Hotspot, 0, len(m.hotspots))
	for key, count := range m.hotspots {
		out = append(out, models.Hotspot{
			LocationKey: key,
			Borough:     m.hotspotBoroughs[key],
			Count:       count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].LocationKey < out[j].LocationKey
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// addPattern appends a detected pattern.
func (m *Memory) addPattern(p models.Pattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, p)
}

// touchPattern updates LastLinkedAt and appends newly linked incidents
// for the pattern with the given id.
func (m *Memory) touchPattern(id string, linked []int64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.patterns {
		if m.patterns[i].ID != id {
			continue
		}
		m.patterns[i].LastLinkedAt = at
		existing := make(map[int64]struct{}, len(m.patterns[i].LinkedIncidentIDs))
		for _, lid := range m.patterns[i].LinkedIncidentIDs {
			existing[lid] = struct{}{}
		}
		for _, lid := range linked {
			if _, ok := existing[lid]; !ok {
				m.patterns[i].LinkedIncidentIDs = append(m.patterns[i].LinkedIncidentIDs, lid)
			}
		}
		return
	}
}

// expirePatterns transitions active patterns with no link inside the
// validity window to expired. Returns the newly expired patterns.
func (m *Memory) expirePatterns(now time.Time, validity time.Duration) []models.Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []models.Pattern
	for i := range m.patterns {
		p := &m.patterns[i]
		if p.Status != models.PatternActive {
			continue
		}
		if now.Sub(p.LastLinkedAt) > validity {
			p.Status = models.PatternExpired
			expired = append(expired, *p)
		}
	}
	return expired
}

// ActivePatterns returns the currently active patterns.
func (m *Memory) ActivePatterns() []models.Pattern {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Pattern
	for _, p := range m.patterns {
		if p.Status == models.PatternActive {
			out = append(out, p)
		}
	}
	return out
}

// PatternCount returns how many patterns (any status) are remembered.
func (m *Memory) PatternCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.patterns)
}
