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

// Suspect descriptor vocabularies. Descriptor matching intersects the
// keyword sets extracted from two incidents' free text.
var (
	descriptorColors = []string{
		"black", "white", "red", "blue", "green", "gray", "grey",
		"silver", "tan", "brown", "yellow", "orange",
	}
	descriptorClothing = []string{
		"hoodie", "jacket", "jeans", "sweatshirt", "cap", "hat", "mask",
		"backpack", "sneakers", "coat", "shorts", "vest",
	}
	descriptorTraits = []string{
		"tall", "short", "heavyset", "thin", "beard", "tattoo",
		"glasses", "limp", "bald",
	}
)

// HistorianAgent supplies context: whenever a new incident's location has
// prior history, it gathers matching address history plus recent
// incidents sharing the location or suspect descriptors, and requests a
// short contextual note.
type HistorianAgent struct {
	gateway  *extraction.Gateway
	profile  *geo.CityProfile
	announce announcer

	mu           sync.Mutex
	lastActivity time.Time
	noteCount    int
}

// NewHistorianAgent builds the historian for one city.
func NewHistorianAgent(gateway *extraction.Gateway, profile *geo.CityProfile, announce announcer) *HistorianAgent {
	return &HistorianAgent{gateway: gateway, profile: profile, announce: announce}
}

func (a *HistorianAgent) Name() string { return "historian" }
func (a *HistorianAgent) Icon() string { return "📜" }

// OnIncident triggers when the location has at least one prior
// occurrence in memory.
func (a *HistorianAgent) OnIncident(ctx context.Context, inc *models.Incident, mem *Memory) {
	prior := mem.AddressCount(inc.Location)
	// recordIncident already counted this incident itself.
	if prior <= 1 {
		return
	}

	related := a.relatedIncidents(inc, mem)
	metrics.AgentActivations.WithLabelValues(inc.City, a.Name()).Inc()

	note, err := a.gateway.ContextNote(ctx, inc, prior-1, related, a.profile)
	if err != nil {
		logging.Warn().Err(err).Str("city", inc.City).Int64("incident", inc.ID).Msg("historian note failed")
		return
	}

	a.mu.Lock()
	a.lastActivity = time.Now()
	a.noteCount++
	a.mu.Unlock()

	a.announce(a, inc.ID, note, "normal")
}

// OnTick is a no-op; the historian is purely event-driven.
func (a *HistorianAgent) OnTick(ctx context.Context, now time.Time, mem *Memory) {}

// Status reports recent historian activity.
func (a *HistorianAgent) Status() AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AgentStatus{
		Name:         a.Name(),
		Icon:         a.Icon(),
		Active:       a.noteCount > 0 && time.Since(a.lastActivity) < time.Hour,
		Detail:       "",
		LastActivity: a.lastActivity,
	}
}

// relatedIncidents finds recent incidents sharing the location key or
// intersecting suspect descriptors with the new incident.
func (a *HistorianAgent) relatedIncidents(inc *models.Incident, mem *Memory) []models.Incident {
	key := geo.LocationKey(inc.Location)
	descriptors := extractDescriptors(inc.Summary + " " + inc.SourceTranscript)

	var related []models.Incident
	for _, other := range mem.State().RecentIncidents(50) {
		if other.ID == inc.ID {
			continue
		}
		if key != "" && geo.LocationKey(other.Location) == key {
			related = append(related, other)
			continue
		}
		if len(descriptors) > 0 {
			otherDesc := extractDescriptors(other.Summary + " " + other.SourceTranscript)
			if intersects(descriptors, otherDesc) {
				related = append(related, other)
			}
		}
	}
	if len(related) > 5 {
		related = related[len(related)-5:]
	}
	return related
}

// extractDescriptors pulls the color/clothing/trait keywords present in
// free text.
func extractDescriptors(text string) map[string]struct{} {
	lower := strings.ToLower(text)
	out := make(map[string]struct{})
	for _, vocab := range [][]string{descriptorColors, descriptorClothing, descriptorTraits} {
		for _, word := range vocab {
			if strings.Contains(lower, word) {
				out[word] = struct{}{}
			}
		}
	}
	return out
}

// intersects reports whether two descriptor sets share at least two
// keywords; a single shared color alone is too weak a link.
func intersects(a, b map[string]struct{}) bool {
	shared := 0
	for k := range a {
		if _, ok := b[k]; ok {
			shared++
			if shared >= 2 {
				return true
			}
		}
	}
	return false
}
