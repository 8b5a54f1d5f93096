// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package ingest

import (
	"github.com/citywatch-project/citywatch/internal/config"
	"github.com/citywatch-project/citywatch/internal/models"
)

// Manager owns the shared connection-slot pool and one connector per
// stream feed. Connectors beyond the concurrency cap sit in waiting
// until a slot frees; whichever waiter the runtime picks connects next.
type Manager struct {
	connectors []*StreamConnector
	slots      chan struct{}
}

// NewManager builds connectors for every stream feed across all cities.
func NewManager(cities []config.CityConfig, cfg config.StreamConfig, sink ChunkSink) *Manager {
	max := cfg.MaxConcurrent
	if max <= 0 {
		max = 5
	}
	m := &Manager{slots: make(chan struct{}, max)}

	for _, city := range cities {
		for _, fc := range city.Feeds {
			if models.FeedKind(fc.Kind) != models.FeedKindStream {
				continue
			}
			feed := models.Feed{
				ID:          fc.ID,
				DisplayName: fc.DisplayName,
				City:        city.Name,
				Kind:        models.FeedKindStream,
				URL:         fc.URL,
				Talkgroup:   fc.Talkgroup,
			}
			m.connectors = append(m.connectors, NewStreamConnector(feed, cfg, sink, m.slots))
		}
	}
	return m
}

// Connectors returns every connector for supervisor registration.
func (m *Manager) Connectors() []*StreamConnector {
	return m.connectors
}

// Statuses snapshots all feeds for the query surface.
func (m *Manager) Statuses() []FeedStatus {
	out := make([]FeedStatus, 0, len(m.connectors))
	for _, c := range m.connectors {
		out = append(out, c.Status())
	}
	return out
}
