// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package bureau

import (
	"context"
	"time"

	"github.com/citywatch-project/citywatch/internal/models"
)

// Agent is one detective in the bureau. OnIncident runs inside the
// bureau's serialized event loop for every new incident (after the
// prediction hit check); OnTick runs on the bureau's periodic cycle.
// An agent owns only its own state plus read access to the shared
// Memory.
type Agent interface {
	// Name is the agent's stable identifier used on the bus.
	Name() string

	// Icon is the emblem shown alongside the agent's insights.
	Icon() string

	// OnIncident reacts to a newly accepted incident.
	OnIncident(ctx context.Context, inc *models.Incident, mem *Memory)

	// OnTick runs the agent's periodic work, if any.
	OnTick(ctx context.Context, now time.Time, mem *Memory)

	// Status reports the agent's current activity for the query surface.
	Status() AgentStatus
}

// AgentStatus is one row of the getAgentStatuses query.
type AgentStatus struct {
	Name         string    `json:"name"`
	Icon         string    `json:"icon"`
	Active       bool      `json:"active"`
	Detail       string    `json:"detail,omitempty"`
	LastActivity time.Time `json:"last_activity"`
}

// announcer is how agents publish insights without knowing about the
// bus. The bureau supplies it and attaches city, icon, and timestamps.
type announcer func(agent Agent, incidentID int64, analysis, urgency string)
