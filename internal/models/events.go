// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package models

import "time"

// Bus event payloads. One type per named bus channel; the bus serializes
// these with goccy/go-json and downstream consumers (broadcast gateway,
// prediction ledger subscribers, external processes) decode the same shapes.

// IncidentEvent is published on the incidents channel for every accepted
// incident.
type IncidentEvent struct {
	Incident  Incident  `json:"incident"`
	City      string    `json:"city"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptEvent is published on the transcripts channel for every
// transcript that passes the filter, whether or not extraction finds an
// incident in it.
type TranscriptEvent struct {
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	City      string    `json:"city"`
	Timestamp time.Time `json:"timestamp"`
}

// CameraSwitchEvent is published on the camera-switches channel when a new
// incident lands on a location covered by the city's camera directory.
type CameraSwitchEvent struct {
	Camera    Camera    `json:"camera"`
	Reason    string    `json:"reason"`
	Priority  string    `json:"priority"`
	City      string    `json:"city"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentInsightEvent is published on the agent-insights channel when an
// agent produces analysis for an incident.
type AgentInsightEvent struct {
	Agent      string    `json:"agent"`
	AgentIcon  string    `json:"agent_icon"`
	IncidentID int64     `json:"incident_id"`
	Analysis   string    `json:"analysis"`
	Urgency    string    `json:"urgency"`
	City       string    `json:"city"`
	Timestamp  time.Time `json:"timestamp"`
}

// PredictionEvent is published on the predictions channel when a new
// prediction enters the ledger.
type PredictionEvent struct {
	Prediction Prediction `json:"prediction"`
	Timestamp  time.Time  `json:"timestamp"`
}

// PredictionHitEvent is published on the prediction-hits channel when a
// pending prediction is resolved by a matching incident.
type PredictionHitEvent struct {
	Prediction        Prediction `json:"prediction"`
	MatchedIncidentID int64      `json:"matched_incident_id"`
	Accuracy          float64    `json:"accuracy"`
	Timestamp         time.Time  `json:"timestamp"`
}
