// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package models defines the canonical domain types shared across the
// ingestion-to-intelligence pipeline: feeds, transcripts, incidents,
// patterns, and predictions.
package models

import (
	"time"
)

// FeedKind distinguishes how a source feed delivers audio.
type FeedKind string

const (
	// FeedKindStream is a long-lived streaming connection (radio feed).
	FeedKindStream FeedKind = "stream"

	// FeedKindPoll is an interval-polled call-log API.
	FeedKindPoll FeedKind = "poll"
)

// Feed is one configured external audio source. Static configuration,
// immutable at runtime.
type Feed struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	City        string   `json:"city"`
	Kind        FeedKind `json:"kind"`

	// URL is the stream endpoint for stream feeds, unused for poll feeds.
	URL string `json:"url,omitempty"`

	// Talkgroup is the logical channel within a trunked radio system,
	// reported per call where the source provides it.
	Talkgroup string `json:"talkgroup,omitempty"`
}

// AudioChunk is one bounded-duration unit of buffered audio handed to
// downstream processing. Data is opaque bytes; no transcoding happens here.
type AudioChunk struct {
	FeedID     string        `json:"feed_id"`
	City       string        `json:"city"`
	Data       []byte        `json:"-"`
	Duration   time.Duration `json:"duration"`
	CapturedAt time.Time     `json:"captured_at"`
}

// Transcript is the text of one audio chunk or call. Created once,
// immutable after creation, retained in a bounded per-city ring buffer.
type Transcript struct {
	Text         string    `json:"text"`
	SourceFeedID string    `json:"source_feed_id"`
	City         string    `json:"city"`
	CapturedAt   time.Time `json:"captured_at"`
}

// Incident is a structured record produced by extraction. Immutable once
// created except for annotation fields added downstream by agents.
type Incident struct {
	// ID is strictly increasing per city, assigned by CityState.
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Location  string    `json:"location"`
	Borough   string    `json:"borough,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	Summary   string    `json:"summary"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"created_at"`
	IsArrest  bool      `json:"is_arrest,omitempty"`

	// SourceTranscript is the transcript text the incident was extracted from.
	SourceTranscript string `json:"source_transcript,omitempty"`

	// MatchedPredictionID is set by the prediction hit check when this
	// incident resolved a pending prediction. Annotation only.
	MatchedPredictionID string `json:"matched_prediction_id,omitempty"`
}

// PatternStatus is the lifecycle state of a detected pattern.
type PatternStatus string

const (
	PatternActive  PatternStatus = "active"
	PatternExpired PatternStatus = "expired"
)

// Pattern is a cluster of related incidents identified by the pattern agent.
type Pattern struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Connections       []string      `json:"connections"`
	LinkedIncidentIDs []int64       `json:"linked_incident_ids"`
	Confidence        float64       `json:"confidence"`
	Status            PatternStatus `json:"status"`
	City              string        `json:"city"`
	CreatedAt         time.Time     `json:"created_at"`

	// LastLinkedAt is when an incident was most recently linked; patterns
	// with no new link within the validity window expire.
	LastLinkedAt time.Time `json:"last_linked_at"`
}

// PredictionStatus is the lifecycle state of a prediction. A prediction is
// in exactly one state at any time; hit and expired are terminal.
type PredictionStatus string

const (
	PredictionPending PredictionStatus = "pending"
	PredictionHit     PredictionStatus = "hit"
	PredictionExpired PredictionStatus = "expired"
)

// Prediction is a forecast issued by an agent. Status transitions exactly
// once, to hit (matched by a later incident before expiry) or expired.
type Prediction struct {
	ID           string           `json:"id"`
	Agent        string           `json:"agent"`
	Location     string           `json:"location"`
	Borough      string           `json:"borough,omitempty"`
	IncidentType string           `json:"incident_type"`
	Confidence   float64          `json:"confidence"`
	Reasoning    string           `json:"reasoning,omitempty"`
	City         string           `json:"city"`
	CreatedAt    time.Time        `json:"created_at"`
	ExpiresAt    time.Time        `json:"expires_at"`
	Status       PredictionStatus `json:"status"`

	// MatchedIncidentID is set when the prediction transitions to hit.
	MatchedIncidentID int64 `json:"matched_incident_id,omitempty"`
}

// PredictionStats is a snapshot of the prediction ledger for one city.
// Counters are monotonically non-decreasing.
type PredictionStats struct {
	Total    int          `json:"total"`
	Correct  int          `json:"correct"`
	Accuracy float64      `json:"accuracy"`
	Pending  []Prediction `json:"pending"`
}

// Camera is one entry in a city's static camera directory.
type Camera struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Borough string `json:"borough,omitempty"`

	// LocationKey is the normalized location this camera covers, matched
	// against incident location keys for camera-switch events.
	LocationKey string `json:"location_key"`
}

// Hotspot is a location key with its rolling incident count.
type Hotspot struct {
	LocationKey string `json:"location_key"`
	Borough     string `json:"borough,omitempty"`
	Count       int    `json:"count"`
}
