// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package extraction is the gateway to the external understanding service
// that turns transcripts into structured incident candidates. The service
// returns free-form text expected to embed one JSON block; this package
// extracts that block defensively and fails soft: a network error, a
// timeout, or a malformed payload all degrade to "no incident" instead of
// propagating into the pipeline.
package extraction

// ResultKind tags the outcome of an extraction call. All call sites must
// handle all three variants.
type ResultKind int

const (
	// Accepted means the service reported an incident and the candidate
	// parsed cleanly.
	Accepted ResultKind = iota

	// Rejected means the service answered but declared no incident, or
	// the call failed in a way that degrades to "no incident".
	Rejected

	// ParseError means the response carried no parseable embedded block.
	ParseError
)

// IncidentCandidate is the structured result of extraction before it is
// accepted into city state.
type IncidentCandidate struct {
	HasIncident  bool   `json:"hasIncident"`
	IncidentType string `json:"incidentType"`
	Location     string `json:"location"`
	Region       string `json:"region"`
	Precinct     string `json:"precinct,omitempty"`
	Priority     string `json:"priority"`
	Summary      string `json:"summary"`
	IsArrest     bool   `json:"isArrest"`
}

// Result is the tagged outcome of one incident extraction.
type Result struct {
	Kind      ResultKind
	Candidate IncidentCandidate

	// Reason explains Rejected and ParseError outcomes for logging.
	Reason string
}

// PatternVerdict is the structured judgment returned by the pattern
// variant of the extraction schema.
type PatternVerdict struct {
	PatternDetected bool     `json:"patternDetected"`
	Name            string   `json:"name"`
	Connections     []string `json:"connections"`
	LinkedIDs       []int64  `json:"linkedIds"`
	Confidence      float64  `json:"confidence"`

	// Prediction is an optional embedded forecast attached to the
	// pattern when the service extrapolates a next occurrence.
	Prediction *Forecast `json:"prediction,omitempty"`
}

// Forecast is one prediction produced by the predictor variant (or
// embedded in a pattern verdict).
type Forecast struct {
	Location      string  `json:"location"`
	Region        string  `json:"region"`
	IncidentType  string  `json:"incidentType"`
	WindowMinutes int     `json:"windowMinutes"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

// forecastList is the predictor variant's response wrapper.
type forecastList struct {
	Forecasts []Forecast `json:"forecasts"`
}
