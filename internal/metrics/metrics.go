// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package metrics exposes Prometheus instrumentation for the pipeline:
// stream health, poller activity, dedup/filter outcomes, extraction
// latency, agent cycles, prediction outcomes, and broadcast fan-out.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Stream connector metrics
	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "citywatch_streams_active",
			Help: "Number of stream connections currently open",
		},
	)

	StreamReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_stream_reconnects_total",
			Help: "Total stream reconnects by feed and cause",
		},
		[]string{"feed", "cause"}, // silent, error, ended, dropped
	)

	StreamChunksFlushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_stream_chunks_flushed_total",
			Help: "Audio chunks flushed downstream by feed",
		},
		[]string{"feed"},
	)

	// Call poller metrics
	PollerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_poller_calls_total",
			Help: "Calls fetched from the call-log API by feed",
		},
		[]string{"feed"},
	)

	PollerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_poller_failures_total",
			Help: "Call-log poll failures by feed",
		},
		[]string{"feed"},
	)

	PollerDisabled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_poller_disabled_total",
			Help: "Times a poller fail-stopped after consecutive failures",
		},
		[]string{"feed"},
	)

	// Pipeline metrics
	DedupDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_dedup_drops_total",
			Help: "Units dropped as duplicates by cache kind",
		},
		[]string{"kind"}, // call, transcript
	)

	FilterRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_filter_rejections_total",
			Help: "Transcripts rejected by the filter, by reason",
		},
		[]string{"reason"},
	)

	TranscriptsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_transcripts_accepted_total",
			Help: "Transcripts accepted into the pipeline by city",
		},
		[]string{"city"},
	)

	// Extraction metrics
	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citywatch_extraction_duration_seconds",
			Help:    "Duration of extraction service calls",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 45},
		},
		[]string{"city", "variant"}, // incident, pursuit, pattern, predictor, historian
	)

	ExtractionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_extraction_outcomes_total",
			Help: "Extraction results by outcome",
		},
		[]string{"city", "outcome"}, // accepted, rejected, parse_error, failure
	)

	// Incident and agent metrics
	IncidentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_incidents_created_total",
			Help: "Incidents accepted into city state",
		},
		[]string{"city", "type"},
	)

	AgentActivations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_agent_activations_total",
			Help: "Agent activations by city and agent",
		},
		[]string{"city", "agent"},
	)

	PatternsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_patterns_detected_total",
			Help: "Patterns created by the pattern agent",
		},
		[]string{"city"},
	)

	// Prediction metrics
	PredictionsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_predictions_issued_total",
			Help: "Predictions entered into the ledger",
		},
		[]string{"city", "agent"},
	)

	PredictionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_prediction_outcomes_total",
			Help: "Prediction resolutions by outcome",
		},
		[]string{"city", "outcome"}, // hit, expired
	)

	PredictionAccuracy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citywatch_prediction_accuracy",
			Help: "Rolling prediction accuracy (correct/total) per city",
		},
		[]string{"city"},
	)

	// Bus and broadcast metrics
	BusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_bus_published_total",
			Help: "Events published on the bus by channel",
		},
		[]string{"channel"},
	)

	BusForwardFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citywatch_bus_forward_failures_total",
			Help: "Failures forwarding bus events to the external broker",
		},
		[]string{"channel"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "citywatch_websocket_clients",
			Help: "Connected broadcast clients",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citywatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)
)

// ObserveExtraction records one extraction call's duration and outcome.
func ObserveExtraction(city, variant, outcome string, start time.Time) {
	ExtractionDuration.WithLabelValues(city, variant).Observe(time.Since(start).Seconds())
	ExtractionOutcomes.WithLabelValues(city, outcome).Inc()
}
