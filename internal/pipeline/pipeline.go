// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package pipeline is the shared audio-to-incident path. Every audio
// chunk, whether it came from a live stream or the call poller, goes
// through the same stages: transcription, fingerprint dedup, the noise
// filter, and incident extraction. Accepted candidates are handed to the
// city's bureau; the pipeline never mutates bureau state itself.
package pipeline

import (
	"context"
	"time"

	"github.com/citywatch-project/citywatch/internal/bureau"
	"github.com/citywatch-project/citywatch/internal/bus"
	"github.com/citywatch-project/citywatch/internal/cache"
	"github.com/citywatch-project/citywatch/internal/city"
	"github.com/citywatch-project/citywatch/internal/extraction"
	"github.com/citywatch-project/citywatch/internal/filter"
	"github.com/citywatch-project/citywatch/internal/geo"
	"github.com/citywatch-project/citywatch/internal/logging"
	"github.com/citywatch-project/citywatch/internal/metrics"
	"github.com/citywatch-project/citywatch/internal/models"
	"github.com/citywatch-project/citywatch/internal/transcribe"
)

// Submitter accepts candidates for one city. *bureau.Bureau satisfies it.
type Submitter interface {
	Submit(ctx context.Context, sub bureau.Submission) error
}

// Route is the per-city destination for pipeline output.
type Route struct {
	State *city.State
	Sink  Submitter
}

// Pipeline processes audio chunks from all feeds. Safe for concurrent
// use: every stage is either stateless or internally locked, so stream
// connectors and the poller share one instance.
type Pipeline struct {
	transcriber transcribe.Transcriber
	dedup       *cache.DedupSet
	gateway     *extraction.Gateway
	bus         *bus.Bus
	routes      map[string]Route
}

// New wires the shared pipeline. routes maps city key to that city's
// state and bureau.
func New(t transcribe.Transcriber, dedup *cache.DedupSet, gateway *extraction.Gateway, b *bus.Bus, routes map[string]Route) *Pipeline {
	return &Pipeline{
		transcriber: t,
		dedup:       dedup,
		gateway:     gateway,
		bus:         b,
		routes:      routes,
	}
}

// ProcessChunk runs one chunk through the full path. The returned flag
// tells a stream connector to drop and reconnect because the audio is
// looping garbage; pollers ignore it.
func (p *Pipeline) ProcessChunk(ctx context.Context, chunk models.AudioChunk) (dropConnection bool) {
	route, ok := p.routes[chunk.City]
	if !ok {
		logging.Warn().Str("city", chunk.City).Str("feed", chunk.FeedID).Msg("chunk for unrouted city dropped")
		return false
	}
	profile := route.State.Profile()

	text, err := p.transcriber.Transcribe(ctx, chunk.Data, vocabulary(profile))
	if err != nil {
		logging.Warn().Err(err).Str("feed", chunk.FeedID).Msg("transcription failed")
		return false
	}
	if text == "" {
		return false
	}

	// Dedup before the filter: repeated traffic is the cheapest thing to
	// drop and the most common.
	if p.dedup.SeenOrRemember(cache.Fingerprint(text)) {
		metrics.DedupDrops.WithLabelValues("transcript").Inc()
		logging.Debug().Str("feed", chunk.FeedID).Msg("duplicate transcript dropped")
		return false
	}

	verdict := filter.Classify(text)
	if !verdict.Accepted {
		metrics.FilterRejections.WithLabelValues(string(verdict.Reason)).Inc()
		logging.Debug().Str("feed", chunk.FeedID).Str("reason", string(verdict.Reason)).Msg("transcript rejected")
		return verdict.DropConnection
	}

	t := models.Transcript{
		Text:         text,
		SourceFeedID: chunk.FeedID,
		City:         chunk.City,
		CapturedAt:   chunk.CapturedAt,
	}
	route.State.AppendTranscript(t)
	metrics.TranscriptsAccepted.WithLabelValues(chunk.City).Inc()

	if err := p.bus.PublishTranscript(models.TranscriptEvent{
		Text:      text,
		Source:    chunk.FeedID,
		City:      chunk.City,
		Timestamp: time.Now(),
	}); err != nil {
		logging.Error().Err(err).Str("city", chunk.City).Msg("publish transcript failed")
	}

	result := p.gateway.ExtractIncident(ctx, text, profile)
	switch result.Kind {
	case extraction.Accepted:
		if err := route.Sink.Submit(ctx, bureau.Submission{Candidate: result.Candidate, Transcript: t}); err != nil {
			logging.Error().Err(err).Str("city", chunk.City).Msg("bureau submission failed")
		}
	case extraction.ParseError:
		logging.Warn().Str("city", chunk.City).Str("reason", result.Reason).Msg("extraction response unparseable")
	case extraction.Rejected:
		logging.Debug().Str("city", chunk.City).Str("reason", result.Reason).Msg("no incident in transcript")
	}
	return false
}

func vocabulary(p *geo.CityProfile) []string {
	if p == nil {
		return nil
	}
	return p.Vocabulary
}
