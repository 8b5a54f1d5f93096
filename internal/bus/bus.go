// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package bus is the event fan-out layer decoupling ingestion from
// downstream consumers. The core is an in-process Watermill Go-channel
// pub/sub, so local subscribers (broadcast gateway, ledger listeners)
// always get best-effort delivery even with no broker reachable. When
// NATS is configured, a Forwarder bridges every channel to JetStream for
// out-of-process consumers.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/citywatch-project/citywatch/internal/metrics"
	"github.com/citywatch-project/citywatch/internal/models"
)

// Named bus channels. Payload shapes are defined in internal/models.
const (
	ChannelIncidents      = "incidents"
	ChannelTranscripts    = "transcripts"
	ChannelCameraSwitches = "camera-switches"
	ChannelAgentInsights  = "agent-insights"
	ChannelPredictions    = "predictions"
	ChannelPredictionHits = "prediction-hits"
)

// Channels returns all named channels, for subscribers that bridge the
// whole bus (broadcast gateway, NATS forwarder).
func Channels() []string {
	return []string{
		ChannelIncidents,
		ChannelTranscripts,
		ChannelCameraSwitches,
		ChannelAgentInsights,
		ChannelPredictions,
		ChannelPredictionHits,
	}
}

// Bus is the in-process pub/sub hub.
type Bus struct {
	local  *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// New creates a Bus backed by a buffered Go-channel pub/sub.
func New() *Bus {
	logger := NewZerologAdapter()
	local := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
		Persistent:          false,
	}, logger)

	return &Bus{local: local, logger: logger}
}

// Publish serializes payload and publishes it on the named channel.
// Delivery to local subscribers is best-effort: a slow subscriber's
// buffer filling up never blocks the ingestion path longer than the
// channel buffer allows.
func (b *Bus) Publish(channel string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", channel, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("channel", channel)
	msg.Metadata.Set("published_at", time.Now().UTC().Format(time.RFC3339Nano))

	if err := b.local.Publish(channel, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", channel, err)
	}
	metrics.BusPublished.WithLabelValues(channel).Inc()
	return nil
}

// Subscribe returns a stream of messages for the named channel. Each
// message must be Acked (or Nacked) by the consumer.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan *message.Message, error) {
	return b.local.Subscribe(ctx, channel)
}

// Close shuts down the in-process pub/sub, closing all subscriber
// channels.
func (b *Bus) Close() error {
	return b.local.Close()
}

// Convenience publishers, one per channel, so call sites stay typed.

// PublishIncident publishes an incident event.
func (b *Bus) PublishIncident(ev models.IncidentEvent) error {
	return b.Publish(ChannelIncidents, ev)
}

// PublishTranscript publishes a transcript event.
func (b *Bus) PublishTranscript(ev models.TranscriptEvent) error {
	return b.Publish(ChannelTranscripts, ev)
}

// PublishCameraSwitch publishes a camera-switch event.
func (b *Bus) PublishCameraSwitch(ev models.CameraSwitchEvent) error {
	return b.Publish(ChannelCameraSwitches, ev)
}

// PublishAgentInsight publishes an agent-insight event.
func (b *Bus) PublishAgentInsight(ev models.AgentInsightEvent) error {
	return b.Publish(ChannelAgentInsights, ev)
}

// PublishPrediction publishes a prediction event.
func (b *Bus) PublishPrediction(ev models.PredictionEvent) error {
	return b.Publish(ChannelPredictions, ev)
}

// PublishPredictionHit publishes a prediction-hit event.
func (b *Bus) PublishPredictionHit(ev models.PredictionHitEvent) error {
	return b.Publish(ChannelPredictionHits, ev)
}
