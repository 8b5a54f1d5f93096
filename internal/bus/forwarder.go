// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/citywatch-project/citywatch/internal/config"
	"github.com/citywatch-project/citywatch/internal/logging"
	"github.com/citywatch-project/citywatch/internal/metrics"
)

// subjectPrefix namespaces Citywatch subjects on a shared broker.
const subjectPrefix = "citywatch."

// Forwarder bridges the in-process bus to a NATS JetStream broker so
// out-of-process subscribers (dashboard backends, posting bots, ledgers)
// receive the same events. Forwarding is best-effort: broker failures are
// counted and logged, never propagated back into the pipeline.
type Forwarder struct {
	bus    *Bus
	remote message.Publisher

	wg sync.WaitGroup
}

// NewForwarder connects a Watermill NATS publisher with persistent
// reconnection options and returns a Forwarder ready to Serve.
func NewForwarder(b *Bus, cfg config.NATSConfig) (*Forwarder, error) {
	logger := NewZerologAdapter()

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	return &Forwarder{bus: b, remote: pub}, nil
}

// Serve implements suture.Service: subscribes to every bus channel and
// forwards messages until the context is canceled.
func (f *Forwarder) Serve(ctx context.Context) error {
	for _, channel := range Channels() {
		msgs, err := f.bus.Subscribe(ctx, channel)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", channel, err)
		}

		f.wg.Add(1)
		go f.forward(channel, msgs)
	}

	logging.Info().Int("channels", len(Channels())).Msg("bus forwarder started")
	<-ctx.Done()
	f.wg.Wait()

	if err := f.remote.Close(); err != nil {
		logging.Warn().Err(err).Msg("closing NATS publisher")
	}
	return ctx.Err()
}

// forward copies one channel's messages to the broker. Messages are Acked
// even on forward failure: the broker bridge must never back-pressure the
// local pipeline.
func (f *Forwarder) forward(channel string, msgs <-chan *message.Message) {
	defer f.wg.Done()

	subject := subjectPrefix + channel
	for msg := range msgs {
		out := message.NewMessage(msg.UUID, msg.Payload)
		out.Metadata = msg.Metadata

		if err := f.remote.Publish(subject, out); err != nil {
			metrics.BusForwardFailures.WithLabelValues(channel).Inc()
			logging.Warn().Err(err).Str("channel", channel).Msg("failed to forward bus event to broker")
		}
		msg.Ack()
	}
}
