// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package broadcast

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/citywatch-project/citywatch/internal/bus"
	"github.com/citywatch-project/citywatch/internal/logging"
)

// envelope is the wire shape pushed to websocket clients: the bus
// channel name plus the raw event payload.
type envelope struct {
	Channel   string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Bridge subscribes to every bus channel and forwards events to the hub.
type Bridge struct {
	bus *bus.Bus
	hub *Hub
}

// NewBridge connects a bus to a hub.
func NewBridge(b *bus.Bus, hub *Hub) *Bridge {
	return &Bridge{bus: b, hub: hub}
}

// String names the bridge in supervisor logs.
func (br *Bridge) String() string { return "broadcast-bridge" }

// Serve subscribes to all channels and pumps until the context ends.
// Implements suture.Service.
func (br *Bridge) Serve(ctx context.Context) error {
	for _, channel := range bus.Channels() {
		messages, err := br.bus.Subscribe(ctx, channel)
		if err != nil {
			return err
		}
		go br.pump(ctx, channel, messages)
	}
	<-ctx.Done()
	return ctx.Err()
}

// pump forwards one channel's messages to the hub. Messages are always
// acked: the hub's drop policy handles slow consumers, not the bus.
func (br *Bridge) pump(ctx context.Context, channel string, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			env, err := json.Marshal(envelope{
				Channel:   channel,
				Payload:   json.RawMessage(msg.Payload),
				Timestamp: time.Now(),
			})
			if err != nil {
				logging.Error().Err(err).Str("channel", channel).Msg("envelope marshal failed")
			} else {
				br.hub.Broadcast(env)
			}
			msg.Ack()
		}
	}
}
