// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/citywatch-project/citywatch/internal/models"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	b := New()
	t.Cleanup(func() { b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	msgs, err := b.Subscribe(ctx, ChannelIncidents)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	want := models.IncidentEvent{
		Incident: models.Incident{ID: 7, Type: "robbery", Location: "125th and Lenox", City: "nyc"},
		City:     "nyc",
	}
	if err := b.PublishIncident(want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-msgs:
		msg.Ack()
		var got models.IncidentEvent
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if got.Incident.ID != 7 || got.Incident.Type != "robbery" || got.City != "nyc" {
			t.Errorf("got %+v, want %+v", got, want)
		}
		if msg.Metadata.Get("channel") != ChannelIncidents {
			t.Errorf("channel metadata = %q", msg.Metadata.Get("channel"))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}
}

func TestChannelsAreIsolated(t *testing.T) {
	b := New()
	t.Cleanup(func() { b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	transcripts, err := b.Subscribe(ctx, ChannelTranscripts)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.PublishIncident(models.IncidentEvent{City: "nyc"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-transcripts:
		t.Fatalf("incident event leaked onto transcripts channel: %s", msg.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFanOutToMultipleSubscribers(t *testing.T) {
	b := New()
	t.Cleanup(func() { b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	first, err := b.Subscribe(ctx, ChannelPredictions)
	if err != nil {
		t.Fatalf("subscribe first: %v", err)
	}
	second, err := b.Subscribe(ctx, ChannelPredictions)
	if err != nil {
		t.Fatalf("subscribe second: %v", err)
	}

	ev := models.PredictionEvent{
		Prediction: models.Prediction{ID: "pred-1", City: "nyc"},
		Timestamp:  time.Now(),
	}
	if err := b.PublishPrediction(ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for name, ch := range map[string]<-chan *message.Message{"first": first, "second": second} {
		select {
		case msg := <-ch:
			msg.Ack()
			var got models.PredictionEvent
			if err := json.Unmarshal(msg.Payload, &got); err != nil {
				t.Fatalf("%s: decode: %v", name, err)
			}
			if got.Prediction.ID != "pred-1" {
				t.Errorf("%s: prediction id = %q", name, got.Prediction.ID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s subscriber got nothing", name)
		}
	}
}

func TestChannelsListsEveryChannel(t *testing.T) {
	want := map[string]bool{
		ChannelIncidents:      false,
		ChannelTranscripts:    false,
		ChannelCameraSwitches: false,
		ChannelAgentInsights:  false,
		ChannelPredictions:    false,
		ChannelPredictionHits: false,
	}
	for _, ch := range Channels() {
		seen, ok := want[ch]
		if !ok {
			t.Errorf("unexpected channel %q", ch)
		}
		if seen {
			t.Errorf("channel %q listed twice", ch)
		}
		want[ch] = true
	}
	for ch, seen := range want {
		if !seen {
			t.Errorf("channel %q missing", ch)
		}
	}
}
