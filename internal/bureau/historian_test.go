// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package bureau

import (
	"context"
	"testing"

	"github.com/citywatch-project/citywatch/internal/extraction"
	"github.com/citywatch-project/citywatch/internal/geo"
	"github.com/citywatch-project/citywatch/internal/models"
)

func TestExtractDescriptors(t *testing.T) {
	set := extractDescriptors("Male suspect in a RED hoodie with a backpack, tall, fled north")
	for _, want := range []string{"red", "hoodie", "backpack", "tall"} {
		if _, ok := set[want]; !ok {
			t.Errorf("descriptors missing %q", want)
		}
	}
	if len(extractDescriptors("suspicious person seen nearby")) != 0 {
		t.Error("descriptors found in text without any")
	}
}

func TestIntersects(t *testing.T) {
	a := extractDescriptors("red hoodie and a backpack")
	b := extractDescriptors("red hoodie, heading south")
	if !intersects(a, b) {
		t.Error("two shared descriptors should link incidents")
	}

	// One shared color alone is too weak.
	c := extractDescriptors("red sedan parked outside")
	if intersects(a, c) {
		t.Error("single shared descriptor linked incidents")
	}
}

func TestHistorianTriggersOnRepeatLocation(t *testing.T) {
	collector := &collectingAnnouncer{}
	a := NewHistorianAgent(
		extraction.NewGateway(&stubCompleter{response: "Third call to this corner tonight."}),
		geo.Profile("nyc"),
		collector.announce,
	)
	mem := newTestMemory()

	first := &models.Incident{ID: 1, City: "nyc", Location: "125th and Lenox", Summary: "dispute reported"}
	mem.recordIncident(first)
	a.OnIncident(context.Background(), first, mem)
	if got := collector.wait(t, 0); len(got) != 0 {
		t.Fatalf("historian spoke on first incident at a location: %v", got)
	}

	second := &models.Incident{ID: 2, City: "nyc", Location: "125th and Lenox", Summary: "another dispute"}
	mem.recordIncident(second)
	a.OnIncident(context.Background(), second, mem)

	notes := collector.wait(t, 1)
	if len(notes) != 1 {
		t.Fatalf("notes = %d, want 1", len(notes))
	}
	if !a.Status().Active {
		t.Error("historian not active after producing a note")
	}
}
