// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package city

import "testing"

func TestRingAppendAndAll(t *testing.T) {
	r := NewRing[int](3)
	if r.Len() != 0 {
		t.Fatalf("empty ring len = %d", r.Len())
	}

	r.Append(1)
	r.Append(2)
	got := r.All()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("All() = %v, want [1 2]", got)
	}
}

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Append(i)
	}
	got := r.All()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	want := []int{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("All()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRingLast(t *testing.T) {
	r := NewRing[string](5)
	for _, s := range []string{"a", "b", "c", "d"} {
		r.Append(s)
	}

	last := r.Last(2)
	if len(last) != 2 || last[0] != "c" || last[1] != "d" {
		t.Errorf("Last(2) = %v, want [c d]", last)
	}

	// Asking for more than stored returns everything.
	if got := r.Last(100); len(got) != 4 {
		t.Errorf("Last(100) len = %d, want 4", len(got))
	}
	if got := r.Last(0); len(got) != 0 {
		t.Errorf("Last(0) len = %d, want 0", len(got))
	}
}
