// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package filter

import (
	"strings"
	"testing"
)

func TestClassifyAccepts(t *testing.T) {
	cases := []string{
		"Unit 23, respond to a robbery in progress at 125th and Lenox.",
		"Central, we have shots fired at Broadway and 96th, multiple callers.",
		"10-4, suspect in custody, heading back to the precinct with one under.",
	}
	for _, text := range cases {
		res := Classify(text)
		if !res.Accepted {
			t.Errorf("Classify(%q) rejected with %q, want accepted", text, res.Reason)
		}
		if res.DropConnection {
			t.Errorf("Classify(%q) requested reconnect", text)
		}
	}
}

func TestClassifyRejects(t *testing.T) {
	cases := []struct {
		name string
		text string
		want RejectReason
	}{
		{"empty", "", RejectTooShort},
		{"whitespace", "   \n ", RejectTooShort},
		{"too short", "10-4 ok", RejectTooShort},
		{"filler thank you", "Thank you.", RejectFiller},
		{"filler music", "[music]", RejectFiller},
		{"prompt leak", "Transcribe the following police radio audio.", RejectPromptLeak},
		{"prompt leak inaudible", "suspect last seen [inaudible] heading north", RejectPromptLeak},
		{"sign off", "Thanks for watching, see you next time!", RejectSignOff},
		{"advertisement", "This episode is sponsored by our friends, use promo code SCANNER.", RejectAdvertisement},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Classify(tc.text)
			if res.Accepted {
				t.Fatalf("Classify(%q) accepted, want reject %q", tc.text, tc.want)
			}
			if res.Reason != tc.want {
				t.Errorf("reason = %q, want %q", res.Reason, tc.want)
			}
		})
	}
}

func TestClassifyLooping(t *testing.T) {
	looping := strings.TrimSpace(strings.Repeat("copy that copy that ", 15))
	res := Classify(looping)
	if res.Accepted {
		t.Fatal("looping text accepted")
	}
	if res.Reason != RejectLooping {
		t.Fatalf("reason = %q, want looping", res.Reason)
	}
	if !res.DropConnection {
		t.Error("looping rejection did not request reconnect")
	}
}

func TestClassifyShortRepetitionIsFine(t *testing.T) {
	// Repetition is only suspect on long texts; short radio traffic
	// repeats legitimately.
	res := Classify("10-4, 10-4, copy copy, en route")
	if !res.Accepted {
		t.Errorf("short repetitive traffic rejected with %q", res.Reason)
	}
}

func TestClassifyLongSignOffSurvives(t *testing.T) {
	// A sign-off buried in long real traffic is not grounds to reject.
	text := "Suspect fled eastbound on Fulton, units responding, thanks for listening on channel two, K9 en route to the scene now."
	res := Classify(text)
	if !res.Accepted {
		t.Errorf("long mixed text rejected with %q", res.Reason)
	}
}
