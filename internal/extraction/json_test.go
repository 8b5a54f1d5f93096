// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package extraction

import "testing"

func TestFindJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"bare object",
			`{"a": 1}`,
			`{"a": 1}`,
		},
		{
			"prose around object",
			`Sure, here is the analysis: {"hasIncident": true} Hope that helps!`,
			`{"hasIncident": true}`,
		},
		{
			"markdown fence",
			"```json\n{\"a\": 1}\n```",
			`{"a": 1}`,
		},
		{
			"nested objects",
			`answer: {"outer": {"inner": 2}} trailing`,
			`{"outer": {"inner": 2}}`,
		},
		{
			"braces inside strings",
			`{"summary": "suspect wore a {hooded} jacket"}`,
			`{"summary": "suspect wore a {hooded} jacket"}`,
		},
		{
			"escaped quote inside string",
			`{"summary": "said \"stop {now}\" twice"}`,
			`{"summary": "said \"stop {now}\" twice"}`,
		},
		{
			"first of several objects",
			`{"a": 1} and also {"b": 2}`,
			`{"a": 1}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := findJSONObject(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFindJSONObjectErrors(t *testing.T) {
	for _, in := range []string{"", "no json here", `{"unbalanced": true`} {
		if _, err := findJSONObject(in); err == nil {
			t.Errorf("findJSONObject(%q) succeeded, want error", in)
		}
	}
}

func TestExtractJSONBlock(t *testing.T) {
	var candidate IncidentCandidate
	text := "Here you go:\n```json\n" +
		`{"hasIncident": true, "incidentType": "robbery", "location": "125th and Lenox", "region": "Manhattan", "priority": "high", "summary": "robbery in progress", "isArrest": false}` +
		"\n```"
	if err := extractJSONBlock(text, &candidate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !candidate.HasIncident || candidate.IncidentType != "robbery" || candidate.Region != "Manhattan" {
		t.Errorf("candidate = %+v", candidate)
	}

	if err := extractJSONBlock(`{"hasIncident": nope}`, &candidate); err == nil {
		t.Error("invalid JSON parsed without error")
	}
}
