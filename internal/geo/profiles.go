// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package geo holds static per-city geography: extraction profiles
// (vocabulary, borough lists, landmarks), the precinct-to-borough table,
// and location key normalization used by hotspot counting and camera
// matching.
package geo

import (
	"strings"
)

// CityProfile carries the city-specific context handed to the extraction
// service: domain vocabulary, administrative subdivisions, and landmarks.
// Profiles are static configuration, immutable at runtime.
type CityProfile struct {
	// Name is the canonical lowercase city key, e.g. "nyc".
	Name string

	// DisplayName is the human-readable city name.
	DisplayName string

	// Boroughs lists the administrative subdivisions used for grouping
	// incidents and predictions.
	Boroughs []string

	// PrecinctBoroughs maps precinct/zone identifiers to boroughs. Used to
	// backfill the borough when extraction reports only a precinct.
	PrecinctBoroughs map[string]string

	// Landmarks lists well-known places fed to extraction as vocabulary.
	Landmarks []string

	// Vocabulary is the radio-domain word list passed to speech-to-text
	// as a recognition hint.
	Vocabulary []string

	// StreetContext is a short street-topology description seeded into
	// pursuit tactical analysis prompts.
	StreetContext string
}

// BoroughForPrecinct resolves a precinct identifier to its borough.
// Returns the empty string when the precinct is unknown.
func (p *CityProfile) BoroughForPrecinct(precinct string) string {
	if p == nil || p.PrecinctBoroughs == nil {
		return ""
	}
	return p.PrecinctBoroughs[normalizeToken(precinct)]
}

// LocationKey normalizes a free-text location into a stable key for
// hotspot counting, address history, and camera matching. Lowercases,
// collapses whitespace, and strips punctuation that varies across
// transcriptions of the same place.
func LocationKey(location string) string {
	lower := strings.ToLower(strings.TrimSpace(location))
	if lower == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(lower))
	lastSpace := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ', r == '\t', r == '/', r == '&', r == ',':
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// builtinProfiles is the static city directory. Additional cities are
// declared in configuration and merged over these at startup.
var builtinProfiles = map[string]*CityProfile{
	"nyc": {
		Name:        "nyc",
		DisplayName: "New York City",
		Boroughs:    []string{"Manhattan", "Brooklyn", "Queens", "Bronx", "Staten Island"},
		PrecinctBoroughs: map[string]string{
			// Manhattan precincts
			"1": "Manhattan", "5": "Manhattan", "6": "Manhattan", "7": "Manhattan",
			"9": "Manhattan", "10": "Manhattan", "13": "Manhattan", "14": "Manhattan",
			"17": "Manhattan", "18": "Manhattan", "19": "Manhattan", "20": "Manhattan",
			"22": "Manhattan", "23": "Manhattan", "24": "Manhattan", "25": "Manhattan",
			"26": "Manhattan", "28": "Manhattan", "30": "Manhattan", "32": "Manhattan",
			"33": "Manhattan", "34": "Manhattan",
			// Bronx precincts
			"40": "Bronx", "41": "Bronx", "42": "Bronx", "43": "Bronx", "44": "Bronx",
			"45": "Bronx", "46": "Bronx", "47": "Bronx", "48": "Bronx", "49": "Bronx",
			"50": "Bronx", "52": "Bronx",
			// Brooklyn precincts
			"60": "Brooklyn", "61": "Brooklyn", "62": "Brooklyn", "63": "Brooklyn",
			"66": "Brooklyn", "67": "Brooklyn", "68": "Brooklyn", "69": "Brooklyn",
			"70": "Brooklyn", "71": "Brooklyn", "72": "Brooklyn", "73": "Brooklyn",
			"75": "Brooklyn", "76": "Brooklyn", "77": "Brooklyn", "78": "Brooklyn",
			"79": "Brooklyn", "81": "Brooklyn", "83": "Brooklyn", "84": "Brooklyn",
			"88": "Brooklyn", "90": "Brooklyn", "94": "Brooklyn",
			// Queens precincts
			"100": "Queens", "101": "Queens", "102": "Queens", "103": "Queens",
			"104": "Queens", "105": "Queens", "106": "Queens", "107": "Queens",
			"108": "Queens", "109": "Queens", "110": "Queens", "111": "Queens",
			"112": "Queens", "113": "Queens", "114": "Queens", "115": "Queens",
			// Staten Island precincts
			"120": "Staten Island", "121": "Staten Island", "122": "Staten Island",
			"123": "Staten Island",
		},
		Landmarks: []string{
			"Times Square", "Central Park", "Port Authority", "Penn Station",
			"Grand Central", "Barclays Center", "Yankee Stadium", "Coney Island",
			"Washington Square Park", "Union Square",
		},
		Vocabulary: []string{
			"precinct", "central", "k", "forthwith", "aided", "perp", "complainant",
			"10-13", "10-85", "shots fired", "likely", "DOA", "EDP", "bus", "level one",
		},
		StreetContext: "Manhattan is a grid: numbered streets run east-west, avenues north-south. FDR Drive runs along the East River, West Side Highway along the Hudson. Bridges and tunnels are natural chokepoints.",
	},
	"chicago": {
		Name:        "chicago",
		DisplayName: "Chicago",
		Boroughs: []string{
			"Central", "North Side", "South Side", "West Side", "Northwest Side",
			"Southwest Side", "Far South Side",
		},
		PrecinctBoroughs: map[string]string{
			"1": "Central", "2": "South Side", "3": "South Side", "4": "Far South Side",
			"5": "Far South Side", "6": "Far South Side", "7": "South Side",
			"8": "Southwest Side", "9": "South Side", "10": "West Side",
			"11": "West Side", "12": "West Side", "14": "Northwest Side",
			"15": "West Side", "16": "Northwest Side", "17": "Northwest Side",
			"18": "Central", "19": "North Side", "20": "North Side",
			"22": "Far South Side", "24": "North Side", "25": "Northwest Side",
		},
		Landmarks: []string{
			"The Loop", "Millennium Park", "Navy Pier", "Wrigley Field",
			"United Center", "Union Station", "Midway", "O'Hare",
		},
		Vocabulary: []string{
			"district", "squad", "event number", "ten-one", "person down",
			"shots fired", "battery in progress", "disturbance",
		},
		StreetContext: "Chicago streets are a grid anchored at State and Madison. Expressways (Dan Ryan, Kennedy, Eisenhower) cut diagonals through the grid; the river and the L tracks constrain crossings downtown.",
	},
}

// Profile returns the built-in profile for a city key, or nil when the
// city has no built-in geography.
func Profile(city string) *CityProfile {
	return builtinProfiles[normalizeToken(city)]
}

// Cities returns the keys of all built-in profiles.
func Cities() []string {
	out := make([]string, 0, len(builtinProfiles))
	for name := range builtinProfiles {
		out = append(out, name)
	}
	return out
}
