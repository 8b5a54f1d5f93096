// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package city holds the per-city bounded state shared by the ingestion
// path and the agent orchestrator: incident and transcript ring buffers,
// the monotonic incident id counter, and the camera directory. One State
// exists per configured city, constructed at startup and passed
// explicitly; nothing here is process-global.
package city

import (
	"sync"
	"sync/atomic"

	"github.com/citywatch-project/citywatch/internal/geo"
	"github.com/citywatch-project/citywatch/internal/models"
)

// State is the bounded per-city store. Writes come only from that city's
// serialized orchestrator path; reads may come from any goroutine (the
// intel query surface), so access is guarded.
type State struct {
	name    string
	profile *geo.CityProfile

	mu          sync.RWMutex
	incidents   *Ring[models.Incident]
	transcripts *Ring[models.Transcript]
	cameras     []models.Camera

	// lastID is the monotonic incident id counter. Atomic so id
	// assignment never blocks behind readers holding mu.
	lastID atomic.Int64
}

// Options sizes a city's ring buffers and seeds its camera directory.
type Options struct {
	IncidentRingSize   int
	TranscriptRingSize int
	Cameras            []models.Camera
}

// NewState creates the state for one city. profile may be nil for cities
// without built-in geography.
func NewState(name string, profile *geo.CityProfile, opts Options) *State {
	if opts.IncidentRingSize <= 0 {
		opts.IncidentRingSize = 200
	}
	if opts.TranscriptRingSize <= 0 {
		opts.TranscriptRingSize = 100
	}
	return &State{
		name:        name,
		profile:     profile,
		incidents:   NewRing[models.Incident](opts.IncidentRingSize),
		transcripts: NewRing[models.Transcript](opts.TranscriptRingSize),
		cameras:     opts.Cameras,
	}
}

// Name returns the canonical city key.
func (s *State) Name() string {
	return s.name
}

// Profile returns the city's geography profile, possibly nil.
func (s *State) Profile() *geo.CityProfile {
	return s.profile
}

// NextIncidentID allocates the next id. Strictly increasing per city,
// never reused, safe under concurrent feeds.
func (s *State) NextIncidentID() int64 {
	return s.lastID.Add(1)
}

// AppendIncident appends to the bounded incident ring, evicting the
// oldest when full. The incident must already carry an id from
// NextIncidentID.
func (s *State) AppendIncident(inc models.Incident) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents.Append(inc)
}

// AppendTranscript appends to the bounded transcript ring.
func (s *State) AppendTranscript(t models.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts.Append(t)
}

// RecentIncidents returns the newest n incidents, oldest-first.
func (s *State) RecentIncidents(n int) []models.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.incidents.Last(n)
}

// Incidents returns all retained incidents, oldest-first.
func (s *State) Incidents() []models.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.incidents.All()
}

// RecentTranscripts returns the newest n transcripts, oldest-first.
func (s *State) RecentTranscripts(n int) []models.Transcript {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcripts.Last(n)
}

// IncidentCount returns the number of retained incidents.
func (s *State) IncidentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.incidents.Len()
}

// Cameras returns the static camera directory.
func (s *State) Cameras() []models.Camera {
	return s.cameras
}

// CameraForLocation finds a camera covering the given normalized location
// key. Exact key match; the directory is small and static.
func (s *State) CameraForLocation(locationKey string) (models.Camera, bool) {
	if locationKey == "" {
		return models.Camera{}, false
	}
	for _, cam := range s.cameras {
		if cam.LocationKey == locationKey {
			return cam, true
		}
	}
	return models.Camera{}, false
}
