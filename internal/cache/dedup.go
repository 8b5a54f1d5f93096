// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package cache provides the bounded deduplication structures used by the
// ingestion pipeline. These are best-effort: nothing here is persisted,
// sizes are generous relative to the expected duplicate window.
package cache

import (
	"strings"
	"sync"
)

// dedupEntry is a node in the insertion-ordered list backing DedupSet.
type dedupEntry struct {
	key  string
	prev *dedupEntry
	next *dedupEntry
}

// DedupSet is a thread-safe, insertion-ordered bounded set. When size
// exceeds capacity the oldest entry is evicted. Unlike an LRU, lookups do
// not reorder entries: eviction is strictly oldest-first, which matches
// the duplicate window semantics of overlapping audio chunks.
//
// O(1) Seen, Remember, and eviction via hashmap + doubly-linked list,
// same structure as the LRU variant but without access promotion.
type DedupSet struct {
	mu sync.Mutex

	capacity int
	items    map[string]*dedupEntry

	// head.next is the oldest entry, tail.prev the newest.
	head *dedupEntry
	tail *dedupEntry

	hits   int64
	misses int64
}

// NewDedupSet creates a bounded set with the given capacity.
func NewDedupSet(capacity int) *DedupSet {
	if capacity <= 0 {
		capacity = 500
	}
	s := &DedupSet{
		capacity: capacity,
		items:    make(map[string]*dedupEntry, capacity),
		head:     &dedupEntry{},
		tail:     &dedupEntry{},
	}
	s.head.next = s.tail
	s.tail.prev = s.head
	return s
}

// Seen reports whether key is currently in the set.
func (s *DedupSet) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	if ok {
		s.hits++
	} else {
		s.misses++
	}
	return ok
}

// Remember inserts key, evicting the oldest entry if the set is full.
// Remembering an existing key is a no-op (its position is unchanged).
func (s *DedupSet) Remember(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remember(key)
}

// SeenOrRemember atomically checks and inserts: returns true if the key
// was already present, otherwise inserts it and returns false. This is
// the form the pipeline uses so concurrent feeds cannot both pass the
// check before either inserts.
func (s *DedupSet) SeenOrRemember(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; ok {
		s.hits++
		return true
	}
	s.misses++
	s.remember(key)
	return false
}

// remember inserts key at the tail. Caller must hold mu.
func (s *DedupSet) remember(key string) {
	if _, ok := s.items[key]; ok {
		return
	}

	entry := &dedupEntry{key: key}
	entry.prev = s.tail.prev
	entry.next = s.tail
	s.tail.prev.next = entry
	s.tail.prev = entry
	s.items[key] = entry

	if len(s.items) > s.capacity {
		oldest := s.head.next
		s.head.next = oldest.next
		oldest.next.prev = s.head
		delete(s.items, oldest.key)
	}
}

// Len returns the current number of entries.
func (s *DedupSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Stats returns hit/miss counters since creation.
func (s *DedupSet) Stats() (hits, misses int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses
}

// FingerprintLength is how many normalized characters of a transcript
// form its dedup fingerprint. Long enough to distinguish distinct
// traffic, short enough that re-transcriptions of overlapping chunk
// boundaries collide.
const FingerprintLength = 120

// Fingerprint derives the content fingerprint for a transcript: the first
// FingerprintLength characters, lowercased, whitespace collapsed.
func Fingerprint(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	var b strings.Builder
	b.Grow(FingerprintLength)
	lastSpace := false
	for _, r := range lower {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if lastSpace {
				continue
			}
			lastSpace = true
			r = ' '
		} else {
			lastSpace = false
		}
		b.WriteRune(r)
		if b.Len() >= FingerprintLength {
			break
		}
	}
	return b.String()
}
