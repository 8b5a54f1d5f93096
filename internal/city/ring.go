// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package city

// Ring is a fixed-capacity FIFO ring buffer. When full, appending evicts
// the oldest element. Not safe for concurrent use; State serializes
// access.
type Ring[T any] struct {
	buf   []T
	start int
	count int
}

// NewRing creates a ring with the given capacity.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Append adds v, evicting the oldest element when full.
func (r *Ring[T]) Append(v T) {
	idx := (r.start + r.count) % len(r.buf)
	r.buf[idx] = v
	if r.count < len(r.buf) {
		r.count++
		return
	}
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int {
	return r.count
}

// Cap returns the configured bound.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// All returns the stored elements oldest-first.
func (r *Ring[T]) All() []T {
	out := make([]T, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

// Last returns the newest n elements, oldest-first. n larger than the
// stored count returns everything.
func (r *Ring[T]) Last(n int) []T {
	if n > r.count {
		n = r.count
	}
	out := make([]T, 0, n)
	for i := r.count - n; i < r.count; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}
