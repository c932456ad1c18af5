package realtime

import "time"

// RateLimiter caps inbound frames per connection over a sliding window.
// It keeps the last limit accepted timestamps in a ring. Only the
// connection's read loop calls it, so it has no lock.
type RateLimiter struct {
	ring   []time.Time
	next   int
	filled bool
	limit  int
	window time.Duration
}

// NewRateLimiter falls back to package defaults for non-positive inputs.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &RateLimiter{ring: make([]time.Time, limit), limit: limit, window: window}
}

// Allow reports whether one more frame at now stays within limit per window,
// and records it if so.
func (r *RateLimiter) Allow(now time.Time) bool {
	// With the ring full, ring[next] is the oldest accepted frame.
	if r.filled && r.ring[r.next].After(now.Add(-r.window)) {
		return false
	}
	r.ring[r.next] = now
	r.next++
	if r.next == r.limit {
		r.next = 0
		r.filled = true
	}
	return true
}
