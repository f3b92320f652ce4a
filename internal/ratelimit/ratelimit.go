// Package ratelimit provides once-per-interval gating for diagnostics that
// can fire on every entry of a hot path.
package ratelimit

import (
	"sync/atomic"
	"time"
)

// Limiter allows one event per interval. The zero value is unusable; build
// with New. Safe for concurrent use.
type Limiter struct {
	interval time.Duration
	last     atomic.Int64
}

// New creates a limiter.
// Params: interval minimum spacing between allowed events.
// Returns: limiter instance.
func New(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Allow reports whether an event may fire now.
// Params: none.
// Returns: true at most once per interval.
func (l *Limiter) Allow() bool {
	now := time.Now().UnixNano()
	last := l.last.Load()
	if last != 0 && now-last < int64(l.interval) {
		return false
	}
	return l.last.CompareAndSwap(last, now)
}
