// Package queue delivers entries from many producers to one background
// consumer that serializes them into an entry stream. Appends never block;
// when the queue is full the oldest entry is evicted so recent data wins.
package queue

import "metricq"

// ring is a fixed-capacity FIFO over entries. Not safe for concurrent use,
// the owning queue serializes access.
type ring struct {
	buf  []metricq.Entry
	head int
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]metricq.Entry, capacity)}
}

// push appends an entry, evicting the oldest when full.
// Params: e entry to store.
// Returns: true when an entry was evicted to make room.
func (r *ring) push(e metricq.Entry) bool {
	if r.size == len(r.buf) {
		r.buf[r.head] = e
		r.head = (r.head + 1) % len(r.buf)
		return true
	}
	r.buf[(r.head+r.size)%len(r.buf)] = e
	r.size++
	return false
}

// pop removes the oldest entry.
// Params: none.
// Returns: entry and true, or false when empty.
func (r *ring) pop() (metricq.Entry, bool) {
	if r.size == 0 {
		return nil, false
	}
	e := r.buf[r.head]
	r.buf[r.head] = nil
	r.head = (r.head + 1) % len(r.buf)
	r.size--
	return e, true
}

func (r *ring) length() int {
	return r.size
}

func (r *ring) capacity() int {
	return len(r.buf)
}
