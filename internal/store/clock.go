package store

import "sync/atomic"

// Clock implements CP-2: a monotonic logical clock for mutation
// ordering. Every successful mutation stamps records with a strictly
// increasing seq, so change traces replay in identical order
// regardless of wall time.
//
// Thread-safety: atomic operations, though the store's single-writer
// lock means only one goroutine advances it at a time.
type Clock struct {
	seq atomic.Int64
}

// NewClockAt creates a clock resuming from a known position.
// Used on open to continue from the highest persisted seq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the clock position without advancing it.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
