package engine

import (
	"sync/atomic"

	"github.com/roach88/poe/internal/registry"
)

// Clock is a monotonic logical clock for journal ordering.
//
// Every journaled call is stamped with a strictly increasing seq number from
// this clock. This ensures:
// - Deterministic ordering (no wall-clock race conditions)
// - Replay produces identical order
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// However, the Engine's single-writer design means only one goroutine
// typically calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used to resume from the last journaled seq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Height is the block height counter handed to the registry as its
// SequenceSource. It only moves forward, except through Set during replay.
type Height struct {
	n atomic.Uint64
}

// NewHeightAt creates a height counter at h.
func NewHeightAt(h uint64) *Height {
	b := &Height{}
	b.n.Store(h)
	return b
}

// Current implements registry.SequenceSource.
func (b *Height) Current() registry.SequenceNumber {
	return registry.SequenceNumber(b.n.Load())
}

// Value returns the height as a plain integer.
func (b *Height) Value() uint64 {
	return b.n.Load()
}

// Advance seals the current block and returns the new height.
func (b *Height) Advance() uint64 {
	return b.n.Add(1)
}

// Set moves the height to h. Replay uses it to reproduce recorded heights.
func (b *Height) Set(h uint64) {
	b.n.Store(h)
}
