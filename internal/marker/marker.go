// Package marker provides sequence-marker sources for the escrow ledger.
// A marker is an external monotonic correlation id, typically a chain
// block height, recorded alongside every history point.
package marker

import "sync/atomic"

// Source supplies the current sequence marker.
type Source interface {
	Current() uint64
}

// Counter is a manually advanced source for tests and simulations.
type Counter struct {
	v atomic.Uint64
}

// NewCounter creates a counter starting at start.
func NewCounter(start uint64) *Counter {
	c := &Counter{}
	c.v.Store(start)
	return c
}

// Current returns the counter value.
func (c *Counter) Current() uint64 { return c.v.Load() }

// Advance increments the counter by n and returns the new value.
func (c *Counter) Advance(n uint64) uint64 { return c.v.Add(n) }

// Set moves the counter forward to v; lower values are ignored so the
// source stays monotonic.
func (c *Counter) Set(v uint64) {
	for {
		cur := c.v.Load()
		if v <= cur || c.v.CompareAndSwap(cur, v) {
			return
		}
	}
}
