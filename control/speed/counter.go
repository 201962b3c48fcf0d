// Package speed turns hall-sensor edges into wheel speed.
package speed

import (
	"sync/atomic"
	"time"
)

// Counter is the only state shared between the edge interrupt and the control
// loop. Record runs in interrupt context; everything else runs on the loop.
type Counter struct {
	pulses   atomic.Uint32
	total    atomic.Uint32
	lastEdge atomic.Int64 // ns since boot, 0 = never
	period   atomic.Int64 // ns between the two most recent edges
}

// Record counts one qualifying edge seen at now. Safe from an ISR: no
// allocation, no locks.
func (c *Counter) Record(now time.Duration) {
	c.pulses.Add(1)
	c.total.Add(1)
	prev := c.lastEdge.Swap(int64(now))
	if prev != 0 && int64(now) > prev {
		c.period.Store(int64(now) - prev)
	}
}

// Drain returns the pulses since the previous Drain and clears the count in one
// atomic step, so an edge landing between the read and the reset is kept.
func (c *Counter) Drain() uint32 { return c.pulses.Swap(0) }

// Pending reads the undrained count without clearing it.
func (c *Counter) Pending() uint32 { return c.pulses.Load() }

// Total is the lifetime edge count.
func (c *Counter) Total() uint32 { return c.total.Load() }

// LastEdge returns the time of the latest edge and whether any was seen.
func (c *Counter) LastEdge() (time.Duration, bool) {
	v := c.lastEdge.Load()
	return time.Duration(v), v != 0
}

// Period is the spacing of the two most recent edges, 0 if unknown.
func (c *Counter) Period() time.Duration { return time.Duration(c.period.Load()) }
