// services/hal/internal/gpioirq/hall.go
package gpioirq

import (
	"sync"
	"sync/atomic"
	"time"

	"hubdrive-go/control/speed"
	"hubdrive-go/services/hal/internal/halcore"
	"hubdrive-go/x/timex"
)

// MinEdgeGap rejects edges closer than a plausible hall period
// (5000 rpm at 45 ppr is ~267µs between pulses).
const MinEdgeGap = 50 * time.Microsecond

// Hall routes pin interrupts into pulse counters. The handler only reads the
// clock and touches atomics, so it is safe in interrupt context.
type Hall struct {
	clock  timex.Clock
	minGap time.Duration

	mu      sync.Mutex
	watches map[int]*watch // pin number -> watch

	glitches atomic.Uint32
}

type watch struct {
	pin  halcore.IRQPin
	last atomic.Int64
}

func New(clock timex.Clock, minGap time.Duration) *Hall {
	return &Hall{clock: clock, minGap: minGap, watches: map[int]*watch{}}
}

// Register configures pin as a pulled-up input and records every edge of the
// given kind into c.
func (h *Hall) Register(pin halcore.IRQPin, edge halcore.Edge, c *speed.Counter) error {
	if err := pin.ConfigureInput(halcore.PullUp); err != nil {
		return err
	}
	wh := &watch{pin: pin}
	handler := func() {
		now := h.clock.Now()
		if last := time.Duration(wh.last.Load()); last != 0 && now-last < h.minGap {
			h.glitches.Add(1)
			return
		}
		wh.last.Store(int64(now))
		c.Record(now)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.watches[pin.Number()]; ok {
		_ = old.pin.ClearIRQ()
		delete(h.watches, pin.Number())
	}
	if err := pin.SetIRQ(edge, handler); err != nil {
		return err
	}
	h.watches[pin.Number()] = wh
	return nil
}

// Close detaches every registered interrupt.
func (h *Hall) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for n, wh := range h.watches {
		_ = wh.pin.ClearIRQ()
		delete(h.watches, n)
	}
}

// Glitches counts edges dropped for arriving inside MinEdgeGap.
func (h *Hall) Glitches() uint32 { return h.glitches.Load() }
