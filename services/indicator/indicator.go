// Package indicator drives the status LED from the safety state.
package indicator

import (
	"time"

	"hubdrive-go/bus"
	"hubdrive-go/types"
)

// LED is a single on/off output.
type LED interface {
	Set(on bool)
}

type Mode uint8

const (
	Standalone Mode = iota // slow blink
	Linked                 // solid
	Emergency              // fast blink
	Burst                  // fixed number of flashes, then back to the state mode

	unset Mode = 0xff
)

func (m Mode) String() string {
	switch m {
	case Linked:
		return "linked"
	case Emergency:
		return "emergency"
	case Burst:
		return "burst"
	}
	return "standalone"
}

type Timing struct {
	Slow       time.Duration
	Fast       time.Duration
	BurstStep  time.Duration
	FaultBurst int
	BootBurst  int
}

func DefaultTiming() Timing {
	return Timing{
		Slow:       1000 * time.Millisecond,
		Fast:       200 * time.Millisecond,
		BurstStep:  100 * time.Millisecond,
		FaultBurst: 5,
		BootBurst:  3,
	}
}

// Indicator is polled from the control loop; it never sleeps.
type Indicator struct {
	led LED
	tm  Timing

	on         bool
	lastToggle time.Duration
	mode       Mode

	burstLeft  int // remaining half-cycles
	burstStart bool

	faults *bus.Subscription
}

func New(led LED, tm Timing) *Indicator {
	return &Indicator{led: led, tm: tm, mode: unset}
}

// Attach triggers a fault burst for every message on drive/fault.
func (ind *Indicator) Attach(conn *bus.Connection) {
	ind.faults = conn.Subscribe(bus.T("drive", "fault"))
}

// Flash queues n on/off flashes that preempt the state pattern.
func (ind *Indicator) Flash(n int) {
	if n <= 0 {
		return
	}
	ind.burstLeft = 2 * n
	ind.burstStart = true
}

// Boot queues the startup flash pattern.
func (ind *Indicator) Boot() { ind.Flash(ind.tm.BootBurst) }

func (ind *Indicator) Mode() Mode { return ind.mode }
func (ind *Indicator) On() bool   { return ind.on }

// Update advances the pattern for the current safety state.
func (ind *Indicator) Update(now time.Duration, sys types.SystemStatus) {
	ind.pollFaults()

	if ind.burstLeft > 0 {
		ind.mode = Burst
		if ind.burstStart {
			ind.burstStart = false
			ind.set(now, true)
			ind.burstLeft--
			return
		}
		if now-ind.lastToggle >= ind.tm.BurstStep {
			ind.set(now, !ind.on)
			ind.burstLeft--
		}
		return
	}

	switch {
	case sys.LinkConnected:
		ind.mode = Linked
		if !ind.on {
			ind.set(now, true)
		}
	case sys.EmergencyStop:
		ind.blink(now, Emergency, ind.tm.Fast)
	default:
		ind.blink(now, Standalone, ind.tm.Slow)
	}
}

func (ind *Indicator) blink(now time.Duration, m Mode, period time.Duration) {
	if ind.mode != m {
		ind.mode = m
		ind.set(now, !ind.on)
		return
	}
	if now-ind.lastToggle >= period {
		ind.set(now, !ind.on)
	}
}

func (ind *Indicator) set(now time.Duration, on bool) {
	ind.on = on
	ind.lastToggle = now
	ind.led.Set(on)
}

func (ind *Indicator) pollFaults() {
	if ind.faults == nil {
		return
	}
	for {
		select {
		case m, ok := <-ind.faults.Channel():
			if !ok {
				ind.faults = nil
				return
			}
			if f, ok := m.Payload.(types.Fault); ok {
				println("[indicator] fault:", f.Code)
			}
			ind.Flash(ind.tm.FaultBurst)
		default:
			return
		}
	}
}
