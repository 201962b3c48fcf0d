package speed

import (
	"time"

	"hubdrive-go/errcode"
)

// Method selects how RPM is derived from the edge stream.
type Method uint8

const (
	// Counting divides the pulses seen in a control window by the window length.
	Counting Method = iota
	// Interval uses the time between two edges of a line that toggles twice
	// per electrical cycle.
	Interval
)

func (m Method) String() string {
	if m == Interval {
		return "interval"
	}
	return "counting"
}

// ParseMethod accepts "counting" or "interval"; empty means counting.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "counting":
		return Counting, nil
	case "interval":
		return Interval, nil
	}
	return Counting, errcode.New(errcode.InvalidParams, "speed.method", "unknown sensing method "+s)
}

const (
	// MaxPlausibleRPM is the ceiling above which a reading is treated as noise.
	MaxPlausibleRPM = 5000.0
	// DefaultStallTimeout forces zero speed when no edge arrives for this long.
	DefaultStallTimeout = 500 * time.Millisecond

	inchesPerMile = 63360.0
	cmPerKm       = 100000.0
)

// Sample is one speed estimate.
type Sample struct {
	RPM    float64
	MPH    float64
	KPH    float64
	Pulses uint32 // pulses consumed by this estimate
}

type Estimator struct {
	Method            Method
	PulsesPerRotation float64
	CircumferenceIn   float64
	CircumferenceCm   float64
	StallTimeout      time.Duration

	lastAt time.Duration
	primed bool
}

// Update drains c and produces the estimate for the window ending at now.
// The first call only primes the window start and reports zero.
func (e *Estimator) Update(c *Counter, now time.Duration) Sample {
	pulses := c.Drain()
	window := now - e.lastAt
	first := !e.primed
	e.lastAt, e.primed = now, true

	s := Sample{Pulses: pulses}
	if first || e.PulsesPerRotation <= 0 || e.stalled(c, now) {
		return s
	}

	var rpm float64
	switch e.Method {
	case Interval:
		period := c.Period()
		if period <= 0 {
			return s
		}
		// A toggling line gives one edge per half cycle.
		freq := 1 / (2 * period.Seconds())
		rpm = freq / (e.PulsesPerRotation / 2) * 60
	default:
		if window <= 0 {
			return s
		}
		ms := float64(window) / float64(time.Millisecond)
		rpm = float64(pulses) / e.PulsesPerRotation * (60000 / ms)
	}
	if rpm > MaxPlausibleRPM || rpm < 0 {
		return s
	}
	s.RPM = rpm
	s.MPH, s.KPH = e.Linear(rpm)
	return s
}

func (e *Estimator) stalled(c *Counter, now time.Duration) bool {
	last, ok := c.LastEdge()
	if !ok {
		return true
	}
	timeout := e.StallTimeout
	if timeout <= 0 {
		timeout = DefaultStallTimeout
	}
	return now-last > timeout
}

// Linear converts RPM to road speed using the wheel circumference.
func (e *Estimator) Linear(rpm float64) (mph, kph float64) {
	mph = rpm * e.CircumferenceIn * 60 / inchesPerMile
	kph = rpm * e.CircumferenceCm * 60 / cmPerKm
	return mph, kph
}
