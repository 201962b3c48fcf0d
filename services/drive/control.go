package drive

import (
	"time"

	"hubdrive-go/types"
	"hubdrive-go/x/mathx"
)

// ControlTick runs one PID period: drain the pulse counters, estimate speed
// and, unless latched or soft braking, drive each wheel from its regulator.
func (m *Machine) ControlTick() {
	now := m.clock.Now()
	dt := (now - m.lastPID).Seconds()
	m.lastPID = now

	for _, w := range m.Wheels {
		w.Last = w.Est.Update(w.Pulses, now)

		switch {
		case m.Safety.EmergencyStop:
			w.duty(0)
		case w.IsBraking:
			// the brake tick owns the duty
		case w.Target == 0 && (w.Direction == types.Stopped || w.Direction == types.Coasting):
			w.duty(0)
		default:
			out := w.PID.ComputeAdaptive(float64(w.Target), w.Last.RPM, dt, m.p.LoadFactor)
			w.duty(mathx.DutyU8(out))
		}
	}
}

// SinceControl is the time since the last control tick.
func (m *Machine) SinceControl() time.Duration { return m.clock.Now() - m.lastPID }
