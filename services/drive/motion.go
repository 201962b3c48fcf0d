package drive

import "hubdrive-go/types"

// SetForward drives the selected wheels forward. It is refused while latched.
func (m *Machine) SetForward(t types.Target) bool { return m.setDirection(t, types.Forward) }

// SetReverse drives the selected wheels in reverse. It is refused while latched.
func (m *Machine) SetReverse(t types.Target) bool { return m.setDirection(t, types.Reverse) }

func (m *Machine) setDirection(t types.Target, d types.Direction) bool {
	if m.Safety.EmergencyStop {
		return false
	}
	m.cancelSoftBrake()
	m.each(t, func(w *Wheel) { w.apply(d) })
	return true
}

// Cruise sets the direction and keeps each wheel's present speed as its target,
// or the cruise speed when the wheel is idle.
func (m *Machine) Cruise(t types.Target, d types.Direction) bool {
	if !m.setDirection(t, d) {
		return false
	}
	m.each(t, func(w *Wheel) {
		if w.Current > 0 {
			w.Target = w.Current
		} else {
			w.Target = m.p.CruiseSpeed
		}
	})
	return true
}

// Stop engages the brake line and zeroes the selected wheels. Allowed while latched.
func (m *Machine) Stop(t types.Target) {
	m.each(t, func(w *Wheel) {
		w.Target = 0
		w.duty(0)
		w.PID.Reset()
		w.apply(types.Stopped)
	})
}

// Coast removes drive without braking. Allowed while latched.
func (m *Machine) Coast(t types.Target) {
	m.each(t, func(w *Wheel) {
		w.Target = 0
		w.duty(0)
		w.PID.Reset()
		w.apply(types.Coasting)
	})
}

// SetSpeed sets the target of the selected wheels, leaving the others alone.
func (m *Machine) SetSpeed(t types.Target, s uint8) bool {
	if m.Safety.EmergencyStop {
		return false
	}
	m.cancelSoftBrake()
	m.each(t, func(w *Wheel) { w.Target = s })
	return true
}

// SetBothSpeed is SetSpeed for both wheels.
func (m *Machine) SetBothSpeed(s uint8) bool { return m.SetSpeed(types.TargetBoth, s) }
