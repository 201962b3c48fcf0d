package drive

import (
	"hubdrive-go/types"
	"hubdrive-go/x/ramp"
)

// ActivateSoftBrake starts the decay profile on both wheels.
func (m *Machine) ActivateSoftBrake() bool {
	if m.Safety.EmergencyStop {
		return false
	}
	now := m.clock.Now()
	m.Safety.SoftBrake = true
	m.Safety.HardBrake = false
	for _, w := range m.Wheels {
		w.IsBraking = true
		w.BrakeStart = now
	}
	return true
}

// ActivateHardBrake reverses both wheels for the configured pulse and then
// stops them. It blocks for the pulse; nothing else in the loop sleeps.
func (m *Machine) ActivateHardBrake() bool {
	if m.Safety.EmergencyStop {
		return false
	}
	m.Safety.HardBrake = true
	m.Safety.SoftBrake = false
	for _, w := range m.Wheels {
		w.IsBraking = true
		w.apply(types.Reverse)
	}
	m.clock.Sleep(m.p.HardBrakePulse)

	m.Stop(types.TargetBoth)
	for _, w := range m.Wheels {
		w.IsBraking = false
	}
	m.Safety.HardBrake = false
	return true
}

// UpdateBraking advances the soft brake profile. It returns true on the tick
// that completes the profile.
func (m *Machine) UpdateBraking() bool {
	if !m.Safety.SoftBrake {
		return false
	}
	now := m.clock.Now()
	done := true
	for _, w := range m.Wheels {
		if !w.IsBraking {
			continue
		}
		w.duty(ramp.Quadratic(w.Target, now-w.BrakeStart, m.p.SoftBrakeTime))
		if w.Current != 0 {
			done = false
		}
	}
	if !done {
		return false
	}
	m.cancelSoftBrake()
	m.Stop(types.TargetBoth)
	println("[drive] soft brake complete")
	return true
}

// Braking reports whether wheel w is under a brake profile.
func (m *Machine) Braking(w types.WheelID) bool { return m.Wheels[w].IsBraking }

func (m *Machine) cancelSoftBrake() {
	if !m.Safety.SoftBrake {
		return
	}
	m.Safety.SoftBrake = false
	for _, w := range m.Wheels {
		w.IsBraking = false
	}
}
