package drive

import (
	"hubdrive-go/types"
	"hubdrive-go/x/timex"
)

// Status snapshots wheel, regulator and safety state.
func (m *Machine) Status() types.Status {
	var st types.Status
	for i, w := range m.Wheels {
		st.Wheels[i] = types.WheelStatus{
			Wheel:     w.ID,
			Direction: w.Direction,
			Current:   w.Current,
			Target:    w.Target,
			RPM:       w.Last.RPM,
			MPH:       w.Last.MPH,
			KPH:       w.Last.KPH,
			Pulses:    w.Last.Pulses,
			Braking:   w.IsBraking,
		}
		st.PID[i] = w.PID.Status()
	}
	st.System = m.System()
	st.TSms = timex.Ms(m.clock.Now())
	return st
}

// System is the safety part of Status, without touching the wheels.
func (m *Machine) System() types.SystemStatus {
	return types.SystemStatus{
		EmergencyStop: m.Safety.EmergencyStop,
		SoftBrake:     m.Safety.SoftBrake,
		HardBrake:     m.Safety.HardBrake,
		LinkConnected: m.Safety.LinkConnected,
	}
}
