package drive

import (
	"time"

	"hubdrive-go/types"
)

// EmergencyStop stops both wheels and latches. Repeating it changes nothing.
func (m *Machine) EmergencyStop() {
	m.Stop(types.TargetBoth)
	for _, w := range m.Wheels {
		w.IsBraking = false
	}
	m.Safety.SoftBrake = false
	m.Safety.HardBrake = false
	if !m.Safety.EmergencyStop {
		println("[drive] emergency stop latched")
	}
	m.Safety.EmergencyStop = true
}

// ClearEmergency releases the latch. Wheels stay stopped with zero targets and
// both regulators start from a clean state.
func (m *Machine) ClearEmergency() {
	m.Safety.EmergencyStop = false
	m.Safety.SoftBrake = false
	m.Safety.HardBrake = false
	m.Stop(types.TargetBoth)
	for _, w := range m.Wheels {
		w.IsBraking = false
	}
	println("[drive] emergency cleared")
}

// Heartbeat records a valid supervisory frame. It returns true when the link
// transitions to connected.
func (m *Machine) Heartbeat(now time.Duration) bool {
	m.Safety.LastHeartbeat = now
	if m.Safety.LinkConnected {
		return false
	}
	m.Safety.LinkConnected = true
	println("[drive] supervisory link connected")
	return true
}

// CheckWatchdog trips the emergency stop when a connected link has gone quiet
// for longer than the heartbeat timeout. It returns true on the tripping call.
func (m *Machine) CheckWatchdog(now time.Duration) bool {
	if !m.Safety.LinkConnected || now-m.Safety.LastHeartbeat <= m.p.HeartbeatTimeout {
		return false
	}
	m.EmergencyStop()
	m.Safety.LinkConnected = false
	println("[drive] supervisory link timeout")
	return true
}
