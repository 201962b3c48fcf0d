package types

// ------------------------
// Direction
// ------------------------

// Direction is the drive mode of one wheel.
type Direction uint8

const (
	Stopped Direction = iota // brake line engaged, no drive
	Forward
	Reverse
	Coasting // drive removed, brake line released
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "FORWARD"
	case Reverse:
		return "REVERSE"
	case Coasting:
		return "COASTING"
	default:
		return "STOPPED"
	}
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Driving reports whether the direction lines select a drive direction.
func (d Direction) Driving() bool { return d == Forward || d == Reverse }

// ------------------------
// Wheels
// ------------------------

type WheelID uint8

const (
	Left WheelID = iota
	Right
	NumWheels = 2
)

func (w WheelID) String() string {
	if w == Right {
		return "R"
	}
	return "L"
}

// Target selects the wheels a command applies to.
type Target uint8

const (
	TargetBoth Target = iota
	TargetLeft
	TargetRight
)

// Includes reports whether the target covers wheel w.
func (t Target) Includes(w WheelID) bool {
	switch t {
	case TargetLeft:
		return w == Left
	case TargetRight:
		return w == Right
	default:
		return true
	}
}

func (t Target) String() string {
	switch t {
	case TargetLeft:
		return "ML"
	case TargetRight:
		return "MR"
	default:
		return "BOTH"
	}
}

// ------------------------
// Status records
// ------------------------

type WheelStatus struct {
	Wheel     WheelID   `json:"wheel"`
	Direction Direction `json:"direction"`
	Current   uint8     `json:"current"` // 0..255 actuator units
	Target    uint8     `json:"target"`
	RPM       float64   `json:"rpm"`
	MPH       float64   `json:"mph"`
	KPH       float64   `json:"kph"`
	Pulses    uint32    `json:"pulses"` // pulses in the last PID window
	Braking   bool      `json:"braking"`
}

type PIDStatus struct {
	Name        string  `json:"name"`
	Kp          float64 `json:"kp"`
	Ki          float64 `json:"ki"`
	Kd          float64 `json:"kd"`
	MaxIntegral float64 `json:"max_integral"`
	Setpoint    float64 `json:"setpoint"`
	Input       float64 `json:"input"`
	Output      float64 `json:"output"`
	Error       float64 `json:"error"`
	Integral    float64 `json:"integral"`
	Derivative  float64 `json:"derivative"`
}

type SystemStatus struct {
	EmergencyStop bool `json:"emergency_stop"`
	SoftBrake     bool `json:"soft_brake"`
	HardBrake     bool `json:"hard_brake"`
	LinkConnected bool `json:"link_connected"`
}

// Status is the full snapshot answered to a status query and published on drive/status.
type Status struct {
	Wheels [NumWheels]WheelStatus `json:"wheels"`
	PID    [NumWheels]PIDStatus   `json:"pid"`
	System SystemStatus           `json:"system"`
	TSms   int64                  `json:"ts_ms"`
}

// Fault is published on drive/fault when the safety layer trips on its own.
type Fault struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
	TSms   int64  `json:"ts_ms"`
}
