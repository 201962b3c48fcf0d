// Package actuator drives one wheel's motor controller lines.
package actuator

import (
	"hubdrive-go/errcode"
	"hubdrive-go/services/hal/internal/halcore"
	"hubdrive-go/types"
)

const (
	DirBrakeWiring = "dir_brake"
	HBridgeWiring  = "h_bridge"
)

// DirBrake is a BLDC driver with a PWM speed input, a direction line and an
// active-high brake line (ZS-X11H style).
type DirBrake struct {
	PWM    halcore.PWM
	Dir    halcore.GPIOPin // nil when hard-wired
	Brake  halcore.GPIOPin // nil when hard-wired
	Invert bool
}

func (a *DirBrake) SetDirection(d types.Direction) {
	switch d {
	case types.Forward, types.Reverse:
		set(a.Brake, false)
		set(a.Dir, (d == types.Forward) != a.Invert)
	case types.Stopped:
		set(a.Brake, true)
	default:
		set(a.Brake, false)
	}
}

func (a *DirBrake) SetDuty(v uint8) { a.PWM.Set(v) }

// HBridge is an L298-style bridge: ENA carries PWM, IN1/IN2 select polarity.
// Both inputs low lets the motor run down.
type HBridge struct {
	PWM      halcore.PWM
	In1, In2 halcore.GPIOPin
	Invert   bool
}

func (a *HBridge) SetDirection(d types.Direction) {
	switch d {
	case types.Forward, types.Reverse:
		fwd := (d == types.Forward) != a.Invert
		set(a.In1, fwd)
		set(a.In2, !fwd)
	default:
		set(a.In1, false)
		set(a.In2, false)
	}
}

func (a *HBridge) SetDuty(v uint8) { a.PWM.Set(v) }

func set(p halcore.GPIOPin, level bool) {
	if p != nil {
		p.Set(level)
	}
}

// Lines are the control pins of one wheel; unused entries are nil.
type Lines struct {
	PWM                  halcore.PWM
	Dir, Brake, In1, In2 halcore.GPIOPin
}

// Actuator matches the drive machine's per-wheel output.
type Actuator interface {
	SetDirection(types.Direction)
	SetDuty(uint8)
}

// New builds the actuator for a wiring and parks it: coasting, duty 0.
func New(wiring string, l Lines, invert bool) (Actuator, error) {
	if l.PWM == nil {
		return nil, errcode.New(errcode.InvalidParams, "actuator.new", "missing pwm output")
	}
	var a Actuator
	switch wiring {
	case DirBrakeWiring:
		a = &DirBrake{PWM: l.PWM, Dir: l.Dir, Brake: l.Brake, Invert: invert}
	case HBridgeWiring:
		a = &HBridge{PWM: l.PWM, In1: l.In1, In2: l.In2, Invert: invert}
	default:
		return nil, errcode.New(errcode.InvalidParams, "actuator.new", "unknown wiring '"+wiring+"'")
	}
	a.SetDuty(0)
	a.SetDirection(types.Coasting)
	return a, nil
}
