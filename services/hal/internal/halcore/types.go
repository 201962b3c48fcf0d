// services/hal/internal/halcore/types.go
package halcore

import (
	"tinygo.org/x/drivers"
)

// ---- GPIO abstractions ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Number() int
}

// Edge selection for IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// IRQPin extends GPIOPin with interrupts. The handler may run in interrupt
// context and must not block or allocate.
type IRQPin interface {
	GPIOPin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// PinFactory supplies GPIO pins by the board's numbering scheme.
type PinFactory interface {
	ByNumber(n int) (GPIOPin, bool)
}

// ---- PWM ----

// PWM is one duty-cycle output with 8-bit resolution.
type PWM interface {
	Set(duty uint8)
	Duty() uint8
}

// PWMFactory configures an output on a native pin or an expander channel.
type PWMFactory interface {
	PWM(pin, channel int, freqHz uint32) (PWM, error)
}

// ---- Buses ----

// I2C is the TinyGo drivers bus interface, shared by MCU and Linux builds.
type I2C = drivers.I2C

// Scale maps an 8-bit duty onto [0, top].
func Scale(duty uint8, top uint32) uint32 {
	return uint32(duty) * top / 255
}
