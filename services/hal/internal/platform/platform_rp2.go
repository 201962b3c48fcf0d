//go:build rp2040 || rp2350

package platform

import (
	"machine"
	"sync"

	"hubdrive-go/errcode"
	"hubdrive-go/services/hal/internal/halcore"
)

const Name = "rp2"

// -----------------------------------------------------------------------------
// GPIO (includes IRQ support)
// -----------------------------------------------------------------------------

// Pins maps logical numbers directly to machine.Pin(n) (GP numbering).
func Pins(string) (halcore.PinFactory, error) { return rp2Pins{}, nil }

type rp2Pins struct{}

func (rp2Pins) ByNumber(n int) (halcore.GPIOPin, bool) {
	// Constrain to RP2's user GPIOs (GP0..GP28).
	if n < 0 || n > 28 {
		return nil, false
	}
	return &rp2Pin{p: machine.Pin(n), n: n}, true
}

type rp2Pin struct {
	p machine.Pin
	n int
}

func (r *rp2Pin) ConfigureInput(pull halcore.Pull) error {
	mode := machine.PinInput
	switch pull {
	case halcore.PullUp:
		mode = machine.PinInputPullup
	case halcore.PullDown:
		mode = machine.PinInputPulldown
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }
func (r *rp2Pin) Number() int    { return r.n }

func (r *rp2Pin) SetIRQ(edge halcore.Edge, handler func()) error {
	return r.p.SetInterrupt(toPinChange(edge), func(machine.Pin) { handler() })
}

func (r *rp2Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

func toPinChange(e halcore.Edge) machine.PinChange {
	switch e {
	case halcore.EdgeRising:
		return machine.PinRising
	case halcore.EdgeFalling:
		return machine.PinFalling
	case halcore.EdgeBoth:
		return machine.PinToggle
	default:
		var zero machine.PinChange
		return zero
	}
}

// -----------------------------------------------------------------------------
// PWM
// -----------------------------------------------------------------------------

// Local interface to avoid depending on an unexported concrete type in machine.
type pwmCtrl interface {
	Configure(cfg machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

func pwmGroupBySlice(slice uint8) pwmCtrl {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

// NativePWM drives the RP2 PWM slices. Two pins on one slice must share a
// frequency.
func NativePWM() (halcore.PWMFactory, error) {
	return &rp2PWMs{freq: map[uint8]uint32{}}, nil
}

type rp2PWMs struct {
	mu   sync.Mutex
	freq map[uint8]uint32 // slice -> configured Hz
}

func (f *rp2PWMs) PWM(pin, _ int, freqHz uint32) (halcore.PWM, error) {
	slice, err := machine.PWMPeripheral(machine.Pin(pin))
	if err != nil {
		return nil, errcode.New(errcode.Unsupported, "pwm.native", "pin has no PWM slice")
	}
	ctrl := pwmGroupBySlice(slice)

	f.mu.Lock()
	defer f.mu.Unlock()
	if have, ok := f.freq[slice]; ok {
		if have != freqHz {
			return nil, errcode.New(errcode.InvalidParams, "pwm.native", "slice already runs at another frequency")
		}
	} else {
		if err := ctrl.Configure(machine.PWMConfig{Period: 1e9 / uint64(freqHz)}); err != nil {
			return nil, &errcode.E{C: errcode.Error, Op: "pwm.native", Err: err}
		}
		f.freq[slice] = freqHz
	}
	ch, err := ctrl.Channel(machine.Pin(pin))
	if err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "pwm.native", Err: err}
	}
	return &rp2PWM{ctrl: ctrl, ch: ch}, nil
}

type rp2PWM struct {
	ctrl pwmCtrl
	ch   uint8
	duty uint8
}

func (p *rp2PWM) Set(d uint8) {
	p.ctrl.Set(p.ch, halcore.Scale(d, p.ctrl.Top()))
	p.duty = d
}

func (p *rp2PWM) Duty() uint8 { return p.duty }

// -----------------------------------------------------------------------------
// I²C
// -----------------------------------------------------------------------------

// OpenI2C configures i2c0 or i2c1 on board-default pins at 400 kHz.
func OpenI2C(id string) (halcore.I2C, error) {
	var (
		hw       *machine.I2C
		sda, scl machine.Pin
	)
	switch id {
	case "i2c0":
		hw, sda, scl = machine.I2C0, machine.I2C0_SDA_PIN, machine.I2C0_SCL_PIN
	case "i2c1":
		hw, sda, scl = machine.I2C1, machine.I2C1_SDA_PIN, machine.I2C1_SCL_PIN
	default:
		return nil, errcode.New(errcode.InvalidParams, "i2c.open", "unknown bus '"+id+"'")
	}
	if err := hw.Configure(machine.I2CConfig{Frequency: 400 * machine.KHz, SDA: sda, SCL: scl}); err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "i2c.open", Err: err}
	}
	return hw, nil
}
