package actuator

import (
	"sync"

	"tinygo.org/x/drivers/pca9685"

	"hubdrive-go/errcode"
	"hubdrive-go/services/hal/internal/halcore"
)

// PeriodFromHz converts a PWM frequency to a period in nanoseconds.
func PeriodFromHz(hz uint32) uint64 {
	if hz == 0 {
		hz = 1
	}
	return 1e9 / uint64(hz)
}

// Expander serves PWM channels from a PCA9685 on an I2C bus. All channels
// share one frequency (40..1000 Hz), fixed by the first channel requested.
type Expander struct {
	mu     sync.Mutex
	dev    pca9685.Dev
	freqHz uint32
	ready  bool
}

func NewExpander(bus halcore.I2C, addr uint8) *Expander {
	return &Expander{dev: pca9685.New(bus, addr)}
}

func (e *Expander) configure(freqHz uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		if freqHz != e.freqHz {
			return errcode.New(errcode.InvalidParams, "pca9685.configure", "channels must share one frequency")
		}
		return nil
	}
	if err := e.dev.Configure(pca9685.PWMConfig{Period: PeriodFromHz(freqHz)}); err != nil {
		return &errcode.E{C: errcode.Error, Op: "pca9685.configure", Err: err}
	}
	e.freqHz, e.ready = freqHz, true
	return nil
}

// PWM implements halcore.PWMFactory; pin is ignored.
func (e *Expander) PWM(_ int, channel int, freqHz uint32) (halcore.PWM, error) {
	if channel < 0 || channel > 15 {
		return nil, errcode.New(errcode.InvalidParams, "pca9685.pwm", "channel out of range")
	}
	if err := e.configure(freqHz); err != nil {
		return nil, err
	}
	return &expanderChannel{e: e, ch: uint8(channel)}, nil
}

type expanderChannel struct {
	e    *Expander
	ch   uint8
	duty uint8
}

func (c *expanderChannel) Set(duty uint8) {
	c.e.mu.Lock()
	c.e.dev.Set(c.ch, halcore.Scale(duty, c.e.dev.Top()))
	c.e.mu.Unlock()
	c.duty = duty
}

func (c *expanderChannel) Duty() uint8 { return c.duty }
