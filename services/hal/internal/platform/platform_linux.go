//go:build linux && !rp2040 && !rp2350

package platform

import (
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"

	"hubdrive-go/errcode"
	"hubdrive-go/services/hal/internal/halcore"
)

const Name = "linux"

const consumer = "hubdrive"

// ----------------------------- GPIO (gpiocdev) --------------------------------

// Pins serves lines of one gpiochip by offset.
func Pins(chip string) (halcore.PinFactory, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "gpio.open", Msg: chip, Err: err}
	}
	n := c.Lines()
	_ = c.Close()
	return &cdevPins{chip: chip, lines: n, pins: map[int]*cdevPin{}}, nil
}

type cdevPins struct {
	mu    sync.Mutex
	chip  string
	lines int
	pins  map[int]*cdevPin
}

func (f *cdevPins) ByNumber(n int) (halcore.GPIOPin, bool) {
	if n < 0 || n >= f.lines {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[n]
	if !ok {
		p = &cdevPin{chip: f.chip, n: n}
		f.pins[n] = p
	}
	return p, true
}

// cdevPin requests its line lazily: as an output on ConfigureOutput, as an
// edge-watching input on SetIRQ.
type cdevPin struct {
	mu   sync.Mutex
	chip string
	n    int
	pull halcore.Pull
	line *gpiocdev.Line
}

func (p *cdevPin) Number() int { return p.n }

func (p *cdevPin) release() {
	if p.line != nil {
		_ = p.line.Close()
		p.line = nil
	}
}

func (p *cdevPin) ConfigureInput(pull halcore.Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.release()
	p.pull = pull
	l, err := gpiocdev.RequestLine(p.chip, p.n, gpiocdev.AsInput, biasOption(pull), gpiocdev.WithConsumer(consumer))
	if err != nil {
		return &errcode.E{C: errcode.Error, Op: "gpio.input", Err: err}
	}
	p.line = l
	return nil
}

func (p *cdevPin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.release()
	l, err := gpiocdev.RequestLine(p.chip, p.n, gpiocdev.AsOutput(level(initial)), gpiocdev.WithConsumer(consumer))
	if err != nil {
		return &errcode.E{C: errcode.Error, Op: "gpio.output", Err: err}
	}
	p.line = l
	return nil
}

func (p *cdevPin) Set(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line != nil {
		_ = p.line.SetValue(level(v))
	}
}

func (p *cdevPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return false
	}
	v, err := p.line.Value()
	return err == nil && v != 0
}

// SetIRQ re-requests the line with edge detection. The handler runs on the
// gpiocdev event goroutine.
func (p *cdevPin) SetIRQ(edge halcore.Edge, handler func()) error {
	var eo gpiocdev.LineReqOption
	switch edge {
	case halcore.EdgeRising:
		eo = gpiocdev.WithRisingEdge
	case halcore.EdgeFalling:
		eo = gpiocdev.WithFallingEdge
	case halcore.EdgeBoth:
		eo = gpiocdev.WithBothEdges
	default:
		return p.ClearIRQ()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.release()
	l, err := gpiocdev.RequestLine(p.chip, p.n,
		gpiocdev.AsInput,
		biasOption(p.pull),
		eo,
		gpiocdev.WithConsumer(consumer),
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { handler() }))
	if err != nil {
		return &errcode.E{C: errcode.Error, Op: "gpio.irq", Err: err}
	}
	p.line = l
	return nil
}

func (p *cdevPin) ClearIRQ() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.release()
	return nil
}

func biasOption(p halcore.Pull) gpiocdev.LineReqOption {
	switch p {
	case halcore.PullUp:
		return gpiocdev.WithPullUp
	case halcore.PullDown:
		return gpiocdev.WithPullDown
	default:
		return gpiocdev.WithBiasDisabled
	}
}

func level(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ----------------------------- PWM -------------------------------------------

// NativePWM is unavailable on Linux boards; use the pca9685 backend.
func NativePWM() (halcore.PWMFactory, error) {
	return nil, errcode.New(errcode.Unsupported, "pwm.native", "no native PWM on linux, use pca9685")
}

// ----------------------------- I²C (i2c-dev) ---------------------------------

const ioctlI2CSlave = 0x0703

// OpenI2C opens a /dev/i2c-N adapter as a drivers.I2C bus.
func OpenI2C(path string) (halcore.I2C, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "i2c.open", Msg: path, Err: err}
	}
	return &i2cDev{fd: fd, addr: -1}, nil
}

type i2cDev struct {
	mu   sync.Mutex
	fd   int
	addr int
}

// Tx writes w then reads into r as two transfers.
func (d *i2cDev) Tx(addr uint16, w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(addr) != d.addr {
		if err := unix.IoctlSetInt(d.fd, ioctlI2CSlave, int(addr)); err != nil {
			return err
		}
		d.addr = int(addr)
	}
	if len(w) > 0 {
		if _, err := unix.Write(d.fd, w); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		if _, err := unix.Read(d.fd, r); err != nil {
			return err
		}
	}
	return nil
}
