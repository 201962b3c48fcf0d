// Package hal binds the drive machine to a board: motor actuators, hall
// sensor interrupts and the status LED.
package hal

import (
	"context"
	"strconv"
	"time"

	"hubdrive-go/bus"
	"hubdrive-go/control/speed"
	"hubdrive-go/errcode"
	"hubdrive-go/services/config"
	"hubdrive-go/services/drive"
	"hubdrive-go/services/hal/internal/actuator"
	"hubdrive-go/services/hal/internal/gpioirq"
	"hubdrive-go/services/hal/internal/halcore"
	"hubdrive-go/services/hal/internal/platform"
	"hubdrive-go/types"
	"hubdrive-go/x/timex"
)

// Board is the opened hardware (or simulation) for one controller.
type Board struct {
	Name      string
	Actuators [types.NumWheels]drive.Actuator
	LED       halcore.GPIOPin

	hall  *gpioirq.Hall
	plant *platform.Plant
}

// Open builds the board named by cfg.Board and starts feeding hall edges into
// counters. The "sim" board runs against an in-memory plant.
func Open(cfg config.Config, clock timex.Clock, counters [types.NumWheels]*speed.Counter) (*Board, error) {
	if cfg.Board == "sim" {
		return openSim(cfg, clock, counters)
	}
	return openHardware(cfg, clock, counters)
}

func wheels(cfg config.Config) [types.NumWheels]config.Wheel {
	return [types.NumWheels]config.Wheel{cfg.Left, cfg.Right}
}

func openSim(cfg config.Config, clock timex.Clock, counters [types.NumWheels]*speed.Counter) (*Board, error) {
	ws := wheels(cfg)
	var ppr [types.NumWheels]float64
	var hb [types.NumWheels]bool
	for i, w := range ws {
		ppr[i] = w.PulsesPerRotation
		hb[i] = w.Actuator.Wiring == config.WiringHBridge
	}
	b := &Board{
		Name:  "sim",
		hall:  gpioirq.New(clock, 0),
		plant: platform.NewPlant(clock, ppr, hb),
	}
	for i, w := range ws {
		sw := b.plant.Wheels[i]
		for _, p := range []*platform.SimPin{sw.Dir, sw.Brake, sw.In1, sw.In2} {
			_ = p.ConfigureOutput(false)
		}
		a, err := actuator.New(w.Actuator.Wiring, actuator.Lines{
			PWM: sw.PWM, Dir: sw.Dir, Brake: sw.Brake, In1: sw.In1, In2: sw.In2,
		}, w.Actuator.Invert)
		if err != nil {
			return nil, err
		}
		b.Actuators[i] = a
		if err := b.hall.Register(sw.Hall, halcore.EdgeRising, counters[i]); err != nil {
			return nil, err
		}
	}
	led := platform.NewSimPin(cfg.Indicator.Pin)
	_ = led.ConfigureOutput(false)
	b.LED = led
	return b, nil
}

func openHardware(cfg config.Config, clock timex.Clock, counters [types.NumWheels]*speed.Counter) (*Board, error) {
	pins, err := platform.Pins(cfg.GPIOChip)
	if err != nil {
		return nil, err
	}
	var pwms halcore.PWMFactory
	switch cfg.PWM.Backend {
	case config.PWMPCA9685:
		i2c, err := platform.OpenI2C(cfg.PWM.I2CBus)
		if err != nil {
			return nil, err
		}
		pwms = actuator.NewExpander(i2c, cfg.PWM.Address)
	default:
		if pwms, err = platform.NativePWM(); err != nil {
			return nil, err
		}
	}

	out := func(n int) (halcore.GPIOPin, error) {
		if n < 0 {
			return nil, nil
		}
		p, ok := pins.ByNumber(n)
		if !ok {
			return nil, errcode.New(errcode.InvalidParams, "hal.pin", "no GPIO "+strconv.Itoa(n))
		}
		return p, p.ConfigureOutput(false)
	}

	b := &Board{Name: cfg.Board + "/" + platform.Name, hall: gpioirq.New(clock, gpioirq.MinEdgeGap)}
	for i, w := range wheels(cfg) {
		a := w.Actuator
		var l actuator.Lines
		if l.PWM, err = pwms.PWM(a.PWMPin, a.PWMChannel, cfg.PWM.FrequencyHz); err != nil {
			b.Close()
			return nil, err
		}
		for _, s := range []struct {
			dst *halcore.GPIOPin
			n   int
		}{{&l.Dir, a.DirPin}, {&l.Brake, a.BrakePin}, {&l.In1, a.In1Pin}, {&l.In2, a.In2Pin}} {
			if *s.dst, err = out(s.n); err != nil {
				b.Close()
				return nil, err
			}
		}
		if b.Actuators[i], err = actuator.New(a.Wiring, l, a.Invert); err != nil {
			b.Close()
			return nil, err
		}
		if w.HallPin < 0 {
			println("[hal] no hall pin for wheel", types.WheelID(i).String(), "- speed reads 0")
			continue
		}
		p, ok := pins.ByNumber(w.HallPin)
		irq, isIRQ := p.(halcore.IRQPin)
		if !ok || !isIRQ {
			b.Close()
			return nil, errcode.New(errcode.Unsupported, "hal.hall", "pin "+strconv.Itoa(w.HallPin)+" has no interrupt")
		}
		if err := b.hall.Register(irq, halcore.EdgeRising, counters[i]); err != nil {
			b.Close()
			return nil, err
		}
	}
	if b.LED, err = out(cfg.Indicator.Pin); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Set drives the status LED; a board without one ignores it.
func (b *Board) Set(on bool) {
	if b.LED != nil {
		b.LED.Set(on)
	}
}

// Simulated reports whether the board runs against the in-memory plant.
func (b *Board) Simulated() bool { return b.plant != nil }

// Start runs the simulated plant until ctx is done. Hardware boards need no
// goroutine: edges arrive by interrupt.
func (b *Board) Start(ctx context.Context) {
	if b.plant != nil {
		go b.plant.Run(ctx)
	}
}

// Step advances the simulated plant by hand (tests, lockstep runs).
func (b *Board) Step(dt time.Duration) {
	if b.plant != nil {
		b.plant.Step(dt)
	}
}

// SimRPM is the simulated shaft speed of a wheel.
func (b *Board) SimRPM(w types.WheelID) (float64, bool) {
	if b.plant == nil {
		return 0, false
	}
	return b.plant.Wheels[w].RPM(), true
}

// HallGlitches counts rejected hall edges across both wheels.
func (b *Board) HallGlitches() uint32 { return b.hall.Glitches() }

// Publish announces the board retained on hal/state.
func (b *Board) Publish(conn *bus.Connection, level types.Link, status string) {
	conn.Publish(conn.NewMessage(bus.T("hal", "state"), types.HALState{
		Board: b.Name, Level: level, Status: status, TSms: timex.NowMs(),
	}, true))
}

// Close detaches hall interrupts and parks the actuators.
func (b *Board) Close() {
	if b.hall != nil {
		b.hall.Close()
	}
	for _, a := range b.Actuators {
		if a != nil {
			a.SetDuty(0)
			a.SetDirection(types.Coasting)
		}
	}
}
