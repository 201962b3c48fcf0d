package platform

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hubdrive-go/services/hal/internal/halcore"
	"hubdrive-go/x/timex"
)

// ----------------------------- GPIO (sim) ------------------------------------

// SimPin implements IRQPin in memory. Set fires the registered handler on a
// matching edge, synchronously, like an interrupt would.
type SimPin struct {
	mu      sync.RWMutex
	number  int
	level   bool
	out     bool
	pull    halcore.Pull
	irqEdge halcore.Edge
	irqFunc func()
}

func NewSimPin(n int) *SimPin { return &SimPin{number: n} }

func (p *SimPin) ConfigureInput(pull halcore.Pull) error {
	p.mu.Lock()
	p.out = false
	p.pull = pull
	if pull == halcore.PullUp {
		p.level = true
	}
	p.mu.Unlock()
	return nil
}

func (p *SimPin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.out = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

func (p *SimPin) Set(level bool) {
	p.mu.Lock()
	old := p.level
	p.level = level
	irq := p.irqFunc
	want := irqWanted(p.irqEdge, edgeFrom(old, level))
	p.mu.Unlock()
	if want && irq != nil {
		irq()
	}
}

func (p *SimPin) Get() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

func (p *SimPin) Number() int { return p.number }

func (p *SimPin) SetIRQ(edge halcore.Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge, p.irqFunc = edge, handler
	p.mu.Unlock()
	return nil
}

func (p *SimPin) ClearIRQ() error {
	p.mu.Lock()
	p.irqEdge, p.irqFunc = halcore.EdgeNone, nil
	p.mu.Unlock()
	return nil
}

func edgeFrom(old, new bool) halcore.Edge {
	switch {
	case !old && new:
		return halcore.EdgeRising
	case old && !new:
		return halcore.EdgeFalling
	default:
		return halcore.EdgeNone
	}
}

func irqWanted(cfg, seen halcore.Edge) bool {
	switch cfg {
	case halcore.EdgeBoth:
		return seen == halcore.EdgeRising || seen == halcore.EdgeFalling
	default:
		return seen != halcore.EdgeNone && cfg == seen
	}
}

// SimPWM stores the last duty written.
type SimPWM struct{ duty atomic.Uint32 }

func (p *SimPWM) Set(d uint8) { p.duty.Store(uint32(d)) }
func (p *SimPWM) Duty() uint8 { return uint8(p.duty.Load()) }

// ----------------------------- Plant (sim) -----------------------------------

const (
	// SimMaxRPM is the free-running speed at full duty.
	SimMaxRPM = 300.0
	// SimLag is the first-order time constant of a simulated wheel.
	SimLag = 150 * time.Millisecond
	// SimStep is the plant integration step used by Run.
	SimStep = 2 * time.Millisecond
)

// SimWheel is one simulated motor with its driver lines and hall sensor.
type SimWheel struct {
	PWM                  *SimPWM
	Dir, Brake, In1, In2 *SimPin
	Hall                 *SimPin

	ppr     float64
	hbridge bool

	rpm float64
	acc float64
}

// Braked reports whether the driver lines short the motor.
func (w *SimWheel) Braked() bool {
	if w.hbridge {
		return false
	}
	return w.Brake.Get()
}

// RPM is the simulated shaft speed.
func (w *SimWheel) RPM() float64 { return w.rpm }

// step integrates dt and returns the number of hall pulses produced.
func (w *SimWheel) step(dt time.Duration) int {
	target := float64(w.PWM.Duty()) / 255 * SimMaxRPM
	lag := SimLag
	if w.Braked() {
		target, lag = 0, SimLag/5
	}
	w.rpm += (target - w.rpm) * float64(dt) / float64(lag+dt)
	if w.rpm < 0.01 {
		w.rpm = 0
	}
	w.acc += w.rpm / 60 * w.ppr * dt.Seconds()
	n := int(w.acc)
	w.acc -= float64(n)
	return n
}

// Plant simulates both wheels, turning commanded duty into hall edges.
type Plant struct {
	mu     sync.Mutex
	clock  timex.Clock
	Wheels [2]*SimWheel
}

// NewPlant builds two wheels; pin numbers are only labels.
func NewPlant(clock timex.Clock, ppr [2]float64, hbridge [2]bool) *Plant {
	p := &Plant{clock: clock}
	for i := range p.Wheels {
		base := 10 * (i + 1)
		p.Wheels[i] = &SimWheel{
			PWM:     &SimPWM{},
			Dir:     NewSimPin(base + 1),
			Brake:   NewSimPin(base + 2),
			In1:     NewSimPin(base + 3),
			In2:     NewSimPin(base + 4),
			Hall:    NewSimPin(base),
			ppr:     ppr[i],
			hbridge: hbridge[i],
		}
	}
	return p
}

// Step advances the plant by dt, pulsing each hall pin once per whole pulse.
func (p *Plant) Step(dt time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.Wheels {
		for n := w.step(dt); n > 0; n-- {
			w.Hall.Set(false)
			w.Hall.Set(true)
		}
	}
}

// Run steps the plant in real time until ctx is done.
func (p *Plant) Run(ctx context.Context) {
	last := p.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.clock.Sleep(SimStep)
		now := p.clock.Now()
		p.Step(now - last)
		last = now
	}
}
