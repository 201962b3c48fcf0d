// Package drive owns the per-wheel motor state, the brake profiles and the
// safety latch. All methods run on the control loop; the only state touched
// from interrupt context is each wheel's speed.Counter.
package drive

import (
	"time"

	"hubdrive-go/control/pid"
	"hubdrive-go/control/speed"
	"hubdrive-go/types"
	"hubdrive-go/x/timex"
)

// Actuator drives one motor controller channel.
//
// SetDirection selects the drive lines: Forward/Reverse release the brake and
// pick a direction, Stopped engages the brake line, Coasting releases
// everything. SetDuty sets the PWM magnitude.
type Actuator interface {
	SetDirection(d types.Direction)
	SetDuty(duty uint8)
}

type Params struct {
	SoftBrakeTime    time.Duration
	HardBrakePulse   time.Duration
	HeartbeatTimeout time.Duration
	CruiseSpeed      uint8
	// LoadFactor scales the regulator gains each step; 1 disables it.
	LoadFactor float64
}

func DefaultParams() Params {
	return Params{
		SoftBrakeTime:    1000 * time.Millisecond,
		HardBrakePulse:   100 * time.Millisecond,
		HeartbeatTimeout: 2000 * time.Millisecond,
		CruiseSpeed:      150,
		LoadFactor:       1,
	}
}

type WheelConfig struct {
	Estimator speed.Estimator
	Gains     pid.Gains
	Actuator  Actuator
	Counter   *speed.Counter // fed by the edge interrupt; allocated when nil
}

type Wheel struct {
	ID         types.WheelID
	Current    uint8
	Target     uint8
	Direction  types.Direction
	IsBraking  bool
	BrakeStart time.Duration

	Pulses *speed.Counter
	Est    speed.Estimator
	Last   speed.Sample
	PID    *pid.Regulator
	Out    Actuator
}

func (w *Wheel) apply(d types.Direction) {
	w.Direction = d
	w.Out.SetDirection(d)
}

func (w *Wheel) duty(v uint8) {
	w.Current = v
	w.Out.SetDuty(v)
}

type Safety struct {
	EmergencyStop bool
	SoftBrake     bool
	HardBrake     bool
	LinkConnected bool
	LastHeartbeat time.Duration
}

// Machine is the single aggregate of controller state. It is built once at
// startup and handed to every component that reads or changes motion.
type Machine struct {
	Wheels [types.NumWheels]*Wheel
	Safety Safety

	p       Params
	clock   timex.Clock
	lastPID time.Duration
}

// New builds the machine with both wheels coasting and zero duty.
func New(clock timex.Clock, p Params, left, right WheelConfig) *Machine {
	if clock == nil {
		clock = timex.System()
	}
	m := &Machine{p: p, clock: clock, lastPID: clock.Now()}
	for i, wc := range [...]WheelConfig{left, right} {
		id := types.WheelID(i)
		c := wc.Counter
		if c == nil {
			c = &speed.Counter{}
		}
		w := &Wheel{
			ID:     id,
			Pulses: c,
			Est:    wc.Estimator,
			PID:    pid.New(id.String(), wc.Gains),
			Out:    wc.Actuator,
		}
		w.apply(types.Coasting)
		w.duty(0)
		m.Wheels[i] = w
	}
	return m
}

func (m *Machine) Wheel(id types.WheelID) *Wheel { return m.Wheels[id] }

// Counter is the pulse counter the edge interrupt for wheel id must feed.
func (m *Machine) Counter(id types.WheelID) *speed.Counter { return m.Wheels[id].Pulses }

func (m *Machine) Params() Params     { return m.p }
func (m *Machine) Clock() timex.Clock { return m.clock }
func (m *Machine) Latched() bool      { return m.Safety.EmergencyStop }
func (m *Machine) Now() time.Duration { return m.clock.Now() }

func (m *Machine) each(t types.Target, fn func(w *Wheel)) {
	for _, w := range m.Wheels {
		if t.Includes(w.ID) {
			fn(w)
		}
	}
}
