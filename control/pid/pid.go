// Package pid implements the per-wheel speed regulator.
package pid

import (
	"hubdrive-go/types"
	"hubdrive-go/x/mathx"
)

// RPMToPWM maps an RPM error into actuator units (255 duty over ~300 RPM).
const RPMToPWM = 255.0 / 300.0

const (
	OutMin = 0.0
	OutMax = 255.0
)

type Gains struct {
	Kp          float64 `yaml:"kp" env:"KP"`
	Ki          float64 `yaml:"ki" env:"KI"`
	Kd          float64 `yaml:"kd" env:"KD"`
	MaxIntegral float64 `yaml:"max_integral" env:"MAX_INTEGRAL"`
}

// Valid reports whether every gain is finite and non-negative.
func (g Gains) Valid() bool {
	for _, v := range [...]float64{g.Kp, g.Ki, g.Kd, g.MaxIntegral} {
		if !mathx.Finite(v) || v < 0 {
			return false
		}
	}
	return true
}

// Regulator is not safe for concurrent use; it is owned by the control loop.
type Regulator struct {
	name  string
	gains Gains

	err, prevErr float64
	integral     float64
	derivative   float64
	output       float64
	setpoint     float64
	input        float64
}

func New(name string, g Gains) *Regulator {
	return &Regulator{name: name, gains: g}
}

func (r *Regulator) Name() string { return r.name }
func (r *Regulator) Gains() Gains { return r.gains }

// Compute runs one regulator step and returns the duty in [0,255].
// dt is in seconds; when dt <= 0 the integral and derivative terms are not advanced.
func (r *Regulator) Compute(setpoint, measured, dt float64) float64 {
	return r.step(setpoint, measured, dt, r.gains.Kp, r.gains.Ki, r.gains.Kd)
}

// ComputeAdaptive is Compute with Kp and Ki scaled by load and Kd by 1/load for
// this step only. Non-positive or non-finite load counts as 1.
func (r *Regulator) ComputeAdaptive(setpoint, measured, dt, load float64) float64 {
	if !mathx.Finite(load) || load <= 0 {
		load = 1
	}
	g := r.gains
	return r.step(setpoint, measured, dt, g.Kp*load, g.Ki*load, g.Kd/load)
}

func (r *Regulator) step(setpoint, measured, dt, kp, ki, kd float64) float64 {
	r.setpoint = setpoint
	r.input = measured
	r.err = (setpoint - measured) * RPMToPWM

	p := kp * r.err

	if dt > 0 {
		r.integral += r.err * dt
		r.integral = mathx.Clamp(r.integral, -r.gains.MaxIntegral, r.gains.MaxIntegral)
		r.derivative = (r.err - r.prevErr) / dt
	} else {
		r.derivative = 0
	}
	i := ki * r.integral
	d := kd * r.derivative

	r.prevErr = r.err

	out := p + i + d
	if !mathx.Finite(out) {
		out = 0
	}
	r.output = mathx.Clamp(out, OutMin, OutMax)
	return r.output
}

// Tune replaces the gains and drops the accumulated integral.
func (r *Regulator) Tune(g Gains) {
	r.gains = g
	r.integral = 0
}

// Reset zeroes all dynamic state, keeping the gains.
func (r *Regulator) Reset() {
	r.err, r.prevErr = 0, 0
	r.integral, r.derivative = 0, 0
	r.output = 0
	r.setpoint, r.input = 0, 0
}

func (r *Regulator) Output() float64   { return r.output }
func (r *Regulator) Integral() float64 { return r.integral }

func (r *Regulator) Status() types.PIDStatus {
	return types.PIDStatus{
		Name:        r.name,
		Kp:          r.gains.Kp,
		Ki:          r.gains.Ki,
		Kd:          r.gains.Kd,
		MaxIntegral: r.gains.MaxIntegral,
		Setpoint:    r.setpoint,
		Input:       r.input,
		Output:      r.output,
		Error:       r.err,
		Integral:    r.integral,
		Derivative:  r.derivative,
	}
}
