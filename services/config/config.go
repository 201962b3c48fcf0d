// Package config holds the controller configuration, its per-board defaults
// and validation.
package config

import (
	"strconv"
	"time"

	"hubdrive-go/bus"
	"hubdrive-go/control/pid"
	"hubdrive-go/control/speed"
	"hubdrive-go/errcode"
	"hubdrive-go/services/link"
)

const EnvPrefix = "HUBDRIVE_"

// Actuator wirings of the two controller revisions.
const (
	WiringDirBrake = "dir_brake" // PWM + DIR + BRK lines
	WiringHBridge  = "h_bridge"  // ENA PWM + IN1/IN2
)

// PWM backends.
const (
	PWMNative  = "native"  // MCU PWM peripheral or simulated pin
	PWMPCA9685 = "pca9685" // external I2C PWM expander
)

type Config struct {
	Board string `yaml:"board" env:"BOARD"`

	Drive     Drive     `yaml:"drive" envPrefix:"DRIVE_"`
	Left      Wheel     `yaml:"left" envPrefix:"LEFT_"`
	Right     Wheel     `yaml:"right" envPrefix:"RIGHT_"`
	PWM       PWM       `yaml:"pwm" envPrefix:"PWM_"`
	Indicator Indicator `yaml:"indicator" envPrefix:"LED_"`
	GPIOChip  string    `yaml:"gpio_chip" env:"GPIO_CHIP"`

	Console     link.Config `yaml:"console" envPrefix:"CONSOLE_"`
	Supervisory link.Config `yaml:"supervisory" envPrefix:"SUPER_"`
	Buffers     Buffers     `yaml:"buffers" envPrefix:"BUF_"`
}

type Drive struct {
	PID              pid.Gains     `yaml:"pid" envPrefix:"PID_"`
	LoadFactor       float64       `yaml:"load_factor" env:"LOAD_FACTOR"`
	PIDPeriod        time.Duration `yaml:"pid_period" env:"PID_PERIOD"`
	BrakePeriod      time.Duration `yaml:"brake_period" env:"BRAKE_PERIOD"`
	TelemetryPeriod  time.Duration `yaml:"telemetry_period" env:"TELEMETRY_PERIOD"`
	StreamPeriod     time.Duration `yaml:"stream_period" env:"STREAM_PERIOD"` // 0 = off
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout" env:"HEARTBEAT_TIMEOUT"`
	SoftBrakeTime    time.Duration `yaml:"soft_brake_time" env:"SOFT_BRAKE_TIME"`
	HardBrakePulse   time.Duration `yaml:"hard_brake_pulse" env:"HARD_BRAKE_PULSE"`
	CruiseSpeed      uint8         `yaml:"cruise_speed" env:"CRUISE_SPEED"`
}

type Wheel struct {
	PulsesPerRotation float64       `yaml:"ppr" env:"PPR"`
	CircumferenceIn   float64       `yaml:"circumference_in" env:"CIRCUMFERENCE_IN"`
	CircumferenceCm   float64       `yaml:"circumference_cm" env:"CIRCUMFERENCE_CM"`
	Method            string        `yaml:"method" env:"METHOD"` // counting | interval
	StallTimeout      time.Duration `yaml:"stall_timeout" env:"STALL_TIMEOUT"`
	HallPin           int           `yaml:"hall_pin" env:"HALL_PIN"`
	Actuator          Actuator      `yaml:"actuator" envPrefix:"ACT_"`
}

// Actuator pins. Unused pins are -1.
type Actuator struct {
	Wiring     string `yaml:"wiring" env:"WIRING"`
	PWMPin     int    `yaml:"pwm_pin" env:"PWM_PIN"`
	PWMChannel int    `yaml:"pwm_channel" env:"PWM_CHANNEL"` // pca9685 backend
	DirPin     int    `yaml:"dir_pin" env:"DIR_PIN"`
	BrakePin   int    `yaml:"brake_pin" env:"BRAKE_PIN"`
	In1Pin     int    `yaml:"in1_pin" env:"IN1_PIN"`
	In2Pin     int    `yaml:"in2_pin" env:"IN2_PIN"`
	Invert     bool   `yaml:"invert" env:"INVERT"` // swap forward and reverse
}

type PWM struct {
	Backend     string `yaml:"backend" env:"BACKEND"`
	FrequencyHz uint32 `yaml:"frequency_hz" env:"FREQUENCY_HZ"`
	I2CBus      string `yaml:"i2c_bus" env:"I2C_BUS"`
	Address     uint8  `yaml:"address" env:"ADDRESS"`
}

type Indicator struct {
	Pin        int           `yaml:"pin" env:"PIN"`
	Slow       time.Duration `yaml:"slow" env:"SLOW"`
	Fast       time.Duration `yaml:"fast" env:"FAST"`
	BurstStep  time.Duration `yaml:"burst_step" env:"BURST_STEP"`
	FaultBurst int           `yaml:"fault_burst" env:"FAULT_BURST"`
	BootBurst  int           `yaml:"boot_burst" env:"BOOT_BURST"`
}

type Buffers struct {
	RingSize int `yaml:"ring_size" env:"RING_SIZE"` // power of two
	OutQueue int `yaml:"out_queue" env:"OUT_QUEUE"`
	MaxLine  int `yaml:"max_line" env:"MAX_LINE"`
}

func unusedActuator() Actuator {
	return Actuator{PWMPin: -1, PWMChannel: -1, DirPin: -1, BrakePin: -1, In1Pin: -1, In2Pin: -1}
}

// Default is the bench configuration: simulated board, stock wheel calibration.
func Default() Config {
	wheel := func(ppr float64, hall int) Wheel {
		a := unusedActuator()
		a.Wiring = WiringDirBrake
		return Wheel{
			PulsesPerRotation: ppr,
			CircumferenceIn:   22.25,
			CircumferenceCm:   56.5,
			Method:            speed.Counting.String(),
			StallTimeout:      speed.DefaultStallTimeout,
			HallPin:           hall,
			Actuator:          a,
		}
	}
	c := Config{
		Board: "sim",
		Drive: Drive{
			PID:              pid.Gains{Kp: 0.15, Ki: 0.7, Kd: 0.001, MaxIntegral: 50},
			LoadFactor:       1,
			PIDPeriod:        20 * time.Millisecond,
			BrakePeriod:      30 * time.Millisecond,
			TelemetryPeriod:  500 * time.Millisecond,
			HeartbeatTimeout: 2000 * time.Millisecond,
			SoftBrakeTime:    1000 * time.Millisecond,
			HardBrakePulse:   100 * time.Millisecond,
			CruiseSpeed:      150,
		},
		Left:  wheel(44, -1),
		Right: wheel(45, -1),
		PWM:   PWM{Backend: PWMNative, FrequencyHz: 1000, I2CBus: "/dev/i2c-1", Address: 0x40},
		Indicator: Indicator{
			Pin:        -1,
			Slow:       1000 * time.Millisecond,
			Fast:       200 * time.Millisecond,
			BurstStep:  100 * time.Millisecond,
			FaultBurst: 5,
			BootBurst:  3,
		},
		GPIOChip:    "gpiochip0",
		Console:     link.Config{Type: "stdio"},
		Supervisory: link.Config{Type: "serial", Device: "/dev/ttyUSB0", Baud: 115200},
		Buffers:     Buffers{RingSize: link.DefaultRingSize, OutQueue: link.DefaultOutQueue, MaxLine: link.DefaultMaxLine},
	}
	return c
}

// ForBoard returns the defaults for a named board.
func ForBoard(board string) (Config, error) {
	c := Default()
	switch board {
	case "", "sim":
	case "pico":
		c.Board = "pico"
		c.Left.HallPin, c.Right.HallPin = 14, 15
		c.Left.Actuator = Actuator{Wiring: WiringDirBrake, PWMPin: 10, PWMChannel: -1, DirPin: 11, BrakePin: 12, In1Pin: -1, In2Pin: -1}
		c.Right.Actuator = Actuator{Wiring: WiringDirBrake, PWMPin: 16, PWMChannel: -1, DirPin: 17, BrakePin: 18, In1Pin: -1, In2Pin: -1}
		c.Indicator.Pin = 25
		c.Console = link.Config{Type: "uart", UART: 0, Baud: 115200, TXPin: 0, RXPin: 1}
		c.Supervisory = link.Config{Type: "uart", UART: 1, Baud: 115200, TXPin: 4, RXPin: 5}
		c.Buffers.RingSize = 512
		c.PWM.I2CBus = "i2c0"
	case "linux":
		c.Board = "linux"
		c.PWM.Backend = PWMPCA9685
		c.Left.HallPin, c.Right.HallPin = 17, 27
		c.Left.Actuator = Actuator{Wiring: WiringDirBrake, PWMPin: -1, PWMChannel: 0, DirPin: 23, BrakePin: 24, In1Pin: -1, In2Pin: -1}
		c.Right.Actuator = Actuator{Wiring: WiringDirBrake, PWMPin: -1, PWMChannel: 1, DirPin: 5, BrakePin: 6, In1Pin: -1, In2Pin: -1}
		c.Indicator.Pin = 26
		c.Supervisory = link.Config{Type: "serial", Device: "/dev/ttyAMA0", Baud: 115200}
	default:
		return c, errcode.New(errcode.InvalidParams, "config.board", "unknown board '"+board+"'")
	}
	return c, nil
}

func invalid(field, msg string) error {
	return errcode.New(errcode.InvalidParams, "config.validate", field+": "+msg)
}

// Validate checks the whole configuration and reports the first problem.
func (c *Config) Validate() error {
	d := c.Drive
	if !d.PID.Valid() {
		return invalid("drive.pid", "gains must be finite and non-negative")
	}
	if !(d.LoadFactor > 0) {
		return invalid("drive.load_factor", "must be > 0")
	}
	for _, p := range []struct {
		name string
		v    time.Duration
	}{
		{"drive.pid_period", d.PIDPeriod},
		{"drive.brake_period", d.BrakePeriod},
		{"drive.telemetry_period", d.TelemetryPeriod},
		{"drive.heartbeat_timeout", d.HeartbeatTimeout},
		{"drive.soft_brake_time", d.SoftBrakeTime},
	} {
		if p.v <= 0 {
			return invalid(p.name, "must be > 0")
		}
	}
	if d.StreamPeriod < 0 || d.HardBrakePulse < 0 {
		return invalid("drive", "durations must not be negative")
	}
	for _, w := range []struct {
		name string
		w    Wheel
	}{{"left", c.Left}, {"right", c.Right}} {
		if err := w.w.validate(w.name, c.PWM.Backend); err != nil {
			return err
		}
	}
	switch c.PWM.Backend {
	case PWMNative, PWMPCA9685:
	default:
		return invalid("pwm.backend", "must be native or pca9685")
	}
	if c.PWM.FrequencyHz == 0 {
		return invalid("pwm.frequency_hz", "must be > 0")
	}
	if r := c.Buffers.RingSize; r < 2 || r&(r-1) != 0 {
		return invalid("buffers.ring_size", "must be a power of two")
	}
	if c.Buffers.OutQueue <= 0 || c.Buffers.MaxLine <= 0 {
		return invalid("buffers", "queue and line sizes must be > 0")
	}
	if c.Console.Type == "" || c.Supervisory.Type == "" {
		return invalid("link", "console and supervisory need a transport type")
	}
	return c.checkPins()
}

func (w Wheel) validate(name, backend string) error {
	if !(w.PulsesPerRotation > 0) {
		return invalid(name+".ppr", "must be > 0")
	}
	if !(w.CircumferenceIn > 0) || !(w.CircumferenceCm > 0) {
		return invalid(name+".circumference", "must be > 0")
	}
	if _, err := speed.ParseMethod(w.Method); err != nil {
		return invalid(name+".method", "must be counting or interval")
	}
	a := w.Actuator
	switch a.Wiring {
	case WiringDirBrake:
		if a.DirPin < 0 || a.BrakePin < 0 {
			if a.DirPin != -1 || a.BrakePin != -1 {
				return invalid(name+".actuator", "dir_brake needs both dir_pin and brake_pin")
			}
		}
	case WiringHBridge:
		if (a.In1Pin < 0) != (a.In2Pin < 0) {
			return invalid(name+".actuator", "h_bridge needs both in1_pin and in2_pin")
		}
	default:
		return invalid(name+".actuator.wiring", "must be dir_brake or h_bridge")
	}
	if backend == PWMPCA9685 && (a.PWMChannel < 0 || a.PWMChannel > 15) {
		return invalid(name+".actuator.pwm_channel", "must be 0..15")
	}
	return nil
}

// checkPins rejects a GPIO claimed twice. Negative pins are unused.
func (c *Config) checkPins() error {
	seen := map[int]string{}
	claim := func(pin int, what string) error {
		if pin < 0 {
			return nil
		}
		if prev, ok := seen[pin]; ok {
			return invalid(what, "pin "+strconv.Itoa(pin)+" already used by "+prev)
		}
		seen[pin] = what
		return nil
	}
	for _, w := range []struct {
		name string
		w    Wheel
	}{{"left", c.Left}, {"right", c.Right}} {
		a := w.w.Actuator
		for _, p := range []struct {
			pin  int
			what string
		}{
			{w.w.HallPin, w.name + ".hall_pin"},
			{a.PWMPin, w.name + ".pwm_pin"},
			{a.DirPin, w.name + ".dir_pin"},
			{a.BrakePin, w.name + ".brake_pin"},
			{a.In1Pin, w.name + ".in1_pin"},
			{a.In2Pin, w.name + ".in2_pin"},
		} {
			if err := claim(p.pin, p.what); err != nil {
				return err
			}
		}
	}
	return claim(c.Indicator.Pin, "indicator.pin")
}

// Publish puts each section on config/<section> as a retained message.
func (c *Config) Publish(conn *bus.Connection) {
	for _, s := range []struct {
		key string
		v   any
	}{
		{"drive", c.Drive},
		{"left", c.Left},
		{"right", c.Right},
		{"pwm", c.PWM},
		{"indicator", c.Indicator},
		{"console", c.Console},
		{"supervisory", c.Supervisory},
	} {
		conn.Publish(conn.NewMessage(bus.T("config", s.key), s.v, true))
	}
}
