// Package controller wires the drive machine, its links and the board into
// one control loop.
package controller

import (
	"context"
	"sync"
	"time"

	"hubdrive-go/bus"
	"hubdrive-go/control/speed"
	"hubdrive-go/errcode"
	"hubdrive-go/services/command"
	"hubdrive-go/services/config"
	"hubdrive-go/services/drive"
	"hubdrive-go/services/hal"
	"hubdrive-go/services/indicator"
	"hubdrive-go/services/link"
	"hubdrive-go/services/scheduler"
	"hubdrive-go/types"
	"hubdrive-go/x/timex"
)

const (
	ConsolePort     = "console"
	SupervisoryPort = "supervisory"
)

var (
	TopicStatus  = bus.T("drive", "status")
	TopicFault   = bus.T("drive", "fault")
	TopicCommand = bus.T("drive", "cmd")
)

// Options override what New would otherwise build from the configuration.
type Options struct {
	Clock timex.Clock
	Bus   *bus.Bus

	// Transports replace the configured console and supervisory transports.
	// A nil entry falls back to the configuration.
	Console, Supervisory link.Transport

	// NoTransports leaves both ports unconnected (lockstep tests).
	NoTransports bool
}

type Controller struct {
	cfg   config.Config
	clock timex.Clock
	conn  *bus.Connection

	Machine *drive.Machine
	Board   *hal.Board
	Router  *command.Router
	Ind     *indicator.Indicator
	Sched   *scheduler.Scheduler

	Console, Super *link.Port

	transports [2]link.Transport
	stream     *scheduler.Task
	cmds       *bus.Subscription
}

// New validates cfg, opens the board and builds the task list. Nothing runs
// until Run (or Poll in lockstep use).
func New(cfg config.Config, opt Options) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clock := opt.Clock
	if clock == nil {
		clock = timex.System()
	}
	b := opt.Bus
	if b == nil {
		b = bus.NewBus(8)
	}
	c := &Controller{cfg: cfg, clock: clock, conn: b.NewConnection("controller")}

	counters := [types.NumWheels]*speed.Counter{{}, {}}
	board, err := hal.Open(cfg, clock, counters)
	if err != nil {
		return nil, err
	}
	c.Board = board

	var wcs [types.NumWheels]drive.WheelConfig
	for i, w := range [types.NumWheels]config.Wheel{cfg.Left, cfg.Right} {
		method, _ := speed.ParseMethod(w.Method)
		wcs[i] = drive.WheelConfig{
			Estimator: speed.Estimator{
				Method:            method,
				PulsesPerRotation: w.PulsesPerRotation,
				CircumferenceIn:   w.CircumferenceIn,
				CircumferenceCm:   w.CircumferenceCm,
				StallTimeout:      w.StallTimeout,
			},
			Gains:    cfg.Drive.PID,
			Actuator: board.Actuators[i],
			Counter:  counters[i],
		}
	}
	d := cfg.Drive
	c.Machine = drive.New(clock, drive.Params{
		SoftBrakeTime:    d.SoftBrakeTime,
		HardBrakePulse:   d.HardBrakePulse,
		HeartbeatTimeout: d.HeartbeatTimeout,
		CruiseSpeed:      d.CruiseSpeed,
		LoadFactor:       d.LoadFactor,
	}, wcs[types.Left], wcs[types.Right])

	bf := cfg.Buffers
	c.Console = link.NewPort(ConsolePort, bf.RingSize, bf.OutQueue, bf.MaxLine)
	c.Super = link.NewPort(SupervisoryPort, bf.RingSize, bf.OutQueue, bf.MaxLine)
	c.Router = command.NewRouter(c.Machine, c.Console, c.Super)

	ic := cfg.Indicator
	c.Ind = indicator.New(board, indicator.Timing{
		Slow: ic.Slow, Fast: ic.Fast, BurstStep: ic.BurstStep,
		FaultBurst: ic.FaultBurst, BootBurst: ic.BootBurst,
	})
	c.Ind.Attach(c.conn)
	c.Ind.Boot()

	if !opt.NoTransports {
		if err := c.resolveTransports(opt); err != nil {
			board.Close()
			return nil, err
		}
	}

	c.cmds = c.conn.Subscribe(TopicCommand)
	c.buildTasks()
	return c, nil
}

func (c *Controller) resolveTransports(opt Options) error {
	for i, s := range []struct {
		override link.Transport
		cfg      link.Config
	}{{opt.Console, c.cfg.Console}, {opt.Supervisory, c.cfg.Supervisory}} {
		if s.override != nil {
			c.transports[i] = s.override
			continue
		}
		tr, err := link.NewTransport(s.cfg)
		if err != nil {
			return err
		}
		c.transports[i] = tr
	}
	return nil
}

func (c *Controller) buildTasks() {
	s := scheduler.New(c.clock)
	d := c.cfg.Drive
	m := c.Machine

	s.Always("console", func(time.Duration) {
		c.Console.Drain(func(l string) { c.Router.Handle(command.Console, l) })
	})
	s.Always("supervisory", func(time.Duration) {
		c.Super.Drain(func(l string) { c.Router.Handle(command.Supervisory, l) })
	})
	s.Always("bus", func(time.Duration) { c.serveBus() })
	s.Always("watchdog", func(now time.Duration) {
		if m.CheckWatchdog(now) {
			c.fault(now)
		}
	})
	s.Every("pid", d.PIDPeriod, func(time.Duration) { m.ControlTick() })
	s.Every("brake", d.BrakePeriod, func(time.Duration) { m.UpdateBraking() })
	s.Every("telemetry", d.TelemetryPeriod, func(time.Duration) {
		st := m.Status()
		c.Console.WriteLine(command.TelemetryLine(st))
		c.conn.Publish(c.conn.NewMessage(TopicStatus, st, true))
	})
	c.stream = s.Every("stream", d.StreamPeriod, func(time.Duration) {
		for _, l := range command.StatusFrames(m.Status()) {
			c.Super.WriteLine(l)
		}
	})
	if d.StreamPeriod <= 0 {
		s.SetPeriod(c.stream, 0)
	}
	s.Always("indicator", func(now time.Duration) { c.Ind.Update(now, m.System()) })

	c.Router.OnStream = func(p time.Duration) { s.SetPeriod(c.stream, p) }
	c.Sched = s
}

// fault reports a watchdog trip on the console and the bus. The indicator
// picks the bus event up for its fault burst.
func (c *Controller) fault(now time.Duration) {
	c.Console.WriteLine("FAULT: supervisory heartbeat lost - EMERGENCY STOP")
	c.conn.Publish(c.conn.NewMessage(TopicFault, types.Fault{
		Code:   string(errcode.Timeout),
		Reason: "heartbeat_timeout",
		TSms:   timex.Ms(now),
	}, false))
}

// serveBus executes queued drive/cmd requests as supervisory frames and
// replies with the framed lines.
func (c *Controller) serveBus() {
	for {
		select {
		case msg := <-c.cmds.Channel():
			line, ok := msg.Payload.(string)
			if !ok {
				c.conn.Reply(msg, []string{command.Nak(string(errcode.InvalidPayload), "")}, false)
				continue
			}
			var out []string
			_ = c.Router.Exec(command.Supervisory, line, command.SinkFunc(func(l string) { out = append(out, l) }))
			c.conn.Reply(msg, out, false)
		default:
			return
		}
	}
}

// Poll runs one scheduler pass on the caller's goroutine.
func (c *Controller) Poll() int { return c.Sched.Poll() }

// Run starts the links and the simulated plant, then runs the control loop
// until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.cfg.Publish(c.conn)
	c.Board.Publish(c.conn, types.LinkUp, "ready")
	c.Board.Start(ctx)

	var wg sync.WaitGroup
	for i, p := range []*link.Port{c.Console, c.Super} {
		tr := c.transports[i]
		if tr == nil {
			continue
		}
		lc := c.cfg.Console
		if p == c.Super {
			lc = c.cfg.Supervisory
		}
		sup := link.NewSupervisor(p, tr, c.conn, lc)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sup.Run(ctx)
		}()
	}

	println("[ctrl] running on", c.Board.Name)
	err := c.Sched.Run(ctx)

	cancel()
	wg.Wait()
	c.Machine.Stop(types.TargetBoth)
	c.Board.Publish(c.conn, types.LinkDown, "stopped")
	c.Board.Close()
	println("[ctrl] stopped")
	return err
}

// Request sends one command line over the bus and waits for the reply lines.
func Request(ctx context.Context, conn *bus.Connection, line string) ([]string, error) {
	reply, err := conn.RequestWait(ctx, conn.NewMessage(TopicCommand, line, false))
	if err != nil {
		return nil, err
	}
	lines, _ := reply.Payload.([]string)
	return lines, nil
}
