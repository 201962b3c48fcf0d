package command

import (
	"strings"
	"time"

	"hubdrive-go/errcode"
	"hubdrive-go/services/drive"
	"hubdrive-go/types"
)

const latchedMsg = "EMERGENCY STOP ACTIVE - use 'C' to clear"

// Router applies decoded lines to the machine and frames the replies for the
// channel the line came from. It runs on the control loop only.
type Router struct {
	m *drive.Machine

	// Console and Super are the default reply sinks for Handle.
	Console Sink
	Super   Sink

	// OnStream is told when the supervisory status stream period changes.
	OnStream func(period time.Duration)
}

func NewRouter(m *drive.Machine, console, super Sink) *Router {
	return &Router{m: m, Console: console, Super: super}
}

// Handle processes a line from ch, replying on that channel's default sink.
// A console line carrying the supervisory prefix is handled as a supervisory
// frame and answered on the supervisory sink.
func (r *Router) Handle(ch Channel, line string) {
	if ch == Console && strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), SupervisoryPrefix) {
		println("[cmd] console -> supervisory:", strings.TrimSpace(line))
		r.Exec(Supervisory, line, r.Super)
		return
	}
	out := r.Console
	if ch == Supervisory {
		out = r.Super
	}
	r.Exec(ch, line, out)
}

// Exec processes one line and writes every reply line to out. It returns the
// error that rejected the line, if any.
func (r *Router) Exec(ch Channel, line string, out Sink) error {
	if out == nil {
		out = SinkFunc(func(string) {})
	}
	a, err := Decode(line)
	if err != nil {
		r.reject(ch, line, err, out)
		return err
	}
	if a.Kind == None {
		return nil
	}
	if ch == Supervisory {
		r.m.Heartbeat(r.m.Now())
	}
	if r.m.Latched() && !a.AllowedWhileLatched() {
		err := errcode.New(errcode.EmergencyLatched, "route", latchedMsg)
		r.reject(ch, line, err, out)
		return err
	}
	if !r.apply(a) {
		err := errcode.New(errcode.EmergencyLatched, "route", latchedMsg)
		r.reject(ch, line, err, out)
		return err
	}
	r.reply(ch, a, out)
	return nil
}

func (r *Router) reject(ch Channel, line string, err error, out Sink) {
	code := string(errcode.Of(err))
	if ch == Supervisory {
		out.WriteLine(Nak(code, Normalize(line)))
		return
	}
	msg := ""
	if e, ok := err.(*errcode.E); ok {
		msg = e.Msg
	}
	out.WriteLine(consoleErr(code, msg))
	if code == string(errcode.UnknownCommand) {
		out.WriteLine("type HELP for available commands")
	}
}

// apply mutates the machine. It returns false if the machine refused.
func (r *Router) apply(a Action) bool {
	m := r.m
	switch a.Kind {
	case Forward:
		return m.Cruise(a.Target, types.Forward)
	case Reverse:
		return m.Cruise(a.Target, types.Reverse)
	case Stop:
		m.Stop(a.Target)
	case Coast:
		m.Coast(a.Target)
	case Speed:
		return m.SetSpeed(a.Target, a.Speed)
	case SoftBrake:
		return m.ActivateSoftBrake()
	case HardBrake:
		return m.ActivateHardBrake()
	case Emergency:
		m.EmergencyStop()
	case Clear:
		m.ClearEmergency()
	case PIDTune:
		for _, w := range m.Wheels {
			if a.Target.Includes(w.ID) {
				w.PID.Tune(a.Gains)
			}
		}
	case PIDReset:
		for _, w := range m.Wheels {
			if a.Target.Includes(w.ID) {
				w.PID.Reset()
			}
		}
	case Stream:
		if r.OnStream != nil {
			r.OnStream(a.Period)
		}
	}
	return true
}

func (r *Router) reply(ch Channel, a Action, out Sink) {
	st := r.m.Status()
	if ch == Supervisory {
		switch a.Kind {
		case Status:
			writeAll(out, StatusFrames(st))
		case Diag:
			writeAll(out, StatusFrames(st))
			for _, p := range st.PID {
				out.WriteLine(PIDFrame(p))
			}
		case PIDStatus:
			for _, p := range st.PID {
				out.WriteLine(PIDFrame(p))
			}
		case Help:
			out.WriteLine(helpFrame)
		default:
			out.WriteLine(Ack(a))
		}
		return
	}
	switch a.Kind {
	case Status:
		writeAll(out, consoleStatus(st))
	case Diag:
		writeAll(out, consoleDiag(st))
	case PIDStatus:
		for _, p := range st.PID {
			out.WriteLine(pidLine(p))
		}
	case Help:
		writeAll(out, helpLines)
	default:
		out.WriteLine(consoleOK(a, st))
	}
}

func writeAll(out Sink, lines []string) {
	for _, l := range lines {
		out.WriteLine(l)
	}
}
