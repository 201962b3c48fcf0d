package command

import (
	"strconv"
	"strings"

	"hubdrive-go/types"
)

// Sink receives reply lines without the trailing newline.
type Sink interface {
	WriteLine(line string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(line string)

func (f SinkFunc) WriteLine(line string) { f(line) }

func f1(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }
func f2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
func f3(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }
func u(v uint64) string   { return strconv.FormatUint(v, 10) }

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func active(b bool) string {
	if b {
		return "ACTIVE"
	}
	return "INACTIVE"
}

func wheelTag(w types.WheelID) string { return "M" + w.String() }

// ---------------------------------------------------------------------------
// Supervisory frames
// ---------------------------------------------------------------------------

// Ack is the positive acknowledgment for an applied action.
func Ack(a Action) string {
	s := "ACK:" + a.Keyword
	switch a.Kind {
	case Speed:
		s += ":" + u(uint64(a.Speed))
	case PIDReset:
		s += ":RESET"
	case Stream:
		s += ":" + strconv.FormatInt(a.Period.Milliseconds(), 10)
	}
	return s
}

// Nak is the negative acknowledgment echoing the offending frame.
func Nak(code string, frame string) string {
	return "NAK:" + code + ":" + strings.TrimSpace(frame)
}

// StatusFrame renders STATUS:<ML|MR>:dir:cur:target:rpm:mph:kph:pulses:braking.
func StatusFrame(w types.WheelStatus) string {
	var b strings.Builder
	b.WriteString("STATUS:")
	b.WriteString(wheelTag(w.Wheel))
	for _, part := range [...]string{
		w.Direction.String(),
		u(uint64(w.Current)),
		u(uint64(w.Target)),
		f1(w.RPM),
		f2(w.MPH),
		f2(w.KPH),
		u(uint64(w.Pulses)),
		flag(w.Braking),
	} {
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// PIDFrame renders PID_STATUS:name:kp:ki:kd:sp:in:out:err:i:d.
func PIDFrame(p types.PIDStatus) string {
	return "PID_STATUS:" + p.Name +
		":" + f3(p.Kp) + ":" + f3(p.Ki) + ":" + f3(p.Kd) +
		":" + f1(p.Setpoint) + ":" + f1(p.Input) + ":" + f1(p.Output) +
		":" + f1(p.Error) + ":" + f1(p.Integral) + ":" + f1(p.Derivative)
}

// SystemFrame renders SYS:estop:soft:hard:link.
func SystemFrame(s types.SystemStatus) string {
	return "SYS:" + flag(s.EmergencyStop) + ":" + flag(s.SoftBrake) + ":" + flag(s.HardBrake) + ":" + flag(s.LinkConnected)
}

// StatusFrames is the per-wheel and system frames, also used for streaming.
func StatusFrames(st types.Status) []string {
	return []string{StatusFrame(st.Wheels[0]), StatusFrame(st.Wheels[1]), SystemFrame(st.System)}
}

// ---------------------------------------------------------------------------
// Console text
// ---------------------------------------------------------------------------

// TelemetryLine is the periodic console speed report.
func TelemetryLine(st types.Status) string {
	l, r := st.Wheels[types.Left], st.Wheels[types.Right]
	return "TLM L:" + f2(l.RPM) + "rpm " + f2(l.MPH) + "mph " + f2(l.KPH) + "kph" +
		" | R:" + f2(r.RPM) + "rpm " + f2(r.MPH) + "mph " + f2(r.KPH) + "kph"
}

func pidLine(p types.PIDStatus) string {
	return p.Name + " PID: Kp=" + f3(p.Kp) + " Ki=" + f3(p.Ki) + " Kd=" + f3(p.Kd) +
		" MaxI=" + f1(p.MaxIntegral) +
		" | SP=" + f1(p.Setpoint) + " RPM=" + f1(p.Input) + " PWM=" + f1(p.Output) +
		" Err=" + f1(p.Error) + " I=" + f1(p.Integral) + " D=" + f1(p.Derivative)
}

func consoleStatus(st types.Status) []string {
	out := make([]string, 0, 7)
	for _, w := range st.Wheels {
		out = append(out, "Motor "+w.Wheel.String()+": "+w.Direction.String()+" at "+u(uint64(w.Current))+"/255 target "+u(uint64(w.Target))+
			" pulses "+u(uint64(w.Pulses))+" braking "+yesNo(w.Braking))
	}
	for _, w := range st.Wheels {
		out = append(out, "Motor "+w.Wheel.String()+" RPM: "+f2(w.RPM)+" | MPH: "+f2(w.MPH)+" | KPH: "+f2(w.KPH))
	}
	out = append(out, "System: emergency "+active(st.System.EmergencyStop)+" | soft brake "+active(st.System.SoftBrake)+
		" | hard brake "+active(st.System.HardBrake)+" | link "+yesNo(st.System.LinkConnected))
	for _, p := range st.PID {
		out = append(out, pidLine(p))
	}
	return out
}

func consoleDiag(st types.Status) []string {
	const rule = "----------------------------------------"
	out := []string{"===== DRIVE DIAGNOSTICS =====", rule}
	for _, w := range st.Wheels {
		out = append(out,
			"Motor "+w.Wheel.String()+" Status:",
			"  Direction: "+w.Direction.String(),
			"  Speed: "+u(uint64(w.Current))+"/255",
			"  Target: "+u(uint64(w.Target))+"/255",
			"  RPM: "+f2(w.RPM),
			"  MPH: "+f2(w.MPH),
			"  KPH: "+f2(w.KPH),
			"  Pulses: "+u(uint64(w.Pulses)),
			"  Braking: "+yesNo(w.Braking),
			rule,
		)
	}
	out = append(out,
		"System Status:",
		"  Emergency Stop: "+active(st.System.EmergencyStop),
		"  Soft Brake: "+active(st.System.SoftBrake),
		"  Hard Brake: "+active(st.System.HardBrake),
		"  Link Connected: "+yesNo(st.System.LinkConnected),
		rule,
		"PID Status:",
	)
	for _, p := range st.PID {
		out = append(out, "  "+pidLine(p))
	}
	return out
}

var helpLines = []string{
	"Commands:",
	"  F, FORWARD           both motors forward",
	"  R, REVERSE           both motors reverse",
	"  S, STOP              stop with brake line",
	"  COAST                remove drive, free spin",
	"  0-255, BOTH:n        target speed for both motors",
	"  ML:n, MR:n           target speed for one motor",
	"  SB, SOFTBRAKE        gradual stop",
	"  HB, HARDBRAKE        reverse pulse then stop",
	"  E, EMERGENCY         latch emergency stop",
	"  C, CLEAR             clear emergency stop",
	"  STATUS, D, DIAG      status and diagnostics",
	"  PID, PIDSTATUS       regulator status",
	"  PIDL:/PIDR:/PIDBOTH: Kp,Ki,Kd,MaxI or RESET",
	"  STREAM:ms            periodic status frames on the link (0 = off)",
	"  ROS:<cmd>            send <cmd> as a supervisory frame",
}

const helpFrame = "HELP:F,R,S,COAST,BOTH,ML,MR,SPEED,SB,HB,E,C,STATUS,DIAG,PID:STATUS,PIDL,PIDR,PIDBOTH,HEARTBEAT,STREAM"

func targetText(t types.Target) string {
	switch t {
	case types.TargetLeft:
		return "Motor L"
	case types.TargetRight:
		return "Motor R"
	}
	return "Both motors"
}

// consoleOK is the human confirmation for an applied action.
func consoleOK(a Action, st types.Status) string {
	switch a.Kind {
	case Forward, Reverse:
		return "OK " + targetText(a.Target) + " " + a.Keyword + " | speed L=" +
			u(uint64(st.Wheels[0].Target)) + " R=" + u(uint64(st.Wheels[1].Target))
	case Stop:
		return "OK stopping both motors"
	case Coast:
		return "OK motors coasting (free spin)"
	case Speed:
		return "OK " + targetText(a.Target) + " speed set to " + u(uint64(a.Speed))
	case SoftBrake:
		return "OK soft brake activated"
	case HardBrake:
		return "OK hard brake applied"
	case Emergency:
		return "OK EMERGENCY STOP ACTIVATED"
	case Clear:
		return "OK emergency cleared"
	case PIDTune:
		g := a.Gains
		return "OK " + a.Keyword + " tuned: Kp=" + f3(g.Kp) + " Ki=" + f3(g.Ki) + " Kd=" + f3(g.Kd) + " MaxI=" + f1(g.MaxIntegral)
	case PIDReset:
		return "OK " + a.Keyword + " reset"
	case Heartbeat:
		return "OK heartbeat"
	case Stream:
		if a.Period == 0 {
			return "OK status stream off"
		}
		return "OK status stream every " + strconv.FormatInt(a.Period.Milliseconds(), 10) + " ms"
	}
	return "OK"
}

// consoleErr is the human rejection line.
func consoleErr(code, msg string) string {
	if msg == "" {
		return "ERR " + code
	}
	return "ERR " + code + ": " + msg
}
