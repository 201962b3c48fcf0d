// Package command decodes operator and supervisory text lines and applies them
// to the drive machine.
package command

import (
	"strconv"
	"strings"
	"time"

	"hubdrive-go/control/pid"
	"hubdrive-go/errcode"
	"hubdrive-go/types"
	"hubdrive-go/x/mathx"
	"hubdrive-go/x/strx"
)

// Channel is the transport a line arrived on. It only changes reply framing.
type Channel uint8

const (
	Console Channel = iota
	Supervisory
)

func (c Channel) String() string {
	if c == Supervisory {
		return "supervisory"
	}
	return "console"
}

// SupervisoryPrefix may lead any supervisory frame.
const SupervisoryPrefix = "ROS:"

type Kind uint8

const (
	None Kind = iota
	Forward
	Reverse
	Stop
	Coast
	Speed
	SoftBrake
	HardBrake
	Emergency
	Clear
	Status
	Diag
	PIDStatus
	PIDTune
	PIDReset
	Heartbeat
	Stream
	Help
)

// Action is a fully validated command. Nothing is applied until a line has
// decoded into one.
type Action struct {
	Kind    Kind
	Keyword string // ack keyword, e.g. "FORWARD", "ML", "PIDBOTH"
	Target  types.Target
	Speed   uint8
	Gains   pid.Gains
	Period  time.Duration
}

// ReadOnly reports whether the action leaves state untouched.
func (a Action) ReadOnly() bool {
	switch a.Kind {
	case Status, Diag, PIDStatus, Help:
		return true
	}
	return false
}

// AllowedWhileLatched lists what an emergency latch still accepts.
func (a Action) AllowedWhileLatched() bool {
	switch a.Kind {
	case Clear, Emergency, Heartbeat:
		return true
	}
	return a.ReadOnly()
}

const (
	MaxStream = 60 * time.Second
	MinStream = 50 * time.Millisecond
)

var keywords = map[string]Action{
	"F":          {Kind: Forward, Keyword: "FORWARD"},
	"FORWARD":    {Kind: Forward, Keyword: "FORWARD"},
	"R":          {Kind: Reverse, Keyword: "REVERSE"},
	"REVERSE":    {Kind: Reverse, Keyword: "REVERSE"},
	"S":          {Kind: Stop, Keyword: "STOP"},
	"STOP":       {Kind: Stop, Keyword: "STOP"},
	"COAST":      {Kind: Coast, Keyword: "COAST"},
	"SB":         {Kind: SoftBrake, Keyword: "SOFTBRAKE"},
	"SOFTBRAKE":  {Kind: SoftBrake, Keyword: "SOFTBRAKE"},
	"HB":         {Kind: HardBrake, Keyword: "HARDBRAKE"},
	"HARDBRAKE":  {Kind: HardBrake, Keyword: "HARDBRAKE"},
	"E":          {Kind: Emergency, Keyword: "EMERGENCY"},
	"EMERGENCY":  {Kind: Emergency, Keyword: "EMERGENCY"},
	"C":          {Kind: Clear, Keyword: "CLEAR"},
	"CLEAR":      {Kind: Clear, Keyword: "CLEAR"},
	"STATUS":     {Kind: Status, Keyword: "STATUS"},
	"D":          {Kind: Diag, Keyword: "DIAG"},
	"DIAG":       {Kind: Diag, Keyword: "DIAG"},
	"PID":        {Kind: PIDStatus, Keyword: "PID"},
	"PIDSTATUS":  {Kind: PIDStatus, Keyword: "PID"},
	"PID:STATUS": {Kind: PIDStatus, Keyword: "PID"},
	"HEARTBEAT":  {Kind: Heartbeat, Keyword: "HEARTBEAT"},
	"HELP":       {Kind: Help, Keyword: "HELP"},
	"?":          {Kind: Help, Keyword: "HELP"},
}

var speedPrefixes = []struct {
	prefix string
	target types.Target
}{
	{"BOTH:", types.TargetBoth},
	{"SPEED:", types.TargetBoth},
	{"ML:", types.TargetLeft},
	{"MR:", types.TargetRight},
}

var pidPrefixes = []struct {
	prefix string
	target types.Target
}{
	{"PIDBOTH:", types.TargetBoth},
	{"PIDL:", types.TargetLeft},
	{"PIDR:", types.TargetRight},
}

// Normalize trims and upper-cases a line and drops the supervisory prefix.
func Normalize(line string) string {
	s := strx.Normalize(line)
	if rest, _, ok := strx.CutAny(s, SupervisoryPrefix); ok {
		s = strings.TrimSpace(rest)
	}
	return s
}

// Decode parses one line. An empty line yields a None action and no error.
// Failures are *errcode.E carrying invalid_payload, out_of_range or unknown_command.
func Decode(line string) (Action, error) {
	s := Normalize(line)
	if s == "" {
		return Action{Kind: None}, nil
	}
	if a, ok := keywords[s]; ok {
		a.Target = types.TargetBoth
		return a, nil
	}
	if strx.IsDigits(s) {
		n, err := parseSpeed(s)
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: Speed, Keyword: "SPEED", Target: types.TargetBoth, Speed: n}, nil
	}
	for _, p := range speedPrefixes {
		if rest, ok := strings.CutPrefix(s, p.prefix); ok {
			n, err := parseSpeed(rest)
			if err != nil {
				return Action{}, err
			}
			return Action{Kind: Speed, Keyword: strings.TrimSuffix(p.prefix, ":"), Target: p.target, Speed: n}, nil
		}
	}
	for _, p := range pidPrefixes {
		if rest, ok := strings.CutPrefix(s, p.prefix); ok {
			kw := strings.TrimSuffix(p.prefix, ":")
			if rest == "RESET" {
				return Action{Kind: PIDReset, Keyword: kw, Target: p.target}, nil
			}
			g, err := parseGains(rest)
			if err != nil {
				return Action{}, err
			}
			return Action{Kind: PIDTune, Keyword: kw, Target: p.target, Gains: g}, nil
		}
	}
	if rest, ok := strings.CutPrefix(s, "STREAM:"); ok {
		d, err := parseStream(rest)
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: Stream, Keyword: "STREAM", Period: d}, nil
	}
	if strings.HasPrefix(s, "-") && strx.IsDigits(s[1:]) {
		return Action{}, errcode.New(errcode.OutOfRange, "decode", "speed must be 0-255")
	}
	return Action{}, errcode.New(errcode.UnknownCommand, "decode", "unknown command '"+s+"'")
}

func parseSpeed(s string) (uint8, error) {
	if strings.HasPrefix(s, "-") && strx.IsDigits(s[1:]) {
		return 0, errcode.New(errcode.OutOfRange, "speed", "speed must be 0-255")
	}
	if !strx.IsDigits(s) {
		return 0, errcode.New(errcode.InvalidPayload, "speed", "speed must be an integer 0-255")
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n > 255 {
		return 0, errcode.New(errcode.OutOfRange, "speed", "speed must be 0-255")
	}
	return uint8(n), nil
}

func parseGains(s string) (pid.Gains, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return pid.Gains{}, errcode.New(errcode.InvalidPayload, "pid", "use Kp,Ki,Kd,MaxI")
	}
	var v [4]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil || !mathx.Finite(x) || x < 0 {
			return pid.Gains{}, &errcode.E{C: errcode.InvalidPayload, Op: "pid", Msg: "invalid value '" + f + "'", Err: err}
		}
		v[i] = x
	}
	return pid.Gains{Kp: v[0], Ki: v[1], Kd: v[2], MaxIntegral: v[3]}, nil
}

func parseStream(s string) (time.Duration, error) {
	if !strx.IsDigits(s) {
		return 0, errcode.New(errcode.InvalidPayload, "stream", "period must be milliseconds")
	}
	n, err := strconv.ParseUint(s, 10, 32)
	d := time.Duration(n) * time.Millisecond
	if err != nil || (n != 0 && (d < MinStream || d > MaxStream)) {
		return 0, errcode.New(errcode.OutOfRange, "stream", "period must be 0 or 50-60000 ms")
	}
	return d, nil
}
