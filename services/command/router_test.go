package command

import (
	"strings"
	"testing"
	"time"

	"hubdrive-go/control/pid"
	"hubdrive-go/control/speed"
	"hubdrive-go/errcode"
	"hubdrive-go/services/drive"
	"hubdrive-go/types"
	"hubdrive-go/x/timex"
)

type nopActuator struct{ duty uint8 }

func (*nopActuator) SetDirection(types.Direction) {}
func (a *nopActuator) SetDuty(v uint8)            { a.duty = v }

type lines []string

func (l *lines) WriteLine(s string) { *l = append(*l, s) }
func (l *lines) reset()             { *l = (*l)[:0] }
func (l *lines) last() string {
	if len(*l) == 0 {
		return ""
	}
	return (*l)[len(*l)-1]
}

type harness struct {
	r       *Router
	m       *drive.Machine
	clk     *timex.Fake
	console lines
	super   lines
	left    *nopActuator
}

var testGains = pid.Gains{Kp: 0.15, Ki: 0.7, Kd: 0.001, MaxIntegral: 50}

func newHarness() *harness {
	h := &harness{clk: timex.NewFake(time.Minute), left: &nopActuator{}}
	est := speed.Estimator{PulsesPerRotation: 44, CircumferenceIn: 22.25, CircumferenceCm: 56.5}
	h.m = drive.New(h.clk, drive.DefaultParams(),
		drive.WheelConfig{Estimator: est, Gains: testGains, Actuator: h.left},
		drive.WheelConfig{Estimator: est, Gains: testGains, Actuator: &nopActuator{}})
	h.r = NewRouter(h.m, &h.console, &h.super)
	return h
}

func TestSupervisoryAckAndHeartbeat(t *testing.T) {
	h := newHarness()
	h.r.Handle(Supervisory, "ROS:ML:120")
	if got := h.super.last(); got != "ACK:ML:120" {
		t.Fatalf("ack = %q", got)
	}
	if !h.m.Safety.LinkConnected || h.m.Safety.LastHeartbeat != h.clk.Now() {
		t.Fatalf("heartbeat not refreshed: %+v", h.m.Safety)
	}
	if h.m.Wheels[types.Left].Target != 120 || h.m.Wheels[types.Right].Target != 0 {
		t.Fatal("per-wheel command leaked")
	}
	if len(h.console) != 0 {
		t.Fatalf("console got %v", h.console)
	}
}

func TestMalformedFrameDoesNotRefreshHeartbeat(t *testing.T) {
	h := newHarness()
	h.r.Handle(Supervisory, "ML:abc")
	if h.m.Safety.LinkConnected {
		t.Fatal("malformed frame connected the link")
	}
	if got := h.super.last(); got != "NAK:invalid_payload:ML:ABC" {
		t.Fatalf("nak = %q", got)
	}
}

func TestMalformedTuningChangesNothing(t *testing.T) {
	for _, ch := range []Channel{Console, Supervisory} {
		h := newHarness()
		err := h.r.Exec(ch, "PIDL:1.0,2.0,BAD,4.0", &h.console)
		if errcode.Of(err) != errcode.InvalidPayload {
			t.Fatalf("%v: err %v", ch, err)
		}
		if g := h.m.Wheels[types.Left].PID.Gains(); g != testGains {
			t.Fatalf("%v: gains changed to %+v", ch, g)
		}
	}
}

func TestTuningAppliesToSelectedWheels(t *testing.T) {
	h := newHarness()
	h.r.Handle(Console, "PIDR:1,2,3,4")
	want := pid.Gains{Kp: 1, Ki: 2, Kd: 3, MaxIntegral: 4}
	if h.m.Wheels[types.Right].PID.Gains() != want || h.m.Wheels[types.Left].PID.Gains() != testGains {
		t.Fatal("tuning hit the wrong wheel")
	}
	if !strings.HasPrefix(h.console.last(), "OK PIDR tuned") {
		t.Fatalf("console = %q", h.console.last())
	}
	h.r.Handle(Supervisory, "PIDBOTH:0.5,0.5,0,10")
	if h.super.last() != "ACK:PIDBOTH" {
		t.Fatalf("ack = %q", h.super.last())
	}
	if h.m.Wheels[types.Left].PID.Gains().Kp != 0.5 {
		t.Fatal("PIDBOTH missed left wheel")
	}
}

func TestLatchedRefusesMotionThenClearAllows(t *testing.T) {
	h := newHarness()
	h.r.Handle(Console, "E")
	for _, cmd := range []string{"F", "R", "BOTH:100", "ML:50", "123", "SB", "HB", "PIDL:1,1,1,1", "COAST"} {
		h.console.reset()
		err := h.r.Exec(Console, cmd, &h.console)
		if errcode.Of(err) != errcode.EmergencyLatched {
			t.Fatalf("%s: err %v", cmd, err)
		}
	}
	for _, w := range h.m.Wheels {
		if w.Target != 0 || w.Direction != types.Stopped {
			t.Fatalf("latched wheel changed: %+v", w)
		}
	}
	h.r.Handle(Supervisory, "FORWARD")
	if h.super.last() != "NAK:emergency_latched:FORWARD" {
		t.Fatalf("nak = %q", h.super.last())
	}
	// Read-only queries still answer.
	h.r.Handle(Supervisory, "STATUS")
	if !strings.HasPrefix(h.super.last(), "SYS:1:") {
		t.Fatalf("status while latched: %q", h.super.last())
	}

	h.r.Handle(Console, "C")
	h.r.Handle(Console, "F")
	if h.m.Wheels[0].Direction != types.Forward || h.m.Wheels[0].Target != 150 {
		t.Fatalf("forward after clear: %+v", h.m.Wheels[0])
	}
}

func TestSpeedCommandsAllValues(t *testing.T) {
	h := newHarness()
	for s := 0; s <= 255; s += 5 {
		n := itoa(s)
		h.r.Handle(Console, "MR:"+n)
		if h.m.Wheels[types.Right].Target != uint8(s) {
			t.Fatalf("MR:%d", s)
		}
		h.r.Handle(Console, n)
		if h.m.Wheels[0].Target != uint8(s) || h.m.Wheels[1].Target != uint8(s) {
			t.Fatalf("%d", s)
		}
	}
}

func TestStatusFrames(t *testing.T) {
	h := newHarness()
	h.r.Handle(Supervisory, "F")
	h.super.reset()
	h.r.Handle(Supervisory, "ROS:STATUS")
	want := []string{
		"STATUS:ML:FORWARD:0:150:0.0:0.00:0.00:0:0",
		"STATUS:MR:FORWARD:0:150:0.0:0.00:0.00:0:0",
		"SYS:0:0:0:1",
	}
	if len(h.super) != len(want) {
		t.Fatalf("got %v", h.super)
	}
	for i := range want {
		if h.super[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, h.super[i], want[i])
		}
	}
}

func TestConsoleStatusReportsPulsesAndFlags(t *testing.T) {
	h := newHarness()
	h.r.Handle(Console, "F")
	h.r.Handle(Console, "SB")
	h.console.reset()
	h.r.Handle(Console, "STATUS")
	if len(h.console) < 5 {
		t.Fatalf("console = %v", h.console)
	}
	if !strings.Contains(h.console[0], "pulses 0 braking YES") {
		t.Fatalf("wheel line %q", h.console[0])
	}
	if h.console[4] != "System: emergency INACTIVE | soft brake ACTIVE | hard brake INACTIVE | link NO" {
		t.Fatalf("system line %q", h.console[4])
	}

	h.r.Handle(Console, "E")
	h.console.reset()
	h.r.Handle(Console, "STATUS")
	if !strings.HasPrefix(h.console[4], "System: emergency ACTIVE | soft brake INACTIVE") {
		t.Fatalf("latched system line %q", h.console[4])
	}
}

func TestPIDStatusFrame(t *testing.T) {
	h := newHarness()
	h.r.Handle(Supervisory, "PID:STATUS")
	if len(h.super) != 2 || h.super[0] != "PID_STATUS:L:0.150:0.700:0.001:0.0:0.0:0.0:0.0:0.0:0.0" {
		t.Fatalf("got %v", h.super)
	}
}

func TestConsoleSupervisoryPrefixRoutesToLink(t *testing.T) {
	h := newHarness()
	h.r.Handle(Console, "ros:speed:80")
	if h.super.last() != "ACK:SPEED:80" {
		t.Fatalf("super = %v", h.super)
	}
	if !h.m.Safety.LinkConnected {
		t.Fatal("simulated frame should count as a heartbeat")
	}
	if len(h.console) != 0 {
		t.Fatalf("console = %v", h.console)
	}
}

func TestUnknownCommandConsole(t *testing.T) {
	h := newHarness()
	h.r.Handle(Console, "dance")
	if len(h.console) != 2 || !strings.HasPrefix(h.console[0], "ERR unknown_command") {
		t.Fatalf("console = %v", h.console)
	}
}

func TestStreamHook(t *testing.T) {
	h := newHarness()
	var got time.Duration = -1
	h.r.OnStream = func(d time.Duration) { got = d }
	h.r.Handle(Supervisory, "STREAM:200")
	if got != 200*time.Millisecond || h.super.last() != "ACK:STREAM:200" {
		t.Fatalf("got %v ack %q", got, h.super.last())
	}
}

func TestBoth200ThenTickMonotonic(t *testing.T) {
	small, large := newHarness(), newHarness()
	small.r.Handle(Console, "BOTH:100")
	large.r.Handle(Console, "BOTH:200")
	for _, h := range []*harness{small, large} {
		h.clk.Advance(20 * time.Millisecond)
		h.m.ControlTick()
	}
	if !(large.left.duty > small.left.duty) {
		t.Fatalf("BOTH:200 duty %d not above BOTH:100 duty %d", large.left.duty, small.left.duty)
	}
}

func TestTelemetryLine(t *testing.T) {
	var st types.Status
	st.Wheels[0] = types.WheelStatus{Wheel: types.Left, RPM: 12.346, MPH: 0.26, KPH: 0.42}
	st.Wheels[1] = types.WheelStatus{Wheel: types.Right}
	want := "TLM L:12.35rpm 0.26mph 0.42kph | R:0.00rpm 0.00mph 0.00kph"
	if got := TelemetryLine(st); got != want {
		t.Fatalf("got %q", got)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [4]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}
