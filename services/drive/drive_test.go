package drive

import (
	"testing"
	"time"

	"hubdrive-go/control/pid"
	"hubdrive-go/control/speed"
	"hubdrive-go/types"
	"hubdrive-go/x/timex"
)

const ms = time.Millisecond

type recActuator struct {
	dir  types.Direction
	duty uint8
	dirs []types.Direction
}

func (a *recActuator) SetDirection(d types.Direction) { a.dir = d; a.dirs = append(a.dirs, d) }
func (a *recActuator) SetDuty(v uint8)                { a.duty = v }

type fixture struct {
	m     *Machine
	clk   *timex.Fake
	left  *recActuator
	right *recActuator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clk: timex.NewFake(10 * time.Second), left: &recActuator{}, right: &recActuator{}}
	g := pid.Gains{Kp: 0.15, Ki: 0.7, Kd: 0.001, MaxIntegral: 50}
	est := speed.Estimator{PulsesPerRotation: 44, CircumferenceIn: 22.25, CircumferenceCm: 56.5}
	f.m = New(f.clk, DefaultParams(),
		WheelConfig{Estimator: est, Gains: g, Actuator: f.left},
		WheelConfig{Estimator: est, Gains: g, Actuator: f.right})
	return f
}

func TestNewStartsCoasting(t *testing.T) {
	f := newFixture(t)
	for _, w := range f.m.Wheels {
		if w.Direction != types.Coasting || w.Current != 0 || w.Target != 0 {
			t.Fatalf("wheel %v: %+v", w.ID, w)
		}
	}
	if f.left.dir != types.Coasting {
		t.Fatalf("actuator direction %v", f.left.dir)
	}
}

func TestSpeedCommandsTargetOnlySelectedWheels(t *testing.T) {
	f := newFixture(t)
	for s := 0; s <= 255; s++ {
		f.m.SetSpeed(types.TargetBoth, 7)
		if !f.m.SetSpeed(types.TargetLeft, uint8(s)) {
			t.Fatal("SetSpeed refused")
		}
		if f.m.Wheels[types.Left].Target != uint8(s) || f.m.Wheels[types.Right].Target != 7 {
			t.Fatalf("left command s=%d leaked: %d/%d", s, f.m.Wheels[0].Target, f.m.Wheels[1].Target)
		}
		f.m.SetSpeed(types.TargetRight, uint8(s))
		if f.m.Wheels[types.Left].Target != uint8(s) || f.m.Wheels[types.Right].Target != uint8(s) {
			t.Fatalf("right command s=%d", s)
		}
		f.m.SetBothSpeed(uint8(255 - s))
		if f.m.Wheels[0].Target != uint8(255-s) || f.m.Wheels[1].Target != uint8(255-s) {
			t.Fatalf("both command s=%d", s)
		}
	}
}

func TestCruiseDefaultsIdleWheels(t *testing.T) {
	f := newFixture(t)
	f.m.Wheels[types.Right].Current = 90
	f.m.Cruise(types.TargetBoth, types.Reverse)
	if f.m.Wheels[types.Left].Target != 150 || f.m.Wheels[types.Right].Target != 90 {
		t.Fatalf("targets %d/%d", f.m.Wheels[0].Target, f.m.Wheels[1].Target)
	}
	if f.left.dir != types.Reverse || f.right.dir != types.Reverse {
		t.Fatal("direction lines not set")
	}
}

func TestStopAndCoast(t *testing.T) {
	f := newFixture(t)
	f.m.SetForward(types.TargetBoth)
	f.m.SetBothSpeed(120)
	f.m.Stop(types.TargetLeft)
	if w := f.m.Wheels[types.Left]; w.Direction != types.Stopped || w.Target != 0 || f.left.duty != 0 {
		t.Fatalf("stop: %+v", w)
	}
	if f.m.Wheels[types.Right].Target != 120 {
		t.Fatal("stop leaked to right wheel")
	}
	f.m.Coast(types.TargetRight)
	if w := f.m.Wheels[types.Right]; w.Direction != types.Coasting || w.Target != 0 || f.right.dir != types.Coasting {
		t.Fatalf("coast: %+v", w)
	}
}

func TestStoppedWheelsStayUnpoweredAcrossTicks(t *testing.T) {
	for _, tc := range []struct {
		name string
		dir  types.Direction
		halt func(f *fixture)
	}{
		{"stop", types.Stopped, func(f *fixture) { f.m.Stop(types.TargetBoth) }},
		{"coast", types.Coasting, func(f *fixture) { f.m.Coast(types.TargetBoth) }},
		{"hard brake", types.Stopped, func(f *fixture) { f.m.ActivateHardBrake() }},
		{"soft brake", types.Stopped, func(f *fixture) {
			f.m.ActivateSoftBrake()
			for i := 0; i < 50 && !f.m.UpdateBraking(); i++ {
				f.clk.Advance(30 * ms)
			}
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.m.SetForward(types.TargetBoth)
			f.m.SetBothSpeed(200)
			// no pulses: the integral winds up to its clamp
			for i := 0; i < 200; i++ {
				f.clk.Advance(20 * ms)
				f.m.ControlTick()
			}
			if f.m.Wheels[0].PID.Integral() == 0 {
				t.Fatal("precondition: integral accumulated")
			}
			tc.halt(f)
			for i := 0; i < 10; i++ {
				f.clk.Advance(20 * ms)
				f.m.ControlTick()
				for _, w := range f.m.Wheels {
					if w.Direction != tc.dir || w.Target != 0 || w.Current != 0 {
						t.Fatalf("tick %d wheel %v: dir=%v target=%d current=%d", i, w.ID, w.Direction, w.Target, w.Current)
					}
				}
				if f.left.duty != 0 || f.right.duty != 0 {
					t.Fatalf("tick %d: duty %d/%d", i, f.left.duty, f.right.duty)
				}
			}
			if f.m.Wheels[0].PID.Integral() != 0 {
				t.Fatalf("integral %v left after halt", f.m.Wheels[0].PID.Integral())
			}
		})
	}
}

func TestEmergencyIdempotent(t *testing.T) {
	f := newFixture(t)
	f.m.SetForward(types.TargetBoth)
	f.m.SetBothSpeed(200)
	f.m.ActivateSoftBrake()

	f.m.EmergencyStop()
	once := f.m.Status()
	f.m.EmergencyStop()
	f.m.EmergencyStop()
	if twice := f.m.Status(); twice != once {
		t.Fatalf("state changed on repeat:\n%+v\n%+v", once, twice)
	}
	if !once.System.EmergencyStop || once.System.SoftBrake || once.System.HardBrake {
		t.Fatalf("flags: %+v", once.System)
	}
	for _, w := range once.Wheels {
		if w.Current != 0 || w.Target != 0 || w.Braking {
			t.Fatalf("wheel not zeroed: %+v", w)
		}
	}
}

func TestLatchBlocksMotionUntilCleared(t *testing.T) {
	f := newFixture(t)
	f.m.EmergencyStop()
	before := f.m.Status()

	if f.m.SetForward(types.TargetBoth) || f.m.SetReverse(types.TargetLeft) ||
		f.m.SetSpeed(types.TargetRight, 50) || f.m.SetBothSpeed(80) ||
		f.m.Cruise(types.TargetBoth, types.Forward) ||
		f.m.ActivateSoftBrake() || f.m.ActivateHardBrake() {
		t.Fatal("motion accepted while latched")
	}
	if after := f.m.Status(); after != before {
		t.Fatalf("latched state changed:\n%+v\n%+v", before, after)
	}

	f.m.ClearEmergency()
	if !f.m.SetForward(types.TargetBoth) || !f.m.SetBothSpeed(80) {
		t.Fatal("motion refused after clear")
	}
	if f.m.Wheels[0].Direction != types.Forward || f.m.Wheels[1].Target != 80 {
		t.Fatal("motion not applied after clear")
	}
}

func TestClearEmergencyResetsRegulators(t *testing.T) {
	f := newFixture(t)
	f.m.SetBothSpeed(200)
	f.clk.Advance(20 * ms)
	f.m.ControlTick()
	f.clk.Advance(20 * ms)
	f.m.ControlTick()
	if f.m.Wheels[0].PID.Integral() == 0 {
		t.Fatal("precondition: integral accumulated")
	}
	f.m.EmergencyStop()
	f.m.ClearEmergency()
	for _, w := range f.m.Wheels {
		if w.PID.Integral() != 0 || w.PID.Output() != 0 || w.Target != 0 || w.Direction != types.Stopped {
			t.Fatalf("wheel %v after clear: %+v", w.ID, w.PID.Status())
		}
	}
}

func TestSoftBrakeMonotonicToZero(t *testing.T) {
	f := newFixture(t)
	f.m.SetForward(types.TargetBoth)
	f.m.SetSpeed(types.TargetLeft, 200)
	f.m.SetSpeed(types.TargetRight, 37)
	f.m.ActivateSoftBrake()

	start := f.clk.Now()
	prev := [2]uint8{255, 255}
	completed := false
	for f.clk.Now()-start <= f.m.p.SoftBrakeTime+30*ms {
		f.clk.Advance(30 * ms)
		done := f.m.UpdateBraking()
		for i, w := range f.m.Wheels {
			if !completed && w.Current > prev[i] {
				t.Fatalf("wheel %d rose %d -> %d", i, prev[i], w.Current)
			}
			prev[i] = w.Current
		}
		if done {
			completed = true
			if f.clk.Now()-start > f.m.p.SoftBrakeTime+30*ms {
				t.Fatal("completed late")
			}
			break
		}
	}
	if !completed {
		t.Fatal("soft brake never completed")
	}
	st := f.m.Status()
	if st.System.SoftBrake || st.Wheels[0].Braking || st.Wheels[0].Target != 0 || st.Wheels[0].Direction != types.Stopped {
		t.Fatalf("not settled: %+v", st)
	}
}

func TestSoftBrakeOwnsDutyOverPID(t *testing.T) {
	f := newFixture(t)
	f.m.SetForward(types.TargetBoth)
	f.m.SetBothSpeed(200)
	f.m.ActivateSoftBrake()
	f.clk.Advance(500 * ms)
	f.m.UpdateBraking()
	held := f.left.duty
	f.m.ControlTick()
	if f.left.duty != held {
		t.Fatalf("PID overrode brake profile: %d -> %d", held, f.left.duty)
	}
}

func TestSpeedCommandSupersedesSoftBrake(t *testing.T) {
	f := newFixture(t)
	f.m.SetBothSpeed(100)
	f.m.ActivateSoftBrake()
	f.m.SetSpeed(types.TargetLeft, 60)
	if f.m.Safety.SoftBrake || f.m.Wheels[0].IsBraking || f.m.Wheels[1].IsBraking {
		t.Fatal("soft brake still active")
	}
}

func TestHardBrakePulse(t *testing.T) {
	f := newFixture(t)
	f.m.SetForward(types.TargetBoth)
	f.m.SetBothSpeed(180)
	before := f.clk.Now()
	f.m.ActivateHardBrake()

	if got := f.clk.Now() - before; got != 100*ms {
		t.Fatalf("pulse lasted %v", got)
	}
	n := len(f.left.dirs)
	if n < 2 || f.left.dirs[n-2] != types.Reverse || f.left.dirs[n-1] != types.Stopped {
		t.Fatalf("direction sequence %v", f.left.dirs)
	}
	st := f.m.Status()
	if st.System.HardBrake || st.System.SoftBrake || st.Wheels[1].Target != 0 || st.Wheels[1].Braking {
		t.Fatalf("after hard brake: %+v", st)
	}
}

func TestWatchdogTrips(t *testing.T) {
	f := newFixture(t)
	now := f.clk.Now()
	f.m.Heartbeat(now - 2001*ms)
	if !f.m.Safety.LinkConnected {
		t.Fatal("heartbeat did not connect")
	}
	if !f.m.CheckWatchdog(now) {
		t.Fatal("watchdog did not trip")
	}
	if !f.m.Safety.EmergencyStop || f.m.Safety.LinkConnected {
		t.Fatalf("safety: %+v", f.m.Safety)
	}
	if f.m.CheckWatchdog(now + time.Second) {
		t.Fatal("watchdog tripped twice")
	}
}

func TestWatchdogQuietWithinTimeout(t *testing.T) {
	f := newFixture(t)
	now := f.clk.Now()
	f.m.Heartbeat(now - 2000*ms)
	if f.m.CheckWatchdog(now) {
		t.Fatal("tripped at exactly the timeout")
	}
	// Never connected: never trips.
	g := newFixture(t)
	if g.m.CheckWatchdog(g.clk.Now() + time.Hour) {
		t.Fatal("tripped without a link")
	}
}

func TestControlTickDrivesFromRegulator(t *testing.T) {
	f := newFixture(t)
	f.m.SetForward(types.TargetBoth)
	f.m.SetBothSpeed(200)
	f.clk.Advance(20 * ms)
	f.m.ControlTick()
	if f.left.duty == 0 || f.m.Wheels[0].Current != f.left.duty {
		t.Fatalf("duty %d current %d", f.left.duty, f.m.Wheels[0].Current)
	}
}

func TestControlTickLargerErrorLargerOutput(t *testing.T) {
	small, large := newFixture(t), newFixture(t)
	small.m.SetBothSpeed(50)
	large.m.SetBothSpeed(200)
	for _, f := range []*fixture{small, large} {
		f.clk.Advance(20 * ms)
		f.m.ControlTick()
	}
	if !(large.left.duty > small.left.duty) {
		t.Fatalf("duty %d not above %d", large.left.duty, small.left.duty)
	}
}

func TestControlTickHoldsZeroWhileLatched(t *testing.T) {
	f := newFixture(t)
	f.m.SetBothSpeed(200)
	f.m.EmergencyStop()
	f.m.Wheels[0].Target = 200 // forced; the tick must still hold zero
	f.clk.Advance(20 * ms)
	f.m.ControlTick()
	if f.left.duty != 0 {
		t.Fatalf("duty %d while latched", f.left.duty)
	}
}

func TestControlTickMeasuresPulses(t *testing.T) {
	f := newFixture(t)
	f.clk.Advance(20 * ms)
	f.m.ControlTick() // primes the estimator window
	c := f.m.Counter(types.Left)
	for i := 0; i < 11; i++ {
		c.Record(f.clk.Now() + time.Duration(i+1)*ms)
	}
	f.clk.Advance(20 * ms)
	f.m.ControlTick()
	st := f.m.Status()
	if st.Wheels[0].Pulses != 11 || st.Wheels[0].RPM < 749 || st.Wheels[0].RPM > 751 {
		t.Fatalf("left sample %+v", st.Wheels[0])
	}
	if st.Wheels[1].RPM != 0 {
		t.Fatalf("right sample %+v", st.Wheels[1])
	}
}
