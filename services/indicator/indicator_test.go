package indicator

import (
	"testing"
	"time"

	"hubdrive-go/bus"
	"hubdrive-go/types"
)

const ms = time.Millisecond

type fakeLED struct {
	on      bool
	toggles int
}

func (l *fakeLED) Set(on bool) {
	if on != l.on {
		l.toggles++
	}
	l.on = on
}

func run(ind *Indicator, from, to, step time.Duration, sys types.SystemStatus) time.Duration {
	for now := from; now <= to; now += step {
		ind.Update(now, sys)
	}
	return to
}

func TestLinkedIsSolid(t *testing.T) {
	led := &fakeLED{}
	ind := New(led, DefaultTiming())
	run(ind, 0, 3*time.Second, 10*ms, types.SystemStatus{LinkConnected: true})
	if !led.on || led.toggles != 1 || ind.Mode() != Linked {
		t.Fatalf("on=%v toggles=%d mode=%v", led.on, led.toggles, ind.Mode())
	}
}

func TestBlinkRates(t *testing.T) {
	cases := []struct {
		sys  types.SystemStatus
		mode Mode
		want int // toggles over 2 s
	}{
		{types.SystemStatus{}, Standalone, 3},                    // t=0, 1s, 2s
		{types.SystemStatus{EmergencyStop: true}, Emergency, 11}, // every 200 ms
	}
	for _, c := range cases {
		led := &fakeLED{}
		ind := New(led, DefaultTiming())
		run(ind, 0, 2*time.Second, 10*ms, c.sys)
		if ind.Mode() != c.mode || led.toggles != c.want {
			t.Fatalf("%v: mode %v toggles %d, want %d", c.mode, ind.Mode(), led.toggles, c.want)
		}
	}
}

func TestFaultBurstPreemptsThenResumes(t *testing.T) {
	led := &fakeLED{}
	ind := New(led, DefaultTiming())
	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	ind.Attach(conn)

	conn.Publish(conn.NewMessage(bus.T("drive", "fault"), types.Fault{Code: "timeout"}, false))
	sys := types.SystemStatus{EmergencyStop: true}
	ind.Update(0, sys)
	if ind.Mode() != Burst {
		t.Fatalf("mode %v", ind.Mode())
	}
	// Five flashes at 100 ms steps take 900 ms after the first edge.
	run(ind, 10*ms, 900*ms, 10*ms, sys)
	if led.toggles != 10 || led.on {
		t.Fatalf("toggles %d on=%v", led.toggles, led.on)
	}
	ind.Update(910*ms, sys)
	if ind.Mode() != Emergency {
		t.Fatalf("mode after burst %v", ind.Mode())
	}
}
