package scheduler

import (
	"context"
	"reflect"
	"testing"
	"time"

	"hubdrive-go/x/timex"
)

const ms = time.Millisecond

func TestOrderWithinPass(t *testing.T) {
	clk := timex.NewFake(time.Second)
	s := New(clk)
	var got []string
	rec := func(name string) func(time.Duration) { return func(time.Duration) { got = append(got, name) } }

	s.Always("drain", rec("drain"))
	s.Always("watchdog", rec("watchdog"))
	s.Every("pid", 20*ms, rec("pid"))
	s.Every("brake", 30*ms, rec("brake"))
	s.Every("telemetry", 500*ms, rec("telemetry"))
	s.Always("indicator", rec("indicator"))

	clk.Advance(500 * ms)
	s.Poll()
	want := []string{"drain", "watchdog", "pid", "brake", "telemetry", "indicator"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order %v, want %v", got, want)
	}
}

func TestPeriodsIndependent(t *testing.T) {
	clk := timex.NewFake(time.Second)
	s := New(clk)
	pid := s.Every("pid", 20*ms, func(time.Duration) {})
	brake := s.Every("brake", 30*ms, func(time.Duration) {})

	for i := 0; i < 60; i++ { // 60 ms in 1 ms steps
		clk.Advance(ms)
		s.Poll()
	}
	if pid.Runs() != 3 || brake.Runs() != 2 {
		t.Fatalf("pid %d brake %d", pid.Runs(), brake.Runs())
	}
}

func TestNoBurstAfterStall(t *testing.T) {
	clk := timex.NewFake(time.Second)
	s := New(clk)
	task := s.Every("pid", 20*ms, func(time.Duration) {})
	clk.Advance(time.Second)
	s.Poll()
	s.Poll()
	if task.Runs() != 1 {
		t.Fatalf("runs %d after long stall, want 1", task.Runs())
	}
}

func TestSetPeriod(t *testing.T) {
	clk := timex.NewFake(time.Second)
	s := New(clk)
	stream := s.Every("stream", 100*ms, func(time.Duration) {})
	s.SetPeriod(stream, 0)
	clk.Advance(time.Second)
	s.Poll()
	if stream.Runs() != 0 {
		t.Fatal("disabled task ran")
	}
	s.SetPeriod(stream, 50*ms)
	clk.Advance(49 * ms)
	s.Poll()
	if stream.Runs() != 0 {
		t.Fatal("ran before new period elapsed")
	}
	clk.Advance(ms)
	s.Poll()
	if stream.Runs() != 1 {
		t.Fatal("did not run after new period")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(timex.NewFake(0))
	ctx, cancel := context.WithCancel(context.Background())
	passes := 0
	s.Always("count", func(time.Duration) {
		passes++
		if passes == 5 {
			cancel()
		}
	})
	if err := s.Run(ctx); err != context.Canceled {
		t.Fatalf("Run = %v", err)
	}
	if passes != 5 {
		t.Fatalf("passes %d", passes)
	}
}
