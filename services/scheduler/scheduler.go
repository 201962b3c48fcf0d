// Package scheduler runs ordered periodic tasks on one goroutine.
package scheduler

import (
	"context"
	"time"

	"hubdrive-go/x/timex"
)

// IdleYield is the pause between passes in Run.
const IdleYield = time.Millisecond

// Task is one phase of a pass. A zero period runs it on every pass.
type Task struct {
	Name   string
	Period time.Duration
	Fn     func(now time.Duration)

	last    time.Duration
	started bool
	runs    uint32
	off     bool
}

// Runs is the number of times the task has fired.
func (t *Task) Runs() uint32 { return t.runs }

func (t *Task) due(now time.Duration) bool {
	if t.off {
		return false
	}
	if t.Period == 0 || !t.started {
		return true
	}
	return now-t.last >= t.Period
}

// Scheduler polls its tasks in registration order. Each task keeps its own
// last-run stamp, so phases fire or skip independently in the same pass.
type Scheduler struct {
	clock timex.Clock
	tasks []*Task
}

func New(clock timex.Clock) *Scheduler {
	if clock == nil {
		clock = timex.System()
	}
	return &Scheduler{clock: clock}
}

// Always registers a task that runs on every pass.
func (s *Scheduler) Always(name string, fn func(now time.Duration)) *Task {
	return s.add(&Task{Name: name, Fn: fn})
}

// Every registers a periodic task. Its first run is one period after
// registration.
func (s *Scheduler) Every(name string, period time.Duration, fn func(now time.Duration)) *Task {
	t := &Task{Name: name, Period: period, Fn: fn}
	if period > 0 {
		t.last, t.started = s.clock.Now(), true
	}
	return s.add(t)
}

func (s *Scheduler) add(t *Task) *Task {
	s.tasks = append(s.tasks, t)
	return t
}

// SetPeriod changes a task's period. Zero or negative disables a periodic
// task; the next run is one new period after the change.
func (s *Scheduler) SetPeriod(t *Task, period time.Duration) {
	if period <= 0 {
		t.off = true
		return
	}
	t.off = false
	t.Period = period
	t.last, t.started = s.clock.Now(), true
}

// Tasks returns the registered tasks in order.
func (s *Scheduler) Tasks() []*Task { return s.tasks }

// Poll runs one pass and returns how many tasks fired.
func (s *Scheduler) Poll() int {
	n := 0
	for _, t := range s.tasks {
		now := s.clock.Now()
		if !t.due(now) {
			continue
		}
		t.last, t.started = now, true
		t.runs++
		t.Fn(now)
		n++
	}
	return n
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.Poll()
		s.clock.Sleep(IdleYield)
	}
}
