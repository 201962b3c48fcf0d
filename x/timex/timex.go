package timex

import (
	"sync/atomic"
	"time"
)

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Clock is the monotonic time source for the control path.
// Now is measured from boot, so a zero value means "never".
type Clock interface {
	Now() time.Duration
	Sleep(d time.Duration)
}

type systemClock struct{ boot time.Time }

// System returns a Clock backed by the runtime monotonic clock, zeroed at the call.
func System() Clock { return &systemClock{boot: time.Now()} }

func (c *systemClock) Now() time.Duration    { return time.Since(c.boot) }
func (c *systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Fake is a manually stepped Clock. Sleep advances it instead of blocking.
// Safe to read from an ISR-style goroutine while the test goroutine advances it.
type Fake struct{ now atomic.Int64 }

func NewFake(start time.Duration) *Fake {
	f := &Fake{}
	f.now.Store(int64(start))
	return f
}

func (f *Fake) Now() time.Duration    { return time.Duration(f.now.Load()) }
func (f *Fake) Sleep(d time.Duration) { f.Advance(d) }
func (f *Fake) Set(t time.Duration)   { f.now.Store(int64(t)) }
func (f *Fake) Advance(d time.Duration) time.Duration {
	if d < 0 {
		d = 0
	}
	return time.Duration(f.now.Add(int64(d)))
}

// Ms reports d in whole milliseconds.
func Ms(d time.Duration) int64 { return int64(d / time.Millisecond) }
