package ramp

import (
	"time"

	"hubdrive-go/x/mathx"
)

// Progress returns elapsed/total clamped to [0,1]. total<=0 is treated as done.
func Progress(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	return mathx.Clamp(float64(elapsed)/float64(total), 0, 1)
}

// Quadratic is the soft-stop profile: from·(1 − p²) with p = Progress(elapsed, total).
// It starts flat, steepens towards the end, and is exactly 0 once elapsed >= total.
// Non-increasing in elapsed for a fixed from.
func Quadratic(from uint8, elapsed, total time.Duration) uint8 {
	p := Progress(elapsed, total)
	return mathx.DutyU8(float64(from) * (1 - p*p))
}
