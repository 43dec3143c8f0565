package utils

import "time"

// Timer measures the wall-clock latency of one operation. It starts on
// construction; Stop freezes the measurement and may be called more than once,
// only the first call counts.
type Timer struct {
	start   time.Time
	elapsed time.Duration
	stopped bool
}

// NewTimer returns a running Timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop freezes the timer and returns the measured duration.
func (t *Timer) Stop() time.Duration {
	if !t.stopped {
		t.elapsed = time.Since(t.start)
		t.stopped = true
	}
	return t.elapsed
}

// Elapsed returns the frozen duration once stopped, or the running time so far.
func (t *Timer) Elapsed() time.Duration {
	if t.stopped {
		return t.elapsed
	}
	return time.Since(t.start)
}
