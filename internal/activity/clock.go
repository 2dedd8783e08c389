package activity

import "time"

// Clock abstracts time for the detector so tests can drive it with a
// virtual clock and assert exact transition timestamps.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTimer returns a timer that fires once after d.
	NewTimer(d time.Duration) Timer
}

// Timer is the subset of time.Timer the detector needs.
type Timer interface {
	// C returns the channel the timer fires on.
	C() <-chan time.Time

	// Stop prevents the timer from firing. It reports whether the timer
	// was still pending; when it returns false a fired value may still
	// sit in C and must be drained before Reset.
	Stop() bool

	// Reset re-arms the timer to fire after d. The caller must have
	// stopped and drained the timer first.
	Reset(d time.Duration)
}

// SystemClock returns a Clock backed by the runtime's monotonic clock.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTimer(d time.Duration) Timer {
	return &systemTimer{t: time.NewTimer(d)}
}

type systemTimer struct {
	t *time.Timer
}

func (t *systemTimer) C() <-chan time.Time { return t.t.C }

func (t *systemTimer) Stop() bool { return t.t.Stop() }

func (t *systemTimer) Reset(d time.Duration) { t.t.Reset(d) }
