package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Snapshot is a point-in-time view of the detector state.
type Snapshot struct {
	State    State     `json:"state"`
	LastTick time.Time `json:"last_tick"`
}

// Detector consumes a timestamped tick stream and emits state transitions.
//
// The detector starts at rest (INACTIVE); the very first tick drives an
// immediate transition to ACTIVE. While ACTIVE, each tick refreshes the
// last-tick timestamp without emitting anything. When no tick arrives for
// the threshold duration, the detector transitions to INACTIVE. Ties are
// resolved in favor of ACTIVE: a tick deliverable at the instant the
// deadline fires is consumed before the timeout is evaluated.
type Detector struct {
	threshold time.Duration
	clock     Clock
	ticks     <-chan Tick
	log       *slog.Logger

	mu        sync.RWMutex
	state     State
	lastTick  time.Time
	listeners []chan Transition
}

// NewDetector creates a detector with the given inactivity threshold.
// The threshold must be strictly positive; a zero clock selects the
// system clock. The detector takes ownership of reading from ticks.
func NewDetector(threshold time.Duration, clock Clock, ticks <-chan Tick) (*Detector, error) {
	if threshold <= 0 {
		return nil, ErrInvalidThreshold
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Detector{
		threshold: threshold,
		clock:     clock,
		ticks:     ticks,
		log:       slog.Default(),
		state:     StateInactive,
	}, nil
}

// SetLogger replaces the detector's logger. Must be called before Run.
func (d *Detector) SetLogger(log *slog.Logger) {
	if log != nil {
		d.log = log
	}
}

// Subscribe returns a channel receiving every transition. Sends are
// non-blocking: a consumer that falls behind loses transitions rather than
// stalling detection. The channel is closed when Run returns.
func (d *Detector) Subscribe() <-chan Transition {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := make(chan Transition, 16)
	d.listeners = append(d.listeners, ch)
	return ch
}

// Snapshot returns the current state and the timestamp of the last tick.
func (d *Detector) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Snapshot{State: d.state, LastTick: d.lastTick}
}

// Run drives the detection loop until ctx is cancelled or the tick stream
// ends. A closed tick stream returns ErrSourceClosed; cancellation returns
// ctx.Err(). All listener channels are closed on return.
func (d *Detector) Run(ctx context.Context) error {
	defer d.closeListeners()

	timer := d.clock.NewTimer(d.threshold)
	if !timer.Stop() {
		<-timer.C()
	}
	armed := false

	rearm := func(dur time.Duration) {
		if armed && !timer.Stop() {
			select {
			case <-timer.C():
			default:
			}
		}
		timer.Reset(dur)
		armed = true
	}

	for {
		select {
		case <-ctx.Done():
			if armed {
				timer.Stop()
			}
			return ctx.Err()

		case tick, ok := <-d.ticks:
			if !ok {
				return ErrSourceClosed
			}
			d.onTick(tick)
			rearm(d.threshold)

		case now := <-timer.C():
			armed = false

			// Tick precedence: movement that arrived by the deadline keeps
			// the state ACTIVE even if its delivery raced the timer.
			select {
			case tick, ok := <-d.ticks:
				if !ok {
					return ErrSourceClosed
				}
				d.onTick(tick)
				rearm(d.threshold)
				continue
			default:
			}

			d.mu.Lock()
			idle := now.Sub(d.lastTick)
			if d.state != StateActive {
				d.mu.Unlock()
				continue
			}
			if idle < d.threshold {
				// A refresh moved the deadline; wait out the remainder.
				d.mu.Unlock()
				rearm(d.threshold - idle)
				continue
			}
			tr := Transition{From: StateActive, To: StateInactive, At: now}
			d.state = StateInactive
			d.mu.Unlock()

			d.emit(tr)
		}
	}
}

// onTick applies a tick: INACTIVE becomes ACTIVE with a transition event,
// ACTIVE is refreshed silently.
func (d *Detector) onTick(tick Tick) {
	d.mu.Lock()
	d.lastTick = tick.At
	if d.state == StateActive {
		d.mu.Unlock()
		return
	}
	tr := Transition{From: StateInactive, To: StateActive, At: tick.At}
	d.state = StateActive
	d.mu.Unlock()

	d.emit(tr)
}

func (d *Detector) emit(tr Transition) {
	d.log.Debug("state transition", "from", tr.From.String(), "to", tr.To.String(), "at", tr.At)

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, ch := range d.listeners {
		select {
		case ch <- tr:
		default:
			d.log.Warn("transition listener full, dropping event", "to", tr.To.String())
		}
	}
}

func (d *Detector) closeListeners() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.listeners {
		close(ch)
	}
	d.listeners = nil
}
