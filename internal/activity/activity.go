// Package activity classifies a stream of pointer events into ACTIVE and
// INACTIVE states.
//
// The core of the package is the Detector, a single control loop that races
// two conditions: "the next tick arrives" and "the inactivity threshold
// elapses with no tick." A tick while INACTIVE flips the state to ACTIVE
// immediately; the absence of ticks for the configured threshold flips the
// state back to INACTIVE within a bounded delay, even when no further tick
// ever arrives.
//
// The detector owns all mutable state. Other goroutines observe it only
// through transition channels (Subscribe) and point-in-time snapshots.
package activity

import (
	"errors"
	"time"
)

// State is the classified pointer activity state.
type State int

const (
	// StateInactive is the initial state: no activity has been observed
	// within the threshold window.
	StateInactive State = iota

	// StateActive means a tick arrived within the threshold window.
	StateActive
)

// String returns the canonical upper-case name used on all output surfaces.
func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateInactive:
		return "INACTIVE"
	default:
		return "UNKNOWN"
	}
}

// Tick is a single observed input event. Ticks are immutable and consumed
// exactly once by the detector.
type Tick struct {
	// At is the monotonic clock reading when the event was observed.
	At time.Time

	// Device identifies the originating device (name or node path).
	Device string
}

// Transition records a state change. It is emitted if and only if the
// computed next state differs from the current state.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// ErrSourceClosed is returned by Detector.Run when the tick stream ends.
// Once the source of truth for activity is gone there is no valid
// inactivity signal, so the detector stops instead of freezing in the last
// known state.
var ErrSourceClosed = errors.New("activity: tick source closed")

// ErrInvalidThreshold is returned when the configured threshold is not
// strictly positive.
var ErrInvalidThreshold = errors.New("activity: threshold must be positive")
