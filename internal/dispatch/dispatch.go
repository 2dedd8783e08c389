// Package dispatch invokes the externally configured executables on
// activity state transitions.
//
// Dispatch is fire-and-forget: the child is started detached and reaped in
// the background, so a slow or hung hook never blocks detection of the next
// transition. A hook that fails to spawn, or exits non-zero, is logged and
// counted but never propagated back to the detector.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"mousewatch/internal/activity"
)

// Dispatcher maps transitions to hook executables.
type Dispatcher struct {
	mu         sync.RWMutex
	onActive   string
	onInactive string

	log     *slog.Logger
	onRun   func() // optional metrics callback, once per spawned hook
	onError func() // optional metrics callback, once per failed dispatch
}

// New creates a dispatcher. Empty hook paths disable the corresponding
// transition.
func New(onActive, onInactive string, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		onActive:   onActive,
		onInactive: onInactive,
		log:        log,
	}
}

// SetHooks replaces the hook paths; used for config hot reload.
func (d *Dispatcher) SetHooks(onActive, onInactive string) {
	d.mu.Lock()
	d.onActive = onActive
	d.onInactive = onInactive
	d.mu.Unlock()
}

// OnRun registers a callback invoked once per successfully spawned hook.
func (d *Dispatcher) OnRun(fn func()) {
	d.mu.Lock()
	d.onRun = fn
	d.mu.Unlock()
}

// OnError registers a callback invoked once per failed dispatch.
func (d *Dispatcher) OnError(fn func()) {
	d.mu.Lock()
	d.onError = fn
	d.mu.Unlock()
}

// Run consumes transitions until the channel closes or ctx is cancelled.
// In-flight children are not waited for on shutdown.
func (d *Dispatcher) Run(ctx context.Context, transitions <-chan activity.Transition) {
	for {
		select {
		case <-ctx.Done():
			return
		case tr, ok := <-transitions:
			if !ok {
				return
			}
			if err := d.Dispatch(tr); err != nil {
				d.log.Error("hook dispatch failed", "state", tr.To.String(), "error", err)
				d.notifyError()
			}
		}
	}
}

// Dispatch spawns the executable configured for the transition's new state.
// No-op when none is configured. The returned error reports a spawn
// failure; callers treat it as diagnostic, never fatal.
func (d *Dispatcher) Dispatch(tr activity.Transition) error {
	path := d.hookFor(tr.To)
	if path == "" {
		return nil
	}

	cmd := exec.Command(path)
	cmd.Env = append(os.Environ(), "MOUSEWATCH_STATE="+tr.To.String())
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("dispatch: run %s: %w", path, err)
	}

	d.log.Debug("hook started", "path", path, "state", tr.To.String(), "pid", cmd.Process.Pid)
	d.notifyRun()

	// Reap in the background; a non-zero exit is worth a line but nothing
	// more, detection continues regardless.
	go func() {
		if err := cmd.Wait(); err != nil {
			d.log.Warn("hook exited with error", "path", path, "error", err)
			d.notifyError()
		}
	}()
	return nil
}

func (d *Dispatcher) hookFor(state activity.State) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	switch state {
	case activity.StateActive:
		return d.onActive
	case activity.StateInactive:
		return d.onInactive
	default:
		return ""
	}
}

func (d *Dispatcher) notifyRun() {
	d.mu.RLock()
	fn := d.onRun
	d.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (d *Dispatcher) notifyError() {
	d.mu.RLock()
	fn := d.onError
	d.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
