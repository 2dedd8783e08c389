// Package notify announces activity transitions as desktop notifications
// over the org.freedesktop.Notifications D-Bus interface.
//
// Notifications are strictly best-effort: no session bus, no notification
// daemon, or a refused call all degrade to a logged warning. Detection
// never depends on this package.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"mousewatch/internal/activity"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod = "org.freedesktop.Notifications.Notify"

	// expireMs keeps the bubbles short-lived; state flips can be frequent.
	expireMs = int32(2000)
)

// Notifier posts transition notifications on the session bus.
type Notifier struct {
	conn   *dbus.Conn
	log    *slog.Logger
	lastID uint32
}

// New connects to the session bus. Callers treat an error as "no desktop
// notifications available", not as fatal.
func New(log *slog.Logger) (*Notifier, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("notify: session bus: %w", err)
	}
	return &Notifier{conn: conn, log: log}, nil
}

// Run consumes transitions until the channel closes or ctx is cancelled.
func (n *Notifier) Run(ctx context.Context, transitions <-chan activity.Transition) {
	for {
		select {
		case <-ctx.Done():
			return
		case tr, ok := <-transitions:
			if !ok {
				return
			}
			if err := n.Notify(tr); err != nil {
				n.log.Warn("desktop notification failed", "error", err)
			}
		}
	}
}

// Notify posts one notification, replacing the previous one so the desktop
// shows at most a single mousewatch bubble.
func (n *Notifier) Notify(tr activity.Transition) error {
	summary := "Pointer " + tr.To.String()
	body := fmt.Sprintf("since %s", tr.At.Format("15:04:05"))

	obj := n.conn.Object(notifyDest, notifyPath)
	call := obj.Call(notifyMethod, 0,
		"mousewatchd",      // app_name
		n.lastID,           // replaces_id
		"input-mouse",      // app_icon
		summary, body,
		[]string{},                   // actions
		map[string]dbus.Variant{},    // hints
		expireMs,
	)
	if call.Err != nil {
		return fmt.Errorf("notify: %w", call.Err)
	}
	return call.Store(&n.lastID)
}

// Close releases the bus connection.
func (n *Notifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}
