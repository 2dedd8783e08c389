// Package input produces the live stream of pointer ticks the activity
// detector consumes.
//
// On Linux the source reads raw evdev events from /dev/input/event*
// (requires membership in the 'input' group or root). Every relative or
// absolute movement and every pointer button event becomes one tick; event
// payloads are not interpreted beyond their occurrence.
//
// A source optionally binds to a single named device and grabs it
// exclusively (EVIOCGRAB), so the compositor and other processes stop
// receiving its events while this process runs. The grab is a scoped lease,
// released on every exit path.
package input

import (
	"context"
	"errors"

	"mousewatch/internal/activity"
)

// Source produces an unbounded stream of activity ticks. The stream is not
// restartable; Close releases all underlying OS handles and any grab lease.
type Source interface {
	// Start opens the matching devices and begins delivering ticks.
	// Ticks are delivered in non-decreasing timestamp order per device;
	// the source never reorders or deduplicates.
	Start(ctx context.Context) (<-chan activity.Tick, error)

	// Devices lists the devices the source is currently reading.
	Devices() []DeviceInfo

	// Err reports why the tick stream terminated, if it did.
	Err() error

	// Close stops delivery, closes device handles and releases any grab
	// lease. Safe to call more than once.
	Close() error
}

// DeviceInfo describes one pointing device.
type DeviceInfo struct {
	// Path is the device node, e.g. /dev/input/event3.
	Path string `json:"path"`

	// Name is the kernel-reported device name.
	Name string `json:"name"`

	// Phys is the physical topology path, when known.
	Phys string `json:"phys,omitempty"`
}

// Options configures a source.
type Options struct {
	// DeviceName restricts the source to the single device with this
	// kernel name. Empty means all pointing devices.
	DeviceName string

	// Grab requests an exclusive capture lease (EVIOCGRAB) on the named
	// device. Requires DeviceName.
	Grab bool

	// TickBuffer is the tick channel capacity. Zero selects a default
	// sized for movement bursts.
	TickBuffer int

	// OnDroppedTick, when set, is called once per tick discarded because
	// the tick buffer was full. Must be fast and non-blocking.
	OnDroppedTick func()

	// OnDevicesChanged, when set, is called with the new device count
	// whenever a device joins or leaves the pool. Must not call back
	// into the Source.
	OnDevicesChanged func(count int)
}

// Errors distinguishing the failure classes the caller must tell apart:
// configuration problems, permission problems, grab contention, and
// platforms where capture or grabbing simply does not exist.
var (
	// ErrNoDevices means no pointing device was found at all.
	ErrNoDevices = errors.New("input: no pointing devices found")

	// ErrDeviceNotFound means the configured device name resolved to nothing.
	ErrDeviceNotFound = errors.New("input: named device not found")

	// ErrPermissionDenied means the process may not read input devices.
	ErrPermissionDenied = errors.New("input: permission denied reading input devices (join the 'input' group or run as root)")

	// ErrGrabFailed means the exclusive grab was refused, typically because
	// another process already holds it. Transient: retry after that
	// process releases the device.
	ErrGrabFailed = errors.New("input: exclusive grab refused (another process holds the device)")

	// ErrGrabUnsupported means this platform has no exclusive-capture
	// primitive. Not transient: grabbing requires Linux evdev.
	ErrGrabUnsupported = errors.New("input: exclusive device capture is not supported on this platform")

	// ErrPlatformUnsupported means raw pointer capture itself is
	// unavailable on this platform.
	ErrPlatformUnsupported = errors.New("input: raw pointer capture is not supported on this platform")
)

// New creates a pointer event source for the current platform.
func New(opts Options) (Source, error) {
	return newPlatformSource(opts)
}
