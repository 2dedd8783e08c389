//go:build !linux

package input

import (
	"fmt"
	"runtime"
)

// Raw pointer capture needs the Linux evdev interface. Other platforms get
// a hard, actionable error instead of a silent no-op source.
func newPlatformSource(opts Options) (Source, error) {
	if opts.Grab {
		return nil, fmt.Errorf("%w (%s has no evdev; exclusive capture requires Linux)", ErrGrabUnsupported, runtime.GOOS)
	}
	return nil, fmt.Errorf("%w: %s", ErrPlatformUnsupported, runtime.GOOS)
}

// ListDevices reports the platform limitation on non-Linux systems.
func ListDevices() ([]DeviceInfo, error) {
	return nil, fmt.Errorf("%w: %s", ErrPlatformUnsupported, runtime.GOOS)
}
