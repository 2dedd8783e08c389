//go:build linux

package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

const devInputDir = "/dev/input"

// enumeratePointerDevices opens every /dev/input/event* node and keeps the
// ones with pointer capabilities. It reports how many nodes were unreadable
// for permission reasons so the caller can distinguish "nothing plugged in"
// from "not allowed to look".
func enumeratePointerDevices() (devices []*evdev.InputDevice, permDenied int, err error) {
	entries, err := os.ReadDir(devInputDir)
	if err != nil {
		return nil, 0, fmt.Errorf("input: read %s: %w", devInputDir, err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "event") {
			paths = append(paths, filepath.Join(devInputDir, entry.Name()))
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		dev, err := evdev.Open(path)
		if err != nil {
			if errors.Is(err, unix.EACCES) || errors.Is(err, os.ErrPermission) {
				permDenied++
			}
			continue
		}
		if !isPointerDevice(dev) {
			dev.File.Close()
			continue
		}
		devices = append(devices, dev)
	}
	return devices, permDenied, nil
}

// isPointerDevice reports whether the device emits pointer events: relative
// motion, absolute positioning (touchpads, tablets) or pointer buttons.
func isPointerDevice(dev *evdev.InputDevice) bool {
	for capType, codes := range dev.Capabilities {
		switch capType.Type {
		case evdev.EV_REL:
			for _, c := range codes {
				switch c.Code {
				case evdev.REL_X, evdev.REL_Y, evdev.REL_WHEEL, evdev.REL_HWHEEL:
					return true
				}
			}
		case evdev.EV_ABS:
			for _, c := range codes {
				if c.Code == evdev.ABS_X || c.Code == evdev.ABS_Y {
					return true
				}
			}
		case evdev.EV_KEY:
			for _, c := range codes {
				if c.Code >= evdev.BTN_LEFT && c.Code <= evdev.BTN_TASK {
					return true
				}
			}
		}
	}
	return false
}

// enumerateFn is swapped out in tests to drive device resolution without
// touching /dev/input.
var enumerateFn = enumeratePointerDevices

// resolveDevice finds the single pointer device with the given kernel name.
// All other opened handles are closed before returning.
func resolveDevice(name string) (*evdev.InputDevice, error) {
	devices, permDenied, err := enumerateFn()
	if err != nil {
		return nil, err
	}

	var match *evdev.InputDevice
	for _, dev := range devices {
		if match == nil && dev.Name == name {
			match = dev
			continue
		}
		dev.File.Close()
	}
	if match == nil {
		if permDenied > 0 && len(devices) == 0 {
			return nil, fmt.Errorf("%w (%d device nodes unreadable)", ErrPermissionDenied, permDenied)
		}
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
	}
	return match, nil
}

// ListDevices returns the pointing devices currently visible to the process.
// When the event nodes themselves are unreadable it falls back to
// /proc/bus/input/devices, which is world-readable, so the listing still
// helps diagnose a permissions problem.
func ListDevices() ([]DeviceInfo, error) {
	devices, permDenied, err := enumeratePointerDevices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 && permDenied > 0 {
		if infos := listFromProc(); len(infos) > 0 {
			return infos, nil
		}
		return nil, fmt.Errorf("%w (%d device nodes unreadable)", ErrPermissionDenied, permDenied)
	}

	infos := make([]DeviceInfo, 0, len(devices))
	for _, dev := range devices {
		infos = append(infos, DeviceInfo{Path: dev.Fn, Name: dev.Name, Phys: dev.Phys})
		dev.File.Close()
	}
	return infos, nil
}

// listFromProc builds a best-effort device listing from
// /proc/bus/input/devices. Only devices with a mouse handler are kept.
func listFromProc() []DeviceInfo {
	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return nil
	}
	defer f.Close()

	var infos []DeviceInfo
	for _, d := range parseProcInputDevices(f) {
		if !d.IsPointer() {
			continue
		}
		infos = append(infos, DeviceInfo{Path: d.EventNode(), Name: d.Name, Phys: d.Phys})
	}
	return infos
}

// procDevice is one block of /proc/bus/input/devices.
type procDevice struct {
	Name     string
	Phys     string
	Handlers []string
}

// IsPointer reports whether the kernel attached a mouse handler.
func (d procDevice) IsPointer() bool {
	for _, h := range d.Handlers {
		if strings.HasPrefix(h, "mouse") {
			return true
		}
	}
	return false
}

// EventNode returns the /dev/input node for the device, or "".
func (d procDevice) EventNode() string {
	for _, h := range d.Handlers {
		if strings.HasPrefix(h, "event") {
			return filepath.Join(devInputDir, h)
		}
	}
	return ""
}

// parseProcInputDevices parses the /proc/bus/input/devices format: blank
// line separated blocks of prefixed lines (N: name, P: phys, H: handlers).
// Used for the diagnostic device listing; enumeration for capture goes
// through evdev directly.
func parseProcInputDevices(r io.Reader) []procDevice {
	var (
		out     []procDevice
		current procDevice
	)
	flush := func() {
		if current.Name != "" || len(current.Handlers) > 0 {
			out = append(out, current)
		}
		current = procDevice{}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "N: Name="):
			current.Name = strings.Trim(strings.TrimPrefix(line, "N: Name="), `"`)
		case strings.HasPrefix(line, "P: Phys="):
			current.Phys = strings.TrimPrefix(line, "P: Phys=")
		case strings.HasPrefix(line, "H: Handlers="):
			current.Handlers = strings.Fields(strings.TrimPrefix(line, "H: Handlers="))
		case line == "":
			flush()
		}
	}
	flush()
	return out
}
