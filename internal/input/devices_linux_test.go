//go:build linux

package input

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	evdev "github.com/gvalkov/golang-evdev"
)

// fakeDevice builds an InputDevice backed by a real temp file so that
// resolution code can close its handle.
func fakeDevice(t *testing.T, name string) *evdev.InputDevice {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "event0"))
	if err != nil {
		t.Fatalf("creating fake device node: %v", err)
	}
	return &evdev.InputDevice{Fn: f.Name(), Name: name, File: f}
}

// swapEnumerate replaces device enumeration for the duration of the test.
func swapEnumerate(t *testing.T, devices []*evdev.InputDevice, permDenied int) {
	t.Helper()
	enumerateFn = func() ([]*evdev.InputDevice, int, error) {
		return devices, permDenied, nil
	}
	t.Cleanup(func() { enumerateFn = enumeratePointerDevices })
}

func TestResolveDeviceNotFound(t *testing.T) {
	a := fakeDevice(t, "Corded Mouse")
	b := fakeDevice(t, "Trackball")
	swapEnumerate(t, []*evdev.InputDevice{a, b}, 0)

	_, err := resolveDevice("Touchpad")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("resolveDevice error = %v, want ErrDeviceNotFound", err)
	}
	if !strings.Contains(err.Error(), "Touchpad") {
		t.Errorf("error %q does not name the missing device", err)
	}
	for _, dev := range []*evdev.InputDevice{a, b} {
		if closeErr := dev.File.Close(); closeErr == nil {
			t.Errorf("handle for %q left open after failed resolution", dev.Name)
		}
	}
}

func TestResolveDeviceMatch(t *testing.T) {
	a := fakeDevice(t, "Corded Mouse")
	b := fakeDevice(t, "Trackball")
	swapEnumerate(t, []*evdev.InputDevice{a, b}, 0)

	dev, err := resolveDevice("Trackball")
	if err != nil {
		t.Fatalf("resolveDevice: %v", err)
	}
	if dev != b {
		t.Fatalf("resolved %q, want Trackball", dev.Name)
	}
	if closeErr := a.File.Close(); closeErr == nil {
		t.Error("non-matching handle left open")
	}
	if closeErr := b.File.Close(); closeErr != nil {
		t.Errorf("matched handle already closed: %v", closeErr)
	}
}

func TestResolveDevicePermissionDenied(t *testing.T) {
	swapEnumerate(t, nil, 3)

	_, err := resolveDevice("Corded Mouse")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("resolveDevice error = %v, want ErrPermissionDenied", err)
	}
}

const procInputFixture = `I: Bus=0019 Vendor=0000 Product=0001 Version=0000
N: Name="Power Button"
P: Phys=PNP0C0C/button/input0
S: Sysfs=/devices/LNXSYSTM:00/LNXPWRBN:00/input/input0
H: Handlers=kbd event0
B: PROP=0

I: Bus=0003 Vendor=046d Product=c52b Version=0111
N: Name="Logitech MX Master 3"
P: Phys=usb-0000:00:14.0-2/input2:1
S: Sysfs=/devices/pci0000:00/0000:00:14.0/usb1/1-2/input/input19
H: Handlers=mouse1 event3
B: PROP=0

I: Bus=0018 Vendor=04f3 Product=311c Version=0100
N: Name="ELAN0670:00 04F3:311C Touchpad"
P: Phys=i2c-ELAN0670:00
S: Sysfs=/devices/platform/AMDI0010:01/i2c-1/input/input12
H: Handlers=mouse0 event5
B: PROP=5
`

func TestParseProcInputDevices(t *testing.T) {
	devices := parseProcInputDevices(strings.NewReader(procInputFixture))

	if len(devices) != 3 {
		t.Fatalf("parsed %d devices, want 3", len(devices))
	}

	mouse := devices[1]
	if mouse.Name != "Logitech MX Master 3" {
		t.Errorf("name = %q", mouse.Name)
	}
	if mouse.Phys != "usb-0000:00:14.0-2/input2:1" {
		t.Errorf("phys = %q", mouse.Phys)
	}
	if got := mouse.EventNode(); got != "/dev/input/event3" {
		t.Errorf("event node = %q, want /dev/input/event3", got)
	}

	if got := devices[2].EventNode(); got != "/dev/input/event5" {
		t.Errorf("touchpad event node = %q, want /dev/input/event5", got)
	}
}

func TestParseProcInputDevicesEmpty(t *testing.T) {
	if devices := parseProcInputDevices(strings.NewReader("")); len(devices) != 0 {
		t.Errorf("parsed %d devices from empty input, want 0", len(devices))
	}
}

func TestParseProcInputDevicesNoTrailingBlank(t *testing.T) {
	// Final block must be flushed even without a trailing blank line.
	in := "N: Name=\"Trackpoint\"\nH: Handlers=mouse2 event7"
	devices := parseProcInputDevices(strings.NewReader(in))
	if len(devices) != 1 || devices[0].Name != "Trackpoint" {
		t.Fatalf("parsed %+v, want one Trackpoint device", devices)
	}
	if got := devices[0].EventNode(); got != "/dev/input/event7" {
		t.Errorf("event node = %q", got)
	}
}

func TestIsPointer(t *testing.T) {
	devices := parseProcInputDevices(strings.NewReader(procInputFixture))
	if devices[0].IsPointer() {
		t.Error("power button classified as pointer")
	}
	if !devices[1].IsPointer() {
		t.Error("mouse not classified as pointer")
	}
	if !devices[2].IsPointer() {
		t.Error("touchpad not classified as pointer")
	}
}

func TestEventNodeMissingHandler(t *testing.T) {
	d := procDevice{Name: "x", Handlers: []string{"kbd", "sysrq"}}
	if got := d.EventNode(); got != "" {
		t.Errorf("event node = %q, want empty", got)
	}
}
