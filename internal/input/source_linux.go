//go:build linux

package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"

	"mousewatch/internal/activity"
)

const defaultTickBuffer = 256

func newPlatformSource(opts Options) (Source, error) {
	if opts.TickBuffer <= 0 {
		opts.TickBuffer = defaultTickBuffer
	}
	return &evdevSource{
		opts:    opts,
		log:     slog.Default(),
		readers: make(map[string]*deviceReader),
	}, nil
}

// evdevSource reads raw events from one or more evdev devices and turns
// every movement or button event into an activity tick.
type evdevSource struct {
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	started  bool
	closed   bool
	termErr  error
	readers  map[string]*deviceReader // keyed by device node path
	ticks    chan activity.Tick
	lease    *Lease
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	ctx      context.Context
	wg       sync.WaitGroup
	tickOnce sync.Once
}

type deviceReader struct {
	dev  *evdev.InputDevice
	path string
}

// Start opens the configured devices and begins delivering ticks.
//
// With a device name configured, the source binds to exactly that device,
// optionally grabbing it exclusively; losing it ends the stream. Without
// one, all pointing devices feed the stream and /dev/input is watched so
// hotplugged devices join (and unplugged ones leave) without ending it.
func (s *evdevSource) Start(ctx context.Context) (<-chan activity.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil, errors.New("input: source already started")
	}
	if s.closed {
		return nil, errors.New("input: source closed")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.ticks = make(chan activity.Tick, s.opts.TickBuffer)

	if s.opts.DeviceName != "" {
		dev, err := resolveDevice(s.opts.DeviceName)
		if err != nil {
			s.cancel()
			return nil, err
		}
		if s.opts.Grab {
			lease, err := grabFn(dev)
			if err != nil {
				dev.File.Close()
				s.cancel()
				return nil, err
			}
			s.lease = lease
		}
		s.addReaderLocked(dev)
		s.log.Info("bound to device", "device", dev.Name, "path", dev.Fn, "grabbed", s.opts.Grab)
	} else {
		devices, permDenied, err := enumeratePointerDevices()
		if err != nil {
			s.cancel()
			return nil, err
		}
		if len(devices) == 0 {
			s.cancel()
			if permDenied > 0 {
				return nil, fmt.Errorf("%w (%d device nodes unreadable)", ErrPermissionDenied, permDenied)
			}
			return nil, ErrNoDevices
		}
		for _, dev := range devices {
			s.addReaderLocked(dev)
		}
		if err := s.startHotplugLocked(); err != nil {
			s.log.Warn("device hotplug watching disabled", "error", err)
		}
		s.log.Info("capturing pointer devices", "count", len(devices))
	}

	s.started = true
	return s.ticks, nil
}

// Devices lists the devices currently being read.
func (s *evdevSource) Devices() []DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]DeviceInfo, 0, len(s.readers))
	for _, r := range s.readers {
		infos = append(infos, DeviceInfo{Path: r.path, Name: r.dev.Name, Phys: r.dev.Phys})
	}
	return infos
}

// Err reports why the stream terminated, nil while it is live.
func (s *evdevSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.termErr
}

// Close stops all readers, releases the grab lease and closes the tick
// channel. Idempotent; safe on every exit path.
func (s *evdevSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.lease != nil {
		if err := s.lease.Release(); err != nil {
			s.log.Warn("releasing device grab", "error", err)
		}
	}
	if s.watcher != nil {
		s.watcher.Close()
	}
	for path, r := range s.readers {
		r.dev.File.Close()
		delete(s.readers, path)
	}
	ticks := s.ticks
	s.mu.Unlock()

	s.wg.Wait()
	if ticks != nil {
		s.tickOnce.Do(func() { close(ticks) })
	}
	return nil
}

// terminate ends the stream from inside a reader: records the cause,
// releases everything, and closes the tick channel so the detector sees
// the source disappear instead of silently freezing.
func (s *evdevSource) terminate(cause error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.termErr = cause
	s.mu.Unlock()

	s.log.Error("event source terminated", "error", cause)
	go s.Close()
}

func (s *evdevSource) addReaderLocked(dev *evdev.InputDevice) {
	r := &deviceReader{dev: dev, path: dev.Fn}
	s.readers[r.path] = r
	s.notifyDevicesLocked()
	s.wg.Add(1)
	go s.readLoop(r)
}

// notifyDevicesLocked reports the current pool size. Caller holds s.mu.
func (s *evdevSource) notifyDevicesLocked() {
	if s.opts.OnDevicesChanged != nil {
		s.opts.OnDevicesChanged(len(s.readers))
	}
}

// readLoop decodes events from one device. Every relative motion, absolute
// motion or pointer button event becomes one tick; everything else (sync
// frames, misc) is dropped. Tick timestamps come from the local monotonic
// clock at decode time.
func (s *evdevSource) readLoop(r *deviceReader) {
	defer s.wg.Done()

	for {
		events, err := r.dev.Read()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			s.dropDevice(r, err)
			return
		}

		for _, ev := range events {
			if !isActivityEvent(ev) {
				continue
			}
			if !s.deliver(activity.Tick{At: time.Now(), Device: r.dev.Name}) {
				return
			}
		}
	}
}

// deliver offers one tick to the stream without blocking. Movement bursts
// overrun the buffer; a dropped tick is harmless, activity was already
// signalled this window, but it is counted. Returns false once the source
// is shutting down.
func (s *evdevSource) deliver(tick activity.Tick) bool {
	select {
	case s.ticks <- tick:
	case <-s.ctx.Done():
		return false
	default:
		if s.opts.OnDroppedTick != nil {
			s.opts.OnDroppedTick()
		}
	}
	return true
}

// isActivityEvent reports whether an evdev event counts as pointer activity.
func isActivityEvent(ev evdev.InputEvent) bool {
	switch ev.Type {
	case evdev.EV_REL:
		return true
	case evdev.EV_ABS:
		return ev.Code == evdev.ABS_X || ev.Code == evdev.ABS_Y
	case evdev.EV_KEY:
		return int(ev.Code) >= evdev.BTN_LEFT && int(ev.Code) <= evdev.BTN_TASK
	default:
		return false
	}
}

// dropDevice handles a reader that failed. When bound to a named device the
// loss is fatal for the whole stream; otherwise the device just leaves the
// pool (hotplug may bring it, or another, back).
func (s *evdevSource) dropDevice(r *deviceReader, cause error) {
	if s.opts.DeviceName != "" {
		s.terminate(fmt.Errorf("input: device %q lost: %w", r.dev.Name, cause))
		return
	}

	s.mu.Lock()
	if _, ok := s.readers[r.path]; ok {
		r.dev.File.Close()
		delete(s.readers, r.path)
		s.notifyDevicesLocked()
	}
	remaining := len(s.readers)
	s.mu.Unlock()

	s.log.Warn("pointer device removed", "device", r.dev.Name, "path", r.path, "remaining", remaining, "error", cause)
}

// startHotplugLocked watches /dev/input so devices plugged in after startup
// join the pool. Caller holds s.mu.
func (s *evdevSource) startHotplugLocked() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(devInputDir); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher

	s.wg.Add(1)
	go s.hotplugLoop(watcher)
	return nil
}

func (s *evdevSource) hotplugLoop(watcher *fsnotify.Watcher) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			base := filepath.Base(event.Name)
			if !strings.HasPrefix(base, "event") {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				s.tryAddDevice(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("hotplug watcher error", "error", err)
		}
	}
}

// tryAddDevice opens a freshly created node. udev takes a moment to apply
// group permissions, so failed opens are retried briefly.
func (s *evdevSource) tryAddDevice(path string) {
	var dev *evdev.InputDevice
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		dev, err = evdev.Open(path)
		if err == nil {
			break
		}
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(200 * time.Millisecond):
		}
	}
	if err != nil {
		s.log.Debug("cannot open hotplugged device", "path", path, "error", err)
		return
	}
	if !isPointerDevice(dev) {
		dev.File.Close()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		dev.File.Close()
		return
	}
	if _, exists := s.readers[path]; exists {
		dev.File.Close()
		return
	}
	s.addReaderLocked(dev)
	s.log.Info("pointer device added", "device", dev.Name, "path", path)
}

// Lease is an exclusive capture lease on one device. While held, the
// kernel stops delivering the device's events to every other client.
type Lease struct {
	mu       sync.Mutex
	dev      *evdev.InputDevice
	released bool
}

// grabFn is swapped out in tests to exercise grab failures without a
// competing evdev client.
var grabFn = grabDevice

// grabDevice requests EVIOCGRAB on the device. EBUSY means another client
// already holds the grab; that client's capture is left intact.
func grabDevice(dev *evdev.InputDevice) (*Lease, error) {
	if err := dev.Grab(); err != nil {
		if errors.Is(err, unix.EBUSY) {
			return nil, fmt.Errorf("%w: %s", ErrGrabFailed, dev.Name)
		}
		if errors.Is(err, unix.EACCES) || errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: grab %s", ErrPermissionDenied, dev.Name)
		}
		return nil, fmt.Errorf("input: grab %s: %w", dev.Name, err)
	}
	return &Lease{dev: dev}, nil
}

// Release relinquishes the grab so the device resumes normal OS visibility.
// Idempotent.
func (l *Lease) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	l.released = true
	return l.dev.Release()
}
