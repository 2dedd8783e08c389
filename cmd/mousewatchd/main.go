// mousewatchd - Pointer activity watcher
//
// Watches pointer devices and classifies the pointer as ACTIVE or INACTIVE
// based on a configurable inactivity threshold. Each transition is printed
// on stdout and can spawn a hook executable.
//
//	mousewatchd                              Watch with defaults (1s threshold)
//	mousewatchd -min-movement-gap 5s         Use a 5 second threshold
//	mousewatchd -on-active cmd1 -on-inactive cmd2
//	mousewatchd -device "Logitech MX Master 3" -grab
//	mousewatchd -list-devices                Show pointer devices and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mousewatch/internal/activity"
	"mousewatch/internal/config"
	"mousewatch/internal/daemon"
	"mousewatch/internal/dispatch"
	"mousewatch/internal/input"
	"mousewatch/internal/logging"
	"mousewatch/internal/metrics"
	"mousewatch/internal/notify"
	"mousewatch/internal/presenter"
)

const version = "1.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "", "path to config file (default ~/.config/mousewatch/config.toml)")
		minGap      = flag.Duration("min-movement-gap", time.Second, "inactivity threshold; no movement for this long means INACTIVE")
		device      = flag.String("device", "", "watch only the device with this name")
		grab        = flag.Bool("grab", false, "grab the named device exclusively (requires -device)")
		onActive    = flag.String("on-active", "", "executable to run when the pointer becomes active")
		onInactive  = flag.String("on-inactive", "", "executable to run when the pointer becomes inactive")
		quiet       = flag.Bool("quiet", false, "suppress the transition stream on stdout")
		jsonOut     = flag.Bool("json", false, "print transitions as JSON lines instead of plain text")
		notifyFlag  = flag.Bool("notify", false, "post desktop notifications on transitions")
		logLevel    = flag.String("log-level", "", "log level: debug, info, warn, error")
		logFormat   = flag.String("log-format", "", "log format: text or json")
		metricsAddr = flag.String("metrics-listen", "", "serve Prometheus metrics on this address")
		pidPath     = flag.String("pidfile", "", "write a pid file and refuse to start twice")
		listDevices = flag.Bool("list-devices", false, "list pointer devices and exit")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("mousewatchd %s\n", version)
		return 0
	}

	if *listDevices {
		return cmdListDevices()
	}

	path := *configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	loader := config.NewLoader(path)
	defer loader.Close()

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mousewatchd: %v\n", err)
		return 1
	}

	// Flags beat environment beats file.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["min-movement-gap"] {
		cfg.Detector.ThresholdMs = int(minGap.Milliseconds())
	}
	if set["device"] {
		cfg.Input.Device = *device
	}
	if set["grab"] {
		cfg.Input.Grab = *grab
	}
	if set["on-active"] {
		cfg.Hooks.OnActive = *onActive
	}
	if set["on-inactive"] {
		cfg.Hooks.OnInactive = *onInactive
	}
	if set["quiet"] {
		cfg.Output.Quiet = *quiet
	}
	if set["json"] && *jsonOut {
		cfg.Output.Format = "json"
	}
	if set["notify"] {
		cfg.Output.Notify = *notifyFlag
	}
	if set["log-level"] {
		cfg.Logging.Level = *logLevel
	}
	if set["log-format"] {
		cfg.Logging.Format = *logFormat
	}
	if set["metrics-listen"] {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddr = *metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "mousewatchd: %v\n", err)
		return 1
	}

	log, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mousewatchd: %v\n", err)
		return 1
	}
	defer log.Close()
	logging.SetDefault(log)

	format, err := presenter.ParseFormat(cfg.Output.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mousewatchd: %v\n", err)
		return 1
	}

	if *pidPath != "" {
		pf := daemon.NewPIDFile(*pidPath)
		if err := pf.Acquire(); err != nil {
			fmt.Fprintf(os.Stderr, "mousewatchd: %v\n", err)
			return 1
		}
		defer pf.Release()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewWatcherMetrics(nil)
	if cfg.Metrics.Enabled {
		startMetricsServer(ctx, cfg.Metrics.ListenAddr, m, log)
	}

	source, err := input.New(input.Options{
		DeviceName:       cfg.Input.Device,
		Grab:             cfg.Input.Grab,
		OnDroppedTick:    m.DroppedTicksTotal.Inc,
		OnDevicesChanged: func(n int) { m.DevicesTracked.Set(int64(n)) },
	})
	if err != nil {
		log.Error("cannot create event source", "error", err)
		return 1
	}

	ticks, err := source.Start(ctx)
	if err != nil {
		log.Error("cannot start event source", "error", err)
		return 1
	}
	defer source.Close()

	det, err := activity.NewDetector(cfg.Threshold(), nil, instrumentTicks(ctx, ticks, m))
	if err != nil {
		log.Error("cannot create detector", "error", err)
		return 1
	}
	det.SetLogger(log.WithComponent("detector").Logger)

	dispatcher := dispatch.New(cfg.Hooks.OnActive, cfg.Hooks.OnInactive, log.WithComponent("dispatch").Logger)
	dispatcher.OnError(m.DispatchErrorsTotal.Inc)
	dispatcher.OnRun(m.HookRunsTotal.Inc)

	printer := presenter.NewPrinter(os.Stdout, format, cfg.Output.Quiet)

	go dispatcher.Run(ctx, det.Subscribe())
	go printer.Run(ctx, det.Subscribe())
	go watchTransitions(ctx, det.Subscribe(), m)

	if cfg.Output.Notify {
		notifier, err := notify.New(log.WithComponent("notify").Logger)
		if err != nil {
			log.Warn("desktop notifications unavailable", "error", err)
		} else {
			defer notifier.Close()
			go notifier.Run(ctx, det.Subscribe())
		}
	}

	// Hooks, quiet mode and stream format follow config file edits; the
	// threshold and device binding stay fixed for the process lifetime.
	loader.OnChange(func(next *config.Config) {
		dispatcher.SetHooks(next.Hooks.OnActive, next.Hooks.OnInactive)
		printer.SetQuiet(next.Output.Quiet)
		log.Info("configuration reloaded", "path", path)
	})
	if err := loader.Watch(); err != nil {
		log.Warn("config hot reload disabled", "error", err)
	}
	go func() {
		for err := range loader.Errors() {
			log.Warn("config reload failed", "error", err)
		}
	}()

	log.Info("watching pointer activity",
		"threshold", cfg.Threshold(),
		"devices", len(source.Devices()),
		"grab", cfg.Input.Grab,
	)

	err = det.Run(ctx)
	switch {
	case err == nil || errors.Is(err, context.Canceled):
		log.Info("shutting down")
		return 0
	case errors.Is(err, activity.ErrSourceClosed):
		if cause := source.Err(); cause != nil {
			log.Error("event source failed", "error", cause)
		} else {
			log.Error("event source closed")
		}
		return 1
	default:
		log.Error("detector failed", "error", err)
		return 1
	}
}

// buildLogger constructs the process logger from config.
func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(&logging.Config{
		Level:     level,
		Format:    format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "mousewatchd",
	})
}

// cmdListDevices prints the pointer devices visible to this process.
func cmdListDevices() int {
	devices, err := input.ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mousewatchd: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("No pointer devices found.")
		return 0
	}
	for _, d := range devices {
		if d.Phys != "" {
			fmt.Printf("%s\t%s\t(%s)\n", d.Path, d.Name, d.Phys)
		} else {
			fmt.Printf("%s\t%s\n", d.Path, d.Name)
		}
	}
	return 0
}

// instrumentTicks forwards ticks to the detector while recording tick
// counters and inter-tick intervals.
func instrumentTicks(ctx context.Context, in <-chan activity.Tick, m *metrics.WatcherMetrics) <-chan activity.Tick {
	out := make(chan activity.Tick, cap(in))
	go func() {
		defer close(out)
		var last time.Time
		for tick := range in {
			m.TicksTotal.Inc()
			if !last.IsZero() {
				m.TickInterval.ObserveDuration(tick.At.Sub(last))
			}
			last = tick.At
			select {
			case out <- tick:
			case <-ctx.Done():
				// Keep draining so the source never blocks during shutdown.
			}
		}
	}()
	return out
}

// watchTransitions keeps the transition counters and state gauge current.
func watchTransitions(ctx context.Context, transitions <-chan activity.Transition, m *metrics.WatcherMetrics) {
	for {
		select {
		case <-ctx.Done():
			return
		case tr, ok := <-transitions:
			if !ok {
				return
			}
			switch tr.To {
			case activity.StateActive:
				m.ActivationsTotal.Inc()
				m.PointerActive.Set(1)
			case activity.StateInactive:
				m.DeactivationsTotal.Inc()
				m.PointerActive.Set(0)
			}
		}
	}
}

// startMetricsServer serves the metrics registry over HTTP until ctx ends.
func startMetricsServer(ctx context.Context, addr string, m *metrics.WatcherMetrics, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Default().HTTPHandler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", "error", err)
		}
	}()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				srv.Shutdown(shutdownCtx)
				cancel()
				return
			case <-ticker.C:
				m.UpdateUptime()
			}
		}
	}()
}
