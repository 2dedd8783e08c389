package metrics

import (
	"time"
)

// WatcherMetrics holds all mousewatchd-specific metrics.
type WatcherMetrics struct {
	registry *Registry

	// Counters
	TicksTotal          *Counter
	DroppedTicksTotal   *Counter
	ActivationsTotal    *Counter
	DeactivationsTotal  *Counter
	HookRunsTotal       *Counter
	DispatchErrorsTotal *Counter

	// Gauges
	PointerActive  *Gauge
	DevicesTracked *Gauge
	UptimeSeconds  *Gauge

	// Histograms
	TickInterval *Histogram
}

// startTime records when metrics were initialized.
var startTime = time.Now()

// NewWatcherMetrics creates and registers all mousewatchd metrics.
func NewWatcherMetrics(registry *Registry) *WatcherMetrics {
	if registry == nil {
		registry = Default()
	}

	return &WatcherMetrics{
		registry: registry,

		TicksTotal: registry.RegisterCounter(
			"ticks_total",
			"Total number of pointer movement events observed",
			nil,
		),
		DroppedTicksTotal: registry.RegisterCounter(
			"dropped_ticks_total",
			"Total number of movement events dropped due to backpressure",
			nil,
		),
		ActivationsTotal: registry.RegisterCounter(
			"activations_total",
			"Total number of transitions to the active state",
			nil,
		),
		DeactivationsTotal: registry.RegisterCounter(
			"deactivations_total",
			"Total number of transitions to the inactive state",
			nil,
		),
		HookRunsTotal: registry.RegisterCounter(
			"hook_runs_total",
			"Total number of transition hooks spawned",
			nil,
		),
		DispatchErrorsTotal: registry.RegisterCounter(
			"dispatch_errors_total",
			"Total number of hook invocations that failed",
			nil,
		),
		PointerActive: registry.RegisterGauge(
			"pointer_active",
			"Whether the pointer is currently active (1) or inactive (0)",
			nil,
		),
		DevicesTracked: registry.RegisterGauge(
			"devices_tracked",
			"Number of pointer devices currently being read",
			nil,
		),
		UptimeSeconds: registry.RegisterGauge(
			"uptime_seconds",
			"Seconds since the daemon started",
			nil,
		),
		TickInterval: registry.RegisterHistogram(
			"tick_interval_seconds",
			"Distribution of intervals between pointer movement events",
			nil,
			DurationBuckets,
		),
	}
}

// UpdateUptime refreshes the uptime gauge.
func (m *WatcherMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(int64(time.Since(startTime).Seconds()))
}
