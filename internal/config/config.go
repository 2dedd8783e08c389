// Package config handles configuration loading, validation, and management for mousewatchd.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Detector configuration for activity classification.
	Detector DetectorConfig `toml:"detector" json:"detector" yaml:"detector"`

	// Input configuration for pointer device selection.
	Input InputConfig `toml:"input" json:"input" yaml:"input"`

	// Hooks configuration for transition executables.
	Hooks HooksConfig `toml:"hooks" json:"hooks" yaml:"hooks"`

	// Output configuration for the transition stream.
	Output OutputConfig `toml:"output" json:"output" yaml:"output"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration for the optional metrics endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// DetectorConfig holds activity detection configuration.
type DetectorConfig struct {
	// ThresholdMs is the inactivity threshold in milliseconds. The pointer
	// is considered inactive when no movement arrives for this long.
	ThresholdMs int `toml:"threshold_ms" json:"threshold_ms" yaml:"threshold_ms"`
}

// InputConfig holds pointer device selection configuration.
type InputConfig struct {
	// Device restricts capture to the device with this name. Empty means
	// all pointer devices are watched.
	Device string `toml:"device" json:"device" yaml:"device"`

	// Grab requests exclusive access to the selected device. Requires
	// Device to be set.
	Grab bool `toml:"grab" json:"grab" yaml:"grab"`
}

// HooksConfig holds the executables invoked on state transitions.
type HooksConfig struct {
	// OnActive is the path to the executable run when the pointer
	// becomes active. Empty disables the hook.
	OnActive string `toml:"on_active" json:"on_active" yaml:"on_active"`

	// OnInactive is the path to the executable run when the pointer
	// becomes inactive. Empty disables the hook.
	OnInactive string `toml:"on_inactive" json:"on_inactive" yaml:"on_inactive"`
}

// OutputConfig holds transition stream output configuration.
type OutputConfig struct {
	// Quiet suppresses the transition stream on stdout.
	Quiet bool `toml:"quiet" json:"quiet" yaml:"quiet"`

	// Format is the stream format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Notify posts desktop notifications on transitions.
	Notify bool `toml:"notify" json:"notify" yaml:"notify"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log destination: stdout, stderr or file.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output is "file".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// MetricsConfig holds metrics endpoint configuration.
type MetricsConfig struct {
	// Enabled turns on the HTTP metrics endpoint.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// ListenAddr is the address the metrics server binds to.
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Detector: DetectorConfig{
			ThresholdMs: 1000,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			ListenAddr: "127.0.0.1:9533",
		},
	}
}

// Threshold returns the inactivity threshold as a duration.
func (c *Config) Threshold() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Detector.ThresholdMs) * time.Millisecond
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "mousewatch", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "mousewatch", "config.toml")
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables take precedence over file values.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Detector overrides
	if v := os.Getenv("MOUSEWATCH_THRESHOLD_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Detector.ThresholdMs = ms
		}
	}

	// Input overrides
	if v := os.Getenv("MOUSEWATCH_DEVICE"); v != "" {
		c.Input.Device = v
	}

	// Hook overrides
	if v := os.Getenv("MOUSEWATCH_ON_ACTIVE"); v != "" {
		c.Hooks.OnActive = v
	}
	if v := os.Getenv("MOUSEWATCH_ON_INACTIVE"); v != "" {
		c.Hooks.OnInactive = v
	}

	// Logging overrides
	if v := os.Getenv("MOUSEWATCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MOUSEWATCH_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
		c.Logging.Output = "file"
	}
}
