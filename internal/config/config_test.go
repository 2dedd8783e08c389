package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1000, cfg.Detector.ThresholdMs)
	assert.Equal(t, time.Second, cfg.Threshold())
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detector.ThresholdMs = 0
	cfg.Input.Grab = true
	cfg.Output.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)

	errs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	assert.Len(t, errs, 3)

	msg := err.Error()
	assert.Contains(t, msg, "detector.threshold_ms")
	assert.Contains(t, msg, "input.grab")
	assert.Contains(t, msg, "output.format")
}

func TestValidateLogging(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"debug level", func(c *Config) { c.Logging.Level = "debug" }, true},
		{"warning alias", func(c *Config) { c.Logging.Level = "warning" }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, false},
		{"json format", func(c *Config) { c.Logging.Format = "json" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "logfmt" }, false},
		{"file without path", func(c *Config) { c.Logging.Output = "file" }, false},
		{"file with path", func(c *Config) {
			c.Logging.Output = "file"
			c.Logging.FilePath = "/tmp/mw.log"
		}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			test.mutate(cfg)
			err := cfg.Validate()
			if test.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateMetricsAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.ListenAddr = ""
	assert.Error(t, cfg.Validate())
}

func TestLoadFileTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
version = 1

[detector]
threshold_ms = 2500

[input]
device = "Logitech MX Master 3"
grab = true

[hooks]
on_active = "/usr/local/bin/on-active"

[output]
quiet = true
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2500, cfg.Detector.ThresholdMs)
	assert.Equal(t, "Logitech MX Master 3", cfg.Input.Device)
	assert.True(t, cfg.Input.Grab)
	assert.Equal(t, "/usr/local/bin/on-active", cfg.Hooks.OnActive)
	assert.True(t, cfg.Output.Quiet)
	assert.Equal(t, "json", cfg.Output.Format)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
version: 1
detector:
  threshold_ms: 750
output:
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 750, cfg.Detector.ThresholdMs)
}

func TestLoadFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"version": 1, "detector": {"threshold_ms": 300}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Detector.ThresholdMs)
}

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Detector.ThresholdMs)
}

func TestLoadFileUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFileInvalidIsRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "version = 1\n[detector]\nthreshold_ms = -5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("MOUSEWATCH_THRESHOLD_MS", "4321")
	t.Setenv("MOUSEWATCH_DEVICE", "TrackPoint")
	t.Setenv("MOUSEWATCH_ON_ACTIVE", "/opt/hooks/active")
	t.Setenv("MOUSEWATCH_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, 4321, cfg.Detector.ThresholdMs)
	assert.Equal(t, "TrackPoint", cfg.Input.Device)
	assert.Equal(t, "/opt/hooks/active", cfg.Hooks.OnActive)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyEnvOverridesIgnoresBadThreshold(t *testing.T) {
	t.Setenv("MOUSEWATCH_THRESHOLD_MS", "not-a-number")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, 1000, cfg.Detector.ThresholdMs, "malformed override must leave the default intact")
}

func TestLoaderWatchReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	write := func(thresholdMs int, quiet bool) {
		content := fmt.Sprintf("version = 1\n[detector]\nthreshold_ms = %d\n[output]\nquiet = %t\n",
			thresholdMs, quiet)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write(1000, false)

	loader := NewLoader(path)
	defer loader.Close()

	_, err := loader.Load()
	require.NoError(t, err)

	changed := make(chan *Config, 1)
	loader.OnChange(func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})

	require.NoError(t, loader.Watch())

	write(1000, true)

	select {
	case cfg := <-changed:
		assert.True(t, cfg.Output.Quiet, "reloaded config should have quiet set")
		assert.Same(t, cfg, loader.Config())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestLoaderReloadKeepsOldConfigOnInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("version = 1\n"), 0o644))

	loader := NewLoader(path)
	defer loader.Close()

	old, err := loader.Load()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("version = 1\n[detector]\nthreshold_ms = -1\n"), 0o644))
	loader.reload()

	select {
	case err := <-loader.Errors():
		assert.Error(t, err)
	default:
		t.Error("expected error on Errors channel")
	}
	assert.Same(t, old, loader.Config(), "invalid reload must not replace the config")
}
