package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors. All problems are collected
// so the user sees everything wrong with the file at once.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	if c.Detector.ThresholdMs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "detector.threshold_ms",
			Message: "must be a positive number of milliseconds",
		})
	}

	if c.Input.Grab && c.Input.Device == "" {
		errs = append(errs, ValidationError{
			Field:   "input.grab",
			Message: "exclusive grab requires input.device to be set",
		})
	}

	switch c.Output.Format {
	case "", "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "output.format",
			Message: fmt.Sprintf("must be \"text\" or \"json\", got %q", c.Output.Format),
		})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", c.Logging.Level),
		})
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("must be \"text\" or \"json\", got %q", c.Logging.Format),
		})
	}

	switch strings.ToLower(c.Logging.Output) {
	case "", "stdout", "stderr":
	case "file":
		if c.Logging.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "required when logging.output is \"file\"",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("unknown output %q", c.Logging.Output),
		})
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		errs = append(errs, ValidationError{
			Field:   "metrics.listen_addr",
			Message: "required when metrics.enabled is true",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
