// Package daemon manages the mousewatchd pid file so only one instance
// runs per pid file path.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile guards a single daemon instance through a pid file.
type PIDFile struct {
	path string
}

// NewPIDFile creates a PIDFile at the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the pid file location.
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire writes the current process pid. If the file already names a
// live process, Acquire fails. A stale pid file left by a crashed
// instance is replaced.
func (p *PIDFile) Acquire() error {
	if pid, err := p.Read(); err == nil {
		if isProcessRunning(pid) {
			return fmt.Errorf("already running with pid %d (pid file %s)", pid, p.path)
		}
		// Stale file from a dead process.
		os.Remove(p.path)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// Read returns the pid recorded in the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file %s: %w", p.path, err)
	}
	return pid, nil
}

// Release removes the pid file. Safe to call when the file is gone.
func (p *PIDFile) Release() error {
	err := os.Remove(p.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsRunning reports whether the pid file names a live process.
func (p *PIDFile) IsRunning() bool {
	pid, err := p.Read()
	if err != nil {
		return false
	}
	return isProcessRunning(pid)
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds. Send signal 0 to check if process exists.
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
