package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "mousewatchd.pid")
	pf := NewPIDFile(path)

	if err := pf.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	pid, err := pf.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
	if !pf.IsRunning() {
		t.Error("IsRunning = false for own pid")
	}

	if err := pf.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("pid file still exists after Release")
	}

	// Release is idempotent.
	if err := pf.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
}

func TestAcquireRejectsLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mousewatchd.pid")
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatal(err)
	}

	pf := NewPIDFile(path)
	if err := pf.Acquire(); err == nil {
		t.Fatal("expected Acquire to fail while pid file names a live process")
	}
}

func TestAcquireReplacesStalePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mousewatchd.pid")
	// Large pids beyond pid_max are never live.
	if err := os.WriteFile(path, []byte("99999999"), 0o644); err != nil {
		t.Fatal(err)
	}

	pf := NewPIDFile(path)
	if err := pf.Acquire(); err != nil {
		t.Fatalf("Acquire over stale pid file: %v", err)
	}

	pid, err := pf.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
}

func TestReadInvalidPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mousewatchd.pid")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}

	pf := NewPIDFile(path)
	if _, err := pf.Read(); err == nil {
		t.Fatal("expected error for malformed pid file")
	}
	if pf.IsRunning() {
		t.Error("IsRunning = true for malformed pid file")
	}
}
