package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spyglass-dev/spyglass/internal/plugins"
)

func TestReadPID(t *testing.T) {
	tmpDir := t.TempDir()
	pidFile := filepath.Join(tmpDir, pidFileName)

	testPID := 12345
	if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", testPID)), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	pid, err := readPID(pidFile)
	if err != nil {
		t.Fatalf("readPID failed: %v", err)
	}
	if pid != testPID {
		t.Errorf("expected PID %d, got %d", testPID, pid)
	}
}

func TestReadPIDMissing(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), pidFileName)
	if _, err := readPID(pidFile); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestReadPIDGarbage(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), pidFileName)
	if err := os.WriteFile(pidFile, []byte("not a pid\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}
	if _, err := readPID(pidFile); err == nil {
		t.Error("expected parse error for garbage PID file")
	}
}

func TestStartPluginWatcherNoDirs(t *testing.T) {
	// No plugin directories means no watcher; startup must still succeed
	// and the stop func must be callable.
	stop := startPluginWatcher(plugins.NewRegistry(nil, nil), nil, time.Second, nil)
	if stop == nil {
		t.Fatal("expected a stop func")
	}
	stop()
}

func TestStartPluginWatcherWithDirs(t *testing.T) {
	stop := startPluginWatcher(plugins.NewRegistry(nil, nil), []string{t.TempDir()}, time.Second, nil)
	stop()
	stop()
}

func TestShutdown(t *testing.T) {
	// Just test that Shutdown doesn't panic
	Shutdown()
}
