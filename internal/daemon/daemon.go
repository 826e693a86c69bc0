// Package daemon runs the spyglass background process: it loads the
// config and persisted state, starts the bridge scanner, the plugin
// watcher, and the dashboard server, and tears them down in reverse
// order on shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spyglass-dev/spyglass/internal/config"
	"github.com/spyglass-dev/spyglass/internal/conn"
	"github.com/spyglass-dev/spyglass/internal/console"
	"github.com/spyglass-dev/spyglass/internal/dashboard"
	"github.com/spyglass-dev/spyglass/internal/detect"
	"github.com/spyglass-dev/spyglass/internal/plugins"
)

const (
	pidFileName     = "daemon.pid"
	startedFileName = "daemon.started"

	consoleReapInterval = time.Minute
	consoleMaxIdle      = 30 * time.Minute
)

var shutdownChan = make(chan struct{})

// spyglassDir returns ~/.spyglass, creating it if needed.
func spyglassDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(homeDir, ".spyglass")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create spyglass directory: %w", err)
	}
	return dir, nil
}

func readPID(pidFile string) (int, error) {
	pidData, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err != nil {
		return 0, fmt.Errorf("failed to parse PID: %w", err)
	}
	return pid, nil
}

// Start starts the daemon in the background.
func Start() error {
	dir, err := spyglassDir()
	if err != nil {
		return err
	}
	pidFile := filepath.Join(dir, pidFileName)

	// Check if already running
	if pid, err := readPID(pidFile); err == nil {
		process, err := os.FindProcess(pid)
		if err == nil {
			if err := process.Signal(syscall.Signal(0)); err == nil {
				return fmt.Errorf("daemon is already running (PID %d)", pid)
			}
		}
		// Process not running, remove stale PID file
		os.Remove(pidFile)
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(execPath, "daemon-run")
	cmd.Dir, _ = os.Getwd()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Wait a bit for the daemon to come up
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Stop stops the daemon.
func Stop() error {
	dir, err := spyglassDir()
	if err != nil {
		return err
	}
	pidFile := filepath.Join(dir, pidFileName)

	pid, err := readPID(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("daemon is not running")
		}
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	// Wait for the process to exit by polling (process.Wait() doesn't
	// work for non-child processes). Check every 100ms, up to 5 seconds.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := process.Signal(syscall.Signal(0)); err != nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("timeout waiting for daemon to stop")
}

// Status reports whether the daemon is running, its dashboard URL, and
// when it started.
func Status() (running bool, url string, startedAt string, err error) {
	dir, err := spyglassDir()
	if err != nil {
		return false, "", "", err
	}
	pidFile := filepath.Join(dir, pidFileName)
	startedFile := filepath.Join(dir, startedFileName)

	pid, err := readPID(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, "", "", nil
		}
		return false, "", "", err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, "", "", fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return false, "", "", nil
	}

	port := config.DefaultPort
	if cfg, err := config.Load(config.DefaultPath()); err == nil {
		port = cfg.GetPort()
	}
	url = fmt.Sprintf("http://localhost:%d", port)
	if startedData, err := os.ReadFile(startedFile); err == nil {
		startedAt = strings.TrimSpace(string(startedData))
	}
	return true, url, startedAt, nil
}

// Run runs the daemon (this is the entry point for the daemon process).
func Run() error {
	dir, err := spyglassDir()
	if err != nil {
		return err
	}

	pidFile := filepath.Join(dir, pidFileName)
	if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer os.Remove(pidFile)

	startedAt := time.Now().UTC().Format(time.RFC3339Nano)
	startedFile := filepath.Join(dir, startedFileName)
	if err := os.WriteFile(startedFile, []byte(startedAt+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write daemon start time: %w", err)
	}

	cfg, err := config.Load(config.DefaultPath())
	if errors.Is(err, config.ErrConfigNotFound) {
		cfg = config.CreateDefault(config.DefaultPath())
	} else if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.Default()

	store := conn.NewStore(cfg.GetStatePath(), logger)
	if err := store.Load(); err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	registry := plugins.NewRegistry(cfg.GetGatekeepers(), cfg.GetDisabledPlugins())
	if err := registry.LoadManifests(cfg.GetPluginDirs()); err != nil {
		return fmt.Errorf("failed to load plugins: %w", err)
	}

	stopMarketplace := startMarketplace(cfg, registry, store)
	defer stopMarketplace()

	stopWatcher := startPluginWatcher(registry, cfg.GetPluginDirs(), cfg.PluginWatchDebounce(), func() {
		if err := store.Dispatch(conn.AppPluginListChanged{}); err != nil {
			log.Printf("[plugins] failed to signal list change: %v", err)
		}
	})
	defer stopWatcher()

	selectors := conn.NewSelectors(registry)

	width, height := cfg.GetConsoleSize()
	consoles := console.NewManager(cfg.GetADBPath(), cfg.GetXcrunPath(), width, height, cfg.GetConsoleScrollback())
	stopReaper := consoles.StartReaper(consoleReapInterval, consoleMaxIdle)
	defer consoles.DisposeAll()
	defer stopReaper()

	bridges := []detect.Bridge{
		detect.NewADBBridge(cfg.GetADBPath()),
		detect.NewSimctlBridge(cfg.GetXcrunPath()),
	}
	reportBridges(bridges, cfg.BridgeTimeout())

	scanner := detect.NewScanner(bridges, store, cfg.DevicePollInterval(), cfg.BridgeTimeout())
	if cfg.GetMetroEnabled() {
		if err := scanner.RegisterMetro(); err != nil {
			return fmt.Errorf("failed to register metro device: %w", err)
		}
	}
	scanner.Start()
	defer scanner.Stop()

	server := dashboard.NewServer(cfg, store, selectors, registry, consoles)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fmt.Printf("Received signal %v, shutting down...\n", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("dashboard server error: %w", err)
	case <-shutdownChan:
		fmt.Println("Shutdown requested")
	}

	if err := server.Stop(); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	if err := store.Save(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	return nil
}

// Shutdown triggers a graceful shutdown.
func Shutdown() {
	close(shutdownChan)
}

// reportBridges logs which bridge binaries answered during startup.
// startPluginWatcher wires manifest directory watching and returns a
// stop func. Watching is optional: when no directories are configured
// or the watcher cannot be created the daemon runs without it and the
// returned stop is a no-op.
func startPluginWatcher(registry *plugins.Registry, dirs []string, debounce time.Duration, onChange func()) func() {
	watcher := plugins.NewWatcher(registry, dirs, debounce, onChange)
	if watcher == nil {
		return func() {}
	}
	watcher.Start()
	return watcher.Stop
}

func reportBridges(bridges []detect.Bridge, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, status := range detect.DetectBridges(ctx, bridges) {
		if status.Present {
			log.Printf("[bridge] %s: %s", status.Name, status.Version)
		} else {
			log.Printf("[bridge] %s: not available (%s)", status.Name, status.Error)
		}
	}
}

// startMarketplace loads the marketplace index and keeps it refreshed.
// Returns a stop function; a no-op when the marketplace is not
// configured.
func startMarketplace(cfg *config.Config, registry *plugins.Registry, store *conn.Store) func() {
	if !cfg.GetMarketplaceEnabled() {
		return func() {}
	}

	refresh := func() {
		data, err := os.ReadFile(cfg.GetMarketplaceIndexPath())
		if err != nil {
			log.Printf("[marketplace] failed to read index: %v", err)
			return
		}
		defs, err := plugins.LoadMarketplaceIndex(data)
		if err != nil {
			log.Printf("[marketplace] failed to parse index: %v", err)
			return
		}
		registry.SetMarketplace(defs)
		if err := store.Dispatch(conn.AppPluginListChanged{}); err != nil {
			log.Printf("[marketplace] failed to signal list change: %v", err)
		}
	}
	refresh()

	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.MarketplaceRefreshInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				refresh()
			case <-stopCh:
				return
			}
		}
	}()
	return func() { close(stopCh) }
}
