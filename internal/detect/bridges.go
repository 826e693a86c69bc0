// Package detect finds the debug bridges spyglass can talk to (adb for
// Android, simctl for iOS simulators), parses their device listings,
// and runs the periodic scanner that feeds discovered devices into the
// connection store.
package detect

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/spyglass-dev/spyglass/internal/device"
)

// Record is one device row parsed from a bridge listing.
type Record struct {
	Serial    string
	Title     string
	OS        device.OS
	Connected bool
}

// runner executes bridge commands. Tests swap in a fake so no real
// bridge binary is needed.
type runner interface {
	run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Bridge lists the devices one debug bridge currently sees.
type Bridge interface {
	// Name identifies the bridge in logs and status output.
	Name() string
	// OS is the device OS this bridge is authoritative for.
	OS() device.OS
	// Detect reports whether the bridge binary is usable and its
	// version string.
	Detect(ctx context.Context) (string, error)
	// List returns the bridge's current device listing.
	List(ctx context.Context) ([]Record, error)
}

// ADBBridge talks to the Android debug bridge.
type ADBBridge struct {
	Path string
	run  runner
}

// NewADBBridge creates an adb bridge using the given binary path.
func NewADBBridge(path string) *ADBBridge {
	return &ADBBridge{Path: path, run: execRunner{}}
}

func (b *ADBBridge) Name() string  { return "adb" }
func (b *ADBBridge) OS() device.OS { return device.OSAndroid }

func (b *ADBBridge) Detect(ctx context.Context) (string, error) {
	out, err := b.run.run(ctx, b.Path, "version")
	if err != nil {
		return "", fmt.Errorf("adb is not installed or not accessible: %w", err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

func (b *ADBBridge) List(ctx context.Context) ([]Record, error) {
	out, err := b.run.run(ctx, b.Path, "devices", "-l")
	if err != nil {
		return nil, fmt.Errorf("failed to list adb devices: %w", err)
	}
	return ParseADBDevices(string(out)), nil
}

// SimctlBridge talks to the iOS simulator runtime via xcrun.
type SimctlBridge struct {
	Path string
	run  runner
}

// NewSimctlBridge creates a simctl bridge using the given xcrun path.
func NewSimctlBridge(path string) *SimctlBridge {
	return &SimctlBridge{Path: path, run: execRunner{}}
}

func (b *SimctlBridge) Name() string  { return "simctl" }
func (b *SimctlBridge) OS() device.OS { return device.OSiOS }

func (b *SimctlBridge) Detect(ctx context.Context) (string, error) {
	out, err := b.run.run(ctx, b.Path, "--version")
	if err != nil {
		return "", fmt.Errorf("xcrun is not installed or not accessible: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (b *SimctlBridge) List(ctx context.Context) ([]Record, error) {
	out, err := b.run.run(ctx, b.Path, "simctl", "list", "devices", "-j")
	if err != nil {
		return nil, fmt.Errorf("failed to list simulators: %w", err)
	}
	return ParseSimctlDevices(out)
}

// BridgeStatus is the result of probing one bridge.
type BridgeStatus struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DetectBridges probes all bridges concurrently.
func DetectBridges(ctx context.Context, bridges []Bridge) []BridgeStatus {
	statuses := make([]BridgeStatus, len(bridges))
	var wg sync.WaitGroup
	for i, b := range bridges {
		wg.Add(1)
		go func(i int, b Bridge) {
			defer wg.Done()
			statuses[i].Name = b.Name()
			version, err := b.Detect(ctx)
			if err != nil {
				statuses[i].Error = err.Error()
				return
			}
			statuses[i].Present = true
			statuses[i].Version = version
		}(i, b)
	}
	wg.Wait()
	return statuses
}
