package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	// Create a temporary config directory
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.json")

	// Create a valid config
	validConfig := Config{
		PluginDirs:      []string{filepath.Join(tmpDir, "plugins")},
		DisabledPlugins: []string{"network"},
		Gatekeepers:     []string{"new_inspector"},
		Console: &ConsoleConfig{
			Width:  120,
			Height: 40,
		},
	}

	data, err := json.MarshalIndent(validConfig, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	// Load with explicit path
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(cfg.PluginDirs) != 1 || cfg.PluginDirs[0] != filepath.Join(tmpDir, "plugins") {
		t.Errorf("PluginDirs = %v", cfg.PluginDirs)
	}
	if len(cfg.GetDisabledPlugins()) != 1 || cfg.GetDisabledPlugins()[0] != "network" {
		t.Errorf("DisabledPlugins = %v", cfg.GetDisabledPlugins())
	}

	// Verify Save() works (path should be set from Load)
	cfg.Gatekeepers = append(cfg.Gatekeepers, "experimental_timeline")
	if err := cfg.Save(); err != nil {
		t.Errorf("Save() failed: %v", err)
	}

	// Reload and verify
	cfg2, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() after save failed: %v", err)
	}
	if len(cfg2.Gatekeepers) != 2 {
		t.Errorf("Gatekeepers after reload = %v", cfg2.Gatekeepers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestLoadWithComments(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	body := `{
  // directories scanned for plugin manifests
  "plugin_dirs": ["/opt/spyglass/plugins"],
  "network": {
    "port": 9000, // dashboard port
  },
}`
	if err := os.WriteFile(configPath, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.GetPort() != 9000 {
		t.Errorf("port = %d, want 9000", cfg.GetPort())
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte("{\n  \"plugin_dirs\": [\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(configPath)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadExpandsHome(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	configPath := filepath.Join(t.TempDir(), "config.json")
	body := `{"plugin_dirs": ["~/plugins"], "state_path": "~/state.json"}`
	if err := os.WriteFile(configPath, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.PluginDirs[0] != filepath.Join(homeDir, "plugins") {
		t.Errorf("plugin dir not expanded: %q", cfg.PluginDirs[0])
	}
	if cfg.StatePath != filepath.Join(homeDir, "state.json") {
		t.Errorf("state path not expanded: %q", cfg.StatePath)
	}
}

func TestValidate(t *testing.T) {
	bad := []Config{
		{PluginDirs: []string{"  "}},
		{Console: &ConsoleConfig{Width: 0, Height: 40}},
		{Console: &ConsoleConfig{Width: 120, Height: 0}},
		{Network: &NetworkConfig{Port: 70000}},
		{Devices: &DevicesConfig{PollIntervalMs: -5}},
		{DisabledPlugins: []string{""}},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("config %d: expected ErrInvalidConfig, got %v", i, err)
		}
	}

	good := Config{
		PluginDirs: []string{"/opt/plugins"},
		Console:    &ConsoleConfig{Width: 80, Height: 24},
		Network:    &NetworkConfig{Port: 9000},
	}
	if err := good.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestCreateDefault(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	cfg := CreateDefault(configPath)

	if cfg.Console == nil || cfg.Console.Width != DefaultConsoleWidth {
		t.Errorf("default console missing: %+v", cfg.Console)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := Load(configPath); err != nil {
		t.Errorf("default config does not load back: %v", err)
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "dir", "config.json")
	cfg := CreateDefault(configPath)

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("config file missing after save: %v", err)
	}
	if _, err := os.Stat(configPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be gone after a successful save")
	}
}

func TestReload(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	cfg := CreateDefault(configPath)
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	body := `{"network": {"port": 9100}}`
	if err := os.WriteFile(configPath, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if err := cfg.Reload(); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}
	if cfg.GetPort() != 9100 {
		t.Errorf("port after reload = %d, want 9100", cfg.GetPort())
	}

	// Reload keeps the original path for later saves
	if err := cfg.Save(); err != nil {
		t.Errorf("Save() after reload failed: %v", err)
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := &Config{}

	if got := cfg.GetBindAddress(); got != "127.0.0.1" {
		t.Errorf("bind address = %q", got)
	}
	if got := cfg.GetPort(); got != DefaultPort {
		t.Errorf("port = %d", got)
	}
	if cfg.GetNetworkAccess() {
		t.Error("network access should default to off")
	}
	if got := cfg.GetADBPath(); got != "adb" {
		t.Errorf("adb path = %q", got)
	}
	if got := cfg.GetXcrunPath(); got != "xcrun" {
		t.Errorf("xcrun path = %q", got)
	}
	if got := cfg.GetDevicePollIntervalMs(); got != DefaultDevicePollIntervalMs {
		t.Errorf("poll interval = %d", got)
	}
	if got := cfg.GetMetroPort(); got != DefaultMetroPort {
		t.Errorf("metro port = %d", got)
	}
	if !cfg.GetMetroEnabled() {
		t.Error("metro should default to enabled")
	}
	if w, h := cfg.GetConsoleSize(); w != DefaultConsoleWidth || h != DefaultConsoleHeight {
		t.Errorf("console size = %dx%d", w, h)
	}
	if got := cfg.GetConsoleScrollback(); got != DefaultConsoleScrollback {
		t.Errorf("scrollback = %d", got)
	}
	if cfg.GetMarketplaceEnabled() {
		t.Error("marketplace should default to disabled")
	}
	if got := cfg.GetMarketplaceRefreshIntervalMs(); got != DefaultMarketplaceRefreshMs {
		t.Errorf("marketplace refresh = %d", got)
	}
}

func TestGetterOverrides(t *testing.T) {
	cfg := &Config{
		Devices: &DevicesConfig{
			ADBPath:        "/opt/android/adb",
			PollIntervalMs: 500,
			MetroPort:      8088,
			MetroDisabled:  true,
		},
		Network: &NetworkConfig{BindAddress: "0.0.0.0", Port: 9000},
		Marketplace: &MarketplaceConfig{
			IndexPath:         "/opt/marketplace.json",
			RefreshIntervalMs: 60000,
		},
	}

	if got := cfg.GetADBPath(); got != "/opt/android/adb" {
		t.Errorf("adb path = %q", got)
	}
	if got := cfg.GetDevicePollIntervalMs(); got != 500 {
		t.Errorf("poll interval = %d", got)
	}
	if got := cfg.GetMetroPort(); got != 8088 {
		t.Errorf("metro port = %d", got)
	}
	if cfg.GetMetroEnabled() {
		t.Error("metro should be disabled")
	}
	if !cfg.GetNetworkAccess() {
		t.Error("binding 0.0.0.0 should report network access")
	}
	if got := cfg.GetPort(); got != 9000 {
		t.Errorf("port = %d", got)
	}
	if !cfg.GetMarketplaceEnabled() {
		t.Error("marketplace should be enabled")
	}
	if got := cfg.GetMarketplaceRefreshIntervalMs(); got != 60000 {
		t.Errorf("marketplace refresh = %d", got)
	}
}

func TestSaveWithoutPath(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Save(); err == nil {
		t.Fatal("expected an error when saving without a path")
	}
}
