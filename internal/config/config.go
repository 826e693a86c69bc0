package config

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/spyglass-dev/spyglass/internal/version"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid config")
)

const (
	// Default console dimensions
	DefaultConsoleWidth      = 120
	DefaultConsoleHeight     = 40
	DefaultConsoleScrollback = 10000

	// Default device scanning intervals in milliseconds
	DefaultDevicePollIntervalMs = 2000
	DefaultBridgeTimeoutMs      = 10000

	// Default plugin watcher debounce in milliseconds
	DefaultPluginWatchDebounceMs = 500

	// Default marketplace refresh interval in milliseconds
	DefaultMarketplaceRefreshMs = 3600000 // 1 hour

	// DefaultPort is the dashboard port.
	DefaultPort = 52342

	// DefaultMetroPort is where the metro bundler serves its bridge.
	DefaultMetroPort = 8081
)

// Config represents the application configuration.
type Config struct {
	ConfigVersion   string             `json:"config_version,omitempty"`
	PluginDirs      []string           `json:"plugin_dirs"`
	DisabledPlugins []string           `json:"disabled_plugins,omitempty"`
	Gatekeepers     []string           `json:"gatekeepers,omitempty"`
	StatePath       string             `json:"state_path,omitempty"`
	ExportDir       string             `json:"export_dir,omitempty"`
	Marketplace     *MarketplaceConfig `json:"marketplace,omitempty"`
	Devices         *DevicesConfig     `json:"devices,omitempty"`
	Console         *ConsoleConfig     `json:"console,omitempty"`
	Network         *NetworkConfig     `json:"network,omitempty"`

	// path is the file path where this config was loaded from or should be saved to.
	// Not serialized to JSON.
	path string `json:"-"`
}

// MarketplaceConfig points at a plugin marketplace index.
type MarketplaceConfig struct {
	IndexPath         string `json:"index_path,omitempty"`
	RefreshIntervalMs int    `json:"refresh_interval_ms,omitempty"`
}

// DevicesConfig controls bridge tool paths and device scanning.
type DevicesConfig struct {
	ADBPath         string `json:"adb_path,omitempty"`
	XcrunPath       string `json:"xcrun_path,omitempty"`
	PollIntervalMs  int    `json:"poll_interval_ms,omitempty"`
	BridgeTimeoutMs int    `json:"bridge_timeout_ms,omitempty"`
	MetroPort       int    `json:"metro_port,omitempty"`
	MetroDisabled   bool   `json:"metro_disabled,omitempty"`
}

// ConsoleConfig represents device console dimensions.
type ConsoleConfig struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	Scrollback int `json:"scrollback,omitempty"`
}

// NetworkConfig controls dashboard server binding.
type NetworkConfig struct {
	BindAddress string `json:"bind_address,omitempty"`
	Port        int    `json:"port,omitempty"`
}

// Validate validates the config including console settings, plugin
// directories, and network binding.
func (c *Config) Validate() error {
	for _, dir := range c.PluginDirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("%w: plugin_dirs entries must not be empty", ErrInvalidConfig)
		}
	}
	if c.Console != nil {
		if c.Console.Width <= 0 {
			return fmt.Errorf("%w: console.width must be > 0", ErrInvalidConfig)
		}
		if c.Console.Height <= 0 {
			return fmt.Errorf("%w: console.height must be > 0", ErrInvalidConfig)
		}
		if c.Console.Scrollback < 0 {
			return fmt.Errorf("%w: console.scrollback must be >= 0", ErrInvalidConfig)
		}
	}
	if c.Network != nil && (c.Network.Port < 0 || c.Network.Port > 65535) {
		return fmt.Errorf("%w: network.port must be between 0 and 65535", ErrInvalidConfig)
	}
	if c.Devices != nil && c.Devices.PollIntervalMs < 0 {
		return fmt.Errorf("%w: devices.poll_interval_ms must be >= 0", ErrInvalidConfig)
	}
	for _, id := range c.DisabledPlugins {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: disabled_plugins entries must not be empty", ErrInvalidConfig)
		}
	}
	return nil
}

// expandPaths expands a leading ~ in every user-supplied path.
func (c *Config) expandPaths(homeDir string) {
	if homeDir == "" {
		return
	}
	for i, dir := range c.PluginDirs {
		c.PluginDirs[i] = expandHome(dir, homeDir)
	}
	c.StatePath = expandHome(c.StatePath, homeDir)
	c.ExportDir = expandHome(c.ExportDir, homeDir)
	if c.Marketplace != nil {
		c.Marketplace.IndexPath = expandHome(c.Marketplace.IndexPath, homeDir)
	}
}

func expandHome(path, homeDir string) string {
	if strings.HasPrefix(path, "~") {
		return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
	}
	return path
}

// GetPluginDirs returns the manifest directories to scan.
// Defaults to ~/.spyglass/plugins if not set.
func (c *Config) GetPluginDirs() []string {
	if len(c.PluginDirs) > 0 {
		return c.PluginDirs
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(homeDir, ".spyglass", "plugins")}
}

// GetDisabledPlugins returns the plugin ids disabled by configuration.
func (c *Config) GetDisabledPlugins() []string {
	return c.DisabledPlugins
}

// GetGatekeepers returns the enabled gatekeeper flags.
func (c *Config) GetGatekeepers() []string {
	return c.Gatekeepers
}

// GetStatePath returns the selection persistence path.
// Defaults to ~/.spyglass/state.json if not set.
func (c *Config) GetStatePath() string {
	if c.StatePath != "" {
		return c.StatePath
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".spyglass", "state.json")
}

// GetExportDir returns the directory export bundles are written to.
// Defaults to ~/.spyglass/exports if not set.
func (c *Config) GetExportDir() string {
	if c.ExportDir != "" {
		return c.ExportDir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".spyglass", "exports")
}

// GetMarketplaceIndexPath returns the marketplace index path, or ""
// when no marketplace is configured.
func (c *Config) GetMarketplaceIndexPath() string {
	if c.Marketplace == nil {
		return ""
	}
	return strings.TrimSpace(c.Marketplace.IndexPath)
}

// GetMarketplaceEnabled returns whether a marketplace index is configured.
func (c *Config) GetMarketplaceEnabled() bool {
	return c.GetMarketplaceIndexPath() != ""
}

// GetMarketplaceRefreshIntervalMs returns the marketplace refresh interval in ms.
func (c *Config) GetMarketplaceRefreshIntervalMs() int {
	if c.Marketplace == nil || c.Marketplace.RefreshIntervalMs <= 0 {
		return DefaultMarketplaceRefreshMs
	}
	return c.Marketplace.RefreshIntervalMs
}

// MarketplaceRefreshInterval returns the refresh interval as a time.Duration.
func (c *Config) MarketplaceRefreshInterval() time.Duration {
	return time.Duration(c.GetMarketplaceRefreshIntervalMs()) * time.Millisecond
}

// GetADBPath returns the adb binary path. Defaults to "adb" on PATH.
func (c *Config) GetADBPath() string {
	if c.Devices == nil || strings.TrimSpace(c.Devices.ADBPath) == "" {
		return "adb"
	}
	return c.Devices.ADBPath
}

// GetXcrunPath returns the xcrun binary path. Defaults to "xcrun" on PATH.
func (c *Config) GetXcrunPath() string {
	if c.Devices == nil || strings.TrimSpace(c.Devices.XcrunPath) == "" {
		return "xcrun"
	}
	return c.Devices.XcrunPath
}

// GetDevicePollIntervalMs returns the bridge scan interval in ms. Defaults to 2000ms.
func (c *Config) GetDevicePollIntervalMs() int {
	if c.Devices == nil || c.Devices.PollIntervalMs <= 0 {
		return DefaultDevicePollIntervalMs
	}
	return c.Devices.PollIntervalMs
}

// DevicePollInterval returns the bridge scan interval as a time.Duration.
func (c *Config) DevicePollInterval() time.Duration {
	return time.Duration(c.GetDevicePollIntervalMs()) * time.Millisecond
}

// GetBridgeTimeoutMs returns the bridge command timeout in ms. Defaults to 10000.
func (c *Config) GetBridgeTimeoutMs() int {
	if c.Devices == nil || c.Devices.BridgeTimeoutMs <= 0 {
		return DefaultBridgeTimeoutMs
	}
	return c.Devices.BridgeTimeoutMs
}

// BridgeTimeout returns the bridge command timeout as a time.Duration.
func (c *Config) BridgeTimeout() time.Duration {
	return time.Duration(c.GetBridgeTimeoutMs()) * time.Millisecond
}

// GetMetroPort returns the metro bundler port. Defaults to 8081.
func (c *Config) GetMetroPort() int {
	if c.Devices == nil || c.Devices.MetroPort <= 0 {
		return DefaultMetroPort
	}
	return c.Devices.MetroPort
}

// GetMetroEnabled returns whether the synthetic metro device is tracked.
func (c *Config) GetMetroEnabled() bool {
	return c.Devices == nil || !c.Devices.MetroDisabled
}

// GetConsoleSize returns the console dimensions.
func (c *Config) GetConsoleSize() (width, height int) {
	if c.Console != nil && c.Console.Width > 0 && c.Console.Height > 0 {
		return c.Console.Width, c.Console.Height
	}
	return DefaultConsoleWidth, DefaultConsoleHeight
}

// GetConsoleScrollback returns the console scrollback line count.
func (c *Config) GetConsoleScrollback() int {
	if c.Console == nil || c.Console.Scrollback <= 0 {
		return DefaultConsoleScrollback
	}
	return c.Console.Scrollback
}

// GetPluginWatchDebounceMs returns the manifest watcher debounce in ms.
func (c *Config) GetPluginWatchDebounceMs() int {
	return DefaultPluginWatchDebounceMs
}

// PluginWatchDebounce returns the manifest watcher debounce as a time.Duration.
func (c *Config) PluginWatchDebounce() time.Duration {
	return time.Duration(c.GetPluginWatchDebounceMs()) * time.Millisecond
}

// GetBindAddress returns the address to bind the server to.
// Defaults to "127.0.0.1" (localhost only).
func (c *Config) GetBindAddress() string {
	if c.Network == nil || c.Network.BindAddress == "" {
		return "127.0.0.1"
	}
	return c.Network.BindAddress
}

// GetNetworkAccess returns whether the dashboard should be accessible from the local network.
// This is a convenience method that checks if bind_address is "0.0.0.0".
func (c *Config) GetNetworkAccess() bool {
	return c.GetBindAddress() == "0.0.0.0"
}

// GetPort returns the dashboard port. Defaults to 52342.
func (c *Config) GetPort() int {
	if c.Network == nil || c.Network.Port <= 0 {
		return DefaultPort
	}
	return c.Network.Port
}

// Reload reloads the configuration from disk and replaces this Config struct.
func (c *Config) Reload() error {
	if c.path == "" {
		return fmt.Errorf("config path not set: use Load() or CreateDefault() with a path")
	}

	newCfg, err := Load(c.path)
	if err != nil {
		return err
	}
	*c = *newCfg
	return nil
}

// CreateDefault creates a default config with the given config file path.
// The path is stored so that subsequent Save() calls write to the same location.
func CreateDefault(configPath string) *Config {
	return &Config{
		ConfigVersion: version.Version,
		PluginDirs:    []string{},
		Console: &ConsoleConfig{
			Width:  DefaultConsoleWidth,
			Height: DefaultConsoleHeight,
		},
		path: configPath,
	}
}

// Load loads the configuration from the specified path.
// The file may carry comments and trailing commas.
// The path is stored so that subsequent Save() calls write to the same location.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// jsonc.ToJSON blanks comments in place, so error offsets still
	// point at the right spot in the original file.
	translated := jsonc.ToJSON(data)

	var cfg Config
	if err := json.Unmarshal(translated, &cfg); err != nil {
		// Try to extract line and column from JSON errors
		if syntaxErr, ok := err.(*json.SyntaxError); ok {
			line, col := offsetToLineCol(translated, syntaxErr.Offset)
			return nil, fmt.Errorf("%w: %s (line %d, column %d)", ErrInvalidConfig, syntaxErr.Error(), line, col)
		}
		if typeErr, ok := err.(*json.UnmarshalTypeError); ok {
			line, col := offsetToLineCol(translated, typeErr.Offset)
			return nil, fmt.Errorf("%w: field %q expects %s, got %s (line %d, column %d)",
				ErrInvalidConfig, typeErr.Field, typeErr.Type, typeErr.Value, line, col)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	// Apply migrations before validation
	if err := cfg.Migrate(); err != nil {
		return nil, fmt.Errorf("config migration failed: %w", err)
	}

	// Store the config path so Save() writes to the same location
	cfg.path = configPath

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.expandPaths(homeDir)

	return &cfg, nil
}

// Migrate applies config migrations to roll the config forward to the current version.
// For now, this is a no-op. When we add config changes in the future, add migration
// logic here keyed by the config's version.
func (c *Config) Migrate() error {
	// No migrations yet - config version tracking is newly added
	// Add migration logic here as config schema evolves
	return nil
}

// Save writes the config to the path it was loaded from or created with.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config path not set: use Load() or CreateDefault() with a path")
	}

	// Update config version to current binary version
	c.ConfigVersion = version.Version

	// Ensure the directory exists
	dir := filepath.Dir(c.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	// Marshal with indentation for readability
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to a temporary file first, then rename for atomicity
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath) // Clean up temp file
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// DefaultPath returns the canonical config file location.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".spyglass", "config.json")
}

// ConfigExists checks if the config file exists.
func ConfigExists() bool {
	path := DefaultPath()
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// EnsureExists checks if config exists, and offers to create one interactively if not.
// Returns true if config exists or was created, false if user declined or error occurred.
//
// Note: There is a TOCTOU race between ConfigExists() and Save(). If another process
// creates the config file between the check and save, this will overwrite it.
// This is acceptable for an interactive first-run flow where racing is unlikely.
func EnsureExists() (bool, error) {
	if ConfigExists() {
		return true, nil
	}

	configPath := DefaultPath()
	if configPath == "" {
		return false, fmt.Errorf("failed to get home directory")
	}

	fmt.Println("Welcome to spyglass!")
	fmt.Println()
	fmt.Println("No config file found at ~/.spyglass/config.json")
	fmt.Println()
	fmt.Print("Would you like to create one now? [Y/n] ")

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}

	response = strings.TrimSpace(strings.ToLower(response))
	if response == "n" || response == "no" {
		fmt.Println("Config not created. Please create ~/.spyglass/config.json manually to continue.")
		return false, nil
	}

	cfg := CreateDefault(configPath)
	if err := cfg.Save(); err != nil {
		return false, fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("[config] created at %s\n", configPath)
	fmt.Println()
	fmt.Printf("[config] open http://localhost:%d to see connected devices\n", cfg.GetPort())

	return true, nil
}

// offsetToLineCol converts a byte offset to line and column numbers (1-indexed).
func offsetToLineCol(data []byte, offset int64) (line, col int) {
	line = 1
	col = 1
	for i := int64(0); i < offset && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
