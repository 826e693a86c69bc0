// Package cli is the client library the spyglass CLI uses to talk to
// the daemon's HTTP API.
package cli

// DaemonClient is the interface for communicating with the spyglass
// daemon.
type DaemonClient interface {
	// IsRunning checks if the daemon is running.
	IsRunning() bool

	// GetVersion fetches the daemon version.
	GetVersion() (string, error)

	// GetState fetches the current connection state.
	GetState() (*State, error)

	// GetPlugins fetches the plugin lists for the current selection.
	GetPlugins() (*Plugins, error)

	// SelectDevice moves display focus to a device by serial.
	SelectDevice(serial string) error

	// SelectClient moves display focus to a client by id.
	SelectClient(id string) error

	// SelectPlugin moves focus to a plugin, optionally pinning the app
	// and device.
	SelectPlugin(plugin, app, serial string) error

	// EnablePlugin turns a plugin on for an app.
	EnablePlugin(plugin, app string) error

	// DisablePlugin turns a plugin off for an app.
	DisablePlugin(plugin, app string) error

	// EnableDevicePlugin turns a device plugin on across all devices.
	EnableDevicePlugin(plugin string) error

	// DisableDevicePlugin turns a device plugin off across all devices.
	DisableDevicePlugin(plugin string) error

	// Export writes an export bundle on the daemon side. path and
	// compress are optional; empty values use the daemon defaults.
	Export(path, compress string) (*ExportResult, error)
}

// Device is one device row from the daemon's state response.
type Device struct {
	Serial    string `json:"serial"`
	Title     string `json:"title"`
	OS        string `json:"os"`
	Connected bool   `json:"connected"`
	Archived  bool   `json:"archived,omitempty"`
}

// ClientInfo is one client row from the daemon's state response.
type ClientInfo struct {
	ID        string `json:"id"`
	App       string `json:"app"`
	OS        string `json:"os"`
	DeviceID  string `json:"device_id"`
	Connected bool   `json:"connected"`
}

// Selection is the current display selection.
type Selection struct {
	DeviceSerial string `json:"device_serial,omitempty"`
	AppID        string `json:"app_id,omitempty"`
	Plugin       string `json:"plugin,omitempty"`
}

// State mirrors the daemon's /api/state response.
type State struct {
	Devices              []Device            `json:"devices"`
	Clients              []ClientInfo        `json:"clients"`
	Selection            Selection           `json:"selection"`
	PreferredDevice      string              `json:"preferred_device,omitempty"`
	PreferredApp         string              `json:"preferred_app,omitempty"`
	PreferredPlugin      string              `json:"preferred_plugin,omitempty"`
	EnabledPlugins       map[string][]string `json:"enabled_plugins"`
	EnabledDevicePlugins []string            `json:"enabled_device_plugins"`
	Revision             uint64              `json:"revision"`
}

// PluginEntry is one plugin row from the daemon's plugin lists.
type PluginEntry struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Version string `json:"version"`
}

// UnavailablePlugin is a plugin that cannot be used right now and why.
type UnavailablePlugin struct {
	Definition PluginEntry `json:"definition"`
	Reason     string      `json:"reason"`
}

// PluginLists mirrors the categorized plugin lists in the daemon's
// /api/plugins response.
type PluginLists struct {
	DevicePlugins []PluginEntry       `json:"device_plugins"`
	MetroPlugins  []PluginEntry       `json:"metro_plugins"`
	Enabled       []PluginEntry       `json:"enabled"`
	Disabled      []PluginEntry       `json:"disabled"`
	Unavailable   []UnavailablePlugin `json:"unavailable"`
	Downloadable  []PluginEntry       `json:"downloadable"`
}

// Plugins mirrors the daemon's /api/plugins response.
type Plugins struct {
	Lists        *PluginLists  `json:"lists"`
	ActivePlugin string        `json:"active_plugin,omitempty"`
	Updates      []PluginEntry `json:"updates,omitempty"`
}

// ExportResult mirrors the daemon's /api/export response.
type ExportResult struct {
	BundleID string `json:"bundle_id"`
	Path     string `json:"path"`
}
