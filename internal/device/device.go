// Package device holds the entities the connection store tracks:
// inspectable devices, client app connections, and mid-handshake
// placeholders. Entities are created by the bridge scanner (or tests),
// shared by reference, and mutated only through their methods.
package device

import (
	"sync"
)

// OS identifies the operating system a device or client reports.
type OS string

const (
	OSAndroid OS = "Android"
	OSiOS     OS = "iOS"
	OSMetro   OS = "Metro"
	OSWindows OS = "Windows"
	OSMacOS   OS = "MacOS"
)

// ParseOS maps a reported OS string to a known OS value.
func ParseOS(s string) (OS, bool) {
	switch OS(s) {
	case OSAndroid, OSiOS, OSMetro, OSWindows, OSMacOS:
		return OS(s), true
	}
	return "", false
}

// Device is one inspectable target: a phone, an emulator, or the
// synthetic metro bridge. The connection store holds devices by
// reference and never clones them; out-of-band mutation goes through
// SetConnected and AttachPlugin only.
type Device struct {
	Serial   string `json:"serial"`
	Title    string `json:"title"`
	OS       OS     `json:"os"`
	Archived bool   `json:"archived,omitempty"`

	mu        sync.RWMutex
	connected bool
	plugins   []string // device plugin ids attached after registration
}

// New creates a device that reports itself connected.
func New(serial, title string, os OS) *Device {
	return &Device{
		Serial:    serial,
		Title:     title,
		OS:        os,
		connected: true,
	}
}

// Connected reports whether the device currently has a live bridge
// connection.
func (d *Device) Connected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// SetConnected flips the live-connection flag. Called by the scanner
// when the device appears in or drops out of a bridge listing.
func (d *Device) SetConnected(connected bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = connected
}

// AttachPlugin records a device plugin as available on this device.
// Attaching an already attached plugin is a no-op. This is the only
// sanctioned post-registration mutation besides SetConnected; callers
// must not assume the attach is observed atomically with any store
// transition.
func (d *Device) AttachPlugin(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.plugins {
		if existing == id {
			return
		}
	}
	d.plugins = append(d.plugins, id)
}

// Plugins returns the attached device plugin ids.
// Returns a copy to prevent callers from modifying internal state.
func (d *Device) Plugins() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	plugins := make([]string, len(d.plugins))
	copy(plugins, d.plugins)
	return plugins
}

// SupportsOS reports whether a client speaking the given OS dialect can
// attach to this device.
func (d *Device) SupportsOS(os OS) bool {
	return d.OS == os
}
