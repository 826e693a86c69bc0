// Package conn is the connection-tracking state slice: which devices
// and app connections are known, which one is active for display, and
// which plugins are enabled where. The core is a pure Transition
// function over immutable snapshots plus a memoized selector pipeline;
// the Store serializes dispatch and persists the selection subset.
package conn

import (
	"github.com/spyglass-dev/spyglass/internal/device"
)

// DefaultDevicePlugins are enabled for every device out of the box.
var DefaultDevicePlugins = []string{"device-logs", "crash-watcher"}

// StaticView describes a full-screen override surface that replaces
// normal plugin display (welcome screen, support form, connectivity
// doctor). It is mutually exclusive with a plugin selection being
// rendered.
type StaticView struct {
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
}

// State is one immutable snapshot of the connection slice. Snapshots
// are never mutated after publication: Transition clones the fields it
// changes and shares the rest, so an old snapshot stays valid for any
// reader that holds it. The referenced Device and Client entities are
// externally owned and may change out-of-band.
type State struct {
	Devices              []*device.Device
	Clients              []*device.Client
	UninitializedClients []device.UninitializedClient

	SelectedDevice *device.Device
	SelectedAppID  string // "" or an id present in Clients
	SelectedPlugin string // plugin id, not validated against the registry here

	// Sticky preferences used to restore selection after churn.
	UserPreferredDevice string // device title
	UserPreferredApp    string // app name, not client id
	UserPreferredPlugin string

	EnabledPlugins       map[string][]string // app name -> de-duplicated plugin ids
	EnabledDevicePlugins map[string]struct{}

	StaticView      *StaticView
	DeepLinkPayload any

	// SelectedAppPluginListRevision only forces plugin-list recomputation
	// when plugin availability changes outside this store.
	SelectedAppPluginListRevision uint64
}

// NewState returns the initial snapshot.
func NewState() *State {
	enabled := make(map[string]struct{}, len(DefaultDevicePlugins))
	for _, id := range DefaultDevicePlugins {
		enabled[id] = struct{}{}
	}
	return &State{
		EnabledPlugins:       map[string][]string{},
		EnabledDevicePlugins: enabled,
	}
}

// shallow returns a copy of s sharing every substructure. Transition
// handlers copy the specific slices or maps they are about to change.
func (s *State) shallow() *State {
	next := *s
	return &next
}

// ClientByID returns the client with the given id, or nil. An empty id
// always returns nil.
func (s *State) ClientByID(id string) *device.Client {
	if id == "" {
		return nil
	}
	for _, c := range s.Clients {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// DeviceBySerial returns the device with the given serial, or nil.
func (s *State) DeviceBySerial(serial string) *device.Device {
	for _, d := range s.Devices {
		if d.Serial == serial {
			return d
		}
	}
	return nil
}

// clientForDevice picks the client to select when focus moves to a
// device: the one matching the preferred app name if any, else the
// first client on the device. Clients belong to a device by serial, so
// a replaced device entry keeps its clients.
func (s *State) clientForDevice(d *device.Device, preferredApp string) *device.Client {
	var first *device.Client
	for _, c := range s.Clients {
		if c.Query.DeviceID != d.Serial {
			continue
		}
		if first == nil {
			first = c
		}
		if preferredApp != "" && c.Query.App == preferredApp {
			return c
		}
	}
	return first
}

func copyEnabledPlugins(m map[string][]string) map[string][]string {
	next := make(map[string][]string, len(m))
	for app, ids := range m {
		next[app] = ids
	}
	return next
}

func copyDevicePluginSet(m map[string]struct{}) map[string]struct{} {
	next := make(map[string]struct{}, len(m))
	for id := range m {
		next[id] = struct{}{}
	}
	return next
}
