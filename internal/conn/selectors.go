package conn

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/spyglass-dev/spyglass/internal/device"
	"github.com/spyglass-dev/spyglass/internal/plugins"
)

// PluginLists are the render-ready plugin collections for the current
// selection.
type PluginLists struct {
	DevicePlugins []*plugins.Definition `json:"device_plugins"`
	MetroPlugins  []*plugins.Definition `json:"metro_plugins"`
	Enabled       []*plugins.Definition `json:"enabled"`
	Disabled      []*plugins.Definition `json:"disabled"`
	Unavailable   []UnavailablePlugin   `json:"unavailable"`
	Downloadable  []*plugins.Definition `json:"downloadable"`
}

// UnavailablePlugin explains why a plugin cannot be used right now.
type UnavailablePlugin struct {
	Definition *plugins.Definition `json:"definition"`
	Reason     string              `json:"reason"`
}

// Selectors derives views from a snapshot plus the plugin registry.
// Each derivation keeps an explicit cache of its last inputs and last
// output and recomputes only when a declared input changed; caches
// chain leaves-first, so a derivation reuses its dependencies' caches.
// Methods are safe for concurrent use.
type Selectors struct {
	registry *plugins.Registry
	mu       sync.Mutex

	activeClient struct {
		valid   bool
		appID   string
		clients []*device.Client
		out     *device.Client
	}
	metroDevice struct {
		valid   bool
		devices []*device.Device
		out     *device.Device
	}
	activeDevice struct {
		valid    bool
		selected *device.Device
		metro    *device.Device
		client   *device.Client
		out      *device.Device
	}
	pluginLists struct {
		valid         bool
		device        *device.Device
		metro         *device.Device
		client        *device.Client
		col           *plugins.Collections
		enabledApps   map[string][]string
		enabledDevice map[string]struct{}
		revision      uint64
		out           *PluginLists
	}
	activePluginList struct {
		valid bool
		lists *PluginLists
		out   map[string]*plugins.Definition
	}
	activePlugin struct {
		valid    bool
		list     map[string]*plugins.Definition
		selected string
		out      *plugins.Definition
	}
	exportable struct {
		valid  bool
		list   map[string]*plugins.Definition
		client *device.Client
		queue  MessageQueue
		out    []*plugins.Definition
	}
	downloads struct {
		valid bool
		dl    map[string]*plugins.DownloadState
		out   map[string]plugins.DownloadStatus
	}
}

// NewSelectors creates a selector pipeline over the given registry.
func NewSelectors(registry *plugins.Registry) *Selectors {
	return &Selectors{registry: registry}
}

// sameSlice reports whether two slices share the same backing array.
// Snapshot slices are replaced, never mutated in place, so comparing
// length and first-element identity is a reliable changed test.
func sameSlice[T any](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

// sameMap reports whether two maps are the same object. Snapshot maps
// follow the same replace-never-mutate discipline as slices.
func sameMap[M ~map[K]V, K comparable, V any](a, b M) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// ActiveClient returns the client the selection points at, or nil.
func (sel *Selectors) ActiveClient(s *State) *device.Client {
	sel.mu.Lock()
	defer sel.mu.Unlock()
	return sel.activeClientLocked(s)
}

func (sel *Selectors) activeClientLocked(s *State) *device.Client {
	c := &sel.activeClient
	if c.valid && c.appID == s.SelectedAppID && sameSlice(c.clients, s.Clients) {
		return c.out
	}
	c.valid = true
	c.appID = s.SelectedAppID
	c.clients = s.Clients
	c.out = s.ClientByID(s.SelectedAppID)
	return c.out
}

// MetroDevice returns the first non-archived device on the synthetic
// debug-bridge OS, or nil.
func (sel *Selectors) MetroDevice(s *State) *device.Device {
	sel.mu.Lock()
	defer sel.mu.Unlock()
	return sel.metroDeviceLocked(s)
}

func (sel *Selectors) metroDeviceLocked(s *State) *device.Device {
	c := &sel.metroDevice
	if c.valid && sameSlice(c.devices, s.Devices) {
		return c.out
	}
	c.valid = true
	c.devices = s.Devices
	c.out = nil
	for _, d := range s.Devices {
		if d.OS == device.OSMetro && !d.Archived {
			c.out = d
			break
		}
	}
	return c.out
}

// ActiveDevice returns the device whose plugins should render. The
// metro bridge never steals focus: when it is the selected device but
// an app is active, the app's own device wins.
func (sel *Selectors) ActiveDevice(s *State) *device.Device {
	sel.mu.Lock()
	defer sel.mu.Unlock()
	return sel.activeDeviceLocked(s)
}

func (sel *Selectors) activeDeviceLocked(s *State) *device.Device {
	metro := sel.metroDeviceLocked(s)
	client := sel.activeClientLocked(s)

	c := &sel.activeDevice
	if c.valid && c.selected == s.SelectedDevice && c.metro == metro && c.client == client {
		return c.out
	}
	c.valid = true
	c.selected = s.SelectedDevice
	c.metro = metro
	c.client = client

	switch {
	case s.SelectedDevice != metro:
		c.out = s.SelectedDevice
	case client != nil:
		c.out = client.Device
	default:
		c.out = s.SelectedDevice
	}
	return c.out
}

// PluginLists categorizes the registry's plugins for the current
// selection. The revision counter forces recomputation when plugin
// availability changed out-of-band even though no tracked reference
// did.
func (sel *Selectors) PluginLists(s *State) *PluginLists {
	sel.mu.Lock()
	defer sel.mu.Unlock()
	return sel.pluginListsLocked(s)
}

func (sel *Selectors) pluginListsLocked(s *State) *PluginLists {
	dev := sel.activeDeviceLocked(s)
	metro := sel.metroDeviceLocked(s)
	client := sel.activeClientLocked(s)
	col := sel.registry.Collections()

	c := &sel.pluginLists
	if c.valid &&
		c.device == dev && c.metro == metro && c.client == client &&
		c.col == col &&
		sameMap(c.enabledApps, s.EnabledPlugins) &&
		sameMap(c.enabledDevice, s.EnabledDevicePlugins) &&
		c.revision == s.SelectedAppPluginListRevision {
		return c.out
	}
	c.valid = true
	c.device = dev
	c.metro = metro
	c.client = client
	c.col = col
	c.enabledApps = s.EnabledPlugins
	c.enabledDevice = s.EnabledDevicePlugins
	c.revision = s.SelectedAppPluginListRevision
	c.out = computePluginLists(dev, metro, client, col, s.EnabledPlugins, s.EnabledDevicePlugins)
	return c.out
}

// ActivePluginList flattens PluginLists into the displayable set,
// keyed by plugin id.
func (sel *Selectors) ActivePluginList(s *State) map[string]*plugins.Definition {
	sel.mu.Lock()
	defer sel.mu.Unlock()
	return sel.activePluginListLocked(s)
}

func (sel *Selectors) activePluginListLocked(s *State) map[string]*plugins.Definition {
	lists := sel.pluginListsLocked(s)

	c := &sel.activePluginList
	if c.valid && c.lists == lists {
		return c.out
	}
	c.valid = true
	c.lists = lists

	out := make(map[string]*plugins.Definition)
	for _, group := range [][]*plugins.Definition{
		lists.DevicePlugins, lists.MetroPlugins, lists.Enabled, lists.Disabled,
	} {
		for _, def := range group {
			out[def.ID] = def
		}
	}
	c.out = out
	return out
}

// ActivePlugin resolves the selected plugin id against the displayable
// set; nil when nothing is selected or the id is not displayable.
func (sel *Selectors) ActivePlugin(s *State) *plugins.Definition {
	sel.mu.Lock()
	defer sel.mu.Unlock()

	list := sel.activePluginListLocked(s)
	c := &sel.activePlugin
	if c.valid && sameMap(c.list, list) && c.selected == s.SelectedPlugin {
		return c.out
	}
	c.valid = true
	c.list = list
	c.selected = s.SelectedPlugin
	if s.SelectedPlugin == "" {
		c.out = nil
	} else {
		c.out = list[s.SelectedPlugin]
	}
	return c.out
}

// ExportablePlugins lists displayable plugins worth including in an
// export bundle: those whose definition declares exportable state,
// plus those with messages queued for the active client.
func (sel *Selectors) ExportablePlugins(s *State, queue MessageQueue) []*plugins.Definition {
	sel.mu.Lock()
	defer sel.mu.Unlock()

	list := sel.activePluginListLocked(s)
	client := sel.activeClientLocked(s)

	c := &sel.exportable
	if c.valid && sameMap(c.list, list) && c.client == client && sameMap(c.queue, queue) {
		return c.out
	}
	c.valid = true
	c.list = list
	c.client = client
	c.queue = queue

	var out []*plugins.Definition
	for id, def := range list {
		switch {
		case def.Exportable:
			out = append(out, def)
		case client != nil && len(queue[QueueKey(client.ID, id)]) > 0:
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.out = out
	return out
}

// PluginDownloadStatusMap maps plugin ids to their current download
// status, derived from the registry's downloads-by-key records.
func (sel *Selectors) PluginDownloadStatusMap() map[string]plugins.DownloadStatus {
	sel.mu.Lock()
	defer sel.mu.Unlock()

	col := sel.registry.Collections()
	c := &sel.downloads
	if c.valid && sameMap(c.dl, col.Downloads) {
		return c.out
	}
	c.valid = true
	c.dl = col.Downloads

	keys := make([]string, 0, len(col.Downloads))
	for key := range col.Downloads {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make(map[string]plugins.DownloadStatus, len(keys))
	for _, key := range keys {
		st := col.Downloads[key]
		out[st.Definition.ID] = st.Status
	}
	c.out = out
	return out
}

// computePluginLists is the uncached core of the PluginLists selector.
func computePluginLists(
	dev, metro *device.Device,
	client *device.Client,
	col *plugins.Collections,
	enabledApps map[string][]string,
	enabledDevice map[string]struct{},
) *PluginLists {
	lists := &PluginLists{}

	attached := map[string]bool{}
	if dev != nil {
		for _, id := range dev.Plugins() {
			attached[id] = true
			def := col.DevicePlugins[id]
			if def == nil {
				continue
			}
			if _, ok := enabledDevice[id]; ok {
				lists.DevicePlugins = append(lists.DevicePlugins, def)
			}
		}
	}
	if metro != nil && metro != dev {
		for _, id := range metro.Plugins() {
			attached[id] = true
			def := col.DevicePlugins[id]
			if def == nil {
				continue
			}
			if _, ok := enabledDevice[id]; ok {
				lists.MetroPlugins = append(lists.MetroPlugins, def)
			}
		}
	}
	if dev != nil {
		for _, id := range plugins.SortedIDs(col.DevicePlugins) {
			if !attached[id] {
				lists.Unavailable = append(lists.Unavailable, UnavailablePlugin{
					Definition: col.DevicePlugins[id],
					Reason:     fmt.Sprintf("not supported by device %q", dev.Title),
				})
			}
		}
	}

	if client != nil {
		enabledSet := map[string]bool{}
		for _, id := range enabledApps[client.Query.App] {
			enabledSet[id] = true
		}
		for _, id := range client.Plugins() {
			def := col.ClientPlugins[id]
			if def == nil {
				continue
			}
			if enabledSet[id] {
				lists.Enabled = append(lists.Enabled, def)
			} else {
				lists.Disabled = append(lists.Disabled, def)
			}
		}

		for _, id := range plugins.SortedIDs(col.ClientPlugins) {
			if !client.SupportsPlugin(id) {
				lists.Unavailable = append(lists.Unavailable, UnavailablePlugin{
					Definition: col.ClientPlugins[id],
					Reason:     fmt.Sprintf("not exposed by app %q", client.Query.App),
				})
			}
		}
		for _, id := range plugins.SortedIDs(col.GatekeptPlugins) {
			def := col.GatekeptPlugins[id]
			if client.SupportsPlugin(id) {
				lists.Unavailable = append(lists.Unavailable, UnavailablePlugin{
					Definition: def,
					Reason:     fmt.Sprintf("behind gatekeeper flag %q", def.Gatekeeper),
				})
			}
		}
		for _, id := range plugins.SortedIDs(col.DisabledPlugins) {
			if client.SupportsPlugin(id) {
				lists.Unavailable = append(lists.Unavailable, UnavailablePlugin{
					Definition: col.DisabledPlugins[id],
					Reason:     "disabled by configuration",
				})
			}
		}
		failedIDs := make([]string, 0, len(col.FailedPlugins))
		for id := range col.FailedPlugins {
			failedIDs = append(failedIDs, id)
		}
		sort.Strings(failedIDs)
		for _, id := range failedIDs {
			failed := col.FailedPlugins[id]
			if client.SupportsPlugin(id) {
				lists.Unavailable = append(lists.Unavailable, UnavailablePlugin{
					Definition: failed.Definition,
					Reason:     fmt.Sprintf("failed to load: %s", failed.Reason),
				})
			}
		}

		for _, id := range plugins.SortedIDs(col.MarketplacePlugins) {
			if !client.SupportsPlugin(id) {
				continue
			}
			if col.ClientPlugins[id] != nil || col.DevicePlugins[id] != nil {
				continue
			}
			lists.Downloadable = append(lists.Downloadable, col.MarketplacePlugins[id])
		}
	}

	sortDefs(lists.DevicePlugins)
	sortDefs(lists.MetroPlugins)
	sortDefs(lists.Enabled)
	sortDefs(lists.Disabled)
	sortDefs(lists.Downloadable)
	sort.Slice(lists.Unavailable, func(i, j int) bool {
		return lists.Unavailable[i].Definition.ID < lists.Unavailable[j].Definition.ID
	})
	return lists
}

func sortDefs(defs []*plugins.Definition) {
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
}
