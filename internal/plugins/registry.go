// Package plugins owns the catalog of inspection plugins: definitions
// parsed from on-disk manifests, marketplace entries, and download
// state. The registry is queried (never mutated) by the selector layer,
// which relies on Collections snapshots being replaced wholesale so
// pointer identity doubles as a change test.
package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Kind distinguishes client-process plugins from device-level plugins.
type Kind string

const (
	KindClient Kind = "client"
	KindDevice Kind = "device"
)

// Definition describes one inspection plugin known to the registry.
type Definition struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Version     string   `json:"version"`
	Kind        Kind     `json:"kind"`
	Description string   `json:"description,omitempty"`
	Gatekeeper  string   `json:"gatekeeper,omitempty"`   // gatekeeper flag guarding the plugin, if any
	Exportable  bool     `json:"exportable,omitempty"`   // plugin keeps state worth including in export bundles
	SupportedOS []string `json:"supported_os,omitempty"` // empty means any
	Bundled     bool     `json:"bundled,omitempty"`      // shipped with spyglass rather than installed separately
	DownloadURL string   `json:"download_url,omitempty"` // set on marketplace entries
}

// FailedPlugin pairs a definition with the reason it could not load.
type FailedPlugin struct {
	Definition *Definition `json:"definition"`
	Reason     string      `json:"reason"`
}

// DownloadStatus tracks one marketplace download.
type DownloadStatus string

const (
	DownloadQueued     DownloadStatus = "queued"
	DownloadInProgress DownloadStatus = "downloading"
	DownloadDone       DownloadStatus = "done"
	DownloadFailed     DownloadStatus = "failed"
)

// DownloadState is the record kept per download key.
type DownloadState struct {
	Definition *Definition    `json:"definition"`
	Status     DownloadStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
}

// Collections is an immutable snapshot of the registry's categorized
// plugin collections, each a map from plugin id. Mutators replace the
// whole snapshot; callers must not modify the maps they receive.
type Collections struct {
	ClientPlugins      map[string]*Definition
	DevicePlugins      map[string]*Definition
	BundledPlugins     map[string]*Definition
	MarketplacePlugins map[string]*Definition
	LoadedPlugins      map[string]*Definition
	DisabledPlugins    map[string]*Definition
	GatekeptPlugins    map[string]*Definition
	FailedPlugins      map[string]FailedPlugin
	Downloads          map[string]*DownloadState // keyed by download key, not plugin id
}

func emptyCollections() *Collections {
	return &Collections{
		ClientPlugins:      map[string]*Definition{},
		DevicePlugins:      map[string]*Definition{},
		BundledPlugins:     map[string]*Definition{},
		MarketplacePlugins: map[string]*Definition{},
		LoadedPlugins:      map[string]*Definition{},
		DisabledPlugins:    map[string]*Definition{},
		GatekeptPlugins:    map[string]*Definition{},
		FailedPlugins:      map[string]FailedPlugin{},
		Downloads:          map[string]*DownloadState{},
	}
}

// clone copies the snapshot so a mutator can swap in edited maps while
// readers keep the old one.
func (c *Collections) clone() *Collections {
	next := *c
	return &next
}

// Registry holds the plugin catalog behind a copy-on-write Collections
// snapshot.
type Registry struct {
	mu  sync.RWMutex
	col *Collections

	gatekeepers map[string]bool // enabled gatekeeper flags
	disabled    map[string]bool // plugin ids disabled by configuration
}

// NewRegistry creates an empty registry. Gatekeepers lists the enabled
// gatekeeper flags; disabled lists plugin ids turned off by
// configuration.
func NewRegistry(gatekeepers, disabled []string) *Registry {
	gk := make(map[string]bool, len(gatekeepers))
	for _, flag := range gatekeepers {
		gk[flag] = true
	}
	dis := make(map[string]bool, len(disabled))
	for _, id := range disabled {
		dis[id] = true
	}
	return &Registry{
		col:         emptyCollections(),
		gatekeepers: gk,
		disabled:    dis,
	}
}

// Collections returns the current snapshot.
func (r *Registry) Collections() *Collections {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.col
}

// LoadManifests scans the given directories for plugin manifests
// (*.yaml, *.yml) and rebuilds the manifest-derived collections.
// Marketplace entries and download state are preserved. Manifests that
// fail to parse land in FailedPlugins keyed by file name; disabled and
// gatekept plugins are categorized but not activated.
func (r *Registry) LoadManifests(dirs []string) error {
	next := emptyCollections()

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to read plugin directory %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
				continue
			}
			path := filepath.Join(dir, name)
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read manifest %s: %w", path, err)
			}
			def, err := ParseManifest(data)
			if err != nil {
				key := strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
				next.FailedPlugins[key] = FailedPlugin{
					Definition: &Definition{ID: key, Title: key},
					Reason:     err.Error(),
				}
				continue
			}
			r.categorize(next, def)
		}
	}

	r.mu.Lock()
	next.MarketplacePlugins = r.col.MarketplacePlugins
	next.Downloads = r.col.Downloads
	r.col = next
	r.mu.Unlock()
	return nil
}

// categorize files a parsed definition into the snapshot under
// construction. Callers hold no lock; next is not yet published.
func (r *Registry) categorize(next *Collections, def *Definition) {
	if r.disabled[def.ID] {
		next.DisabledPlugins[def.ID] = def
		return
	}
	if def.Gatekeeper != "" && !r.gatekeepers[def.Gatekeeper] {
		next.GatekeptPlugins[def.ID] = def
		return
	}
	switch def.Kind {
	case KindDevice:
		next.DevicePlugins[def.ID] = def
	default:
		next.ClientPlugins[def.ID] = def
	}
	if def.Bundled {
		next.BundledPlugins[def.ID] = def
	}
	next.LoadedPlugins[def.ID] = def
}

// MarkFailed moves a plugin into FailedPlugins with the given reason,
// removing it from the active collections.
func (r *Registry) MarkFailed(id, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	def := r.col.ClientPlugins[id]
	if def == nil {
		def = r.col.DevicePlugins[id]
	}
	if def == nil {
		def = &Definition{ID: id, Title: id}
	}

	next := r.col.clone()
	next.ClientPlugins = withoutDef(r.col.ClientPlugins, id)
	next.DevicePlugins = withoutDef(r.col.DevicePlugins, id)
	next.LoadedPlugins = withoutDef(r.col.LoadedPlugins, id)
	failed := make(map[string]FailedPlugin, len(r.col.FailedPlugins)+1)
	for k, v := range r.col.FailedPlugins {
		failed[k] = v
	}
	failed[id] = FailedPlugin{Definition: def, Reason: reason}
	next.FailedPlugins = failed
	r.col = next
}

// SetMarketplace replaces the marketplace collection.
func (r *Registry) SetMarketplace(defs []*Definition) {
	entries := make(map[string]*Definition, len(defs))
	for _, def := range defs {
		entries[def.ID] = def
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.col.clone()
	next.MarketplacePlugins = entries
	r.col = next
}

// StartDownload records a queued download for a marketplace entry and
// returns its download key.
func (r *Registry) StartDownload(def *Definition) string {
	key := def.DownloadURL
	if key == "" {
		key = def.ID + "@" + def.Version
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.col.clone()
	next.Downloads = withDownload(r.col.Downloads, key, &DownloadState{
		Definition: def,
		Status:     DownloadQueued,
		StartedAt:  time.Now(),
	})
	r.col = next
	return key
}

// SetDownloadStatus advances a download record. Unknown keys are
// ignored.
func (r *Registry) SetDownloadStatus(key string, status DownloadStatus, errText string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.col.Downloads[key]
	if !ok {
		return
	}
	next := r.col.clone()
	next.Downloads = withDownload(r.col.Downloads, key, &DownloadState{
		Definition: prev.Definition,
		Status:     status,
		Error:      errText,
		StartedAt:  prev.StartedAt,
	})
	r.col = next
}

// SortedIDs returns the keys of a definition map in stable order.
func SortedIDs(defs map[string]*Definition) []string {
	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func withoutDef(m map[string]*Definition, id string) map[string]*Definition {
	if _, ok := m[id]; !ok {
		return m
	}
	next := make(map[string]*Definition, len(m))
	for k, v := range m {
		if k != id {
			next[k] = v
		}
	}
	return next
}

func withDownload(m map[string]*DownloadState, key string, st *DownloadState) map[string]*DownloadState {
	next := make(map[string]*DownloadState, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	next[key] = st
	return next
}
