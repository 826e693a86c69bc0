package conn

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/jsonc"
)

// persistedState is the durable subset of a snapshot. User preferences
// and plugin enablement survive restarts; live connection data never
// does.
type persistedState struct {
	PersistVersion       int                 `json:"persistVersion"`
	UserPreferredDevice  string              `json:"userPreferredDevice,omitempty"`
	UserPreferredApp     string              `json:"userPreferredApp,omitempty"`
	UserPreferredPlugin  string              `json:"userPreferredPlugin,omitempty"`
	EnabledPlugins       map[string][]string `json:"enabledPlugins"`
	EnabledDevicePlugins []string            `json:"enabledDevicePlugins"`
}

func defaultPersisted() *persistedState {
	return &persistedState{
		PersistVersion:       PersistVersion,
		EnabledPlugins:       map[string][]string{},
		EnabledDevicePlugins: append([]string(nil), DefaultDevicePlugins...),
	}
}

// loadPersisted reads, migrates, and decodes the persisted selection
// subset. A missing file yields defaults. The file may contain
// comments and trailing commas.
func loadPersisted(path string) (*persistedState, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultPersisted(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	raw = Migrate(raw)

	// Round-trip through JSON to decode the migrated document into the
	// typed subset.
	migrated, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode migrated state: %w", err)
	}
	var ps persistedState
	if err := json.Unmarshal(migrated, &ps); err != nil {
		return nil, fmt.Errorf("failed to decode state file %s: %w", path, err)
	}
	if ps.EnabledPlugins == nil {
		ps.EnabledPlugins = map[string][]string{}
	}
	return &ps, nil
}

// apply folds the persisted subset into a snapshot, returning a new
// snapshot. Enabled plugin lists are deduplicated on the way in so a
// hand-edited file cannot violate the no-duplicates rule.
func (ps *persistedState) apply(s *State) *State {
	next := s.shallow()
	next.UserPreferredDevice = ps.UserPreferredDevice
	next.UserPreferredApp = ps.UserPreferredApp
	next.UserPreferredPlugin = ps.UserPreferredPlugin

	enabled := make(map[string][]string, len(ps.EnabledPlugins))
	for app, ids := range ps.EnabledPlugins {
		enabled[app] = dedupe(ids)
	}
	next.EnabledPlugins = enabled

	set := make(map[string]struct{}, len(ps.EnabledDevicePlugins))
	for _, id := range ps.EnabledDevicePlugins {
		set[id] = struct{}{}
	}
	next.EnabledDevicePlugins = set
	return next
}

// persistedFrom extracts the durable subset from a snapshot.
func persistedFrom(s *State) *persistedState {
	ps := &persistedState{
		PersistVersion:      PersistVersion,
		UserPreferredDevice: s.UserPreferredDevice,
		UserPreferredApp:    s.UserPreferredApp,
		UserPreferredPlugin: s.UserPreferredPlugin,
		EnabledPlugins:      make(map[string][]string, len(s.EnabledPlugins)),
	}
	for app, ids := range s.EnabledPlugins {
		ps.EnabledPlugins[app] = append([]string(nil), ids...)
	}
	ids := make([]string, 0, len(s.EnabledDevicePlugins))
	for id := range s.EnabledDevicePlugins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	ps.EnabledDevicePlugins = ids
	return ps
}

// savePersisted writes the subset atomically: full write to a temp
// file, then rename over the target.
func savePersisted(path string, ps *persistedState) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	data = append(data, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save state file: %w", err)
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
