package plugins

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/jsonc"
)

// marketplaceIndex is the wire shape of a marketplace index document.
type marketplaceIndex struct {
	Plugins []*Definition `json:"plugins"`
}

// LoadMarketplaceIndex parses a marketplace index (JSON, comments
// tolerated) listing downloadable plugin definitions. Entries without
// an id or download URL are rejected.
func LoadMarketplaceIndex(data []byte) ([]*Definition, error) {
	var index marketplaceIndex
	if err := json.Unmarshal(jsonc.ToJSON(data), &index); err != nil {
		return nil, fmt.Errorf("failed to parse marketplace index: %w", err)
	}
	for _, def := range index.Plugins {
		if def.ID == "" {
			return nil, fmt.Errorf("marketplace entry is missing an id")
		}
		if def.DownloadURL == "" {
			return nil, fmt.Errorf("marketplace entry %s is missing a download URL", def.ID)
		}
		if def.Title == "" {
			def.Title = def.ID
		}
	}
	return index.Plugins, nil
}

// UpdateAvailable reports whether the marketplace entry is strictly
// newer than the installed definition. Versions that do not parse as
// semver never report an update.
func UpdateAvailable(installed, marketplace *Definition) bool {
	if installed == nil || marketplace == nil {
		return false
	}
	current, err := semver.NewVersion(installed.Version)
	if err != nil {
		return false
	}
	latest, err := semver.NewVersion(marketplace.Version)
	if err != nil {
		return false
	}
	return latest.GreaterThan(current)
}

// Updates lists marketplace entries with a newer version than the
// installed plugin of the same id, in stable order.
func Updates(col *Collections) []*Definition {
	var out []*Definition
	for _, id := range SortedIDs(col.MarketplacePlugins) {
		entry := col.MarketplacePlugins[id]
		installed := col.ClientPlugins[id]
		if installed == nil {
			installed = col.DevicePlugins[id]
		}
		if UpdateAvailable(installed, entry) {
			out = append(out, entry)
		}
	}
	return out
}
