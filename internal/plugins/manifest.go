package plugins

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// manifest is the on-disk YAML descriptor for one plugin.
type manifest struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Version     string   `yaml:"version"`
	Kind        string   `yaml:"kind"`
	Description string   `yaml:"description"`
	Gatekeeper  string   `yaml:"gatekeeper"`
	Exportable  bool     `yaml:"exportable"`
	SupportedOS []string `yaml:"supported_os"`
	Bundled     bool     `yaml:"bundled"`
}

// ParseManifest parses a plugin manifest document into a definition.
func ParseManifest(data []byte) (*Definition, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if m.ID == "" {
		return nil, fmt.Errorf("manifest is missing required field: id")
	}
	if m.Version == "" {
		return nil, fmt.Errorf("manifest %s is missing required field: version", m.ID)
	}

	kind := Kind(m.Kind)
	switch kind {
	case KindClient, KindDevice:
	case "":
		kind = KindClient
	default:
		return nil, fmt.Errorf("manifest %s has unknown kind: %q", m.ID, m.Kind)
	}

	title := m.Title
	if title == "" {
		title = m.ID
	}

	return &Definition{
		ID:          m.ID,
		Title:       title,
		Version:     m.Version,
		Kind:        kind,
		Description: m.Description,
		Gatekeeper:  m.Gatekeeper,
		Exportable:  m.Exportable,
		SupportedOS: m.SupportedOS,
		Bundled:     m.Bundled,
	}, nil
}
