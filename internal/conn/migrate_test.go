package conn

import (
	"reflect"
	"testing"
)

func TestMigrateFromEmpty(t *testing.T) {
	raw := Migrate(map[string]any{})

	if raw["persistVersion"] != PersistVersion {
		t.Errorf("expected version %d, got %v", PersistVersion, raw["persistVersion"])
	}
	enabled, ok := raw["enabledPlugins"].(map[string]any)
	if !ok || len(enabled) != 0 {
		t.Errorf("expected empty enabled plugin map, got %v", raw["enabledPlugins"])
	}
	devicePlugins, ok := raw["enabledDevicePlugins"].([]any)
	if !ok || len(devicePlugins) != len(DefaultDevicePlugins) {
		t.Errorf("expected default device plugins, got %v", raw["enabledDevicePlugins"])
	}
}

func TestMigrateCarriesLegacyStarredPlugins(t *testing.T) {
	raw := Migrate(map[string]any{
		"starredPlugins": map[string]any{
			"alpha": []any{"network-inspector"},
		},
	})

	enabled, ok := raw["enabledPlugins"].(map[string]any)
	if !ok {
		t.Fatalf("expected enabled plugin map, got %v", raw["enabledPlugins"])
	}
	ids, ok := enabled["alpha"].([]any)
	if !ok || len(ids) != 1 || ids[0] != "network-inspector" {
		t.Errorf("expected legacy starred plugins carried over, got %v", enabled["alpha"])
	}
	if _, ok := raw["starredPlugins"]; !ok {
		t.Error("migrations must never delete data")
	}
}

func TestMigratePreservesExistingFields(t *testing.T) {
	raw := Migrate(map[string]any{
		"enabledPlugins": map[string]any{
			"alpha": []any{"layout-inspector"},
		},
		"enabledDevicePlugins": []any{"cpu-profiler"},
	})

	enabled := raw["enabledPlugins"].(map[string]any)
	if ids := enabled["alpha"].([]any); len(ids) != 1 || ids[0] != "layout-inspector" {
		t.Errorf("existing enabled plugins should not be overwritten, got %v", ids)
	}
	devicePlugins := raw["enabledDevicePlugins"].([]any)
	if len(devicePlugins) != 1 || devicePlugins[0] != "cpu-profiler" {
		t.Errorf("existing device plugin set should not be overwritten, got %v", devicePlugins)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	first := Migrate(map[string]any{
		"userPreferredApp": "alpha",
		"starredPlugins":   map[string]any{"alpha": []any{"network-inspector"}},
	})

	copied := map[string]any{}
	for k, v := range first {
		copied[k] = v
	}
	second := Migrate(copied)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("migrating twice diverged:\nfirst:  %v\nsecond: %v", first, second)
	}
}

func TestMigrateCarriesUnknownKeys(t *testing.T) {
	raw := Migrate(map[string]any{
		"futureField": "kept",
	})

	if raw["futureField"] != "kept" {
		t.Error("unknown keys must ride along through migrations")
	}
}

func TestMigrateAlreadyCurrentUntouched(t *testing.T) {
	raw := Migrate(map[string]any{
		"persistVersion":       PersistVersion,
		"enabledDevicePlugins": []any{},
	})

	devicePlugins := raw["enabledDevicePlugins"].([]any)
	if len(devicePlugins) != 0 {
		t.Errorf("a current document must not be re-seeded, got %v", devicePlugins)
	}
}
