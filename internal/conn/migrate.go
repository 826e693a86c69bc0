package conn

// PersistVersion is the current schema version of the persisted
// selection subset.
const PersistVersion = 2

// migrations upgrade a raw persisted document one version at a time.
// Every step only fills fields that are absent, so replaying a step
// over already-migrated data changes nothing.
var migrations = map[int]func(raw map[string]any){
	1: migrateToV1,
	2: migrateToV2,
}

// Migrate rolls a raw persisted document forward to PersistVersion.
// Documents with no version field are treated as version 0. Unknown
// keys are carried along untouched.
func Migrate(raw map[string]any) map[string]any {
	if raw == nil {
		raw = map[string]any{}
	}
	version := 0
	switch v := raw["persistVersion"].(type) {
	case float64:
		version = int(v)
	case int:
		version = v
	}
	for next := version + 1; next <= PersistVersion; next++ {
		if step := migrations[next]; step != nil {
			step(raw)
		}
		raw["persistVersion"] = next
	}
	return raw
}

// migrateToV1 introduces the per-app enabled plugin map. Earlier
// builds stored the same data under "starredPlugins".
func migrateToV1(raw map[string]any) {
	if _, ok := raw["enabledPlugins"]; ok {
		return
	}
	if legacy, ok := raw["starredPlugins"]; ok {
		raw["enabledPlugins"] = legacy
		return
	}
	raw["enabledPlugins"] = map[string]any{}
}

// migrateToV2 introduces the device plugin enable set, seeded with
// the plugins every fresh install starts with.
func migrateToV2(raw map[string]any) {
	if _, ok := raw["enabledDevicePlugins"]; ok {
		return
	}
	seeded := make([]any, 0, len(DefaultDevicePlugins))
	for _, id := range DefaultDevicePlugins {
		seeded = append(seeded, id)
	}
	raw["enabledDevicePlugins"] = seeded
}
