package conn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spyglass-dev/spyglass/internal/device"
)

func TestStoreDispatchRevision(t *testing.T) {
	st := NewStore("", testLog)
	if st.Revision() != 0 {
		t.Fatalf("expected revision 0, got %d", st.Revision())
	}

	d1 := device.New("serial-1", "Pixel 8", device.OSAndroid)
	if err := st.Dispatch(RegisterDevice{Device: d1}); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if st.Revision() != 1 {
		t.Errorf("expected revision 1, got %d", st.Revision())
	}

	// A no-op action must not move the revision.
	if err := st.Dispatch(ClientRemoved{ID: "nope#Android#serial-9"}); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if st.Revision() != 1 {
		t.Errorf("no-op dispatch moved the revision to %d", st.Revision())
	}
}

func TestStoreDispatchConflictKeepsState(t *testing.T) {
	st := NewStore("", testLog)
	d1 := device.New("serial-1", "Pixel 8", device.OSAndroid)
	if err := st.Dispatch(RegisterDevice{Device: d1}); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	before := st.State()

	dup := device.New("serial-1", "Pixel 8", device.OSAndroid)
	if err := st.Dispatch(RegisterDevice{Device: dup}); err == nil {
		t.Fatal("expected conflict error, got nil")
	}
	if st.State() != before {
		t.Error("a failed dispatch must leave the snapshot untouched")
	}
	if st.Revision() != 1 {
		t.Errorf("a failed dispatch moved the revision to %d", st.Revision())
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	st := NewStore(path, testLog)
	d1 := device.New("serial-1", "Pixel 8", device.OSAndroid)
	for _, a := range []Action{
		RegisterDevice{Device: d1},
		SelectDevice{Device: d1},
		SetPluginEnabled{PluginID: "network-inspector", AppID: "alpha"},
		SetDevicePluginDisabled{PluginID: "device-logs"},
	} {
		if err := st.Dispatch(a); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
	}
	if err := st.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	st2 := NewStore(path, testLog)
	if err := st2.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	s := st2.State()

	if s.UserPreferredDevice != "Pixel 8" {
		t.Errorf("expected preferred device to survive, got %q", s.UserPreferredDevice)
	}
	got := s.EnabledPlugins["alpha"]
	if len(got) != 1 || got[0] != "network-inspector" {
		t.Errorf("expected enabled plugins to survive, got %v", got)
	}
	if _, ok := s.EnabledDevicePlugins["device-logs"]; ok {
		t.Error("a disabled device plugin should stay disabled after reload")
	}
	if _, ok := s.EnabledDevicePlugins["crash-watcher"]; !ok {
		t.Error("the remaining device plugins should survive")
	}
	if len(s.Devices) != 0 {
		t.Error("live connection data must not be persisted")
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	st := NewStore(path, testLog)
	if err := st.Load(); err != nil {
		t.Fatalf("load of a missing file should use defaults, got: %v", err)
	}
	s := st.State()
	for _, id := range DefaultDevicePlugins {
		if _, ok := s.EnabledDevicePlugins[id]; !ok {
			t.Errorf("expected default device plugin %s enabled", id)
		}
	}
}

func TestStoreLoadLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	legacy := `{
  "userPreferredApp": "alpha",
  "starredPlugins": {"alpha": ["network-inspector", "network-inspector"]}
}`
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatalf("failed to write legacy file: %v", err)
	}

	st := NewStore(path, testLog)
	if err := st.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	s := st.State()

	if s.UserPreferredApp != "alpha" {
		t.Errorf("expected preferred app carried, got %q", s.UserPreferredApp)
	}
	got := s.EnabledPlugins["alpha"]
	if len(got) != 1 || got[0] != "network-inspector" {
		t.Errorf("expected legacy starred plugins migrated and deduplicated, got %v", got)
	}
	if _, ok := s.EnabledDevicePlugins["device-logs"]; !ok {
		t.Error("expected default device plugins seeded for a legacy file")
	}
}

func TestStoreLoadFileWithComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	content := `{
  // hand-edited preferences
  "persistVersion": 2,
  "userPreferredDevice": "Pixel 8",
  "enabledPlugins": {},
  "enabledDevicePlugins": ["device-logs"],
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write state file: %v", err)
	}

	st := NewStore(path, testLog)
	if err := st.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if st.State().UserPreferredDevice != "Pixel 8" {
		t.Error("comments and trailing commas should be tolerated")
	}
}

func TestStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{nonsense"), 0644); err != nil {
		t.Fatalf("failed to write state file: %v", err)
	}

	st := NewStore(path, testLog)
	if err := st.Load(); err == nil {
		t.Fatal("expected error for corrupt state file, got nil")
	}
}

func TestStoreWithoutPath(t *testing.T) {
	st := NewStore("", testLog)
	if err := st.Load(); err != nil {
		t.Errorf("load without a path should be a no-op, got: %v", err)
	}
	if err := st.Save(); err != nil {
		t.Errorf("save without a path should be a no-op, got: %v", err)
	}
}
