package plugins

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatalf("failed to write manifest %s: %v", name, err)
	}
}

func TestLoadManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "network.yaml", "id: network-inspector\nversion: 1.0.0\nkind: client\nbundled: true\n")
	writeManifest(t, dir, "logs.yml", "id: device-logs\nversion: 1.0.0\nkind: device\n")
	writeManifest(t, dir, "secret.yaml", "id: secret-tool\nversion: 1.0.0\ngatekeeper: beta-flag\n")
	writeManifest(t, dir, "legacy.yaml", "id: legacy-tool\nversion: 1.0.0\n")
	writeManifest(t, dir, "broken.yaml", "id: [broken\n")
	writeManifest(t, dir, "notes.txt", "not a manifest\n")

	reg := NewRegistry(nil, []string{"legacy-tool"})
	if err := reg.LoadManifests([]string{dir}); err != nil {
		t.Fatalf("LoadManifests() error: %v", err)
	}
	col := reg.Collections()

	if col.ClientPlugins["network-inspector"] == nil {
		t.Error("expected network-inspector in client plugins")
	}
	if col.BundledPlugins["network-inspector"] == nil {
		t.Error("expected network-inspector in bundled plugins")
	}
	if col.DevicePlugins["device-logs"] == nil {
		t.Error("expected device-logs in device plugins")
	}
	if col.GatekeptPlugins["secret-tool"] == nil {
		t.Error("expected secret-tool gatekept when its flag is off")
	}
	if col.ClientPlugins["secret-tool"] != nil {
		t.Error("a gatekept plugin must not be active")
	}
	if col.DisabledPlugins["legacy-tool"] == nil {
		t.Error("expected legacy-tool in disabled plugins")
	}
	if col.LoadedPlugins["legacy-tool"] != nil {
		t.Error("a disabled plugin must not be loaded")
	}

	failed, ok := col.FailedPlugins["broken"]
	if !ok {
		t.Fatal("expected broken manifest in failed plugins keyed by file name")
	}
	if !strings.Contains(failed.Reason, "parse") {
		t.Errorf("expected a parse reason, got %q", failed.Reason)
	}
}

func TestLoadManifestsGatekeeperEnabled(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "secret.yaml", "id: secret-tool\nversion: 1.0.0\ngatekeeper: beta-flag\n")

	reg := NewRegistry([]string{"beta-flag"}, nil)
	if err := reg.LoadManifests([]string{dir}); err != nil {
		t.Fatalf("LoadManifests() error: %v", err)
	}

	col := reg.Collections()
	if col.ClientPlugins["secret-tool"] == nil {
		t.Error("a plugin behind an enabled gatekeeper should be active")
	}
	if col.GatekeptPlugins["secret-tool"] != nil {
		t.Error("a plugin behind an enabled gatekeeper must not be gatekept")
	}
}

func TestLoadManifestsMissingDir(t *testing.T) {
	reg := NewRegistry(nil, nil)
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	if err := reg.LoadManifests([]string{missing}); err != nil {
		t.Errorf("a missing directory should be skipped, got: %v", err)
	}
}

func TestLoadManifestsPreservesMarketplace(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "network.yaml", "id: network-inspector\nversion: 1.0.0\n")

	reg := NewRegistry(nil, nil)
	reg.SetMarketplace([]*Definition{{
		ID:          "flame-chart",
		Version:     "2.0.0",
		DownloadURL: "https://plugins.example.com/flame-chart.tgz",
	}})
	key := reg.StartDownload(reg.Collections().MarketplacePlugins["flame-chart"])

	if err := reg.LoadManifests([]string{dir}); err != nil {
		t.Fatalf("LoadManifests() error: %v", err)
	}

	col := reg.Collections()
	if col.MarketplacePlugins["flame-chart"] == nil {
		t.Error("a manifest rescan must keep marketplace entries")
	}
	if col.Downloads[key] == nil {
		t.Error("a manifest rescan must keep download state")
	}
}

func TestMarkFailed(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "network.yaml", "id: network-inspector\nversion: 1.0.0\n")

	reg := NewRegistry(nil, nil)
	if err := reg.LoadManifests([]string{dir}); err != nil {
		t.Fatalf("LoadManifests() error: %v", err)
	}

	reg.MarkFailed("network-inspector", "bad symbol")

	col := reg.Collections()
	if col.ClientPlugins["network-inspector"] != nil {
		t.Error("a failed plugin must leave the active collections")
	}
	failed, ok := col.FailedPlugins["network-inspector"]
	if !ok {
		t.Fatal("expected the plugin in failed plugins")
	}
	if failed.Reason != "bad symbol" {
		t.Errorf("expected reason kept, got %q", failed.Reason)
	}
	if failed.Definition.ID != "network-inspector" {
		t.Error("the original definition should be kept on failure")
	}
}

func TestDownloadLifecycle(t *testing.T) {
	reg := NewRegistry(nil, nil)
	def := &Definition{
		ID:          "flame-chart",
		Version:     "2.0.0",
		DownloadURL: "https://plugins.example.com/flame-chart.tgz",
	}

	key := reg.StartDownload(def)
	if key != def.DownloadURL {
		t.Errorf("expected the download URL as key, got %q", key)
	}
	if got := reg.Collections().Downloads[key].Status; got != DownloadQueued {
		t.Errorf("expected queued, got %q", got)
	}

	reg.SetDownloadStatus(key, DownloadInProgress, "")
	reg.SetDownloadStatus(key, DownloadFailed, "checksum mismatch")

	st := reg.Collections().Downloads[key]
	if st.Status != DownloadFailed {
		t.Errorf("expected failed, got %q", st.Status)
	}
	if st.Error != "checksum mismatch" {
		t.Errorf("expected error text kept, got %q", st.Error)
	}

	// Unknown keys are ignored.
	reg.SetDownloadStatus("bogus", DownloadDone, "")
	if len(reg.Collections().Downloads) != 1 {
		t.Error("unknown download keys must be ignored")
	}
}

func TestDownloadKeyWithoutURL(t *testing.T) {
	reg := NewRegistry(nil, nil)
	key := reg.StartDownload(&Definition{ID: "flame-chart", Version: "2.0.0"})
	if key != "flame-chart@2.0.0" {
		t.Errorf("expected id@version key, got %q", key)
	}
}

func TestCollectionsSnapshotStable(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "network.yaml", "id: network-inspector\nversion: 1.0.0\n")

	reg := NewRegistry(nil, nil)
	if err := reg.LoadManifests([]string{dir}); err != nil {
		t.Fatalf("LoadManifests() error: %v", err)
	}
	before := reg.Collections()

	reg.SetMarketplace([]*Definition{{
		ID:          "flame-chart",
		Version:     "2.0.0",
		DownloadURL: "https://plugins.example.com/flame-chart.tgz",
	}})

	if reg.Collections() == before {
		t.Error("a mutation must publish a new snapshot")
	}
	if before.MarketplacePlugins["flame-chart"] != nil {
		t.Error("an old snapshot must not see later mutations")
	}
}

func TestSortedIDs(t *testing.T) {
	ids := SortedIDs(map[string]*Definition{
		"b": {ID: "b"},
		"a": {ID: "a"},
		"c": {ID: "c"},
	})
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("expected sorted ids, got %v", ids)
	}
}
