package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetDefaultURL(t *testing.T) {
	url := GetDefaultURL()
	if url != "http://localhost:52342" {
		t.Errorf("got %q, want %q", url, "http://localhost:52342")
	}
}

func TestNewDaemonClient(t *testing.T) {
	baseURL := "http://example.com:8080"
	client := NewDaemonClient(baseURL)

	if client.baseURL != baseURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, baseURL)
	}

	if client.httpClient == nil {
		t.Error("httpClient should not be nil")
	}

	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", client.httpClient.Timeout)
	}
}

func TestClient_IsRunning(t *testing.T) {
	t.Run("returns true when healthz returns 200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/healthz" {
				t.Errorf("path = %q, want /api/healthz", r.URL.Path)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewDaemonClient(server.URL)
		if !client.IsRunning() {
			t.Error("expected true")
		}
	})

	t.Run("returns false when healthz returns non-200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewDaemonClient(server.URL)
		if client.IsRunning() {
			t.Error("expected false")
		}
	})

	t.Run("returns false when server is not reachable", func(t *testing.T) {
		client := NewDaemonClient("http://localhost:1")
		if client.IsRunning() {
			t.Error("expected false")
		}
	})
}

func TestClient_GetVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			t.Errorf("path = %q, want /api/version", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"version": "1.2.3"})
	}))
	defer server.Close()

	client := NewDaemonClient(server.URL)
	version, err := client.GetVersion()
	if err != nil {
		t.Fatalf("GetVersion failed: %v", err)
	}
	if version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", version)
	}
}

func TestClient_GetState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/state" {
			t.Errorf("path = %q, want /api/state", r.URL.Path)
		}
		json.NewEncoder(w).Encode(State{
			Devices: []Device{{Serial: "emu-1", Title: "Pixel 7", OS: "Android", Connected: true}},
			Selection: Selection{
				DeviceSerial: "emu-1",
			},
			Revision: 7,
		})
	}))
	defer server.Close()

	client := NewDaemonClient(server.URL)
	st, err := client.GetState()
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if len(st.Devices) != 1 || st.Devices[0].Serial != "emu-1" {
		t.Errorf("devices = %+v, want one entry emu-1", st.Devices)
	}
	if st.Selection.DeviceSerial != "emu-1" {
		t.Errorf("selection = %+v", st.Selection)
	}
	if st.Revision != 7 {
		t.Errorf("revision = %d, want 7", st.Revision)
	}
}

func TestClient_SelectDevice(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/select-device" {
			t.Errorf("path = %q, want /api/select-device", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := NewDaemonClient(server.URL)
	if err := client.SelectDevice("emu-1"); err != nil {
		t.Fatalf("SelectDevice failed: %v", err)
	}
	if gotBody["serial"] != "emu-1" {
		t.Errorf("request body = %v, want serial emu-1", gotBody)
	}
}

func TestClient_SelectDeviceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "device not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewDaemonClient(server.URL)
	err := client.SelectDevice("ghost")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 404") {
		t.Errorf("error = %q, want status 404 mention", err)
	}
	if !strings.Contains(err.Error(), "device not found") {
		t.Errorf("error = %q, want daemon message included", err)
	}
}

func TestClient_Export(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/export" {
			t.Errorf("path = %q, want /api/export", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(ExportResult{BundleID: "export-abc12345", Path: "/tmp/out.spy"})
	}))
	defer server.Close()

	client := NewDaemonClient(server.URL)
	result, err := client.Export("/tmp/out.spy", "zstd")
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.BundleID != "export-abc12345" {
		t.Errorf("bundle id = %q", result.BundleID)
	}
	if gotBody["compress"] != "zstd" || gotBody["path"] != "/tmp/out.spy" {
		t.Errorf("request body = %v", gotBody)
	}
}

func TestClient_ExportOmitsEmptyFields(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(ExportResult{BundleID: "export-abc12345", Path: "/home/u/.spyglass/exports/export-abc12345.spy"})
	}))
	defer server.Close()

	client := NewDaemonClient(server.URL)
	if _, err := client.Export("", ""); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if _, ok := gotBody["path"]; ok {
		t.Error("empty path should be omitted from the request")
	}
	if _, ok := gotBody["compress"]; ok {
		t.Error("empty compress should be omitted from the request")
	}
}

func TestClient_PluginToggles(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := NewDaemonClient(server.URL)
	if err := client.EnablePlugin("logs", "shop"); err != nil {
		t.Fatalf("EnablePlugin failed: %v", err)
	}
	if err := client.DisablePlugin("logs", "shop"); err != nil {
		t.Fatalf("DisablePlugin failed: %v", err)
	}
	if err := client.EnableDevicePlugin("battery"); err != nil {
		t.Fatalf("EnableDevicePlugin failed: %v", err)
	}
	if err := client.DisableDevicePlugin("battery"); err != nil {
		t.Fatalf("DisableDevicePlugin failed: %v", err)
	}

	want := []string{
		"/api/plugins/enable",
		"/api/plugins/disable",
		"/api/plugins/device/enable",
		"/api/plugins/device/disable",
	}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}
