package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"

	"github.com/spyglass-dev/spyglass/internal/conn"
	"github.com/spyglass-dev/spyglass/internal/device"
	"github.com/spyglass-dev/spyglass/internal/export"
	"github.com/spyglass-dev/spyglass/internal/plugins"
	"github.com/spyglass-dev/spyglass/internal/version"
)

// DeviceResponse is one device row in the state response.
type DeviceResponse struct {
	Serial    string `json:"serial"`
	Title     string `json:"title"`
	OS        string `json:"os"`
	Connected bool   `json:"connected"`
	Archived  bool   `json:"archived,omitempty"`
}

// ClientResponse is one client row in the state response.
type ClientResponse struct {
	ID        string `json:"id"`
	App       string `json:"app"`
	OS        string `json:"os"`
	DeviceID  string `json:"device_id"`
	Connected bool   `json:"connected"`
}

// SelectionResponse is the current display selection.
type SelectionResponse struct {
	DeviceSerial string `json:"device_serial,omitempty"`
	AppID        string `json:"app_id,omitempty"`
	Plugin       string `json:"plugin,omitempty"`
}

// StateResponse is the rendered connection snapshot.
type StateResponse struct {
	Devices              []DeviceResponse    `json:"devices"`
	Clients              []ClientResponse    `json:"clients"`
	Selection            SelectionResponse   `json:"selection"`
	PreferredDevice      string              `json:"preferred_device,omitempty"`
	PreferredApp         string              `json:"preferred_app,omitempty"`
	PreferredPlugin      string              `json:"preferred_plugin,omitempty"`
	EnabledPlugins       map[string][]string `json:"enabled_plugins"`
	EnabledDevicePlugins []string            `json:"enabled_device_plugins"`
	StaticView           *conn.StaticView    `json:"static_view,omitempty"`
	Revision             uint64              `json:"revision"`
}

// renderState builds the state response from the current snapshot.
func (s *Server) renderState() StateResponse {
	st := s.store.State()

	resp := StateResponse{
		Devices:         make([]DeviceResponse, 0, len(st.Devices)),
		Clients:         make([]ClientResponse, 0, len(st.Clients)),
		PreferredDevice: st.UserPreferredDevice,
		PreferredApp:    st.UserPreferredApp,
		PreferredPlugin: st.UserPreferredPlugin,
		EnabledPlugins:  make(map[string][]string, len(st.EnabledPlugins)),
		StaticView:      st.StaticView,
		Revision:        s.store.Revision(),
	}
	for _, d := range st.Devices {
		resp.Devices = append(resp.Devices, DeviceResponse{
			Serial:    d.Serial,
			Title:     d.Title,
			OS:        string(d.OS),
			Connected: d.Connected(),
			Archived:  d.Archived,
		})
	}
	for _, c := range st.Clients {
		resp.Clients = append(resp.Clients, ClientResponse{
			ID:        c.ID,
			App:       c.Query.App,
			OS:        string(c.Query.OS),
			DeviceID:  c.Query.DeviceID,
			Connected: c.Connected(),
		})
	}
	if st.SelectedDevice != nil {
		resp.Selection.DeviceSerial = st.SelectedDevice.Serial
	}
	resp.Selection.AppID = st.SelectedAppID
	resp.Selection.Plugin = st.SelectedPlugin

	for app, ids := range st.EnabledPlugins {
		resp.EnabledPlugins[app] = append([]string(nil), ids...)
	}
	for id := range st.EnabledDevicePlugins {
		resp.EnabledDevicePlugins = append(resp.EnabledDevicePlugins, id)
	}
	sort.Strings(resp.EnabledDevicePlugins)
	return resp
}

// handleHealthz returns a simple health check response.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleVersion returns the daemon version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"version": version.Version})
}

// handleState returns the rendered connection snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.renderState())
}

// PluginsResponse is the rendered plugin view for the selection.
type PluginsResponse struct {
	Lists        *conn.PluginLists                 `json:"lists"`
	ActivePlugin string                            `json:"active_plugin,omitempty"`
	Downloads    map[string]plugins.DownloadStatus `json:"downloads"`
	Updates      []*plugins.Definition             `json:"updates,omitempty"`
}

// handlePlugins returns the categorized plugin lists and download map.
func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := s.store.State()
	resp := PluginsResponse{
		Lists:     s.selectors.PluginLists(st),
		Downloads: s.selectors.PluginDownloadStatusMap(),
		Updates:   plugins.Updates(s.registry.Collections()),
	}
	if active := s.selectors.ActivePlugin(st); active != nil {
		resp.ActivePlugin = active.ID
	}
	writeJSON(w, resp)
}

// SelectDeviceRequest selects a device by serial.
type SelectDeviceRequest struct {
	Serial string `json:"serial"`
}

func (s *Server) handleSelectDevice(w http.ResponseWriter, r *http.Request) {
	var req SelectDeviceRequest
	if !decodePost(w, r, &req) {
		return
	}
	if req.Serial == "" {
		http.Error(w, "serial is required", http.StatusBadRequest)
		return
	}

	d := s.store.State().DeviceBySerial(req.Serial)
	if d == nil {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}
	s.dispatch(w, conn.SelectDevice{Device: d})
}

// SelectClientRequest selects a client by id.
type SelectClientRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleSelectClient(w http.ResponseWriter, r *http.Request) {
	var req SelectClientRequest
	if !decodePost(w, r, &req) {
		return
	}
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	if s.store.State().ClientByID(req.ID) == nil {
		http.Error(w, "client not found", http.StatusNotFound)
		return
	}
	s.dispatch(w, conn.SelectClient{ID: req.ID})
}

// SelectPluginRequest selects a plugin, optionally pinning the client
// and device.
type SelectPluginRequest struct {
	Plugin string `json:"plugin"`
	App    string `json:"app,omitempty"`
	Serial string `json:"serial,omitempty"`
}

func (s *Server) handleSelectPlugin(w http.ResponseWriter, r *http.Request) {
	var req SelectPluginRequest
	if !decodePost(w, r, &req) {
		return
	}
	if req.Plugin == "" {
		http.Error(w, "plugin is required", http.StatusBadRequest)
		return
	}

	if req.App != "" && s.store.State().ClientByID(req.App) == nil {
		http.Error(w, "client not found", http.StatusNotFound)
		return
	}

	action := conn.SelectPlugin{
		SelectedPlugin: req.Plugin,
		SelectedAppID:  req.App,
	}
	if req.Serial != "" {
		var dev *device.Device
		if dev = s.store.State().DeviceBySerial(req.Serial); dev == nil {
			http.Error(w, "device not found", http.StatusNotFound)
			return
		}
		action.SelectedDevice = dev
	}
	s.dispatch(w, action)
}

// PluginToggleRequest toggles a client plugin for an app.
type PluginToggleRequest struct {
	Plugin string `json:"plugin"`
	App    string `json:"app"`
}

func (s *Server) handlePluginEnable(enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PluginToggleRequest
		if !decodePost(w, r, &req) {
			return
		}
		if req.Plugin == "" || req.App == "" {
			http.Error(w, "plugin and app are required", http.StatusBadRequest)
			return
		}

		if enable {
			s.dispatch(w, conn.SetPluginEnabled{PluginID: req.Plugin, AppID: req.App})
		} else {
			s.dispatch(w, conn.SetPluginDisabled{PluginID: req.Plugin, AppID: req.App})
		}
	}
}

// DevicePluginToggleRequest toggles a device plugin across all devices.
type DevicePluginToggleRequest struct {
	Plugin string `json:"plugin"`
}

func (s *Server) handleDevicePluginEnable(enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DevicePluginToggleRequest
		if !decodePost(w, r, &req) {
			return
		}
		if req.Plugin == "" {
			http.Error(w, "plugin is required", http.StatusBadRequest)
			return
		}

		if enable {
			s.dispatch(w, conn.SetDevicePluginEnabled{PluginID: req.Plugin})
		} else {
			s.dispatch(w, conn.SetDevicePluginDisabled{PluginID: req.Plugin})
		}
	}
}

// ExportRequest writes an export bundle.
type ExportRequest struct {
	Path     string `json:"path,omitempty"`
	Compress string `json:"compress,omitempty"` // none | lz4 | zstd; auto when empty
}

// ExportResponse reports the written bundle.
type ExportResponse struct {
	BundleID string `json:"bundle_id"`
	Path     string `json:"path"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if !decodePost(w, r, &req) {
		return
	}

	var tag export.CompressionTag
	forced := false
	if req.Compress != "" {
		var ok bool
		if tag, ok = export.ParseCompressionTag(req.Compress); !ok {
			http.Error(w, fmt.Sprintf("unknown compression %q", req.Compress), http.StatusBadRequest)
			return
		}
		forced = true
	}

	b, err := export.Collect(s.store.State(), s.selectors, s.queue(), version.Version)
	if err != nil {
		if errors.Is(err, export.ErrNothingToExport) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, fmt.Sprintf("failed to collect export: %v", err), http.StatusInternalServerError)
		return
	}

	path := req.Path
	if path == "" {
		path = filepath.Join(s.config.GetExportDir(), b.ID+export.FileExtension)
	}

	if forced {
		err = export.WriteFileWith(path, b, tag)
	} else {
		err = export.WriteFile(path, b)
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to write bundle: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, ExportResponse{BundleID: b.ID, Path: path})
}

// dispatch applies an action and maps failures to 409.
func (s *Server) dispatch(w http.ResponseWriter, action conn.Action) {
	if err := s.store.Dispatch(action); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// decodePost enforces POST with a JSON body; writes the error response
// and returns false on failure.
func decodePost(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
