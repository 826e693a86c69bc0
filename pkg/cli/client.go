package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client implements DaemonClient for communicating with the spyglass
// daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewDaemonClient creates a new daemon client.
func NewDaemonClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetDefaultURL returns the default daemon URL.
func GetDefaultURL() string {
	return "http://localhost:52342"
}

// IsRunning checks if the daemon is running.
func (c *Client) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/healthz", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// get fetches a JSON resource from the daemon into dst.
func (c *Client) get(path string, dst any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// post sends a JSON body to the daemon and decodes the response into
// dst when dst is non-nil.
func (c *Client) post(path string, reqBody, dst any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// GetVersion fetches the daemon version.
func (c *Client) GetVersion() (string, error) {
	var resp struct {
		Version string `json:"version"`
	}
	if err := c.get("/api/version", &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// GetState fetches the current connection state.
func (c *Client) GetState() (*State, error) {
	var st State
	if err := c.get("/api/state", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetPlugins fetches the plugin lists for the current selection.
func (c *Client) GetPlugins() (*Plugins, error) {
	var p Plugins
	if err := c.get("/api/plugins", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SelectDevice moves display focus to a device by serial.
func (c *Client) SelectDevice(serial string) error {
	return c.post("/api/select-device", map[string]string{"serial": serial}, nil)
}

// SelectClient moves display focus to a client by id.
func (c *Client) SelectClient(id string) error {
	return c.post("/api/select-client", map[string]string{"id": id}, nil)
}

// SelectPlugin moves focus to a plugin, optionally pinning the app and
// device.
func (c *Client) SelectPlugin(plugin, app, serial string) error {
	body := map[string]string{"plugin": plugin}
	if app != "" {
		body["app"] = app
	}
	if serial != "" {
		body["serial"] = serial
	}
	return c.post("/api/select-plugin", body, nil)
}

// EnablePlugin turns a plugin on for an app.
func (c *Client) EnablePlugin(plugin, app string) error {
	return c.post("/api/plugins/enable", map[string]string{"plugin": plugin, "app": app}, nil)
}

// DisablePlugin turns a plugin off for an app.
func (c *Client) DisablePlugin(plugin, app string) error {
	return c.post("/api/plugins/disable", map[string]string{"plugin": plugin, "app": app}, nil)
}

// EnableDevicePlugin turns a device plugin on across all devices.
func (c *Client) EnableDevicePlugin(plugin string) error {
	return c.post("/api/plugins/device/enable", map[string]string{"plugin": plugin}, nil)
}

// DisableDevicePlugin turns a device plugin off across all devices.
func (c *Client) DisableDevicePlugin(plugin string) error {
	return c.post("/api/plugins/device/disable", map[string]string{"plugin": plugin}, nil)
}

// Export writes an export bundle on the daemon side.
func (c *Client) Export(path, compress string) (*ExportResult, error) {
	body := map[string]string{}
	if path != "" {
		body["path"] = path
	}
	if compress != "" {
		body["compress"] = compress
	}
	var result ExportResult
	if err := c.post("/api/export", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
