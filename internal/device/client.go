package device

import (
	"fmt"
	"sort"
	"sync"
)

// Query identifies a client connection request: which app, speaking
// which OS dialect, from which device.
type Query struct {
	App      string `json:"app"`
	OS       OS     `json:"os"`
	DeviceID string `json:"device_id"`
}

// BuildClientID derives the stable client id for a query. Two
// connections with the same query are the same client.
func BuildClientID(q Query) string {
	return fmt.Sprintf("%s#%s#%s", q.App, q.OS, q.DeviceID)
}

// Client is one inspectable application process connected from a
// device. Like devices, clients are held by reference in the
// connection store.
type Client struct {
	ID     string
	Query  Query
	Device *Device

	mu        sync.RWMutex
	connected bool
	plugins   map[string]struct{} // plugin ids the app advertised during handshake
}

// NewClient creates a connected client for the given query. The id is
// derived from the query; plugins is the set the app advertised.
func NewClient(q Query, dev *Device, plugins []string) *Client {
	set := make(map[string]struct{}, len(plugins))
	for _, id := range plugins {
		set[id] = struct{}{}
	}
	return &Client{
		ID:        BuildClientID(q),
		Query:     q,
		Device:    dev,
		connected: true,
		plugins:   set,
	}
}

// Connected reports whether the app connection is still alive.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetConnected flips the live-connection flag.
func (c *Client) SetConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = connected
}

// SupportsPlugin reports whether the app advertised the given plugin.
func (c *Client) SupportsPlugin(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.plugins[id]
	return ok
}

// Plugins returns the advertised plugin ids, sorted.
func (c *Client) Plugins() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.plugins))
	for id := range c.plugins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UninitializedClient is a placeholder for a connection that has not
// finished its handshake yet, identified by the device name and app
// name the transport layer knows at that point.
type UninitializedClient struct {
	DeviceName string `json:"device_name"`
	AppName    string `json:"app_name"`
}
