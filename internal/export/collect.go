package export

import (
	"errors"

	"github.com/spyglass-dev/spyglass/internal/conn"
)

// ErrNothingToExport is returned when no device is selected.
var ErrNothingToExport = errors.New("no device selected to export")

// Collect builds a bundle from the current connection state: the
// active device, the active client if any, and the exportable plugins
// with their queued messages drained into the bundle.
func Collect(s *conn.State, sel *conn.Selectors, queue conn.MessageQueue, appVersion string) (*Bundle, error) {
	dev := sel.ActiveDevice(s)
	if dev == nil {
		return nil, ErrNothingToExport
	}

	b := NewBundle(appVersion)
	b.Device = DeviceInfo{
		Serial:   dev.Serial,
		Title:    dev.Title,
		OS:       string(dev.OS),
		Archived: dev.Archived,
	}

	client := sel.ActiveClient(s)
	if client != nil {
		b.Client = &ClientInfo{
			ID:       client.ID,
			App:      client.Query.App,
			OS:       string(client.Query.OS),
			DeviceID: client.Query.DeviceID,
		}
	}

	for _, def := range sel.ExportablePlugins(s, queue) {
		ps := PluginState{ID: def.ID, Title: def.Title, Version: def.Version}
		if client != nil {
			for _, m := range queue[conn.QueueKey(client.ID, def.ID)] {
				ps.Messages = append(ps.Messages, PluginMessage{Method: m.Method, Params: m.Params})
			}
		}
		b.Plugins = append(b.Plugins, ps)
	}
	return b, nil
}
