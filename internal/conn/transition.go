package conn

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spyglass-dev/spyglass/internal/device"
)

// ErrDeviceConflict is returned when a device registers under a serial
// whose existing entry still reports itself connected. That means the
// transport never tore down the old connection, which is a lifecycle
// bug upstream, so it is not absorbed here.
var ErrDeviceConflict = errors.New("device with the same serial is still connected")

// nonDefaultDeviceOS lists the synthetic or non-interactive platforms
// that never become the sticky default device.
var nonDefaultDeviceOS = map[device.OS]bool{
	device.OSMetro:   true,
	device.OSWindows: true,
	device.OSMacOS:   true,
}

// CanBeDefaultDevice reports whether a device is eligible to be stored
// as the user's preferred device.
func CanBeDefaultDevice(d *device.Device) bool {
	return !nonDefaultDeviceOS[d.OS]
}

// Transition applies one action to a snapshot and returns the next
// snapshot. It is total: unknown actions and no-op conditions return
// the input unchanged. The only failure is ErrDeviceConflict, in which
// case the input snapshot is returned as-is. Recoverable oddities are
// reported through log and execution continues.
func Transition(state *State, action Action, log *slog.Logger) (*State, error) {
	if log == nil {
		log = slog.Default()
	}

	switch a := action.(type) {
	case RegisterDevice:
		return applyRegisterDevice(state, a)
	case SelectDevice:
		return applySelectDevice(state, a), nil
	case SelectPlugin:
		return applySelectPlugin(state, a, log), nil
	case NewClient:
		return applyNewClient(state, a, log), nil
	case SelectClient:
		return applySelectClient(state, a), nil
	case ClientRemoved:
		return applyClientRemoved(state, a), nil
	case StartClientSetup:
		return applyStartClientSetup(state, a), nil
	case SetPluginEnabled:
		return applySetPluginEnabled(state, a), nil
	case SetPluginDisabled:
		return applySetPluginDisabled(state, a), nil
	case SetDevicePluginEnabled:
		return applySetDevicePluginEnabled(state, a), nil
	case SetDevicePluginDisabled:
		return applySetDevicePluginDisabled(state, a), nil
	case AppPluginListChanged:
		next := state.shallow()
		next.SelectedAppPluginListRevision++
		return next, nil
	case SetStaticView:
		next := state.shallow()
		next.StaticView = a.View
		next.DeepLinkPayload = a.DeepLinkPayload
		return next, nil
	default:
		return state, nil
	}
}

func applyRegisterDevice(s *State, a RegisterDevice) (*State, error) {
	d := a.Device

	devices := make([]*device.Device, len(s.Devices))
	copy(devices, s.Devices)
	replaced := false
	for i, existing := range devices {
		if existing.Serial != d.Serial {
			continue
		}
		if existing.Connected() {
			return s, fmt.Errorf("%w: %s", ErrDeviceConflict, d.Serial)
		}
		// Replace in place so the device keeps its position in lists.
		devices[i] = d
		replaced = true
		break
	}
	if !replaced {
		devices = append(devices, d)
	}

	next := s.shallow()
	next.Devices = devices

	selectNew := s.SelectedDevice == nil ||
		!s.SelectedDevice.Connected() ||
		s.UserPreferredDevice == d.Title
	if !selectNew {
		return next, nil
	}

	next.SelectedDevice = d
	next.SelectedAppID = ""
	if c := s.clientForDevice(d, s.UserPreferredApp); c != nil {
		next.SelectedAppID = c.ID
	}
	return next, nil
}

func applySelectDevice(s *State, a SelectDevice) *State {
	next := s.shallow()
	next.StaticView = nil
	next.SelectedDevice = a.Device
	next.SelectedAppID = ""
	if a.Device != nil {
		next.UserPreferredDevice = a.Device.Title
	}
	return next
}

func applySelectPlugin(s *State, a SelectPlugin, log *slog.Logger) *State {
	target := a.SelectedDevice
	appID := a.SelectedAppID
	if target == nil && appID != "" {
		if c := s.ClientByID(appID); c != nil {
			target = c.Device
		}
	}
	if a.SelectedDevice == nil && a.SelectedAppID == "" {
		// Nothing pinned: stay with the current selection.
		appID = s.SelectedAppID
		target = s.SelectedDevice
		if target == nil {
			if c := s.ClientByID(appID); c != nil {
				target = c.Device
			}
		}
	}
	if target == nil {
		log.Warn("cannot select plugin before a device is selected",
			"plugin", a.SelectedPlugin)
		return s
	}

	next := s.shallow()
	next.StaticView = nil
	next.SelectedDevice = target
	next.SelectedAppID = appID
	next.SelectedPlugin = a.SelectedPlugin
	next.UserPreferredPlugin = a.SelectedPlugin
	next.DeepLinkPayload = a.DeepLinkPayload
	if CanBeDefaultDevice(target) {
		next.UserPreferredDevice = target.Title
	}
	if c := s.ClientByID(appID); c != nil {
		next.UserPreferredApp = c.Query.App
	}
	return next
}

func applyNewClient(s *State, a NewClient, log *slog.Logger) *State {
	c := a.Client

	clients := make([]*device.Client, 0, len(s.Clients)+1)
	for _, existing := range s.Clients {
		if existing.ID == c.ID {
			// The transport should have cleaned up the stale connection
			// before handshaking again; drop it and keep the new one.
			log.Error("new connection for a client that never disconnected, dropping the stale entry",
				"client", c.ID)
			continue
		}
		clients = append(clients, existing)
	}
	clients = append(clients, c)

	next := s.shallow()
	next.Clients = clients

	selected := s.ClientByID(s.SelectedAppID)
	if s.SelectedAppID == "" ||
		selected == nil || !selected.Connected() ||
		s.UserPreferredApp == c.Query.App {
		next.SelectedAppID = c.ID
	}

	if len(s.UninitializedClients) > 0 {
		pending := make([]device.UninitializedClient, 0, len(s.UninitializedClients))
		for _, u := range s.UninitializedClients {
			if u.AppName == c.Query.App && c.Device != nil && u.DeviceName == c.Device.Title {
				continue // handshake completed
			}
			pending = append(pending, u)
		}
		next.UninitializedClients = pending
	}
	return next
}

func applySelectClient(s *State, a SelectClient) *State {
	c := s.ClientByID(a.ID)
	if c == nil {
		return s
	}

	next := s.shallow()
	next.SelectedAppID = c.ID
	next.SelectedDevice = c.Device
	next.UserPreferredDevice = c.Device.Title
	next.UserPreferredApp = c.Query.App

	switch {
	case s.SelectedPlugin != "" && c.SupportsPlugin(s.SelectedPlugin):
		// keep the current plugin
	case s.UserPreferredPlugin != "" && c.SupportsPlugin(s.UserPreferredPlugin):
		next.SelectedPlugin = s.UserPreferredPlugin
	default:
		next.SelectedPlugin = ""
	}
	return next
}

func applyClientRemoved(s *State, a ClientRemoved) *State {
	found := false
	clients := make([]*device.Client, 0, len(s.Clients))
	for _, c := range s.Clients {
		if c.ID == a.ID {
			found = true
			continue
		}
		clients = append(clients, c)
	}
	if !found {
		return s
	}

	next := s.shallow()
	next.Clients = clients
	if s.SelectedAppID == a.ID {
		// Selection is cleared, never reassigned behind the user's back.
		next.SelectedAppID = ""
	}
	return next
}

func applyStartClientSetup(s *State, a StartClientSetup) *State {
	for _, existing := range s.UninitializedClients {
		if existing == a.Client {
			return s
		}
	}
	pending := make([]device.UninitializedClient, len(s.UninitializedClients), len(s.UninitializedClients)+1)
	copy(pending, s.UninitializedClients)

	next := s.shallow()
	next.UninitializedClients = append(pending, a.Client)
	return next
}

func applySetPluginEnabled(s *State, a SetPluginEnabled) *State {
	current := s.EnabledPlugins[a.AppID]
	for _, id := range current {
		if id == a.PluginID {
			return s
		}
	}

	enabled := make([]string, len(current), len(current)+1)
	copy(enabled, current)
	enabled = append(enabled, a.PluginID)

	next := s.shallow()
	next.EnabledPlugins = copyEnabledPlugins(s.EnabledPlugins)
	next.EnabledPlugins[a.AppID] = enabled
	return next
}

func applySetPluginDisabled(s *State, a SetPluginDisabled) *State {
	current := s.EnabledPlugins[a.AppID]
	found := false
	for _, id := range current {
		if id == a.PluginID {
			found = true
			break
		}
	}
	if !found {
		return s
	}

	enabled := make([]string, 0, len(current)-1)
	for _, id := range current {
		if id != a.PluginID {
			enabled = append(enabled, id)
		}
	}

	next := s.shallow()
	next.EnabledPlugins = copyEnabledPlugins(s.EnabledPlugins)
	next.EnabledPlugins[a.AppID] = enabled
	return next
}

func applySetDevicePluginEnabled(s *State, a SetDevicePluginEnabled) *State {
	if _, ok := s.EnabledDevicePlugins[a.PluginID]; ok {
		return s
	}
	next := s.shallow()
	next.EnabledDevicePlugins = copyDevicePluginSet(s.EnabledDevicePlugins)
	next.EnabledDevicePlugins[a.PluginID] = struct{}{}
	return next
}

func applySetDevicePluginDisabled(s *State, a SetDevicePluginDisabled) *State {
	if _, ok := s.EnabledDevicePlugins[a.PluginID]; !ok {
		return s
	}
	next := s.shallow()
	next.EnabledDevicePlugins = copyDevicePluginSet(s.EnabledDevicePlugins)
	delete(next.EnabledDevicePlugins, a.PluginID)
	return next
}
