package conn

import (
	"github.com/spyglass-dev/spyglass/internal/device"
)

// Action is the closed set of transitions the connection store
// understands. Every variant is handled exhaustively in Transition;
// anything else leaves the snapshot untouched.
type Action interface {
	isAction()
}

// RegisterDevice announces a device discovered by a bridge. Registering
// a serial whose existing entry still reports connected is a caller
// lifecycle bug and fails the transition.
type RegisterDevice struct {
	Device *device.Device
}

// SelectDevice moves display focus to a device (or clears it with nil).
type SelectDevice struct {
	Device *device.Device
}

// SelectPlugin moves focus to a plugin, optionally pinning the client
// and device it should render against. Unset fields fall back to the
// current selection.
type SelectPlugin struct {
	SelectedPlugin  string
	SelectedAppID   string
	SelectedDevice  *device.Device
	DeepLinkPayload any
}

// NewClient announces a completed app handshake.
type NewClient struct {
	Client *device.Client
}

// SelectClient moves display focus to a connected client by id.
type SelectClient struct {
	ID string
}

// ClientRemoved drops a client whose connection went away.
type ClientRemoved struct {
	ID string
}

// StartClientSetup records a connection that is still mid-handshake.
type StartClientSetup struct {
	Client device.UninitializedClient
}

// SetPluginEnabled turns a plugin on for an app.
type SetPluginEnabled struct {
	PluginID string
	AppID    string
}

// SetPluginDisabled turns a plugin off for an app.
type SetPluginDisabled struct {
	PluginID string
	AppID    string
}

// SetDevicePluginEnabled turns a device plugin on across all devices.
type SetDevicePluginEnabled struct {
	PluginID string
}

// SetDevicePluginDisabled turns a device plugin off across all devices.
type SetDevicePluginDisabled struct {
	PluginID string
}

// AppPluginListChanged signals that plugin availability changed for
// reasons outside this store (a manifest appeared, a bundle loaded).
// It carries no data; it exists to invalidate derived plugin lists.
type AppPluginListChanged struct{}

// SetStaticView replaces normal plugin display with a full-screen
// override. Build it with NewSetStaticView; the view must not be nil.
type SetStaticView struct {
	View            *StaticView
	DeepLinkPayload any
}

// NewSetStaticView builds a SetStaticView action. A nil view is a
// caller error and panics here rather than surfacing later in
// Transition.
func NewSetStaticView(view *StaticView, deepLinkPayload any) SetStaticView {
	if view == nil {
		panic("conn: SetStaticView requires a view")
	}
	return SetStaticView{View: view, DeepLinkPayload: deepLinkPayload}
}

func (RegisterDevice) isAction()          {}
func (SelectDevice) isAction()            {}
func (SelectPlugin) isAction()            {}
func (NewClient) isAction()               {}
func (SelectClient) isAction()            {}
func (ClientRemoved) isAction()           {}
func (StartClientSetup) isAction()        {}
func (SetPluginEnabled) isAction()        {}
func (SetPluginDisabled) isAction()       {}
func (SetDevicePluginEnabled) isAction()  {}
func (SetDevicePluginDisabled) isAction() {}
func (AppPluginListChanged) isAction()    {}
func (SetStaticView) isAction()           {}
