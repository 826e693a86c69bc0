package main

import (
	"fmt"

	"github.com/spyglass-dev/spyglass/pkg/cli"
)

// MockDaemonClient is a mock implementation of DaemonClient for testing.
type MockDaemonClient struct {
	isRunning bool
	state     *cli.State
	plugins   *cli.Plugins
	exported  *cli.ExportResult

	getStateErr   error
	getPluginsErr error
	exportErr     error
	selectErr     error
	toggleErr     error

	// recorded calls
	selectedDevice string
	selectedClient string
	exportPath     string
	exportCompress string
	toggleCalls    []string
}

func (m *MockDaemonClient) IsRunning() bool {
	return m.isRunning
}

func (m *MockDaemonClient) GetVersion() (string, error) {
	return "test", nil
}

func (m *MockDaemonClient) GetState() (*cli.State, error) {
	if m.getStateErr != nil {
		return nil, m.getStateErr
	}
	if m.state == nil {
		return &cli.State{}, nil
	}
	return m.state, nil
}

func (m *MockDaemonClient) GetPlugins() (*cli.Plugins, error) {
	if m.getPluginsErr != nil {
		return nil, m.getPluginsErr
	}
	if m.plugins == nil {
		return &cli.Plugins{Lists: &cli.PluginLists{}}, nil
	}
	return m.plugins, nil
}

func (m *MockDaemonClient) SelectDevice(serial string) error {
	if m.selectErr != nil {
		return m.selectErr
	}
	if m.state != nil {
		found := false
		for _, d := range m.state.Devices {
			if d.Serial == serial {
				found = true
			}
		}
		if !found {
			return fmt.Errorf("daemon returned status 404: device not found")
		}
	}
	m.selectedDevice = serial
	return nil
}

func (m *MockDaemonClient) SelectClient(id string) error {
	if m.selectErr != nil {
		return m.selectErr
	}
	m.selectedClient = id
	return nil
}

func (m *MockDaemonClient) SelectPlugin(plugin, app, serial string) error {
	return m.selectErr
}

func (m *MockDaemonClient) EnablePlugin(plugin, app string) error {
	m.toggleCalls = append(m.toggleCalls, "enable:"+plugin+":"+app)
	return m.toggleErr
}

func (m *MockDaemonClient) DisablePlugin(plugin, app string) error {
	m.toggleCalls = append(m.toggleCalls, "disable:"+plugin+":"+app)
	return m.toggleErr
}

func (m *MockDaemonClient) EnableDevicePlugin(plugin string) error {
	m.toggleCalls = append(m.toggleCalls, "enable-device:"+plugin)
	return m.toggleErr
}

func (m *MockDaemonClient) DisableDevicePlugin(plugin string) error {
	m.toggleCalls = append(m.toggleCalls, "disable-device:"+plugin)
	return m.toggleErr
}

func (m *MockDaemonClient) Export(path, compress string) (*cli.ExportResult, error) {
	if m.exportErr != nil {
		return nil, m.exportErr
	}
	m.exportPath = path
	m.exportCompress = compress
	if m.exported != nil {
		return m.exported, nil
	}
	return &cli.ExportResult{BundleID: "export-test1234", Path: "/tmp/export-test1234.spy"}, nil
}
