package console

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spyglass-dev/spyglass/internal/device"
)

// Manager spawns and disposes device consoles, one per device serial.
type Manager struct {
	adbPath    string
	xcrunPath  string
	width      int
	height     int
	scrollback int

	mu       sync.Mutex
	byID     map[string]*Tracker
	bySerial map[string]*Tracker
}

// NewManager creates a console manager. adbPath and xcrunPath are the
// bridge binaries used to open device shells.
func NewManager(adbPath, xcrunPath string, width, height, scrollback int) *Manager {
	return &Manager{
		adbPath:    adbPath,
		xcrunPath:  xcrunPath,
		width:      width,
		height:     height,
		scrollback: scrollback,
		byID:       make(map[string]*Tracker),
		bySerial:   make(map[string]*Tracker),
	}
}

// shellCommand builds the bridge shell argv for a device.
func (m *Manager) shellCommand(serial string, os device.OS) ([]string, error) {
	switch os {
	case device.OSAndroid:
		return []string{m.adbPath, "-s", serial, "shell"}, nil
	case device.OSiOS:
		return []string{m.xcrunPath, "simctl", "spawn", serial, "/bin/sh", "-i"}, nil
	default:
		return nil, fmt.Errorf("no console support for %s devices", os)
	}
}

// Spawn opens a console for a device, or returns the existing one if
// the serial already has a live console.
func (m *Manager) Spawn(serial string, os device.OS) (*Tracker, error) {
	argv, err := m.shellCommand(serial, os)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.bySerial[serial]; ok {
		return existing, nil
	}

	consoleID := fmt.Sprintf("console-%s", uuid.New().String()[:8])
	t := NewTracker(consoleID, serial, argv, m.scrollback)
	t.Start()

	m.byID[consoleID] = t
	m.bySerial[serial] = t
	return t, nil
}

// Get returns the console with the given id, or nil.
func (m *Manager) Get(consoleID string) *Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[consoleID]
}

// GetBySerial returns the console attached to a device serial, or nil.
func (m *Manager) GetBySerial(serial string) *Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bySerial[serial]
}

// Dispose stops and removes a console.
func (m *Manager) Dispose(consoleID string) error {
	m.mu.Lock()
	t, ok := m.byID[consoleID]
	if ok {
		delete(m.byID, consoleID)
		delete(m.bySerial, t.serial)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("console not found: %s", consoleID)
	}
	t.Stop()
	return nil
}

// DisposeAll stops every console. Called at daemon shutdown.
func (m *Manager) DisposeAll() {
	m.mu.Lock()
	trackers := make([]*Tracker, 0, len(m.byID))
	for _, t := range m.byID {
		trackers = append(trackers, t)
	}
	m.byID = make(map[string]*Tracker)
	m.bySerial = make(map[string]*Tracker)
	m.mu.Unlock()

	for _, t := range trackers {
		t.Stop()
	}
}

// StartReaper periodically disposes consoles idle for longer than
// maxIdle. Returns a cancel function.
func (m *Manager) StartReaper(interval, maxIdle time.Duration) func() {
	stopChan := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.reapIdle(maxIdle)
			case <-stopChan:
				return
			}
		}
	}()
	return func() { close(stopChan) }
}

func (m *Manager) reapIdle(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*Tracker
	for id, t := range m.byID {
		last := t.LastActivity()
		if !last.IsZero() && last.Before(cutoff) {
			idle = append(idle, t)
			delete(m.byID, id)
			delete(m.bySerial, t.serial)
		}
	}
	m.mu.Unlock()

	for _, t := range idle {
		t.Stop()
	}
}

// Size returns the configured console dimensions.
func (m *Manager) Size() (cols, rows int) {
	return m.width, m.height
}
