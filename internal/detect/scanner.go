package detect

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/spyglass-dev/spyglass/internal/conn"
	"github.com/spyglass-dev/spyglass/internal/device"
)

// MetroSerial is the stable serial of the synthetic metro bridge
// device. There is at most one.
const MetroSerial = "metro"

// Dispatcher is the slice of the connection store the scanner needs.
type Dispatcher interface {
	Dispatch(action conn.Action) error
	State() *conn.State
}

// Scanner periodically diffs bridge listings against the store
// snapshot: new serials are registered, serials that dropped out of
// the listing are flipped disconnected, and serials that came back are
// re-registered. The scanner owns device creation; the store never
// creates entities itself.
type Scanner struct {
	bridges  []Bridge
	store    Dispatcher
	interval time.Duration
	timeout  time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// NewScanner creates a scanner over the given bridges.
func NewScanner(bridges []Bridge, store Dispatcher, interval, timeout time.Duration) *Scanner {
	return &Scanner{
		bridges:  bridges,
		store:    store,
		interval: interval,
		timeout:  timeout,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// RegisterMetro registers the synthetic metro bridge device. Called
// once at daemon startup when metro tracking is enabled.
func (s *Scanner) RegisterMetro() error {
	if s.store.State().DeviceBySerial(MetroSerial) != nil {
		return nil
	}
	return s.store.Dispatch(conn.RegisterDevice{
		Device: device.New(MetroSerial, "Metro", device.OSMetro),
	})
}

// Start launches the scan loop in a background goroutine. The first
// scan runs immediately.
func (s *Scanner) Start() {
	go s.run()
}

// Stop terminates the scan loop and waits for it to exit. Safe to call
// multiple times.
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
	})
}

func (s *Scanner) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.ScanOnce()
	for {
		select {
		case <-ticker.C:
			s.ScanOnce()
		case <-s.stopCh:
			return
		}
	}
}

// ScanOnce runs one scan pass over all bridges. Bridge failures are
// logged and skipped so one missing bridge binary does not stop the
// others from being scanned.
func (s *Scanner) ScanOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	listed := make(map[string]Record)
	seen := make(map[device.OS]bool)
	for _, b := range s.bridges {
		records, err := b.List(ctx)
		if err != nil {
			log.Printf("[scan] %s listing failed: %v", b.Name(), err)
			continue
		}
		seen[b.OS()] = true
		for _, r := range records {
			listed[r.Serial] = r
		}
	}

	state := s.store.State()

	for serial, r := range listed {
		existing := state.DeviceBySerial(serial)
		switch {
		case existing == nil && r.Connected:
			if err := s.store.Dispatch(conn.RegisterDevice{Device: device.New(r.Serial, r.Title, r.OS)}); err != nil {
				log.Printf("[scan] failed to register %s: %v", serial, err)
			}
		case existing != nil && r.Connected && !existing.Connected():
			// Came back: replace the stale entry with a fresh one.
			if err := s.store.Dispatch(conn.RegisterDevice{Device: device.New(r.Serial, r.Title, r.OS)}); err != nil {
				log.Printf("[scan] failed to re-register %s: %v", serial, err)
			}
		case existing != nil && !r.Connected && existing.Connected():
			existing.SetConnected(false)
		}
	}

	// Devices that dropped out of their bridge listing entirely.
	for _, d := range state.Devices {
		if d.OS == device.OSMetro {
			continue
		}
		if !seen[d.OS] {
			// The bridge for this OS did not answer; leave its
			// devices alone rather than declaring them all gone.
			continue
		}
		if _, ok := listed[d.Serial]; !ok && d.Connected() {
			d.SetConnected(false)
		}
	}
}
