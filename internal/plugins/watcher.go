package plugins

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches plugin manifest directories for changes and triggers
// a debounced registry reload. onChange runs after each reload so the
// owner can invalidate derived plugin lists.
type Watcher struct {
	watcher  *fsnotify.Watcher
	registry *Registry
	dirs     []string
	debounce time.Duration
	onChange func()

	// debounceTimers holds per-directory debounce timers.
	debounceTimers   map[string]*time.Timer
	debounceTimersMu sync.Mutex

	// stopCh signals the event loop to exit.
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a manifest watcher over the given directories.
// Returns nil if no directories are configured or the watcher cannot
// be created.
func NewWatcher(registry *Registry, dirs []string, debounce time.Duration, onChange func()) *Watcher {
	if len(dirs) == 0 {
		log.Printf("[watch] no plugin directories configured")
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[watch] failed to create watcher: %v", err)
		return nil
	}

	return &Watcher{
		watcher:        w,
		registry:       registry,
		dirs:           dirs,
		debounce:       debounce,
		onChange:       onChange,
		debounceTimers: make(map[string]*time.Timer),
		stopCh:         make(chan struct{}),
	}
}

// Start adds the directory watches and launches the event loop.
// Directories that do not exist yet are skipped silently; they are
// picked up on the next daemon restart.
func (w *Watcher) Start() {
	watched := 0
	for _, dir := range w.dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			log.Printf("[watch] failed to watch %s: %v", dir, err)
			continue
		}
		watched++
	}
	go w.eventLoop()
	log.Printf("[watch] watching %d plugin directories", watched)
}

// Stop closes the watcher and cancels all pending timers.
// Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()

		w.debounceTimersMu.Lock()
		for _, t := range w.debounceTimers {
			t.Stop()
		}
		w.debounceTimersMu.Unlock()
	})
}

// eventLoop processes fsnotify events and errors.
func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[watch] error: %v", err)
		case <-w.stopCh:
			return
		}
	}
}

// handleEvent resets the debounce timer for manifest file events.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".yaml") && !strings.HasSuffix(event.Name, ".yml") {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	w.resetDebounce(event.Name)
}

// resetDebounce resets or creates the debounce timer for the directory
// containing the changed manifest. Editors produce bursts of events per
// save; the reload runs once the directory settles.
func (w *Watcher) resetDebounce(path string) {
	w.debounceTimersMu.Lock()
	defer w.debounceTimersMu.Unlock()

	dir := filepath.Dir(path)
	if t, ok := w.debounceTimers[dir]; ok {
		t.Reset(w.debounce)
		return
	}

	w.debounceTimers[dir] = time.AfterFunc(w.debounce, func() {
		w.reload()
	})
}

// reload re-scans all configured directories and notifies the owner.
func (w *Watcher) reload() {
	if err := w.registry.LoadManifests(w.dirs); err != nil {
		log.Printf("[watch] reload failed: %v", err)
		return
	}
	if w.onChange != nil {
		w.onChange()
	}
}
