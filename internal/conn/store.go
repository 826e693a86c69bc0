package conn

import (
	"log/slog"
	"sync"
)

// Store owns the current snapshot and serializes transitions. Readers
// get the snapshot pointer and can keep using it safely after later
// dispatches because snapshots are never mutated in place.
type Store struct {
	mu   sync.Mutex
	s    *State
	path string
	log  *slog.Logger
	rev  uint64
}

// NewStore creates a store with a fresh initial snapshot. path is
// where the durable subset is loaded from and saved to; empty disables
// persistence. A nil logger falls back to slog.Default().
func NewStore(path string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		s:    NewState(),
		path: path,
		log:  log,
	}
}

// Load replaces the durable subset of the current snapshot with the
// persisted one. Call before the first dispatch.
func (st *Store) Load() error {
	if st.path == "" {
		return nil
	}
	ps, err := loadPersisted(st.path)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = ps.apply(st.s)
	st.rev++
	return nil
}

// Save writes the durable subset of the current snapshot to disk.
func (st *Store) Save() error {
	if st.path == "" {
		return nil
	}
	st.mu.Lock()
	ps := persistedFrom(st.s)
	st.mu.Unlock()
	return savePersisted(st.path, ps)
}

// Dispatch applies an action to the current snapshot. The revision
// counter moves only when the snapshot actually changed, so pollers
// can detect motion without comparing states.
func (st *Store) Dispatch(action Action) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	next, err := Transition(st.s, action, st.log)
	if err != nil {
		return err
	}
	if next != st.s {
		st.s = next
		st.rev++
	}
	return nil
}

// State returns the current snapshot. Callers must treat it as
// read-only.
func (st *Store) State() *State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// Revision returns a counter that increments on every snapshot change.
func (st *Store) Revision() uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.rev
}
