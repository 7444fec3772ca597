package cache

import (
	"sync"

	"github.com/signview/signview/logger"
)

// Store is the process-lifetime collection of cells, persisted as one
// snapshot blob to durable storage. The store lock guards create-if-absent
// and persist; it is distinct from each cell's own lock, and the store
// never takes a cell lock while holding its own.
type Store struct {
	log     logger.Logger
	backend Backend

	mu     sync.Mutex
	cells  map[string]*Cell
	states map[string]cellState
	loaded bool
}

// NewStore returns a Store backed by the given persistence backend. The
// snapshot is loaded lazily on first access.
func NewStore(backend Backend, log logger.Logger) *Store {
	return &Store{
		log:     log.WithPrefix("[cache]"),
		backend: backend,
		cells:   make(map[string]*Cell),
		states:  make(map[string]cellState),
	}
}

func (s *Store) loadLocked() error {
	if s.loaded {
		return nil
	}
	data, found, err := s.backend.Load()
	if err != nil {
		return markPersist(err, "load")
	}
	if found {
		states, err := decodeSnapshot(data)
		if err != nil {
			// An unreadable snapshot is recoverable: start empty and let
			// the refresh tasks rebuild it.
			s.log.Warn("discarding unreadable snapshot: %v", err)
			states = make(map[string]cellState)
		}
		s.states = states
		for key, state := range states {
			cell := newCell(key, s)
			cell.raw = state.Value
			cell.lastRefresh = state.LastRefresh
			cell.interval = state.Interval
			s.cells[key] = cell
		}
		s.log.Debug("loaded %d cells from snapshot", len(s.cells))
	}
	s.loaded = true
	return nil
}

// GetOrCreate returns the cell registered for key, constructing and
// registering an empty one if absent. Idempotent.
func (s *Store) GetOrCreate(key string) (*Cell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	if cell, ok := s.cells[key]; ok {
		return cell, nil
	}
	cell := newCell(key, s)
	s.cells[key] = cell
	return cell, nil
}

// saveCell records the latest state of one cell and rewrites the whole
// snapshot. Called from Cell.Update with that cell's lock held; the store
// lock serializes concurrent updates from different cells at the
// persistence layer.
func (s *Store) saveCell(key string, state cellState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = state
	return s.persistLocked(key)
}

func (s *Store) persistLocked(key string) error {
	data, err := encodeSnapshot(s.states)
	if err != nil {
		return markPersist(err, key)
	}
	if err := s.backend.Save(data); err != nil {
		return markPersist(err, key)
	}
	return nil
}

// Persist rewrites the snapshot from the most recently recorded cell
// states.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked("store")
}

// Close releases the persistence backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
