package store

import (
	"context"
	"fmt"
	"sync"

	logger "github.com/sirupsen/logrus"

	"tradeclient/src/model"
)

// Persister is the session-scoped key-value store the positions survive
// reloads in. repository.SessionRepository satisfies it.
type Persister interface {
	PutJSON(ctx context.Context, key string, value any) error
	GetJSON(ctx context.Context, key string, out any) (bool, error)
}

// PositionStore is the single client-side source of truth for what is
// currently open. A position exists here if and only if it is open and
// unsettled. Every mutation is written through to the session store.
type PositionStore struct {
	mu        sync.RWMutex
	positions map[string]model.SimPosition
	order     []string
	maxOpen   int
	repo      Persister

	// persistMu is taken before mu for every mutation and held across the
	// write-through, so snapshots reach the session store in mutation order.
	// Without it a slow persist of an older snapshot could land last and a
	// reload would resurrect an already-settled position.
	persistMu sync.Mutex
}

// NewPositionStore limits concurrency to maxOpen open positions when
// maxOpen > 0 (single-position trading modes); zero means unlimited.
func NewPositionStore(repo Persister, maxOpen int) *PositionStore {
	return &PositionStore{
		positions: make(map[string]model.SimPosition),
		maxOpen:   maxOpen,
		repo:      repo,
	}
}

// Load reconstructs in-flight positions persisted by a previous page of
// this session. Corrupt or missing data starts empty.
func (s *PositionStore) Load(ctx context.Context) error {
	var saved []model.SimPosition
	found, err := s.repo.GetJSON(ctx, model.SessionKeyPositions, &saved)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}
	if !found {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range saved {
		if p.ID == "" {
			continue
		}
		if _, dup := s.positions[p.ID]; dup {
			continue
		}
		s.positions[p.ID] = p
		s.order = append(s.order, p.ID)
	}

	logger.WithField("count", len(s.positions)).Info("recovered open positions from session store")
	return nil
}

// Open admits a new position, rejecting when the mode's concurrency limit is
// already reached.
func (s *PositionStore) Open(ctx context.Context, p model.SimPosition) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if s.maxOpen > 0 && len(s.positions) >= s.maxOpen {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d position(s) already open", model.ErrInvalidPosition, s.maxOpen)
	}
	if _, dup := s.positions[p.ID]; dup {
		s.mu.Unlock()
		return fmt.Errorf("%w: duplicate id %s", model.ErrInvalidPosition, p.ID)
	}
	s.positions[p.ID] = p
	s.order = append(s.order, p.ID)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	return nil
}

// Remove takes the position out of the store and persists the removal.
// Returns false when the id is unknown (already settled or never open).
func (s *PositionStore) Remove(ctx context.Context, id string) (model.SimPosition, bool) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	p, ok := s.positions[id]
	if !ok {
		s.mu.Unlock()
		return model.SimPosition{}, false
	}
	delete(s.positions, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	return p, true
}

func (s *PositionStore) Find(id string) (model.SimPosition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	return p, ok
}

// List returns open positions in opening order.
func (s *PositionStore) List() []model.SimPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *PositionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

func (s *PositionStore) snapshotLocked() []model.SimPosition {
	out := make([]model.SimPosition, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.positions[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Clear discards all in-memory positions and their persisted copy. Used on
// logout; remote-persisted state is untouched.
func (s *PositionStore) Clear(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.positions = make(map[string]model.SimPosition)
	s.order = nil
	s.mu.Unlock()

	s.persist(ctx, nil)
}

// persist is best effort: a failed write loses reload continuity, never
// correctness, so it is logged and swallowed.
func (s *PositionStore) persist(ctx context.Context, snapshot []model.SimPosition) {
	if err := s.repo.PutJSON(ctx, model.SessionKeyPositions, snapshot); err != nil {
		logger.WithError(err).Error("failed to persist positions to session store")
	}
}
