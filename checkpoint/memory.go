package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/Itangalo/scenario-lab-sub001/core"
)

// MemoryStore is a volatile core.CheckpointStore keeping one state per turn.
// It mirrors the FileStore's semantics (idempotent per-turn overwrite,
// complete snapshots) and is intended for tests and embedded use. States are
// cloned on write and on read so callers never share collections with the
// store.
type MemoryStore struct {
	mu     sync.RWMutex
	byTurn map[int]core.ScenarioState
	latest int
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byTurn: make(map[int]core.ScenarioState), latest: -1}
}

// Save stores a clone of the state under its turn. The returned location is
// synthetic, useful only for logging.
func (s *MemoryStore) Save(ctx context.Context, state core.ScenarioState) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byTurn[state.Turn] = state.Clone()
	if state.Turn > s.latest {
		s.latest = state.Turn
	}
	return fmt.Sprintf("memory:"+turnFilePattern, state.Turn), nil
}

// LoadTurn returns a clone of the state saved for the turn.
func (s *MemoryStore) LoadTurn(ctx context.Context, turn int) (core.ScenarioState, error) {
	if err := ctx.Err(); err != nil {
		return core.ScenarioState{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.byTurn[turn]
	if !ok {
		return core.ScenarioState{}, fmt.Errorf("%w: turn %d", ErrNotFound, turn)
	}
	return state.Clone(), nil
}

// LoadLatest returns a clone of the highest-turn state saved.
func (s *MemoryStore) LoadLatest(ctx context.Context) (core.ScenarioState, error) {
	if err := ctx.Err(); err != nil {
		return core.ScenarioState{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest < 0 {
		return core.ScenarioState{}, fmt.Errorf("%w: store is empty", ErrNotFound)
	}
	return s.byTurn[s.latest].Clone(), nil
}

// Len reports how many turns are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byTurn)
}
