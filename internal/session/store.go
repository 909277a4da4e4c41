package session

import (
	"context"
	"sort"
	"sync"

	"github.com/pvzzle/txrecorder/internal/coordinator"
)

// Factory builds the coordinator of a new session.
type Factory func(id int64) *coordinator.Coordinator

type Store struct {
	mu      sync.RWMutex
	data    map[int64]*coordinator.Coordinator
	factory Factory
}

func NewStore(factory Factory) *Store {
	return &Store{data: make(map[int64]*coordinator.Coordinator), factory: factory}
}

// Get returns the session's coordinator, creating and initializing it on first use.
// The initialization error is returned once; the coordinator is kept either way.
func (s *Store) Get(ctx context.Context, id int64) (*coordinator.Coordinator, error) {
	s.mu.RLock()
	c := s.data[id]
	s.mu.RUnlock()
	if c != nil {
		return c, nil
	}

	s.mu.Lock()
	c = s.data[id]
	if c != nil {
		s.mu.Unlock()
		return c, nil
	}
	c = s.factory(id)
	s.data[id] = c
	s.mu.Unlock()

	return c, c.Initialize(ctx)
}

// Lookup returns an existing session without creating one.
func (s *Store) Lookup(id int64) (*coordinator.Coordinator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data[id]
	return c, ok
}

func (s *Store) Drop(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
}

// IDs returns the ids of all live sessions in ascending order.
func (s *Store) IDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]int64, 0, len(s.data))
	for id := range s.data {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Refresh reloads history and count of an existing session.
func (s *Store) Refresh(ctx context.Context, id int64) error {
	c, ok := s.Lookup(id)
	if !ok {
		return nil
	}
	return c.RefreshAll(ctx)
}
