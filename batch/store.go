package batch

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("batch not found")

// Store persists batch states between submissions
type Store interface {
	// Get returns ErrNotFound for unknown ids
	Get(ctx context.Context, batchID string) (*State, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, batchID string) error
}

// MemoryStore keeps states in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*State)}
}

func (m *MemoryStore) Get(_ context.Context, batchID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[batchID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.BatchID] = state.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, batchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, batchID)
	return nil
}
