package state

import (
	"context"
	"sync"
)

// MemoryStore keeps poll state in process memory. It does not survive a
// restart and exists for tests and single-run local development.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*PollState
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*PollState),
	}
}

// Load returns a copy of the stored state, or a fresh empty state when the
// key is unknown.
func (m *MemoryStore) Load(ctx context.Context, consumerKey string) (*PollState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[consumerKey]
	if !ok {
		return New(), nil
	}
	return st.Clone(), nil
}

// Save stores a copy of the state under the key.
func (m *MemoryStore) Save(ctx context.Context, consumerKey string, st *PollState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[consumerKey] = st.Clone()
	return nil
}
