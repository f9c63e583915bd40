// Package memory provides an in-memory state store, used by tests and
// by runs that start from a state handed in on the command line.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/sentry-tap/internal/core/domain"
	"github.com/custodia-labs/sentry-tap/internal/core/ports/driven"
)

// Ensure StateStore implements the interface.
var _ driven.StateStore = (*StateStore)(nil)

// StateStore is an in-memory implementation of driven.StateStore.
type StateStore struct {
	mu    sync.RWMutex
	state *domain.State
}

// NewStateStore creates an empty in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{}
}

// NewStateStoreWith creates a store pre-loaded with a state snapshot.
func NewStateStoreWith(state domain.State) *StateStore {
	return &StateStore{state: &state}
}

// Load returns the stored state snapshot.
func (s *StateStore) Load(_ context.Context) (domain.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return domain.State{}, domain.ErrNotFound
	}
	return *s.state, nil
}

// Save stores a state snapshot.
func (s *StateStore) Save(_ context.Context, state domain.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &state
	return nil
}
