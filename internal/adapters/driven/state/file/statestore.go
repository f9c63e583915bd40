// Package file provides the default state store: one JSON document on
// disk, rewritten atomically on every save so an interrupted run never
// leaves a truncated resume point behind.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/sentry-tap/internal/core/domain"
	"github.com/custodia-labs/sentry-tap/internal/core/ports/driven"
)

// Ensure StateStore implements the interface.
var _ driven.StateStore = (*StateStore)(nil)

// StateStore is a file-based implementation of driven.StateStore.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore creates a state store at the given path. If path is
// empty, defaults to ~/.sentry-tap/state.json.
func NewStateStore(path string) (*StateStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".sentry-tap", "state.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	return &StateStore{path: path}, nil
}

// Path returns the state file path.
func (s *StateStore) Path() string {
	return s.path
}

// Load reads the state document. A missing file reports
// domain.ErrNotFound so first runs start from an empty state.
func (s *StateStore) Load(_ context.Context) (domain.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.State{}, domain.ErrNotFound
		}
		return domain.State{}, fmt.Errorf("reading state file: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.State{}, fmt.Errorf("parsing state file %s: %w", s.path, err)
	}
	return state, nil
}

// Save writes the state document via a rename from a temp file in the
// same directory.
func (s *StateStore) Save(_ context.Context, state domain.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
