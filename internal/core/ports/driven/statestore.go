package driven

import (
	"context"

	"github.com/custodia-labs/sentry-tap/internal/core/domain"
)

// StateStore persists bookmark state between runs.
type StateStore interface {
	// Load retrieves the last persisted state. Returns
	// domain.ErrNotFound when no state has been saved yet.
	Load(ctx context.Context) (domain.State, error)

	// Save persists a state snapshot.
	Save(ctx context.Context, state domain.State) error
}
