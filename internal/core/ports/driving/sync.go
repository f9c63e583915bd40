package driving

import (
	"context"

	"github.com/custodia-labs/sentry-tap/internal/core/domain"
)

// SyncRunner coordinates record extraction per stream.
type SyncRunner interface {
	// Sync runs one full extraction pass for a stream.
	Sync(ctx context.Context, stream domain.Stream) error

	// SyncAll runs extraction for the given streams in order. An
	// empty slice means every stream. The first propagated stream
	// failure aborts the run.
	SyncAll(ctx context.Context, streams []domain.Stream) error

	// State returns the engine's current bookmark state snapshot.
	State() domain.State
}
