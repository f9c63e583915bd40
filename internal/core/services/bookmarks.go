package services

import (
	"fmt"
	"time"

	"github.com/custodia-labs/sentry-tap/internal/core/domain"
	"github.com/custodia-labs/sentry-tap/internal/core/ports/driven"
)

// Bookmarks is a typed accessor over the externally-owned bookmark
// state. It holds the current snapshot; Set derives a new snapshot,
// emits it through the sink, and only then adopts it, so every
// transition the sink observes is atomic and the previous snapshot is
// never mutated.
//
// Stream keys are plain names rather than the Stream enum because the
// activity bookmark rides alongside the issues stream without being a
// stream of its own.
type Bookmarks struct {
	emitter driven.RecordEmitter
	state   domain.State
}

// NewBookmarks wraps an initial state snapshot.
func NewBookmarks(emitter driven.RecordEmitter, initial domain.State) *Bookmarks {
	if initial.Bookmarks == nil {
		initial = domain.NewState()
	}
	return &Bookmarks{emitter: emitter, state: initial}
}

// Get returns the bookmark for (stream, field), if any.
func (b *Bookmarks) Get(stream, field string) (string, bool) {
	return b.state.Bookmark(stream, field)
}

// GetTime parses the bookmark for (stream, field) as a timestamp.
// A missing bookmark yields the zero time with no error.
func (b *Bookmarks) GetTime(stream, field string) (time.Time, error) {
	value, ok := b.Get(stream, field)
	if !ok {
		return time.Time{}, nil
	}
	t, err := domain.ParseBookmarkTime(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("bookmark %s.%s: %w", stream, field, err)
	}
	return t, nil
}

// Set writes (stream, field) = value into a fresh state snapshot,
// emits it, and returns it. The prior snapshot is left untouched; on
// emission failure the accessor keeps the prior snapshot.
func (b *Bookmarks) Set(stream, field, value string) (domain.State, error) {
	next := b.state.WithBookmark(stream, field, value)
	if err := b.emitter.WriteState(next); err != nil {
		return domain.State{}, fmt.Errorf("emit state: %w", err)
	}
	b.state = next
	return next, nil
}

// State returns the current snapshot.
func (b *Bookmarks) State() domain.State {
	return b.state
}
