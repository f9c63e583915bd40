package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sentry-tap/internal/core/domain"
	"github.com/custodia-labs/sentry-tap/internal/core/ports/driven"
	"github.com/custodia-labs/sentry-tap/internal/core/ports/driving"
	"github.com/custodia-labs/sentry-tap/internal/logger"
)

// Ensure SyncEngine implements the interface.
var _ driving.SyncRunner = (*SyncEngine)(nil)

// SyncEngine runs one extraction pass per stream. Each pass follows
// the same template: emit schema, resolve bookmark, fetch and
// paginate, filter, emit records, then conditionally advance the
// bookmark. Bookmarks always advance to the extraction START time of
// the pass, never its completion time, so a record created mid-pass is
// re-fetched on the next run (at-least-once, never skipped).
//
// Streams are synced strictly sequentially; blocking fetches go
// through a bounded worker pool so the orchestrating goroutine itself
// never sits in a network call.
type SyncEngine struct {
	api       driven.TrackerAPI
	emitter   driven.RecordEmitter
	bookmarks *Bookmarks
	projects  []domain.Project
	pool      *fetchPool
	runID     string

	// now is the clock used for extraction-start timestamps.
	now func() time.Time

	mu      sync.Mutex
	running bool
	closed  bool
}

// NewSyncEngine builds an engine and fetches the project list once;
// the list is cached for the engine's lifetime and drives every
// per-project sub-fetch.
func NewSyncEngine(
	ctx context.Context,
	api driven.TrackerAPI,
	emitter driven.RecordEmitter,
	initial domain.State,
) (*SyncEngine, error) {
	e := &SyncEngine{
		api:       api,
		emitter:   emitter,
		bookmarks: NewBookmarks(emitter, initial),
		pool:      newFetchPool(defaultFetchWorkers),
		runID:     uuid.NewString(),
		now:       time.Now,
	}

	var records []domain.Record
	err := e.pool.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		records, fetchErr = api.Projects(ctx)
		return fetchErr
	})
	if err != nil {
		e.pool.Close()
		return nil, fmt.Errorf("fetch projects: %w", err)
	}

	e.projects = make([]domain.Project, 0, len(records))
	for _, rec := range records {
		e.projects = append(e.projects, domain.ProjectFromRecord(rec))
	}

	logger.Debug("run %s: engine ready with %d projects", e.runID, len(e.projects))
	return e, nil
}

// Sync runs one full extraction pass for a stream.
func (e *SyncEngine) Sync(ctx context.Context, stream domain.Stream) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	logger.Section(stream.String())
	logger.Debug("run %s: syncing %s", e.runID, stream)

	// Dispatch over the closed stream set; a member without a case
	// below falls through to ErrUnknownStream.
	switch stream {
	case domain.StreamProjects:
		return e.syncProjects(ctx)
	case domain.StreamIssues:
		return e.syncIssues(ctx)
	case domain.StreamEvents:
		return e.syncEvents(ctx)
	case domain.StreamUsers:
		return e.syncUsers(ctx)
	case domain.StreamTeams:
		return e.syncTeams(ctx)
	}
	return domain.ErrUnknownStream
}

// SyncAll runs the given streams in order, or every stream when the
// slice is empty. The first propagated failure aborts the run; state
// emitted up to that point remains the resume point.
func (e *SyncEngine) SyncAll(ctx context.Context, streams []domain.Stream) error {
	if len(streams) == 0 {
		streams = domain.AllStreams
	}
	for _, stream := range streams {
		if err := e.Sync(ctx, stream); err != nil {
			return fmt.Errorf("sync %s: %w", stream, err)
		}
	}
	return nil
}

// State returns the engine's current bookmark state snapshot.
func (e *SyncEngine) State() domain.State {
	return e.bookmarks.State()
}

// Projects returns the cached project list.
func (e *SyncEngine) Projects() []domain.Project {
	return e.projects
}

// Close releases the engine's worker pool.
func (e *SyncEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		e.pool.Close()
	}
	return nil
}

// syncProjects emits the cached project list. No bookmark.
func (e *SyncEngine) syncProjects(ctx context.Context) error {
	stream := domain.StreamProjects
	if err := e.emitter.WriteSchema(stream); err != nil {
		return err
	}

	for _, project := range e.projects {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.emitter.WriteRecord(stream, project.Record); err != nil {
			return err
		}
	}
	return nil
}

// syncIssues emits issues per project plus issues recovered from
// organization activity, deduplicated within the pass. Fetch failures
// propagate: an aborted pass leaves the previous bookmarks in place.
func (e *SyncEngine) syncIssues(ctx context.Context) error {
	stream := domain.StreamIssues
	if err := e.emitter.WriteSchema(stream); err != nil {
		return err
	}

	extractionStart := e.now().UTC()

	since, err := e.bookmarks.GetTime("issues", "start")
	if err != nil {
		return err
	}

	emitted := make(map[string]struct{})
	for _, project := range e.projects {
		var issues []domain.Record
		err := e.pool.Do(ctx, func(ctx context.Context) error {
			var fetchErr error
			issues, fetchErr = e.api.Issues(ctx, project.Slug, since)
			return fetchErr
		})
		if err != nil {
			return fmt.Errorf("project %s: %w", project.Slug, err)
		}

		for _, issue := range issues {
			emitted[issue.ID()] = struct{}{}
			if err := e.emitter.WriteRecord(stream, issue); err != nil {
				return err
			}
		}
	}

	if _, err := e.bookmarks.Set("issues", "start", domain.FormatBookmarkTime(extractionStart)); err != nil {
		return err
	}

	// Activity is a secondary source of issues: state changes that do
	// not touch lastSeen still surface as activity entries.
	activitySince, err := e.bookmarks.GetTime("activity", "start")
	if err != nil {
		return err
	}

	var activities []domain.Record
	err = e.pool.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		activities, fetchErr = e.api.Activities(ctx, activitySince)
		return fetchErr
	})
	if err != nil {
		return fmt.Errorf("activity: %w", err)
	}

	for _, activity := range activities {
		issue := activity.Issue()
		if issue == nil {
			continue
		}
		if _, seen := emitted[issue.ID()]; seen {
			continue
		}
		emitted[issue.ID()] = struct{}{}
		if err := e.emitter.WriteRecord(stream, issue); err != nil {
			return err
		}
	}

	_, err = e.bookmarks.Set("activity", "start", domain.FormatBookmarkTime(extractionStart))
	return err
}

// syncEvents emits events per project within the bookmark window. A
// failed fetch for one project is logged and skipped rather than
// aborting the stream; the bookmark still advances after all projects
// were attempted. Resilience is traded for completeness here: events
// of a project that failed this run are re-fetched next run only if
// they fall inside its window.
func (e *SyncEngine) syncEvents(ctx context.Context) error {
	stream := domain.StreamEvents
	if err := e.emitter.WriteSchema(stream); err != nil {
		return err
	}

	extractionStart := e.now().UTC()

	since, err := e.bookmarks.GetTime("events", "start")
	if err != nil {
		return err
	}

	for _, project := range e.projects {
		var events []domain.Record
		err := e.pool.Do(ctx, func(ctx context.Context) error {
			var fetchErr error
			events, fetchErr = e.api.Events(ctx, project.ID, since, extractionStart)
			return fetchErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("run %s: skipping events for project %s: %v", e.runID, project.Slug, err)
			continue
		}

		for _, event := range events {
			if err := e.emitter.WriteRecord(stream, event); err != nil {
				return err
			}
		}
	}

	_, err = e.bookmarks.Set("events", "start", domain.FormatBookmarkTime(extractionStart))
	return err
}

// syncUsers emits the organization's members. Current state, no
// bookmark.
func (e *SyncEngine) syncUsers(ctx context.Context) error {
	return e.syncSnapshot(ctx, domain.StreamUsers, e.api.Users)
}

// syncTeams emits the organization's teams. Current state, no
// bookmark.
func (e *SyncEngine) syncTeams(ctx context.Context) error {
	return e.syncSnapshot(ctx, domain.StreamTeams, e.api.Teams)
}

// syncSnapshot is the shared pass for bookmark-free streams.
func (e *SyncEngine) syncSnapshot(
	ctx context.Context,
	stream domain.Stream,
	fetch func(context.Context) ([]domain.Record, error),
) error {
	if err := e.emitter.WriteSchema(stream); err != nil {
		return err
	}

	var records []domain.Record
	err := e.pool.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		records, fetchErr = fetch(ctx)
		return fetchErr
	})
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := e.emitter.WriteRecord(stream, rec); err != nil {
			return err
		}
	}
	return nil
}

func (e *SyncEngine) acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return domain.ErrEngineClosed
	}
	if e.running {
		return domain.ErrSyncInProgress
	}
	e.running = true
	return nil
}

func (e *SyncEngine) release() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}
