package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sentry-tap/internal/core/domain"
)

// TrackerAPI fetches records from the remote issue-tracking API.
// Every method follows pagination to exhaustion internally and returns
// records in server order. Implementations handle authentication,
// connection reuse and transient-failure retry; a returned error means
// retries were exhausted or the failure was not retryable.
type TrackerAPI interface {
	// Projects lists the organization's projects.
	Projects(ctx context.Context) ([]domain.Record, error)

	// Issues lists a project's issues. When since is non-zero the
	// list is filtered server-side to issues with lastSeen >= since.
	Issues(ctx context.Context, projectSlug string, since time.Time) ([]domain.Record, error)

	// Activities lists organization activity entries with
	// dateCreated >= since. The endpoint has no server-side date
	// filter, so filtering happens client-side page by page;
	// traversal stops early once a page contributes nothing.
	Activities(ctx context.Context, since time.Time) ([]domain.Record, error)

	// Events lists a project's events. When since is non-zero the
	// window [since, until] is applied server-side.
	Events(ctx context.Context, projectID string, since, until time.Time) ([]domain.Record, error)

	// Users lists the organization's members.
	Users(ctx context.Context) ([]domain.Record, error)

	// Teams lists the organization's teams.
	Teams(ctx context.Context) ([]domain.Record, error)
}
