package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sentry-tap/internal/core/domain"
)

// --- Mock implementations for engine testing ---

// mockAPI implements driven.TrackerAPI with canned responses and
// recorded call arguments.
type mockAPI struct {
	projects    []domain.Record
	projectsErr error

	issuesByProject map[string][]domain.Record
	issuesErr       map[string]error
	issuesSince     []time.Time

	activities    []domain.Record
	activitiesErr error
	activitySince time.Time

	eventsByProject map[string][]domain.Record
	eventsErr       map[string]error
	eventsCalls     []eventsCall

	users    []domain.Record
	usersErr error
	teams    []domain.Record
	teamsErr error
}

type eventsCall struct {
	projectID string
	since     time.Time
	until     time.Time
}

func (m *mockAPI) Projects(context.Context) ([]domain.Record, error) {
	return m.projects, m.projectsErr
}

func (m *mockAPI) Issues(_ context.Context, projectSlug string, since time.Time) ([]domain.Record, error) {
	m.issuesSince = append(m.issuesSince, since)
	if err := m.issuesErr[projectSlug]; err != nil {
		return nil, err
	}
	return m.issuesByProject[projectSlug], nil
}

func (m *mockAPI) Activities(_ context.Context, since time.Time) ([]domain.Record, error) {
	m.activitySince = since
	return m.activities, m.activitiesErr
}

func (m *mockAPI) Events(_ context.Context, projectID string, since, until time.Time) ([]domain.Record, error) {
	m.eventsCalls = append(m.eventsCalls, eventsCall{projectID: projectID, since: since, until: until})
	if err := m.eventsErr[projectID]; err != nil {
		return nil, err
	}
	return m.eventsByProject[projectID], nil
}

func (m *mockAPI) Users(context.Context) ([]domain.Record, error) { return m.users, m.usersErr }
func (m *mockAPI) Teams(context.Context) ([]domain.Record, error) { return m.teams, m.teamsErr }

// mockEmitter implements driven.RecordEmitter, recording every message
// in emission order.
type mockEmitter struct {
	messages  []emitted
	schemaErr error
	recordErr error
	stateErr  error
}

type emitted struct {
	kind   string // "schema", "record", "state"
	stream domain.Stream
	record domain.Record
	state  domain.State
}

func (m *mockEmitter) WriteSchema(stream domain.Stream) error {
	if m.schemaErr != nil {
		return m.schemaErr
	}
	m.messages = append(m.messages, emitted{kind: "schema", stream: stream})
	return nil
}

func (m *mockEmitter) WriteRecord(stream domain.Stream, record domain.Record) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.messages = append(m.messages, emitted{kind: "record", stream: stream, record: record})
	return nil
}

func (m *mockEmitter) WriteState(state domain.State) error {
	if m.stateErr != nil {
		return m.stateErr
	}
	m.messages = append(m.messages, emitted{kind: "state", state: state})
	return nil
}

func (m *mockEmitter) recordIDs(stream domain.Stream) []string {
	var ids []string
	for _, msg := range m.messages {
		if msg.kind == "record" && msg.stream == stream {
			ids = append(ids, msg.record.ID())
		}
	}
	return ids
}

func (m *mockEmitter) lastState(t *testing.T) domain.State {
	t.Helper()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].kind == "state" {
			return m.messages[i].state
		}
	}
	t.Fatal("no state message emitted")
	return domain.State{}
}

func (m *mockEmitter) countKind(kind string) int {
	var n int
	for _, msg := range m.messages {
		if msg.kind == kind {
			n++
		}
	}
	return n
}

// --- Helpers ---

var testStart = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, api *mockAPI, emitter *mockEmitter, initial domain.State) *SyncEngine {
	t.Helper()
	engine, err := NewSyncEngine(context.Background(), api, emitter, initial)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	engine.now = func() time.Time { return testStart }
	return engine
}

func project(id, slug string) domain.Record {
	return domain.Record{"id": id, "slug": slug}
}

// --- Tests ---

// TestNewSyncEngine_CachesProjects tests the one-time project fetch
func TestNewSyncEngine_CachesProjects(t *testing.T) {
	api := &mockAPI{projects: []domain.Record{project("1", "alpha"), project("2", "beta")}}
	engine := newTestEngine(t, api, &mockEmitter{}, domain.NewState())

	projects := engine.Projects()
	require.Len(t, projects, 2)
	assert.Equal(t, "alpha", projects[0].Slug)
	assert.Equal(t, "2", projects[1].ID)
}

// TestNewSyncEngine_ProjectFetchFails tests constructor failure
func TestNewSyncEngine_ProjectFetchFails(t *testing.T) {
	api := &mockAPI{projectsErr: errors.New("boom")}
	_, err := NewSyncEngine(context.Background(), api, &mockEmitter{}, domain.NewState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch projects")
}

// TestSync_Projects tests schema + cached records, no state
func TestSync_Projects(t *testing.T) {
	api := &mockAPI{projects: []domain.Record{project("1", "alpha"), project("2", "beta")}}
	emitter := &mockEmitter{}
	engine := newTestEngine(t, api, emitter, domain.NewState())

	require.NoError(t, engine.Sync(context.Background(), domain.StreamProjects))

	require.Len(t, emitter.messages, 3)
	assert.Equal(t, "schema", emitter.messages[0].kind)
	assert.Equal(t, domain.StreamProjects, emitter.messages[0].stream)
	assert.Equal(t, []string{"1", "2"}, emitter.recordIDs(domain.StreamProjects))
	assert.Zero(t, emitter.countKind("state"), "projects never advances a bookmark")
}

// TestSync_Issues tests the spec'd happy path: schema, one record,
// and a state event carrying the extraction START time.
func TestSync_Issues(t *testing.T) {
	api := &mockAPI{
		projects: []domain.Record{project("10", "proj-1")},
		issuesByProject: map[string][]domain.Record{
			"proj-1": {{"id": "1", "lastSeen": "2024-01-02T00:00:00Z"}},
		},
	}
	emitter := &mockEmitter{}
	initial := domain.NewState().WithBookmark("issues", "start", "2024-01-01T00:00:00Z")
	engine := newTestEngine(t, api, emitter, initial)

	require.NoError(t, engine.Sync(context.Background(), domain.StreamIssues))

	// The bookmark was handed to the fetch as the server-side filter.
	require.Len(t, api.issuesSince, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), api.issuesSince[0])

	assert.Equal(t, 1, emitter.countKind("schema"))
	assert.Equal(t, []string{"1"}, emitter.recordIDs(domain.StreamIssues))

	state := emitter.lastState(t)
	value, ok := state.Bookmark("issues", "start")
	require.True(t, ok)
	assert.Equal(t, domain.FormatBookmarkTime(testStart), value)
}

// TestSync_Issues_BookmarkIsStartTimeNotCompletion tests that the
// bookmark equals the instant the pass began, not when it finished.
func TestSync_Issues_BookmarkIsStartTimeNotCompletion(t *testing.T) {
	api := &mockAPI{projects: []domain.Record{project("10", "proj-1")}}
	emitter := &mockEmitter{}
	engine := newTestEngine(t, api, emitter, domain.NewState())

	// Clock ticks forward on every read; only the first read may end
	// up in the bookmark.
	calls := 0
	engine.now = func() time.Time {
		calls++
		return testStart.Add(time.Duration(calls-1) * time.Minute)
	}

	require.NoError(t, engine.Sync(context.Background(), domain.StreamIssues))

	state := emitter.lastState(t)
	for _, field := range []string{"issues", "activity"} {
		value, ok := state.Bookmark(field, "start")
		require.True(t, ok, field)
		assert.Equal(t, domain.FormatBookmarkTime(testStart), value, field)
	}
}

// TestSync_Issues_FirstRunUnfiltered tests that a missing bookmark
// yields a zero since (full fetch).
func TestSync_Issues_FirstRunUnfiltered(t *testing.T) {
	api := &mockAPI{projects: []domain.Record{project("10", "proj-1")}}
	engine := newTestEngine(t, api, &mockEmitter{}, domain.NewState())

	require.NoError(t, engine.Sync(context.Background(), domain.StreamIssues))

	require.Len(t, api.issuesSince, 1)
	assert.True(t, api.issuesSince[0].IsZero())
	assert.True(t, api.activitySince.IsZero())
}

// TestSync_Issues_DeduplicatesActivityIssues tests that an issue seen
// via the issues endpoint is not re-emitted from activity, while a
// previously unseen activity issue is emitted exactly once.
func TestSync_Issues_DeduplicatesActivityIssues(t *testing.T) {
	api := &mockAPI{
		projects: []domain.Record{project("10", "proj-1")},
		issuesByProject: map[string][]domain.Record{
			"proj-1": {{"id": "X", "lastSeen": "2024-05-01T00:00:00Z"}},
		},
		activities: []domain.Record{
			{"id": "a1", "dateCreated": "2024-05-02T00:00:00Z", "issue": map[string]any{"id": "X"}},
			{"id": "a2", "dateCreated": "2024-05-03T00:00:00Z", "issue": map[string]any{"id": "Y"}},
			{"id": "a3", "dateCreated": "2024-05-04T00:00:00Z", "issue": map[string]any{"id": "Y"}},
			{"id": "a4", "dateCreated": "2024-05-05T00:00:00Z"},
		},
	}
	emitter := &mockEmitter{}
	engine := newTestEngine(t, api, emitter, domain.NewState())

	require.NoError(t, engine.Sync(context.Background(), domain.StreamIssues))

	assert.Equal(t, []string{"X", "Y"}, emitter.recordIDs(domain.StreamIssues))
}

// TestSync_Issues_ActivityBookmarkPassedThrough tests that the
// activity fetch receives the activity bookmark, not the issues one.
func TestSync_Issues_ActivityBookmarkPassedThrough(t *testing.T) {
	api := &mockAPI{projects: []domain.Record{project("10", "proj-1")}}
	initial := domain.NewState().
		WithBookmark("issues", "start", "2024-01-01T00:00:00Z").
		WithBookmark("activity", "start", "2024-02-15T00:00:00Z")
	engine := newTestEngine(t, api, &mockEmitter{}, initial)

	require.NoError(t, engine.Sync(context.Background(), domain.StreamIssues))

	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), api.activitySince)
}

// TestSync_Issues_FetchFailurePropagates tests that a project's issue
// fetch failure aborts the stream without advancing any bookmark.
func TestSync_Issues_FetchFailurePropagates(t *testing.T) {
	api := &mockAPI{
		projects:  []domain.Record{project("10", "proj-1"), project("11", "proj-2")},
		issuesErr: map[string]error{"proj-2": errors.New("server melted")},
	}
	emitter := &mockEmitter{}
	engine := newTestEngine(t, api, emitter, domain.NewState())

	err := engine.Sync(context.Background(), domain.StreamIssues)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proj-2")
	assert.Zero(t, emitter.countKind("state"), "no bookmark advancement on failure")
}

// TestSync_Events tests window parameters and bookmark advancement.
func TestSync_Events(t *testing.T) {
	api := &mockAPI{
		projects: []domain.Record{project("10", "proj-1")},
		eventsByProject: map[string][]domain.Record{
			"10": {{"eventID": "e1"}, {"eventID": "e2"}},
		},
	}
	emitter := &mockEmitter{}
	initial := domain.NewState().WithBookmark("events", "start", "2024-03-01T00:00:00Z")
	engine := newTestEngine(t, api, emitter, initial)

	require.NoError(t, engine.Sync(context.Background(), domain.StreamEvents))

	require.Len(t, api.eventsCalls, 1)
	call := api.eventsCalls[0]
	assert.Equal(t, "10", call.projectID)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), call.since)
	assert.Equal(t, testStart, call.until)

	assert.Equal(t, 2, emitter.countKind("record"))

	value, ok := emitter.lastState(t).Bookmark("events", "start")
	require.True(t, ok)
	assert.Equal(t, domain.FormatBookmarkTime(testStart), value)
}

// TestSync_Events_SkipOnFailure tests the spec'd resilience policy: a
// failing project is skipped, later projects still sync, and the
// bookmark still advances.
func TestSync_Events_SkipOnFailure(t *testing.T) {
	api := &mockAPI{
		projects: []domain.Record{
			project("1", "proj-1"), project("2", "proj-2"), project("3", "proj-3"),
		},
		eventsByProject: map[string][]domain.Record{
			"1": {{"eventID": "e1"}},
			"3": {{"eventID": "e3"}},
		},
		eventsErr: map[string]error{"2": errors.New("request failed with status 500")},
	}
	emitter := &mockEmitter{}
	engine := newTestEngine(t, api, emitter, domain.NewState())

	require.NoError(t, engine.Sync(context.Background(), domain.StreamEvents))

	require.Len(t, api.eventsCalls, 3, "all projects attempted")

	var ids []string
	for _, msg := range emitter.messages {
		if msg.kind == "record" {
			id, _ := msg.record["eventID"].(string)
			ids = append(ids, id)
		}
	}
	assert.Equal(t, []string{"e1", "e3"}, ids)

	_, ok := emitter.lastState(t).Bookmark("events", "start")
	assert.True(t, ok, "bookmark advances despite the skipped project")
}

// TestSync_UsersAndTeams tests the bookmark-free snapshot streams.
func TestSync_UsersAndTeams(t *testing.T) {
	api := &mockAPI{
		users: []domain.Record{{"id": "u1"}, {"id": "u2"}},
		teams: []domain.Record{{"id": "t1"}},
	}
	emitter := &mockEmitter{}
	engine := newTestEngine(t, api, emitter, domain.NewState())

	require.NoError(t, engine.Sync(context.Background(), domain.StreamUsers))
	require.NoError(t, engine.Sync(context.Background(), domain.StreamTeams))

	assert.Equal(t, []string{"u1", "u2"}, emitter.recordIDs(domain.StreamUsers))
	assert.Equal(t, []string{"t1"}, emitter.recordIDs(domain.StreamTeams))
	assert.Zero(t, emitter.countKind("state"))
}

// TestSync_SnapshotFetchFailurePropagates tests users/teams failures
func TestSync_SnapshotFetchFailurePropagates(t *testing.T) {
	api := &mockAPI{usersErr: errors.New("forbidden")}
	engine := newTestEngine(t, api, &mockEmitter{}, domain.NewState())

	err := engine.Sync(context.Background(), domain.StreamUsers)
	assert.Error(t, err)
}

// TestSync_UnknownStream tests the closed-set fallthrough
func TestSync_UnknownStream(t *testing.T) {
	engine := newTestEngine(t, &mockAPI{}, &mockEmitter{}, domain.NewState())
	err := engine.Sync(context.Background(), domain.Stream(99))
	assert.ErrorIs(t, err, domain.ErrUnknownStream)
}

// TestSync_AfterClose tests that a closed engine refuses work
func TestSync_AfterClose(t *testing.T) {
	engine := newTestEngine(t, &mockAPI{}, &mockEmitter{}, domain.NewState())
	require.NoError(t, engine.Close())

	err := engine.Sync(context.Background(), domain.StreamUsers)
	assert.ErrorIs(t, err, domain.ErrEngineClosed)
}

// TestSyncAll_Order tests sequential stream iteration and abort on
// first propagated failure.
func TestSyncAll_Order(t *testing.T) {
	api := &mockAPI{
		projects: []domain.Record{project("1", "alpha")},
		usersErr: errors.New("forbidden"),
	}
	emitter := &mockEmitter{}
	engine := newTestEngine(t, api, emitter, domain.NewState())

	err := engine.SyncAll(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync users")

	// projects, issues and events schemas were emitted before the
	// users failure; teams never started.
	var schemaStreams []domain.Stream
	for _, msg := range emitter.messages {
		if msg.kind == "schema" {
			schemaStreams = append(schemaStreams, msg.stream)
		}
	}
	assert.Equal(t, []domain.Stream{
		domain.StreamProjects, domain.StreamIssues, domain.StreamEvents, domain.StreamUsers,
	}, schemaStreams)
}

// TestSync_EmitOrderPerStream tests schema-before-records ordering
func TestSync_EmitOrderPerStream(t *testing.T) {
	api := &mockAPI{
		projects: []domain.Record{project("10", "proj-1")},
		issuesByProject: map[string][]domain.Record{
			"proj-1": {{"id": "1"}, {"id": "2"}},
		},
	}
	emitter := &mockEmitter{}
	engine := newTestEngine(t, api, emitter, domain.NewState())

	require.NoError(t, engine.Sync(context.Background(), domain.StreamIssues))

	require.GreaterOrEqual(t, len(emitter.messages), 4)
	assert.Equal(t, "schema", emitter.messages[0].kind)
	assert.Equal(t, "record", emitter.messages[1].kind)
	assert.Equal(t, "record", emitter.messages[2].kind)
	assert.Equal(t, "state", emitter.messages[3].kind)
}
