package domain

// Stream identifies one logical category of remote records.
// The set is closed: every member is bound to its own sync procedure
// at compile time, and switches over Stream list all members rather
// than falling through on a default.
type Stream int

const (
	// StreamProjects emits the cached project list. No bookmark.
	StreamProjects Stream = iota

	// StreamIssues emits issues per project plus issues recovered from
	// organization activity. Advances the issues and activity bookmarks.
	StreamIssues

	// StreamEvents emits events per project. Advances the events bookmark.
	StreamEvents

	// StreamUsers emits the organization's users. No bookmark.
	StreamUsers

	// StreamTeams emits the organization's teams. No bookmark.
	StreamTeams
)

// AllStreams lists every stream in sync order.
var AllStreams = []Stream{
	StreamProjects,
	StreamIssues,
	StreamEvents,
	StreamUsers,
	StreamTeams,
}

// String returns the stream name as used in schema and state messages.
func (s Stream) String() string {
	switch s {
	case StreamProjects:
		return "projects"
	case StreamIssues:
		return "issues"
	case StreamEvents:
		return "events"
	case StreamUsers:
		return "users"
	case StreamTeams:
		return "teams"
	}
	return "unknown"
}

// PrimaryKey returns the record field that uniquely identifies records
// of this stream.
func (s Stream) PrimaryKey() string {
	if s == StreamEvents {
		return "eventID"
	}
	return "id"
}

// Incremental reports whether the stream advances a bookmark after a
// full, successful pass. Projects, users and teams represent current
// organizational state rather than a time series.
func (s Stream) Incremental() bool {
	return s == StreamIssues || s == StreamEvents
}

// ParseStream resolves a stream name to its Stream value.
func ParseStream(name string) (Stream, error) {
	for _, s := range AllStreams {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, ErrUnknownStream
}
