package domain

import "time"

// BookmarkTimeFormat is the wire format for bookmark timestamps,
// always UTC.
const BookmarkTimeFormat = "2006-01-02T15:04:05.000000Z"

// State is the persisted bookmark mapping: stream name → field name →
// value (typically an ISO-8601 timestamp). A State value is treated as
// an immutable snapshot: mutations go through WithBookmark, which
// returns a fresh copy, so every state transition the sink observes is
// atomic.
type State struct {
	Bookmarks map[string]map[string]string `json:"bookmarks"`
}

// NewState returns an empty state.
func NewState() State {
	return State{Bookmarks: make(map[string]map[string]string)}
}

// Bookmark looks up the bookmark for (stream, field). The second
// return is false when no bookmark has been written yet.
func (s State) Bookmark(stream, field string) (string, bool) {
	fields, ok := s.Bookmarks[stream]
	if !ok {
		return "", false
	}
	value, ok := fields[field]
	return value, ok && value != ""
}

// WithBookmark returns a new State with (stream, field) set to value.
// The receiver is never modified.
func (s State) WithBookmark(stream, field, value string) State {
	next := NewState()
	for str, fields := range s.Bookmarks {
		copied := make(map[string]string, len(fields))
		for k, v := range fields {
			copied[k] = v
		}
		next.Bookmarks[str] = copied
	}
	fields, ok := next.Bookmarks[stream]
	if !ok {
		fields = make(map[string]string)
		next.Bookmarks[stream] = fields
	}
	fields[field] = value
	return next
}

// FormatBookmarkTime renders a timestamp in the bookmark wire format.
func FormatBookmarkTime(t time.Time) string {
	return t.UTC().Format(BookmarkTimeFormat)
}

// ParseBookmarkTime parses a bookmark timestamp. Both the canonical
// format and plain RFC 3339 values are accepted, since externally
// supplied state files may carry either.
func ParseBookmarkTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
