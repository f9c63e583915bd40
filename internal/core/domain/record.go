package domain

import "time"

// Record is an opaque remote record (issue, event, user, team, activity).
// Records pass through to the sink without structural transformation
// beyond filtering; they are transient and never retained past emission.
type Record map[string]any

// ID returns the record's "id" field, or empty string if absent.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// DateCreated parses the record's "dateCreated" timestamp.
// Returns the zero time if the field is absent or malformed.
func (r Record) DateCreated() time.Time {
	return r.timeField("dateCreated")
}

// LastSeen parses the record's "lastSeen" timestamp.
// Returns the zero time if the field is absent or malformed.
func (r Record) LastSeen() time.Time {
	return r.timeField("lastSeen")
}

// Issue returns the nested "issue" reference carried by activity
// records, or nil if the activity is not tied to an issue.
func (r Record) Issue() Record {
	issue, ok := r["issue"].(map[string]any)
	if !ok {
		return nil
	}
	return Record(issue)
}

// timeField parses an RFC 3339 timestamp field, tolerating the
// fractional-second variant Sentry emits.
func (r Record) timeField(key string) time.Time {
	raw, ok := r[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
