package domain

// Project is a remote Sentry project. The project list is fetched once
// per engine instantiation and cached for its lifetime; it drives the
// per-project sub-fetches for issues and events.
type Project struct {
	// ID is the project's numeric identifier, as a string (the API
	// returns it as a JSON string).
	ID string

	// Slug is the URL-safe project name used in issue endpoints.
	Slug string

	// Record is the full project payload as returned by the API,
	// emitted verbatim on the projects stream.
	Record Record
}

// ProjectFromRecord extracts the identifier and slug from a raw
// project record.
func ProjectFromRecord(rec Record) Project {
	slug, _ := rec["slug"].(string)
	return Project{
		ID:     rec.ID(),
		Slug:   slug,
		Record: rec,
	}
}
