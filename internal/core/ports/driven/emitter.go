package driven

import "github.com/custodia-labs/sentry-tap/internal/core/domain"

// RecordEmitter is the record-emission sink. The core calls it as an
// abstract operation set; schema declaration and message serialization
// are the sink's concern. Emission order per stream is: one schema,
// zero or more records, then (for incremental streams) one state.
type RecordEmitter interface {
	// WriteSchema declares the stream's schema and primary key(s).
	WriteSchema(stream domain.Stream) error

	// WriteRecord emits one record for the stream.
	WriteRecord(stream domain.Stream, record domain.Record) error

	// WriteState emits a bookmark state snapshot.
	WriteState(state domain.State) error
}
