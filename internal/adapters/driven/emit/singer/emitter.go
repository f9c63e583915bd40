// Package singer writes the normalised record stream as
// newline-delimited JSON messages on a single output writer. Exactly
// three message types exist: SCHEMA announces a stream's shape, RECORD
// carries one record, STATE carries the full bookmark snapshot.
package singer

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/custodia-labs/sentry-tap/internal/adapters/driven/emit/singer/schemas"
	"github.com/custodia-labs/sentry-tap/internal/core/domain"
	"github.com/custodia-labs/sentry-tap/internal/core/ports/driven"
)

// Ensure Emitter implements the interface.
var _ driven.RecordEmitter = (*Emitter)(nil)

// Message is one line of tap output.
type Message struct {
	Type               string          `json:"type"`
	Stream             string          `json:"stream,omitempty"`
	Data               domain.Record   `json:"record,omitempty"`
	TimeExtracted      *time.Time      `json:"time_extracted,omitempty"`
	Schema             json.RawMessage `json:"schema,omitempty"`
	Value              any             `json:"value,omitempty"`
	KeyProperties      []string        `json:"key_properties,omitempty"`
	BookmarkProperties []string        `json:"bookmark_properties,omitempty"`
}

// bookmarkProperties maps incremental streams to the record field
// their bookmark window filters on.
var bookmarkProperties = map[domain.Stream]string{
	domain.StreamIssues: "lastSeen",
	domain.StreamEvents: "dateCreated",
}

// Emitter serialises messages onto one writer. Writes are mutex
// guarded so concurrent callers never interleave partial lines.
type Emitter struct {
	mu  sync.Mutex
	enc *json.Encoder

	// now stamps time_extracted on records.
	now func() time.Time
}

// NewEmitter wraps a writer, typically stdout. Diagnostics must go
// elsewhere; the writer carries messages only.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{
		enc: json.NewEncoder(w),
		now: time.Now,
	}
}

// WriteSchema emits the SCHEMA message for a stream from the embedded
// schema documents.
func (e *Emitter) WriteSchema(stream domain.Stream) error {
	raw, err := schemas.FS.ReadFile(stream.String() + ".json")
	if err != nil {
		return fmt.Errorf("schema for %s: %w", stream, err)
	}

	msg := Message{
		Type:          "SCHEMA",
		Stream:        stream.String(),
		Schema:        json.RawMessage(raw),
		KeyProperties: []string{stream.PrimaryKey()},
	}
	if field, ok := bookmarkProperties[stream]; ok {
		msg.BookmarkProperties = []string{field}
	}
	return e.write(msg)
}

// WriteRecord emits one RECORD message with its extraction timestamp.
func (e *Emitter) WriteRecord(stream domain.Stream, record domain.Record) error {
	extracted := e.now().UTC()
	return e.write(Message{
		Type:          "RECORD",
		Stream:        stream.String(),
		Data:          record,
		TimeExtracted: &extracted,
	})
}

// WriteState emits the full bookmark snapshot as a STATE message.
func (e *Emitter) WriteState(state domain.State) error {
	return e.write(Message{Type: "STATE", Value: state})
}

func (e *Emitter) write(msg Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(msg); err != nil {
		return fmt.Errorf("write %s message: %w", msg.Type, err)
	}
	return nil
}
