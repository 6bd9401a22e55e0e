// Package eventlog implements the Event Log (spec §4.C): a single-writer,
// multi-reader append-only JSONL store with advisory file locking, a
// streaming reader tolerant of partial tail lines, breadcrumb/field
// filters, set operations over event identity, and a forward-scan state
// reconstruction helper.
package eventlog

import (
	"encoding/json"
	"fmt"

	"github.com/maceff/macf/internal/breadcrumb"
	"github.com/maceff/macf/internal/jsonutil"
)

// Event is one append-only log entry (spec §3).
type Event struct {
	Timestamp  float64        `json:"timestamp"`
	EventName  string         `json:"event"`
	Breadcrumb string         `json:"breadcrumb"`
	Data       map[string]any `json:"data,omitempty"`
	HookInput  map[string]any `json:"hook_input,omitempty"`

	// raw holds the exact serialized bytes this Event was decoded from.
	// query_set defines event identity as the full serialized line, so
	// set operations compare raw rather than re-marshaling (re-marshaling
	// could reorder map keys and break identity across reads).
	raw json.RawMessage
}

// Raw returns the exact bytes this Event was decoded from, or nil if the
// Event was constructed in-process and never serialized.
func (e Event) Raw() json.RawMessage { return e.raw }

// Marshal serializes e for appending: the canonical bytes used both to
// write the line and, for readers, to populate raw.
func (e Event) Marshal() ([]byte, error) {
	type wire struct {
		Timestamp  float64        `json:"timestamp"`
		EventName  string         `json:"event"`
		Breadcrumb string         `json:"breadcrumb"`
		Data       map[string]any `json:"data,omitempty"`
		HookInput  map[string]any `json:"hook_input,omitempty"`
	}
	return jsonutil.EncodeNoEscape(wire{
		Timestamp:  e.Timestamp,
		EventName:  e.EventName,
		Breadcrumb: e.Breadcrumb,
		Data:       e.Data,
		HookInput:  e.HookInput,
	})
}

// ParseEvent decodes one JSONL line into an Event, retaining the original
// bytes for identity purposes. Returns an error on malformed JSON; callers
// in the streaming reader treat this as "skip this line", not as a fatal
// failure (spec §4.C: "a malformed line never aborts a query").
func ParseEvent(line []byte) (Event, error) {
	var e Event
	if err := jsonutil.DecodeLine(line, &e); err != nil {
		return Event{}, err
	}
	e.raw = append(json.RawMessage(nil), line...)
	return e, nil
}

// BreadcrumbComponents lazily parses e.Breadcrumb. Returns an error if the
// breadcrumb string is malformed or empty.
func (e Event) BreadcrumbComponents() (breadcrumb.Components, error) {
	if e.Breadcrumb == "" {
		return breadcrumb.Components{}, fmt.Errorf("eventlog: event %q has no breadcrumb", e.EventName)
	}
	return breadcrumb.Parse(e.Breadcrumb)
}
