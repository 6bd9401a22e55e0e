// Package reconcile implements the Identifier Reconciler (spec §4.D): a
// pure function deriving session_id, cycle, and prompt_uuid solely from
// the event log and the current hook input, never from filesystem mtimes
// except as an explicitly-flagged fallback.
package reconcile

import (
	"fmt"

	"github.com/maceff/macf/internal/eventlog"
)

// NonePrompt is returned for prompt_uuid when no open dev-drive interval
// exists.
const NonePrompt = "none"

// Tuple is the reconciled identifier set.
type Tuple struct {
	SessionID  string
	Cycle      int
	PromptUUID string
}

// FallbackSource names which non-authoritative source a field was forced
// onto, for the caller's stderr warning + fallback_used event (spec
// §4.D — kept out of this package so Reconcile stays pure).
type FallbackSource string

const (
	FallbackNone              FallbackSource = ""
	FallbackTranscriptMtime   FallbackSource = "transcript_mtime"
	FallbackNoEventLogHistory FallbackSource = "no_event_log_history"
)

// FallbackNotice records that a field could not be derived authoritatively.
type FallbackNotice struct {
	Field  string
	Source FallbackSource
	Detail string
}

// HookInput is the minimal shape reconcile needs from the current hook
// invocation: whatever else the full hook JSON carries is irrelevant here.
type HookInput struct {
	SessionID string
}

// Reconcile derives a Tuple from reader (a full log snapshot, already
// opened by the caller) and the current hook input. It is a pure function:
// same log contents + same input always produce the same Tuple and the
// same FallbackNotice list.
func Reconcile(reader *eventlog.Reader, input HookInput) (Tuple, []FallbackNotice, error) {
	var notices []FallbackNotice
	var tuple Tuple

	sessionID, sessionNotice, err := reconcileSessionID(reader, input)
	if err != nil {
		return Tuple{}, nil, err
	}
	tuple.SessionID = sessionID
	if sessionNotice != nil {
		notices = append(notices, *sessionNotice)
	}

	cycle, err := reconcileCycle(reader)
	if err != nil {
		return Tuple{}, nil, err
	}
	tuple.Cycle = cycle

	promptUUID, err := reconcilePromptUUID(reader)
	if err != nil {
		return Tuple{}, nil, err
	}
	tuple.PromptUUID = promptUUID

	return tuple, notices, nil
}

// reconcileSessionID prefers the hook input's session_id; for historical
// queries (no current input, or an empty session_id) it falls back to the
// breadcrumb session of the latest session_started|migration_detected|
// compaction_detected event.
func reconcileSessionID(reader *eventlog.Reader, input HookInput) (string, *FallbackNotice, error) {
	if input.SessionID != "" {
		return input.SessionID, nil, nil
	}

	var found string
	err := reader.Stream(true, func(e eventlog.Event) error {
		if found != "" {
			return nil
		}
		switch e.EventName {
		case "session_started", "migration_detected", "compaction_detected":
			if sid, ok := e.Data["session_id"].(string); ok && sid != "" {
				found = sid
				return nil
			}
			// Older events without a Data.session_id fall back to the
			// breadcrumb's lossy 8-hex digest — still useful for display,
			// never compared for equality.
			if c, cerr := e.BreadcrumbComponents(); cerr == nil {
				found = c.Session
			}
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	if found == "" {
		return "", &FallbackNotice{
			Field:  "session_id",
			Source: FallbackNoEventLogHistory,
			Detail: "no session_started/migration_detected/compaction_detected event in log and no session_id on hook input",
		}, nil
	}
	return found, nil, nil
}

// reconcileCycle counts compaction_detected events and adds 1 (first cycle
// is 1), but prefers the cycle component stamped on the most recent such
// event as canonical, per spec §4.D ("Alternatively, the value stamped on
// the latest such event (canonical)").
func reconcileCycle(reader *eventlog.Reader) (int, error) {
	count := 0
	var latestStamped int
	var sawStamped bool

	err := reader.Stream(false, func(e eventlog.Event) error {
		if e.EventName != "compaction_detected" {
			return nil
		}
		count++
		if c, cerr := e.BreadcrumbComponents(); cerr == nil {
			latestStamped = c.Cycle
			sawStamped = true
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if sawStamped {
		return latestStamped, nil
	}
	return count + 1, nil
}

// reconcilePromptUUID returns the prompt_uuid of the most recent
// dev_drv_started whose matching dev_drv_ended has not yet been appended,
// or NonePrompt if every dev-drive interval has been closed (or none
// exist).
func reconcilePromptUUID(reader *eventlog.Reader) (string, error) {
	var started []string // in append order
	ended := map[string]bool{}

	err := reader.Stream(false, func(e eventlog.Event) error {
		switch e.EventName {
		case "dev_drv_started":
			if c, cerr := e.BreadcrumbComponents(); cerr == nil && c.Prompt != "" && c.Prompt != "none" {
				started = append(started, c.Prompt)
			}
		case "dev_drv_ended":
			if c, cerr := e.BreadcrumbComponents(); cerr == nil {
				ended[c.Prompt] = true
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	for i := len(started) - 1; i >= 0; i-- {
		if !ended[started[i]] {
			return started[i], nil
		}
	}
	return NonePrompt, nil
}

// Error wraps reconciliation failures that are not FallbackNotice-worthy
// (i.e. the log itself could not be read).
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("reconcile: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }
