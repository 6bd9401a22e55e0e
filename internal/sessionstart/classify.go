// Package sessionstart implements the Session-Start Detector & Recovery
// Composer (spec §4.F): classifying each session_start invocation as
// startup, resume, clear, compact, or migration, discovering recovery
// artifacts, and composing the three recovery payload shapes.
package sessionstart

import (
	"github.com/maceff/macf/internal/eventlog"
)

// Classification is the session_start outcome (spec §4.F).
type Classification string

const (
	ClassStartup   Classification = "startup"
	ClassResume    Classification = "resume"
	ClassClear     Classification = "clear"
	ClassCompact   Classification = "compact"
	ClassMigration Classification = "migration"
)

// Source is the host-provided source field, when present.
type Source string

const (
	SourceStartup Source = "startup"
	SourceResume  Source = "resume"
	SourceClear   Source = "clear"
	SourceCompact Source = "compact"
)

// Result is the classifier's full outcome: the classification, the cycle
// to stamp, and migration-specific informational fields.
type Result struct {
	Classification    Classification
	Cycle             int
	PreviousSessionID string // migration only
	OrphanedBytes     int64  // migration only, 0 if unresolvable
}

// Input is what the classifier needs from the current session_start
// invocation.
type Input struct {
	SessionID          string
	Source             Source // "" if the host didn't provide one
	TranscriptSizeBytes int64 // 0 if unresolvable; used only for migration info
}

// Classify implements spec §4.F step 2: compact wins outright; else a
// session-id mismatch against the log's last known session (with no
// intervening unmatched compaction) is a migration; else fall back to the
// host-provided source.
func Classify(reader *eventlog.Reader, in Input) (Result, error) {
	if in.Source == SourceCompact {
		cycle, err := nextCompactionCycle(reader)
		if err != nil {
			return Result{}, err
		}
		return Result{Classification: ClassCompact, Cycle: cycle}, nil
	}

	lastSessionID, lastWasUnmatchedCompaction, err := lastKnownSession(reader)
	if err != nil {
		return Result{}, err
	}

	if lastSessionID != "" && lastSessionID != in.SessionID && !lastWasUnmatchedCompaction {
		cycle, cerr := currentCycle(reader)
		if cerr != nil {
			return Result{}, cerr
		}
		return Result{
			Classification:    ClassMigration,
			Cycle:             cycle,
			PreviousSessionID: lastSessionID,
			OrphanedBytes:     in.TranscriptSizeBytes,
		}, nil
	}

	cycle, err := currentCycle(reader)
	if err != nil {
		return Result{}, err
	}

	switch in.Source {
	case SourceResume:
		return Result{Classification: ClassResume, Cycle: cycle}, nil
	case SourceClear:
		return Result{Classification: ClassClear, Cycle: cycle}, nil
	default:
		return Result{Classification: ClassStartup, Cycle: cycle}, nil
	}
}

// lastKnownSession returns the full host session_id of the most recent
// session_started/migration_detected event, and whether the very latest
// log entry overall was an unmatched compaction_detected (i.e. a compact
// classification that hasn't yet been followed by its session_started).
// The full session_id is read from the event's Data field, not its
// breadcrumb — the breadcrumb's "s_" component is an 8-hex digest (spec
// §4.B) and comparing digests for migration detection would both lose
// the real identifier and risk false negatives on digest collision.
func lastKnownSession(reader *eventlog.Reader) (string, bool, error) {
	var lastSession string
	var veryLastEvent string

	err := reader.Stream(true, func(e eventlog.Event) error {
		if veryLastEvent == "" {
			veryLastEvent = e.EventName
		}
		if lastSession == "" && (e.EventName == "session_started" || e.EventName == "migration_detected") {
			if sid, ok := e.Data["session_id"].(string); ok && sid != "" {
				lastSession = sid
			}
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return lastSession, veryLastEvent == "compaction_detected", nil
}

// currentCycle returns the cycle stamped on the latest compaction_detected
// event, or 1 if none has ever occurred (spec §4.D: "first cycle is 1").
func currentCycle(reader *eventlog.Reader) (int, error) {
	cycle := 1
	err := reader.Stream(true, func(e eventlog.Event) error {
		if e.EventName == "compaction_detected" {
			if c, cerr := e.BreadcrumbComponents(); cerr == nil {
				cycle = c.Cycle
			}
			return errStopIteration
		}
		return nil
	})
	if err != nil && err != errStopIteration {
		return 0, err
	}
	return cycle, nil
}

// nextCompactionCycle returns one more than the current cycle, for the
// compact classification which always increments (spec §4.F step 2).
func nextCompactionCycle(reader *eventlog.Reader) (int, error) {
	c, err := currentCycle(reader)
	if err != nil {
		return 0, err
	}
	return c + 1, nil
}

// errStopIteration is a sentinel used internally to short-circuit
// Stream's reverse walk once the first matching event is found; it never
// escapes this package.
var errStopIteration = stopIterationErr{}

type stopIterationErr struct{}

func (stopIterationErr) Error() string { return "sessionstart: internal stop iteration" }
