package sessionstart

import "fmt"

// RecoveryPayload is the composed session_start message, in one of the
// three shapes spec §4.F step 4 describes. Only SystemMessage is ever
// populated — session_start is a Shape S handler (spec §4.E: all handlers
// except pre/post-tool-use and user-prompt-submit).
type RecoveryPayload struct {
	SystemMessage string
}

// ArtifactPaths bundles what artifact discovery found for a compact
// recovery, each "" if none was found.
type ArtifactPaths struct {
	LatestReflection string
	LatestRoadmap    string
	LatestCheckpoint string
}

// ComposeCompact builds the urgent restoration payload (spec §4.F step 4):
// load order is latest reflection, then latest roadmap, then latest
// checkpoint, followed by a synthesis prompt.
func ComposeCompact(cycle int, artifacts ArtifactPaths) RecoveryPayload {
	msg := fmt.Sprintf(
		"CONSCIOUSNESS CONTINUITY: session compacted, now in cycle %d. Restore working context before proceeding:\n", cycle)

	ordered := []struct {
		label string
		path  string
	}{
		{"latest reflection", artifacts.LatestReflection},
		{"latest roadmap", artifacts.LatestRoadmap},
		{"latest checkpoint", artifacts.LatestCheckpoint},
	}
	any := false
	for _, o := range ordered {
		if o.path == "" {
			continue
		}
		any = true
		msg += fmt.Sprintf("  - load %s: %s\n", o.label, o.path)
	}
	if !any {
		msg += "  - no prior artifacts found; proceed from the event log alone\n"
	}
	msg += "After loading, synthesize what changed and what remains before resuming the interrupted task."

	return RecoveryPayload{SystemMessage: msg}
}

// ComposeMigration builds the calm restoration payload for a migration
// (spec §4.F step 4): directs recovery of pending task-list state via the
// event log, no compaction-style urgency framing.
func ComposeMigration(previousSessionID string, orphanedBytes int64) RecoveryPayload {
	msg := fmt.Sprintf("Session migrated from %s. Query the event log for any pending task-list state before continuing.", previousSessionID)
	if orphanedBytes > 0 {
		msg += fmt.Sprintf(" The prior session's transcript (%d bytes) was left orphaned.", orphanedBytes)
	}
	return RecoveryPayload{SystemMessage: msg}
}

// ComposeMinimal builds the minimal banner for startup|resume|clear (spec
// §4.F step 4): no artifact references.
func ComposeMinimal(classification Classification, cycle int) RecoveryPayload {
	return RecoveryPayload{
		SystemMessage: fmt.Sprintf("Session %s (cycle %d).", classification, cycle),
	}
}

// Compose dispatches to the correct payload shape for result.Classification,
// fetching artifacts only for compact/migration (spec §4.F step 3: "only
// for compact and migration").
func Compose(agentHome string, result Result) RecoveryPayload {
	switch result.Classification {
	case ClassCompact:
		reflection, _ := Latest(agentHome, VisibilityPrivate, KindReflections)
		roadmap, _ := Latest(agentHome, VisibilityPrivate, KindRoadmaps)
		checkpoint, _ := Latest(agentHome, VisibilityPrivate, KindCheckpoints)
		return ComposeCompact(result.Cycle, ArtifactPaths{
			LatestReflection: reflection,
			LatestRoadmap:    roadmap,
			LatestCheckpoint: checkpoint,
		})
	case ClassMigration:
		return ComposeMigration(result.PreviousSessionID, result.OrphanedBytes)
	default:
		return ComposeMinimal(result.Classification, result.Cycle)
	}
}
