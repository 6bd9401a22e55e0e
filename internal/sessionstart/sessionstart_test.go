package sessionstart

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maceff/macf/internal/eventlog"
)

func buildLog(t *testing.T, events []eventlog.Event) *eventlog.Reader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent_events_log.jsonl")
	w := eventlog.NewWriter(path)
	for _, e := range events {
		require.NoError(t, w.Append(e))
	}
	return eventlog.NewReader(path)
}

func TestClassifyCompactAlwaysWins(t *testing.T) {
	r := buildLog(t, nil)
	res, err := Classify(r, Input{SessionID: "deadbeef", Source: SourceCompact})
	require.NoError(t, err)
	assert.Equal(t, ClassCompact, res.Classification)
	assert.Equal(t, 2, res.Cycle)
}

func TestClassifyStartupWhenNoHistory(t *testing.T) {
	r := buildLog(t, nil)
	res, err := Classify(r, Input{SessionID: "deadbeef", Source: SourceStartup})
	require.NoError(t, err)
	assert.Equal(t, ClassStartup, res.Classification)
	assert.Equal(t, 1, res.Cycle)
}

func TestClassifyMigrationOnSessionIDMismatch(t *testing.T) {
	r := buildLog(t, []eventlog.Event{
		{Timestamp: 1, EventName: "session_started", Breadcrumb: "s_01234567/c_1/g_unknown/p_none/t_1", Data: map[string]any{"session_id": "previous-session-uuid"}},
	})
	res, err := Classify(r, Input{SessionID: "deadbeef", Source: SourceStartup, TranscriptSizeBytes: 4096})
	require.NoError(t, err)
	assert.Equal(t, ClassMigration, res.Classification)
	assert.Equal(t, "previous-session-uuid", res.PreviousSessionID)
	assert.Equal(t, int64(4096), res.OrphanedBytes)
}

func TestClassifyNoMigrationRightAfterUnmatchedCompaction(t *testing.T) {
	r := buildLog(t, []eventlog.Event{
		{Timestamp: 1, EventName: "session_started", Breadcrumb: "s_01234567/c_1/g_unknown/p_none/t_1", Data: map[string]any{"session_id": "previous-session-uuid"}},
		{Timestamp: 2, EventName: "compaction_detected", Breadcrumb: "s_01234567/c_2/g_unknown/p_none/t_2"},
	})
	res, err := Classify(r, Input{SessionID: "deadbeef", Source: SourceStartup})
	require.NoError(t, err)
	assert.NotEqual(t, ClassMigration, res.Classification)
}

func TestLatestArtifactMissingDirReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	_, ok := Latest(dir, VisibilityPrivate, KindCheckpoints)
	assert.False(t, ok)
}

func TestLatestArtifactPicksLexicographicMax(t *testing.T) {
	dir := t.TempDir()
	artifactsDir := filepath.Join(dir, "agent", "private", "checkpoints")
	require.NoError(t, os.MkdirAll(artifactsDir, 0o750))
	names := []string{
		"2026-01-01_120000_early_checkpoint.md",
		"2026-06-15_093000_later_checkpoint.md",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(artifactsDir, n), []byte("x"), 0o600))
	}
	path, ok := Latest(dir, VisibilityPrivate, KindCheckpoints)
	require.True(t, ok)
	assert.Equal(t, "2026-06-15_093000_later_checkpoint.md", filepath.Base(path))
}

func TestComposeMinimalHasNoArtifactReferences(t *testing.T) {
	payload := ComposeMinimal(ClassResume, 1)
	assert.Contains(t, payload.SystemMessage, "resume")
	assert.NotContains(t, payload.SystemMessage, "checkpoint")
}

func TestComposeCompactOrdersArtifacts(t *testing.T) {
	payload := ComposeCompact(2, ArtifactPaths{
		LatestReflection: "r.md",
		LatestRoadmap:    "m.md",
		LatestCheckpoint: "c.md",
	})
	ri := indexOf(payload.SystemMessage, "r.md")
	mi := indexOf(payload.SystemMessage, "m.md")
	ci := indexOf(payload.SystemMessage, "c.md")
	assert.True(t, ri < mi && mi < ci, "expected reflection < roadmap < checkpoint ordering")
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
