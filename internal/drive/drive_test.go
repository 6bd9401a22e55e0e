package drive

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maceff/macf/internal/breadcrumb"
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

// crumb builds a breadcrumb string stamping session (a full host
// session_id, digested the same way Stats digests its sessionID
// argument) at the given timestamp and prompt.
func crumb(session string, cycle int, prompt string, epoch int64) string {
	return fmt.Sprintf("s_%s/c_%d/g_unknown/p_%s/t_%d",
		breadcrumb.SessionComponent(session), cycle, breadcrumb.PromptComponent(prompt), epoch)
}

func TestStatsPairsClosedInterval(t *testing.T) {
	r := buildLog(t, []eventlog.Event{
		{Timestamp: 10, EventName: "dev_drv_started", Breadcrumb: crumb("session-a", 1, "prompt-1", 10)},
		{Timestamp: 25, EventName: "dev_drv_ended", Breadcrumb: crumb("session-a", 1, "prompt-1", 25)},
	})
	stats, err := Stats(r, KindDev, "session-a")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.False(t, stats[0].Open)
	assert.Equal(t, 15.0, stats[0].DurationSeconds)
}

func TestStatsReportsOrphanAsOpen(t *testing.T) {
	r := buildLog(t, []eventlog.Event{
		{Timestamp: 10, EventName: "dev_drv_started", Breadcrumb: crumb("session-a", 1, "prompt-1", 10)},
	})
	stats, err := Stats(r, KindDev, "session-a")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.True(t, stats[0].Open)
	assert.Equal(t, 1, OpenCount(stats))
}

func TestStatsIgnoresOtherSessions(t *testing.T) {
	r := buildLog(t, []eventlog.Event{
		{Timestamp: 10, EventName: "dev_drv_started", Breadcrumb: crumb("session-b", 1, "prompt-1", 10)},
		{Timestamp: 11, EventName: "dev_drv_ended", Breadcrumb: crumb("session-b", 1, "prompt-1", 11)},
	})
	stats, err := Stats(r, KindDev, "session-a")
	require.NoError(t, err)
	assert.Len(t, stats, 0)
}

func TestDelegationDriveUsesDistinctEventNames(t *testing.T) {
	r := buildLog(t, []eventlog.Event{
		{Timestamp: 10, EventName: "deleg_drv_started", Breadcrumb: crumb("session-a", 1, "prompt-1", 10)},
		{Timestamp: 20, EventName: "deleg_drv_ended", Breadcrumb: crumb("session-a", 1, "prompt-1", 20)},
	})
	stats, err := Stats(r, KindDeleg, "session-a")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.False(t, stats[0].Open)

	devStats, err := Stats(r, KindDev, "session-a")
	require.NoError(t, err)
	assert.Len(t, devStats, 0)
}
