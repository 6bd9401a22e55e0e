package reconcile

import (
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

func TestReconcilePrefersHookInputSessionID(t *testing.T) {
	r := buildLog(t, nil)
	tuple, notices, err := Reconcile(r, HookInput{SessionID: "deadbeef"})
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", tuple.SessionID)
	assert.Equal(t, 1, tuple.Cycle)
	assert.Equal(t, NonePrompt, tuple.PromptUUID)
	assert.Empty(t, notices)
}

func TestReconcileFallsBackToEventLogSessionID(t *testing.T) {
	r := buildLog(t, []eventlog.Event{
		{Timestamp: 1, EventName: "session_started", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_none/t_1"},
	})
	tuple, _, err := Reconcile(r, HookInput{})
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", tuple.SessionID)
}

func TestReconcileNoticesWhenNothingAuthoritative(t *testing.T) {
	r := buildLog(t, nil)
	tuple, notices, err := Reconcile(r, HookInput{})
	require.NoError(t, err)
	assert.Equal(t, "", tuple.SessionID)
	require.Len(t, notices, 1)
	assert.Equal(t, "session_id", notices[0].Field)
	assert.Equal(t, FallbackNoEventLogHistory, notices[0].Source)
}

func TestReconcileCycleCanonicalFromLatestCompaction(t *testing.T) {
	r := buildLog(t, []eventlog.Event{
		{Timestamp: 1, EventName: "session_started", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_none/t_1"},
		{Timestamp: 2, EventName: "compaction_detected", Breadcrumb: "s_deadbeef/c_2/g_unknown/p_none/t_2"},
		{Timestamp: 3, EventName: "compaction_detected", Breadcrumb: "s_deadbeef/c_5/g_unknown/p_none/t_3"},
	})
	tuple, _, err := Reconcile(r, HookInput{SessionID: "deadbeef"})
	require.NoError(t, err)
	assert.Equal(t, 5, tuple.Cycle)
}

func TestReconcilePromptUUIDOpenInterval(t *testing.T) {
	r := buildLog(t, []eventlog.Event{
		{Timestamp: 1, EventName: "dev_drv_started", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_cafef00d/t_1"},
		{Timestamp: 2, EventName: "dev_drv_started", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_0ff1ce00/t_2"},
		{Timestamp: 3, EventName: "dev_drv_ended", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_cafef00d/t_3"},
	})
	tuple, _, err := Reconcile(r, HookInput{SessionID: "deadbeef"})
	require.NoError(t, err)
	assert.Equal(t, "0ff1ce00", tuple.PromptUUID)
}

func TestReconcilePromptUUIDNoneWhenAllClosed(t *testing.T) {
	r := buildLog(t, []eventlog.Event{
		{Timestamp: 1, EventName: "dev_drv_started", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_cafef00d/t_1"},
		{Timestamp: 2, EventName: "dev_drv_ended", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_cafef00d/t_2"},
	})
	tuple, _, err := Reconcile(r, HookInput{SessionID: "deadbeef"})
	require.NoError(t, err)
	assert.Equal(t, NonePrompt, tuple.PromptUUID)
}

func TestReconcileIsPure(t *testing.T) {
	r := buildLog(t, []eventlog.Event{
		{Timestamp: 1, EventName: "session_started", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_none/t_1"},
		{Timestamp: 2, EventName: "compaction_detected", Breadcrumb: "s_deadbeef/c_2/g_unknown/p_none/t_2"},
	})
	in := HookInput{}
	t1, n1, err1 := Reconcile(r, in)
	require.NoError(t, err1)
	t2, n2, err2 := Reconcile(r, in)
	require.NoError(t, err2)
	assert.Equal(t, t1, t2)
	assert.Equal(t, n1, n2)
}
