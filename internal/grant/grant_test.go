package grant

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

func TestCanonicalizeSortsAndDedups(t *testing.T) {
	got := Canonicalize([]string{"b", "a", "b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestExactSetEqualityRejectsSubsetAndSuperset(t *testing.T) {
	r := buildLog(t, []eventlog.Event{
		{Timestamp: 1, EventName: "grant_issued", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_none/t_1",
			Data: map[string]any{"grant_id": "g1", "target_set": []any{"task:1", "task:2"}}},
	})

	m, err := FindMatching(r, []string{"task:1"})
	require.NoError(t, err)
	assert.Nil(t, m, "subset must not match")

	m, err = FindMatching(r, []string{"task:1", "task:2", "task:3"})
	require.NoError(t, err)
	assert.Nil(t, m, "superset must not match")

	m, err = FindMatching(r, []string{"task:2", "task:1"})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "g1", m.ID)
}

func TestConsumedGrantNoLongerActive(t *testing.T) {
	r := buildLog(t, []eventlog.Event{
		{Timestamp: 1, EventName: "grant_issued", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_none/t_1",
			Data: map[string]any{"grant_id": "g1", "target_set": []any{"task:1"}}},
		{Timestamp: 2, EventName: "grant_consumed", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_none/t_2",
			Data: map[string]any{"grant_id": "g1"}},
	})
	m, err := FindMatching(r, []string{"task:1"})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestClearedGrantNoLongerActive(t *testing.T) {
	r := buildLog(t, []eventlog.Event{
		{Timestamp: 1, EventName: "grant_issued", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_none/t_1",
			Data: map[string]any{"grant_id": "g1", "target_set": []any{"task:1"}}},
		{Timestamp: 2, EventName: "grant_cleared", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_none/t_2",
			Data: map[string]any{"grant_id": "g1"}},
	})
	m, err := FindMatching(r, []string{"task:1"})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestIsGated(t *testing.T) {
	assert.True(t, IsGated("task-delete", ""))
	assert.True(t, IsGated("task-update", "protected"))
	assert.False(t, IsGated("task-update", "title"))
	assert.False(t, IsGated("task-read", ""))
}
