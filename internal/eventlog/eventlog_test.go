package eventlog

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempLogPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "agent_events_log.jsonl")
}

func TestAppendAndStream(t *testing.T) {
	path := tempLogPath(t)
	w := NewWriter(path)

	events := []Event{
		{Timestamp: 1, EventName: "session_started", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_none/t_1"},
		{Timestamp: 2, EventName: "dev_drv_started", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_cafef00d/t_2"},
		{Timestamp: 3, EventName: "dev_drv_ended", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_cafef00d/t_3"},
	}
	for _, e := range events {
		require.NoError(t, w.Append(e))
	}

	r := NewReader(path)
	var names []string
	require.NoError(t, r.Stream(false, func(e Event) error {
		names = append(names, e.EventName)
		return nil
	}))
	assert.Equal(t, []string{"session_started", "dev_drv_started", "dev_drv_ended"}, names)

	var reversed []string
	require.NoError(t, r.Stream(true, func(e Event) error {
		reversed = append(reversed, e.EventName)
		return nil
	}))
	assert.Equal(t, []string{"dev_drv_ended", "dev_drv_started", "session_started"}, reversed)
}

func TestReadMissingFileIsEmptyNotError(t *testing.T) {
	path := tempLogPath(t)
	r := NewReader(path)
	var count int
	err := r.Stream(false, func(Event) error { count++; return nil })
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestReaderToleratesMalformedTailLine(t *testing.T) {
	path := tempLogPath(t)
	w := NewWriter(path)
	require.NoError(t, w.Append(Event{Timestamp: 1, EventName: "session_started", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_none/t_1"}))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("{not valid json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r := NewReader(path)
	var count int
	err = r.Stream(false, func(Event) error { count++; return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestQueryFilters(t *testing.T) {
	path := tempLogPath(t)
	w := NewWriter(path)
	require.NoError(t, w.Append(Event{Timestamp: 1, EventName: "session_started", Breadcrumb: "s_deadbeef/c_1/g_abc1234/p_none/t_1"}))
	require.NoError(t, w.Append(Event{Timestamp: 2, EventName: "compaction_detected", Breadcrumb: "s_deadbeef/c_2/g_abc1234/p_none/t_2"}))
	require.NoError(t, w.Append(Event{Timestamp: 3, EventName: "dev_drv_started", Breadcrumb: "s_deadbeef/c_2/g_abc1234/p_cafef00d/t_3"}))

	r := NewReader(path)
	cycle2 := 2
	results, err := r.Query(Filters{BreadcrumbC: &cycle2})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = r.Query(Filters{EventName: "compaction_detected"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "compaction_detected", results[0].EventName)
}

func TestQuerySetOperations(t *testing.T) {
	path := tempLogPath(t)
	w := NewWriter(path)
	require.NoError(t, w.Append(Event{Timestamp: 1, EventName: "a", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_none/t_1"}))
	require.NoError(t, w.Append(Event{Timestamp: 2, EventName: "b", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_none/t_2"}))
	require.NoError(t, w.Append(Event{Timestamp: 3, EventName: "a", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_none/t_3"}))

	r := NewReader(path)
	qA := Filters{EventName: "a"}
	qB := Filters{EventName: "b"}

	union, err := r.QuerySet([]Filters{qA, qB}, SetUnion)
	require.NoError(t, err)
	assert.Len(t, union, 3)

	inter, err := r.QuerySet([]Filters{qA, qB}, SetIntersection)
	require.NoError(t, err)
	assert.Len(t, inter, 0)

	sub, err := r.QuerySet([]Filters{qA, qB}, SetSubtraction)
	require.NoError(t, err)
	assert.Len(t, sub, 2)
	for _, e := range sub {
		assert.Equal(t, "a", e.EventName)
	}
}

func TestReconstructStateAt(t *testing.T) {
	path := tempLogPath(t)
	w := NewWriter(path)
	require.NoError(t, w.Append(Event{Timestamp: 1, EventName: "session_started", Breadcrumb: "s_deadbeef/c_1/g_unknown/p_none/t_1"}))
	require.NoError(t, w.Append(Event{Timestamp: 5, EventName: "compaction_detected", Breadcrumb: "s_deadbeef/c_2/g_unknown/p_none/t_5"}))
	require.NoError(t, w.Append(Event{Timestamp: 10, EventName: "compaction_detected", Breadcrumb: "s_deadbeef/c_3/g_unknown/p_none/t_10"}))

	r := NewReader(path)
	st, err := r.ReconstructStateAt(7)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", st.SessionID)
	assert.Equal(t, 2, st.Cycle)
}

func TestConcurrentAppendsPreserveEveryEvent(t *testing.T) {
	path := tempLogPath(t)
	w := NewWriter(path)

	const writers = 8
	const perWriter = 1000

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				err := w.Append(Event{
					Timestamp:  float64(i*perWriter + j),
					EventName:  "concurrent_test",
					Breadcrumb: "s_deadbeef/c_1/g_unknown/p_none/t_1",
				})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	r := NewReader(path)
	var count int
	require.NoError(t, r.Stream(false, func(Event) error { count++; return nil }))
	assert.Equal(t, writers*perWriter, count)
}
