package jobs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reactorhttp/internal/httpresp"
	"reactorhttp/internal/sched"
)

func newTestManager(t *testing.T) (*Manager, *sched.Manager) {
	t.Helper()
	sm := sched.NewManager()
	fn := func(_ context.Context, params map[string]string) *httpresp.Response {
		r, _ := httpresp.OK().PlainText(params["v"]).Build()
		return r
	}
	require.NoError(t, sm.Register("echo", sched.NewPool("echo", fn, 1, 4)))
	jm := NewManager(sm, time.Hour)
	t.Cleanup(jm.Close)
	return jm, sm
}

func TestSubmitUnknownTaskReturnsEmptyID(t *testing.T) {
	jm, _ := newTestManager(t)
	require.Equal(t, "", jm.Submit("nope", nil, time.Second))
}

func TestSubmitRunsAndReportsDone(t *testing.T) {
	jm, _ := newTestManager(t)
	id := jm.Submit("echo", map[string]string{"v": "hi"}, time.Second)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		body, ok, err := jm.ResultJSON(id)
		return ok && err == nil && body == "hi"
	}, time.Second, 5*time.Millisecond)

	snap, ok := jm.SnapshotJSON(id)
	require.True(t, ok)
	require.Contains(t, snap, `"status":"done"`)
}

func TestResultNotReadyWhileRunning(t *testing.T) {
	blocked := make(chan struct{})
	sm := sched.NewManager()
	fn := func(_ context.Context, _ map[string]string) *httpresp.Response {
		<-blocked
		r, _ := httpresp.OK().Build()
		return r
	}
	require.NoError(t, sm.Register("slow", sched.NewPool("slow", fn, 1, 4)))
	jm := NewManager(sm, time.Hour)
	defer jm.Close()

	id := jm.Submit("slow", nil, time.Second)
	require.NotEmpty(t, id)

	_, _, err := jm.ResultJSON(id)
	require.ErrorIs(t, err, ErrNotReady)

	close(blocked)
}

func TestCancelMarksFailed(t *testing.T) {
	jm, _ := newTestManager(t)
	id := jm.Submit("echo", map[string]string{"v": "x"}, time.Second)
	require.NotEmpty(t, id)

	st, ok := jm.Cancel(id)
	require.True(t, ok)
	require.Contains(t, []Status{StatusFailed, StatusDone}, st)

	_, ok = jm.Cancel("missing")
	require.False(t, ok)
}

func TestListJSONIncludesSubmittedJob(t *testing.T) {
	jm, _ := newTestManager(t)
	id := jm.Submit("echo", map[string]string{"v": "x"}, time.Second)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		return strings.Contains(jm.ListJSON(), id)
	}, time.Second, 5*time.Millisecond)
}
