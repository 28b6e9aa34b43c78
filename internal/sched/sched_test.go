package sched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reactorhttp/internal/httpresp"
)

func echoTask(_ context.Context, params map[string]string) *httpresp.Response {
	r, _ := httpresp.OK().PlainText(params["v"]).Build()
	return r
}

func TestSubmitAndWaitRunsTask(t *testing.T) {
	p := NewPool("echo", echoTask, 2, 8)
	p.Start()
	defer p.Close()

	res, enqueued := p.SubmitAndWait(map[string]string{"v": "hi"}, time.Second)
	require.True(t, enqueued)
	require.Equal(t, 200, res.Code)
	require.Equal(t, "hi", string(res.Body))
	_, ok := res.Headers.Get("x-worker-id")
	require.True(t, ok)
}

func TestSubmitAndWaitBackpressure(t *testing.T) {
	blocked := make(chan struct{})
	slow := func(ctx context.Context, params map[string]string) *httpresp.Response {
		<-blocked
		r, _ := httpresp.OK().Build()
		return r
	}
	p := NewPool("slow", slow, 1, 1)
	p.Start()
	defer func() {
		close(blocked)
		p.Close()
	}()

	// Occupy the single worker and fill the tiny queue so the next submit
	// hits the submit-side timeout (backpressure) branch. The first submit
	// is taken off the queue by the worker; the second one fills the
	// normal-priority queue's single slot.
	go p.SubmitAndWait(nil, 5*time.Second)
	time.Sleep(20 * time.Millisecond)
	go p.SubmitAndWait(nil, 5*time.Second)
	time.Sleep(20 * time.Millisecond)

	_, enqueued := p.SubmitAndWaitCtx(context.Background(), "", nil, 10*time.Millisecond)
	require.False(t, enqueued)
}

func TestSubmitAndWaitCtxCancel(t *testing.T) {
	p := NewPool("cancel", echoTask, 1, 4)
	p.Start()
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, enqueued := p.SubmitAndWaitCtx(ctx, "", map[string]string{"v": "x"}, time.Second)
	require.True(t, enqueued)
	require.Equal(t, 503, res.Code)
}

func TestManagerRegisterDuplicateFails(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register("echo", NewPool("echo", echoTask, 1, 4)))
	err := m.Register("echo", NewPool("echo", echoTask, 1, 4))
	require.Error(t, err)
}

func TestManagerMetricsJSONIncludesPool(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register("echo", NewPool("echo", echoTask, 1, 4)))
	p, ok := m.Pool("echo")
	require.True(t, ok)
	_, _ = p.SubmitAndWait(map[string]string{"v": "x"}, time.Second)

	js := m.MetricsJSON()
	require.Contains(t, js, "echo")
	require.Contains(t, js, "queue_len")
}
