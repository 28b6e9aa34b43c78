package rtctx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reactorhttp/internal/executor"
)

type doneFuture struct{}

func (doneFuture) Poll(wake func()) bool { return true }

func TestStartStopLifecycle(t *testing.T) {
	resetForTest()

	rt, err := Start(Options{ReactorCapacity: 8, Workers: 2})
	require.NoError(t, err)
	require.NotNil(t, rt.Reactor)
	require.NotNil(t, rt.Exec)

	err = rt.BlockOn(doneFuture{})
	require.NoError(t, err)

	require.NoError(t, rt.Stop())
}

func TestDoubleStartPanics(t *testing.T) {
	resetForTest()

	rt, err := Start(Options{ReactorCapacity: 8, Workers: 1})
	require.NoError(t, err)
	defer rt.Stop()

	require.Panics(t, func() {
		_, _ = Start(Options{ReactorCapacity: 8, Workers: 1})
	})
}

func TestSpawnAfterStopFailsThroughRuntime(t *testing.T) {
	resetForTest()

	rt, err := Start(Options{ReactorCapacity: 8, Workers: 1})
	require.NoError(t, err)
	require.NoError(t, rt.Stop())

	_, err = rt.Spawn(doneFuture{})
	require.ErrorIs(t, err, executor.ErrStopped)

	t.Cleanup(resetForTest)
}

func TestStartAfterStopIsAllowed(t *testing.T) {
	resetForTest()

	rt1, err := Start(Options{ReactorCapacity: 8, Workers: 1})
	require.NoError(t, err)
	require.NoError(t, rt1.Stop())

	rt2, err := Start(Options{ReactorCapacity: 8, Workers: 1})
	require.NoError(t, err)
	defer rt2.Stop()

	select {
	case <-time.After(10 * time.Millisecond):
	}
}
