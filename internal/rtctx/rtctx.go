// Package rtctx bundles one reactor.Pool and one executor.Pool into a
// single Runtime handle. The original design ties a thread-local context
// to the OS thread running the reactor/executor; Go has no equivalent of
// a thread-local that survives goroutine rescheduling, so the handles are
// carried explicitly instead: the server facade takes a *Runtime, and the
// stream adapters take the runtime's *reactor.Pool, rather than reaching
// for ambient per-thread state.
package rtctx

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"reactorhttp/internal/executor"
	"reactorhttp/internal/reactor"
)

var (
	mu      sync.Mutex
	started bool
)

// Options configures a Runtime. Zero values fall back to defaults: the
// reactor's DefaultCapacity slot table and a worker per CPU.
type Options struct {
	ReactorCapacity    int
	Workers            int
	LocalQueueCapacity int
}

// Runtime is the process's single reactor + executor pairing. At most one
// is live per process at a time, matching the single-reactor,
// single-executor-pool design described by the runtime's original
// thread-local context: Start enforces this by panicking when called
// while another Runtime has not yet been stopped.
type Runtime struct {
	Reactor *reactor.Pool
	Exec    *executor.Pool

	group  *errgroup.Group
	cancel context.CancelFunc
}

// Start brings up the reactor and executor pools and begins running the
// reactor's poll loop under errgroup supervision. A second call before
// the first Runtime's Stop panics, since two live reactor/executor
// pairings in the same process would split registrations across two
// unrelated slot tables; after Stop, Start may be called again.
func Start(opts Options) (*Runtime, error) {
	mu.Lock()
	if started {
		mu.Unlock()
		panic("rtctx: Start called more than once per process")
	}
	started = true
	mu.Unlock()

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	reactorPool, err := reactor.New(opts.ReactorCapacity)
	if err != nil {
		mu.Lock()
		started = false
		mu.Unlock()
		return nil, err
	}
	execPool := executor.NewPool(workers, opts.LocalQueueCapacity)

	ctx, cancel := context.WithCancel(context.Background())
	g, _ := errgroup.WithContext(ctx)
	g.Go(reactorPool.Run)

	return &Runtime{Reactor: reactorPool, Exec: execPool, group: g, cancel: cancel}, nil
}

// Spawn schedules f to run to completion without blocking the caller.
func (rt *Runtime) Spawn(f executor.Future) (*executor.Task, error) {
	return rt.Exec.Spawn(f)
}

// BlockOn schedules f and blocks until it completes. Intended for the few
// synchronous boundaries a runtime needs (a CLI entry point, a signal
// handler draining in-flight work) rather than for use inside futures
// themselves.
func (rt *Runtime) BlockOn(f executor.Future) error {
	return rt.Exec.BlockOn(f)
}

// Stop drains the executor, closes the reactor (which unblocks its poll
// loop), cancels the supervising context, and waits for the reactor
// goroutine to return. Safe to call once; intended to run during process
// shutdown.
func (rt *Runtime) Stop() error {
	rt.Exec.Stop()
	closeErr := rt.Reactor.Close()
	rt.cancel()
	waitErr := rt.group.Wait()

	mu.Lock()
	started = false
	mu.Unlock()

	if closeErr != nil {
		return closeErr
	}
	return waitErr
}

// resetForTest clears the singleton guard between test cases in this
// package. Never called outside _test.go files.
func resetForTest() {
	mu.Lock()
	started = false
	mu.Unlock()
}
