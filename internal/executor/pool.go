package executor

import (
	"errors"
	"runtime"
	"sync"
)

// ErrStopped is returned by Spawn and BlockOn once the pool has been
// instructed to Stop; no further tasks will be accepted.
var ErrStopped = errors.New("executor: pool stopped")

// Pool is the work-stealing-flavored task pool: a global injector shared by
// every worker plus one bounded local queue per worker. Spawn hands a
// Future to the pool to run to completion without waiting; BlockOn spawns
// and then waits for that one Future to finish.
type Pool struct {
	injector *globalInjector
	workers  []*worker

	byGoroutine sync.Map // goroutine id (uint64) -> *worker, populated by each worker's run loop

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewPool starts a pool with the given number of workers, each with a
// local queue of localCapacity (DefaultLocalCapacity if <= 0). workers <= 0
// defaults to runtime.NumCPU(), mirroring the teacher's CPU-sized pool
// sizing convention.
func NewPool(workers, localCapacity int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{
		injector: newGlobalInjector(),
	}
	p.workers = make([]*worker, workers)
	for i := range p.workers {
		p.workers[i] = newWorker(i, p.injector, localCapacity)
	}
	for _, w := range p.workers {
		w.siblings = p.workers
		w.pool = p
	}
	p.wg.Add(workers)
	for _, w := range p.workers {
		w := w
		go func() {
			defer p.wg.Done()
			w.run()
		}()
	}
	return p
}

// enqueue implements the Task reschedule path: wake always lands on the
// global injector, never a local queue, regardless of which goroutine
// calls it (see Task.wake).
func (p *Pool) enqueue(t *Task) {
	p.injector.sendTask(t)
}

// registerWorker/unregisterWorker/currentWorker let Spawn recognize a call
// made from inside one of the pool's own worker goroutines (e.g. a task's
// Poll spawning a child future) so it can take the local-queue fast path
// instead of always routing through the global injector.
func (p *Pool) registerWorker(gid uint64, w *worker) {
	p.byGoroutine.Store(gid, w)
}

func (p *Pool) unregisterWorker(gid uint64) {
	p.byGoroutine.Delete(gid)
}

func (p *Pool) currentWorker() *worker {
	v, ok := p.byGoroutine.Load(goroutineID())
	if !ok {
		return nil
	}
	return v.(*worker)
}

// Spawn schedules f to run to completion on the pool without blocking the
// caller. If the calling goroutine is one of the pool's own workers, the
// task is pushed directly onto that worker's local queue, spilling to the
// global injector only if the local queue is full; any other caller goes
// straight to the injector so an idle worker can pick the task up. Returns
// ErrStopped if the pool has already been told to Stop.
func (p *Pool) Spawn(f Future) (*Task, error) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, ErrStopped
	}
	p.mu.Unlock()

	t := newTask(f, p.enqueue, nil)
	p.scheduleInitial(t)
	return t, nil
}

// BlockOn spawns f and blocks the calling goroutine until it completes.
// Used by code outside the executor (e.g. a CLI entry point) that needs a
// synchronous boundary around otherwise-async work.
func (p *Pool) BlockOn(f Future) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.mu.Unlock()

	done := make(chan struct{}, 1)
	t := newTask(f, p.enqueue, done)
	p.scheduleInitial(t)
	<-done
	return nil
}

// scheduleInitial places a freshly spawned task onto the calling worker's
// local queue when Spawn is called from inside the pool (spilling to the
// global injector if that queue is full), or straight onto the injector
// when the caller isn't one of the pool's workers. A task's own wake
// re-enqueue always goes through the injector regardless (see enqueue),
// so only the initial placement takes this fast path.
func (p *Pool) scheduleInitial(t *Task) {
	if w := p.currentWorker(); w != nil && w.local.push(t) {
		return
	}
	p.injector.sendTask(t)
}

// Stop signals every worker to exit once its current queues drain, waits
// for them to do so, and rejects subsequent Spawn/BlockOn calls. Safe to
// call once; a second call is a no-op.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	for range p.workers {
		p.injector.sendStop()
	}
	p.wg.Wait()
	p.injector.shutdown()
}
