package executor

import "runtime"

// worker drains its own bounded local queue first, then tries to steal from
// a sibling's local queue, and only blocks on the shared global injector
// once both are empty. siblings is wired up by NewPool after every worker
// exists so stealing can see the whole pool.
type worker struct {
	id       int
	local    *localQueue
	injector *globalInjector
	siblings []*worker
	pool     *Pool
}

func newWorker(id int, injector *globalInjector, localCapacity int) *worker {
	return &worker{
		id:       id,
		local:    newLocalQueue(localCapacity),
		injector: injector,
	}
}

// run is the worker's main loop: pop-local, steal, block-on-global, repeat
// until the pool sends this worker its stop message. It registers itself
// under the current goroutine's id for the lifetime of the loop so Spawn
// can recognize calls made from inside a task's Poll and take the local
// fast path instead of always going through the injector.
func (w *worker) run() {
	gid := goroutineID()
	w.pool.registerWorker(gid, w)
	defer w.pool.unregisterWorker(gid)

	for {
		if t := w.local.pop(); t != nil {
			t.poll()
			continue
		}
		if t := w.steal(); t != nil {
			t.poll()
			continue
		}
		msg, ok := w.injector.recv()
		if !ok {
			return
		}
		if msg.stop {
			return
		}
		msg.task.poll()
	}
}

// goroutineID extracts the calling goroutine's id from its stack trace
// header ("goroutine 123 [running]: ..."). There is no cheaper stdlib way
// to ask "which goroutine am I"; called once per worker at loop startup; a
// Spawn call made from inside a task's Poll reuses that goroutine id, so
// Spawn itself calls this once per invocation, not once per poll.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// steal looks at every sibling's local queue once, taking the first task
// found. Cheap and unfair by design: correctness never depends on which
// worker finishes a task, only that it runs somewhere.
func (w *worker) steal() *Task {
	for _, sib := range w.siblings {
		if sib == w {
			continue
		}
		if t := sib.local.pop(); t != nil {
			return t
		}
	}
	return nil
}
