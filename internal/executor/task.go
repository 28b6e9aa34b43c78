// Package executor implements a work-stealing-flavored task pool: one
// shared global injector queue and N worker goroutines, each with a
// bounded local queue. A Task wraps a suspended Future plus the handle
// used to reschedule it; waking a task always re-enqueues it onto the
// global injector so wakeups are safe from any goroutine.
package executor

import (
	"sync"
	"sync/atomic"
)

// Future is the resumable-computation contract tasks drive. Poll attempts
// to make progress; if it cannot complete yet it must arrange for wake to
// be called exactly once when further progress is possible, and return
// false. Returning true means the future is complete and will not be
// polled again.
//
// This stands in for a language's native async fn/coroutine: Go has
// neither, so the runtime composes futures out of the non-blocking
// stream adapters' suspension points (see internal/ionet) and explicit
// state carried by the connection pipeline (see internal/conn).
type Future interface {
	Poll(wake func()) (done bool)
}

// atomicFuture is an exclusively-owned cell holding a suspended Future for
// the duration of one poll: Take empties it, Store repopulates it if the
// future returned Pending. Invariant: a Task is polled by at most one
// worker at any moment because only the worker holding the taken value
// may store it back.
type atomicFuture struct {
	v atomic.Pointer[Future]
}

func (a *atomicFuture) take() Future {
	p := a.v.Swap(nil)
	if p == nil {
		return nil
	}
	return *p
}

func (a *atomicFuture) store(f Future) {
	a.v.Store(&f)
}

// Task is a suspended Future plus the machinery to reschedule it onto the
// executor when its wake function is invoked. notify, if present, is
// signalled exactly once when the task completes; used only by BlockOn.
type Task struct {
	mu      sync.Mutex // held for the duration of one poll
	future  atomicFuture
	enqueue func(*Task)
	notify  chan struct{}
}

func newTask(f Future, enqueue func(*Task), notify chan struct{}) *Task {
	t := &Task{enqueue: enqueue, notify: notify}
	t.future.store(f)
	return t
}

// wake reschedules the task by pushing it back onto the global injector,
// regardless of which goroutine calls it. This is the only path a waiting
// Future uses to signal readiness, and it keeps the wake-by-reference
// cycle (task -> queue -> task) from leaking: the task is referenced
// strongly only while it sits in a queue or is being polled.
func (t *Task) wake() {
	t.enqueue(t)
}

func (t *Task) signalDone() {
	if t.notify != nil {
		select {
		case t.notify <- struct{}{}:
		default:
		}
	}
}

// poll drives one step of the task: take the future, poll it with a wake
// closure bound to this task, and either store it back (Pending) or
// signal completion (Ready/done). A wake fired from inside Poll can hand
// the task to another worker before the future is stored back; mu makes
// that worker wait for this poll to finish instead of finding the cell
// empty and dropping the wake.
func (t *Task) poll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	f := t.future.take()
	if f == nil {
		// Already complete, nothing to do.
		return
	}
	if f.Poll(t.wake) {
		t.signalDone()
		return
	}
	t.future.store(f)
}
