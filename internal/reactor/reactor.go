// Package reactor multiplexes OS readiness for an arbitrary number of
// non-blocking sockets and routes each readiness event to the single wake
// function registered for that socket at the time of the event.
//
// The design mirrors a slab-of-wakers reactor (as found in mio-backed
// executors): a fixed-capacity table of IoWaker slots, a free list of
// unused slots, and a dedicated goroutine running the poll loop. Token 0
// is reserved for the self-wake used to unblock the poll on Close.
package reactor

import (
	"errors"
	"sync/atomic"
)

// DefaultCapacity is the slot-table size used when callers don't override it.
// 16384 matches the default slab size used by comparable mio-based reactors.
const DefaultCapacity = 16384

// ErrNoFreeWakers is returned by Register when the slot table is exhausted.
// The caller should treat this as fatal resource exhaustion (Pool-Exhausted).
var ErrNoFreeWakers = errors.New("reactor: no free io wakers")

// ErrClosed is returned by operations attempted after Close.
var ErrClosed = errors.New("reactor: closed")

// Interest describes which readiness kind a registration cares about.
type Interest int

const (
	// Readable sources are registered read-interest only; this reactor is
	// read-readiness driven. Writes are attempted synchronously (see
	// internal/ionet) and never suspend.
	Readable Interest = iota
)

// wakerFunc is invoked at most once per registered readiness event.
type wakerFunc func()

// IoWaker is a reusable binding between a reactor slot (an immutable integer
// key) and the currently-registered wake function for the source bound to
// that slot. At most one wake function resides in the slot at a time; a
// fresh registration overwrites any prior one, and the event loop consumes
// (atomically takes) the waker exactly once per readiness event so that
// spurious wake storms are impossible.
type IoWaker struct {
	key    uint32
	fn     atomic.Pointer[wakerFunc]
	poller poller // bound at Register; rearmed by Set after a oneshot fire
	fd     int
}

// Key returns the slot's stable integer token, used by the poller as the
// event identifier for the source bound to this waker.
func (w *IoWaker) Key() uint32 { return w.key }

// Set installs fn as the waker to invoke on the next readiness event,
// overwriting whatever waker (if any) was previously registered, and
// rearms the underlying oneshot registration so that event can actually
// fire again. Without rearming, a oneshot fd that already delivered its
// one event stays disabled at the OS level forever.
func (w *IoWaker) Set(fn func()) {
	w.fn.Store(&fn)
	if w.poller != nil {
		w.poller.rearm(w.fd, w.key)
	}
}

// take atomically removes and returns the currently registered waker, or
// nil if none is set. Called only by the poll loop.
func (w *IoWaker) take() wakerFunc {
	p := w.fn.Swap(nil)
	if p == nil {
		return nil
	}
	return *p
}

// Fire takes and invokes any currently registered waker, exactly as a real
// readiness event would. Used to forcibly resume a future parked on this
// slot outside of a genuine readiness event, e.g. cancelling a pending
// accept when the listener is shutting down.
func (w *IoWaker) Fire() {
	if fn := w.take(); fn != nil {
		fn()
	}
}

// Pool owns the slot table, the free-slot queue, and the platform poller.
// Register/Deregister acquire and release slots; Run drives the poll loop
// until Close is called.
type Pool struct {
	poller poller
	slots  []IoWaker
	free   chan *IoWaker
	closed atomic.Bool
}

// New creates a Pool with the given slot-table capacity. Slot 0 is reserved
// as the self-wake token; slots 1..capacity-1 are pushed onto the free
// queue as fresh IoWakers.
func New(capacity int) (*Pool, error) {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	pool := &Pool{
		poller: p,
		slots:  make([]IoWaker, capacity),
		free:   make(chan *IoWaker, capacity-1),
	}
	for i := range pool.slots {
		pool.slots[i].key = uint32(i)
	}
	for i := 1; i < capacity; i++ {
		pool.free <- &pool.slots[i]
	}
	return pool, nil
}

// Register dequeues a free waker, binds fd to it under interest, and
// returns the waker so the caller (a stream adapter) can install wake
// functions on each poll attempt. Fails with ErrNoFreeWakers if the slot
// table is exhausted; the caller treats that as fatal resource exhaustion.
func (p *Pool) Register(fd int, interest Interest) (*IoWaker, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	var w *IoWaker
	select {
	case w = <-p.free:
	default:
		return nil, ErrNoFreeWakers
	}
	if err := p.poller.add(fd, w.key); err != nil {
		w.fn.Store(nil)
		p.free <- w
		return nil, err
	}
	w.poller = p.poller
	w.fd = fd
	return w, nil
}

// Deregister removes fd from the poller and returns waker to the free
// queue. Must be invoked on drop/close of any stream adapter, including
// error paths, so the free-waker invariant (slot count after all
// connections close equals the initial free count) holds.
func (p *Pool) Deregister(fd int, w *IoWaker) error {
	if p.closed.Load() {
		return ErrClosed
	}
	err := p.poller.remove(fd, w.key)
	w.fn.Store(nil)
	w.poller = nil
	w.fd = 0
	select {
	case p.free <- w:
	default:
		// capacity can't be exceeded since every waker originates from
		// exactly one free-queue slot; this branch is unreachable in
		// correct usage and only guards against double-deregistration.
	}
	return err
}

// Run blocks, polling for readiness events and waking the registered
// waker for each one, until shutdown is requested via Close. All poller errors are fatal and returned to the caller, which in
// practice is the errgroup supervising the reactor goroutine (internal/rtctx).
func (p *Pool) Run() error {
	for {
		tokens, err := p.poller.wait()
		if err != nil {
			if p.closed.Load() {
				return nil
			}
			return err
		}
		for _, tok := range tokens {
			if tok == 0 {
				// self-wake: only exists to interrupt the poll on Close.
				continue
			}
			if int(tok) >= len(p.slots) {
				continue
			}
			if fn := p.slots[tok].take(); fn != nil {
				fn()
			}
		}
	}
}

// Close stops the poll loop (Run returns nil) and releases the poller's
// OS resources. Safe to call once; subsequent Register/Deregister calls
// fail with ErrClosed.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.poller.close()
}

// FreeCount reports the number of currently unregistered slots. Exposed
// for tests asserting the testable property that the free count returns
// to its starting value once all connections close (spec invariant 3).
func (p *Pool) FreeCount() int { return len(p.free) }

// poller abstracts the platform-specific readiness primitive. wait returns
// the tokens (slot keys) that became ready; token 0 is the self-wake used
// to unblock a pending wait on close.
type poller interface {
	add(fd int, token uint32) error
	remove(fd int, token uint32) error
	rearm(fd int, token uint32) error
	wait() ([]uint32, error)
	close() error
}
