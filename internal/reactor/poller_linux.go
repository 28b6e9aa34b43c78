//go:build linux

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

const maxEpollEvents = 256

// epollPoller implements poller on top of Linux epoll, grounded on
// joeycumines-go-utilpkg/eventloop's FastPoller: a single epoll instance,
// a preallocated event buffer, and an eventfd used as the self-wake token
// (slot 0) to interrupt a blocked EpollWait on Close.
type epollPoller struct {
	epfd     int
	wakeFd   int
	eventBuf [maxEpollEvents]unix.EpollEvent

	mu     sync.Mutex
	closed bool
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	p := &epollPoller{epfd: epfd, wakeFd: wakeFd}
	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: 0}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, ev); err != nil {
		unix.Close(wakeFd)
		unix.Close(epfd)
		return nil, err
	}
	return p, nil
}

// oneshotFlags arms a registration for exactly one readiness event.
// EPOLLONESHOT disables the fd after it fires until explicitly rearmed via
// EPOLL_CTL_MOD; without it a level-triggered fd that stays readable after
// its one registered waker is taken (e.g. a socket with more buffered data
// than one read drained) would keep firing and spin EpollWait against an
// empty slot on every iteration until the next read drains it.
const oneshotFlags = unix.EPOLLIN | unix.EPOLLONESHOT

func (p *epollPoller) add(fd int, token uint32) error {
	ev := &unix.EpollEvent{Events: oneshotFlags, Fd: int32(token)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (p *epollPoller) remove(fd int, token uint32) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// rearm re-enables a EPOLLONESHOT registration for one more event. Called
// by IoWaker.Set each time a future installs a new wake function, so a
// slot that isn't currently waiting on anything (no Set since its last
// Fire) can't generate an event with nothing to invoke.
func (p *epollPoller) rearm(fd int, token uint32) error {
	ev := &unix.EpollEvent{Events: oneshotFlags, Fd: int32(token)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (p *epollPoller) wait() ([]uint32, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], -1)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	tokens := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		fd := p.eventBuf[i].Fd
		if fd == 0 {
			// self-wake: drain the eventfd counter.
			var buf [8]byte
			unix.Read(p.wakeFd, buf[:])
		}
		tokens = append(tokens, uint32(fd))
	}
	return tokens, nil
}

func (p *epollPoller) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	// Wake the blocked EpollWait so Run observes closed and returns.
	var one [8]byte
	one[0] = 1
	unix.Write(p.wakeFd, one[:])
	unix.Close(p.wakeFd)
	return unix.Close(p.epfd)
}
