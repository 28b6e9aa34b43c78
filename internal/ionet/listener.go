// Package ionet provides non-blocking TCP stream adapters wired directly
// into the reactor's readiness notifications rather than through the Go
// runtime's own network poller: every socket is created, bound, and
// driven with raw golang.org/x/sys/unix syscalls so that readiness
// registration, suspension, and wake-up all flow through internal/reactor
// and internal/executor exactly as the runtime's design describes, with
// nothing hidden inside net.Listener/net.Conn's own internal poller.
package ionet

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"reactorhttp/internal/executor"
	"reactorhttp/internal/reactor"
)

// Listener is a non-blocking, reactor-registered TCP listening socket.
type Listener struct {
	fd    int
	waker *reactor.IoWaker
	pool  *reactor.Pool
	addr  net.Addr
}

// Listen creates, binds, and registers a non-blocking IPv4 TCP listener on
// addr (host:port). backlog mirrors the second argument to listen(2).
func Listen(pool *reactor.Pool, addr string, backlog int) (*Listener, error) {
	host, port, err := splitHostPortIPv4(addr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("ionet: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ionet: setsockopt reuseaddr: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ionet: set nonblock: %w", err)
	}
	sa := &unix.SockaddrInet4{Port: port, Addr: host}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ionet: bind: %w", err)
	}
	if backlog <= 0 {
		backlog = 128
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ionet: listen: %w", err)
	}
	if bound, err := unix.Getsockname(fd); err == nil {
		if in4, ok := bound.(*unix.SockaddrInet4); ok {
			port = in4.Port
		}
	}

	waker, err := pool.Register(fd, reactor.Readable)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	return &Listener{
		fd:    fd,
		waker: waker,
		pool:  pool,
		addr:  &net.TCPAddr{IP: net.IPv4(host[0], host[1], host[2], host[3]), Port: port},
	}, nil
}

// Addr reports the listener's bound local address.
func (l *Listener) Addr() net.Addr { return l.addr }

// Accept returns a Future that resolves to one accepted connection.
// Poll it (directly, or via a Runtime's Spawn/BlockOn) to drive it.
func (l *Listener) Accept() *AcceptFuture {
	return &AcceptFuture{l: l}
}

// CancelPending forces any Accept future currently parked on this listener
// to resume. The resumed future will then observe the listener closing (if
// Close is called immediately after, as the server facade does on
// shutdown) and complete with an error instead of remaining suspended
// forever waiting for a readiness event that Close's deregistration never
// delivers.
func (l *Listener) CancelPending() {
	l.waker.Fire()
}

// Close deregisters the listener from the reactor and closes its socket.
func (l *Listener) Close() error {
	err := l.pool.Deregister(l.fd, l.waker)
	if cerr := unix.Close(l.fd); err == nil {
		err = cerr
	}
	return err
}

// AcceptFuture drives a single non-blocking accept(2) to completion,
// suspending via the listener's waker whenever the kernel reports
// EAGAIN/EWOULDBLOCK. Once Poll returns true, exactly one of Conn or Err
// is populated.
type AcceptFuture struct {
	l    *Listener
	Conn *Conn
	Err  error
}

var _ executor.Future = (*AcceptFuture)(nil)

func (f *AcceptFuture) Poll(wake func()) bool {
	nfd, _, err := unix.Accept(f.l.fd)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			f.l.waker.Set(wake)
			return false
		}
		f.Err = err
		return true
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		f.Err = err
		return true
	}
	conn, err := newConn(nfd, f.l.pool)
	if err != nil {
		f.Err = err
		return true
	}
	f.Conn = conn
	return true
}

func splitHostPortIPv4(addr string) (ip [4]byte, port int, err error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return ip, 0, fmt.Errorf("ionet: %w", err)
	}
	if host == "" {
		host = "0.0.0.0"
	}
	parsed := net.ParseIP(host)
	if parsed == nil {
		return ip, 0, fmt.Errorf("ionet: invalid host %q", host)
	}
	v4 := parsed.To4()
	if v4 == nil {
		return ip, 0, fmt.Errorf("ionet: only IPv4 addresses are supported, got %q", host)
	}
	copy(ip[:], v4)

	var p int
	if _, err := fmt.Sscanf(portStr, "%d", &p); err != nil {
		return ip, 0, fmt.Errorf("ionet: invalid port %q", portStr)
	}
	return ip, p, nil
}
