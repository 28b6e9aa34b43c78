package ionet

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"

	"reactorhttp/internal/executor"
	"reactorhttp/internal/reactor"
)

func gosched() { runtime.Gosched() }

// Conn is a non-blocking, reactor-registered TCP connection. Reads
// suspend through the reactor when the socket has no data ready; writes
// are attempted synchronously and never suspend, per the runtime's
// design: a write that would block is retried after runtime.Gosched
// rather than registering a waker, since this reactor's event loop is
// read-readiness driven only.
type Conn struct {
	fd    int
	waker *reactor.IoWaker
	pool  *reactor.Pool
}

func newConn(fd int, pool *reactor.Pool) (*Conn, error) {
	waker, err := pool.Register(fd, reactor.Readable)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Conn{fd: fd, waker: waker, pool: pool}, nil
}

// Fd exposes the raw file descriptor for callers (tests, diagnostics)
// that need it; the connection still owns the descriptor's lifecycle.
func (c *Conn) Fd() int { return c.fd }

// Read returns a Future that resolves once at least one byte has been
// read into buf, EOF is reached (n == 0, err == nil), or a non-EAGAIN
// error occurs.
func (c *Conn) Read(buf []byte) *ReadFuture {
	return &ReadFuture{c: c, buf: buf}
}

// ReadFuture drives one non-blocking read(2) to completion, suspending
// via the connection's waker on EAGAIN/EWOULDBLOCK.
type ReadFuture struct {
	c   *Conn
	buf []byte
	N   int
	Err error
}

var _ executor.Future = (*ReadFuture)(nil)

func (f *ReadFuture) Poll(wake func()) bool {
	n, err := unix.Read(f.c.fd, f.buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			f.c.waker.Set(wake)
			return false
		}
		f.Err = err
		return true
	}
	f.N = n
	return true
}

// Write attempts to write all of buf synchronously. It retries on
// EINTR and on short writes, and on EAGAIN/EWOULDBLOCK it yields briefly
// with runtime.Gosched before retrying rather than suspending through the
// reactor: writes are scoped out of the suspension machinery by design,
// so a persistently unwritable socket here degrades to busy retry instead
// of a blocked future.
func (c *Conn) Write(buf []byte) (int, error) {
	return writeAll(c.fd, buf)
}

// Close deregisters the connection from the reactor and closes its
// socket. Releases the waker back to the reactor's free-slot queue,
// matching the free-count-returns-to-baseline invariant.
func (c *Conn) Close() error {
	err := c.pool.Deregister(c.fd, c.waker)
	if cerr := unix.Close(c.fd); err == nil {
		err = cerr
	}
	return err
}

func writeAll(fd int, buf []byte) (int, error) {
	written := 0
	for written < len(buf) {
		n, err := unix.Write(fd, buf[written:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				gosched()
				continue
			}
			return written, fmt.Errorf("ionet: write: %w", err)
		}
		written += n
	}
	return written, nil
}
