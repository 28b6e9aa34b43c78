// Package httpd is the server facade: it owns the listening socket and the
// accept loop, wiring internal/ionet, internal/rtctx, internal/conn, and
// internal/router together behind the small Start/Ready/Shutdown contract
// the runtime exposes to callers. Grounded on original_source's
// AIOServer/ServerHandle (start/async_run/handle/shutdown) and adapted from
// the teacher's cmd/server-embedded ListenAndServe loop.
package httpd

import (
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"reactorhttp/internal/conn"
	"reactorhttp/internal/executor"
	"reactorhttp/internal/ionet"
	"reactorhttp/internal/router"
	"reactorhttp/internal/rtctx"
)

// DefaultBacklog mirrors the teacher's implicit net.Listen backlog choice.
const DefaultBacklog = 128

// DefaultMaxInFlightConns bounds how many accepted connections may be
// registered with the reactor at once. Spec.md notes the accept layer has
// no built-in back-pressure and leaves an accept-rate limit unspecified;
// this realizes one so Pool-Exhausted is reached by a deliberate cap
// rather than by surprise when the reactor's slot table fills.
const DefaultMaxInFlightConns = 4096

// Options configures a Server.
type Options struct {
	Addr             string
	Backlog          int
	MaxInFlightConns int
	Logger           zerolog.Logger
}

// Server owns one listening socket and the accept loop that spawns a
// conn.Connection task per accepted client.
type Server struct {
	addr    string
	backlog int
	router  *router.Router
	rt      *rtctx.Runtime
	logger  zerolog.Logger

	ln      *ionet.Listener
	connSem *semaphore.Weighted

	readyCh  chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New builds a Server bound to rt's reactor/executor pair, dispatching
// accepted connections through r. Start must be called to actually bind
// and run the accept loop.
func New(rt *rtctx.Runtime, r *router.Router, opts Options) *Server {
	backlog := opts.Backlog
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	maxConns := opts.MaxInFlightConns
	if maxConns <= 0 {
		maxConns = DefaultMaxInFlightConns
	}
	return &Server{
		addr:    opts.Addr,
		backlog: backlog,
		router:  r,
		rt:      rt,
		logger:  opts.Logger,
		connSem: semaphore.NewWeighted(int64(maxConns)),
		readyCh: make(chan struct{}),
		stopCh:  make(chan struct{}),
	}
}

// Start binds the listener and runs the accept loop until Shutdown is
// called. It blocks for the lifetime of the server, matching spec.md §6's
// "start() runs until shutdown" contract.
func (s *Server) Start() error {
	ln, err := ionet.Listen(s.rt.Reactor, s.addr, s.backlog)
	if err != nil {
		close(s.readyCh)
		return err
	}
	s.ln = ln

	s.logger.Info().Str("addr", s.addr).Msg("accept loop ready")
	close(s.readyCh)

	loop := &acceptLoop{s: s}
	if err := s.rt.BlockOn(loop); err != nil {
		return err
	}
	return loop.err
}

// Ready blocks until the accept loop has bound its listening socket (or
// Start failed to do so).
func (s *Server) Ready() {
	<-s.readyCh
}

// Shutdown signals the accept loop to stop and forces any in-progress
// Accept to resume and observe the closing listener. It does not wait for
// in-flight connection handlers to finish: per spec.md's non-goals,
// graceful draining only covers cancelling the accept loop itself.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.ln != nil {
			s.ln.CancelPending()
			if err := s.ln.Close(); err != nil {
				s.logger.Trace().Err(err).Msg("error closing listener during shutdown")
			}
		}
		s.logger.Info().Msg("accept loop stopped")
	})
}

// Close is an alias for Shutdown, matching the original's Drop-implies-
// shutdown semantics.
func (s *Server) Close() error {
	s.Shutdown()
	return nil
}

// acceptLoop is the executor.Future that drives Listener.Accept in a loop,
// spawning one conn.Connection task per accepted socket.
type acceptLoop struct {
	s   *Server
	acc *ionet.AcceptFuture
	err error
}

func (f *acceptLoop) Poll(wake func()) bool {
	for {
		select {
		case <-f.s.stopCh:
			return true
		default:
		}

		if f.acc == nil {
			f.acc = f.s.ln.Accept()
		}
		if !f.acc.Poll(wake) {
			return false
		}

		acc := f.acc
		f.acc = nil

		if acc.Err != nil {
			select {
			case <-f.s.stopCh:
				return true
			default:
			}
			f.s.logger.Debug().Err(acc.Err).Msg("accept failed, stopping accept loop")
			f.err = acc.Err
			return true
		}

		if !f.s.connSem.TryAcquire(1) {
			f.s.logger.Debug().Msg("pool exhausted, rejecting connection")
			_ = acc.Conn.Close()
			continue
		}

		c := &boundedConn{inner: conn.New(acc.Conn, f.s.router, f.s.logger), sem: f.s.connSem}
		if _, err := f.s.rt.Spawn(c); err != nil {
			f.s.logger.Trace().Err(err).Msg("failed to spawn connection task")
			f.s.connSem.Release(1)
			_ = acc.Conn.Close()
		}
	}
}

// boundedConn releases its reservation on the server's connection
// semaphore once the wrapped connection finishes, so a sustained flood of
// short-lived connections doesn't need the full in-flight cap sized for
// its peak.
type boundedConn struct {
	inner *conn.Connection
	sem   *semaphore.Weighted
}

var _ executor.Future = (*boundedConn)(nil)

func (b *boundedConn) Poll(wake func()) bool {
	done := b.inner.Poll(wake)
	if done {
		b.sem.Release(1)
	}
	return done
}
