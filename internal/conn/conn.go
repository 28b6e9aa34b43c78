// Package conn implements the per-connection pipeline: the executor task
// that reads from one accepted socket, incrementally parses pipelined
// HTTP/1.1 requests, dispatches each to the router, and writes back
// responses in arrival order. This is the adapted counterpart of the
// teacher's internal/server.HandleConn, reshaped from a blocking
// goroutine-per-connection loop into an executor.Future so the reactor
// and executor drive its suspension points instead of the Go runtime's
// netpoller.
package conn

import (
	"strings"

	"github.com/rs/zerolog"

	"reactorhttp/internal/executor"
	"reactorhttp/internal/httpparse"
	"reactorhttp/internal/httpreq"
	"reactorhttp/internal/ionet"
	"reactorhttp/internal/router"
	"reactorhttp/internal/util"
)

const scratchSize = 8192

// Connection drives one accepted socket end to end: read, parse, dispatch,
// write, repeat, until EOF, a fatal error, or a request asking to close.
type Connection struct {
	ID     string
	stream *ionet.Conn
	router *router.Router
	logger zerolog.Logger

	readBuf []byte
	scratch [scratchSize]byte

	pending *ionet.ReadFuture
	closed  bool
}

// New wraps an accepted stream with the dispatch pipeline. The id is used
// only for log correlation; it carries no protocol meaning.
func New(stream *ionet.Conn, r *router.Router, logger zerolog.Logger) *Connection {
	id := util.NewReqID()
	return &Connection{
		ID:     id,
		stream: stream,
		router: r,
		logger: logger.With().Str("conn_id", id).Logger(),
	}
}

var _ executor.Future = (*Connection)(nil)

// Poll runs the read/parse/dispatch/write loop until the connection
// suspends on a read, or terminates (EOF, fatal parse error, fatal I/O
// error, or a request carrying "Connection: close"). A task holds its
// worker across this entire loop; it only yields at an actual read
// suspension point, per the runtime's cooperative scheduling contract.
func (c *Connection) Poll(wake func()) bool {
	if c.closed {
		return true
	}

	for {
		if c.pending == nil {
			c.pending = c.stream.Read(c.scratch[:])
		}
		if !c.pending.Poll(wake) {
			return false
		}

		read := c.pending
		c.pending = nil

		if read.Err != nil {
			c.logger.Trace().Err(read.Err).Msg("connection read failed, closing")
			c.finish()
			return true
		}
		if read.N == 0 {
			c.logger.Trace().Msg("connection EOF")
			c.finish()
			return true
		}

		c.readBuf = append(c.readBuf, c.scratch[:read.N]...)

		closeRequested, fatal := c.drainAndDispatch()
		if fatal {
			c.finish()
			return true
		}
		if closeRequested {
			c.finish()
			return true
		}
	}
}

// drainAndDispatch extracts and answers every complete request currently
// sitting in readBuf, in arrival order, honoring HTTP/1.1 pipelining.
// It returns closeRequested if any handled request asked to close the
// connection, and fatal if a non-recoverable parse or write error
// occurred (in which case no further bytes in readBuf are trustworthy).
func (c *Connection) drainAndDispatch() (closeRequested, fatal bool) {
	for len(c.readBuf) > 0 {
		parsed, n, err := httpparse.Parse(c.readBuf)
		if err == httpparse.ErrNeedMore {
			return false, false
		}
		if err != nil {
			c.logger.Trace().Err(err).Msg("malformed request, closing without response")
			return false, true
		}

		c.readBuf = c.readBuf[n:]

		req := httpreq.FromParsed(parsed)
		resp := c.router.Dispatch(req)

		if _, werr := c.stream.Write(resp.Bytes()); werr != nil {
			c.logger.Trace().Err(werr).Msg("write failed, closing")
			return false, true
		}

		if wantsClose(req) {
			return true, false
		}
	}
	return false, false
}

func (c *Connection) finish() {
	if c.closed {
		return
	}
	c.closed = true
	if err := c.stream.Close(); err != nil {
		c.logger.Trace().Err(err).Msg("error closing connection")
	}
}

func wantsClose(req *httpreq.Request) bool {
	v, ok := req.Headers.Get("Connection")
	return ok && strings.EqualFold(strings.TrimSpace(v), "close")
}
