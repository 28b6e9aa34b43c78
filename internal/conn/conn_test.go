package conn

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"reactorhttp/internal/executor"
	"reactorhttp/internal/httpreq"
	"reactorhttp/internal/httpresp"
	"reactorhttp/internal/ionet"
	"reactorhttp/internal/reactor"
	"reactorhttp/internal/router"
)

// acceptOneConn is a tiny Future that accepts a single connection from ln
// and hands it to a freshly built Connection, mirroring what the server
// facade's accept loop does per connection.
type acceptOneConn struct {
	l      *ionet.Listener
	r      *router.Router
	acc    *ionet.AcceptFuture
	c      *Connection
	Err    error
	finish bool
}

func (f *acceptOneConn) Poll(wake func()) bool {
	for {
		if f.c == nil {
			if f.acc == nil {
				f.acc = f.l.Accept()
			}
			if !f.acc.Poll(wake) {
				return false
			}
			if f.acc.Err != nil {
				f.Err = f.acc.Err
				return true
			}
			f.c = New(f.acc.Conn, f.r, zerolog.Nop())
		}
		if f.c.Poll(wake) {
			f.finish = true
			return true
		}
		return false
	}
}

func newTestRouter() *router.Router {
	r := router.New()
	r.Handle("GET", "/", func(req *httpreq.Request) *httpresp.Response {
		resp, _ := httpresp.OK().PlainText("GET").Build()
		return resp
	})
	r.Handle("POST", "/", func(req *httpreq.Request) *httpresp.Response {
		resp, _ := httpresp.OK().PlainText(req.BodyString()).Build()
		return resp
	})
	return r
}

func dial(t *testing.T, addr net.Addr) net.Conn {
	t.Helper()
	client, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	client.SetDeadline(time.Now().Add(2 * time.Second))
	return client
}

func TestConnectionSingleRequestResponse(t *testing.T) {
	pool, err := reactor.New(64)
	require.NoError(t, err)
	defer pool.Close()

	exec := executor.NewPool(2, 0)
	defer exec.Stop()

	ln, err := ionet.Listen(pool, "127.0.0.1:0", 0)
	require.NoError(t, err)
	defer ln.Close()

	go func() { _ = pool.Run() }()

	task := &acceptOneConn{l: ln, r: newTestRouter()}
	_, err = exec.Spawn(task)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	client := dial(t, ln.Addr())
	defer client.Close()

	_, err = client.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	buf := make([]byte, 4096)
	n, err := client.Read(buf)
	require.NoError(t, err)
	body := string(buf[:n])
	require.Contains(t, body, "HTTP/1.1 200 Ok")
	require.Contains(t, body, "GET")
}

func TestConnectionPipelinedRequests(t *testing.T) {
	pool, err := reactor.New(64)
	require.NoError(t, err)
	defer pool.Close()

	exec := executor.NewPool(2, 0)
	defer exec.Stop()

	ln, err := ionet.Listen(pool, "127.0.0.1:0", 0)
	require.NoError(t, err)
	defer ln.Close()

	go func() { _ = pool.Run() }()

	task := &acceptOneConn{l: ln, r: newTestRouter()}
	_, err = exec.Spawn(task)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	client := dial(t, ln.Addr())
	defer client.Close()

	req1 := "GET / HTTP/1.1\r\nHost: x\r\n\r\n"
	req2 := "POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\nConnection: close\r\n\r\nhello"
	_, err = client.Write([]byte(req1 + req2))
	require.NoError(t, err)

	buf := make([]byte, 8192)
	total := 0
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := client.Read(buf[total:])
		total += n
		if err != nil {
			break
		}
		if total >= len("GET")+len("hello")+40 {
			break
		}
	}
	out := string(buf[:total])
	require.Contains(t, out, "GET")
	require.Contains(t, out, "hello")
}
