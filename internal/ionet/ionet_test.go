package ionet

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reactorhttp/internal/executor"
	"reactorhttp/internal/reactor"
)

// acceptOneAndEcho is a tiny Future-composed pipeline: accept one
// connection, read up to len(buf) bytes, write them back, then report
// done. It exercises Listener.Accept, Conn.Read and Conn.Write together
// the way internal/conn's real pipeline will.
type acceptOneAndEcho struct {
	l    *Listener
	step int
	acc  *AcceptFuture
	rd   *ReadFuture
	buf  [256]byte
	Err  error
}

func (f *acceptOneAndEcho) Poll(wake func()) bool {
	for {
		switch f.step {
		case 0:
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
			f.step = 1
		case 1:
			if f.rd == nil {
				f.rd = f.acc.Conn.Read(f.buf[:])
			}
			if !f.rd.Poll(wake) {
				return false
			}
			if f.rd.Err != nil {
				f.Err = f.rd.Err
				return true
			}
			if _, err := f.acc.Conn.Write(f.buf[:f.rd.N]); err != nil {
				f.Err = err
				return true
			}
			_ = f.acc.Conn.Close()
			return true
		}
	}
}

func TestListenAcceptReadWriteRoundTrip(t *testing.T) {
	pool, err := reactor.New(64)
	require.NoError(t, err)
	defer pool.Close()

	exec := executor.NewPool(2, 0)
	defer exec.Stop()

	ln, err := Listen(pool, "127.0.0.1:0", 0)
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		_ = pool.Run()
	}()

	addr := ln.Addr().(*net.TCPAddr)

	echo := &acceptOneAndEcho{l: ln}
	task, err := exec.Spawn(echo)
	require.NoError(t, err)
	_ = task

	// Give the accept future a moment to register before dialing.
	time.Sleep(10 * time.Millisecond)

	client, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer client.Close()

	msg := []byte("hello reactor")
	_, err = client.Write(msg)
	require.NoError(t, err)

	reply := make([]byte, len(msg))
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = readFull(client, reply)
	require.NoError(t, err)
	require.Equal(t, msg, reply)
	require.Nil(t, echo.Err)
}

func readFull(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
