package tcpconn

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/2lambda123/Ericsson-ered/resp"
)

// fakeServer accepts one connection and replies "+PONG\r\n" to every
// command it reads, in order, until the connection closes.
func fakeServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			if _, err := resp.ReadReply(r); err != nil {
				return
			}
			if _, err := conn.Write([]byte("+PONG\r\n")); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String()
}

func dialerOpts() Options {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return Options{PingInterval: -1, Logger: log}
}

func TestDialSubmitReceivesReply(t *testing.T) {
	addr := fakeServer(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	d := NewDialer(dialerOpts())
	h, err := d.Dial(context.Background(), host, port)
	require.NoError(t, err)
	defer h.Close()

	buf, err := resp.AppendCommand(nil, resp.Command{Name: "PING"})
	require.NoError(t, err)
	h.Submit(1, buf)

	select {
	case r := <-h.Replies():
		require.Equal(t, uint64(1), r.Tag)
		require.Equal(t, "PONG", r.Result)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
	}
}

func TestDoRunsHandshakeSynchronously(t *testing.T) {
	addr := fakeServer(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	d := NewDialer(dialerOpts())
	h, err := d.Dial(context.Background(), host, port)
	require.NoError(t, err)
	defer h.Close()

	out, err := h.Do(context.Background(), []resp.Command{{Name: "PING"}, {Name: "PING"}})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"PONG", "PONG"}, out)
}

func TestCloseFiresClosedExactlyOnce(t *testing.T) {
	addr := fakeServer(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	d := NewDialer(dialerOpts())
	h, err := d.Dial(context.Background(), host, port)
	require.NoError(t, err)

	h.Close()
	h.Close() // must not panic

	select {
	case _, ok := <-h.Closed():
		require.True(t, ok, "first receive carries the close reason")
	case <-time.After(time.Second):
		t.Fatal("Closed channel never fired")
	}
	_, ok := <-h.Closed()
	require.False(t, ok, "second receive observes the channel already drained and closed")
}

