package imappool

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/hkdb/imapkit/imapclient"
)

type pipeDialer struct{ conn net.Conn }

func (d *pipeDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return d.conn, nil
}

// dialFakeClient opens an imapclient.Client against an in-memory net.Pipe,
// feeding it a minimal greeting from a background goroutine so Dial()
// completes without touching a real socket.
func dialFakeClient(t *testing.T) *imapclient.Client {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	go func() {
		buf := make([]byte, 4096)
		serverConn.Read(buf) // drain, if anything is ever written
	}()
	go func() {
		serverConn.Write([]byte("* OK [CAPABILITY IMAP4rev1 IDLE] fake ready\r\n"))
	}()

	c, err := imapclient.Dial(context.Background(), imapclient.Options{
		Addr:   "test.invalid:143",
		Dialer: &pipeDialer{conn: clientConn},
	})
	if err != nil {
		t.Fatalf("dialFakeClient: %v", err)
	}
	return c
}

func TestPoolGetReleaseReusesConnection(t *testing.T) {
	var dials int
	pool := NewPool(DefaultConfig(), func(ctx context.Context, accountID string) (*imapclient.Client, error) {
		dials++
		return dialFakeClient(t), nil
	})
	t.Cleanup(pool.CloseAll)

	conn1, err := pool.Get(context.Background(), "acct1")
	if err != nil {
		t.Fatal(err)
	}
	pool.Release(conn1)

	conn2, err := pool.Get(context.Background(), "acct1")
	if err != nil {
		t.Fatal(err)
	}
	if conn1 != conn2 {
		t.Error("expected Get to reuse the released connection")
	}
	if dials != 1 {
		t.Errorf("dial called %d times, want 1", dials)
	}
}

func TestPoolGetOpensNewUpToMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConnections = 2
	var dials int
	pool := NewPool(cfg, func(ctx context.Context, accountID string) (*imapclient.Client, error) {
		dials++
		return dialFakeClient(t), nil
	})
	t.Cleanup(pool.CloseAll)

	c1, err := pool.Get(context.Background(), "acct1")
	if err != nil {
		t.Fatal(err)
	}
	c2, err := pool.Get(context.Background(), "acct1")
	if err != nil {
		t.Fatal(err)
	}
	if c1 == c2 {
		t.Error("expected two distinct connections under MaxConnections")
	}
	if dials != 2 {
		t.Errorf("dial called %d times, want 2", dials)
	}
}

func TestPoolGetWaitsWhenExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConnections = 1
	cfg.WaiterTimeout = time.Second
	pool := NewPool(cfg, func(ctx context.Context, accountID string) (*imapclient.Client, error) {
		return dialFakeClient(t), nil
	})
	t.Cleanup(pool.CloseAll)

	conn1, err := pool.Get(context.Background(), "acct1")
	if err != nil {
		t.Fatal(err)
	}

	waitDone := make(chan *Conn, 1)
	go func() {
		c, err := pool.Get(context.Background(), "acct1")
		if err != nil {
			t.Errorf("waiting Get failed: %v", err)
			return
		}
		waitDone <- c
	}()

	time.Sleep(20 * time.Millisecond)
	pool.Release(conn1)

	select {
	case c := <-waitDone:
		if c != conn1 {
			t.Error("expected the waiter to receive the released connection")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the exhausted pool's waiter")
	}
}

func TestPoolDiscardRemovesConnection(t *testing.T) {
	pool := NewPool(DefaultConfig(), func(ctx context.Context, accountID string) (*imapclient.Client, error) {
		return dialFakeClient(t), nil
	})
	t.Cleanup(pool.CloseAll)

	conn, err := pool.Get(context.Background(), "acct1")
	if err != nil {
		t.Fatal(err)
	}
	pool.Discard(conn)

	stats := pool.Stats()
	if stats.Total != 0 {
		t.Errorf("Stats().Total = %d, want 0 after Discard", stats.Total)
	}
}

func TestIsConnectionError(t *testing.T) {
	if !IsConnectionError(errors.New("read tcp: connection reset by peer")) {
		t.Error("expected a connection-reset error to be recognised")
	}
	if IsConnectionError(errors.New("imap: NO mailbox does not exist")) {
		t.Error("an IMAP protocol error should not be treated as a connection error")
	}
	if IsConnectionError(nil) {
		t.Error("nil error should not be a connection error")
	}
}
