package imapidle

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hkdb/imapkit/imapclient"
)

type pipeDialer struct{ conn net.Conn }

func (d *pipeDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return d.conn, nil
}

// fakeAccountServer drives one imapclient.Client through greeting, LOGIN,
// SELECT and an indefinite IDLE loop, so Watcher can be exercised end to end
// without a real socket. When dropDuringIdle is set, the connection is
// closed right after entering IDLE, simulating a dropped network link that
// Watcher must reconnect from.
func fakeAccountServer(t *testing.T, conn net.Conn, dropDuringIdle bool) {
	r := bufio.NewReader(conn)
	readLine := func() string {
		line, err := r.ReadString('\n')
		if err != nil {
			return ""
		}
		return strings.TrimRight(line, "\r\n")
	}
	send := func(s string) { conn.Write([]byte(s)) }

	send("* OK [CAPABILITY IMAP4rev1 IDLE] fake ready\r\n")

	login := readLine()
	if login == "" {
		return
	}
	send(strings.Fields(login)[0] + " OK LOGIN completed\r\n")

	sel := readLine()
	if sel == "" {
		return
	}
	send("* 1 EXISTS\r\n")
	send(strings.Fields(sel)[0] + " OK [READ-WRITE] SELECT completed\r\n")

	idle := readLine()
	if idle == "" {
		return
	}
	idleTag := strings.Fields(idle)[0]
	send("+ idling\r\n")

	if dropDuringIdle {
		conn.Close()
		return
	}

	done := readLine() // "DONE"
	if done == "" {
		return
	}
	send(idleTag + " OK IDLE completed\r\n")
}

func dialFakeConnector(t *testing.T, dropDuringIdle bool) Connector {
	return func(ctx context.Context, accountID string) (*imapclient.Client, error) {
		clientConn, serverConn := net.Pipe()
		go fakeAccountServer(t, serverConn, dropDuringIdle)

		c, err := imapclient.Dial(ctx, imapclient.Options{
			Addr:   "test.invalid:143",
			Dialer: &pipeDialer{conn: clientConn},
		})
		if err != nil {
			return nil, err
		}
		if err := c.Login(ctx, "user", "pass"); err != nil {
			return nil, err
		}
		if _, err := c.Select(ctx, "INBOX", imapclient.SelectOptions{}); err != nil {
			return nil, err
		}
		return c, nil
	}
}

func TestWatcherStartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxWait = 0
	w := NewWatcher("acct1", cfg, dialFakeConnector(t, false))

	events := make(chan Event, 16)
	w.Start(context.Background(), events)

	time.Sleep(50 * time.Millisecond)
	w.Stop()
	// A second Stop must be safe.
	w.Stop()
}

func TestWatcherReconnectsAfterDrop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxWait = 0
	cfg.ReconnectBackoff = 10 * time.Millisecond
	cfg.MaxReconnectBackoff = 20 * time.Millisecond

	var connectCount atomic.Int64
	connector := func(ctx context.Context, accountID string) (*imapclient.Client, error) {
		n := connectCount.Add(1)
		dropDuringIdle := n == 1 // first connection's server drops mid-IDLE
		return dialFakeConnector(t, dropDuringIdle)(ctx, accountID)
	}

	w := NewWatcher("acct1", cfg, connector)
	events := make(chan Event, 16)
	w.Start(context.Background(), events)
	t.Cleanup(w.Stop)

	deadline := time.After(2 * time.Second)
	for connectCount.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected a reconnect after the first connection dropped, saw %d connects", connectCount.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManagerWatchAndUnwatchAccount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxWait = 0
	m := NewManager(cfg, dialFakeConnector(t, false))
	m.Start(context.Background())
	t.Cleanup(m.Stop)

	m.WatchAccount("acctA")
	m.WatchAccount("acctA") // second call while running should be a no-op
	time.Sleep(30 * time.Millisecond)
	m.UnwatchAccount("acctA")
}

func TestWatcherStopIsIdempotentWithoutStart(t *testing.T) {
	w := NewWatcher("acct1", DefaultConfig(), func(ctx context.Context, accountID string) (*imapclient.Client, error) {
		return nil, errors.New("should not be called")
	})
	w.Stop() // must not panic or block when never started
}
