package imapproxy

import (
	"context"
	"net"
	"testing"
	"time"

	"golang.org/x/net/proxy"
)

// fakeContextDialer implements proxy.ContextDialer so DialContext can take
// the fast path without racing a goroutine against ctx.
type fakeContextDialer struct {
	conn net.Conn
	err  error
}

func (d *fakeContextDialer) Dial(network, addr string) (net.Conn, error) {
	return d.conn, d.err
}

func (d *fakeContextDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return d.conn, d.err
}

func TestDialContextUsesContextDialerDirectly(t *testing.T) {
	client, _ := net.Pipe()
	defer client.Close()
	inner := &fakeContextDialer{conn: client}
	d := New(inner)

	conn, err := d.DialContext(context.Background(), "tcp", "imap.example.com:993")
	if err != nil {
		t.Fatal(err)
	}
	if conn != client {
		t.Error("expected the ContextDialer fast path to return the same conn")
	}
}

// blockingDialer implements only proxy.Dialer (not ContextDialer), forcing
// DialContext's goroutine-race fallback.
type blockingDialer struct {
	conn  net.Conn
	delay time.Duration
}

func (d *blockingDialer) Dial(network, addr string) (net.Conn, error) {
	time.Sleep(d.delay)
	return d.conn, nil
}

func TestDialContextFallsBackForPlainDialer(t *testing.T) {
	client, _ := net.Pipe()
	defer client.Close()
	d := New(&blockingDialer{conn: client, delay: 10 * time.Millisecond})

	conn, err := d.DialContext(context.Background(), "tcp", "imap.example.com:993")
	if err != nil {
		t.Fatal(err)
	}
	if conn != client {
		t.Error("expected DialContext to return the dialer's conn")
	}
}

func TestDialContextCancelledContext(t *testing.T) {
	client, _ := net.Pipe()
	defer client.Close()
	d := New(&blockingDialer{conn: client, delay: 200 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := d.DialContext(ctx, "tcp", "imap.example.com:993")
	if err == nil {
		t.Fatal("expected a context-deadline error")
	}
}

func TestFromURLBuildsDialer(t *testing.T) {
	d, err := FromURL("socks5://127.0.0.1:1080", proxy.Direct)
	if err != nil {
		t.Fatal(err)
	}
	if d == nil {
		t.Fatal("FromURL returned a nil Dialer")
	}
}

func TestFromURLInvalidURL(t *testing.T) {
	if _, err := FromURL("://not-a-url", nil); err == nil {
		t.Error("expected an error for a malformed proxy URL")
	}
}
