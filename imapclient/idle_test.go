package imapclient

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hkdb/imapkit/imap"
)

func TestIdleNativeStartsAndStops(t *testing.T) {
	c, fs := dialTestClient(t, " IDLE")
	t.Cleanup(func() { c.Close() })
	c.setState(imap.StateSelected)

	sess, err := c.Idle(context.Background(), 0)
	if err != nil {
		t.Fatalf("Idle() failed: %v", err)
	}

	line := fs.readLine()
	if !strings.HasSuffix(line, " IDLE") {
		t.Fatalf("server saw %q, want an IDLE command", line)
	}
	tag := strings.Fields(line)[0]
	fs.send("+ idling\r\n")

	doneCh := make(chan error, 1)
	go func() { doneCh <- sess.Stop() }()

	doneLine := fs.readLine()
	if doneLine != "DONE" {
		t.Fatalf("server saw %q, want DONE", doneLine)
	}
	fs.send(tag + " OK IDLE completed\r\n")

	select {
	case err := <-doneCh:
		if err != nil {
			t.Errorf("Stop() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for IdleSession.Stop")
	}
}

func TestIdlePreemptedByAnotherCommand(t *testing.T) {
	c, fs := dialTestClient(t, " IDLE")
	t.Cleanup(func() { c.Close() })
	c.setState(imap.StateSelected)

	sess, err := c.Idle(context.Background(), 0)
	if err != nil {
		t.Fatalf("Idle() failed: %v", err)
	}

	idleLine := fs.readLine()
	tag := strings.Fields(idleLine)[0]
	fs.send("+ idling\r\n")

	noopErrCh := make(chan error, 1)
	go func() {
		noopErrCh <- c.Noop(context.Background())
	}()

	doneLine := fs.readLine()
	if doneLine != "DONE" {
		t.Fatalf("server saw %q, want DONE (preemption)", doneLine)
	}
	fs.send(tag + " OK IDLE completed\r\n")

	if err := sess.Wait(); err != nil {
		t.Errorf("idle session ended with %v, want nil", err)
	}

	noopLine := fs.readLine()
	noopTag := strings.Fields(noopLine)[0]
	fs.send(noopTag + " OK NOOP completed\r\n")

	select {
	case err := <-noopErrCh:
		if err != nil {
			t.Errorf("Noop() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Noop after IDLE preemption")
	}
}
