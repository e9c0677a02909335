package imapclient

import (
	"context"
	"sync"
	"time"

	"github.com/hkdb/imapkit/imap"
)

// IdleSession represents one outstanding IDLE (or, on a server lacking IDLE,
// an equivalent NOOP polling loop). Stop ends it; any other command issued
// on the same Client ends it automatically (spec.md §4.6 IDLE, "pre_check"),
// since pipeline.exec always pre-empts an outstanding IDLE before sending.
type IdleSession struct {
	c    *Client
	done chan struct{}
	mu   sync.Mutex
	err  error
	stop func()
}

// Wait blocks until the session ends, returning the error (if any) that
// ended it.
func (s *IdleSession) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop ends the session, blocking until the wire is quiescent again (for
// native IDLE, until the DONE/tagged-OK exchange completes).
func (s *IdleSession) Stop() error {
	s.stop()
	return s.Wait()
}

// Idle starts IDLE (RFC 2177) when the server advertises it, or falls back
// to a NOOP polling loop (spec.md §4.6 IDLE). For native IDLE, maxWait
// bounds how long the IDLE command runs: when it elapses DONE is sent and
// the session ends (it is not re-issued here; imapclient/imapidle restarts
// IDLE); zero means no bound. For the polling fallback, maxWait is the NOOP
// interval, and zero means 30 seconds.
func (c *Client) Idle(ctx context.Context, maxWait time.Duration) (*IdleSession, error) {
	if err := c.guard("IDLE", imap.StateSelected); err != nil {
		return nil, err
	}
	if c.Capabilities().Has(imap.CapIdle) {
		return c.idleNative(ctx, maxWait)
	}
	return c.idlePoll(ctx, maxWait), nil
}

func (c *Client) idleNative(ctx context.Context, maxWait time.Duration) (*IdleSession, error) {
	ctx, cancel := context.WithCancel(ctx)
	started := make(chan struct{})
	var startOnce sync.Once
	onPlus := func(text string) ([]byte, error) {
		startOnce.Do(func() { close(started) })
		return nil, nil
	}

	sess := &IdleSession{c: c, done: make(chan struct{})}
	execDone := make(chan struct{})

	go func() {
		_, err := c.pipe.exec(ctx, "IDLE", nil, hooks{OnPlus: onPlus})
		sess.mu.Lock()
		sess.err = err
		sess.mu.Unlock()
		close(execDone)
		close(sess.done)
	}()

	var stopOnce sync.Once
	sendDone := func() {
		stopOnce.Do(func() { c.pipe.writeRaw([]byte("DONE\r\n")) })
	}
	sess.stop = func() {
		sendDone()
		cancel()
	}
	c.pipe.setIdleInterrupt(func() {
		sendDone()
		<-execDone
	})

	if maxWait > 0 {
		timer := time.AfterFunc(maxWait, sendDone)
		go func() { <-execDone; timer.Stop() }()
	}
	go func() { <-ctx.Done(); sendDone() }()

	select {
	case <-started:
	case <-execDone:
	}
	return sess, nil
}

// idlePoll is the fallback for servers without IDLE: NOOP in a loop until
// Stop is called, ctx is cancelled, or pipeline.exec preempts it for another
// command.
func (c *Client) idlePoll(ctx context.Context, interval time.Duration) *IdleSession {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	sess := &IdleSession{c: c, done: make(chan struct{})}
	sess.stop = cancel

	c.pipe.setIdleInterrupt(cancel)

	go func() {
		defer close(sess.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Clear the interrupt around our own NOOP so pipeline.exec's
				// self-preemption check does not cancel this very loop.
				c.pipe.clearIdleInterrupt()
				err := c.Noop(ctx)
				select {
				case <-ctx.Done():
				default:
					c.pipe.setIdleInterrupt(cancel)
				}
				if err != nil {
					sess.mu.Lock()
					sess.err = err
					sess.mu.Unlock()
					return
				}
			}
		}
	}()
	return sess
}
