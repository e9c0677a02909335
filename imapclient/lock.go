package imapclient

import "context"

// MailboxLock is a lease pinning the selected mailbox for the duration of a
// sequence of operations (spec.md §4.7, "getMailboxLock"). Release is
// idempotent and safe to call from a deferred statement on every exit path.
type MailboxLock struct {
	c       *Client
	path    string
	release func()
	done    bool
}

// Release gives up the lease, letting the next queued lock request (if any)
// proceed.
func (l *MailboxLock) Release() {
	if l.done {
		return
	}
	l.done = true
	l.release()
}

// Path is the mailbox the lease pins.
func (l *MailboxLock) Path() string { return l.path }

// LockMailboxOptions configures GetMailboxLock.
type LockMailboxOptions struct {
	ReadOnly bool
}

// GetMailboxLock ensures path is SELECTed (or EXAMINEd, for ReadOnly), then
// queues concurrent lock requests FIFO and blocks until it is this caller's
// turn, serialising operations that require SELECTED against one another
// (spec.md §4.7). It re-selects whenever the held lease's mailbox differs
// from path, including when it must wait behind a differently-scoped lease.
func (c *Client) GetMailboxLock(ctx context.Context, path string, opts LockMailboxOptions) (*MailboxLock, error) {
	myTurn := make(chan struct{})
	c.lockMu.Lock()
	if !c.lockHeld {
		c.lockHeld = true
		close(myTurn)
	} else {
		c.lockQueue = append(c.lockQueue, myTurn)
	}
	c.lockMu.Unlock()

	select {
	case <-myTurn:
	case <-ctx.Done():
		c.dropQueuedLock(myTurn)
		return nil, ctx.Err()
	}

	mbox := c.Mailbox()
	if mbox == nil || mbox.Path != path || opts.ReadOnly != mbox.ReadOnly {
		if _, err := c.Select(ctx, path, SelectOptions{ReadOnly: opts.ReadOnly}); err != nil {
			c.releaseLock()
			return nil, err
		}
	}

	var released bool
	return &MailboxLock{c: c, path: path, release: func() {
		if released {
			return
		}
		released = true
		c.releaseLock()
	}}, nil
}

func (c *Client) dropQueuedLock(ch chan struct{}) {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	for i, q := range c.lockQueue {
		if q == ch {
			c.lockQueue = append(c.lockQueue[:i], c.lockQueue[i+1:]...)
			return
		}
	}
}

func (c *Client) releaseLock() {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	if len(c.lockQueue) == 0 {
		c.lockHeld = false
		return
	}
	next := c.lockQueue[0]
	c.lockQueue = c.lockQueue[1:]
	close(next)
}
