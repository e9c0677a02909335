package imapclient

import (
	"context"
	"strconv"
	"strings"

	"github.com/hkdb/imapkit/imap"
)

// SelectOptions configures SELECT/EXAMINE (spec.md §4.6).
type SelectOptions struct {
	ReadOnly bool // EXAMINE instead of SELECT

	// QResync requests the QRESYNC form (RFC 7162 §3.2.5), supplying the
	// client's last known UIDVALIDITY/MODSEQ and, optionally, a known UID
	// set. The sequence-to-UID mapping parameter is not sent.
	QResync          bool
	KnownUIDValidity uint64
	KnownModSeq      uint64
	KnownUIDs        string
}

// Select opens path as the current mailbox (SELECT, or EXAMINE when
// ReadOnly is set), replacing the prior selected-mailbox cache entirely -
// per spec.md §4.4 "SELECT/EXAMINE while already selected implicitly closes
// the previous mailbox".
func (c *Client) Select(ctx context.Context, path string, opts SelectOptions) (*imap.SelectedMailbox, error) {
	if err := c.guard("SELECT", imap.StateAuthenticated, imap.StateSelected); err != nil {
		return nil, err
	}

	delim := c.mailboxDelimiter(path)
	wireName := imap.EncodeMailboxPath(path, delim)

	cmd := "SELECT"
	if opts.ReadOnly {
		cmd = "EXAMINE"
	}
	args := []imap.Attribute{imap.String(wireName)}

	if opts.QResync && c.Capabilities().Has(imap.CapQResync) {
		qr := []imap.Attribute{
			imap.Atom(strconv.FormatUint(opts.KnownUIDValidity, 10)),
			imap.Atom(strconv.FormatUint(opts.KnownModSeq, 10)),
		}
		if opts.KnownUIDs != "" {
			qr = append(qr, imap.Sequence(opts.KnownUIDs))
		}
		args = append(args, imap.List(imap.Atom("QRESYNC"), imap.List(qr...)))
	}

	c.mu.Lock()
	c.mailbox = &imap.SelectedMailbox{Path: path, Delimiter: delim}
	c.mu.Unlock()

	wasSelected := c.State() == imap.StateSelected

	res, err := c.pipe.exec(ctx, cmd, args, hooks{})
	if err != nil {
		c.mu.Lock()
		c.mailbox = nil
		c.mu.Unlock()
		if wasSelected {
			c.setState(imap.StateAuthenticated)
			c.emit(Event{Kind: "mailbox_close", Path: path})
		}
		return nil, err
	}
	_ = res

	c.setState(imap.StateSelected)
	mbox := c.Mailbox()
	c.emit(Event{Kind: "mailbox_open", Path: path, Mailbox: mbox})
	return mbox, nil
}

// Unselect returns to the authenticated state without expunging \Deleted
// messages (RFC 3691), falling back to CLOSE (which does expunge) when the
// server lacks UNSELECT.
func (c *Client) Unselect(ctx context.Context) error {
	if err := c.guard("UNSELECT", imap.StateSelected); err != nil {
		return err
	}
	cmd := "UNSELECT"
	if !c.Capabilities().Has(imap.CapUnselect) {
		cmd = "CLOSE"
	}
	path := c.mailboxPath()
	if _, err := c.pipe.exec(ctx, cmd, nil, hooks{}); err != nil {
		return err
	}
	c.mu.Lock()
	c.mailbox = nil
	c.mu.Unlock()
	c.setState(imap.StateAuthenticated)
	c.emit(Event{Kind: "mailbox_close", Path: path})
	return nil
}

// CloseMailbox runs the IMAP CLOSE command: returns to authenticated state and
// expunges \Deleted messages in the selected mailbox.
func (c *Client) CloseMailbox(ctx context.Context) error {
	if err := c.guard("CLOSE", imap.StateSelected); err != nil {
		return err
	}
	path := c.mailboxPath()
	if _, err := c.pipe.exec(ctx, "CLOSE", nil, hooks{}); err != nil {
		return err
	}
	c.mu.Lock()
	c.mailbox = nil
	c.mu.Unlock()
	c.setState(imap.StateAuthenticated)
	c.emit(Event{Kind: "mailbox_close", Path: path})
	return nil
}

// mailboxPath returns the currently selected mailbox's path, or "" if none.
func (c *Client) mailboxPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.mailbox == nil {
		return ""
	}
	return c.mailbox.Path
}

// mailboxDelimiter returns the cached hierarchy delimiter for path. Without
// cached LIST data for path it guesses '\\' when path contains a backslash
// and no '/', and '/' otherwise.
func (c *Client) mailboxDelimiter(path string) byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.folders != nil {
		if fe, ok := c.folders[path]; ok && fe.HasDelim {
			return fe.Delimiter
		}
	}
	if strings.Contains(path, "\\") && !strings.Contains(path, "/") {
		return '\\'
	}
	return '/'
}
