package imapclient

import (
	"context"
	"strings"

	"github.com/hkdb/imapkit/imap"
)

// CreateResult reports whether CREATE actually created the mailbox, per
// spec.md §4.6 CREATE's ALREADYEXISTS tolerance.
type CreateResult struct {
	Path    string
	Created bool
}

// Create runs CREATE, then best-effort SUBSCRIBE on success. A NO response
// carrying response code ALREADYEXISTS is reported as Created=false rather
// than surfaced as an error (spec.md §4.6 CREATE).
func (c *Client) Create(ctx context.Context, path string) (*CreateResult, error) {
	if err := c.guard("CREATE", imap.StateAuthenticated, imap.StateSelected); err != nil {
		return nil, err
	}
	wireName := imap.EncodeMailboxPath(path, c.mailboxDelimiter(path))
	_, err := c.pipe.exec(ctx, "CREATE", []imap.Attribute{imap.String(wireName)}, hooks{})
	if err != nil {
		if cmdErr, ok := err.(*imap.CommandError); ok && strings.EqualFold(cmdErr.ServerResponseCode, "ALREADYEXISTS") {
			return &CreateResult{Path: path, Created: false}, nil
		}
		return nil, err
	}
	c.Subscribe(ctx, path)
	return &CreateResult{Path: path, Created: true}, nil
}

// Delete runs DELETE. If path is the selected mailbox, it is closed first
// (spec.md §4.6 DELETE).
func (c *Client) Delete(ctx context.Context, path string) error {
	if err := c.guard("DELETE", imap.StateAuthenticated, imap.StateSelected); err != nil {
		return err
	}
	if mbox := c.Mailbox(); mbox != nil && strings.EqualFold(mbox.Path, path) {
		if err := c.CloseMailbox(ctx); err != nil {
			return err
		}
	}
	wireName := imap.EncodeMailboxPath(path, c.mailboxDelimiter(path))
	_, err := c.pipe.exec(ctx, "DELETE", []imap.Attribute{imap.String(wireName)}, hooks{})
	return err
}

// RenameResult is the outcome of RENAME.
type RenameResult struct {
	Path    string
	NewPath string
}

// Rename runs RENAME. If path is the selected mailbox, it is closed first,
// matching Delete's rule (spec.md §4.6 RENAME).
func (c *Client) Rename(ctx context.Context, path, newPath string) (*RenameResult, error) {
	if err := c.guard("RENAME", imap.StateAuthenticated, imap.StateSelected); err != nil {
		return nil, err
	}
	if mbox := c.Mailbox(); mbox != nil && strings.EqualFold(mbox.Path, path) {
		if err := c.CloseMailbox(ctx); err != nil {
			return nil, err
		}
	}
	delim := c.mailboxDelimiter(path)
	args := []imap.Attribute{
		imap.String(imap.EncodeMailboxPath(path, delim)),
		imap.String(imap.EncodeMailboxPath(newPath, delim)),
	}
	if _, err := c.pipe.exec(ctx, "RENAME", args, hooks{}); err != nil {
		return nil, err
	}
	return &RenameResult{Path: path, NewPath: newPath}, nil
}

// Subscribe runs SUBSCRIBE, best-effort: errors are swallowed and reported
// as a false return (spec.md §4.6 SUBSCRIBE/UNSUBSCRIBE).
func (c *Client) Subscribe(ctx context.Context, path string) bool {
	return c.subscribeOp(ctx, "SUBSCRIBE", path)
}

// Unsubscribe runs UNSUBSCRIBE, best-effort like Subscribe.
func (c *Client) Unsubscribe(ctx context.Context, path string) bool {
	return c.subscribeOp(ctx, "UNSUBSCRIBE", path)
}

func (c *Client) subscribeOp(ctx context.Context, verb, path string) bool {
	if err := c.guard(verb, imap.StateAuthenticated, imap.StateSelected); err != nil {
		return false
	}
	wireName := imap.EncodeMailboxPath(path, c.mailboxDelimiter(path))
	_, err := c.pipe.exec(ctx, verb, []imap.Attribute{imap.String(wireName)}, hooks{})
	return err == nil
}
