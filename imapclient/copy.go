package imapclient

import (
	"context"
	"strconv"
	"strings"

	"github.com/hkdb/imapkit/imap"
)

// CopyResult carries the UIDPLUS COPYUID/MOVEUID response code, when the
// server supports it (RFC 4315 / RFC 6851).
type CopyResult struct {
	HasUIDs     bool
	UIDValidity uint64
	SourceUIDs  imap.UIDSet
	DestUIDs    imap.UIDSet
}

// Copy runs COPY/UID COPY into dest, parsing the COPYUID response code.
func (c *Client) Copy(ctx context.Context, set imap.NumSet, dest string) (*CopyResult, error) {
	return c.copyOrMove(ctx, "COPY", set, dest)
}

// Move runs MOVE/UID MOVE (RFC 6851) when the server advertises MOVE,
// falling back to COPY + STORE +FLAGS \Deleted + EXPUNGE otherwise.
func (c *Client) Move(ctx context.Context, set imap.NumSet, dest string) (*CopyResult, error) {
	if !c.Capabilities().Has(imap.CapMove) {
		res, err := c.copyOrMove(ctx, "COPY", set, dest)
		if err != nil {
			return nil, err
		}
		if _, err := c.Store(ctx, set, imap.StoreRequest{Op: imap.StoreAdd, Flags: []imap.Flag{imap.FlagDeleted}, Silent: true}); err != nil {
			return res, err
		}
		if set.IsUID {
			_, err = c.UIDExpunge(ctx, set.Set)
		} else {
			err = c.Expunge(ctx)
		}
		return res, err
	}
	return c.copyOrMove(ctx, "MOVE", set, dest)
}

func (c *Client) copyOrMove(ctx context.Context, verb string, set imap.NumSet, dest string) (*CopyResult, error) {
	if err := c.guard(verb, imap.StateSelected); err != nil {
		return nil, err
	}
	wireName := imap.EncodeMailboxPath(dest, c.mailboxDelimiter(dest))
	cmd := verb
	if set.IsUID {
		cmd = "UID " + verb
	}
	args := []imap.Attribute{imap.Sequence(set.Set.String()), imap.String(wireName)}

	res, err := c.pipe.exec(ctx, cmd, args, hooks{})
	if err != nil {
		return nil, err
	}
	return parseCopyUID(res.code, res.codeArgs), nil
}

// parseCopyUID extracts "[COPYUID validity srcUIDs destUIDs]" (RFC 4315 §3),
// returned in the tagged OK response's bracketed code for a successful COPY
// or MOVE when the server supports UIDPLUS.
func parseCopyUID(code string, codeArgs []imap.Attribute) *CopyResult {
	if !strings.EqualFold(code, "COPYUID") || len(codeArgs) < 3 {
		return &CopyResult{}
	}
	validityStr, ok := codeArgs[0].AsString()
	if !ok {
		return &CopyResult{}
	}
	validity, err := strconv.ParseUint(validityStr, 10, 64)
	if err != nil {
		return &CopyResult{}
	}
	srcStr, ok1 := codeArgs[1].AsString()
	dstStr, ok2 := codeArgs[2].AsString()
	if !ok1 || !ok2 {
		return &CopyResult{}
	}
	src, err1 := imap.ParseUIDSet(srcStr)
	dst, err2 := imap.ParseUIDSet(dstStr)
	if err1 != nil || err2 != nil {
		return &CopyResult{}
	}
	return &CopyResult{HasUIDs: true, UIDValidity: validity, SourceUIDs: src, DestUIDs: dst}
}
