package imapclient

import (
	"context"
	"strconv"
	"strings"

	"github.com/hkdb/imapkit/imap"
)

// AppendResult reports where the appended message landed: the APPENDUID
// response code (RFC 4315 §3) when the server supports UIDPLUS, and/or the
// sequence number discovered via the NOOP + SEARCH fallback (spec.md §4.6
// APPEND, "sequence discovery").
type AppendResult struct {
	HasUID      bool
	UIDValidity uint64
	UID         imap.UID
	HasSeqNum   bool
	SeqNum      uint32
}

// Append runs APPEND, sending content as a literal (LITERAL8 whenever the
// server advertises BINARY). If dest is the currently
// selected mailbox and the server does not volunteer an EXISTS for the new
// message, a NOOP is issued to learn the new sequence number; if the server
// did not return APPENDUID, a targeted SEARCH locates the appended message's
// UID (spec.md §4.6 APPEND).
func (c *Client) Append(ctx context.Context, dest string, content []byte, opts imap.AppendOptions) (*AppendResult, error) {
	if err := c.guard("APPEND", imap.StateAuthenticated, imap.StateSelected); err != nil {
		return nil, err
	}
	caps := c.Capabilities()
	if limit, ok := caps.Param(imap.CapAppendLimit); ok && limit > 0 && len(content) > limit {
		return nil, &imap.CommandError{Command: "APPEND", Status: "NO", ServerResponseCode: imap.CapAppendLimit}
	}

	mbox := c.Mailbox()
	var permanent, mboxFlags imap.FlagSet
	if mbox != nil {
		permanent, mboxFlags = mbox.PermanentFlags, mbox.Flags
	}
	flags := imap.FilterPermitted(permanent, mboxFlags, opts.Flags)

	wireName := imap.EncodeMailboxPath(dest, c.mailboxDelimiter(dest))
	args := []imap.Attribute{imap.String(wireName)}
	if len(flags) > 0 {
		flagAttrs := make([]imap.Attribute, 0, len(flags))
		for _, f := range flags {
			flagAttrs = append(flagAttrs, imap.Atom(string(f)))
		}
		args = append(args, imap.List(flagAttrs...))
	}
	if !opts.InternalDate.IsZero() {
		args = append(args, imap.String(opts.InternalDate.UTC().Format("02-Jan-2006 15:04:05 -0700")))
	}
	if caps.Has(imap.CapBinary) {
		args = append(args, imap.Literal8(content))
	} else {
		args = append(args, imap.Literal(content))
	}

	sawExists := false
	onUntagged := func(keyword string, attrs []imap.Attribute) error {
		if keyword == "EXISTS" {
			sawExists = true
		}
		return nil
	}

	res, err := c.pipe.exec(ctx, "APPEND", args, hooks{OnUntagged: onUntagged})
	if err != nil {
		return nil, err
	}

	result := parseAppendUID(res.code, res.codeArgs)

	selected := mbox != nil && pathsEqual(mbox.Path, dest)
	if selected && !sawExists {
		if err := c.Noop(ctx); err != nil {
			return result, err
		}
		if m := c.Mailbox(); m != nil {
			result.HasSeqNum, result.SeqNum = true, m.Exists
		}
		if !result.HasUID {
			if uid, ok := c.discoverAppendedUID(ctx, flags); ok {
				result.HasUID, result.UID = true, uid
			}
		}
	}
	return result, nil
}

// discoverAppendedUID runs the SEARCH-based fallback heuristic when the
// server omitted APPENDUID: search for the highest-UID message currently
// bearing the flags we just appended with, which is the newest arrival in
// common server implementations.
func (c *Client) discoverAppendedUID(ctx context.Context, flags []imap.Flag) (imap.UID, bool) {
	q := &imap.SearchQuery{}
	yes := true
	for _, f := range flags {
		switch f {
		case imap.FlagSeen:
			q.Seen = &yes
		case imap.FlagAnswered:
			q.Answered = &yes
		case imap.FlagFlagged:
			q.Flagged = &yes
		case imap.FlagDeleted:
			q.Deleted = &yes
		case imap.FlagDraft:
			q.Draft = &yes
		default:
			q.Keyword = append(q.Keyword, string(f))
		}
	}
	res, err := c.Search(ctx, q, true)
	if err != nil || len(res.UIDs) == 0 {
		return 0, false
	}
	maxUID := res.UIDs[0]
	for _, u := range res.UIDs[1:] {
		if u > maxUID {
			maxUID = u
		}
	}
	return maxUID, true
}

func pathsEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

func parseAppendUID(code string, codeArgs []imap.Attribute) *AppendResult {
	if !strings.EqualFold(code, "APPENDUID") || len(codeArgs) < 2 {
		return &AppendResult{}
	}
	validityStr, ok1 := codeArgs[0].AsString()
	uidStr, ok2 := codeArgs[1].AsString()
	if !ok1 || !ok2 {
		return &AppendResult{}
	}
	validity, err1 := strconv.ParseUint(validityStr, 10, 64)
	uid, err2 := strconv.ParseUint(uidStr, 10, 32)
	if err1 != nil || err2 != nil {
		return &AppendResult{}
	}
	return &AppendResult{HasUID: true, UIDValidity: validity, UID: imap.UID(uid)}
}
