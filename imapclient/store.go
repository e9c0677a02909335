package imapclient

import (
	"context"
	"strconv"
	"strings"

	"github.com/hkdb/imapkit/imap"
)

// Store runs STORE (or UID STORE), filtering the requested flags to those
// permitted by the selected mailbox's PERMANENTFLAGS (spec.md §4.6 STORE),
// and streams the resulting per-message FLAGS updates unless Silent is set.
func (c *Client) Store(ctx context.Context, set imap.NumSet, req imap.StoreRequest) ([]imap.FetchMessageData, error) {
	if err := c.guard("STORE", imap.StateSelected); err != nil {
		return nil, err
	}
	// Filtering against PERMANENTFLAGS only applies to add/set: a remove
	// must pass every requested flag through unfiltered (spec.md §4.6
	// STORE), since a flag the server never advertised as permanent can
	// still be cleared.
	flags := req.Flags
	if req.Op == imap.StoreAdd || req.Op == imap.StoreSet {
		mbox := c.Mailbox()
		var permanent, mboxFlags imap.FlagSet
		if mbox != nil {
			permanent, mboxFlags = mbox.PermanentFlags, mbox.Flags
		}
		flags = imap.FilterPermitted(permanent, mboxFlags, req.Flags)
	}
	if len(flags) == 0 && (req.Op == imap.StoreAdd || req.Op == imap.StoreRemove) {
		return nil, nil
	}

	verb := "FLAGS"
	switch req.Op {
	case imap.StoreAdd:
		verb = "+FLAGS"
	case imap.StoreRemove:
		verb = "-FLAGS"
	}
	if req.UseLabels && c.Capabilities().Has(imap.CapXGmExt1) {
		verb = strings.Replace(verb, "FLAGS", "X-GM-LABELS", 1)
	}
	if req.Silent {
		verb += ".SILENT"
	}

	flagAttrs := make([]imap.Attribute, 0, len(flags))
	for _, f := range flags {
		flagAttrs = append(flagAttrs, imap.Atom(string(f)))
	}
	args := []imap.Attribute{imap.Sequence(set.Set.String())}
	if req.HasUnchanged {
		args = append(args, imap.List(imap.Atom("UNCHANGEDSINCE"), imap.Atom(strconv.FormatUint(req.UnchangedSince, 10))))
	}
	args = append(args, imap.Atom(verb), imap.List(flagAttrs...))

	cmd := "STORE"
	if set.IsUID {
		cmd = "UID STORE"
	}

	var results []imap.FetchMessageData
	onUntagged := func(keyword string, attrs []imap.Attribute) error {
		if strings.ToUpper(keyword) != "FETCH" {
			return nil
		}
		if len(attrs) < 2 || attrs[1].Kind != imap.AttrList {
			return nil
		}
		seq, _ := attrs[0].AsString()
		n, _ := strconv.ParseUint(seq, 10, 32)
		results = append(results, imap.FetchMessageData{SeqNum: uint32(n), Items: parseFetchItems(attrs[1].List)})
		return nil
	}

	if _, err := c.pipe.exec(ctx, cmd, args, hooks{OnUntagged: onUntagged}); err != nil {
		return nil, err
	}
	return results, nil
}
