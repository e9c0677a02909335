package imapclient

import (
	"context"
	"strconv"
	"strings"

	"github.com/hkdb/imapkit/imap"
)

var statusItemNames = []struct {
	name string
	get  func(imap.StatusOptions) bool
}{
	{"MESSAGES", func(o imap.StatusOptions) bool { return o.Messages }},
	{"RECENT", func(o imap.StatusOptions) bool { return o.Recent }},
	{"UIDNEXT", func(o imap.StatusOptions) bool { return o.UIDNext }},
	{"UIDVALIDITY", func(o imap.StatusOptions) bool { return o.UIDValidity }},
	{"UNSEEN", func(o imap.StatusOptions) bool { return o.Unseen }},
	{"HIGHESTMODSEQ", func(o imap.StatusOptions) bool { return o.HighestModSeq }},
	{"MAILBOXID", func(o imap.StatusOptions) bool { return o.MailboxID }},
}

func statusReturnOptions(o imap.StatusOptions) []imap.Attribute {
	var out []imap.Attribute
	for _, it := range statusItemNames {
		if it.get(o) {
			out = append(out, imap.Atom(it.name))
		}
	}
	return out
}

// Status runs STATUS on path, filtering the requested items to those the
// server supports (spec.md §4.6 STATUS).
func (c *Client) Status(ctx context.Context, path string, opts imap.StatusOptions) (*imap.StatusData, error) {
	if err := c.guard("STATUS", imap.StateAuthenticated, imap.StateSelected); err != nil {
		return nil, err
	}
	filtered := opts.FilterSupported(c.Capabilities())
	items := statusReturnOptions(filtered)
	if len(items) == 0 {
		return &imap.StatusData{Path: path}, nil
	}

	wireName := imap.EncodeMailboxPath(path, c.mailboxDelimiter(path))
	args := []imap.Attribute{imap.String(wireName), imap.List(items...)}

	var data *imap.StatusData
	onUntagged := func(keyword string, attrs []imap.Attribute) error {
		if strings.ToUpper(keyword) != "STATUS" {
			return nil
		}
		_, d := parseStatusUntagged(append([]imap.Attribute{imap.String(wireName)}, attrs...))
		data = d
		return nil
	}
	if _, err := c.pipe.exec(ctx, "STATUS", args, hooks{OnUntagged: onUntagged}); err != nil {
		return nil, err
	}
	if data == nil {
		data = &imap.StatusData{Path: path}
	}
	return data, nil
}

// parseStatusUntagged decodes "* STATUS name (item value ...)".
func parseStatusUntagged(attrs []imap.Attribute) (string, *imap.StatusData) {
	if len(attrs) < 2 {
		return "", &imap.StatusData{}
	}
	rawName, _ := attrs[0].AsString()
	path, err := imap.DecodeMailboxPath(rawName, 0)
	if err != nil {
		path = rawName
	}
	d := &imap.StatusData{Path: path}
	if attrs[1].Kind != imap.AttrList {
		return path, d
	}
	items := attrs[1].List
	for i := 0; i+1 < len(items); i += 2 {
		name, _ := items[i].AsString()
		val, _ := items[i+1].AsString()
		switch strings.ToUpper(name) {
		case "MESSAGES":
			if n, err := strconv.ParseUint(val, 10, 32); err == nil {
				v := uint32(n)
				d.Messages = &v
			}
		case "RECENT":
			if n, err := strconv.ParseUint(val, 10, 32); err == nil {
				v := uint32(n)
				d.Recent = &v
			}
		case "UIDNEXT":
			if n, err := strconv.ParseUint(val, 10, 32); err == nil {
				v := imap.UID(n)
				d.UIDNext = &v
			}
		case "UIDVALIDITY":
			if n, err := strconv.ParseUint(val, 10, 64); err == nil {
				d.UIDValidity = &n
			}
		case "UNSEEN":
			if n, err := strconv.ParseUint(val, 10, 32); err == nil {
				v := uint32(n)
				d.Unseen = &v
			}
		case "HIGHESTMODSEQ":
			if n, err := strconv.ParseUint(val, 10, 64); err == nil {
				d.HighestModSeq = &n
			}
		case "MAILBOXID":
			d.MailboxID = &val
		}
	}
	return path, d
}
