package imapclient

import (
	"context"
	"strings"

	"github.com/hkdb/imapkit/imap"
)

// ID runs the ID command (RFC 2971), sending fields (or NIL when empty) and
// returning the server's own identification fields. The result is cached and
// available via ServerID after the call.
func (c *Client) ID(ctx context.Context, fields map[string]string) (map[string]string, error) {
	if err := c.guard("ID", imap.StateNotAuthenticated, imap.StateAuthenticated, imap.StateSelected); err != nil {
		return nil, err
	}

	var arg imap.Attribute
	if len(fields) == 0 {
		arg = imap.Atom("NIL")
	} else {
		items := make([]imap.Attribute, 0, len(fields)*2)
		for k, v := range fields {
			items = append(items, imap.String(k), imap.String(v))
		}
		arg = imap.List(items...)
	}

	server := map[string]string{}
	onUntagged := func(keyword string, attrs []imap.Attribute) error {
		if !strings.EqualFold(keyword, "ID") {
			return nil
		}
		if len(attrs) != 1 || attrs[0].Kind != imap.AttrList {
			return nil
		}
		items := attrs[0].List
		for i := 0; i+1 < len(items); i += 2 {
			k, _ := items[i].AsString()
			v, _ := items[i+1].AsString()
			server[k] = v
		}
		return nil
	}

	if _, err := c.pipe.exec(ctx, "ID", []imap.Attribute{arg}, hooks{OnUntagged: onUntagged}); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.serverID = server
	c.mu.Unlock()
	return server, nil
}

// ServerID returns the fields the server reported in its last ID response,
// or nil if ID has not been run on this connection.
func (c *Client) ServerID() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverID
}
