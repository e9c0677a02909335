package imapclient

import (
	"context"
	"strings"

	"github.com/hkdb/imapkit/imap"
)

// Enable runs ENABLE (RFC 5161), asking the server to turn on the named
// extensions (CONDSTORE, QRESYNC, UTF8=ACCEPT) for the rest of the
// connection's lifetime. The server's reply lists only what it actually
// enabled; Enabled() reflects that, not the request.
func (c *Client) Enable(ctx context.Context, names ...string) (imap.EnabledSet, error) {
	if err := c.guard("ENABLE", imap.StateAuthenticated, imap.StateSelected); err != nil {
		return nil, err
	}
	args := make([]imap.Attribute, 0, len(names))
	for _, n := range names {
		args = append(args, imap.Atom(n))
	}

	enabled := imap.EnabledSet{}
	onUntagged := func(keyword string, attrs []imap.Attribute) error {
		if !strings.EqualFold(keyword, "ENABLED") {
			return nil
		}
		for _, a := range attrs {
			if s, ok := a.AsString(); ok {
				enabled.Add(s)
			}
		}
		return nil
	}

	if _, err := c.pipe.exec(ctx, "ENABLE", args, hooks{OnUntagged: onUntagged}); err != nil {
		return nil, err
	}

	c.mu.Lock()
	for name := range enabled {
		c.enabled.Add(name)
	}
	c.mu.Unlock()
	return enabled, nil
}
