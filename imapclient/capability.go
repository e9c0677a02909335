package imapclient

import (
	"context"

	"github.com/hkdb/imapkit/imap"
)

// Capability runs CAPABILITY and returns the refreshed capability set. Valid
// in any state before logout (spec.md §4.4 guard table).
func (c *Client) Capability(ctx context.Context) (imap.CapabilitySet, error) {
	if err := c.guard("CAPABILITY", imap.StateNotAuthenticated, imap.StateAuthenticated, imap.StateSelected); err != nil {
		return nil, err
	}
	_, err := c.pipe.exec(ctx, "CAPABILITY", nil, hooks{})
	if err != nil {
		return nil, err
	}
	return c.Capabilities(), nil
}
