package imapclient

import (
	"context"

	"github.com/hkdb/imapkit/imap"
)

// Noop sends NOOP, the no-op used to poll for pending untagged responses
// (spec.md §4.6 NOOP) and, internally, by APPEND's sequence-discovery
// fallback and by the IDLE fallback loop.
func (c *Client) Noop(ctx context.Context) error {
	if err := c.guard("NOOP", imap.StateNotAuthenticated, imap.StateAuthenticated, imap.StateSelected); err != nil {
		return err
	}
	_, err := c.pipe.exec(ctx, "NOOP", nil, hooks{})
	return err
}
