package imapclient

import (
	"context"

	"github.com/hkdb/imapkit/imap"
)

// Expunge permanently removes all messages marked \Deleted in the selected
// mailbox, returning the sequence numbers the server reported expunged. The
// connection-core untagged handler (cache.go) already decrements the cached
// Exists count as each "* n EXPUNGE" arrives; this just collects them for
// the caller.
func (c *Client) Expunge(ctx context.Context) ([]uint32, error) {
	if err := c.guard("EXPUNGE", imap.StateSelected); err != nil {
		return nil, err
	}
	var nums []uint32
	onUntagged := func(keyword string, attrs []imap.Attribute) error {
		if keyword != "EXPUNGE" {
			return nil
		}
		if n, ok := uintArg(attrs, 0); ok {
			nums = append(nums, uint32(n))
		}
		return nil
	}
	if _, err := c.pipe.exec(ctx, "EXPUNGE", nil, hooks{OnUntagged: onUntagged}); err != nil {
		return nil, err
	}
	return nums, nil
}

// UIDExpunge runs UID EXPUNGE (RFC 4315 §2.1), restricting the purge to the
// given UID set; the server must advertise UIDPLUS.
func (c *Client) UIDExpunge(ctx context.Context, set imap.UIDSet) ([]uint32, error) {
	if err := c.guard("UID EXPUNGE", imap.StateSelected); err != nil {
		return nil, err
	}
	if !c.Capabilities().Has(imap.CapUIDPlus) {
		return nil, &imap.MissingExtensionError{Extension: imap.CapUIDPlus}
	}
	var nums []uint32
	onUntagged := func(keyword string, attrs []imap.Attribute) error {
		if keyword != "EXPUNGE" {
			return nil
		}
		if n, ok := uintArg(attrs, 0); ok {
			nums = append(nums, uint32(n))
		}
		return nil
	}
	args := []imap.Attribute{imap.Sequence(set.String())}
	if _, err := c.pipe.exec(ctx, "UID EXPUNGE", args, hooks{OnUntagged: onUntagged}); err != nil {
		return nil, err
	}
	return nums, nil
}
