package imapclient

import (
	"context"
	"strconv"
	"strings"

	"github.com/hkdb/imapkit/imap"
)

// GetQuota runs GETQUOTA (RFC 2087) against a quota root name (not a
// mailbox path).
func (c *Client) GetQuota(ctx context.Context, root string) (*imap.QuotaData, error) {
	if err := c.guard("GETQUOTA", imap.StateAuthenticated, imap.StateSelected); err != nil {
		return nil, err
	}
	var data *imap.QuotaData
	onUntagged := func(keyword string, attrs []imap.Attribute) error {
		if !strings.EqualFold(keyword, "QUOTA") {
			return nil
		}
		data = parseQuotaUntagged(attrs)
		return nil
	}
	if _, err := c.pipe.exec(ctx, "GETQUOTA", []imap.Attribute{imap.String(root)}, hooks{OnUntagged: onUntagged}); err != nil {
		return nil, err
	}
	return data, nil
}

// GetQuotaRoot runs GETQUOTAROOT against a mailbox path, returning the
// mailbox's quota roots plus each root's resource usage.
func (c *Client) GetQuotaRoot(ctx context.Context, mailbox string) (*imap.QuotaRootData, error) {
	if err := c.guard("GETQUOTAROOT", imap.StateAuthenticated, imap.StateSelected); err != nil {
		return nil, err
	}
	wireName := imap.EncodeMailboxPath(mailbox, c.mailboxDelimiter(mailbox))
	result := &imap.QuotaRootData{Mailbox: mailbox}
	onUntagged := func(keyword string, attrs []imap.Attribute) error {
		switch strings.ToUpper(keyword) {
		case "QUOTAROOT":
			for _, a := range attrs[1:] {
				if s, ok := a.AsString(); ok {
					result.Roots = append(result.Roots, s)
				}
			}
		case "QUOTA":
			if q := parseQuotaUntagged(attrs); q != nil {
				result.Quotas = append(result.Quotas, *q)
			}
		}
		return nil
	}
	if _, err := c.pipe.exec(ctx, "GETQUOTAROOT", []imap.Attribute{imap.String(wireName)}, hooks{OnUntagged: onUntagged}); err != nil {
		return nil, err
	}
	return result, nil
}

func parseQuotaUntagged(attrs []imap.Attribute) *imap.QuotaData {
	if len(attrs) < 2 {
		return nil
	}
	root, _ := attrs[0].AsString()
	data := &imap.QuotaData{Root: root}
	if attrs[1].Kind != imap.AttrList {
		return data
	}
	items := attrs[1].List
	for i := 0; i+2 < len(items); i += 3 {
		name, _ := items[i].AsString()
		usageStr, _ := items[i+1].AsString()
		limitStr, _ := items[i+2].AsString()
		usage, _ := strconv.ParseUint(usageStr, 10, 64)
		limit, _ := strconv.ParseUint(limitStr, 10, 64)
		data.Resources = append(data.Resources, imap.QuotaResource{Name: name, Usage: usage, Limit: limit})
	}
	return data
}
