package imapclient

import (
	"context"
	"strconv"
	"strings"

	"github.com/hkdb/imapkit/imap"
)

// SearchResult is the parsed result of SEARCH/UID SEARCH, including the
// optional MODSEQ of the most recently changed matching message (RFC 7162
// §3.1.5, returned when the query includes a MODSEQ criterion).
type SearchResult struct {
	Nums   []uint32
	UIDs   []imap.UID
	ModSeq uint64
}

// Search runs SEARCH (or UID SEARCH when uid is true), compiling q via
// imap.CompileSearch with the connection's current capabilities/enabled-set.
func (c *Client) Search(ctx context.Context, q *imap.SearchQuery, uid bool) (*SearchResult, error) {
	if err := c.guard("SEARCH", imap.StateSelected); err != nil {
		return nil, err
	}
	utf8Accepted := c.Enabled().Has(imap.CapUTF8Accept)
	attrs, err := imap.CompileSearch(q, c.Capabilities(), c.Mailbox(), utf8Accepted)
	if err != nil {
		return nil, err
	}

	cmd := "SEARCH"
	if uid {
		cmd = "UID SEARCH"
	}

	res := &SearchResult{}
	onUntagged := func(keyword string, items []imap.Attribute) error {
		if strings.ToUpper(keyword) != "SEARCH" {
			return nil
		}
		for i := 0; i < len(items); i++ {
			if items[i].Kind == imap.AttrList && len(items[i].List) == 2 {
				if k, _ := items[i].List[0].AsString(); strings.EqualFold(k, "MODSEQ") {
					if v, ok := items[i].List[1].AsString(); ok {
						if n, err := strconv.ParseUint(v, 10, 64); err == nil {
							res.ModSeq = n
						}
					}
				}
				continue
			}
			s, ok := items[i].AsString()
			if !ok {
				continue
			}
			if strings.EqualFold(s, "MODSEQ") && i+1 < len(items) {
				if v, ok2 := items[i+1].AsString(); ok2 {
					if n, err := strconv.ParseUint(v, 10, 64); err == nil {
						res.ModSeq = n
					}
				}
				i++
				continue
			}
			n, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				continue
			}
			if uid {
				res.UIDs = append(res.UIDs, imap.UID(n))
			} else {
				res.Nums = append(res.Nums, uint32(n))
			}
		}
		return nil
	}

	if _, err := c.pipe.exec(ctx, cmd, attrs, hooks{OnUntagged: onUntagged}); err != nil {
		return nil, err
	}
	return res, nil
}
