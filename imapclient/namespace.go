package imapclient

import (
	"context"
	"strings"

	"github.com/hkdb/imapkit/imap"
)

// Namespace runs NAMESPACE (RFC 2342), returning the personal, other-users
// and shared namespace lists the server advertises.
func (c *Client) Namespace(ctx context.Context) (*imap.Namespaces, error) {
	if err := c.guard("NAMESPACE", imap.StateAuthenticated, imap.StateSelected); err != nil {
		return nil, err
	}
	ns := &imap.Namespaces{}
	onUntagged := func(keyword string, attrs []imap.Attribute) error {
		if !strings.EqualFold(keyword, "NAMESPACE") || len(attrs) < 3 {
			return nil
		}
		ns.Personal = parseNamespaceList(attrs[0])
		ns.OtherUsers = parseNamespaceList(attrs[1])
		ns.Shared = parseNamespaceList(attrs[2])
		return nil
	}
	if _, err := c.pipe.exec(ctx, "NAMESPACE", nil, hooks{OnUntagged: onUntagged}); err != nil {
		return nil, err
	}
	return ns, nil
}

func parseNamespaceList(a imap.Attribute) []imap.NamespaceDescriptor {
	if a.Kind != imap.AttrList {
		return nil
	}
	var out []imap.NamespaceDescriptor
	for _, entry := range a.List {
		if entry.Kind != imap.AttrList || len(entry.List) < 1 {
			continue
		}
		prefix, _ := entry.List[0].AsString()
		desc := imap.NamespaceDescriptor{Prefix: prefix}
		if len(entry.List) > 1 {
			if d, ok := entry.List[1].AsString(); ok && len(d) == 1 {
				desc.Delimiter, desc.HasDelim = d[0], true
			}
		}
		out = append(out, desc)
	}
	return out
}
