package imapclient

import (
	"context"
	"sort"
	"strings"

	"github.com/hkdb/imapkit/imap"
)

// ListOptions configures LIST (spec.md §4.6 LIST).
type ListOptions struct {
	Reference string
	Pattern   string // defaults to "*" (all mailboxes under Reference)

	// Subscribed restricts to subscribed mailboxes (LSUB, or LIST with the
	// RFC 5258 "SUBSCRIBED" selection option when the server advertises
	// LIST-EXTENDED; we use plain LSUB for broad compatibility).
	Subscribed bool

	// ReturnStatus requests inline STATUS data per entry via RFC 4466's
	// LIST-STATUS extension return option, avoiding one STATUS round trip
	// per mailbox.
	ReturnStatus imap.StatusOptions
}

// List walks the mailbox hierarchy, populating and returning the folder
// cache (spec.md §3 "Folder tree cache"), sorted per spec.md §4.6's LIST
// sort order: INBOX first, then special-use folders by their fixed
// priority, then everything else alphabetically.
func (c *Client) List(ctx context.Context, opts ListOptions) ([]*imap.FolderEntry, error) {
	if err := c.guard("LIST", imap.StateAuthenticated, imap.StateSelected); err != nil {
		return nil, err
	}
	pattern := opts.Pattern
	if pattern == "" {
		pattern = "*"
	}

	cmd := "LIST"
	if opts.Subscribed {
		cmd = "LSUB"
	}
	args := []imap.Attribute{imap.String(opts.Reference), imap.String(pattern)}

	useStatus := cmd == "LIST" && c.Capabilities().Has(imap.CapListStatus) && hasAnyStatusOption(opts.ReturnStatus)
	if useStatus {
		args = append(args, imap.Atom("RETURN"), imap.List(statusReturnOptions(opts.ReturnStatus)...))
	}

	var entries []*imap.FolderEntry
	byPath := map[string]*imap.FolderEntry{}

	onUntagged := func(keyword string, attrs []imap.Attribute) error {
		switch strings.ToUpper(keyword) {
		case "LIST", "LSUB":
			fe := parseListEntry(attrs)
			if fe == nil {
				return nil
			}
			if opts.Subscribed {
				fe.Subscribed = true
			}
			fe.Listed = true
			entries = append(entries, fe)
			byPath[fe.Path] = fe
		case "STATUS":
			path, data := parseStatusUntagged(attrs)
			if fe, ok := byPath[path]; ok {
				fe.Status = data
			}
		}
		return nil
	}

	if _, err := c.pipe.exec(ctx, cmd, args, hooks{OnUntagged: onUntagged}); err != nil {
		return nil, err
	}

	if !useStatus && hasAnyStatusOption(opts.ReturnStatus) {
		for _, fe := range entries {
			if hasAttr(fe.Flags, imap.AttrNoSelect) {
				continue
			}
			data, err := c.Status(ctx, fe.Path, opts.ReturnStatus)
			if err == nil {
				fe.Status = data
			} else {
				fe.StatusErr = err
			}
		}
	}

	for _, fe := range entries {
		fe.SpecialUse = resolveSpecialUse(fe)
	}

	sort.SliceStable(entries, func(i, j int) bool { return listLess(entries[i], entries[j]) })

	c.mu.Lock()
	if c.folders == nil {
		c.folders = map[string]*imap.FolderEntry{}
	}
	for _, fe := range entries {
		c.folders[fe.Path] = fe
	}
	c.mu.Unlock()

	return entries, nil
}

func resolveSpecialUse(fe *imap.FolderEntry) string {
	if imap.HasSpecialUseAttr(fe.Flags) {
		for _, a := range fe.Flags {
			if a == imap.AttrAll || a == imap.AttrArchive || a == imap.AttrDrafts ||
				a == imap.AttrJunk || a == imap.AttrSent || a == imap.AttrTrash || a == imap.AttrFlagged {
				return string(a)
			}
		}
	}
	return imap.GuessSpecialUse(fe.Name, fe.Flags)
}

// listLess implements spec.md §4.6's LIST sort order: INBOX, then
// special-use folders by fixed priority, then alphabetical by path.
func listLess(a, b *imap.FolderEntry) bool {
	ra, oka := imap.SpecialUsePriority(imap.MailboxAttr(a.SpecialUse))
	rb, okb := imap.SpecialUsePriority(imap.MailboxAttr(b.SpecialUse))
	if strings.EqualFold(a.Path, "INBOX") {
		ra, oka = -1, true
	}
	if strings.EqualFold(b.Path, "INBOX") {
		rb, okb = -1, true
	}
	switch {
	case oka && okb:
		if ra != rb {
			return ra < rb
		}
	case oka != okb:
		return oka
	}
	return strings.ToLower(a.Path) < strings.ToLower(b.Path)
}

func hasAttr(attrs []imap.MailboxAttr, want imap.MailboxAttr) bool {
	for _, a := range attrs {
		if a == want {
			return true
		}
	}
	return false
}

func hasAnyStatusOption(o imap.StatusOptions) bool {
	return o.Messages || o.Recent || o.UIDNext || o.UIDValidity || o.Unseen || o.HighestModSeq || o.MailboxID
}

// parseListEntry decodes one "* LIST (flags) delim name" response.
func parseListEntry(attrs []imap.Attribute) *imap.FolderEntry {
	if len(attrs) < 3 {
		return nil
	}
	var flags []imap.MailboxAttr
	if attrs[0].Kind == imap.AttrList {
		for _, a := range attrs[0].List {
			if s, ok := a.AsString(); ok {
				flags = append(flags, imap.MailboxAttr(s))
			}
		}
	}
	fe := &imap.FolderEntry{Flags: flags}
	if attrs[1].Kind != imap.AttrNil {
		if s, ok := attrs[1].AsString(); ok && len(s) == 1 {
			fe.Delimiter = s[0]
			fe.HasDelim = true
		}
	}
	rawName, _ := attrs[2].AsString()
	fe.PathAsListed = rawName
	decoded, err := imap.DecodeMailboxPath(rawName, fe.Delimiter)
	if err != nil {
		decoded = rawName
	}
	fe.Path = decoded
	if fe.HasDelim {
		parts := strings.Split(decoded, string(fe.Delimiter))
		fe.Name = parts[len(parts)-1]
		fe.ParentPath = parts[:len(parts)-1]
	} else {
		fe.Name = decoded
	}
	return fe
}
