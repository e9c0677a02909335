package imap

import "strings"

// GuessSpecialUse applies the name-match heuristic table for folders lacking
// a SPECIAL-USE attribute from the server, grounded on the teacher's
// determineFolderType (internal/imap/client.go): check RFC 6154 attributes
// first, then fall back to case-insensitive substring matching on the
// mailbox name. Returns "" when nothing matches.
func GuessSpecialUse(name string, attrs []MailboxAttr) string {
	for _, a := range attrs {
		switch a {
		case AttrAll, AttrArchive, AttrDrafts, AttrJunk, AttrSent, AttrTrash, AttrFlagged:
			return string(a)
		}
	}

	if strings.EqualFold(name, "INBOX") {
		return string(AttrInbox)
	}

	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "sent"):
		return string(AttrSent)
	case strings.Contains(lower, "draft"):
		return string(AttrDrafts)
	case strings.Contains(lower, "trash"), strings.Contains(lower, "deleted"):
		return string(AttrTrash)
	case strings.Contains(lower, "spam"), strings.Contains(lower, "junk"):
		return string(AttrJunk)
	case strings.Contains(lower, "archive"):
		return string(AttrArchive)
	case strings.Contains(lower, "all mail"):
		return string(AttrAll)
	case strings.Contains(lower, "flagged"), strings.Contains(lower, "starred"):
		return string(AttrFlagged)
	default:
		return ""
	}
}

// HasSpecialUseAttr reports whether attrs contains any RFC 6154 special-use
// flag (as opposed to a name-matched guess).
func HasSpecialUseAttr(attrs []MailboxAttr) bool {
	for _, a := range attrs {
		switch a {
		case AttrAll, AttrArchive, AttrDrafts, AttrJunk, AttrSent, AttrTrash, AttrFlagged:
			return true
		}
	}
	return false
}
