package imap

// SelectedMailbox is the cached state of the mailbox currently SELECTed or
// EXAMINEd (spec.md §3 "Selected mailbox"). It is owned by the mailbox cache
// and must only be mutated by it.
type SelectedMailbox struct {
	Path            string
	Delimiter       byte
	Flags           FlagSet
	PermanentFlags  FlagSet
	Exists          uint32
	UIDNext         UID
	UIDValidity    uint64
	HighestModSeq  uint64
	HasModSeq      bool // false when NOMODSEQ was reported
	ReadOnly       bool
	MailboxID      string
	HasMailboxID   bool
	SpecialUse     string
	Subscribed     bool
	Listed         bool
}

// Clone returns a deep-enough copy for safe external handout (events carry a
// snapshot rather than a live pointer into the cache).
func (m *SelectedMailbox) Clone() *SelectedMailbox {
	if m == nil {
		return nil
	}
	c := *m
	c.Flags = make(FlagSet, len(m.Flags))
	for f := range m.Flags {
		c.Flags[f] = struct{}{}
	}
	c.PermanentFlags = make(FlagSet, len(m.PermanentFlags))
	for f := range m.PermanentFlags {
		c.PermanentFlags[f] = struct{}{}
	}
	return &c
}

// NamespaceDescriptor is one entry of a NAMESPACE triple (personal,
// other-users, shared).
type NamespaceDescriptor struct {
	Prefix    string
	Delimiter byte
	HasDelim  bool
}

// Namespaces holds the three optional namespace lists of spec.md §3.
type Namespaces struct {
	Personal   []NamespaceDescriptor
	OtherUsers []NamespaceDescriptor
	Shared     []NamespaceDescriptor
}

// MailboxAttr is a LIST/LSUB mailbox attribute flag such as \Noselect,
// \HasChildren, or a RFC 6154 special-use flag.
type MailboxAttr string

const (
	AttrNoSelect   MailboxAttr = "\\Noselect"
	AttrNoInferior MailboxAttr = "\\Noinferiors"
	AttrHasChild   MailboxAttr = "\\HasChildren"
	AttrHasNoChild MailboxAttr = "\\HasNoChildren"
	AttrMarked     MailboxAttr = "\\Marked"
	AttrUnmarked   MailboxAttr = "\\Unmarked"

	AttrAll     MailboxAttr = "\\All"
	AttrArchive MailboxAttr = "\\Archive"
	AttrDrafts  MailboxAttr = "\\Drafts"
	AttrFlagged MailboxAttr = "\\Flagged"
	AttrJunk    MailboxAttr = "\\Junk"
	AttrSent    MailboxAttr = "\\Sent"
	AttrTrash   MailboxAttr = "\\Trash"
	AttrInbox   MailboxAttr = "\\Inbox"
)

// specialUsePriority orders special-use folders for LIST output (spec.md
// §4.6 LIST sort order).
var specialUsePriority = map[MailboxAttr]int{
	AttrInbox:   0,
	AttrDrafts:  1,
	AttrSent:    2,
	AttrJunk:    3,
	AttrTrash:   4,
	AttrArchive: 5,
	AttrFlagged: 6,
	AttrAll:     7,
}

// SpecialUsePriority returns the LIST sort rank for a special-use attribute,
// and whether it is one of the recognised priority roles.
func SpecialUsePriority(attr MailboxAttr) (int, bool) {
	p, ok := specialUsePriority[attr]
	return p, ok
}

// FolderEntry is one node of the folder-tree cache built by LIST/LSUB
// (spec.md §3 "Folder tree cache").
type FolderEntry struct {
	Path         string
	PathAsListed string
	Name         string
	ParentPath   []string
	Delimiter    byte
	HasDelim     bool
	Flags        []MailboxAttr
	SpecialUse   string
	Listed       bool
	Subscribed   bool
	Status       *StatusData
	StatusErr    error
}
