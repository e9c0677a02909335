package imap

import "time"

// PartialWindow restricts a FETCH body-part read to a byte range, per
// spec.md §3 fetch request "bodyParts entries with optional {start,
// maxLength} partial windows" and RFC 3501 §6.4.5 <partial>.
type PartialWindow struct {
	Start     int64
	MaxLength int64
	HasWindow bool
}

// BodyPartRequest is one entry of FetchRequest.BodyParts: a section
// specifier (e.g. "1", "1.2.TEXT", "HEADER.FIELDS (SUBJECT)") plus an
// optional partial window.
type BodyPartRequest struct {
	Section string
	Partial PartialWindow
	Peek    bool
}

// FetchRequest mirrors spec.md §3's "Fetch request" record.
type FetchRequest struct {
	UID           bool
	Flags         bool
	Envelope      bool
	BodyStructure bool
	InternalDate  bool
	Size          bool
	Source        *BodyPartRequest // RFC822 / BODY[] whole-message source
	ThreadID      bool
	Labels        bool // X-GM-LABELS
	Headers       []string // header field names fetched via BODY.PEEK[HEADER.FIELDS (...)]; empty requests none
	AllHeaders    bool     // fetch the whole header via BODY.PEEK[HEADER]
	BodyParts     []BodyPartRequest
	EmailID       bool // OBJECTID EMAILID or X-GM-MSGID
	Binary        bool // prefer BINARY.PEEK over BODY.PEEK when available

	// Macros, expanded by the caller/operations layer before encoding:
	All  bool // FLAGS INTERNALDATE RFC822.SIZE ENVELOPE
	Fast bool // FLAGS INTERNALDATE RFC822.SIZE
	Full bool // All + BODY

	ChangedSince uint64
	HasChanged   bool
	VanishedUIDs bool // appends VANISHED, requires QRESYNC + UID FETCH
}

// Address is one ENVELOPE address-list entry (RFC 3501 §2.3.5).
type Address struct {
	Name    string
	ADL     string
	Mailbox string
	Host    string
}

// Addr renders "mailbox@host", or the bare mailbox for group markers.
func (a Address) Addr() string {
	if a.Host == "" {
		return a.Mailbox
	}
	return a.Mailbox + "@" + a.Host
}

// Envelope is the parsed ENVELOPE fetch item (RFC 3501 §2.3.5).
type Envelope struct {
	Date      time.Time
	Subject   string
	From      []Address
	Sender    []Address
	ReplyTo   []Address
	To        []Address
	Cc        []Address
	Bcc       []Address
	InReplyTo string
	MessageID string
}

// BodyStructure is the recursive BODYSTRUCTURE tree (RFC 3501 §2.3.6). Only
// the structure is modelled; MIME body *content* parsing beyond this tree is
// out of scope per spec.md §1.
type BodyStructure struct {
	MIMEType    string
	MIMESubType string
	Params      map[string]string
	ID          string
	Description string
	Encoding    string
	Size        uint32
	Lines       uint32 // only for text/* and message/rfc822

	// Multipart
	Children []*BodyStructure
	Extended bool

	// message/rfc822 nested envelope/body/lines
	Envelope *Envelope
	Body     *BodyStructure

	Disposition     string
	DispositionParm map[string]string
	Language        []string
	Location        string

	MD5 string
}

// IsMultipart reports whether this node is a multipart/* container.
func (b *BodyStructure) IsMultipart() bool {
	return b != nil && b.MIMEType == "multipart"
}

// FetchItemKind identifies one parsed FETCH response data item.
type FetchItemKind int

const (
	FetchItemUID FetchItemKind = iota
	FetchItemFlags
	FetchItemEnvelope
	FetchItemBodyStructure
	FetchItemInternalDate
	FetchItemRFC822Size
	FetchItemBodySection
	FetchItemModSeq
	FetchItemEmailID
	FetchItemThreadID
	FetchItemLabels
)

// FetchItemData is one decoded FETCH data item, streamed to the caller as
// each untagged "* n FETCH (...)" response arrives (spec.md §4.6 FETCH).
type FetchItemData struct {
	Kind          FetchItemKind
	UID           UID
	Flags         []Flag
	Envelope      *Envelope
	BodyStructure *BodyStructure
	InternalDate  time.Time
	RFC822Size    int64
	Section       string
	Partial       PartialWindow
	Literal       []byte
	ModSeq        uint64
	EmailID       string
	ThreadID      string
	Labels        []string
}

// FetchMessageData is the set of items belonging to a single untagged FETCH
// response, along with the sequence number it was reported against.
type FetchMessageData struct {
	SeqNum uint32
	Items  []FetchItemData
}

func (m *FetchMessageData) UID() (UID, bool) {
	for _, it := range m.Items {
		if it.Kind == FetchItemUID {
			return it.UID, true
		}
	}
	return 0, false
}

func (m *FetchMessageData) Flags() ([]Flag, bool) {
	for _, it := range m.Items {
		if it.Kind == FetchItemFlags {
			return it.Flags, true
		}
	}
	return nil, false
}
