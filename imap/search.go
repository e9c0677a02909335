package imap

import "time"

// HeaderCriterion is one entry of SearchQuery.Header: a header name plus
// either an existence check or a substring match (spec.md §4.5 rule 10).
// "true" in the source query record becomes ExistsOnly with an empty Value.
type HeaderCriterion struct {
	Name       string
	Value      string
	ExistsOnly bool
}

// SearchQuery is the recursive declarative query record of spec.md §3
// ("Search query"). Pointer-typed boolean toggles distinguish "not
// specified" (nil) from an explicit true/false; spec.md §4.5 rule 1 requires
// symmetric UN-prefix handling, e.g. Seen=false compiles to UNSEEN and
// Seen=true compiles to SEEN, from a single field rather than a pair.
type SearchQuery struct {
	// Existence-only flags: emit their atom only when true.
	All, New, Old, Recent bool

	// Symmetric SEEN/UNSEEN-style toggles.
	Seen, Answered, Flagged, Deleted, Draft *bool

	// Text fields (ASCII unless CHARSET UTF-8 is prefixed).
	From, To, Cc, Bcc, Subject, Body, Text *string

	// Arrival-date bounds. Before/Since compile to the OLDER/YOUNGER
	// relative-seconds form (§4.5 rule 4) when the server advertises
	// WITHIN; otherwise BEFORE/SINCE with dd-Mon-yyyy is used. On always
	// compiles to ON dd-Mon-yyyy.
	Before, Since, On *time.Time

	Larger, Smaller *int64
	ModSeq          *uint64

	// UID and Seq are pre-formatted, whitespace-free sequence-set strings
	// (spec.md §4.5 rule 6).
	UID string
	Seq string

	EmailID  string
	ThreadID string

	GmailRaw string

	Keyword, UnKeyword []string

	Header []HeaderCriterion

	Not *SearchQuery
	Or  []SearchQuery
}

// IsAllQuery reports whether q compiles to the trivial "ALL" search: the
// zero value, or an explicit All=true with nothing else set (spec.md §4.6
// SEARCH: "ALL/empty/true query compiles to SEARCH ALL").
func (q *SearchQuery) IsAllQuery() bool {
	if q == nil {
		return true
	}
	if q.All && q.isOtherwiseEmpty() {
		return true
	}
	return q.isOtherwiseEmpty() && !q.New && !q.Old && !q.Recent
}

func (q *SearchQuery) isOtherwiseEmpty() bool {
	return !q.New && !q.Old && !q.Recent &&
		q.Seen == nil && q.Answered == nil && q.Flagged == nil && q.Deleted == nil && q.Draft == nil &&
		q.From == nil && q.To == nil && q.Cc == nil && q.Bcc == nil && q.Subject == nil && q.Body == nil && q.Text == nil &&
		q.Before == nil && q.Since == nil && q.On == nil &&
		q.Larger == nil && q.Smaller == nil && q.ModSeq == nil &&
		q.UID == "" && q.Seq == "" && q.EmailID == "" && q.ThreadID == "" && q.GmailRaw == "" &&
		len(q.Keyword) == 0 && len(q.UnKeyword) == 0 && len(q.Header) == 0 &&
		q.Not == nil && len(q.Or) == 0
}
