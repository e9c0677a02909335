package imap

import (
	"fmt"
	"strings"
	"time"
)

// asciiOnly reports whether s contains only bytes <= 127.
func asciiOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

// CompileSearch translates a SearchQuery into the attribute list the wire
// encoder emits, per spec.md §4.5. caps/enabled/mailbox gate extension use
// (WITHIN, X-GM-EXT-1, OBJECTID, permitted keywords); utf8Accepted reports
// whether UTF8=ACCEPT is both advertised and enabled, suppressing the
// CHARSET UTF-8 prefix non-ASCII text would otherwise require.
func CompileSearch(q *SearchQuery, caps CapabilitySet, mailbox *SelectedMailbox, utf8Accepted bool) ([]Attribute, error) {
	attrs, _, err := compileSearchKeys(q, caps, mailbox, utf8Accepted)
	return attrs, err
}

// compileSearchKeys is CompileSearch's worker: it additionally reports how
// many implicitly-AND'd top-level search-keys the returned attrs represent,
// so a caller combining this operand with OR/NOT (search_compile.go's
// wrapIfMultiple) can tell "one search-key spanning N wire tokens" (e.g.
// FROM "a", keys=1) from "N AND'd search-keys" (e.g. FROM "a" SUBJECT "b",
// keys=2) - only the latter needs parenthesising when nested. A NOT or OR
// result is always a single self-delimiting search-key (keys=1): RFC 3501's
// grammar has NOT/OR each consume exactly one/two already-bounded
// search-keys, so nesting them never needs extra parens.
func compileSearchKeys(q *SearchQuery, caps CapabilitySet, mailbox *SelectedMailbox, utf8Accepted bool) ([]Attribute, int, error) {
	if q.IsAllQuery() {
		return []Attribute{Atom("ALL")}, 1, nil
	}

	var attrs []Attribute
	keys := 0
	needsCharset := false

	addText := func(kw string, v *string) error {
		if v == nil {
			return nil
		}
		if !utf8Accepted && !asciiOnly(*v) {
			needsCharset = true
		}
		attrs = append(attrs, Atom(kw), String(*v))
		return nil
	}

	// Rule 2: existence-only flags.
	if q.All {
		attrs = append(attrs, Atom("ALL"))
		keys++
	}
	if q.New {
		attrs = append(attrs, Atom("NEW"))
		keys++
	}
	if q.Old {
		attrs = append(attrs, Atom("OLD"))
		keys++
	}
	if q.Recent {
		attrs = append(attrs, Atom("RECENT"))
		keys++
	}

	// Rule 1: symmetric toggles.
	appendToggle := func(v *bool, pos, neg string) {
		if v == nil {
			return
		}
		if *v {
			attrs = append(attrs, Atom(pos))
		} else {
			attrs = append(attrs, Atom(neg))
		}
		keys++
	}
	appendToggle(q.Seen, "SEEN", "UNSEEN")
	appendToggle(q.Answered, "ANSWERED", "UNANSWERED")
	appendToggle(q.Flagged, "FLAGGED", "UNFLAGGED")
	appendToggle(q.Deleted, "DELETED", "UNDELETED")
	appendToggle(q.Draft, "DRAFT", "UNDRAFT")

	// Rule 3: text fields.
	beforeLen := len(attrs)
	if err := addText("FROM", q.From); err != nil {
		return nil, 0, err
	}
	_ = addText("TO", q.To)
	_ = addText("CC", q.Cc)
	_ = addText("BCC", q.Bcc)
	_ = addText("SUBJECT", q.Subject)
	_ = addText("BODY", q.Body)
	_ = addText("TEXT", q.Text)
	keys += (len(attrs) - beforeLen) / 2

	// Rule 4: date bounds.
	useWithin := caps.Has(CapWithin)
	if q.Before != nil {
		before := *q.Before
		// "before with a non-midnight timestamp rolls forward by 24h".
		if before.Hour() != 0 || before.Minute() != 0 || before.Second() != 0 {
			before = before.Add(24 * time.Hour)
		}
		if useWithin {
			secs := int64(time.Until(before).Seconds())
			if secs < 0 {
				secs = 0
			}
			attrs = append(attrs, Atom("OLDER"), Atom(fmt.Sprintf("%d", secs)))
		} else {
			attrs = append(attrs, Atom("BEFORE"), Atom(formatIMAPDate(before)))
		}
		keys++
	}
	if q.Since != nil {
		if useWithin {
			secs := int64(time.Until(*q.Since).Seconds())
			if secs < 0 {
				secs = 0
			}
			attrs = append(attrs, Atom("YOUNGER"), Atom(fmt.Sprintf("%d", secs)))
		} else {
			attrs = append(attrs, Atom("SINCE"), Atom(formatIMAPDate(*q.Since)))
		}
		keys++
	}
	if q.On != nil {
		attrs = append(attrs, Atom("ON"), Atom(formatIMAPDate(*q.On)))
		keys++
	}

	// Rule 5: numeric.
	if q.Larger != nil {
		attrs = append(attrs, Atom("LARGER"), Atom(fmt.Sprintf("%d", *q.Larger)))
		keys++
	}
	if q.Smaller != nil {
		attrs = append(attrs, Atom("SMALLER"), Atom(fmt.Sprintf("%d", *q.Smaller)))
		keys++
	}
	if q.ModSeq != nil {
		attrs = append(attrs, Atom("MODSEQ"), Atom(fmt.Sprintf("%d", *q.ModSeq)))
		keys++
	}

	// Rule 6: uid/seq.
	if q.UID != "" {
		if strings.ContainsAny(q.UID, " \t\r\n") {
			return nil, 0, &ProtocolError{Msg: "search UID criterion contains whitespace"}
		}
		attrs = append(attrs, Atom("UID"), Sequence(q.UID))
		keys++
	}
	if q.Seq != "" {
		if strings.ContainsAny(q.Seq, " \t\r\n") {
			return nil, 0, &ProtocolError{Msg: "search sequence criterion contains whitespace"}
		}
		attrs = append(attrs, Sequence(q.Seq))
		keys++
	}

	// Rule 7: emailId/threadId.
	if q.EmailID != "" {
		switch {
		case caps.Has(CapObjectID):
			attrs = append(attrs, Atom("EMAILID"), Atom(q.EmailID))
			keys++
		case caps.Has(CapXGmExt1):
			attrs = append(attrs, Atom("X-GM-MSGID"), Atom(q.EmailID))
			keys++
		}
	}
	if q.ThreadID != "" {
		switch {
		case caps.Has(CapObjectID):
			attrs = append(attrs, Atom("THREADID"), Atom(q.ThreadID))
			keys++
		case caps.Has(CapXGmExt1):
			attrs = append(attrs, Atom("X-GM-THRID"), Atom(q.ThreadID))
			keys++
		}
	}

	// Rule 8: gmail raw search.
	if q.GmailRaw != "" {
		if !caps.Has(CapXGmExt1) {
			return nil, 0, &MissingExtensionError{Extension: CapXGmExt1}
		}
		attrs = append(attrs, Atom("X-GM-RAW"), String(q.GmailRaw))
		keys++
	}

	// Rule 9: keyword/unKeyword, filtered by mailbox permission.
	var permanent, mboxFlags FlagSet
	if mailbox != nil {
		permanent, mboxFlags = mailbox.PermanentFlags, mailbox.Flags
	}
	for _, kw := range q.Keyword {
		if Permits(permanent, Flag(kw)) || mboxFlags.Has(Flag(kw)) {
			attrs = append(attrs, Atom("KEYWORD"), Atom(kw))
			keys++
		}
	}
	for _, kw := range q.UnKeyword {
		if Permits(permanent, Flag(kw)) || mboxFlags.Has(Flag(kw)) {
			attrs = append(attrs, Atom("UNKEYWORD"), Atom(kw))
			keys++
		}
	}

	// Rule 10: header.
	for _, h := range q.Header {
		val := h.Value
		if h.ExistsOnly {
			val = ""
		}
		if !utf8Accepted && !asciiOnly(val) {
			needsCharset = true
		}
		attrs = append(attrs, Atom("HEADER"), Atom(h.Name), String(val))
		keys++
	}

	// Rule 11: not. NOT always consumes exactly one (already self-bounded)
	// search-key, so its result is one key regardless of what's inside.
	if q.Not != nil {
		sub, subKeys, err := compileSearchKeys(q.Not, caps, mailbox, utf8Accepted)
		if err != nil {
			return nil, 0, err
		}
		sub, subCS := splitCharset(sub)
		if subCS {
			needsCharset = true
		}
		attrs = append(attrs, Atom("NOT"))
		attrs = append(attrs, wrapIfMultiple(sub, subKeys)...)
		keys++
	}

	// Rule 12: balanced OR tree. Like NOT, the whole tree is one key: OR
	// always consumes exactly two already-bounded search-keys, so further
	// nesting never needs parens around it.
	if len(q.Or) > 0 {
		orAttrs, needsCS, err := compileOrTree(q.Or, caps, mailbox, utf8Accepted)
		if err != nil {
			return nil, 0, err
		}
		if needsCS {
			needsCharset = true
		}
		attrs = append(attrs, orAttrs...)
		keys++
	}

	if needsCharset {
		attrs = append([]Attribute{Atom("CHARSET"), Atom("UTF-8")}, attrs...)
	}
	return attrs, keys, nil
}

// wrapIfMultiple parenthesises an operand that is itself more than one
// implicitly-AND'd search-key (keys > 1), so NOT/OR apply to it as a single
// search key per RFC 3501's <search-key> grammar. An operand of exactly one
// key - whatever its wire-token length, and regardless of whether that one
// key is itself a NOT/OR subtree - never needs wrapping.
func wrapIfMultiple(attrs []Attribute, keys int) []Attribute {
	if keys <= 1 {
		return attrs
	}
	return []Attribute{List(attrs...)}
}

// compileOrTree implements spec.md §9 "Shared OR-tree building": pair
// adjacent entries, recurse until two groups remain, flatten single-element
// wrappers. With N entries this yields the deterministic balanced order of
// spec.md §8 scenario 3: OR OR FROM a FROM b OR FROM c FROM d.
func compileOrTree(queries []SearchQuery, caps CapabilitySet, mailbox *SelectedMailbox, utf8 bool) ([]Attribute, bool, error) {
	operands := make([]orOperand, len(queries))
	needsCharset := false
	for i := range queries {
		attrs, keys, err := compileSearchKeys(&queries[i], caps, mailbox, utf8)
		if err != nil {
			return nil, false, err
		}
		attrs, cs := splitCharset(attrs)
		if cs {
			needsCharset = true
		}
		operands[i] = orOperand{attrs: attrs, keys: keys}
	}
	result, err := orReduce(operands)
	if err != nil {
		return nil, false, err
	}
	return result.attrs, needsCharset, nil
}

// splitCharset strips the CHARSET UTF-8 prefix from a nested operand's
// attrs and reports whether it was present, so the prefix appears once at
// the front of the whole query rather than inside a NOT/OR operand.
func splitCharset(attrs []Attribute) ([]Attribute, bool) {
	if len(attrs) >= 2 && attrs[0].Kind == AttrAtom && attrs[0].Atom == "CHARSET" {
		return attrs[2:], true
	}
	return attrs, false
}

// orOperand is one operand in an OR reduction: its compiled attributes plus
// how many implicitly-AND'd search-keys they represent (see wrapIfMultiple).
type orOperand struct {
	attrs []Attribute
	keys  int
}

// orReduce pairs adjacent operands repeatedly: [a,b,c,d] -> OR(OR(a,b),
// OR(c,d)) flattened to the token stream "OR OR a b OR c d" form used by
// the wire encoder. Each freshly-built OR combination is itself exactly one
// key going forward, so further folding never wraps it in parens.
func orReduce(operands []orOperand) (orOperand, error) {
	switch len(operands) {
	case 0:
		return orOperand{}, fmt.Errorf("imap: empty OR operand list")
	case 1:
		return operands[0], nil
	}
	var next []orOperand
	for i := 0; i < len(operands); i += 2 {
		if i+1 == len(operands) {
			next = append(next, operands[i])
			continue
		}
		left := wrapIfMultiple(operands[i].attrs, operands[i].keys)
		right := wrapIfMultiple(operands[i+1].attrs, operands[i+1].keys)
		combined := append([]Attribute{Atom("OR")}, left...)
		combined = append(combined, right...)
		next = append(next, orOperand{attrs: combined, keys: 1})
	}
	return orReduce(next)
}

func formatIMAPDate(t time.Time) string {
	return t.UTC().Format("02-Jan-2006")
}

// OrAcrossHeaders builds the cross-server-compatible multi-field query
// described in SPEC_FULL.md §3 ("OR-based fallback multi-field search"),
// grounded on the teacher's buildSearchCriteria: OR across FROM, SUBJECT,
// TO, CC and BODY for a single query string.
func OrAcrossHeaders(query string) *SearchQuery {
	mk := func(field string) SearchQuery {
		v := query
		switch field {
		case "FROM":
			return SearchQuery{From: &v}
		case "SUBJECT":
			return SearchQuery{Subject: &v}
		case "TO":
			return SearchQuery{To: &v}
		case "CC":
			return SearchQuery{Cc: &v}
		default:
			return SearchQuery{Body: &v}
		}
	}
	return &SearchQuery{Or: []SearchQuery{
		mk("FROM"), mk("SUBJECT"), mk("TO"), mk("CC"), mk("BODY"),
	}}
}
