package imapclient

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hkdb/imapkit/imap"
)

// literalThreshold is the implementation-defined string length above which
// the encoder prefers a synchronising literal over a quoted string, per
// spec.md §4.1 ("or is longer than an implementation threshold").
const literalThreshold = 1024

// encodeOptions carries the capability-derived choices the encoder needs:
// whether the server accepts non-ASCII quoted strings (UTF8=ACCEPT) and
// whether literals can skip the continuation handshake (LITERAL+/LITERAL-).
type encodeOptions struct {
	UTF8Accept  bool
	LiteralPlus bool
	// LiteralMinus allows non-synchronising literals only up to 4096 octets
	// (RFC 7888); LiteralPlus has no such limit.
	LiteralMinus bool
}

// cmdSegment is one piece of an encoded command: either a ready-to-write
// text fragment, or a literal payload that may require waiting for a "+"
// continuation before it can be written (spec.md §4.2 step 3).
type cmdSegment struct {
	Text     []byte
	Literal  []byte
	Literal8 bool
	NonSync  bool
}

// encodedCommand is a command line broken into segments at each literal
// boundary, so the pipeline can pause for continuations between segments.
type encodedCommand struct {
	Segments []cmdSegment
}

// encodeCommand serialises "<tag> <name> <args...>\r\n" into segments.
func encodeCommand(tag, name string, args []imap.Attribute, opts encodeOptions) (*encodedCommand, error) {
	ec := &encodedCommand{}
	var buf strings.Builder
	buf.WriteString(tag)
	buf.WriteByte(' ')
	buf.WriteString(name)

	flush := func() {
		if buf.Len() > 0 {
			ec.Segments = append(ec.Segments, cmdSegment{Text: []byte(buf.String())})
			buf.Reset()
		}
	}

	for _, a := range args {
		buf.WriteByte(' ')
		if err := encodeAttribute(&buf, a, opts, ec, &flushCtx{flush: flush}); err != nil {
			return nil, err
		}
	}
	buf.WriteString("\r\n")
	flush()
	return ec, nil
}

// flushCtx lets encodeAttribute ask the caller to emit buffered text before
// a literal segment without each recursive call re-deriving the closure.
type flushCtx struct {
	flush func()
}

func encodeAttribute(buf *strings.Builder, a imap.Attribute, opts encodeOptions, ec *encodedCommand, fc *flushCtx) error {
	switch a.Kind {
	case imap.AttrNil:
		buf.WriteString("NIL")
	case imap.AttrAtom:
		buf.WriteString(a.Atom)
	case imap.AttrSequence:
		if a.Seq == "" {
			return fmt.Errorf("imap: empty sequence set")
		}
		buf.WriteString(a.Seq)
	case imap.AttrString:
		writeStringAttr(buf, a.Str, opts, ec, fc)
	case imap.AttrLiteral:
		fc.flush()
		ec.Segments = append(ec.Segments, cmdSegment{Text: []byte(literalHeader(len(a.Lit), a.Literal8))})
		nonSync := opts.LiteralPlus || (opts.LiteralMinus && len(a.Lit) <= 4096)
		ec.Segments = append(ec.Segments, cmdSegment{Literal: a.Lit, Literal8: a.Literal8, NonSync: nonSync})
	case imap.AttrList:
		buf.WriteByte('(')
		for i, item := range a.List {
			if i > 0 {
				buf.WriteByte(' ')
			}
			if err := encodeAttribute(buf, item, opts, ec, fc); err != nil {
				return err
			}
		}
		buf.WriteByte(')')
	case imap.AttrSection:
		buf.WriteByte('[')
		for i, item := range a.List {
			if i > 0 {
				buf.WriteByte(' ')
			}
			if err := encodeAttribute(buf, item, opts, ec, fc); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("imap: unknown attribute kind %d", a.Kind)
	}
	return nil
}

func literalHeader(n int, literal8 bool) string {
	if literal8 {
		return "~{" + strconv.Itoa(n) + "}\r\n"
	}
	return "{" + strconv.Itoa(n) + "}\r\n"
}

// writeStringAttr picks quoted-string vs. literal encoding per spec.md §4.1:
// CR/LF, non-ASCII without accepted UTF8=ACCEPT, or length over the
// threshold all force a literal, non-synchronising when LITERAL+/LITERAL-
// allow it.
func writeStringAttr(buf *strings.Builder, s string, opts encodeOptions, ec *encodedCommand, fc *flushCtx) {
	needsLiteral := strings.ContainsAny(s, "\r\n") || len(s) > literalThreshold
	if !needsLiteral && !opts.UTF8Accept {
		for i := 0; i < len(s); i++ {
			if s[i] > 127 {
				needsLiteral = true
				break
			}
		}
	}
	if needsLiteral {
		fc.flush()
		data := []byte(s)
		ec.Segments = append(ec.Segments, cmdSegment{Text: []byte(literalHeader(len(data), false))})
		ec.Segments = append(ec.Segments, cmdSegment{Literal: data, NonSync: opts.LiteralPlus || (opts.LiteralMinus && len(data) <= 4096)})
		return
	}
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteByte(c)
	}
	buf.WriteByte('"')
}
