package imapclient

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hkdb/imapkit/imap"
)

// respKind distinguishes the three response forms of RFC 3501 §7.
type respKind int

const (
	respUntagged respKind = iota
	respTagged
	respContinuation
)

// rawResponse is one decoded server response line, not yet interpreted by
// the router. Untagged responses have Tag == "*"; continuations have
// Tag == "+" and carry their free-text payload in ContinuationText instead
// of Attrs (SASL continuations are not attribute-tree syntax).
type rawResponse struct {
	Kind              respKind
	Tag               string
	Attrs             []imap.Attribute
	ContinuationText  string
}

// decoder reads and tokenises server responses off a buffered reader,
// handling literals ("{N}\r\n" / "~{N}\r\n") inline since their payload may
// contain arbitrary bytes including CRLF, per spec.md §4.1.
type decoder struct {
	r *bufio.Reader
}

func newDecoder(r io.Reader) *decoder {
	return &decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

func (d *decoder) readResponse() (*rawResponse, error) {
	tag, err := d.readToken()
	if err != nil {
		return nil, err
	}
	if tag == "+" {
		text, err := d.readLineRaw()
		if err != nil {
			return nil, err
		}
		return &rawResponse{Kind: respContinuation, Tag: "+", ContinuationText: strings.TrimSpace(text)}, nil
	}

	attrs, err := d.readAttrSeq(0)
	if err != nil {
		return nil, err
	}
	if tag == "*" {
		return &rawResponse{Kind: respUntagged, Tag: "*", Attrs: attrs}, nil
	}
	return &rawResponse{Kind: respTagged, Tag: tag, Attrs: attrs}, nil
}

// readToken reads a whitespace-delimited token (the tag, "*" or "+"). A
// trailing space separator is consumed; a trailing CR/LF is pushed back so
// the caller (readAttrSeq or readLineRaw) is the single place that consumes
// line terminators.
func (d *decoder) readToken() (string, error) {
	d.skipSpaces()
	var b strings.Builder
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			return "", err
		}
		if c == ' ' {
			return b.String(), nil
		}
		if c == '\r' || c == '\n' {
			d.r.UnreadByte()
			return b.String(), nil
		}
		b.WriteByte(c)
	}
}

func (d *decoder) readLineRaw() (string, error) {
	line, err := d.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (d *decoder) skipSpaces() {
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			return
		}
		if c != ' ' {
			d.r.UnreadByte()
			return
		}
	}
}

// readAttrSeq reads space-separated attributes until, at the given nesting
// depth, it encounters the terminator for that depth: CRLF at depth 0,
// ')' inside a list, ']' inside a section.
func (d *decoder) readAttrSeq(depth int) ([]imap.Attribute, error) {
	var attrs []imap.Attribute
	for {
		d.skipSpaces()
		c, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		switch {
		case c == '\r':
			nc, _ := d.r.Peek(1)
			if len(nc) == 1 && nc[0] == '\n' {
				d.r.ReadByte()
			}
			if depth != 0 {
				return nil, &imap.ProtocolError{Msg: "unexpected CRLF inside nested response structure"}
			}
			return attrs, nil
		case c == '\n':
			if depth != 0 {
				return nil, &imap.ProtocolError{Msg: "unexpected LF inside nested response structure"}
			}
			return attrs, nil
		case c == ')':
			if depth == 0 {
				return nil, &imap.ProtocolError{Msg: "unmatched ')'"}
			}
			return attrs, nil
		case c == ']':
			if depth == 0 {
				return nil, &imap.ProtocolError{Msg: "unmatched ']'"}
			}
			return attrs, nil
		case c == '(':
			items, err := d.readAttrSeq(depth + 1)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, imap.List(items...))
		case c == '[':
			items, err := d.readAttrSeq(depth + 1)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, imap.Section(items...))
		case c == '"':
			s, err := d.readQuoted()
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, imap.String(s))
		case c == '{':
			a, err := d.readLiteral(false)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, a)
		case c == '~':
			nc, err := d.r.ReadByte()
			if err != nil {
				return nil, err
			}
			if nc != '{' {
				return nil, &imap.ProtocolError{Msg: "expected '{' after '~'"}
			}
			a, err := d.readLiteral(true)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, a)
		default:
			if err := d.r.UnreadByte(); err != nil {
				return nil, err
			}
			a, err := d.readAtomLike()
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, a)
		}
	}
}

func (d *decoder) readQuoted() (string, error) {
	var b strings.Builder
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			return "", err
		}
		if c == '"' {
			return b.String(), nil
		}
		if c == '\\' {
			nc, err := d.r.ReadByte()
			if err != nil {
				return "", err
			}
			b.WriteByte(nc)
			continue
		}
		b.WriteByte(c)
	}
}

func (d *decoder) readLiteral(isLiteral8 bool) (imap.Attribute, error) {
	var digits strings.Builder
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			return imap.Attribute{}, err
		}
		if c == '}' {
			break
		}
		if c == '+' {
			// non-synchronising literal marker from a LITERAL+ server echo;
			// irrelevant to the reader, which always just reads N bytes.
			continue
		}
		digits.WriteByte(c)
	}
	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil || n < 0 {
		return imap.Attribute{}, &imap.ProtocolError{Msg: fmt.Sprintf("invalid literal length %q", digits.String())}
	}
	// Consume the CRLF that follows the literal length declaration.
	if err := d.expectCRLF(); err != nil {
		return imap.Attribute{}, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return imap.Attribute{}, &imap.ProtocolError{Msg: "short literal read", Err: err}
	}
	return imap.Attribute{Kind: imap.AttrLiteral, Lit: buf, Literal8: isLiteral8}, nil
}

func (d *decoder) expectCRLF() error {
	c, err := d.r.ReadByte()
	if err != nil {
		return err
	}
	if c == '\r' {
		c2, err := d.r.ReadByte()
		if err != nil {
			return err
		}
		if c2 != '\n' {
			return &imap.ProtocolError{Msg: "expected LF after CR"}
		}
		return nil
	}
	if c == '\n' {
		return nil
	}
	return &imap.ProtocolError{Msg: "expected CRLF after literal length"}
}

// atomStopBytes are bytes that terminate an unquoted atom/sequence token.
func isAtomStop(c byte) bool {
	switch c {
	case ' ', '(', ')', '[', ']', '{', '"', '\r', '\n':
		return true
	default:
		return false
	}
}

func (d *decoder) readAtomLike() (imap.Attribute, error) {
	var b strings.Builder
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			if b.Len() > 0 {
				break
			}
			return imap.Attribute{}, err
		}
		if isAtomStop(c) {
			d.r.UnreadByte()
			break
		}
		b.WriteByte(c)
	}
	s := b.String()
	if strings.EqualFold(s, "NIL") {
		return imap.Nil, nil
	}
	return imap.Atom(s), nil
}
