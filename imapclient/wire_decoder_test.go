package imapclient

import (
	"strings"
	"testing"

	"github.com/hkdb/imapkit/imap"
)

func TestDecodeUntaggedSimple(t *testing.T) {
	d := newDecoder(strings.NewReader("* 172 EXISTS\r\n"))
	resp, err := d.readResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Kind != respUntagged {
		t.Fatalf("Kind = %v, want respUntagged", resp.Kind)
	}
	if len(resp.Attrs) != 2 {
		t.Fatalf("Attrs = %v, want 2 entries", resp.Attrs)
	}
	if s, _ := resp.Attrs[0].AsString(); s != "172" {
		t.Errorf("Attrs[0] = %q, want %q", s, "172")
	}
	if s, _ := resp.Attrs[1].AsString(); s != "EXISTS" {
		t.Errorf("Attrs[1] = %q, want %q", s, "EXISTS")
	}
}

func TestDecodeTaggedWithBracketedCode(t *testing.T) {
	d := newDecoder(strings.NewReader("A1 OK [READ-WRITE] SELECT completed\r\n"))
	resp, err := d.readResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Kind != respTagged || resp.Tag != "A1" {
		t.Fatalf("got Kind=%v Tag=%q, want respTagged A1", resp.Kind, resp.Tag)
	}
	if len(resp.Attrs) < 3 {
		t.Fatalf("Attrs = %v, want at least 3 entries", resp.Attrs)
	}
	if resp.Attrs[1].Kind != imap.AttrSection {
		t.Errorf("Attrs[1].Kind = %v, want AttrSection", resp.Attrs[1].Kind)
	}
}

func TestDecodeQuotedStringWithEscapes(t *testing.T) {
	d := newDecoder(strings.NewReader(`* LIST (\HasNoChildren) "/" "My \"Folder\""` + "\r\n"))
	resp, err := d.readResponse()
	if err != nil {
		t.Fatal(err)
	}
	last := resp.Attrs[len(resp.Attrs)-1]
	s, ok := last.AsString()
	if !ok || s != `My "Folder"` {
		t.Errorf("got %q, want %q", s, `My "Folder"`)
	}
}

func TestDecodeLiteral(t *testing.T) {
	d := newDecoder(strings.NewReader("* 1 FETCH (BODY[] {5}\r\nhello)\r\n"))
	resp, err := d.readResponse()
	if err != nil {
		t.Fatal(err)
	}
	var list imap.Attribute
	for _, a := range resp.Attrs {
		if a.Kind == imap.AttrList {
			list = a
		}
	}
	if list.Kind != imap.AttrList {
		t.Fatalf("expected a list attribute in %v", resp.Attrs)
	}
	found := false
	for _, a := range list.List {
		if a.Kind == imap.AttrLiteral && string(a.Lit) == "hello" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected literal {5}\\r\\nhello inside the list, got %v", list.List)
	}
}

func TestDecodeLiteral8(t *testing.T) {
	d := newDecoder(strings.NewReader("* 1 FETCH (BINARY.PEEK[] ~{3}\r\nabc)\r\n"))
	resp, err := d.readResponse()
	if err != nil {
		t.Fatal(err)
	}
	var list imap.Attribute
	for _, a := range resp.Attrs {
		if a.Kind == imap.AttrList {
			list = a
		}
	}
	found := false
	for _, a := range list.List {
		if a.Kind == imap.AttrLiteral && a.Literal8 && string(a.Lit) == "abc" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a LITERAL8 attribute, got %v", list.List)
	}
}

func TestDecodeNIL(t *testing.T) {
	d := newDecoder(strings.NewReader("* 1 FETCH (ENVELOPE NIL)\r\n"))
	resp, err := d.readResponse()
	if err != nil {
		t.Fatal(err)
	}
	var list imap.Attribute
	for _, a := range resp.Attrs {
		if a.Kind == imap.AttrList {
			list = a
		}
	}
	if len(list.List) != 2 || !list.List[1].IsNil() {
		t.Errorf("expected second element NIL, got %v", list.List)
	}
}

func TestDecodeContinuation(t *testing.T) {
	d := newDecoder(strings.NewReader("+ ready for literal\r\n"))
	resp, err := d.readResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Kind != respContinuation {
		t.Fatalf("Kind = %v, want respContinuation", resp.Kind)
	}
	if resp.ContinuationText != "ready for literal" {
		t.Errorf("ContinuationText = %q, want %q", resp.ContinuationText, "ready for literal")
	}
}

func TestDecodeNestedList(t *testing.T) {
	d := newDecoder(strings.NewReader("* SEARCH (1 2 3)\r\n"))
	resp, err := d.readResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Attrs[1].Kind != imap.AttrList || len(resp.Attrs[1].List) != 3 {
		t.Errorf("got %v, want a 3-element list", resp.Attrs)
	}
}

func TestDecodeUnmatchedCloseParenIsError(t *testing.T) {
	d := newDecoder(strings.NewReader("* FOO)\r\n"))
	if _, err := d.readResponse(); err == nil {
		t.Error("expected a protocol error for an unmatched ')'")
	}
}
