package imapclient

import (
	"testing"

	"github.com/hkdb/imapkit/imap"
)

func joinSegments(ec *encodedCommand) string {
	var out []byte
	for _, seg := range ec.Segments {
		if seg.Text != nil {
			out = append(out, seg.Text...)
		} else {
			out = append(out, seg.Literal...)
		}
	}
	return string(out)
}

func TestEncodeCommandSimple(t *testing.T) {
	ec, err := encodeCommand("a1", "NOOP", nil, encodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := joinSegments(ec), "a1 NOOP\r\n"; got != want {
		t.Errorf("encodeCommand() = %q, want %q", got, want)
	}
}

func TestEncodeCommandQuotedString(t *testing.T) {
	ec, err := encodeCommand("a2", "SELECT", []imap.Attribute{imap.String("My \"Folder\"")}, encodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got := joinSegments(ec)
	want := "a2 SELECT \"My \\\"Folder\\\"\"\r\n"
	if got != want {
		t.Errorf("encodeCommand() = %q, want %q", got, want)
	}
}

func TestEncodeCommandLongStringUsesLiteral(t *testing.T) {
	long := make([]byte, literalThreshold+10)
	for i := range long {
		long[i] = 'x'
	}
	ec, err := encodeCommand("a3", "APPEND", []imap.Attribute{imap.String(string(long))}, encodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ec.Segments) < 3 {
		t.Fatalf("expected a literal header segment + literal segment, got %d segments", len(ec.Segments))
	}
	foundLiteral := false
	for _, seg := range ec.Segments {
		if seg.Literal != nil {
			foundLiteral = true
		}
	}
	if !foundLiteral {
		t.Error("long string did not produce a literal segment")
	}
}

func TestEncodeCommandNonASCIIWithoutUTF8AcceptUsesLiteral(t *testing.T) {
	ec, err := encodeCommand("a4", "SEARCH", []imap.Attribute{imap.String("José")}, encodeOptions{UTF8Accept: false})
	if err != nil {
		t.Fatal(err)
	}
	foundLiteral := false
	for _, seg := range ec.Segments {
		if seg.Literal != nil {
			foundLiteral = true
		}
	}
	if !foundLiteral {
		t.Error("non-ASCII string without UTF8=ACCEPT should force a literal")
	}
}

func TestEncodeCommandNonASCIIWithUTF8AcceptUsesQuotedString(t *testing.T) {
	ec, err := encodeCommand("a5", "SEARCH", []imap.Attribute{imap.String("José")}, encodeOptions{UTF8Accept: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, seg := range ec.Segments {
		if seg.Literal != nil {
			t.Error("UTF8=ACCEPT should allow a quoted string instead of a literal")
		}
	}
	got := joinSegments(ec)
	want := "a5 SEARCH \"José\"\r\n"
	if got != want {
		t.Errorf("encodeCommand() = %q, want %q", got, want)
	}
}

func TestEncodeCommandLiteralPlusNonSync(t *testing.T) {
	ec, err := encodeCommand("a6", "APPEND", []imap.Attribute{imap.Literal([]byte("hello"))}, encodeOptions{LiteralPlus: true})
	if err != nil {
		t.Fatal(err)
	}
	var headerSeg, litSeg *cmdSegment
	for i := range ec.Segments {
		if ec.Segments[i].Literal != nil {
			litSeg = &ec.Segments[i]
		} else if headerSeg == nil {
			headerSeg = &ec.Segments[i]
		}
	}
	if litSeg == nil || !litSeg.NonSync {
		t.Error("LITERAL+ should mark the literal segment non-synchronising")
	}
}

func TestEncodeCommandList(t *testing.T) {
	ec, err := encodeCommand("a7", "STORE", []imap.Attribute{
		imap.Sequence("1:3"),
		imap.Atom("+FLAGS"),
		imap.List(imap.Atom(`\Deleted`)),
	}, encodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got := joinSegments(ec)
	want := "a7 STORE 1:3 +FLAGS (\\Deleted)\r\n"
	if got != want {
		t.Errorf("encodeCommand() = %q, want %q", got, want)
	}
}

func TestEncodeCommandLiteral8Header(t *testing.T) {
	ec, err := encodeCommand("a8", "APPEND", []imap.Attribute{imap.Literal8([]byte("bin"))}, encodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, seg := range ec.Segments {
		if seg.Text != nil && string(seg.Text) == "~{3}\r\n" {
			found = true
		}
	}
	if !found {
		t.Error("LITERAL8 should use a '~{N}' header")
	}
}
