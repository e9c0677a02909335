package imap

import (
	"strings"
	"testing"
)

func renderAttrs(attrs []Attribute) string {
	var parts []string
	for _, a := range attrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, " ")
}

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

func TestCompileSearchAllQuery(t *testing.T) {
	attrs, err := CompileSearch(&SearchQuery{}, CapabilitySet{}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := renderAttrs(attrs); got != "ALL" {
		t.Errorf("empty query compiled to %q, want %q", got, "ALL")
	}
}

func TestCompileSearchSymmetricToggle(t *testing.T) {
	attrs, err := CompileSearch(&SearchQuery{Seen: boolp(true)}, CapabilitySet{}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := renderAttrs(attrs); got != "SEEN" {
		t.Errorf("Seen=true compiled to %q, want %q", got, "SEEN")
	}

	attrs, err = CompileSearch(&SearchQuery{Seen: boolp(false)}, CapabilitySet{}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := renderAttrs(attrs); got != "UNSEEN" {
		t.Errorf("Seen=false compiled to %q, want %q", got, "UNSEEN")
	}
}

func TestCompileSearchCharsetPrefixForNonASCII(t *testing.T) {
	attrs, err := CompileSearch(&SearchQuery{From: strp("josé@example.com")}, CapabilitySet{}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	got := renderAttrs(attrs)
	if !strings.HasPrefix(got, `CHARSET UTF-8`) {
		t.Errorf("non-ASCII search criterion missing CHARSET prefix: %q", got)
	}
}

func TestCompileSearchUTF8AcceptSuppressesCharset(t *testing.T) {
	attrs, err := CompileSearch(&SearchQuery{From: strp("josé@example.com")}, CapabilitySet{}, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	got := renderAttrs(attrs)
	if strings.Contains(got, "CHARSET") {
		t.Errorf("UTF8=ACCEPT still emitted CHARSET: %q", got)
	}
}

func TestCompileSearchNot(t *testing.T) {
	attrs, err := CompileSearch(&SearchQuery{Not: &SearchQuery{Deleted: boolp(true)}}, CapabilitySet{}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := renderAttrs(attrs); got != "NOT DELETED" {
		t.Errorf("NOT compiled to %q, want %q", got, "NOT DELETED")
	}
}

func TestCompileSearchOrTreeBalanced(t *testing.T) {
	q := &SearchQuery{Or: []SearchQuery{
		{From: strp("a")}, {From: strp("b")}, {From: strp("c")}, {From: strp("d")},
	}}
	attrs, err := CompileSearch(q, CapabilitySet{}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	want := `OR OR FROM "a" FROM "b" OR FROM "c" FROM "d"`
	if got := renderAttrs(attrs); got != want {
		t.Errorf("OR tree compiled to %q, want %q", got, want)
	}
}

func TestCompileSearchGmailRawRequiresCapability(t *testing.T) {
	_, err := CompileSearch(&SearchQuery{GmailRaw: "has:attachment"}, CapabilitySet{}, nil, false)
	if err == nil {
		t.Fatal("expected MissingExtensionError without X-GM-EXT-1")
	}
	var mee *MissingExtensionError
	if !isMissingExtensionError(err, &mee) {
		t.Errorf("expected *MissingExtensionError, got %T: %v", err, err)
	}
}

func isMissingExtensionError(err error, target **MissingExtensionError) bool {
	if e, ok := err.(*MissingExtensionError); ok {
		*target = e
		return true
	}
	return false
}

func TestCompileSearchKeywordFilteredByPermission(t *testing.T) {
	mailbox := &SelectedMailbox{
		PermanentFlags: FlagSet{Flag("Important"): struct{}{}},
	}
	q := &SearchQuery{Keyword: []string{"Important", "NotAllowed"}}
	attrs, err := CompileSearch(q, CapabilitySet{}, mailbox, false)
	if err != nil {
		t.Fatal(err)
	}
	got := renderAttrs(attrs)
	if got != "KEYWORD Important" {
		t.Errorf("keyword filtering: got %q, want %q", got, "KEYWORD Important")
	}
}

func TestOrAcrossHeaders(t *testing.T) {
	q := OrAcrossHeaders("invoice")
	if len(q.Or) != 5 {
		t.Fatalf("OrAcrossHeaders produced %d clauses, want 5", len(q.Or))
	}
	attrs, err := CompileSearch(q, CapabilitySet{}, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	got := renderAttrs(attrs)
	for _, field := range []string{"FROM", "SUBJECT", "TO", "CC", "BODY"} {
		if !strings.Contains(got, field) {
			t.Errorf("OrAcrossHeaders compiled query missing field %q: %q", field, got)
		}
	}
}
