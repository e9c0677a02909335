package imapclient

import (
	"testing"

	"github.com/hkdb/imapkit/imap"
)

func TestParseAppendUID(t *testing.T) {
	got := parseAppendUID("APPENDUID", []imap.Attribute{imap.Atom("12345"), imap.Atom("900")})
	if !got.HasUID || got.UIDValidity != 12345 || got.UID != 900 {
		t.Errorf("parseAppendUID() = %+v", got)
	}
}

func TestParseAppendUIDMissingCode(t *testing.T) {
	got := parseAppendUID("", nil)
	if got.HasUID {
		t.Errorf("parseAppendUID() with no code should not report a UID: %+v", got)
	}
}

func TestParseAppendUIDWrongCode(t *testing.T) {
	got := parseAppendUID("COPYUID", []imap.Attribute{imap.Atom("1"), imap.Atom("2")})
	if got.HasUID {
		t.Error("parseAppendUID should only recognise APPENDUID")
	}
}

func TestPathsEqualCaseInsensitive(t *testing.T) {
	if !pathsEqual("INBOX", "inbox") {
		t.Error("pathsEqual should be case-insensitive")
	}
	if pathsEqual("INBOX", "Archive") {
		t.Error("different paths should not be equal")
	}
}
