package imap

import "testing"

func TestUTF7RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		decoded string
		encoded string
	}{
		{name: "ascii only", decoded: "INBOX", encoded: "INBOX"},
		{name: "literal ampersand", decoded: "Q&A", encoded: "Q&-A"},
		// RFC 3501's own worked example.
		{name: "japanese segment", decoded: "日本語", encoded: "&ZeVnLIqe-"},
		{name: "taipei segment", decoded: "台北", encoded: "&U,BTFw-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeUTF7(tt.decoded); got != tt.encoded {
				t.Errorf("EncodeUTF7(%q) = %q, want %q", tt.decoded, got, tt.encoded)
			}
			got, err := DecodeUTF7(tt.encoded)
			if err != nil {
				t.Fatalf("DecodeUTF7(%q): %v", tt.encoded, err)
			}
			if got != tt.decoded {
				t.Errorf("DecodeUTF7(%q) = %q, want %q", tt.encoded, got, tt.decoded)
			}
		})
	}
}

func TestDecodeMailboxPath(t *testing.T) {
	got, err := DecodeMailboxPath(`~peter/mail/&U,BTFw-/&ZeVnLIqe-`, '/')
	if err != nil {
		t.Fatal(err)
	}
	want := "~peter/mail/台北/日本語"
	if got != want {
		t.Errorf("DecodeMailboxPath() = %q, want %q", got, want)
	}
}

func TestEncodeMailboxPath(t *testing.T) {
	got := EncodeMailboxPath("~peter/mail/台北/日本語", '/')
	want := `~peter/mail/&U,BTFw-/&ZeVnLIqe-`
	if got != want {
		t.Errorf("EncodeMailboxPath() = %q, want %q", got, want)
	}
}

func TestDecodeUTF7Invalid(t *testing.T) {
	if _, err := DecodeUTF7("&!!!-"); err == nil {
		t.Error("DecodeUTF7 with invalid base64 content: want error, got nil")
	}
}
