package imap

import "testing"

func TestConnStateString(t *testing.T) {
	tests := []struct {
		s    ConnState
		want string
	}{
		{StateNotAuthenticated, "NOT_AUTHENTICATED"},
		{StateAuthenticated, "AUTHENTICATED"},
		{StateSelected, "SELECTED"},
		{StateLogout, "LOGOUT"},
		{ConnState(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("ConnState(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
