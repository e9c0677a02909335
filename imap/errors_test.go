package imap

import (
	"errors"
	"testing"
)

func TestCommandErrorMessage(t *testing.T) {
	err := &CommandError{Command: "SELECT", Status: "NO", ServerResponseCode: "TRYCREATE", ResponseText: "no such mailbox"}
	want := `imap: SELECT NO [TRYCREATE] no such mailbox`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := &CommandError{Command: "NOOP", Status: "BAD", ResponseText: "unknown command"}
	want = "imap: NOOP BAD unknown command"
	if got := bare.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrongStateErrorUnwrapsToErrWrongState(t *testing.T) {
	err := &WrongStateError{Command: "SELECT", Have: StateNotAuthenticated, Want: []ConnState{StateAuthenticated}}
	if !errors.Is(err, ErrWrongState) {
		t.Error("WrongStateError should unwrap to ErrWrongState")
	}
}

func TestProtocolErrorUnwrap(t *testing.T) {
	inner := errors.New("short read")
	err := &ProtocolError{Msg: "literal truncated", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("ProtocolError should unwrap to its wrapped error")
	}
}

func TestAuthErrorMessage(t *testing.T) {
	err := &AuthError{Response: "Invalid credentials"}
	if got := err.Error(); got != "imap: authentication failed: Invalid credentials" {
		t.Errorf("Error() = %q", got)
	}
}
