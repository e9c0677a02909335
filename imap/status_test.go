package imap

import "testing"

func TestStatusOptionsFilterSupported(t *testing.T) {
	opts := StatusOptions{Messages: true, HighestModSeq: true, MailboxID: true}

	none := opts.FilterSupported(CapabilitySet{})
	if none.HighestModSeq || none.MailboxID {
		t.Errorf("unsupported items should be dropped: %+v", none)
	}
	if !none.Messages {
		t.Error("Messages does not require a capability and should survive filtering")
	}

	caps := CapabilitySet{}
	caps.Set(CapCondStore)
	caps.Set(CapObjectID)
	full := opts.FilterSupported(caps)
	if !full.HighestModSeq || !full.MailboxID {
		t.Errorf("supported items should survive filtering: %+v", full)
	}
}
