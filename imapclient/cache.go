package imapclient

import (
	"strconv"
	"strings"

	"github.com/hkdb/imapkit/imap"
)

// onUntagged is the connection-core sink every untagged response passes
// through first (spec.md §4.3), before the in-flight command's own hook
// sees it. It maintains capabilities, the enabled-set, the mailbox cache's
// monotonic counters, and the server greeting.
func (c *Client) onUntagged(_ *imap.Attribute, keyword string, attrs []imap.Attribute) error {
	c.mu.Lock()
	greetingCB := c.greetingCB
	c.greetingCB = nil
	c.mu.Unlock()
	if greetingCB != nil {
		c.applyResponseCode(attrs)
		greetingCB(strings.ToUpper(keyword), nil)
		return nil
	}

	upper := strings.ToUpper(keyword)
	switch upper {
	case "OK":
		c.applyResponseCode(attrs)
	case "BYE":
		c.setState(imap.StateLogout)
		c.emit(Event{Kind: "bye", Text: attrsText(attrs)})
	case "CAPABILITY":
		c.setCapabilities(attrs)
	case "FLAGS":
		c.withMailbox(func(m *imap.SelectedMailbox) {
			m.Flags = attrsToFlagSet(attrs)
		})
	case "VANISHED":
		c.applyVanished(attrs)
	case "EXISTS":
		if n, ok := uintArg(attrs, 0); ok {
			var path string
			var prev uint32
			changed := false
			c.withMailbox(func(m *imap.SelectedMailbox) {
				path = m.Path
				prev = m.Exists
				changed = uint32(n) != prev
				m.Exists = uint32(n)
			})
			if changed {
				c.emit(Event{Kind: "exists", Path: path, Num: uint32(n), PrevCount: prev})
			}
		}
	case "EXPUNGE":
		if n, ok := uintArg(attrs, 0); ok {
			c.withMailbox(func(m *imap.SelectedMailbox) {
				if m.Exists > 0 {
					m.Exists--
				}
			})
			c.emit(Event{Kind: "expunge", Num: uint32(n)})
		}
	case "RECENT":
		// RECENT is tracked only transiently; spec.md does not cache it.
	case "FETCH":
		if n, ok := uintArg(attrs, 0); ok && len(attrs) > 1 && attrs[1].Kind == imap.AttrList {
			c.applyFetchFlagUpdate(uint32(n), attrs[1].List)
		}
	case "SEARCH", "SORT", "STATUS", "LIST", "LSUB", "NAMESPACE", "QUOTA", "QUOTAROOT", "ID", "ENABLED":
		// Command-specific; connection-core has nothing to update.
	}
	return nil
}

// applyFetchFlagUpdate updates cached per-message state from an unsolicited
// FETCH (flag changes pushed by another client, or IDLE notifications),
// per spec.md §4.6's "FLAGS" event and MODSEQ monotonicity rule.
func (c *Client) applyFetchFlagUpdate(seq uint32, items []imap.Attribute) {
	var flags []imap.Flag
	var modseq uint64
	var uid imap.UID
	hasModSeq, hasUID := false, false
	for i := 0; i+1 < len(items); i += 2 {
		name, _ := items[i].AsString()
		switch strings.ToUpper(name) {
		case "FLAGS":
			if items[i+1].Kind == imap.AttrList {
				flags = attrsToFlags(items[i+1].List)
			}
		case "UID":
			if v, ok := uintArg(items, i+1); ok {
				uid, hasUID = imap.UID(v), true
			}
		case "MODSEQ":
			if items[i+1].Kind == imap.AttrList && len(items[i+1].List) == 1 {
				if s, ok := items[i+1].List[0].AsString(); ok {
					if v, err := strconv.ParseUint(s, 10, 64); err == nil {
						modseq, hasModSeq = v, true
					}
				}
			}
		}
	}
	var path string
	if hasModSeq {
		c.withMailbox(func(m *imap.SelectedMailbox) {
			path = m.Path
			if modseq > m.HighestModSeq {
				m.HighestModSeq = modseq
			}
		})
	} else {
		c.withMailbox(func(m *imap.SelectedMailbox) { path = m.Path })
	}
	if flags != nil {
		ev := Event{Kind: "flags", Path: path, Num: seq, Flags: flags}
		if hasUID {
			ev.UID = uid
		}
		if hasModSeq {
			ev.ModSeq = modseq
		}
		c.emit(ev)
	}
}

// applyVanished handles "* VANISHED [(EARLIER)] <uid-set>" (RFC 7162 §3.2.10),
// the QRESYNC replacement for EXPUNGE that reports removals by UID.
func (c *Client) applyVanished(attrs []imap.Attribute) {
	earlier := false
	rest := attrs
	if len(rest) > 0 && rest[0].Kind == imap.AttrList {
		for _, a := range rest[0].List {
			if s, ok := a.AsString(); ok && strings.EqualFold(s, "EARLIER") {
				earlier = true
			}
		}
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return
	}
	uidStr, ok := rest[0].AsString()
	if !ok {
		return
	}
	c.emit(Event{Kind: "vanished", Text: uidStr})
	if earlier {
		return
	}
	set, err := imap.ParseSeqSet(uidStr)
	if err != nil {
		return
	}
	removed := uint32(len(set.Expand(^uint32(0))))
	c.withMailbox(func(m *imap.SelectedMailbox) {
		if removed > m.Exists {
			removed = m.Exists
		}
		m.Exists -= removed
	})
}

func (c *Client) withMailbox(fn func(m *imap.SelectedMailbox)) {
	c.mu.Lock()
	if c.mailbox == nil {
		c.mu.Unlock()
		return
	}
	fn(c.mailbox)
	c.mu.Unlock()
}

func (c *Client) setCapabilities(attrs []imap.Attribute) {
	caps := imap.CapabilitySet{}
	for _, a := range attrs {
		s, ok := a.AsString()
		if !ok {
			continue
		}
		if idx := strings.IndexByte(s, '='); idx >= 0 {
			name, val := s[:idx], s[idx+1:]
			if n, err := strconv.Atoi(val); err == nil {
				caps.SetParam(strings.ToUpper(name), n)
				continue
			}
		}
		caps.Set(s)
	}
	c.mu.Lock()
	c.caps = caps
	c.mu.Unlock()
}

// applyResponseCode inspects an "OK [CODE ...] text" response's bracketed
// section for state relevant to connection-core (CAPABILITY, UIDVALIDITY,
// UIDNEXT, HIGHESTMODSEQ, PERMANENTFLAGS, READ-ONLY/READ-WRITE).
func (c *Client) applyResponseCode(attrs []imap.Attribute) {
	if len(attrs) == 0 || attrs[0].Kind != imap.AttrSection {
		return
	}
	code := attrs[0].List
	if len(code) == 0 {
		return
	}
	name, _ := code[0].AsString()
	switch strings.ToUpper(name) {
	case "CAPABILITY":
		c.setCapabilities(code[1:])
	case "UIDVALIDITY":
		if v, ok := uintArg(code, 1); ok {
			c.withMailbox(func(m *imap.SelectedMailbox) { m.UIDValidity = v })
		}
	case "UIDNEXT":
		if v, ok := uintArg(code, 1); ok {
			c.withMailbox(func(m *imap.SelectedMailbox) { m.UIDNext = imap.UID(v) })
		}
	case "HIGHESTMODSEQ":
		if v, ok := uintArg(code, 1); ok {
			c.withMailbox(func(m *imap.SelectedMailbox) {
				if v > m.HighestModSeq {
					m.HighestModSeq = v
				}
				m.HasModSeq = true
			})
		}
	case "NOMODSEQ":
		c.withMailbox(func(m *imap.SelectedMailbox) { m.HasModSeq = false })
	case "PERMANENTFLAGS":
		if len(code) > 1 && code[1].Kind == imap.AttrList {
			c.withMailbox(func(m *imap.SelectedMailbox) { m.PermanentFlags = attrsToFlagSet(code[1].List) })
		}
	case "READ-ONLY":
		c.withMailbox(func(m *imap.SelectedMailbox) { m.ReadOnly = true })
	case "READ-WRITE":
		c.withMailbox(func(m *imap.SelectedMailbox) { m.ReadOnly = false })
	case "MAILBOXID":
		if len(code) > 1 {
			if s, ok := code[1].AsString(); ok {
				c.withMailbox(func(m *imap.SelectedMailbox) { m.MailboxID, m.HasMailboxID = s, true })
			}
		}
	}
}

func uintArg(code []imap.Attribute, idx int) (uint64, bool) {
	if idx >= len(code) {
		return 0, false
	}
	s, ok := code[idx].AsString()
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return v, err == nil
}

func attrsToFlags(attrs []imap.Attribute) []imap.Flag {
	out := make([]imap.Flag, 0, len(attrs))
	for _, a := range attrs {
		if s, ok := a.AsString(); ok {
			out = append(out, imap.Flag(s))
		}
	}
	return out
}

func attrsToFlagSet(attrs []imap.Attribute) imap.FlagSet {
	return imap.NewFlagSet(attrsToFlags(attrs)...)
}

func attrsText(attrs []imap.Attribute) string {
	var parts []string
	for _, a := range attrs {
		if s, ok := a.AsString(); ok {
			parts = append(parts, s)
		}
	}
	return joinSpace(parts)
}
