package imapclient

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hkdb/imapkit/imap"
)

// FetchHandle streams FetchMessageData as it arrives off the wire, rather
// than buffering the whole response, per spec.md §4.6 FETCH "Returns a
// streaming iterator of per-message data rather than buffering the whole
// response set".
type FetchHandle struct {
	ch   chan *imap.FetchMessageData
	done chan error
}

// Messages returns the channel of per-message results. It closes when the
// command completes (successfully or not); call Wait after draining it to
// obtain the final error.
func (h *FetchHandle) Messages() <-chan *imap.FetchMessageData { return h.ch }

// Wait blocks for the command's tagged completion and returns its error.
func (h *FetchHandle) Wait() error { return <-h.done }

// Fetch issues FETCH (or UID FETCH) and returns a streaming handle. Large
// sequence sets are not chunked here; callers that want batching should use
// imap.SeqSet.Chunk and issue one Fetch per chunk (SPEC_FULL.md §3).
func (c *Client) Fetch(ctx context.Context, set imap.NumSet, req imap.FetchRequest) (*FetchHandle, error) {
	if err := c.guard("FETCH", imap.StateSelected); err != nil {
		return nil, err
	}
	cmd := "FETCH"
	if set.IsUID {
		cmd = "UID FETCH"
	}
	items := buildFetchItems(req, c.Capabilities())
	args := []imap.Attribute{imap.Sequence(set.Set.String()), imap.List(items...)}

	if req.HasChanged || req.VanishedUIDs {
		var modArgs []imap.Attribute
		modArgs = append(modArgs, imap.Atom("CHANGEDSINCE"), imap.Atom(strconv.FormatUint(req.ChangedSince, 10)))
		if req.VanishedUIDs && set.IsUID && c.Capabilities().Has(imap.CapQResync) {
			modArgs = append(modArgs, imap.Atom("VANISHED"))
		}
		args = append(args, imap.List(modArgs...))
	}

	h := &FetchHandle{ch: make(chan *imap.FetchMessageData, 32), done: make(chan error, 1)}

	onUntagged := func(keyword string, attrs []imap.Attribute) error {
		if strings.ToUpper(keyword) != "FETCH" {
			return nil
		}
		if len(attrs) < 2 || attrs[1].Kind != imap.AttrList {
			return nil
		}
		seq, _ := attrs[0].AsString()
		n, _ := strconv.ParseUint(seq, 10, 32)
		msg := &imap.FetchMessageData{SeqNum: uint32(n), Items: parseFetchItems(attrs[1].List)}
		select {
		case h.ch <- msg:
		case <-ctx.Done():
		}
		return nil
	}

	go func() {
		_, err := c.pipe.exec(ctx, cmd, args, hooks{OnUntagged: onUntagged})
		close(h.ch)
		h.done <- err
	}()

	return h, nil
}

// buildFetchItems expands a FetchRequest into the FETCH macro/item list,
// preferring BINARY.PEEK over BODY.PEEK when the caller asked for it and the
// server advertises BINARY (spec.md §4.6 FETCH).
func buildFetchItems(req imap.FetchRequest, caps imap.CapabilitySet) []imap.Attribute {
	var items []imap.Attribute
	add := func(a imap.Attribute) { items = append(items, a) }

	if req.All {
		add(imap.Atom("FLAGS"))
		add(imap.Atom("INTERNALDATE"))
		add(imap.Atom("RFC822.SIZE"))
		add(imap.Atom("ENVELOPE"))
	}
	if req.Fast {
		add(imap.Atom("FLAGS"))
		add(imap.Atom("INTERNALDATE"))
		add(imap.Atom("RFC822.SIZE"))
	}
	if req.Full {
		add(imap.Atom("FLAGS"))
		add(imap.Atom("INTERNALDATE"))
		add(imap.Atom("RFC822.SIZE"))
		add(imap.Atom("ENVELOPE"))
		add(imap.Atom("BODY"))
	}
	if req.UID {
		add(imap.Atom("UID"))
	}
	if req.Flags {
		add(imap.Atom("FLAGS"))
	}
	if req.Envelope {
		add(imap.Atom("ENVELOPE"))
	}
	if req.BodyStructure {
		add(imap.Atom("BODYSTRUCTURE"))
	}
	if req.InternalDate {
		add(imap.Atom("INTERNALDATE"))
	}
	if req.Size {
		add(imap.Atom("RFC822.SIZE"))
	}
	if caps.Has(imap.CapCondStore) && (req.HasChanged || req.VanishedUIDs) {
		add(imap.Atom("MODSEQ"))
	}
	if req.EmailID {
		if caps.Has(imap.CapObjectID) {
			add(imap.Atom("EMAILID"))
		} else if caps.Has(imap.CapXGmExt1) {
			add(imap.Atom("X-GM-MSGID"))
		}
	}
	if req.ThreadID && caps.Has(imap.CapXGmExt1) {
		add(imap.Atom("X-GM-THRID"))
	}
	if req.Labels && caps.Has(imap.CapXGmExt1) {
		add(imap.Atom("X-GM-LABELS"))
	}
	if req.Source != nil {
		add(bodyPartAttr(*req.Source, req.Binary, caps))
	}
	if req.AllHeaders {
		add(bodyPartAttr(imap.BodyPartRequest{Section: "HEADER", Peek: true}, false, caps))
	}
	if len(req.Headers) > 0 {
		add(imap.Atom("BODY.PEEK[HEADER.FIELDS (" + strings.Join(req.Headers, " ") + ")]"))
	}
	for _, bp := range req.BodyParts {
		add(bodyPartAttr(bp, req.Binary, caps))
	}
	return items
}

// bodyPartAttr renders a FETCH body-part specifier, e.g. "BODY.PEEK[1.TEXT]"
// or "BINARY[2]<0.4096>", as a single atom token.
func bodyPartAttr(bp imap.BodyPartRequest, preferBinary bool, caps imap.CapabilitySet) imap.Attribute {
	name := "BODY"
	if preferBinary && caps.Has(imap.CapBinary) {
		name = "BINARY"
	}
	if bp.Peek {
		name += ".PEEK"
	}
	text := name + "[" + bp.Section + "]"
	if bp.Partial.HasWindow {
		text += partialSuffix(bp.Partial)
	}
	return imap.Atom(text)
}

func partialSuffix(p imap.PartialWindow) string {
	if p.MaxLength > 0 {
		return "<" + strconv.FormatInt(p.Start, 10) + "." + strconv.FormatInt(p.MaxLength, 10) + ">"
	}
	return "<" + strconv.FormatInt(p.Start, 10) + ">"
}

// parseFetchItems decodes the (key value key value ...) list of a single
// FETCH response into the item records of spec.md §3.
func parseFetchItems(kvs []imap.Attribute) []imap.FetchItemData {
	var out []imap.FetchItemData
	for i := 0; i < len(kvs); i++ {
		name, ok := kvs[i].AsString()
		if !ok {
			continue
		}
		upper := strings.ToUpper(name)
		hasVal := i+1 < len(kvs)
		var val imap.Attribute
		if hasVal {
			val = kvs[i+1]
		}
		switch {
		case upper == "UID" && hasVal:
			n, _ := strconv.ParseUint(valStr(val), 10, 32)
			out = append(out, imap.FetchItemData{Kind: imap.FetchItemUID, UID: imap.UID(n)})
			i++
		case upper == "FLAGS" && hasVal:
			out = append(out, imap.FetchItemData{Kind: imap.FetchItemFlags, Flags: attrsToFlags(listOrEmpty(val))})
			i++
		case upper == "INTERNALDATE" && hasVal:
			t, _ := parseIMAPDateTime(valStr(val))
			out = append(out, imap.FetchItemData{Kind: imap.FetchItemInternalDate, InternalDate: t})
			i++
		case upper == "RFC822.SIZE" && hasVal:
			n, _ := strconv.ParseInt(valStr(val), 10, 64)
			out = append(out, imap.FetchItemData{Kind: imap.FetchItemRFC822Size, RFC822Size: n})
			i++
		case upper == "MODSEQ" && hasVal:
			if val.Kind == imap.AttrList && len(val.List) == 1 {
				n, _ := strconv.ParseUint(valStr(val.List[0]), 10, 64)
				out = append(out, imap.FetchItemData{Kind: imap.FetchItemModSeq, ModSeq: n})
			}
			i++
		case upper == "ENVELOPE" && hasVal:
			out = append(out, imap.FetchItemData{Kind: imap.FetchItemEnvelope, Envelope: parseEnvelope(val)})
			i++
		case upper == "BODYSTRUCTURE" && hasVal, upper == "BODY" && hasVal && val.Kind == imap.AttrList:
			out = append(out, imap.FetchItemData{Kind: imap.FetchItemBodyStructure, BodyStructure: parseBodyStructure(val)})
			i++
		case upper == "EMAILID" && hasVal, upper == "X-GM-MSGID" && hasVal:
			out = append(out, imap.FetchItemData{Kind: imap.FetchItemEmailID, EmailID: valStr(val)})
			i++
		case upper == "THREADID" && hasVal, upper == "X-GM-THRID" && hasVal:
			out = append(out, imap.FetchItemData{Kind: imap.FetchItemThreadID, ThreadID: valStr(val)})
			i++
		case upper == "X-GM-LABELS" && hasVal:
			out = append(out, imap.FetchItemData{Kind: imap.FetchItemLabels, Labels: attrsToFlagStrings(listOrEmpty(val))})
			i++
		case strings.HasPrefix(upper, "BODY[") || strings.HasPrefix(upper, "BODY.PEEK[") ||
			strings.HasPrefix(upper, "BINARY[") || strings.HasPrefix(upper, "BINARY.PEEK[") ||
			upper == "RFC822" || upper == "RFC822.TEXT" || upper == "RFC822.HEADER":
			var lit []byte
			if hasVal {
				if s, ok := val.AsString(); ok {
					lit = []byte(s)
				}
				i++
			}
			out = append(out, imap.FetchItemData{Kind: imap.FetchItemBodySection, Section: sectionFromKey(name), Literal: lit})
		}
	}
	return out
}

func valStr(a imap.Attribute) string {
	s, _ := a.AsString()
	return s
}

func listOrEmpty(a imap.Attribute) []imap.Attribute {
	if a.Kind == imap.AttrList {
		return a.List
	}
	return nil
}

func attrsToFlagStrings(attrs []imap.Attribute) []string {
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if s, ok := a.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}

func sectionFromKey(name string) string {
	i := strings.IndexByte(name, '[')
	if i < 0 {
		return ""
	}
	j := strings.IndexByte(name, ']')
	if j < i {
		return ""
	}
	return name[i+1 : j]
}

// parseIMAPDateTime parses the quoted INTERNALDATE format,
// "02-Jan-2006 15:04:05 -0700".
func parseIMAPDateTime(s string) (time.Time, error) {
	return time.Parse("02-Jan-2006 15:04:05 -0700", s)
}

func parseEnvelope(a imap.Attribute) *imap.Envelope {
	if a.Kind != imap.AttrList {
		return nil
	}
	f := a.List
	get := func(i int) imap.Attribute {
		if i < len(f) {
			return f[i]
		}
		return imap.Nil
	}
	e := &imap.Envelope{}
	if d, err := time.Parse(time.RFC1123Z, valStr(get(0))); err == nil {
		e.Date = d
	}
	e.Subject = valStr(get(1))
	e.From = parseAddrList(get(2))
	e.Sender = parseAddrList(get(3))
	e.ReplyTo = parseAddrList(get(4))
	e.To = parseAddrList(get(5))
	e.Cc = parseAddrList(get(6))
	e.Bcc = parseAddrList(get(7))
	e.InReplyTo = valStr(get(8))
	e.MessageID = valStr(get(9))
	return e
}

func parseAddrList(a imap.Attribute) []imap.Address {
	if a.Kind != imap.AttrList {
		return nil
	}
	var out []imap.Address
	for _, item := range a.List {
		if item.Kind != imap.AttrList || len(item.List) < 4 {
			continue
		}
		out = append(out, imap.Address{
			Name:    valStr(item.List[0]),
			ADL:     valStr(item.List[1]),
			Mailbox: valStr(item.List[2]),
			Host:    valStr(item.List[3]),
		})
	}
	return out
}

// parseBodyStructure decodes a BODYSTRUCTURE/BODY list. It covers the
// common single-part and multipart shapes of RFC 3501 §2.3.6; deeply
// extended fields beyond language/location/MD5 are left zero-valued rather
// than rejected, since servers vary in how much of the extension data they
// send.
func parseBodyStructure(a imap.Attribute) *imap.BodyStructure {
	if a.Kind != imap.AttrList || len(a.List) == 0 {
		return nil
	}
	list := a.List

	if list[0].Kind == imap.AttrList {
		// Multipart: one or more body structures followed by the subtype.
		bs := &imap.BodyStructure{MIMEType: "multipart"}
		i := 0
		for i < len(list) && list[i].Kind == imap.AttrList {
			bs.Children = append(bs.Children, parseBodyStructure(list[i]))
			i++
		}
		if i < len(list) {
			bs.MIMESubType = valStr(list[i])
			i++
		}
		if i < len(list) && list[i].Kind == imap.AttrList {
			bs.Params = parseParamList(list[i])
			i++
		}
		bs.Extended = i < len(list)
		return bs
	}

	bs := &imap.BodyStructure{}
	get := func(i int) imap.Attribute {
		if i < len(list) {
			return list[i]
		}
		return imap.Nil
	}
	bs.MIMEType = valStr(get(0))
	bs.MIMESubType = valStr(get(1))
	bs.Params = parseParamList(get(2))
	bs.ID = valStr(get(3))
	bs.Description = valStr(get(4))
	bs.Encoding = valStr(get(5))
	if n, err := strconv.ParseUint(valStr(get(6)), 10, 32); err == nil {
		bs.Size = uint32(n)
	}
	idx := 7
	if strings.EqualFold(bs.MIMEType, "message") && strings.EqualFold(bs.MIMESubType, "rfc822") {
		bs.Envelope = parseEnvelope(get(idx))
		bs.Body = parseBodyStructure(get(idx + 1))
		if n, err := strconv.ParseUint(valStr(get(idx+2)), 10, 32); err == nil {
			bs.Lines = uint32(n)
		}
		idx += 3
	} else if strings.EqualFold(bs.MIMEType, "text") {
		if n, err := strconv.ParseUint(valStr(get(idx)), 10, 32); err == nil {
			bs.Lines = uint32(n)
		}
		idx++
	}
	bs.Extended = idx < len(list)
	if idx < len(list) {
		bs.MD5 = valStr(get(idx))
	}
	return bs
}

func parseParamList(a imap.Attribute) map[string]string {
	if a.Kind != imap.AttrList {
		return nil
	}
	out := map[string]string{}
	for i := 0; i+1 < len(a.List); i += 2 {
		out[strings.ToUpper(valStr(a.List[i]))] = valStr(a.List[i+1])
	}
	return out
}
