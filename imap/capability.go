package imap

import "strings"

// CapabilitySet maps an uppercase capability name to either true (bare
// capability) or a positive integer parameter (e.g. APPENDLIMIT=N, encoded on
// the wire as "APPENDLIMIT=1000000" or "APPENDLIMIT" with no value meaning
// "no limit known").
type CapabilitySet map[string]int

// Has reports whether the capability is present, regardless of any integer
// parameter.
func (c CapabilitySet) Has(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c[strings.ToUpper(name)]
	return ok
}

// Param returns the integer parameter for a capability such as APPENDLIMIT,
// and whether one was present.
func (c CapabilitySet) Param(name string) (int, bool) {
	if c == nil {
		return 0, false
	}
	v, ok := c[strings.ToUpper(name)]
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

// Set records a bare capability.
func (c CapabilitySet) Set(name string) {
	c[strings.ToUpper(name)] = -1
}

// SetParam records a capability with an integer parameter.
func (c CapabilitySet) SetParam(name string, v int) {
	c[strings.ToUpper(name)] = v
}

// Clone returns a shallow copy.
func (c CapabilitySet) Clone() CapabilitySet {
	out := make(CapabilitySet, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// EnabledSet is the set of extensions enabled via ENABLE (CONDSTORE,
// QRESYNC, UTF8=ACCEPT, ...), writable only by the ENABLE operation.
type EnabledSet map[string]struct{}

func (e EnabledSet) Has(name string) bool {
	if e == nil {
		return false
	}
	_, ok := e[strings.ToUpper(name)]
	return ok
}

func (e EnabledSet) Add(name string) {
	e[strings.ToUpper(name)] = struct{}{}
}

// Well-known capability names.
const (
	CapIMAP4rev1    = "IMAP4REV1"
	CapStartTLS     = "STARTTLS"
	CapLoginDisable = "LOGINDISABLED"
	CapIdle         = "IDLE"
	CapLiteralPlus  = "LITERAL+"
	CapLiteralMinus = "LITERAL-"
	CapUIDPlus      = "UIDPLUS"
	CapID           = "ID"
	CapUnselect     = "UNSELECT"
	CapEnable       = "ENABLE"
	CapCondStore    = "CONDSTORE"
	CapQResync      = "QRESYNC"
	CapSpecialUse   = "SPECIAL-USE"
	CapMove         = "MOVE"
	CapCompress     = "COMPRESS=DEFLATE"
	CapBinary       = "BINARY"
	CapUTF8Accept   = "UTF8=ACCEPT"
	CapObjectID     = "OBJECTID"
	CapSASLIR       = "SASL-IR"
	CapNamespace    = "NAMESPACE"
	CapListStatus   = "LIST-STATUS"
	CapWithin       = "WITHIN"
	CapAppendLimit  = "APPENDLIMIT"
	CapXGmExt1      = "X-GM-EXT-1"
	CapXList        = "XLIST"
	CapQuota        = "QUOTA"
	CapAuthPlain    = "AUTH=PLAIN"
	CapAuthLogin    = "AUTH=LOGIN"
	CapAuthXOAuth2  = "AUTH=XOAUTH2"
	CapAuthOAuthB   = "AUTH=OAUTHBEARER"
)
