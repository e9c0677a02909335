package imap

import "fmt"

// AttrKind identifies the variant held by an Attribute.
type AttrKind int

const (
	AttrNil AttrKind = iota
	AttrAtom
	AttrString
	AttrLiteral
	AttrSequence
	AttrList
	AttrSection
)

// Attribute is the tagged union the wire codec encodes to and parses from:
// atoms, quoted/literal strings, synchronising literals, verbatim sequence
// sets, parenthesised lists and bracketed (response-code) sections. NIL is
// represented by the zero value (Kind == AttrNil).
type Attribute struct {
	Kind     AttrKind
	Atom     string      // AttrAtom
	Str      string      // AttrString
	Lit      []byte      // AttrLiteral
	Literal8 bool        // AttrLiteral: true for "~{N}\r\n" (LITERAL8)
	Seq      string      // AttrSequence: verbatim, whitespace-free
	List     []Attribute // AttrList / AttrSection
}

// Atom builds an AttrAtom attribute.
func Atom(s string) Attribute { return Attribute{Kind: AttrAtom, Atom: s} }

// String builds an AttrString attribute (wire form chosen by the encoder).
func String(s string) Attribute { return Attribute{Kind: AttrString, Str: s} }

// Literal builds a synchronising-literal attribute.
func Literal(b []byte) Attribute { return Attribute{Kind: AttrLiteral, Lit: b} }

// Literal8 builds a LITERAL8 ("~{N}") attribute, used for binary APPEND
// content when the server advertises BINARY.
func Literal8(b []byte) Attribute { return Attribute{Kind: AttrLiteral, Lit: b, Literal8: true} }

// Sequence builds a verbatim sequence-set attribute.
func Sequence(s string) Attribute { return Attribute{Kind: AttrSequence, Seq: s} }

// List builds a parenthesised-list attribute.
func List(items ...Attribute) Attribute { return Attribute{Kind: AttrList, List: items} }

// Section builds a bracketed-section attribute.
func Section(items ...Attribute) Attribute { return Attribute{Kind: AttrSection, List: items} }

// Nil is the NIL attribute.
var Nil = Attribute{Kind: AttrNil}

// IsNil reports whether the attribute is NIL.
func (a Attribute) IsNil() bool { return a.Kind == AttrNil }

// AsString extracts the textual value of an atom/string attribute. NIL
// yields ("", false) so callers can tolerate absent values per spec.md's
// null-safety requirement.
func (a Attribute) AsString() (string, bool) {
	switch a.Kind {
	case AttrAtom:
		return a.Atom, true
	case AttrString:
		return a.Str, true
	case AttrLiteral:
		return string(a.Lit), true
	case AttrSequence:
		return a.Seq, true
	default:
		return "", false
	}
}

func (a Attribute) String() string {
	switch a.Kind {
	case AttrNil:
		return "NIL"
	case AttrAtom:
		return a.Atom
	case AttrString:
		return fmt.Sprintf("%q", a.Str)
	case AttrLiteral:
		return fmt.Sprintf("{%d}", len(a.Lit))
	case AttrSequence:
		return a.Seq
	case AttrList:
		return fmt.Sprintf("%v", a.List)
	case AttrSection:
		return fmt.Sprintf("[%v]", a.List)
	default:
		return "?"
	}
}
