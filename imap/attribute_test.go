package imap

import "testing"

func TestAttributeAsString(t *testing.T) {
	tests := []struct {
		name    string
		attr    Attribute
		want    string
		wantOk  bool
	}{
		{name: "atom", attr: Atom("FETCH"), want: "FETCH", wantOk: true},
		{name: "string", attr: String("hello world"), want: "hello world", wantOk: true},
		{name: "literal", attr: Literal([]byte("body bytes")), want: "body bytes", wantOk: true},
		{name: "sequence", attr: Sequence("1:3,5"), want: "1:3,5", wantOk: true},
		{name: "nil", attr: Nil, want: "", wantOk: false},
		{name: "list", attr: List(Atom("A"), Atom("B")), want: "", wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.attr.AsString()
			if got != tt.want || ok != tt.wantOk {
				t.Errorf("AsString() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOk)
			}
		})
	}
}

func TestAttributeIsNil(t *testing.T) {
	if !Nil.IsNil() {
		t.Error("Nil.IsNil() = false, want true")
	}
	if Atom("X").IsNil() {
		t.Error("Atom(\"X\").IsNil() = true, want false")
	}
	if (Attribute{}).IsNil() != true {
		t.Error("zero-value Attribute should be nil (Kind defaults to AttrNil)")
	}
}

func TestLiteral8Flag(t *testing.T) {
	lit := Literal([]byte("abc"))
	if lit.Literal8 {
		t.Error("Literal() set Literal8, want false")
	}
	lit8 := Literal8([]byte("abc"))
	if !lit8.Literal8 {
		t.Error("Literal8() did not set Literal8")
	}
	if lit8.Kind != AttrLiteral {
		t.Errorf("Literal8().Kind = %v, want AttrLiteral", lit8.Kind)
	}
}
