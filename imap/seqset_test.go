package imap

import (
	"reflect"
	"testing"
)

func TestParseSeqSet(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "1:3,5,9:*", want: "1:3,5,9:*"},
		{input: "1", want: "1"},
		{input: "5:1", want: "1:5"}, // reversed range is normalized
		{input: "", wantErr: true},
		{input: "1,,2", wantErr: true},
		{input: "0", wantErr: true},
		{input: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			set, err := ParseSeqSet(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSeqSet(%q): want error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSeqSet(%q): unexpected error: %v", tt.input, err)
			}
			if got := set.String(); got != tt.want {
				t.Errorf("ParseSeqSet(%q).String() = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSeqSetExpandAndContains(t *testing.T) {
	set, err := ParseSeqSet("1:3,9:*")
	if err != nil {
		t.Fatal(err)
	}
	got := set.Expand(10)
	want := []uint32{1, 2, 3, 9, 10}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand(10) = %v, want %v", got, want)
	}
	if !set.Contains(2, 10) {
		t.Error("Contains(2, 10) = false, want true")
	}
	if set.Contains(5, 10) {
		t.Error("Contains(5, 10) = true, want false")
	}
	if !set.Contains(10, 10) {
		t.Error("Contains(10, 10) = false, want true (resolves *)")
	}
}

func TestSeqSetChunk(t *testing.T) {
	set, err := ParseSeqSet("1:7")
	if err != nil {
		t.Fatal(err)
	}
	chunks := set.Chunk(3)
	if len(chunks) != 3 {
		t.Fatalf("Chunk(3) produced %d chunks, want 3", len(chunks))
	}
	want := []string{"1,2,3", "4,5,6", "7"}
	for i, c := range chunks {
		if got := c.String(); got != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestSeqSetChunkUnbounded(t *testing.T) {
	set, err := ParseSeqSet("1:*")
	if err != nil {
		t.Fatal(err)
	}
	chunks := set.Chunk(2)
	if len(chunks) != 1 {
		t.Fatalf("Chunk on an unbounded set should return itself unchanged, got %d chunks", len(chunks))
	}
	if chunks[0].String() != "1:*" {
		t.Errorf("unbounded chunk = %q, want %q", chunks[0].String(), "1:*")
	}
}

func TestUIDSet(t *testing.T) {
	us, err := ParseUIDSet("100:200")
	if err != nil {
		t.Fatal(err)
	}
	var other UIDSet
	other.AddNum(UID(42))
	if other.String() != "42" {
		t.Errorf("UIDSet.AddNum: got %q, want %q", other.String(), "42")
	}
	if us.String() != "100:200" {
		t.Errorf("got %q, want %q", us.String(), "100:200")
	}
}
