package imap

import "testing"

func TestCapabilitySetHasAndParam(t *testing.T) {
	c := CapabilitySet{}
	c.Set(CapIdle)
	c.SetParam(CapAppendLimit, 35000000)

	if !c.Has("idle") {
		t.Error("Has should be case-insensitive")
	}
	if c.Has(CapQResync) {
		t.Error("unset capability should report false")
	}
	if v, ok := c.Param(CapAppendLimit); !ok || v != 35000000 {
		t.Errorf("Param(APPENDLIMIT) = (%d, %v), want (35000000, true)", v, ok)
	}
	if _, ok := c.Param(CapIdle); ok {
		t.Error("a bare capability should not report a param")
	}
}

func TestCapabilitySetNilReceiver(t *testing.T) {
	var c CapabilitySet
	if c.Has(CapIdle) {
		t.Error("nil CapabilitySet should report Has() == false")
	}
	if _, ok := c.Param(CapAppendLimit); ok {
		t.Error("nil CapabilitySet should report Param() ok == false")
	}
}

func TestCapabilitySetClone(t *testing.T) {
	c := CapabilitySet{}
	c.Set(CapIdle)
	clone := c.Clone()
	clone.Set(CapMove)
	if c.Has(CapMove) {
		t.Error("Clone should be independent of the original")
	}
	if !clone.Has(CapIdle) {
		t.Error("Clone should retain the original's entries")
	}
}

func TestEnabledSet(t *testing.T) {
	e := EnabledSet{}
	e.Add(CapCondStore)
	if !e.Has("condstore") {
		t.Error("EnabledSet.Has should be case-insensitive")
	}
	if e.Has(CapQResync) {
		t.Error("unrelated extension should not report enabled")
	}
}
