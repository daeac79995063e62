package capability

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestIntersectKeepsOnlyCommonCapabilities(t *testing.T) {
	a := NewSet(SellSide, BuySide, PriceFunction, HardLimits)
	b := NewSet(SellSide, BuySide, HardLimits)
	got := Intersect(a, b)

	want := NewSet(SellSide, BuySide, HardLimits)
	if len(got) != len(want) {
		t.Fatalf("intersection size: got %d, want %d", len(got), len(want))
	}
	for c := range want {
		if !got.Has(c) {
			t.Fatalf("expected intersection to contain %s", c)
		}
	}
	if got.Has(PriceFunction) {
		t.Fatal("PriceFunction should not survive the intersection")
	}
}

func TestIntersectOfNoSetsIsEmpty(t *testing.T) {
	if got := Intersect(); len(got) != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}
}

func TestFromU256TakesLowByte(t *testing.T) {
	v := uint256.NewInt(0x1ff) // low byte is 0xff, which exceeds any real capability
	if got := FromU256(v); got != Capability(0xff) {
		t.Fatalf("expected Capability(0xff), got %v", got)
	}
	if got := FromU256(uint256.NewInt(uint64(HardLimits))); got != HardLimits {
		t.Fatalf("expected HardLimits, got %v", got)
	}
}

func TestCapabilityStringFallsBackForUnknownValues(t *testing.T) {
	if s := Capability(200).String(); s != "Capability(200)" {
		t.Fatalf("unexpected string for unknown capability: %s", s)
	}
}
