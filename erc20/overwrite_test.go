package erc20

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestSetBalanceProducesOneSlot(t *testing.T) {
	token := common.HexToAddress("0x01")
	holder := common.HexToAddress("0x02")

	f := NewOverwriteFactory(token, DefaultStorageSlots)
	f.SetBalance(uint256.NewInt(1000), holder)

	ov := f.GetOverwrites()
	slots, ok := ov[token]
	if !ok {
		t.Fatal("expected overwrites for token address")
	}
	if len(slots) != 1 {
		t.Fatalf("expected exactly one slot, got %d", len(slots))
	}
	for _, v := range slots {
		got := new(uint256.Int).SetBytes(v.Bytes())
		if got.Cmp(uint256.NewInt(1000)) != 0 {
			t.Fatalf("expected 1000, got %s", got)
		}
	}
}

func TestSetAllowanceAndBalanceDoNotCollide(t *testing.T) {
	token := common.HexToAddress("0x01")
	holder := common.HexToAddress("0x02")
	spender := common.HexToAddress("0x03")

	f := NewOverwriteFactory(token, DefaultStorageSlots)
	f.SetBalance(uint256.NewInt(1000), holder)
	f.SetAllowance(uint256.NewInt(500), spender, holder)

	ov := f.GetOverwrites()[token]
	if len(ov) != 2 {
		t.Fatalf("expected 2 distinct slots, got %d", len(ov))
	}
}

func TestSetBalanceIsDeterministic(t *testing.T) {
	token := common.HexToAddress("0x01")
	holder := common.HexToAddress("0x02")

	f1 := NewOverwriteFactory(token, DefaultStorageSlots)
	f1.SetBalance(uint256.NewInt(7), holder)
	f2 := NewOverwriteFactory(token, DefaultStorageSlots)
	f2.SetBalance(uint256.NewInt(7), holder)

	ov1 := f1.GetOverwrites()[token]
	ov2 := f2.GetOverwrites()[token]
	if len(ov1) != len(ov2) {
		t.Fatal("expected identical slot sets")
	}
	for k, v := range ov1 {
		if ov2[k] != v {
			t.Fatalf("non-deterministic slot computation for key %s", k)
		}
	}
}
