package erc20

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// OverwriteFactory accumulates storage writes for a single token's balance
// and allowance mappings at its known slot layout. It is stateless beyond
// the accumulator: callers build one per token, call SetBalance/
// SetAllowance any number of times, then GetOverwrites once.
type OverwriteFactory struct {
	token     common.Address
	slots     StorageSlots
	overrides map[common.Hash]common.Hash
}

// NewOverwriteFactory builds a factory for token at the given slot layout.
func NewOverwriteFactory(token common.Address, slots StorageSlots) *OverwriteFactory {
	return &OverwriteFactory{token: token, slots: slots, overrides: make(map[common.Hash]common.Hash)}
}

func leftPad32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func uint64Slot(n uint64) []byte {
	return leftPad32(new(uint256.Int).SetUint64(n).Bytes())
}

// SetBalance writes the storage slot for balanceOf(holder) = amount.
func (f *OverwriteFactory) SetBalance(amount *uint256.Int, holder common.Address) {
	key := append(leftPad32(holder.Bytes()), uint64Slot(f.slots.Balance)...)
	slot := common.BytesToHash(crypto.Keccak256(key))
	f.overrides[slot] = common.BytesToHash(leftPad32(amount.Bytes()))
}

// SetAllowance writes the storage slot for allowance(owner, spender) = amount.
func (f *OverwriteFactory) SetAllowance(amount *uint256.Int, spender, owner common.Address) {
	ownerKey := append(leftPad32(owner.Bytes()), uint64Slot(f.slots.Allowance)...)
	innerSlot := crypto.Keccak256(ownerKey)
	outerKey := append(leftPad32(spender.Bytes()), innerSlot...)
	slot := common.BytesToHash(crypto.Keccak256(outerKey))
	f.overrides[slot] = common.BytesToHash(leftPad32(amount.Bytes()))
}

// GetOverwrites returns the accumulated address -> slot -> value map for
// this token's account, ready to merge into a wider overrides set.
func (f *OverwriteFactory) GetOverwrites() map[common.Address]map[common.Hash]common.Hash {
	slots := make(map[common.Hash]common.Hash, len(f.overrides))
	for k, v := range f.overrides {
		slots[k] = v
	}
	return map[common.Address]map[common.Hash]common.Hash{f.token: slots}
}
