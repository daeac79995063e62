// Package erc20 implements the ERC20 overwrite factory (C4): synthesizing
// storage writes for balance and allowance at a token's known slot layout,
// plus the lightweight ERC20 token model pool components resolve tokens
// into.
package erc20

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Token is the resolved ERC20 metadata for one leg of a pool.
type Token struct {
	Address  common.Address
	Decimals uint8
	Symbol   string
	GasUsage *uint256.Int
}

// StorageSlots is a token's discovered or defaulted (balance_slot,
// allowance_slot) mapping positions.
type StorageSlots struct {
	Balance   uint64
	Allowance uint64
}

// DefaultStorageSlots is the fallback layout ("balanceOf" at slot 0,
// "allowance" at slot 1) used when a token's real layout has not been
// discovered by the caller.
var DefaultStorageSlots = StorageSlots{Balance: 0, Allowance: 1}
