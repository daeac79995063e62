// Package account implements the in-memory account/storage store (C1):
// account metadata plus slot maps, tagged mocked/real, with permanent vs
// block-delta ("transient") storage provenance.
package account

import (
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Account is a single account record. Permanent entries are written only by
// explicit initialization or administrative calls; Transient entries are
// written by block deltas and by simulation write-back the caller opts into.
// Neither map is related to EIP-1153 transient storage, which is an EVM-call
// scoped concept tracked separately by the simulation engine.
type Account struct {
	Balance *uint256.Int
	Nonce   uint64
	Code    []byte
	// CodeHash is Keccak-256 of Code, or the canonical empty-code hash
	// when Code is nil.
	CodeHash common.Hash
	Mocked   bool

	Permanent map[common.Hash]common.Hash
	Transient map[common.Hash]common.Hash
}

// New builds an Account, deriving CodeHash from code.
func New(balance *uint256.Int, nonce uint64, code []byte) Account {
	if balance == nil {
		balance = new(uint256.Int)
	}
	a := Account{
		Balance:   balance,
		Nonce:     nonce,
		Code:      code,
		Permanent: make(map[common.Hash]common.Hash),
		Transient: make(map[common.Hash]common.Hash),
	}
	if len(code) > 0 {
		a.CodeHash = crypto.Keccak256Hash(code)
	} else {
		a.CodeHash = ethtypes.EmptyCodeHash
	}
	return a
}

// Clone returns a deep copy, safe to hand to a caller that may mutate it.
func (a Account) Clone() Account {
	out := a
	if a.Balance != nil {
		out.Balance = new(uint256.Int).Set(a.Balance)
	}
	if a.Code != nil {
		out.Code = append([]byte(nil), a.Code...)
	}
	out.Permanent = make(map[common.Hash]common.Hash, len(a.Permanent))
	for k, v := range a.Permanent {
		out.Permanent[k] = v
	}
	out.Transient = make(map[common.Hash]common.Hash, len(a.Transient))
	for k, v := range a.Transient {
		out.Transient[k] = v
	}
	return out
}
