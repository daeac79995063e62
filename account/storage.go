package account

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Delta is the set of fields an update may touch. Nil means unchanged;
// Slots entries are always applied (there is no "unset a slot" operation,
// matching the upstream indexer's own delta model).
type Delta struct {
	Balance *uint256.Int
	Code    []byte
	Slots   map[common.Hash]common.Hash
}

// Storage is the raw Address -> Account map underlying the cached state
// backend. It has no locking of its own: callers (statedb.CachedStateDB)
// serialize writes and allow concurrent reads per the single-writer/
// many-reader discipline described in the package-level docs of statedb.
type Storage struct {
	accounts map[common.Address]*Account
}

// NewStorage returns an empty account store.
func NewStorage() *Storage {
	return &Storage{accounts: make(map[common.Address]*Account)}
}

// InitAccount installs an entry, overwriting any existing one at addr.
// permanent, when non-nil, seeds the account's Permanent storage map.
func (s *Storage) InitAccount(addr common.Address, info Account, permanent map[common.Hash]common.Hash, mocked bool) {
	info.Mocked = mocked
	if info.Permanent == nil {
		info.Permanent = make(map[common.Hash]common.Hash)
	}
	if info.Transient == nil {
		info.Transient = make(map[common.Hash]common.Hash)
	}
	for k, v := range permanent {
		info.Permanent[k] = v
	}
	acc := info
	s.accounts[addr] = &acc
}

// UpdateAccount applies a delta to Transient storage, Balance and Code.
// When opportunistic is true, an update against an address with no existing
// entry is a no-op; otherwise the account is created with defaults first.
func (s *Storage) UpdateAccount(addr common.Address, delta Delta, opportunistic bool) {
	acc, ok := s.accounts[addr]
	if !ok {
		if opportunistic {
			return
		}
		created := New(nil, 0, nil)
		acc = &created
		s.accounts[addr] = acc
	}
	if delta.Balance != nil {
		acc.Balance = delta.Balance
	}
	if delta.Code != nil {
		acc.Code = delta.Code
		acc.CodeHash = crypto.Keccak256Hash(delta.Code)
	}
	if acc.Transient == nil {
		acc.Transient = make(map[common.Hash]common.Hash)
	}
	for k, v := range delta.Slots {
		acc.Transient[k] = v
	}
}

// GetAccountInfo returns a copy of the account at addr, or false if absent.
func (s *Storage) GetAccountInfo(addr common.Address) (Account, bool) {
	acc, ok := s.accounts[addr]
	if !ok {
		return Account{}, false
	}
	return *acc, true
}

// GetStorage resolves Transient first, then Permanent. The boolean
// distinguishes "absent" from "present, zero".
func (s *Storage) GetStorage(addr common.Address, slot common.Hash) (common.Hash, bool) {
	acc, ok := s.accounts[addr]
	if !ok {
		return common.Hash{}, false
	}
	if v, ok := acc.Transient[slot]; ok {
		return v, true
	}
	if v, ok := acc.Permanent[slot]; ok {
		return v, true
	}
	return common.Hash{}, false
}

// IsMocked reports whether addr is mocked. The second return is false when
// the address is unknown.
func (s *Storage) IsMocked(addr common.Address) (bool, bool) {
	acc, ok := s.accounts[addr]
	if !ok {
		return false, false
	}
	return acc.Mocked, true
}

// Exists reports whether addr has an entry at all.
func (s *Storage) Exists(addr common.Address) bool {
	_, ok := s.accounts[addr]
	return ok
}

// DeleteAccount removes addr entirely.
func (s *Storage) DeleteAccount(addr common.Address) {
	delete(s.accounts, addr)
}
