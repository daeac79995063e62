package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/onchainquote/vmpool-sim/account"
	"github.com/onchainquote/vmpool-sim/statedb"
)

// accessTuple is a simplified per-address access-list entry.
type accessTuple struct {
	addr  bool
	slots map[common.Hash]struct{}
}

// callStateDB adapts a single vm.Call onto the shared, block-scoped
// CachedStateDB plus a call-scoped override overlay. It implements
// core/vm.StateDB directly against the *unmodified* core/vm.EVM.
//
// Because StateDB's read methods cannot return an error, a missing slot or
// a mocked-account invariant violation is latched as a sticky error: the
// first occurrence is recorded, the failing read returns a zero value and
// the call runs on, and callers must check Err() once the call returns — the same
// idiom go-ethereum's own state.StateDB uses for low-level trie faults.
//
// Sub-call failures revert via a journal of undo closures: every mutating
// method pushes the inverse of its own effect before applying it, and
// RevertToSnapshot simply replays the suffix of the journal backwards.
type callStateDB struct {
	shared *statedb.CachedStateDB

	// overrides shadow the shared backend for the duration of this call
	// only; they are never written back into shared.
	overrides map[common.Address]map[common.Hash]common.Hash

	accounts map[common.Address]*callAccount
	order    []common.Address // insertion order, for deterministic diff output

	transient map[common.Address]map[common.Hash]common.Hash

	refund         uint64
	logs           []*types.Log
	accessList     map[common.Address]*accessTuple
	selfDestructed map[common.Address]bool

	journal []func()
	err     error
}

// callAccount is the per-call cached view of one account: lazily loaded
// from the shared backend (or created fresh by CreateAccount), then
// mutated only in this call's scope.
type callAccount struct {
	existed bool

	balance *uint256.Int
	nonce   uint64
	code    []byte

	storage map[common.Hash]common.Hash
}

func newCallStateDB(shared *statedb.CachedStateDB, overrides map[common.Address]map[common.Hash]common.Hash) *callStateDB {
	if overrides == nil {
		overrides = map[common.Address]map[common.Hash]common.Hash{}
	}
	return &callStateDB{
		shared:         shared,
		overrides:      overrides,
		accounts:       make(map[common.Address]*callAccount),
		transient:      make(map[common.Address]map[common.Hash]common.Hash),
		accessList:     make(map[common.Address]*accessTuple),
		selfDestructed: make(map[common.Address]bool),
	}
}

// Err returns the sticky error latched during this call, if any.
func (c *callStateDB) Err() error { return c.err }

func (c *callStateDB) setError(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *callStateDB) record(undo func()) {
	c.journal = append(c.journal, undo)
}

// diff returns the set of storage writes made via SetState during this
// call, as package engine's state-diff output (spec.md's state_changes).
func (c *callStateDB) diff() map[common.Address]account.Delta {
	out := make(map[common.Address]account.Delta, len(c.order))
	for _, addr := range c.order {
		acc := c.accounts[addr]
		if acc == nil || len(acc.storage) == 0 {
			continue
		}
		slots := make(map[common.Hash]common.Hash, len(acc.storage))
		for k, v := range acc.storage {
			slots[k] = v
		}
		out[addr] = account.Delta{Slots: slots}
	}
	return out
}

func (c *callStateDB) get(addr common.Address) *callAccount {
	if acc, ok := c.accounts[addr]; ok {
		return acc
	}
	acc := &callAccount{storage: make(map[common.Hash]common.Hash), balance: new(uint256.Int)}
	info, err := c.shared.Basic(addr)
	if err == nil {
		acc.existed = true
		acc.balance = new(uint256.Int).Set(info.Balance)
		acc.nonce = info.Nonce
		acc.code = info.Code
	}
	c.accounts[addr] = acc
	c.order = append(c.order, addr)
	return acc
}

func (c *callStateDB) CreateAccount(addr common.Address) {
	acc := c.get(addr)
	wasExisted := acc.existed
	acc.existed = true
	c.record(func() { acc.existed = wasExisted })
}

func (c *callStateDB) CreateContract(addr common.Address) {
	// Code is installed separately via SetCode; nothing further to track.
}

func (c *callStateDB) SubBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int {
	acc := c.get(addr)
	prev := new(uint256.Int).Set(acc.balance)
	acc.balance = new(uint256.Int).Sub(acc.balance, amount)
	c.record(func() { acc.balance = prev })
	return *prev
}

func (c *callStateDB) AddBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int {
	acc := c.get(addr)
	prev := new(uint256.Int).Set(acc.balance)
	acc.balance = new(uint256.Int).Add(acc.balance, amount)
	c.record(func() { acc.balance = prev })
	return *prev
}

func (c *callStateDB) GetBalance(addr common.Address) *uint256.Int {
	return new(uint256.Int).Set(c.get(addr).balance)
}

func (c *callStateDB) GetNonce(addr common.Address) uint64 {
	return c.get(addr).nonce
}

func (c *callStateDB) SetNonce(addr common.Address, nonce uint64) {
	acc := c.get(addr)
	prev := acc.nonce
	acc.nonce = nonce
	c.record(func() { acc.nonce = prev })
}

func (c *callStateDB) GetCodeHash(addr common.Address) common.Hash {
	acc := c.get(addr)
	if !acc.existed && len(acc.code) == 0 {
		return common.Hash{}
	}
	if len(acc.code) == 0 {
		return types.EmptyCodeHash
	}
	return crypto.Keccak256Hash(acc.code)
}

func (c *callStateDB) GetCode(addr common.Address) []byte {
	return c.get(addr).code
}

func (c *callStateDB) SetCode(addr common.Address, code []byte) {
	acc := c.get(addr)
	prev := acc.code
	acc.code = code
	c.record(func() { acc.code = prev })
}

func (c *callStateDB) GetCodeSize(addr common.Address) int {
	return len(c.get(addr).code)
}

func (c *callStateDB) AddRefund(gas uint64) {
	prev := c.refund
	c.refund += gas
	c.record(func() { c.refund = prev })
}

func (c *callStateDB) SubRefund(gas uint64) {
	prev := c.refund
	if gas > c.refund {
		c.refund = 0
	} else {
		c.refund -= gas
	}
	c.record(func() { c.refund = prev })
}

func (c *callStateDB) GetRefund() uint64 { return c.refund }

// resolve looks up (addr, slot) in the per-call write cache first, then
// the call-scoped override overlay, then falls through to the shared
// backend — latching a sticky error on a missing slot instead of panicking.
func (c *callStateDB) resolve(addr common.Address, slot common.Hash) common.Hash {
	acc := c.get(addr)
	if v, ok := acc.storage[slot]; ok {
		return v
	}
	if ov, ok := c.overrides[addr]; ok {
		if v, ok := ov[slot]; ok {
			return v
		}
	}
	v, err := c.shared.Storage(addr, slot)
	if err != nil {
		c.setError(err)
		return common.Hash{}
	}
	return v
}

func (c *callStateDB) GetCommittedState(addr common.Address, slot common.Hash) common.Hash {
	if ov, ok := c.overrides[addr]; ok {
		if v, ok := ov[slot]; ok {
			return v
		}
	}
	v, err := c.shared.Storage(addr, slot)
	if err != nil {
		return common.Hash{}
	}
	return v
}

func (c *callStateDB) GetState(addr common.Address, slot common.Hash) common.Hash {
	return c.resolve(addr, slot)
}

func (c *callStateDB) SetState(addr common.Address, slot common.Hash, value common.Hash) common.Hash {
	acc := c.get(addr)
	prev := c.resolve(addr, slot)
	hadPrev, hadOK := acc.storage[slot]
	acc.storage[slot] = value
	c.record(func() {
		if hadOK {
			acc.storage[slot] = hadPrev
		} else {
			delete(acc.storage, slot)
		}
	})
	return prev
}

func (c *callStateDB) GetStorageRoot(addr common.Address) common.Hash {
	return common.Hash{}
}

func (c *callStateDB) GetTransientState(addr common.Address, slot common.Hash) common.Hash {
	if m, ok := c.transient[addr]; ok {
		return m[slot]
	}
	return common.Hash{}
}

func (c *callStateDB) SetTransientState(addr common.Address, slot, value common.Hash) {
	m, ok := c.transient[addr]
	if !ok {
		m = make(map[common.Hash]common.Hash)
		c.transient[addr] = m
	}
	prev, hadPrev := m[slot]
	m[slot] = value
	c.record(func() {
		if hadPrev {
			m[slot] = prev
		} else {
			delete(m, slot)
		}
	})
}

func (c *callStateDB) SelfDestruct(addr common.Address) uint256.Int {
	acc := c.get(addr)
	prev := new(uint256.Int).Set(acc.balance)
	wasDestructed := c.selfDestructed[addr]
	c.selfDestructed[addr] = true
	acc.balance = new(uint256.Int)
	c.record(func() {
		acc.balance = prev
		c.selfDestructed[addr] = wasDestructed
	})
	return *prev
}

func (c *callStateDB) HasSelfDestructed(addr common.Address) bool {
	return c.selfDestructed[addr]
}

func (c *callStateDB) Selfdestruct6780(addr common.Address) (uint256.Int, bool) {
	acc := c.get(addr)
	prev := new(uint256.Int).Set(acc.balance)
	if !acc.existed {
		return *prev, false
	}
	wasDestructed := c.selfDestructed[addr]
	c.selfDestructed[addr] = true
	acc.balance = new(uint256.Int)
	c.record(func() {
		acc.balance = prev
		c.selfDestructed[addr] = wasDestructed
	})
	return *prev, true
}

func (c *callStateDB) Exist(addr common.Address) bool {
	return c.get(addr).existed
}

func (c *callStateDB) Empty(addr common.Address) bool {
	acc := c.get(addr)
	return !acc.existed || (acc.balance.IsZero() && acc.nonce == 0 && len(acc.code) == 0)
}

func (c *callStateDB) AddressInAccessList(addr common.Address) bool {
	_, ok := c.accessList[addr]
	return ok
}

func (c *callStateDB) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	t, ok := c.accessList[addr]
	if !ok {
		return false, false
	}
	_, slotOK := t.slots[slot]
	return true, slotOK
}

func (c *callStateDB) AddAddressToAccessList(addr common.Address) {
	if _, ok := c.accessList[addr]; !ok {
		c.accessList[addr] = &accessTuple{addr: true, slots: make(map[common.Hash]struct{})}
		c.record(func() { delete(c.accessList, addr) })
	}
}

func (c *callStateDB) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	c.AddAddressToAccessList(addr)
	t := c.accessList[addr]
	if _, ok := t.slots[slot]; !ok {
		t.slots[slot] = struct{}{}
		c.record(func() { delete(t.slots, slot) })
	}
}

func (c *callStateDB) Prepare(rules params.Rules, sender, coinbase common.Address, dst *common.Address, precompiles []common.Address, list types.AccessList) {
	c.AddAddressToAccessList(sender)
	if dst != nil {
		c.AddAddressToAccessList(*dst)
	}
	for _, p := range precompiles {
		c.AddAddressToAccessList(p)
	}
	for _, entry := range list {
		c.AddAddressToAccessList(entry.Address)
		for _, slot := range entry.StorageKeys {
			c.AddSlotToAccessList(entry.Address, slot)
		}
	}
	if rules.IsBerlin {
		c.AddAddressToAccessList(coinbase)
	}
}

func (c *callStateDB) Snapshot() int {
	return len(c.journal)
}

func (c *callStateDB) RevertToSnapshot(id int) {
	for i := len(c.journal) - 1; i >= id; i-- {
		c.journal[i]()
	}
	c.journal = c.journal[:id]
}

func (c *callStateDB) AddLog(l *types.Log) {
	c.logs = append(c.logs, l)
	idx := len(c.logs) - 1
	c.record(func() { c.logs = c.logs[:idx] })
}

func (c *callStateDB) AddPreimage(h common.Hash, b []byte) {}
