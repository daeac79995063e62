// Package statedb implements the cached, read-through EVM state backend
// (C2): a block-scoped account/storage database backing the simulation
// engine, fed by streamed block deltas, distinguishing mocked accounts
// (fully synthetic, no upstream fetch permitted) from real accounts (a
// missing slot is reported so the caller may fetch upstream and retry).
//
// CachedStateDB is shared across every pool state built against the same
// chain. It is guarded by a single-writer/many-reader lock: InitAccount and
// UpdateState take the write lock, Basic/Storage/BlockHash take the read
// lock. The lock is never held across an EVM call — package engine reads
// accounts and slots one at a time as the interpreter asks for them, each
// read taking the read lock briefly, and keeps call-scoped copies of them.
package statedb

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainquote/vmpool-sim/account"
	"github.com/onchainquote/vmpool-sim/protocol"
)

// CachedStateDB is the shared backing store described above. It does not
// itself implement core/vm.StateDB — that adaptation, plus per-call
// overrides and EIP-1153 transient storage, is package engine's job.
type CachedStateDB struct {
	mu       sync.RWMutex
	storage  *account.Storage
	block    protocol.BlockHeader
	hasBlock bool
}

// New returns an empty cached state backend with no block installed.
func New() *CachedStateDB {
	return &CachedStateDB{storage: account.NewStorage()}
}

// InitAccount installs addr, overwriting any existing entry, matching
// account.Storage.InitAccount's semantics under the write lock.
func (c *CachedStateDB) InitAccount(addr common.Address, info account.Account, permanent map[common.Hash]common.Hash, mocked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storage.InitAccount(addr, info, permanent, mocked)
}

// Basic returns the account metadata at addr, or a MissingAccount Error.
func (c *CachedStateDB) Basic(addr common.Address) (account.Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	acc, ok := c.storage.GetAccountInfo(addr)
	if !ok {
		return account.Account{}, &Error{Kind: MissingAccount, Address: addr}
	}
	return acc, nil
}

// Storage returns the value at (addr, slot). A missing slot on a mocked
// account reports MissingMockedSlot; on a real account, MissingSlot.
func (c *CachedStateDB) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.storage.GetStorage(addr, slot)
	if ok {
		return v, nil
	}
	mocked, exists := c.storage.IsMocked(addr)
	if !exists {
		return common.Hash{}, &Error{Kind: MissingAccount, Address: addr}
	}
	if mocked {
		return common.Hash{}, &Error{Kind: MissingMockedSlot, Address: addr, Slot: slot}
	}
	return common.Hash{}, &Error{Kind: MissingSlot, Address: addr, Slot: slot}
}

// IsMocked reports whether addr is tagged mocked.
func (c *CachedStateDB) IsMocked(addr common.Address) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.storage.IsMocked(addr)
}

// Exists reports whether addr has any entry.
func (c *CachedStateDB) Exists(addr common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.storage.Exists(addr)
}

// CodeByHash is unsupported: code is always delivered inline with the
// account, never looked up by hash alone. Calling it is a fatal misuse.
func (c *CachedStateDB) CodeByHash(h common.Hash) ([]byte, error) {
	return nil, &Error{Kind: FatalMisuse}
}

// BlockHash returns the installed block's hash for n, or BlockNotSet if no
// block has been installed yet, or a zero hash with a nil error if n does
// not match the current block (this backend holds exactly one block).
func (c *CachedStateDB) BlockHash(n uint64) (common.Hash, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasBlock {
		return common.Hash{}, &Error{Kind: BlockNotSet}
	}
	if n != c.block.Number {
		return common.Hash{}, nil
	}
	return c.block.Hash, nil
}

// CurrentBlock returns the installed block header and whether one has been
// installed at all.
func (c *CachedStateDB) CurrentBlock() (protocol.BlockHeader, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.block, c.hasBlock
}

// UpdateState advances the current block to update.Block and applies every
// account update in update.AccountUpdates over sorted address order, so
// replay is reproducible regardless of the map's iteration order.
func (c *CachedStateDB) UpdateState(update BlockUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasBlock && update.Block.Number < c.block.Number {
		return &Error{Kind: FatalMisuse}
	}
	for _, addr := range sortedAddresses(update.AccountUpdates) {
		u := update.AccountUpdates[addr]
		switch u.Kind {
		case protocol.Deletion:
			c.storage.DeleteAccount(addr)
		default:
			c.storage.UpdateAccount(addr, toAccountDelta(u), false)
		}
	}
	c.block = update.Block
	c.hasBlock = true
	return nil
}
