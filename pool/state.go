// Package pool implements the VM Pool State (C6): the polymorphic pool
// object that orchestrates the ERC20 overwrite factory (C4), the adapter
// contract façade (C5), and the simulation engine (C3) against the shared
// cached state backend (C2) to answer get_amount_out and spot-price
// queries, while never mutating itself or the shared backend — every
// pricing call returns a copy-on-write clone.
package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/onchainquote/vmpool-sim/adapter"
	"github.com/onchainquote/vmpool-sim/capability"
	"github.com/onchainquote/vmpool-sim/engine"
	"github.com/onchainquote/vmpool-sim/erc20"
	"github.com/onchainquote/vmpool-sim/protocol"
	"github.com/onchainquote/vmpool-sim/statedb"
)

// TokenPair keys a directional (sell, buy) quantity such as a spot price.
type TokenPair struct {
	Sell common.Address
	Buy  common.Address
}

// VMPoolState is one protocol pool backed by real adapter bytecode rather
// than a closed-form pricing formula. It implements protocol.ProtocolSim.
type VMPoolState struct {
	id           string
	tokens       []common.Address
	decimals     map[common.Address]uint8
	block        protocol.BlockHeader
	balances     map[common.Address]*uint256.Int
	balanceOwner *common.Address

	spotPrices             map[TokenPair]float64
	capabilities           capability.Set
	blockLastingOverwrites map[common.Address]map[common.Hash]common.Hash
	involvedContracts      map[common.Address]struct{}
	tokenStorageSlots      map[common.Address]erc20.StorageSlots
	statelessContracts     map[string][]byte
	manualUpdates          bool
	trace                  bool

	shared        *statedb.CachedStateDB
	cfg           *engine.Config
	adapterClient *adapter.Adapter
}

// ID returns the pool's hex-prefixed identifier.
func (p *VMPoolState) ID() string { return p.id }

// Fee reports 0: VM pools have no statically known fee, the adapter's
// swap reply already nets whatever fee the protocol charges.
func (p *VMPoolState) Fee() float64 { return 0 }

// SpotPrice returns the last value set_spot_prices (or get_amount_out's
// incidental update) computed for (sell, buy).
func (p *VMPoolState) SpotPrice(sell, buy common.Address) (float64, error) {
	v, ok := p.spotPrices[TokenPair{Sell: sell, Buy: buy}]
	if !ok {
		return 0, &protocol.RecoverableInput{Reason: "no spot price computed for this pair yet"}
	}
	return v, nil
}

// Balances returns a copy of the pool's per-token balances.
func (p *VMPoolState) Balances() map[common.Address]*uint256.Int {
	out := make(map[common.Address]*uint256.Int, len(p.balances))
	for addr, bal := range p.balances {
		out[addr] = new(uint256.Int).Set(bal)
	}
	return out
}

// Capabilities returns the pool's intersected capability set.
func (p *VMPoolState) Capabilities() capability.Set {
	out := make(capability.Set, len(p.capabilities))
	for c := range p.capabilities {
		out[c] = struct{}{}
	}
	return out
}

// EnsureCapability returns RecoverableInput if c is not in the pool's
// capability set, matching the adapter-declared contract callers probe
// before relying on a feature (e.g. MarginalPrice).
func (p *VMPoolState) EnsureCapability(c capability.Capability) error {
	if !p.capabilities.Has(c) {
		return &protocol.RecoverableInput{Reason: "pool does not declare capability " + c.String()}
	}
	return nil
}

// Clone returns a deep, independent copy: the new state shares the
// underlying cached state backend, engine config, and adapter client (those
// are reference-counted infrastructure, not pool-owned data) but owns an
// independent copy of every map describing this pool's own state.
func (p *VMPoolState) Clone() protocol.ProtocolSim {
	clone := &VMPoolState{
		id:            p.id,
		tokens:        append([]common.Address(nil), p.tokens...),
		block:         p.block,
		manualUpdates: p.manualUpdates,
		trace:         p.trace,
		shared:        p.shared,
		cfg:           p.cfg,
		adapterClient: p.adapterClient,
	}
	if p.balanceOwner != nil {
		owner := *p.balanceOwner
		clone.balanceOwner = &owner
	}

	clone.decimals = make(map[common.Address]uint8, len(p.decimals))
	for k, v := range p.decimals {
		clone.decimals[k] = v
	}

	clone.balances = make(map[common.Address]*uint256.Int, len(p.balances))
	for k, v := range p.balances {
		clone.balances[k] = new(uint256.Int).Set(v)
	}

	clone.spotPrices = make(map[TokenPair]float64, len(p.spotPrices))
	for k, v := range p.spotPrices {
		clone.spotPrices[k] = v
	}

	clone.capabilities = make(capability.Set, len(p.capabilities))
	for c := range p.capabilities {
		clone.capabilities[c] = struct{}{}
	}

	clone.blockLastingOverwrites = make(map[common.Address]map[common.Hash]common.Hash, len(p.blockLastingOverwrites))
	for addr, slots := range p.blockLastingOverwrites {
		inner := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			inner[k] = v
		}
		clone.blockLastingOverwrites[addr] = inner
	}

	clone.involvedContracts = make(map[common.Address]struct{}, len(p.involvedContracts))
	for addr := range p.involvedContracts {
		clone.involvedContracts[addr] = struct{}{}
	}

	clone.tokenStorageSlots = make(map[common.Address]erc20.StorageSlots, len(p.tokenStorageSlots))
	for addr, slots := range p.tokenStorageSlots {
		clone.tokenStorageSlots[addr] = slots
	}

	clone.statelessContracts = make(map[string][]byte, len(p.statelessContracts))
	for k, v := range p.statelessContracts {
		clone.statelessContracts[k] = append([]byte(nil), v...)
	}

	return clone
}

// Equals reports whether other is a VMPoolState representing the same pool
// in the same observable state — id, tokens, balances, block, and spot
// prices — not pointer identity.
func (p *VMPoolState) Equals(other protocol.ProtocolSim) bool {
	o, ok := other.(*VMPoolState)
	if !ok || o.id != p.id || o.block != p.block {
		return false
	}
	if len(o.tokens) != len(p.tokens) {
		return false
	}
	for i, t := range p.tokens {
		if o.tokens[i] != t {
			return false
		}
	}
	if len(o.balances) != len(p.balances) {
		return false
	}
	for addr, bal := range p.balances {
		ob, ok := o.balances[addr]
		if !ok || ob.Cmp(bal) != 0 {
			return false
		}
	}
	if len(o.spotPrices) != len(p.spotPrices) {
		return false
	}
	for pair, price := range p.spotPrices {
		if o.spotPrices[pair] != price {
			return false
		}
	}
	return true
}
