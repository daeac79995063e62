package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/onchainquote/vmpool-sim/adapter"
	"github.com/onchainquote/vmpool-sim/capability"
	"github.com/onchainquote/vmpool-sim/erc20"
)

// balanceOwnerAddress returns the account whose storage holds each token's
// balance: the pool's configured vault when set, otherwise the address
// embedded in the pool's own id (the pool contract itself, for the common
// case of one contract per pool).
func (p *VMPoolState) balanceOwnerAddress() common.Address {
	if p.balanceOwner != nil {
		return *p.balanceOwner
	}
	return common.HexToAddress(p.id)
}

// mergeOverwrites unions base and overlay at the per-address, per-slot
// level; overlay wins on conflicts. Neither input is mutated.
func mergeOverwrites(base, overlay map[common.Address]map[common.Hash]common.Hash) map[common.Address]map[common.Hash]common.Hash {
	out := make(map[common.Address]map[common.Hash]common.Hash, len(base))
	for addr, slots := range base {
		inner := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			inner[k] = v
		}
		out[addr] = inner
	}
	for addr, slots := range overlay {
		inner, ok := out[addr]
		if !ok {
			inner = make(map[common.Hash]common.Hash, len(slots))
			out[addr] = inner
		}
		for k, v := range slots {
			inner[k] = v
		}
	}
	return out
}

// getOverwrites composes the full override set for a get_amount_out or
// set_spot_prices call against sellToken at maxAmount:
//  1. per-token balance overwrites at the pool's own balances, unless the
//     pool declares TokenBalanceIndependent;
//  2. the sell token's EXTERNAL_ACCOUNT balance and ADAPTER_ADDRESS
//     allowance set to maxAmount;
//  3. merged with block_lasting_overwrites, with (2) winning on conflicts.
func (p *VMPoolState) getOverwrites(sellToken common.Address, maxAmount *uint256.Int) map[common.Address]map[common.Hash]common.Hash {
	balanceOverwrites := make(map[common.Address]map[common.Hash]common.Hash)
	if !p.capabilities.Has(capability.TokenBalanceIndependent) {
		owner := p.balanceOwnerAddress()
		for _, token := range p.tokens {
			factory := erc20.NewOverwriteFactory(token, p.tokenStorageSlots[token])
			factory.SetBalance(p.balances[token], owner)
			for addr, slots := range factory.GetOverwrites() {
				balanceOverwrites[addr] = slots
			}
		}
	}

	sellOverwrite := erc20.NewOverwriteFactory(sellToken, p.tokenStorageSlots[sellToken])
	sellOverwrite.SetBalance(maxAmount, adapter.EXTERNAL_ACCOUNT)
	sellOverwrite.SetAllowance(maxAmount, adapter.ADAPTER_ADDRESS, adapter.EXTERNAL_ACCOUNT)

	merged := mergeOverwrites(p.blockLastingOverwrites, balanceOverwrites)
	merged = mergeOverwrites(merged, sellOverwrite.GetOverwrites())
	return merged
}
