package pool

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/onchainquote/vmpool-sim/protocol"
)

// balanceAttributeKey is the key DeltaTransition reads a token's new
// balance from in a ProtocolStateDelta's attributes: the token address,
// lowercase, without the 0x prefix. It carries no "balance:" prefix, unlike
// the component attributes registry.VMPoolDecoder reads at creation.
func balanceAttributeKey(token common.Address) string {
	return strings.ToLower(strings.TrimPrefix(token.Hex(), "0x"))
}

// DeltaTransition installs the new block, applies any balance attributes
// the delta carries for this pool's tokens, clears block_lasting_overwrites,
// and — unless manual_updates is set — recomputes spot prices.
func (p *VMPoolState) DeltaTransition(ctx context.Context, block protocol.BlockHeader, delta protocol.ProtocolStateDelta, accountUpdates map[common.Address]protocol.AccountUpdate) error {
	p.block = block

	for _, token := range p.tokens {
		raw, ok := delta.Attributes[balanceAttributeKey(token)]
		if !ok {
			continue
		}
		p.balances[token] = new(uint256.Int).SetBytes(raw)
	}

	p.blockLastingOverwrites = make(map[common.Address]map[common.Hash]common.Hash)

	if p.manualUpdates {
		return nil
	}
	return p.SetSpotPrices(ctx)
}

// EventTransition has no effect for VM pools: they have no event-sourced
// update path, only attribute deltas.
func (p *VMPoolState) EventTransition(ctx context.Context, eventName string, data map[string][]byte) error {
	return &protocol.RecoverableInput{Reason: "VM pool state has no event-sourced transition path for event " + eventName}
}
