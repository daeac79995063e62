package pool

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/onchainquote/vmpool-sim/capability"
	"github.com/onchainquote/vmpool-sim/protocol"
)

// GetAmountOut is the central pricing contract: clamp sellAmount to the
// adapter's sell limit when HardLimits applies, invoke swap, and return a
// new, copy-on-write pool state carrying the simulation's storage diff
// forward as block-lasting scratch. The receiver and the shared backend
// are never mutated.
func (p *VMPoolState) GetAmountOut(ctx context.Context, sell common.Address, sellAmount *uint256.Int, buy common.Address) (protocol.GetAmountOutResult, error) {
	poolID := strings.TrimPrefix(p.id, "0x")
	hundred := uint256.NewInt(100)
	fullAmount := new(uint256.Int).Div(MaxBalance, hundred)

	overrides := p.getOverwrites(sell, fullAmount)

	sellLimit, _, err := p.adapterClient.GetLimits(ctx, p.block, poolID, sell, buy, overrides)
	if err != nil {
		return protocol.GetAmountOutResult{}, err
	}

	clamped := sellAmount
	exceeded := false
	if p.capabilities.Has(capability.HardLimits) && sellAmount.Cmp(sellLimit) > 0 {
		clamped = sellLimit
		exceeded = true
	}

	limitOverrides := p.getOverwrites(sell, sellLimit)
	overrides = mergeOverwrites(overrides, limitOverrides)

	trade, stateChanges, err := p.adapterClient.Swap(ctx, p.block, poolID, sell, buy, false, clamped, overrides)
	if err != nil {
		return protocol.GetAmountOutResult{}, err
	}

	newState := p.Clone().(*VMPoolState)
	for addr, slots := range stateChanges {
		inner, ok := newState.blockLastingOverwrites[addr]
		if !ok {
			inner = make(map[common.Hash]common.Hash, len(slots))
			newState.blockLastingOverwrites[addr] = inner
		}
		for slot, val := range slots {
			inner[slot] = val
		}
	}

	if trade.Price != 0 {
		newState.spotPrices[TokenPair{Sell: sell, Buy: buy}] = trade.Price
		newState.spotPrices[TokenPair{Sell: buy, Buy: sell}] = 1 / trade.Price
	}

	result := protocol.GetAmountOutResult{
		Amount:   trade.ReceivedAmount,
		Gas:      trade.GasUsed,
		NewState: newState,
	}

	if exceeded {
		return result, &protocol.SellAmountTooHigh{Requested: sellAmount, Limit: sellLimit, Result: result}
	}
	return result, nil
}
