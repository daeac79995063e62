package pool

import (
	"context"
	"math"
	"strings"

	"github.com/holiman/uint256"
	"github.com/onchainquote/vmpool-sim/capability"
	"github.com/onchainquote/vmpool-sim/protocol"
)

// SetSpotPrices recomputes p.spotPrices for every ordered token pair: build
// overrides at MaxBalance/100, ask the adapter for the sell limit, then
// sample price once at sell_limit/100. Requires PriceFunction.
func (p *VMPoolState) SetSpotPrices(ctx context.Context) error {
	if !p.capabilities.Has(capability.PriceFunction) {
		return &protocol.RecoverableInput{Reason: "pool does not declare PriceFunction"}
	}

	poolID := strings.TrimPrefix(p.id, "0x")
	hundred := uint256.NewInt(100)
	fullAmount := new(uint256.Int).Div(MaxBalance, hundred)

	for _, sell := range p.tokens {
		for _, buy := range p.tokens {
			if sell == buy {
				continue
			}
			overrides := p.getOverwrites(sell, fullAmount)

			sellLimit, _, err := p.adapterClient.GetLimits(ctx, p.block, poolID, sell, buy, overrides)
			if err != nil {
				return err
			}
			sample := new(uint256.Int).Div(sellLimit, hundred)

			prices, err := p.adapterClient.Price(ctx, p.block, poolID, sell, buy, []*uint256.Int{sample}, overrides)
			if err != nil {
				return err
			}
			if len(prices) == 0 {
				continue
			}

			price := prices[0]
			if !p.capabilities.Has(capability.ScaledPrice) {
				price *= math.Pow(10, float64(int(p.decimals[sell])-int(p.decimals[buy])))
			}
			p.spotPrices[TokenPair{Sell: sell, Buy: buy}] = price
		}
	}
	return nil
}
