// Package adapter implements the adapter contract façade (C5): an
// ABI-typed client over the externally authored "adapter" bytecode that
// exposes a uniform price/getLimits/getCapabilities/swap interface behind
// which heterogeneous protocol-specific pricing math hides.
package adapter

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/onchainquote/vmpool-sim/capability"
	"github.com/onchainquote/vmpool-sim/engine"
	"github.com/onchainquote/vmpool-sim/protocol"
	"github.com/onchainquote/vmpool-sim/statedb"
)

// ADAPTER_ADDRESS is the canonical installation address for adapter
// bytecode, shared by every pool that uses this façade.
var ADAPTER_ADDRESS = common.HexToAddress("0xA2C5C98A892fD6656a7F39A2f63228C0Bc846270")

// EXTERNAL_ACCOUNT is the synthetic caller used for every simulation and
// as the synthetic token holder during overwrite composition.
var EXTERNAL_ACCOUNT = common.HexToAddress("0xf847a638E44186F3287ee9F8cAF73FF4d4B80784")

// Adapter is a thin, stateless ABI client: every call builds calldata,
// runs one engine.Simulate against shared, and decodes the reply. It holds
// no pool-specific state — package pool owns that.
type Adapter struct {
	shared *statedb.CachedStateDB
	cfg    *engine.Config
}

// New returns a façade over the adapter bytecode installed at
// ADAPTER_ADDRESS in shared.
func New(shared *statedb.CachedStateDB, cfg *engine.Config) *Adapter {
	return &Adapter{shared: shared, cfg: cfg}
}

// Trade is swap's decoded reply.
type Trade struct {
	ReceivedAmount *uint256.Int
	GasUsed        uint64
	Price          float64
}

// poolIDBytes32 strips the 0x prefix and left-pads to 32 bytes, the
// Solidity bytes32 encoding of a hex-prefixed pool identifier.
func poolIDBytes32(poolID string) ([32]byte, error) {
	hexStr := strings.TrimPrefix(poolID, "0x")
	if len(hexStr)%2 != 0 {
		hexStr = "0" + hexStr
	}
	raw := common.FromHex("0x" + hexStr)
	if len(raw) > 32 {
		return [32]byte{}, fmt.Errorf("adapter: pool id %q longer than 32 bytes", poolID)
	}
	var out [32]byte
	copy(out[32-len(raw):], raw)
	return out, nil
}

func fractionToFloat(numerator, denominator *big.Int) float64 {
	if denominator.Sign() == 0 {
		return 0
	}
	n := new(big.Float).SetInt(numerator)
	d := new(big.Float).SetInt(denominator)
	f, _ := new(big.Float).Quo(n, d).Float64()
	return f
}

func toUint256(b *big.Int) (*uint256.Int, error) {
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("adapter: value %s overflows uint256", b)
	}
	return v, nil
}

func (a *Adapter) call(ctx context.Context, block protocol.BlockHeader, overrides map[common.Address]map[common.Hash]common.Hash, data []byte) ([]byte, error) {
	res, err := engine.Simulate(ctx, a.shared, a.cfg, engine.Params{
		To:        ADAPTER_ADDRESS,
		Data:      data,
		Caller:    EXTERNAL_ACCOUNT,
		Value:     new(uint256.Int),
		Block:     block,
		GasLimit:  5_000_000,
		Overrides: overrides,
	})
	if err != nil {
		return nil, err
	}
	return res.ReturnData, nil
}

// Price calls price(poolId, sell, buy, sampleAmounts) and returns one
// price per sample.
func (a *Adapter) Price(ctx context.Context, block protocol.BlockHeader, poolID string, sell, buy common.Address, sampleAmounts []*uint256.Int, overrides map[common.Address]map[common.Hash]common.Hash) ([]float64, error) {
	id, err := poolIDBytes32(poolID)
	if err != nil {
		return nil, err
	}
	amounts := make([]*big.Int, len(sampleAmounts))
	for i, amt := range sampleAmounts {
		amounts[i] = amt.ToBig()
	}
	data, err := ParsedABI.Pack("price", id, sell, buy, amounts)
	if err != nil {
		return nil, fmt.Errorf("adapter: pack price: %w", err)
	}
	ret, err := a.call(ctx, block, overrides, data)
	if err != nil {
		return nil, err
	}

	var out struct {
		Prices []struct {
			Numerator   *big.Int
			Denominator *big.Int
		}
	}
	if err := ParsedABI.UnpackIntoInterface(&out, "price", ret); err != nil {
		return nil, fmt.Errorf("adapter: unpack price: %w", err)
	}
	prices := make([]float64, len(out.Prices))
	for i, f := range out.Prices {
		prices[i] = fractionToFloat(f.Numerator, f.Denominator)
	}
	return prices, nil
}

// GetLimits calls getLimits(poolId, sell, buy) and returns (sellLimit, buyLimit).
func (a *Adapter) GetLimits(ctx context.Context, block protocol.BlockHeader, poolID string, sell, buy common.Address, overrides map[common.Address]map[common.Hash]common.Hash) (*uint256.Int, *uint256.Int, error) {
	id, err := poolIDBytes32(poolID)
	if err != nil {
		return nil, nil, err
	}
	data, err := ParsedABI.Pack("getLimits", id, sell, buy)
	if err != nil {
		return nil, nil, fmt.Errorf("adapter: pack getLimits: %w", err)
	}
	ret, err := a.call(ctx, block, overrides, data)
	if err != nil {
		return nil, nil, err
	}

	var out struct {
		Limits []*big.Int
	}
	if err := ParsedABI.UnpackIntoInterface(&out, "getLimits", ret); err != nil {
		return nil, nil, fmt.Errorf("adapter: unpack getLimits: %w", err)
	}
	if len(out.Limits) < 2 {
		return nil, nil, fmt.Errorf("adapter: getLimits returned %d limits, want 2", len(out.Limits))
	}
	sellLimit, err := toUint256(out.Limits[0])
	if err != nil {
		return nil, nil, err
	}
	buyLimit, err := toUint256(out.Limits[1])
	if err != nil {
		return nil, nil, err
	}
	return sellLimit, buyLimit, nil
}

// GetCapabilities calls getCapabilities(poolId, sell, buy) and decodes the
// wire-stable capability bytes.
func (a *Adapter) GetCapabilities(ctx context.Context, block protocol.BlockHeader, poolID string, sell, buy common.Address) (capability.Set, error) {
	id, err := poolIDBytes32(poolID)
	if err != nil {
		return nil, err
	}
	data, err := ParsedABI.Pack("getCapabilities", id, sell, buy)
	if err != nil {
		return nil, fmt.Errorf("adapter: pack getCapabilities: %w", err)
	}
	ret, err := a.call(ctx, block, nil, data)
	if err != nil {
		return nil, err
	}

	var out struct {
		Capabilities []uint8
	}
	if err := ParsedABI.UnpackIntoInterface(&out, "getCapabilities", ret); err != nil {
		return nil, fmt.Errorf("adapter: unpack getCapabilities: %w", err)
	}
	set := make(capability.Set, len(out.Capabilities))
	for _, b := range out.Capabilities {
		set[capability.Capability(b)] = struct{}{}
	}
	return set, nil
}

// Swap calls swap(poolId, sell, buy, isBuy, amount) and returns the decoded
// trade plus the call's raw state changes (the caller folds these into
// block_lasting_overwrites, copy-on-write).
func (a *Adapter) Swap(ctx context.Context, block protocol.BlockHeader, poolID string, sell, buy common.Address, isBuy bool, amount *uint256.Int, overrides map[common.Address]map[common.Hash]common.Hash) (Trade, map[common.Address]map[common.Hash]common.Hash, error) {
	id, err := poolIDBytes32(poolID)
	if err != nil {
		return Trade{}, nil, err
	}
	data, err := ParsedABI.Pack("swap", id, sell, buy, isBuy, amount.ToBig())
	if err != nil {
		return Trade{}, nil, fmt.Errorf("adapter: pack swap: %w", err)
	}

	res, err := engine.Simulate(ctx, a.shared, a.cfg, engine.Params{
		To:        ADAPTER_ADDRESS,
		Data:      data,
		Caller:    EXTERNAL_ACCOUNT,
		Value:     new(uint256.Int),
		Block:     block,
		GasLimit:  5_000_000,
		Overrides: overrides,
	})
	if err != nil {
		return Trade{}, nil, err
	}

	var out struct {
		Trade struct {
			CalculatedAmount *big.Int
			GasUsed          *big.Int
			PriceNumerator   *big.Int
			PriceDenominator *big.Int
		}
	}
	if err := ParsedABI.UnpackIntoInterface(&out, "swap", res.ReturnData); err != nil {
		return Trade{}, nil, fmt.Errorf("adapter: unpack swap: %w", err)
	}

	received, err := toUint256(out.Trade.CalculatedAmount)
	if err != nil {
		return Trade{}, nil, err
	}

	stateChanges := make(map[common.Address]map[common.Hash]common.Hash, len(res.StateChanges))
	for addr, delta := range res.StateChanges {
		stateChanges[addr] = delta.Slots
	}

	return Trade{
		ReceivedAmount: received,
		GasUsed:        out.Trade.GasUsed.Uint64(),
		Price:          fractionToFloat(out.Trade.PriceNumerator, out.Trade.PriceDenominator),
	}, stateChanges, nil
}
