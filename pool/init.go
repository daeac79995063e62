package pool

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/onchainquote/vmpool-sim/account"
	"github.com/onchainquote/vmpool-sim/adapter"
	"github.com/onchainquote/vmpool-sim/capability"
	"github.com/onchainquote/vmpool-sim/engine"
	"github.com/onchainquote/vmpool-sim/erc20"
	"github.com/onchainquote/vmpool-sim/protocol"
	"github.com/onchainquote/vmpool-sim/statedb"
)

// CodeFetcher resolves bytecode for a stateless contract address from an
// upstream source once its address has been determined (directly, or via
// the call:<addr>:<method> indirection). rpc.Client satisfies this.
type CodeFetcher interface {
	CodeAt(ctx context.Context, addr common.Address, blk string) ([]byte, error)
}

// InitParams is everything New needs to stand up one pool: its static
// component metadata, resolved tokens, off-chain-known balances, any
// non-default token storage layouts, auxiliary bytecode, and the adapter
// blob itself.
type InitParams struct {
	Component          protocol.PoolComponent
	Tokens             []erc20.Token
	Balances           map[common.Address]*uint256.Int
	BalanceOwner       *common.Address
	TokenStorageSlots  map[common.Address]erc20.StorageSlots
	StatelessContracts map[string][]byte
	AdapterCode        []byte
	ManualUpdates      bool
	Trace              bool
	Block              protocol.BlockHeader
	CodeFetcher        CodeFetcher
}

// New installs the pool's required accounts on shared (null address,
// identity precompile, the adapter bytecode, and every stateless contract),
// resolves the call:<addr>:<method> indirections, probes per-pair
// capabilities and stores their intersection, and — when the intersection
// includes PriceFunction — computes the initial spot prices.
func New(ctx context.Context, shared *statedb.CachedStateDB, cfg *engine.Config, params InitParams) (*VMPoolState, error) {
	if len(params.AdapterCode) == 0 {
		return nil, &protocol.FatalConfiguration{Reason: "no adapter bytecode supplied"}
	}
	if !shared.Exists(nullAddress) {
		shared.InitAccount(nullAddress, account.New(new(uint256.Int), 0, nil), nil, true)
	}
	if !shared.Exists(identityPrecompile) {
		shared.InitAccount(identityPrecompile, account.New(new(uint256.Int), 0, nil), nil, true)
	}
	shared.InitAccount(adapter.ADAPTER_ADDRESS, account.New(new(uint256.Int), 0, params.AdapterCode), nil, true)
	if !shared.Exists(adapter.EXTERNAL_ACCOUNT) {
		shared.InitAccount(adapter.EXTERNAL_ACCOUNT, account.New(new(uint256.Int), 0, nil), nil, true)
	}

	resolved := make(map[string][]byte, len(params.StatelessContracts))
	for ref, code := range params.StatelessContracts {
		if code != nil {
			addr := common.HexToAddress(ref)
			shared.InitAccount(addr, account.New(new(uint256.Int), 0, code), nil, true)
			resolved[ref] = code
			continue
		}
		if !strings.HasPrefix(ref, "call:") {
			continue
		}
		installedAt, err := resolveDynamicRef(ctx, shared, cfg, ref)
		if err != nil {
			return nil, err
		}
		if params.CodeFetcher == nil {
			return nil, &protocol.FatalConfiguration{Reason: fmt.Sprintf("stateless contract %q resolved to %s but no code fetcher was supplied", ref, installedAt)}
		}
		fetched, err := params.CodeFetcher.CodeAt(ctx, installedAt, "latest")
		if err != nil {
			return nil, &protocol.FatalConfiguration{Reason: fmt.Sprintf("fetching code for %s: %v", installedAt, err)}
		}
		shared.InitAccount(installedAt, account.New(new(uint256.Int), 0, fetched), nil, false)
		resolved[ref] = fetched
	}

	tokens := make([]common.Address, len(params.Component.Tokens))
	decimals := make(map[common.Address]uint8, len(params.Component.Tokens))
	for i, t := range params.Component.Tokens {
		tokens[i] = t.Address
		decimals[t.Address] = t.Decimals
	}
	for _, t := range params.Tokens {
		decimals[t.Address] = t.Decimals
	}

	slots := make(map[common.Address]erc20.StorageSlots, len(tokens))
	for _, addr := range tokens {
		if s, ok := params.TokenStorageSlots[addr]; ok {
			slots[addr] = s
		} else {
			slots[addr] = erc20.DefaultStorageSlots
		}
	}

	balances := make(map[common.Address]*uint256.Int, len(tokens))
	for _, addr := range tokens {
		if b, ok := params.Balances[addr]; ok {
			balances[addr] = new(uint256.Int).Set(b)
		} else {
			balances[addr] = new(uint256.Int)
		}
	}

	p := &VMPoolState{
		id:                     params.Component.ID,
		tokens:                 tokens,
		decimals:               decimals,
		block:                  params.Block,
		balances:               balances,
		balanceOwner:           params.BalanceOwner,
		spotPrices:             make(map[TokenPair]float64),
		blockLastingOverwrites: make(map[common.Address]map[common.Hash]common.Hash),
		involvedContracts:      make(map[common.Address]struct{}),
		tokenStorageSlots:      slots,
		statelessContracts:     resolved,
		manualUpdates:          params.ManualUpdates,
		trace:                  params.Trace,
		shared:                 shared,
		cfg:                    cfg,
		adapterClient:          adapter.New(shared, cfg),
	}

	if err := p.probeCapabilities(ctx); err != nil {
		return nil, err
	}

	if p.capabilities.Has(capability.PriceFunction) {
		if err := p.SetSpotPrices(ctx); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// probeCapabilities calls getCapabilities for every ordered token pair and
// stores the intersection, warning when the pool's capabilities are not
// uniform across pairs.
func (p *VMPoolState) probeCapabilities(ctx context.Context) error {
	var perPair []capability.Set
	for _, sell := range p.tokens {
		for _, buy := range p.tokens {
			if sell == buy {
				continue
			}
			set, err := p.adapterClient.GetCapabilities(ctx, p.block, strings.TrimPrefix(p.id, "0x"), sell, buy)
			if err != nil {
				return err
			}
			perPair = append(perPair, set)
		}
	}
	intersection := capability.Intersect(perPair...)
	capability.WarnIfNonUniform(p.id, intersection, perPair)
	p.capabilities = intersection
	return nil
}

// resolveDynamicRef runs the synthetic selector call a "call:<addr>:<method>"
// stateless-contract reference encodes, returning the address its reply
// ABI-decodes to.
func resolveDynamicRef(ctx context.Context, shared *statedb.CachedStateDB, cfg *engine.Config, ref string) (common.Address, error) {
	parts := strings.SplitN(ref, ":", 3)
	if len(parts) != 3 {
		return common.Address{}, &protocol.FatalConfiguration{Reason: "malformed stateless contract reference: " + ref}
	}
	to := common.HexToAddress(parts[1])
	method := parts[2]
	selector := crypto.Keccak256([]byte(method))[:4]

	res, err := engine.Simulate(ctx, shared, cfg, engine.Params{
		To:       to,
		Data:     selector,
		Caller:   adapter.EXTERNAL_ACCOUNT,
		Value:    new(uint256.Int),
		GasLimit: 1_000_000,
	})
	if err != nil {
		return common.Address{}, err
	}
	if len(res.ReturnData) < 20 {
		return common.Address{}, &protocol.FatalConfiguration{Reason: "stateless contract resolution returned fewer than 20 bytes"}
	}
	addr := common.BytesToAddress(res.ReturnData[len(res.ReturnData)-20:])
	log.Debug("resolved dynamic stateless contract reference", "ref", ref, "resolved", addr)
	return addr, nil
}
