package registry

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/onchainquote/vmpool-sim/engine"
	"github.com/onchainquote/vmpool-sim/pool"
	"github.com/onchainquote/vmpool-sim/protocol"
	"github.com/onchainquote/vmpool-sim/statedb"
)

// VMPoolDecoder builds pool.VMPoolState instances for every component
// routed to it. It reads the adapter bytecode and any starting balances out
// of the component's opaque attribute bag, using the convention:
//   - "adapter_code"   -> raw runtime bytecode
//   - "balance:<hex>"  -> starting balance for the token at that address
//   - "balance_owner"  -> a 20-byte address, when the vault isn't the pool itself
//   - "manual_updates", "trace" -> single non-zero byte for true
type VMPoolDecoder struct {
	Shared      *statedb.CachedStateDB
	Config      *engine.Config
	CodeFetcher pool.CodeFetcher
}

// NewVMPoolDecoder returns a Decoder that instantiates pool.VMPoolState
// against shared and cfg, resolving dynamic stateless-contract references
// through fetcher (nil is fine for components with none).
func NewVMPoolDecoder(shared *statedb.CachedStateDB, cfg *engine.Config, fetcher pool.CodeFetcher) *VMPoolDecoder {
	return &VMPoolDecoder{Shared: shared, Config: cfg, CodeFetcher: fetcher}
}

func (d *VMPoolDecoder) Decode(ctx context.Context, component protocol.PoolComponent) (protocol.ProtocolSim, error) {
	code, ok := component.Attributes["adapter_code"]
	if !ok || len(code) == 0 {
		return nil, &protocol.FatalConfiguration{Reason: "pool component carries no adapter_code attribute"}
	}

	const balancePrefix = "balance:"
	balances := make(map[common.Address]*uint256.Int)
	for key, raw := range component.Attributes {
		if !strings.HasPrefix(key, balancePrefix) {
			continue
		}
		token := common.HexToAddress(strings.TrimPrefix(key, balancePrefix))
		balances[token] = new(uint256.Int).SetBytes(raw)
	}

	block, _ := d.Shared.CurrentBlock()

	params := pool.InitParams{
		Component:     component,
		Balances:      balances,
		AdapterCode:   code,
		ManualUpdates: boolAttribute(component.Attributes, "manual_updates"),
		Trace:         boolAttribute(component.Attributes, "trace"),
		Block:         block,
		CodeFetcher:   d.CodeFetcher,
	}
	if owner, ok := component.Attributes["balance_owner"]; ok && len(owner) == common.AddressLength {
		addr := common.BytesToAddress(owner)
		params.BalanceOwner = &addr
	}

	return pool.New(ctx, d.Shared, d.Config, params)
}

func boolAttribute(attrs map[string][]byte, key string) bool {
	raw, ok := attrs[key]
	return ok && len(raw) > 0 && raw[0] != 0
}
