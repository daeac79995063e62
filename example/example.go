package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/onchainquote/vmpool-sim/engine"
	"github.com/onchainquote/vmpool-sim/protocol"
	"github.com/onchainquote/vmpool-sim/registry"
	"github.com/onchainquote/vmpool-sim/rpc"
	"github.com/onchainquote/vmpool-sim/statedb"
)

// loadAdapterRuntimeBytecode reads a solc --bin-runtime style hex file
// (0x-prefixed or not) and decodes it with go-ethereum's hexutil, matching
// the adapter_contract_path entry in a pool's configuration.
func loadAdapterRuntimeBytecode(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	hexStr := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(hexStr, "0x") {
		hexStr = "0x" + hexStr
	}
	return hexutil.Decode(hexStr)
}

func main() {
	quoteDaiForBal()
}

// quoteDaiForBal wires every package together end to end: a context-aware
// rpc.Client backs dynamic stateless-contract resolution, the registry
// indexes one pool decoded through a VMPoolDecoder, and GetAmountOut prices
// a sell of DAI for BAL against it. Not a CLI — see spec's Non-goals.
func quoteDaiForBal() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rpcClient := rpc.NewClient("https://eth.llamarpc.com")

	// The block is installed on shared by ApplyBlockUpdate below.
	shared := statedb.New()
	block := protocol.BlockHeader{Number: 20463609}

	cfg := &engine.Config{}
	reg := registry.New(shared)
	reg.RegisterDecoder("balancer-v2", registry.NewVMPoolDecoder(shared, cfg, rpcClient))

	snapshots := make(chan registry.SnapshotEvent, 8)
	sub := reg.SubscribeSnapshots(snapshots)
	defer sub.Unsubscribe()

	adapterCode, err := loadAdapterRuntimeBytecode("adapter_runtime.hex")
	if err != nil {
		log.Fatalf("loading adapter bytecode: %v", err)
	}

	dai := common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	bal := common.HexToAddress("0xba100000625a3754423978a60c9317c58a424e3D")
	poolID := "0x5c6ee304399dbdb9c8ef030ab642b10820db8f56000200000000000000000011"

	component := protocol.PoolComponent{
		ID:             poolID,
		ProtocolSystem: "balancer-v2",
		Tokens: []protocol.TokenRef{
			{Address: dai, Decimals: 18, Symbol: "DAI"},
			{Address: bal, Decimals: 18, Symbol: "BAL"},
		},
		Attributes: map[string][]byte{
			"adapter_code": adapterCode,
		},
	}

	if err := reg.ApplyBlockUpdate(ctx, registry.BlockUpdate{
		Block:    block,
		NewPairs: map[registry.PoolId]protocol.PoolComponent{poolID: component},
	}); err != nil {
		log.Fatalf("applying block update: %v", err)
	}

	select {
	case snap := <-snapshots:
		log.Printf("snapshot at block %d: %v", snap.Block.Number, snap.UpdatedPoolIDs)
	default:
	}

	sim, ok := reg.Pool(poolID)
	if !ok {
		log.Fatalf("pool %s not indexed after insertion", poolID)
	}

	sellAmount := new(uint256.Int).SetUint64(1000000000000000000) // 1 DAI, 18 decimals
	result, err := sim.GetAmountOut(ctx, dai, sellAmount, bal)
	if err != nil {
		tooHigh, ok := err.(*protocol.SellAmountTooHigh)
		if !ok {
			log.Fatalf("GetAmountOut: %v", err)
		}
		log.Printf("sell amount clamped: requested=%s limit=%s", tooHigh.Requested, tooHigh.Limit)
	}

	log.Printf("DAI -> BAL: amount=%s gas=%d", result.Amount, result.Gas)
	if price, err := result.NewState.SpotPrice(dai, bal); err == nil {
		log.Printf("post-trade spot price DAI->BAL: %v", price)
	}
}
