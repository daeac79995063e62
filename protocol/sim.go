package protocol

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// GetAmountOutResult is the return value of ProtocolSim.GetAmountOut: the
// buy-side amount, the gas the adapter reported, and the resulting pool
// state clone (copy-on-write — the receiver is never mutated).
type GetAmountOutResult struct {
	Amount   *uint256.Int
	Gas      uint64
	NewState ProtocolSim
}

// ProtocolSim is the shared capability set across every pool variant —
// closed-form analytic pools live outside this core; the VM-backed variant
// in package pool is the one implementation this core ships.
type ProtocolSim interface {
	// Fee returns the pool's swap fee as a fraction of the sell amount,
	// where known statically; VM pools that derive fee from simulation
	// return it via GetAmountOutResult instead and may report 0 here.
	Fee() float64

	// SpotPrice returns the last-computed marginal price for (sell, buy).
	SpotPrice(sell, buy common.Address) (float64, error)

	// GetAmountOut prices a hypothetical sell of sellAmount of sell for
	// buy, returning the buy-side amount and a new pool state. It never
	// mutates the receiver or any shared backing store.
	GetAmountOut(ctx context.Context, sell common.Address, sellAmount *uint256.Int, buy common.Address) (GetAmountOutResult, error)

	// DeltaTransition applies a block-scoped protocol state delta
	// in-place, advancing the pool to the new block.
	DeltaTransition(ctx context.Context, block BlockHeader, delta ProtocolStateDelta, accountUpdates map[common.Address]AccountUpdate) error

	// EventTransition applies a transition sourced from a decoded
	// contract event rather than a full attribute delta. Pools that have
	// no event-sourced path may return RecoverableInput.
	EventTransition(ctx context.Context, eventName string, data map[string][]byte) error

	// Clone returns a deep, independent copy of the pool state.
	Clone() ProtocolSim

	// Equals reports whether other represents the same pool in the same
	// state (same id, same balances, same block) — not pointer identity.
	Equals(other ProtocolSim) bool

	// ID returns the pool's identifier, as used by the registry.
	ID() string
}

// BlockHeader mirrors spec's block header: number, hash, and timestamp.
// The cached state backend holds exactly one current instance.
type BlockHeader struct {
	Number    uint64
	Hash      common.Hash
	Timestamp uint64
}
