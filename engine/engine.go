// Package engine implements the simulation engine (C3): it wraps the
// unmodified core/vm.EVM interpreter and drives it against the cached
// state backend (package statedb) through a call-scoped core/vm.StateDB
// adapter, applying a temporary override overlay for the duration of one
// call and reporting the resulting state diff without ever committing it.
package engine

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/onchainquote/vmpool-sim/account"
	"github.com/onchainquote/vmpool-sim/protocol"
	"github.com/onchainquote/vmpool-sim/statedb"
)

// revertSelector is the standard Error(string) ABI selector go-ethereum's
// own abigen-generated bindings use to decode revert reasons.
var revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

// Params mirrors spec.md's simulate(params): the call target, input,
// caller, value, the block the call runs at (when Block.Number is zero,
// the shared backend's current block is used), and a per-call override
// overlay applied on top of the shared cached state backend for the
// duration of this call only.
type Params struct {
	To        common.Address
	Data      []byte
	Caller    common.Address
	Value     *uint256.Int
	Block     protocol.BlockHeader
	GasLimit  uint64
	Overrides map[common.Address]map[common.Hash]common.Hash
}

// Result is spec.md's {result_bytes, gas_used, state_changes}. StateChanges
// is never committed by Simulate; the caller decides whether to fold it
// into block_lasting_overwrites or discard it.
type Result struct {
	ReturnData   []byte
	GasUsed      uint64
	StateChanges map[common.Address]account.Delta
}

// Simulate runs one EVM call against shared, returning its result without
// committing anything. It never fetches upstream: a missing slot on shared
// surfaces as InsufficientData or MockInvariantViolated.
func Simulate(ctx context.Context, shared *statedb.CachedStateDB, cfg *Config, params Params) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if cfg == nil {
		cfg = &Config{}
	}
	SetDefaults(cfg)

	block, hasBlock := shared.CurrentBlock()
	if !hasBlock {
		return Result{}, &protocol.FatalConfiguration{Reason: "no block installed on cached state backend"}
	}
	if params.Block.Number != 0 {
		block = params.Block
	}

	callDB := newCallStateDB(shared, params.Overrides)

	blockCtx := vm.BlockContext{
		CanTransfer: func(db vm.StateDB, addr common.Address, amount *uint256.Int) bool {
			return db.GetBalance(addr).Cmp(amount) >= 0
		},
		Transfer: func(db vm.StateDB, from, to common.Address, amount *uint256.Int) {
			db.SubBalance(from, amount, tracing.BalanceChangeTransfer)
			db.AddBalance(to, amount, tracing.BalanceChangeTransfer)
		},
		GetHash: func(n uint64) common.Hash {
			h, err := shared.BlockHash(n)
			if err != nil {
				return cfg.GetHashFn(n)
			}
			return h
		},
		Coinbase:    cfg.Coinbase,
		BlockNumber: new(big.Int).SetUint64(block.Number),
		Time:        block.Timestamp,
		Difficulty:  cfg.Difficulty,
		GasLimit:    params.GasLimit,
		BaseFee:     cfg.BaseFee,
		BlobBaseFee: cfg.BlobBaseFee,
		Random:      cfg.Random,
	}
	txCtx := vm.TxContext{
		Origin:   params.Caller,
		GasPrice: cfg.GasPrice,
	}

	evm := vm.NewEVM(blockCtx, txCtx, callDB, cfg.ChainConfig, cfg.EVMConfig)

	gasLimit := params.GasLimit
	if gasLimit == 0 {
		gasLimit = cfg.GasLimit
	}
	value := params.Value
	if value == nil {
		value = new(uint256.Int)
	}

	ret, leftOverGas, callErr := evm.Call(vm.AccountRef(params.Caller), params.To, params.Data, gasLimit, value)

	if stickyErr := callDB.Err(); stickyErr != nil {
		return Result{}, translateStateError(stickyErr)
	}

	if callErr != nil {
		if errors.Is(callErr, vm.ErrExecutionReverted) {
			return Result{}, &protocol.InterpreterRevert{
				Reason: decodeRevertReason(ret),
				Raw:    ret,
			}
		}
		log.Warn("simulation call failed", "to", params.To, "error", callErr)
		return Result{}, &protocol.InterpreterRevert{Reason: callErr.Error(), Raw: ret}
	}

	return Result{
		ReturnData:   ret,
		GasUsed:      gasLimit - leftOverGas,
		StateChanges: callDB.diff(),
	}, nil
}

func translateStateError(err error) error {
	serr, ok := err.(*statedb.Error)
	if !ok {
		return &protocol.FatalConfiguration{Reason: err.Error()}
	}
	switch serr.Kind {
	case statedb.MissingMockedSlot:
		return &protocol.MockInvariantViolated{Address: serr.Address, Slot: serr.Slot}
	case statedb.MissingSlot:
		return &protocol.InsufficientData{Address: serr.Address, Slot: serr.Slot}
	case statedb.MissingAccount:
		return &protocol.InsufficientData{Address: serr.Address}
	case statedb.BlockNotSet, statedb.FatalMisuse:
		return &protocol.FatalConfiguration{Reason: serr.Error()}
	default:
		return &protocol.FatalConfiguration{Reason: serr.Error()}
	}
}

// decodeRevertReason decodes a standard Error(string) ABI-encoded revert;
// undecodable payloads are surfaced raw by the caller via Raw.
func decodeRevertReason(ret []byte) string {
	if len(ret) < 4+64 || string(ret[:4]) != string(revertSelector) {
		return ""
	}
	length := new(big.Int).SetBytes(ret[36:68]).Uint64()
	start := 68
	if uint64(start)+length > uint64(len(ret)) {
		return ""
	}
	return string(ret[start : uint64(start)+length])
}
