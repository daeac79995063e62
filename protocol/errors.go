// Package protocol holds the types shared across the VM pool simulation
// stack: the ProtocolSim capability set, pool component metadata, block
// deltas, and the closed error taxonomy that account/statedb/engine/pool
// all convert their failures into.
package protocol

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// RecoverableInput signals a caller mistake with no state change: an
// unknown token, an unknown pool, or a capability the pool does not have.
type RecoverableInput struct {
	Reason string
}

func (e *RecoverableInput) Error() string { return "recoverable input: " + e.Reason }

// SellAmountTooHigh is returned alongside a partial, still-valid result
// whenever a sell amount had to be clamped to the adapter's sell limit.
// Result holds whatever get_amount_out produced for the clamped amount so
// the caller may accept it instead of treating this as fatal.
type SellAmountTooHigh struct {
	Requested *uint256.Int
	Limit     *uint256.Int
	Result    any
}

func (e *SellAmountTooHigh) Error() string {
	return fmt.Sprintf("sell amount %s exceeds sell limit %s", e.Requested, e.Limit)
}

// InsufficientData signals a missing slot on a non-mocked (real) account.
// The caller may fetch the slot upstream and retry; this core never does.
type InsufficientData struct {
	Address common.Address
	Slot    common.Hash
}

func (e *InsufficientData) Error() string {
	return fmt.Sprintf("insufficient data: missing slot %s at %s", e.Slot, e.Address)
}

// MockInvariantViolated signals a missing slot on a mocked account — a
// contract violation by whoever populated the account, always fatal for
// the simulation it occurred in.
type MockInvariantViolated struct {
	Address common.Address
	Slot    common.Hash
}

func (e *MockInvariantViolated) Error() string {
	return fmt.Sprintf("mock invariant violated: missing slot %s at mocked account %s", e.Slot, e.Address)
}

// InterpreterRevert wraps an EVM revert, decoded through the standard
// Error(string) ABI selector when possible.
type InterpreterRevert struct {
	Reason string
	Raw    []byte
}

func (e *InterpreterRevert) Error() string {
	if e.Reason != "" {
		return "execution reverted: " + e.Reason
	}
	return fmt.Sprintf("execution reverted: %x", e.Raw)
}

// FatalConfiguration signals the pool is unusable until reconstructed:
// adapter code missing, block not set, a capability decode error.
type FatalConfiguration struct {
	Reason string
}

func (e *FatalConfiguration) Error() string { return "fatal configuration: " + e.Reason }
