package statedb

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Error is the raw signal the cached state backend reports. The simulation
// engine (engine.Simulate) converts it into one of the protocol package's
// taxonomy kinds; it does not reach package pool in this raw form.
type Error struct {
	Kind    Kind
	Address common.Address
	Slot    common.Hash
}

// Kind enumerates the distinct failure shapes basic/storage/block_hash can
// report, mirroring the raw signals named in the cached-state-backend design.
type Kind int

const (
	_ Kind = iota
	MissingAccount
	MissingSlot
	MissingMockedSlot
	BlockNotSet
	FatalMisuse
)

func (k Kind) String() string {
	switch k {
	case MissingAccount:
		return "MissingAccount"
	case MissingSlot:
		return "MissingSlot"
	case MissingMockedSlot:
		return "MissingMockedSlot"
	case BlockNotSet:
		return "BlockNotSet"
	case FatalMisuse:
		return "FatalMisuse"
	default:
		return "UnknownStateError"
	}
}

func (e *Error) Error() string {
	switch e.Kind {
	case MissingAccount:
		return fmt.Sprintf("%s: no account at %s", e.Kind, e.Address)
	case MissingSlot, MissingMockedSlot:
		return fmt.Sprintf("%s: no slot %s at %s", e.Kind, e.Slot, e.Address)
	default:
		return e.Kind.String()
	}
}

// Mocked reports whether e represents a missing slot on a mocked account,
// distinct from the same failure on a real account.
func (e *Error) Mocked() bool { return e.Kind == MissingMockedSlot }
