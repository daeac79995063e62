package protocol

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ChangeKind classifies an account update within a block delta.
type ChangeKind int

const (
	Update ChangeKind = iota
	Creation
	Deletion
)

// AccountUpdate is one account's portion of a BlockStateChange. Balance and
// Code are nil when unchanged; Slots entries are always applied.
type AccountUpdate struct {
	Balance *uint256.Int
	Code    []byte
	Slots   map[common.Hash]common.Hash
	Kind    ChangeKind
}

// ProtocolStateDelta is the protocol-specific half of a block update: the
// attribute deltas a Decoder-specific pool applies to itself, distinct from
// the raw account_updates that go to the cached state backend.
type ProtocolStateDelta struct {
	ComponentID string
	Attributes  map[string][]byte
	Deleted     []string
}
