// Package capability implements the adapter Capability bitset: a small,
// stable enum decoded verbatim off adapter contract replies, plus the
// set-intersection logic pool.VMPoolState uses across token pairs.
package capability

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// Capability is a single adapter-declared feature flag. Wire values are
// stable and must match the adapter ABI's encoding exactly.
type Capability uint8

const (
	SellSide                Capability = 1
	BuySide                 Capability = 2
	PriceFunction           Capability = 3
	FeeOnTransfer           Capability = 4
	ConstantPrice           Capability = 5
	TokenBalanceIndependent Capability = 6
	ScaledPrice             Capability = 7
	HardLimits              Capability = 8
	MarginalPrice           Capability = 9
)

func (c Capability) String() string {
	switch c {
	case SellSide:
		return "SellSide"
	case BuySide:
		return "BuySide"
	case PriceFunction:
		return "PriceFunction"
	case FeeOnTransfer:
		return "FeeOnTransfer"
	case ConstantPrice:
		return "ConstantPrice"
	case TokenBalanceIndependent:
		return "TokenBalanceIndependent"
	case ScaledPrice:
		return "ScaledPrice"
	case HardLimits:
		return "HardLimits"
	case MarginalPrice:
		return "MarginalPrice"
	default:
		return fmt.Sprintf("Capability(%d)", uint8(c))
	}
}

// Set is an unordered collection of capabilities.
type Set map[Capability]struct{}

// NewSet builds a Set from a list of capabilities.
func NewSet(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether c is a member of s.
func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Intersect returns the capabilities present in every set in sets. An empty
// sets slice yields an empty Set.
func Intersect(sets ...Set) Set {
	if len(sets) == 0 {
		return Set{}
	}
	out := make(Set, len(sets[0]))
	for c := range sets[0] {
		out[c] = struct{}{}
	}
	for _, s := range sets[1:] {
		for c := range out {
			if !s.Has(c) {
				delete(out, c)
			}
		}
	}
	return out
}

// WarnIfNonUniform logs a warning when intersection is strictly smaller
// than the largest single set, matching the pool-initialization check that
// capabilities must be uniform across token pairs to be operationally sound.
func WarnIfNonUniform(poolID string, intersection Set, perPair []Set) {
	largest := 0
	for _, s := range perPair {
		if len(s) > largest {
			largest = len(s)
		}
	}
	if len(intersection) < largest {
		log.Warn("pool capabilities are non-uniform across token pairs",
			"pool", poolID, "intersectionSize", len(intersection), "largestPairSize", largest)
	}
}

// FromU256 decodes a Capability from the low byte of a uint256 return value,
// the shape getCapabilities replies use on the wire.
func FromU256(v *uint256.Int) Capability {
	return Capability(v.Uint64() & 0xff)
}
