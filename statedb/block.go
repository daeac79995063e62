package statedb

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainquote/vmpool-sim/account"
	"github.com/onchainquote/vmpool-sim/protocol"
)

// BlockUpdate is the account-update half of an incoming block delta, the
// portion that lands on the cached state backend. The pool-facing portion
// (ProtocolStateDelta) is handled entirely by package registry/pool.
type BlockUpdate struct {
	Block          protocol.BlockHeader
	AccountUpdates map[common.Address]protocol.AccountUpdate
}

// sortedAddresses returns the keys of m in deterministic (hex-string) order,
// so replay over a delta is reproducible regardless of map iteration order.
func sortedAddresses(m map[common.Address]protocol.AccountUpdate) []common.Address {
	out := make([]common.Address, 0, len(m))
	for addr := range m {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out
}

func toAccountDelta(u protocol.AccountUpdate) account.Delta {
	return account.Delta{
		Balance: u.Balance,
		Code:    u.Code,
		Slots:   u.Slots,
	}
}
