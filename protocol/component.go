package protocol

import "github.com/ethereum/go-ethereum/common"

// TokenRef is a lightweight token reference carried on a PoolComponent,
// ahead of the fuller erc20.Token model a decoder may resolve it into.
type TokenRef struct {
	Address  common.Address
	Decimals uint8
	Symbol   string
}

// PoolComponent is the static, protocol-agnostic metadata an indexer hands
// a Decoder to build pool state from. Attributes are opaque byte payloads;
// only the decoder registered for ProtocolSystem knows how to read them.
type PoolComponent struct {
	ID             string
	Tokens         []TokenRef
	ProtocolSystem string
	Attributes     map[string][]byte
}
