package pool

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/onchainquote/vmpool-sim/adapter"
	"github.com/onchainquote/vmpool-sim/capability"
	"github.com/onchainquote/vmpool-sim/engine"
	"github.com/onchainquote/vmpool-sim/protocol"
	"github.com/onchainquote/vmpool-sim/statedb"
)

// --- a tiny forward-jump assembler, used only to build the synthetic
// adapter contract these tests install at ADAPTER_ADDRESS. ---

type pendingRef struct {
	pos   int
	label string
}

type asm struct {
	code        []byte
	labelPos    map[string]int
	pendingRefs []pendingRef
}

func newAsm() *asm { return &asm{labelPos: map[string]int{}} }

func (a *asm) op(b byte) *asm { a.code = append(a.code, b); return a }

func (a *asm) push1(b byte) *asm { a.code = append(a.code, 0x60, b); return a }

func (a *asm) push4(b [4]byte) *asm {
	a.code = append(a.code, 0x63)
	a.code = append(a.code, b[:]...)
	return a
}

func (a *asm) push32(w [32]byte) *asm {
	a.code = append(a.code, 0x7f)
	a.code = append(a.code, w[:]...)
	return a
}

func (a *asm) pushLabel(label string) *asm {
	a.code = append(a.code, 0x61, 0x00, 0x00)
	a.pendingRefs = append(a.pendingRefs, pendingRef{pos: len(a.code) - 2, label: label})
	return a
}

func (a *asm) label(name string) *asm {
	a.labelPos[name] = len(a.code)
	a.code = append(a.code, 0x5b) // JUMPDEST
	return a
}

// returnWords writes each word to sequential memory slots and returns them.
func (a *asm) returnWords(words [][32]byte) *asm {
	for i, w := range words {
		a.push32(w)
		a.push1(byte(i * 32))
		a.op(0x52) // MSTORE
	}
	size := byte(len(words) * 32)
	a.push1(size)
	a.push1(0)
	a.op(0xf3) // RETURN
	return a
}

func (a *asm) finish() []byte {
	for _, ref := range a.pendingRefs {
		pos, ok := a.labelPos[ref.label]
		if !ok {
			panic("asm: undefined label " + ref.label)
		}
		a.code[ref.pos] = byte(pos >> 8)
		a.code[ref.pos+1] = byte(pos)
	}
	return a.code
}

func word(v uint64) [32]byte {
	var w [32]byte
	b := new(big.Int).SetUint64(v).Bytes()
	copy(w[32-len(b):], b)
	return w
}

func selectorOf(t *testing.T, method string) [4]byte {
	t.Helper()
	m, ok := adapter.ParsedABI.Methods[method]
	if !ok {
		t.Fatalf("no such adapter method %q", method)
	}
	var s [4]byte
	copy(s[:], m.ID)
	return s
}

// buildTestAdapter builds a synthetic adapter contract that dispatches on
// the standard 4-byte selector and returns fixed, canned replies for each
// of the four adapter methods, ignoring every argument. It exercises real
// EVM selector dispatch and ABI-shaped returns without depending on any
// real protocol's compiled bytecode.
func buildTestAdapter(t *testing.T) []byte {
	t.Helper()
	a := newAsm()

	// selector = (calldataload(0) >> 224)
	a.push1(0).op(0x35).push1(224).op(0x1c)

	for _, c := range []struct {
		method string
		label  string
	}{
		{"getCapabilities", "getCaps"},
		{"getLimits", "getLimits"},
		{"price", "price"},
		{"swap", "swap"},
	} {
		a.op(0x80).push4(selectorOf(t, c.method)).op(0x14).pushLabel(c.label).op(0x57)
	}
	// unknown selector: revert with no data
	a.push1(0).push1(0).op(0xfd)

	a.label("getCaps")
	a.returnWords([][32]byte{
		word(0x20), word(4),
		word(uint64(capability.SellSide)), word(uint64(capability.BuySide)),
		word(uint64(capability.PriceFunction)), word(uint64(capability.HardLimits)),
	})

	a.label("getLimits")
	a.returnWords([][32]byte{word(0x20), word(2), word(1000), word(7000)})

	a.label("price")
	a.returnWords([][32]byte{word(0x20), word(1), word(3), word(2)})

	a.label("swap")
	a.returnWords([][32]byte{word(1500), word(21000), word(3), word(2)})

	return a.finish()
}

func newTestShared(t *testing.T) *statedb.CachedStateDB {
	t.Helper()
	shared := statedb.New()
	if err := shared.UpdateState(statedb.BlockUpdate{
		Block: protocol.BlockHeader{Number: 20463609, Hash: common.HexToHash("0xaa"), Timestamp: 1_700_000_000},
	}); err != nil {
		t.Fatalf("installing initial block: %v", err)
	}
	return shared
}

func newTestPool(t *testing.T) (*VMPoolState, *statedb.CachedStateDB) {
	t.Helper()
	shared := newTestShared(t)
	cfg := &engine.Config{}

	tokenA := common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F") // DAI-shaped, arbitrary
	tokenB := common.HexToAddress("0xba100000625a3754423978a60c9317c58a424e3") // BAL-shaped, arbitrary

	params := InitParams{
		Component: protocol.PoolComponent{
			ID:             "0x5c6ee304399dbdb9c8ef030ab642b10820db8f56",
			ProtocolSystem: "test-vm-pool",
			Tokens: []protocol.TokenRef{
				{Address: tokenA, Decimals: 18, Symbol: "DAI"},
				{Address: tokenB, Decimals: 18, Symbol: "BAL"},
			},
		},
		Balances: map[common.Address]*uint256.Int{
			tokenA: uint256.NewInt(1_000_000),
			tokenB: uint256.NewInt(2_000_000),
		},
		AdapterCode: buildTestAdapter(t),
		Block:       protocol.BlockHeader{Number: 20463609},
	}

	p, err := New(context.Background(), shared, cfg, params)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, shared
}

func TestNewComputesCapabilityIntersection(t *testing.T) {
	p, _ := newTestPool(t)
	want := capability.NewSet(capability.SellSide, capability.BuySide, capability.PriceFunction, capability.HardLimits)
	got := p.Capabilities()
	if len(got) != len(want) {
		t.Fatalf("capability set size: got %d, want %d", len(got), len(want))
	}
	for c := range want {
		if !got.Has(c) {
			t.Fatalf("missing capability %s", c)
		}
	}
}

func TestEnsureCapabilitySignalsRecoverableInput(t *testing.T) {
	p, _ := newTestPool(t)
	err := p.EnsureCapability(capability.MarginalPrice)
	if err == nil {
		t.Fatal("expected error for unsupported capability")
	}
	if _, ok := err.(*protocol.RecoverableInput); !ok {
		t.Fatalf("expected RecoverableInput, got %T", err)
	}
}

func TestNewComputesInitialSpotPrices(t *testing.T) {
	p, _ := newTestPool(t)
	price, err := p.SpotPrice(p.tokens[0], p.tokens[1])
	if err != nil {
		t.Fatalf("SpotPrice: %v", err)
	}
	if price != 1.5 {
		t.Fatalf("expected spot price 1.5, got %v", price)
	}
}

func TestGetAmountOutClampsToHardLimit(t *testing.T) {
	p, _ := newTestPool(t)
	sell, buy := p.tokens[0], p.tokens[1]

	result, err := p.GetAmountOut(context.Background(), sell, uint256.NewInt(2000), buy)
	if err == nil {
		t.Fatal("expected SellAmountTooHigh for an amount above the adapter's sell limit")
	}
	tooHigh, ok := err.(*protocol.SellAmountTooHigh)
	if !ok {
		t.Fatalf("expected *protocol.SellAmountTooHigh, got %T", err)
	}
	if tooHigh.Limit.Uint64() != 1000 {
		t.Fatalf("expected limit 1000, got %s", tooHigh.Limit)
	}
	if result.Amount.Uint64() != 1500 || result.Gas != 21000 {
		t.Fatalf("expected partial result amount=1500 gas=21000, got amount=%s gas=%d", result.Amount, result.Gas)
	}
	if result.NewState == p {
		t.Fatal("GetAmountOut must return a distinct pool state (copy-on-write)")
	}
}

func TestGetAmountOutWithinLimitSucceeds(t *testing.T) {
	p, _ := newTestPool(t)
	sell, buy := p.tokens[0], p.tokens[1]

	result, err := p.GetAmountOut(context.Background(), sell, uint256.NewInt(500), buy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Amount.Uint64() != 1500 || result.Gas != 21000 {
		t.Fatalf("unexpected result: amount=%s gas=%d", result.Amount, result.Gas)
	}
	newState := result.NewState.(*VMPoolState)
	gotPrice, err := newState.SpotPrice(sell, buy)
	if err != nil {
		t.Fatalf("SpotPrice on new state: %v", err)
	}
	inverse, err := newState.SpotPrice(buy, sell)
	if err != nil {
		t.Fatalf("SpotPrice (inverse) on new state: %v", err)
	}
	if product := gotPrice * inverse; product < 0.999999999 || product > 1.000000001 {
		t.Fatalf("forward * inverse price should be ~1, got %v", product)
	}
}

func TestDeltaTransitionUpdatesBalanceAndClearsOverwrites(t *testing.T) {
	p, _ := newTestPool(t)
	tokenA := p.tokens[0]
	p.blockLastingOverwrites[tokenA] = map[common.Hash]common.Hash{common.Hash{}: common.HexToHash("0x01")}

	newBalance := new(uint256.Int).SetUint64(42)
	delta := protocol.ProtocolStateDelta{
		ComponentID: p.id,
		Attributes: map[string][]byte{
			balanceAttributeKey(tokenA): newBalance.Bytes(),
		},
	}

	if err := p.DeltaTransition(context.Background(), protocol.BlockHeader{Number: 20463610}, delta, nil); err != nil {
		t.Fatalf("DeltaTransition: %v", err)
	}
	if p.balances[tokenA].Cmp(newBalance) != 0 {
		t.Fatalf("expected balance %s, got %s", newBalance, p.balances[tokenA])
	}
	if len(p.blockLastingOverwrites) != 0 {
		t.Fatal("expected block_lasting_overwrites to be cleared on block transition")
	}
	if p.block.Number != 20463610 {
		t.Fatalf("expected block 20463610, got %d", p.block.Number)
	}
}

func TestDeltaTransitionSkipsSpotPriceRecomputeWhenManual(t *testing.T) {
	p, _ := newTestPool(t)
	p.manualUpdates = true
	before := p.spotPrices[TokenPair{Sell: p.tokens[0], Buy: p.tokens[1]}]

	if err := p.DeltaTransition(context.Background(), protocol.BlockHeader{Number: 20463610}, protocol.ProtocolStateDelta{}, nil); err != nil {
		t.Fatalf("DeltaTransition: %v", err)
	}
	after := p.spotPrices[TokenPair{Sell: p.tokens[0], Buy: p.tokens[1]}]
	if before != after {
		t.Fatalf("manual_updates pool should not recompute spot prices on delta transition")
	}
}

func TestMergeOverwritesOverlayWins(t *testing.T) {
	addr := common.HexToAddress("0x01")
	slotA := common.HexToHash("0x01")
	slotB := common.HexToHash("0x02")

	base := map[common.Address]map[common.Hash]common.Hash{
		addr: {slotA: common.HexToHash("0xaa"), slotB: common.HexToHash("0xbb")},
	}
	overlay := map[common.Address]map[common.Hash]common.Hash{
		addr: {slotA: common.HexToHash("0xcc")},
	}

	merged := mergeOverwrites(base, overlay)
	if merged[addr][slotA] != common.HexToHash("0xcc") {
		t.Fatal("expected overlay to win on conflicting slot")
	}
	if merged[addr][slotB] != common.HexToHash("0xbb") {
		t.Fatal("expected non-conflicting base slot to survive")
	}
	// inputs must not be mutated
	if base[addr][slotA] != common.HexToHash("0xaa") {
		t.Fatal("mergeOverwrites must not mutate its base argument")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	p, _ := newTestPool(t)
	cloned := p.Clone().(*VMPoolState)
	cloned.balances[p.tokens[0]].Add(cloned.balances[p.tokens[0]], uint256.NewInt(1))

	if p.balances[p.tokens[0]].Cmp(cloned.balances[p.tokens[0]]) == 0 {
		t.Fatal("mutating the clone's balance leaked into the original")
	}
	if !p.Equals(p.Clone()) {
		t.Fatal("a fresh clone must Equal its source")
	}
	if p.Equals(cloned) {
		t.Fatal("a divergent clone must not Equal its source")
	}
}
