// Package registry implements the Pool Registry / Stream Sink (C7): the
// PoolId -> ProtocolSim index that applies incoming block updates, routes
// new pairs to the decoder registered for their protocol_system, forwards
// raw account updates to the shared cached state backend, and broadcasts a
// snapshot event to downstream consumers through go-ethereum's event.Feed —
// the same pub-sub primitive its own TxPool uses to notify subscribers of
// new transactions.
package registry

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"

	"github.com/onchainquote/vmpool-sim/protocol"
	"github.com/onchainquote/vmpool-sim/statedb"
)

// PoolId is the external pool identifier, matching protocol.PoolComponent.ID.
type PoolId = string

// BlockUpdate is one upstream delivery. On Revert, every other field is
// ignored: the registry rewinds to its one remembered prior snapshot
// instead of applying anything.
type BlockUpdate struct {
	Block          protocol.BlockHeader
	NewPairs       map[PoolId]protocol.PoolComponent
	States         map[PoolId]protocol.ProtocolStateDelta
	AccountUpdates map[common.Address]protocol.AccountUpdate
	Deleted        []PoolId
	Revert         bool
}

// SnapshotEvent is broadcast after every successfully applied BlockUpdate,
// including a revert (which restores, rather than advances, the index).
type SnapshotEvent struct {
	Block          protocol.BlockHeader
	UpdatedPoolIDs []PoolId
}

// Decoder builds a protocol.ProtocolSim from a newly observed pool
// component. Exactly one Decoder is registered per protocol_system string.
type Decoder interface {
	Decode(ctx context.Context, component protocol.PoolComponent) (protocol.ProtocolSim, error)
}

type snapshot struct {
	block protocol.BlockHeader
	pools map[PoolId]protocol.ProtocolSim
}

// Registry owns the PoolId -> ProtocolSim mapping and the block-ordering
// discipline described in C7. The zero value is not usable; use New.
type Registry struct {
	shared   *statedb.CachedStateDB
	decoders map[string]Decoder
	pools    map[PoolId]protocol.ProtocolSim
	prev     *snapshot // at most one prior snapshot, per spec

	feed  event.Feed
	scope event.SubscriptionScope
}

// New returns an empty registry backed by shared. Decoders must be
// registered via RegisterDecoder before any BlockUpdate carrying new pairs
// for that protocol_system can be applied.
func New(shared *statedb.CachedStateDB) *Registry {
	return &Registry{
		shared:   shared,
		decoders: make(map[string]Decoder),
		pools:    make(map[PoolId]protocol.ProtocolSim),
	}
}

// RegisterDecoder binds protocolSystem to d, replacing any prior binding.
func (r *Registry) RegisterDecoder(protocolSystem string, d Decoder) {
	r.decoders[protocolSystem] = d
}

// SubscribeSnapshots registers ch to receive every SnapshotEvent this
// registry emits until the returned subscription is unsubscribed.
func (r *Registry) SubscribeSnapshots(ch chan<- SnapshotEvent) event.Subscription {
	return r.scope.Track(r.feed.Subscribe(ch))
}

// Close unsubscribes every live subscriber, for orderly shutdown.
func (r *Registry) Close() { r.scope.Close() }

// Pool returns the current state for id, or ok=false if unknown.
func (r *Registry) Pool(id PoolId) (protocol.ProtocolSim, bool) {
	p, ok := r.pools[id]
	return p, ok
}

// Run drains updates until ctx is canceled or the channel is closed,
// applying each one in turn. The first error aborts the loop.
func (r *Registry) Run(ctx context.Context, updates <-chan BlockUpdate) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if err := r.ApplyBlockUpdate(ctx, u); err != nil {
				return err
			}
		}
	}
}

// ApplyBlockUpdate runs the C7 per-block algorithm: forward account updates
// to the shared backend (so any decoder invoked below observes the new
// block's storage), insert new pools, run delta_transition on pools with a
// known id, apply deletions last so that a pool both created and deleted
// within the same update ends up deleted, then broadcast a snapshot event.
//
// Block numbers must be strictly increasing across non-revert calls; a
// non-monotone block is rejected without mutating anything.
func (r *Registry) ApplyBlockUpdate(ctx context.Context, u BlockUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.Revert {
		return r.applyRevert(u)
	}

	current, hasBlock := r.shared.CurrentBlock()
	if hasBlock && u.Block.Number <= current.Number {
		return &protocol.FatalConfiguration{Reason: fmt.Sprintf("non-monotone block update: have %d, got %d", current.Number, u.Block.Number)}
	}

	r.prev = &snapshot{block: current, pools: clonePools(r.pools)}

	if err := r.shared.UpdateState(statedb.BlockUpdate{Block: u.Block, AccountUpdates: u.AccountUpdates}); err != nil {
		return err
	}

	updated := make(map[PoolId]struct{}, len(u.NewPairs)+len(u.States)+len(u.Deleted))

	for id, component := range u.NewPairs {
		dec, ok := r.decoders[component.ProtocolSystem]
		if !ok {
			log.Warn("registry: no decoder registered for protocol_system", "protocolSystem", component.ProtocolSystem, "pool", id)
			continue
		}
		sim, err := dec.Decode(ctx, component)
		if err != nil {
			return fmt.Errorf("decoding pool %s: %w", id, err)
		}
		r.pools[id] = sim
		updated[id] = struct{}{}
	}

	for id, delta := range u.States {
		sim, ok := r.pools[id]
		if !ok {
			continue // delta_transition only applies to pools with a known id
		}
		if err := sim.DeltaTransition(ctx, u.Block, delta, u.AccountUpdates); err != nil {
			return fmt.Errorf("delta transition on pool %s: %w", id, err)
		}
		updated[id] = struct{}{}
	}

	for _, id := range u.Deleted {
		if _, ok := r.pools[id]; ok {
			delete(r.pools, id)
			updated[id] = struct{}{}
		}
	}

	ids := make([]PoolId, 0, len(updated))
	for id := range updated {
		ids = append(ids, id)
	}
	r.feed.Send(SnapshotEvent{Block: u.Block, UpdatedPoolIDs: ids})
	return nil
}

// applyRevert rewinds to the one remembered prior snapshot. The shared
// backend's current block label is reset to match, but C2 is pool-agnostic
// and keeps no per-block undo log of its own: storage slots the reverted
// block wrote are not themselves rolled back, only the pool index and the
// block header are. Upstream is expected to replay forward with the real
// post-reorg deltas immediately after a revert.
func (r *Registry) applyRevert(u BlockUpdate) error {
	if r.prev == nil {
		return &protocol.FatalConfiguration{Reason: "revert requested with no prior snapshot to restore"}
	}
	restored := r.prev
	r.prev = nil

	if err := r.shared.UpdateState(statedb.BlockUpdate{Block: restored.block}); err != nil {
		return err
	}

	ids := make([]PoolId, 0, len(r.pools)+len(restored.pools))
	seen := make(map[PoolId]struct{}, len(r.pools)+len(restored.pools))
	for id := range r.pools {
		seen[id] = struct{}{}
	}
	for id := range restored.pools {
		seen[id] = struct{}{}
	}
	for id := range seen {
		ids = append(ids, id)
	}

	r.pools = restored.pools
	r.feed.Send(SnapshotEvent{Block: restored.block, UpdatedPoolIDs: ids})
	return nil
}

func clonePools(in map[PoolId]protocol.ProtocolSim) map[PoolId]protocol.ProtocolSim {
	out := make(map[PoolId]protocol.ProtocolSim, len(in))
	for id, sim := range in {
		out[id] = sim.Clone()
	}
	return out
}
