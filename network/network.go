package network

import (
	"context"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"

	"github.com/ssvlabs/dvnode/protocol/types"
)

// DefaultShareTTL is how long inbound shares of a signing root are buffered.
const DefaultShareTTL = 2 * time.Minute

// ConsensusRouter accepts inbound consensus messages and routes them to the running
// instance. RouteConsensus MUST NOT block.
type ConsensusRouter interface {
	RouteConsensus(ctx context.Context, msg *types.ConsensusMessage)
}

// ShareCollector gives access to buffered inbound signature shares.
type ShareCollector interface {
	// Collect returns the shares buffered for the root, one per signer. It never blocks.
	Collect(kind types.DutyKind, signingRoot phase0.Root) []*types.PartialSignature
	// Pending lists buffered roots of the kind, oldest first.
	Pending(kind types.DutyKind) []PendingRoot
	// Discard drops the buffer of the root.
	Discard(kind types.DutyKind, signingRoot phase0.Root)
}

// Transport is the peer-to-peer surface of a distributed validator. Broadcasts are best
// effort: there is no acknowledgement and the local node receives its own messages.
type Transport interface {
	ShareCollector
	Broadcast(ctx context.Context, share *types.PartialSignature) error
	BroadcastConsensus(ctx context.Context, msg *types.ConsensusMessage) error
	UseConsensusRouter(router ConsensusRouter)
}

// PendingRoot is a signing root with buffered shares that was not discarded yet.
type PendingRoot struct {
	Kind        types.DutyKind
	SigningRoot phase0.Root
	FirstSeen   time.Time
	Shares      int
}
