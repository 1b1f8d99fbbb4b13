// Package qbft agrees on one candidate value per duty among the co-validators of a
// distributed validator.
package qbft

import (
	"context"

	"github.com/attestantio/go-eth2-client/spec/phase0"

	"github.com/ssvlabs/dvnode/protocol/qbft/roundtimer"
	"github.com/ssvlabs/dvnode/protocol/types"
)

// Message is a consensus message exchanged between co-validators.
type Message = types.ConsensusMessage

// DefaultRoundBudget is the number of rounds an instance runs before giving up.
const DefaultRoundBudget = 6

// Consensus is a single agreement instance.
type Consensus interface {
	// Propose offers a value. It has an effect only while the local node leads the round.
	Propose(ctx context.Context, value []byte) error
	// OnMessage processes a message of the instance.
	OnMessage(ctx context.Context, msg *Message) error
	// Decided returns the decided value once there is one.
	Decided() ([]byte, bool)
}

// Engine decides duties.
type Engine interface {
	Decide(ctx context.Context, duty types.Duty, opts ...DecideOption) (*CandidateValue, error)
}

// Broadcaster sends consensus messages to every co-validator, the local node included.
type Broadcaster interface {
	BroadcastConsensus(ctx context.Context, msg *Message) error
}

// CandidateSource produces the candidates a leader proposes.
type CandidateSource interface {
	AttestationData(ctx context.Context, slot phase0.Slot, committeeIndex phase0.CommitteeIndex) (*phase0.AttestationData, error)
	BeaconBlock(ctx context.Context, slot phase0.Slot, randaoReveal phase0.BLSSignature, graffiti [32]byte) (*phase0.BeaconBlock, error)
}

type Config struct {
	RoundBudget  uint64
	RoundTimeout roundtimer.RoundTimeoutFunc
	Graffiti     [32]byte
}

type decideOptions struct {
	randaoReveal *phase0.BLSSignature
}

type DecideOption func(*decideOptions)

// WithRandaoReveal sets the combined randao reveal block candidates are requested with.
func WithRandaoReveal(reveal phase0.BLSSignature) DecideOption {
	return func(o *decideOptions) {
		o.randaoReveal = &reveal
	}
}

// RandaoRevealOf returns the randao reveal set by the options, if any.
func RandaoRevealOf(opts ...DecideOption) (phase0.BLSSignature, bool) {
	var o decideOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.randaoReveal == nil {
		return phase0.BLSSignature{}, false
	}
	return *o.randaoReveal, true
}
