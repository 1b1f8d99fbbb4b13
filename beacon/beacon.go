package beacon

import (
	"context"
	"errors"

	"github.com/attestantio/go-eth2-client/spec/phase0"

	"github.com/ssvlabs/dvnode/protocol/types"
)

//go:generate go tool mockgen -package=mocks -destination=./mocks/beacon_node.go -source=./beacon.go

// ErrUnsupportedBlockVersion is returned when the beacon node produces a block of a fork
// the node cannot sign.
var ErrUnsupportedBlockVersion = errors.New("unsupported block version")

// BeaconNode is everything the node needs from the consensus layer.
type BeaconNode interface {
	AttesterDuties(ctx context.Context, epoch phase0.Epoch, indices []phase0.ValidatorIndex) ([]*types.AttestationDuty, error)
	ProposerDuties(ctx context.Context, epoch phase0.Epoch, indices []phase0.ValidatorIndex) ([]*types.ProposerDuty, error)

	// AttestationData returns the attestation candidate for the slot and committee.
	AttestationData(ctx context.Context, slot phase0.Slot, committeeIndex phase0.CommitteeIndex) (*phase0.AttestationData, error)
	// BeaconBlock returns an unsigned block candidate built with the given randao reveal.
	BeaconBlock(ctx context.Context, slot phase0.Slot, randaoReveal phase0.BLSSignature, graffiti [32]byte) (*phase0.BeaconBlock, error)

	SubmitAttestation(ctx context.Context, attestation *phase0.Attestation) error
	SubmitBlock(ctx context.Context, block *phase0.SignedBeaconBlock) error

	// ForkVersion returns the fork version active at the slot.
	ForkVersion(ctx context.Context, slot phase0.Slot) (phase0.Version, error)
	GenesisValidatorsRoot(ctx context.Context) (phase0.Root, error)
}
