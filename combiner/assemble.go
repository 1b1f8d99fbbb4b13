package combiner

import (
	"context"
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	ssz "github.com/ferranbt/fastssz"
	"github.com/prysmaticlabs/go-bitfield"

	"github.com/ssvlabs/dvnode/protocol/types"
)

// SigningRoots recomputes signing roots so the object carried by a share can be checked
// against the root the shares sign.
type SigningRoots interface {
	AttestationSigningRoot(ctx context.Context, data *phase0.AttestationData) (phase0.Root, error)
	BlockSigningRoot(ctx context.Context, block *phase0.BeaconBlock) (phase0.Root, error)
	RandaoSigningRoot(ctx context.Context, epoch phase0.Epoch) (phase0.Root, error)
}

// RandaoReveal is a combined randao reveal.
type RandaoReveal struct {
	Epoch     phase0.Epoch
	Signature phase0.BLSSignature
}

// Combined is a fully signed object ready for its sink. Exactly one of Attestation,
// Block and Randao is set, according to Signature.Kind.
type Combined struct {
	Signature   *types.CombinedSignature
	Slot        phase0.Slot
	Attestation *phase0.Attestation
	Block       *phase0.SignedBeaconBlock
	Randao      *RandaoReveal
}

// assemble attaches the combined signature to the object carried by the shares. The
// first share whose object hashes to the signing root is used.
func assemble(ctx context.Context, roots SigningRoots, combined *types.CombinedSignature, shares []*types.PartialSignature) (*Combined, error) {
	var lastErr error
	for _, share := range shares {
		if share.SigningRoot != combined.SigningRoot {
			continue
		}
		obj, err := assembleFrom(ctx, roots, combined, share)
		if err != nil {
			lastErr = err
			continue
		}
		return obj, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no share carries the object")
	}
	return nil, lastErr
}

func assembleFrom(ctx context.Context, roots SigningRoots, combined *types.CombinedSignature, share *types.PartialSignature) (*Combined, error) {
	out := &Combined{Signature: combined, Slot: share.Slot}
	var root phase0.Root
	var err error

	switch combined.Kind {
	case types.KindAttestation:
		data := &phase0.AttestationData{}
		if err := data.UnmarshalSSZ(share.Object); err != nil {
			return nil, fmt.Errorf("could not decode attestation data: %w", err)
		}
		if root, err = roots.AttestationSigningRoot(ctx, data); err != nil {
			return nil, err
		}
		if share.ValidatorCommitteeIndex >= share.CommitteeLength {
			return nil, fmt.Errorf("committee position %d out of range %d", share.ValidatorCommitteeIndex, share.CommitteeLength)
		}
		bits := bitfield.NewBitlist(share.CommitteeLength)
		bits.SetBitAt(share.ValidatorCommitteeIndex, true)
		out.Attestation = &phase0.Attestation{
			AggregationBits: bits,
			Data:            data,
			Signature:       combined.Signature,
		}

	case types.KindProposal:
		block := &phase0.BeaconBlock{}
		if err := block.UnmarshalSSZ(share.Object); err != nil {
			return nil, fmt.Errorf("could not decode block: %w", err)
		}
		if root, err = roots.BlockSigningRoot(ctx, block); err != nil {
			return nil, err
		}
		out.Block = &phase0.SignedBeaconBlock{Message: block, Signature: combined.Signature}

	case types.KindRandao:
		if len(share.Object) != 8 {
			return nil, fmt.Errorf("randao object has length %d", len(share.Object))
		}
		epoch := phase0.Epoch(ssz.UnmarshallUint64(share.Object))
		if root, err = roots.RandaoSigningRoot(ctx, epoch); err != nil {
			return nil, err
		}
		out.Randao = &RandaoReveal{Epoch: epoch, Signature: combined.Signature}

	default:
		return nil, fmt.Errorf("unknown kind %s", combined.Kind)
	}

	if root != combined.SigningRoot {
		return nil, fmt.Errorf("object of signer %d does not match the signing root", share.Signer)
	}
	return out, nil
}
