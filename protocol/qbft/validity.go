package qbft

import (
	"context"
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"

	"github.com/ssvlabs/dvnode/protocol/types"
)

// SlashingChecker reports whether signing would be slashable, without recording anything.
type SlashingChecker interface {
	IsSlashableAttestation(pubKey phase0.BLSPubKey, data *phase0.AttestationData, signingRoot phase0.Root) error
	IsSlashableBlock(pubKey phase0.BLSPubKey, slot phase0.Slot, signingRoot phase0.Root) error
}

// SigningRoots computes the roots values are eventually signed over.
type SigningRoots interface {
	AttestationSigningRoot(ctx context.Context, data *phase0.AttestationData) (phase0.Root, error)
	BlockSigningRoot(ctx context.Context, block *phase0.BeaconBlock) (phase0.Root, error)
}

// ValueCheck decides whether a candidate may be agreed on for a duty.
type ValueCheck struct {
	store SlashingChecker
	roots SigningRoots
}

func NewValueCheck(store SlashingChecker, roots SigningRoots) *ValueCheck {
	return &ValueCheck{store: store, roots: roots}
}

// Validity returns nil when the candidate matches the duty and signing it is not
// slashable given everything recorded so far.
func (c *ValueCheck) Validity(ctx context.Context, candidate *CandidateValue, duty types.Duty) error {
	switch d := duty.(type) {
	case *types.AttestationDuty:
		data := candidate.Attestation
		if data == nil || data.Source == nil || data.Target == nil {
			return fmt.Errorf("incomplete attestation candidate")
		}
		if data.Slot != d.Slot {
			return fmt.Errorf("%w: %d != %d", ErrSlotMismatch, data.Slot, d.Slot)
		}
		if data.Index != d.CommitteeIndex {
			return fmt.Errorf("%w: %d != %d", ErrCommitteeMismatch, data.Index, d.CommitteeIndex)
		}
		root, err := c.roots.AttestationSigningRoot(ctx, data)
		if err != nil {
			return fmt.Errorf("could not compute signing root: %w", err)
		}
		return c.store.IsSlashableAttestation(d.PubKey, data, root)

	case *types.ProposerDuty:
		block := candidate.Block
		if block == nil || block.Body == nil {
			return fmt.Errorf("incomplete block candidate")
		}
		if block.Slot != d.Slot {
			return fmt.Errorf("%w: %d != %d", ErrSlotMismatch, block.Slot, d.Slot)
		}
		if block.ProposerIndex != d.ValidatorIndex {
			return fmt.Errorf("%w: %d != %d", ErrProposerMismatch, block.ProposerIndex, d.ValidatorIndex)
		}
		root, err := c.roots.BlockSigningRoot(ctx, block)
		if err != nil {
			return fmt.Errorf("could not compute signing root: %w", err)
		}
		return c.store.IsSlashableBlock(d.PubKey, block.Slot, root)

	default:
		return fmt.Errorf("unsupported duty %T", duty)
	}
}
