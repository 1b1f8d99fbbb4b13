package goclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/attestantio/go-eth2-client/api"
	"github.com/attestantio/go-eth2-client/spec"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/beacon"
	"github.com/ssvlabs/dvnode/logging/fields"
)

// BeaconBlock returns an unsigned block for the slot. Only phase0 blocks are supported.
func (gc *GoClient) BeaconBlock(ctx context.Context, slot phase0.Slot, randaoReveal phase0.BLSSignature, graffiti [32]byte) (*phase0.BeaconBlock, error) {
	ctx, cancel := context.WithTimeout(ctx, gc.longTimeout)
	defer cancel()

	start := time.Now()
	resp, err := gc.client.Proposal(ctx, &api.ProposalOpts{
		Slot:         slot,
		RandaoReveal: randaoReveal,
		Graffiti:     graffiti,
	})
	recordRequest(ctx, gc.log, "Proposal", gc.client.Address(), http.MethodGet, time.Since(start), err)
	if err != nil {
		return nil, errClient(fmt.Errorf("fetch proposal: %w", err), gc.client.Address(), "Proposal")
	}
	if resp == nil || resp.Data == nil {
		return nil, errClient(errNilResponse, gc.client.Address(), "Proposal")
	}

	proposal := resp.Data
	if proposal.Version != spec.DataVersionPhase0 || proposal.Blinded {
		gc.log.Warn("beacon node produced a block the node cannot sign",
			fields.Slot(slot),
			zap.String("version", proposal.Version.String()),
			zap.Bool("blinded", proposal.Blinded))
		return nil, fmt.Errorf("%w: %s", beacon.ErrUnsupportedBlockVersion, proposal.Version)
	}
	if proposal.Phase0 == nil {
		return nil, fmt.Errorf("%s block is nil", proposal.Version)
	}
	return proposal.Phase0, nil
}

// SubmitBlock submits a signed phase0 block.
func (gc *GoClient) SubmitBlock(ctx context.Context, block *phase0.SignedBeaconBlock) error {
	if block == nil || block.Message == nil {
		return fmt.Errorf("block is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, gc.commonTimeout)
	defer cancel()

	start := time.Now()
	err := gc.client.SubmitProposal(ctx, &api.SubmitProposalOpts{
		Proposal: &api.VersionedSignedProposal{
			Version: spec.DataVersionPhase0,
			Phase0:  block,
		},
	})
	recordRequest(ctx, gc.log, "SubmitProposal", gc.client.Address(), http.MethodPost, time.Since(start), err)
	if err != nil {
		return errClient(fmt.Errorf("submit block: %w", err), gc.client.Address(), "SubmitProposal")
	}

	gc.log.Info("submitted block", fields.Slot(block.Message.Slot), fields.ValidatorIndex(block.Message.ProposerIndex))
	return nil
}
