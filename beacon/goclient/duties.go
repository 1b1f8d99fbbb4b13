package goclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/attestantio/go-eth2-client/api"
	"github.com/attestantio/go-eth2-client/spec/phase0"

	"github.com/ssvlabs/dvnode/protocol/types"
)

// AttesterDuties returns attester duties for the given epoch.
func (gc *GoClient) AttesterDuties(ctx context.Context, epoch phase0.Epoch, indices []phase0.ValidatorIndex) ([]*types.AttestationDuty, error) {
	ctx, cancel := context.WithTimeout(ctx, gc.longTimeout)
	defer cancel()

	start := time.Now()
	resp, err := gc.client.AttesterDuties(ctx, &api.AttesterDutiesOpts{
		Epoch:   epoch,
		Indices: indices,
	})
	recordRequest(ctx, gc.log, "AttesterDuties", gc.client.Address(), http.MethodPost, time.Since(start), err)
	if err != nil {
		return nil, errClient(fmt.Errorf("fetch attester duties: %w", err), gc.client.Address(), "AttesterDuties")
	}
	if resp == nil || resp.Data == nil {
		return nil, errClient(errNilResponse, gc.client.Address(), "AttesterDuties")
	}

	duties := make([]*types.AttestationDuty, 0, len(resp.Data))
	for _, d := range resp.Data {
		duties = append(duties, &types.AttestationDuty{
			PubKey:                  d.PubKey,
			ValidatorIndex:          d.ValidatorIndex,
			CommitteeIndex:          d.CommitteeIndex,
			CommitteeLength:         d.CommitteeLength,
			CommitteesAtSlot:        d.CommitteesAtSlot,
			ValidatorCommitteeIndex: d.ValidatorCommitteeIndex,
			Slot:                    d.Slot,
		})
	}
	return duties, nil
}

// ProposerDuties returns proposer duties for the given epoch, filtered to the given indices.
func (gc *GoClient) ProposerDuties(ctx context.Context, epoch phase0.Epoch, indices []phase0.ValidatorIndex) ([]*types.ProposerDuty, error) {
	ctx, cancel := context.WithTimeout(ctx, gc.longTimeout)
	defer cancel()

	start := time.Now()
	resp, err := gc.client.ProposerDuties(ctx, &api.ProposerDutiesOpts{
		Epoch:   epoch,
		Indices: indices,
	})
	recordRequest(ctx, gc.log, "ProposerDuties", gc.client.Address(), http.MethodGet, time.Since(start), err)
	if err != nil {
		return nil, errClient(fmt.Errorf("fetch proposer duties: %w", err), gc.client.Address(), "ProposerDuties")
	}
	if resp == nil || resp.Data == nil {
		return nil, errClient(errNilResponse, gc.client.Address(), "ProposerDuties")
	}

	wanted := make(map[phase0.ValidatorIndex]struct{}, len(indices))
	for _, index := range indices {
		wanted[index] = struct{}{}
	}
	duties := make([]*types.ProposerDuty, 0, len(resp.Data))
	for _, d := range resp.Data {
		// Some clients ignore the indices filter and return the whole epoch.
		if _, ok := wanted[d.ValidatorIndex]; !ok {
			continue
		}
		duties = append(duties, &types.ProposerDuty{
			PubKey:         d.PubKey,
			ValidatorIndex: d.ValidatorIndex,
			Slot:           d.Slot,
		})
	}
	return duties, nil
}
