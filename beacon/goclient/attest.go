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
	"tailscale.com/util/singleflight"

	"github.com/ssvlabs/dvnode/logging/fields"
)

type attestationDataKey struct {
	slot           phase0.Slot
	committeeIndex phase0.CommitteeIndex
}

type attestationDataGroup = singleflight.Group[attestationDataKey, *phase0.AttestationData]

// AttestationData returns the attestation candidate for the slot and committee. Concurrent
// requests for the same slot and committee share one beacon node call.
func (gc *GoClient) AttestationData(ctx context.Context, slot phase0.Slot, committeeIndex phase0.CommitteeIndex) (*phase0.AttestationData, error) {
	key := attestationDataKey{slot: slot, committeeIndex: committeeIndex}
	data, err, _ := gc.attestationReqInflight.Do(key, func() (*phase0.AttestationData, error) {
		return gc.fetchAttestationData(ctx, slot, committeeIndex)
	})
	return data, err
}

func (gc *GoClient) fetchAttestationData(ctx context.Context, slot phase0.Slot, committeeIndex phase0.CommitteeIndex) (*phase0.AttestationData, error) {
	ctx, cancel := context.WithTimeout(ctx, gc.commonTimeout)
	defer cancel()

	start := time.Now()
	resp, err := gc.client.AttestationData(ctx, &api.AttestationDataOpts{
		Slot:           slot,
		CommitteeIndex: committeeIndex,
	})
	recordRequest(ctx, gc.log, "AttestationData", gc.client.Address(), http.MethodGet, time.Since(start), err)
	if err != nil {
		return nil, errClient(fmt.Errorf("fetch attestation data: %w", err), gc.client.Address(), "AttestationData")
	}
	if resp == nil || resp.Data == nil {
		return nil, errClient(errNilResponse, gc.client.Address(), "AttestationData")
	}
	if resp.Data.Slot != slot {
		return nil, fmt.Errorf("attestation data slot %d does not match requested slot %d", resp.Data.Slot, slot)
	}
	return resp.Data, nil
}

// SubmitAttestation submits a phase0 attestation.
func (gc *GoClient) SubmitAttestation(ctx context.Context, attestation *phase0.Attestation) error {
	ctx, cancel := context.WithTimeout(ctx, gc.commonTimeout)
	defer cancel()

	start := time.Now()
	err := gc.client.SubmitAttestations(ctx, &api.SubmitAttestationsOpts{
		Attestations: []*spec.VersionedAttestation{{
			Version: spec.DataVersionPhase0,
			Phase0:  attestation,
		}},
	})
	recordRequest(ctx, gc.log, "SubmitAttestations", gc.client.Address(), http.MethodPost, time.Since(start), err)
	if err != nil {
		return errClient(fmt.Errorf("submit attestation: %w", err), gc.client.Address(), "SubmitAttestations")
	}

	gc.log.Debug("submitted attestation",
		fields.Slot(attestation.Data.Slot),
		fields.CommitteeIndex(attestation.Data.Index),
		zap.Uint64("aggregation_bits", attestation.AggregationBits.Count()))
	return nil
}
