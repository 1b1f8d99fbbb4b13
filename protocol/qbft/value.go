package qbft

import (
	"crypto/sha256"
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"

	"github.com/ssvlabs/dvnode/protocol/types"
)

// CandidateValue is what co-validators agree on for a duty. Exactly one field is set.
type CandidateValue struct {
	Attestation *phase0.AttestationData
	Block       *phase0.BeaconBlock
}

func (v *CandidateValue) Kind() types.DutyKind {
	if v.Block != nil {
		return types.KindProposal
	}
	return types.KindAttestation
}

// Encode returns the SSZ encoding of the value.
func (v *CandidateValue) Encode() ([]byte, error) {
	switch {
	case v.Attestation != nil:
		return v.Attestation.MarshalSSZ()
	case v.Block != nil:
		return v.Block.MarshalSSZ()
	default:
		return nil, fmt.Errorf("empty candidate value")
	}
}

// DecodeValue decodes the SSZ encoding of a value of the kind.
func DecodeValue(kind types.DutyKind, data []byte) (*CandidateValue, error) {
	switch kind {
	case types.KindAttestation:
		att := &phase0.AttestationData{}
		if err := att.UnmarshalSSZ(data); err != nil {
			return nil, fmt.Errorf("could not decode attestation data: %w", err)
		}
		return &CandidateValue{Attestation: att}, nil
	case types.KindProposal:
		block := &phase0.BeaconBlock{}
		if err := block.UnmarshalSSZ(data); err != nil {
			return nil, fmt.Errorf("could not decode block: %w", err)
		}
		return &CandidateValue{Block: block}, nil
	default:
		return nil, fmt.Errorf("no consensus value for kind %s", kind)
	}
}

// ValueRoot is the hash consensus messages refer to a value by.
func ValueRoot(value []byte) [32]byte {
	return sha256.Sum256(value)
}
