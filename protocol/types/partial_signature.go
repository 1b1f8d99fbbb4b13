package types

import (
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"
)

// PartialSignature is a co-validator's threshold signature share over a signing root.
// Object carries the SSZ encoding of the signed object so any co-validator can assemble
// the final signed object once enough shares arrived.
type PartialSignature struct {
	Kind            DutyKind            `json:"kind"`
	ValidatorPubKey phase0.BLSPubKey    `json:"validator_pubkey"`
	Slot            phase0.Slot         `json:"slot"`
	SigningRoot     phase0.Root         `json:"signing_root"`
	Signer          uint64              `json:"signer"`
	Signature       phase0.BLSSignature `json:"signature"`
	Object          []byte              `json:"object"`

	// Attestation only: position of the validator within its committee.
	CommitteeLength         uint64 `json:"committee_length,omitempty"`
	ValidatorCommitteeIndex uint64 `json:"validator_committee_index,omitempty"`
}

func (p *PartialSignature) Validate() error {
	if !p.Kind.Valid() {
		return fmt.Errorf("invalid kind %d", p.Kind)
	}
	if p.Signer == 0 {
		return fmt.Errorf("missing signer")
	}
	if p.SigningRoot == (phase0.Root{}) {
		return fmt.Errorf("missing signing root")
	}
	if len(p.Object) == 0 {
		return fmt.Errorf("missing signed object")
	}
	if p.Kind == KindAttestation && p.ValidatorCommitteeIndex >= p.CommitteeLength {
		return fmt.Errorf("committee position %d out of range %d", p.ValidatorCommitteeIndex, p.CommitteeLength)
	}
	return nil
}

// CombinedSignature is a signature reconstructed from a threshold of distinct shares.
type CombinedSignature struct {
	Kind        DutyKind
	SigningRoot phase0.Root
	Signature   phase0.BLSSignature
	Signers     []uint64
}
