package types

import (
	"fmt"
	"strings"

	"github.com/attestantio/go-eth2-client/spec/phase0"
)

// DutyKind identifies the kind of object a duty or a signature share is about.
type DutyKind uint8

const (
	KindAttestation DutyKind = iota + 1
	KindProposal
	// KindRandao is a signature kind only; randao reveals are produced as part of a proposal duty.
	KindRandao
)

var dutyKindNames = map[DutyKind]string{
	KindAttestation: "attestation",
	KindProposal:    "proposal",
	KindRandao:      "randao",
}

func (k DutyKind) String() string {
	if name, ok := dutyKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", k)
}

func (k DutyKind) Valid() bool {
	_, ok := dutyKindNames[k]
	return ok
}

func (k DutyKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid duty kind %d", k)
	}
	return []byte(k.String()), nil
}

func (k *DutyKind) UnmarshalText(text []byte) error {
	for kind, name := range dutyKindNames {
		if strings.EqualFold(name, string(text)) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown duty kind %q", text)
}

// DutyKey identifies a single-flight slot: at most one decision per kind and slot.
type DutyKey struct {
	Kind DutyKind
	Slot phase0.Slot
}

func (k DutyKey) String() string {
	return fmt.Sprintf("%s/%d", k.Kind, k.Slot)
}

// Duty is an obligation to produce a signed object at a slot.
type Duty interface {
	Kind() DutyKind
	DutySlot() phase0.Slot
	ValidatorPubKey() phase0.BLSPubKey
}

// DutyKeyOf returns the single-flight key of a duty.
func DutyKeyOf(d Duty) DutyKey {
	return DutyKey{Kind: d.Kind(), Slot: d.DutySlot()}
}

// AttestationDuty carries everything needed to build the final attestation, including the
// aggregation bit position within the committee.
type AttestationDuty struct {
	PubKey                  phase0.BLSPubKey
	ValidatorIndex          phase0.ValidatorIndex
	CommitteeIndex          phase0.CommitteeIndex
	CommitteeLength         uint64
	CommitteesAtSlot        uint64
	ValidatorCommitteeIndex uint64
	Slot                    phase0.Slot
}

func (d *AttestationDuty) Kind() DutyKind                    { return KindAttestation }
func (d *AttestationDuty) DutySlot() phase0.Slot             { return d.Slot }
func (d *AttestationDuty) ValidatorPubKey() phase0.BLSPubKey { return d.PubKey }

func (d *AttestationDuty) String() string {
	return fmt.Sprintf("attestation(slot=%d, committee=%d, position=%d/%d)",
		d.Slot, d.CommitteeIndex, d.ValidatorCommitteeIndex, d.CommitteeLength)
}

type ProposerDuty struct {
	PubKey         phase0.BLSPubKey
	ValidatorIndex phase0.ValidatorIndex
	Slot           phase0.Slot
}

func (d *ProposerDuty) Kind() DutyKind                    { return KindProposal }
func (d *ProposerDuty) DutySlot() phase0.Slot             { return d.Slot }
func (d *ProposerDuty) ValidatorPubKey() phase0.BLSPubKey { return d.PubKey }

func (d *ProposerDuty) String() string {
	return fmt.Sprintf("proposal(slot=%d, validator=%d)", d.Slot, d.ValidatorIndex)
}
