package slashingprotection

import (
	"github.com/attestantio/go-eth2-client/spec/phase0"
)

// SignedAttestation is an attestation recorded as signed. SigningRoot may be nil for
// entries imported without one.
type SignedAttestation struct {
	SourceEpoch phase0.Epoch
	TargetEpoch phase0.Epoch
	SigningRoot *phase0.Root
}

// SignedBlock is a block recorded as signed. SigningRoot may be nil for entries imported without one.
type SignedBlock struct {
	Slot        phase0.Slot
	SigningRoot *phase0.Root
}

// Record is the signing history of a single validator. Entries are append-only and kept
// in insertion order.
type Record struct {
	PubKey             phase0.BLSPubKey
	SignedBlocks       []SignedBlock
	SignedAttestations []SignedAttestation
}

func newRecord(pubKey phase0.BLSPubKey) *Record {
	return &Record{PubKey: pubKey}
}

// Copy returns a deep copy of the record.
func (r *Record) Copy() *Record {
	cp := &Record{
		PubKey:             r.PubKey,
		SignedBlocks:       make([]SignedBlock, len(r.SignedBlocks)),
		SignedAttestations: make([]SignedAttestation, len(r.SignedAttestations)),
	}
	for i, b := range r.SignedBlocks {
		cp.SignedBlocks[i] = SignedBlock{Slot: b.Slot, SigningRoot: copyRoot(b.SigningRoot)}
	}
	for i, a := range r.SignedAttestations {
		cp.SignedAttestations[i] = SignedAttestation{
			SourceEpoch: a.SourceEpoch,
			TargetEpoch: a.TargetEpoch,
			SigningRoot: copyRoot(a.SigningRoot),
		}
	}
	return cp
}

// Empty reports whether nothing was ever signed.
func (r *Record) Empty() bool {
	return len(r.SignedBlocks) == 0 && len(r.SignedAttestations) == 0
}

// CheckAttestation evaluates the attestation against the whole history. It returns
// duplicate=true when an identical attestation is already recorded, in which case signing
// it again is safe and recording it is a no-op.
func (r *Record) CheckAttestation(source, target phase0.Epoch, signingRoot *phase0.Root) (duplicate bool, err error) {
	if source > target {
		return false, &SlashableAttestationError{Status: SourceAfterTarget}
	}
	if len(r.SignedAttestations) == 0 {
		return false, nil
	}

	for _, prior := range r.SignedAttestations {
		if prior.TargetEpoch == target {
			if prior.SourceEpoch == source && rootsEqual(prior.SigningRoot, signingRoot) {
				return true, nil
			}
			return false, &SlashableAttestationError{Status: DoubleVote}
		}
		if source < prior.SourceEpoch && prior.TargetEpoch < target {
			return false, &SlashableAttestationError{Status: SurroundingVote}
		}
		if prior.SourceEpoch < source && target < prior.TargetEpoch {
			return false, &SlashableAttestationError{Status: SurroundedVote}
		}
	}

	minSource, minTarget := r.minAttestationEpochs()
	if target <= minTarget {
		return false, &SlashableAttestationError{Status: TargetNotAboveMinimum}
	}
	if source < minSource {
		return false, &SlashableAttestationError{Status: SourceBelowMinimum}
	}
	return false, nil
}

// CheckBlock evaluates the block against the whole history, see CheckAttestation.
func (r *Record) CheckBlock(slot phase0.Slot, signingRoot *phase0.Root) (duplicate bool, err error) {
	if len(r.SignedBlocks) == 0 {
		return false, nil
	}

	for _, prior := range r.SignedBlocks {
		if prior.Slot == slot {
			if rootsEqual(prior.SigningRoot, signingRoot) {
				return true, nil
			}
			return false, &SlashableProposalError{Status: DoubleProposal}
		}
	}

	if slot < r.minBlockSlot() {
		return false, &SlashableProposalError{Status: SlotBelowMinimum}
	}
	return false, nil
}

func (r *Record) minAttestationEpochs() (minSource, minTarget phase0.Epoch) {
	minSource, minTarget = r.SignedAttestations[0].SourceEpoch, r.SignedAttestations[0].TargetEpoch
	for _, a := range r.SignedAttestations[1:] {
		minSource = min(minSource, a.SourceEpoch)
		minTarget = min(minTarget, a.TargetEpoch)
	}
	return minSource, minTarget
}

func (r *Record) minBlockSlot() phase0.Slot {
	minSlot := r.SignedBlocks[0].Slot
	for _, b := range r.SignedBlocks[1:] {
		minSlot = min(minSlot, b.Slot)
	}
	return minSlot
}

// importDuplicateBlock reports whether a block at slot without a root is already recorded
// without a root. Such an entry carries no new information, so re-importing it is a no-op.
func (r *Record) importDuplicateBlock(slot phase0.Slot, signingRoot *phase0.Root) bool {
	if signingRoot != nil {
		return false
	}
	for _, prior := range r.SignedBlocks {
		if prior.Slot == slot && prior.SigningRoot == nil {
			return true
		}
	}
	return false
}

// importDuplicateAttestation is importDuplicateBlock for attestations.
func (r *Record) importDuplicateAttestation(source, target phase0.Epoch, signingRoot *phase0.Root) bool {
	if signingRoot != nil {
		return false
	}
	for _, prior := range r.SignedAttestations {
		if prior.SourceEpoch == source && prior.TargetEpoch == target && prior.SigningRoot == nil {
			return true
		}
	}
	return false
}

// rootsEqual treats a missing root as unequal to everything, so a missing root
// never makes a conflicting entry look like a harmless duplicate.
func rootsEqual(a, b *phase0.Root) bool {
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func copyRoot(r *phase0.Root) *phase0.Root {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}
