package slashingprotection

import (
	"fmt"

	"github.com/ssvlabs/dvnode/protocol/types"
)

// VoteDetectionType describes why an attestation was found slashable.
type VoteDetectionType string

const (
	DoubleVote            VoteDetectionType = "DoubleVote"
	SurroundingVote       VoteDetectionType = "SurroundingVote"
	SurroundedVote        VoteDetectionType = "SurroundedVote"
	TargetNotAboveMinimum VoteDetectionType = "TargetNotAboveMinimum"
	SourceBelowMinimum    VoteDetectionType = "SourceBelowMinimum"
	SourceAfterTarget     VoteDetectionType = "SourceAfterTarget"
)

// ProposalDetectionType describes why a block was found slashable.
type ProposalDetectionType string

const (
	DoubleProposal   ProposalDetectionType = "DoubleProposal"
	SlotBelowMinimum ProposalDetectionType = "SlotBelowMinimum"
)

type SlashableAttestationError struct {
	Status VoteDetectionType
}

func (se *SlashableAttestationError) Error() string {
	return fmt.Sprintf("slashable attestation (%s), not signing", se.Status)
}

func (se *SlashableAttestationError) Unwrap() error {
	return types.ErrSlashingViolation
}

// BelowWatermark reports whether the attestation is only rejected for being under the
// lowest recorded epochs, without conflicting with any specific recorded attestation.
func (se *SlashableAttestationError) BelowWatermark() bool {
	return se.Status == TargetNotAboveMinimum || se.Status == SourceBelowMinimum
}

type SlashableProposalError struct {
	Status ProposalDetectionType
}

func (se *SlashableProposalError) Error() string {
	return fmt.Sprintf("slashable proposal (%s), not signing", se.Status)
}

func (se *SlashableProposalError) Unwrap() error {
	return types.ErrSlashingViolation
}

func (se *SlashableProposalError) BelowWatermark() bool {
	return se.Status == SlotBelowMinimum
}
