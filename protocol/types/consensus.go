package types

import (
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	specqbft "github.com/ssvlabs/ssv-spec/qbft"
)

// InstanceID identifies one consensus instance: a validator, a kind and a slot.
type InstanceID struct {
	ValidatorPubKey phase0.BLSPubKey
	Kind            DutyKind
	Height          specqbft.Height
}

func (id InstanceID) String() string {
	return fmt.Sprintf("%x/%s/%d", id.ValidatorPubKey[:4], id.Kind, id.Height)
}

// ConsensusMessage is a single QBFT message. Height is the duty slot and Root is the
// hash of the proposed value.
type ConsensusMessage struct {
	MsgType         specqbft.MessageType `json:"msg_type"`
	ValidatorPubKey phase0.BLSPubKey     `json:"validator_pubkey"`
	Kind            DutyKind             `json:"kind"`
	Height          specqbft.Height      `json:"height"`
	Round           specqbft.Round       `json:"round"`
	Signer          uint64               `json:"signer"`
	Root            [32]byte             `json:"root"`

	// Value is set on proposals and on round changes carrying a prepared value.
	Value         []byte         `json:"value,omitempty"`
	PreparedRound specqbft.Round `json:"prepared_round,omitempty"`

	RoundChangeJustification []*ConsensusMessage `json:"round_change_justification,omitempty"`
	PrepareJustification     []*ConsensusMessage `json:"prepare_justification,omitempty"`
}

func (m *ConsensusMessage) InstanceID() InstanceID {
	return InstanceID{ValidatorPubKey: m.ValidatorPubKey, Kind: m.Kind, Height: m.Height}
}

func (m *ConsensusMessage) Validate() error {
	switch m.MsgType {
	case specqbft.ProposalMsgType, specqbft.PrepareMsgType, specqbft.CommitMsgType, specqbft.RoundChangeMsgType:
	default:
		return fmt.Errorf("unknown message type %d", m.MsgType)
	}
	if m.Kind != KindAttestation && m.Kind != KindProposal {
		return fmt.Errorf("no consensus for kind %s", m.Kind)
	}
	if m.Signer == 0 {
		return fmt.Errorf("missing signer")
	}
	if m.Round == specqbft.NoRound {
		return fmt.Errorf("missing round")
	}
	if m.MsgType == specqbft.ProposalMsgType && len(m.Value) == 0 {
		return fmt.Errorf("proposal without value")
	}
	return nil
}
