package network

import (
	"encoding/json"
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"

	"github.com/ssvlabs/dvnode/protocol/types"
)

type MessageType uint8

const (
	MsgPartialSignature MessageType = iota + 1
	MsgConsensus
)

func (t MessageType) String() string {
	switch t {
	case MsgPartialSignature:
		return "partial_signature"
	case MsgConsensus:
		return "consensus"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Message is the envelope of everything exchanged between co-validators.
type Message struct {
	Type             MessageType             `json:"type"`
	PartialSignature *types.PartialSignature `json:"partial_signature,omitempty"`
	Consensus        *types.ConsensusMessage `json:"consensus,omitempty"`
}

func (m *Message) ValidatorPubKey() phase0.BLSPubKey {
	switch m.Type {
	case MsgPartialSignature:
		return m.PartialSignature.ValidatorPubKey
	case MsgConsensus:
		return m.Consensus.ValidatorPubKey
	default:
		return phase0.BLSPubKey{}
	}
}

// Signer is the co-validator index the message claims to come from.
func (m *Message) Signer() uint64 {
	switch m.Type {
	case MsgPartialSignature:
		return m.PartialSignature.Signer
	case MsgConsensus:
		return m.Consensus.Signer
	default:
		return 0
	}
}

func (m *Message) Validate() error {
	switch m.Type {
	case MsgPartialSignature:
		if m.PartialSignature == nil {
			return fmt.Errorf("missing partial signature")
		}
		return m.PartialSignature.Validate()
	case MsgConsensus:
		if m.Consensus == nil {
			return fmt.Errorf("missing consensus message")
		}
		return m.Consensus.Validate()
	default:
		return fmt.Errorf("unknown message type %d", m.Type)
	}
}

func EncodeMessage(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage decodes and validates a message.
func DecodeMessage(data []byte) (*Message, error) {
	msg := &Message{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("could not decode message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s message: %w", msg.Type, err)
	}
	return msg, nil
}
