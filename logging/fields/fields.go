package fields

import (
	"fmt"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/libp2p/go-libp2p/core/peer"
	specqbft "github.com/ssvlabs/ssv-spec/qbft"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ssvlabs/dvnode/logging/fields/stringer"
	"github.com/ssvlabs/dvnode/protocol/types"
)

const (
	FieldAddress           = "address"
	FieldCommitteeIndex    = "committee_index"
	FieldConfig            = "config"
	FieldCount             = "count"
	FieldCurrentSlot       = "current_slot"
	FieldDuration          = "duration"
	FieldDutyID            = "duty_id"
	FieldDutyKind          = "duty_kind"
	FieldEpoch             = "epoch"
	FieldHeight            = "height"
	FieldMessageType       = "msg_type"
	FieldName              = "name"
	FieldPeerID            = "peer_id"
	FieldPubKey            = "pubkey"
	FieldReason            = "reason"
	FieldRound             = "round"
	FieldRoot              = "root"
	FieldSigner            = "signer"
	FieldSigners           = "signers"
	FieldSlashingViolation = "slashing_violation"
	FieldSlot              = "slot"
	FieldState             = "state"
	FieldTook              = "took"
	FieldTopic             = "topic"
	FieldValidatorIndex    = "validator_index"
)

func PubKey(pubKey []byte) zapcore.Field {
	return zap.Stringer(FieldPubKey, stringer.HexStringer{Val: pubKey})
}

func Validator(pubKey phase0.BLSPubKey) zapcore.Field {
	return zap.Stringer(FieldPubKey, stringer.HexStringer{Val: pubKey[:]})
}

func ValidatorIndex(index phase0.ValidatorIndex) zapcore.Field {
	return zap.Uint64(FieldValidatorIndex, uint64(index))
}

func CommitteeIndex(index phase0.CommitteeIndex) zapcore.Field {
	return zap.Uint64(FieldCommitteeIndex, uint64(index))
}

func Slot(val phase0.Slot) zapcore.Field {
	return zap.Stringer(FieldSlot, stringer.Uint64Stringer{Val: uint64(val)})
}

func CurrentSlot(slot phase0.Slot) zapcore.Field {
	return zap.Stringer(FieldCurrentSlot, stringer.Uint64Stringer{Val: uint64(slot)})
}

func Epoch(val phase0.Epoch) zapcore.Field {
	return zap.Stringer(FieldEpoch, stringer.Uint64Stringer{Val: uint64(val)})
}

func Root(r [32]byte) zapcore.Field {
	return zap.Stringer(FieldRoot, stringer.HexStringer{Val: r[:]})
}

func Height(height specqbft.Height) zap.Field {
	return zap.Uint64(FieldHeight, uint64(height))
}

func Round(round specqbft.Round) zap.Field {
	return zap.Uint64(FieldRound, uint64(round))
}

func QBFTMessageType(val specqbft.MessageType) zap.Field {
	return zap.Uint64(FieldMessageType, uint64(val))
}

func DutyKind(kind types.DutyKind) zap.Field {
	return zap.Stringer(FieldDutyKind, kind)
}

func DutyID(id string) zap.Field {
	return zap.String(FieldDutyID, id)
}

func Signer(index uint64) zap.Field {
	return zap.Uint64(FieldSigner, index)
}

func Signers(indices []uint64) zap.Field {
	return zap.Uint64s(FieldSigners, indices)
}

func State(state string) zap.Field {
	return zap.String(FieldState, state)
}

func Reason(reason string) zap.Field {
	return zap.String(FieldReason, reason)
}

func SlashingViolation(err error) zap.Field {
	return zap.NamedError(FieldSlashingViolation, err)
}

func Name(val string) zap.Field {
	return zap.String(FieldName, val)
}

func Address(val string) zap.Field {
	return zap.String(FieldAddress, val)
}

func Topic(val string) zap.Field {
	return zap.String(FieldTopic, val)
}

func PeerID(val peer.ID) zapcore.Field {
	return zap.Stringer(FieldPeerID, val)
}

func Count(val int) zap.Field {
	return zap.Int(FieldCount, val)
}

func Took(duration time.Duration) zap.Field {
	return zap.Duration(FieldTook, duration)
}

func Duration(val time.Time) zapcore.Field {
	return zap.Duration(FieldDuration, time.Since(val))
}

func Config(val fmt.Stringer) zap.Field {
	return zap.Stringer(FieldConfig, val)
}
