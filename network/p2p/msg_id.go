package p2p

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/cespare/xxhash/v2"
	ps_pb "github.com/libp2p/go-libp2p-pubsub/pb"
)

const (
	topicPrefix = "dvnode.v1"

	// MsgIDEmptyMessage is the msg_id for empty messages
	MsgIDEmptyMessage = "invalid:empty"
)

// TopicName is the gossip topic of a distributed validator.
func TopicName(validatorPubKey phase0.BLSPubKey) string {
	return topicPrefix + "." + hex.EncodeToString(validatorPubKey[:])
}

// MsgID identifies messages by the xxhash of their content, so re-published copies are
// recognized as seen.
func MsgID(pmsg *ps_pb.Message) string {
	if pmsg == nil || len(pmsg.GetData()) == 0 {
		return MsgIDEmptyMessage
	}
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, xxhash.Sum64(pmsg.GetData()))
	return string(b)
}
