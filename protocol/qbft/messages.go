package qbft

import (
	"sort"

	specqbft "github.com/ssvlabs/ssv-spec/qbft"
)

type msgKey struct {
	msgType specqbft.MessageType
	round   specqbft.Round
}

// messageContainer keeps the first message of every signer per type and round.
type messageContainer struct {
	msgs map[msgKey]map[uint64]*Message
}

func newMessageContainer() *messageContainer {
	return &messageContainer{msgs: make(map[msgKey]map[uint64]*Message)}
}

// add returns false when the signer already sent a message of this type and round.
func (c *messageContainer) add(msg *Message) bool {
	key := msgKey{msgType: msg.MsgType, round: msg.Round}
	bySigner, ok := c.msgs[key]
	if !ok {
		bySigner = make(map[uint64]*Message)
		c.msgs[key] = bySigner
	}
	if _, ok := bySigner[msg.Signer]; ok {
		return false
	}
	bySigner[msg.Signer] = msg
	return true
}

// all returns the messages of a type and round ordered by signer.
func (c *messageContainer) all(msgType specqbft.MessageType, round specqbft.Round) []*Message {
	bySigner := c.msgs[msgKey{msgType: msgType, round: round}]
	out := make([]*Message, 0, len(bySigner))
	for _, msg := range bySigner {
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Signer < out[j].Signer })
	return out
}

// matching returns the messages of a type and round that refer to root.
func (c *messageContainer) matching(msgType specqbft.MessageType, round specqbft.Round, root [32]byte) []*Message {
	var out []*Message
	for _, msg := range c.all(msgType, round) {
		if msg.Root == root {
			out = append(out, msg)
		}
	}
	return out
}

// roundChangesAbove returns, per signer, the lowest round above round it asked to change to.
func (c *messageContainer) roundChangesAbove(round specqbft.Round) map[uint64]specqbft.Round {
	out := make(map[uint64]specqbft.Round)
	for key, bySigner := range c.msgs {
		if key.msgType != specqbft.RoundChangeMsgType || key.round <= round {
			continue
		}
		for signer := range bySigner {
			if prev, ok := out[signer]; !ok || key.round < prev {
				out[signer] = key.round
			}
		}
	}
	return out
}
