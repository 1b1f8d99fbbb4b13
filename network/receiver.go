package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/protocol/types"
)

// Receiver dispatches inbound messages of one distributed validator: shares go to the
// buffer, consensus messages to the router.
type Receiver struct {
	*ShareBuffer

	logger *zap.Logger
	dv     *types.DistributedValidator

	routerMu sync.RWMutex
	router   ConsensusRouter
}

func NewReceiver(logger *zap.Logger, dv *types.DistributedValidator, shareTTL time.Duration) *Receiver {
	return &Receiver{
		ShareBuffer: NewShareBuffer(dv, shareTTL),
		logger:      logger,
		dv:          dv,
	}
}

func (r *Receiver) UseConsensusRouter(router ConsensusRouter) {
	r.routerMu.Lock()
	defer r.routerMu.Unlock()
	r.router = router
}

// Receive decodes and dispatches raw message data.
func (r *Receiver) Receive(ctx context.Context, data []byte) error {
	msg, err := DecodeMessage(data)
	if err != nil {
		recordRejected(ctx, 0)
		return err
	}
	return r.Dispatch(ctx, msg)
}

// Dispatch handles a decoded message.
func (r *Receiver) Dispatch(ctx context.Context, msg *Message) error {
	if pk := msg.ValidatorPubKey(); pk != r.dv.Identity.PubKey {
		recordRejected(ctx, msg.Type)
		return fmt.Errorf("message of unknown validator %x", pk)
	}
	recordReceived(ctx, msg.Type)

	switch msg.Type {
	case MsgPartialSignature:
		added, err := r.Add(msg.PartialSignature)
		if err != nil {
			recordRejected(ctx, msg.Type)
			return fmt.Errorf("could not buffer share: %w", err)
		}
		if added {
			r.logger.Debug("buffered share",
				fields.DutyKind(msg.PartialSignature.Kind),
				fields.Slot(msg.PartialSignature.Slot),
				fields.Root(msg.PartialSignature.SigningRoot),
				fields.Signer(msg.PartialSignature.Signer))
		}
		return nil

	case MsgConsensus:
		if _, ok := r.dv.CoValidator(msg.Consensus.Signer); !ok {
			recordRejected(ctx, msg.Type)
			return fmt.Errorf("signer %d is not a co-validator", msg.Consensus.Signer)
		}
		r.routerMu.RLock()
		router := r.router
		r.routerMu.RUnlock()
		if router == nil {
			r.logger.Debug("dropping consensus message: no router",
				fields.Height(msg.Consensus.Height),
				fields.Signer(msg.Consensus.Signer))
			return nil
		}
		router.RouteConsensus(ctx, msg.Consensus)
		return nil

	default:
		recordRejected(ctx, msg.Type)
		return fmt.Errorf("unknown message type %d", msg.Type)
	}
}
