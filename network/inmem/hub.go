// Package inmem connects the transports of co-validators running in one process.
package inmem

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/network"
	"github.com/ssvlabs/dvnode/protocol/types"
)

// Filter reports whether a message from one co-validator should reach another.
type Filter func(from, to uint64, msg *network.Message) bool

// Hub delivers every broadcast to every joined transport, including the sender's.
type Hub struct {
	mu         sync.RWMutex
	transports map[uint64]*Transport
	filter     Filter
}

func NewHub() *Hub {
	return &Hub{transports: make(map[uint64]*Transport)}
}

// SetFilter installs a delivery filter. A nil filter delivers everything.
func (h *Hub) SetFilter(filter Filter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filter = filter
}

// Join registers the transport of the co-validator dv.SelfIndex.
func (h *Hub) Join(logger *zap.Logger, dv *types.DistributedValidator) *Transport {
	logger = logger.Named(logging.NameInMemoryTransport).With(zap.Uint64("self", dv.SelfIndex))
	t := &Transport{
		Receiver: network.NewReceiver(logger, dv, network.DefaultShareTTL),
		logger:   logger,
		hub:      h,
		self:     dv.SelfIndex,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.transports[dv.SelfIndex] = t
	return t
}

func (h *Hub) publish(ctx context.Context, from uint64, msg *network.Message) error {
	data, err := network.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("could not encode message: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for to, t := range h.transports {
		if h.filter != nil && !h.filter(from, to, msg) {
			continue
		}
		go t.deliver(ctx, data)
	}
	return nil
}

var _ network.Transport = (*Transport)(nil)

// Transport is a co-validator's endpoint on a Hub.
type Transport struct {
	*network.Receiver

	logger *zap.Logger
	hub    *Hub
	self   uint64
}

func (t *Transport) Broadcast(ctx context.Context, share *types.PartialSignature) error {
	return t.hub.publish(ctx, t.self, &network.Message{Type: network.MsgPartialSignature, PartialSignature: share})
}

func (t *Transport) BroadcastConsensus(ctx context.Context, msg *types.ConsensusMessage) error {
	return t.hub.publish(ctx, t.self, &network.Message{Type: network.MsgConsensus, Consensus: msg})
}

func (t *Transport) deliver(ctx context.Context, data []byte) {
	if err := t.Receive(context.WithoutCancel(ctx), data); err != nil {
		t.logger.Debug("dropped message", zap.Error(err))
	}
}
