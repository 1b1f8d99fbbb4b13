// Package p2p is a gossipsub transport: every distributed validator has its own topic
// which all of its co-validators join.
package p2p

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/network"
	"github.com/ssvlabs/dvnode/protocol/types"
)

// maxMessageSize bounds a single gossip message. Phase0 blocks stay well below it.
const maxMessageSize = 1 << 22

var _ network.Transport = (*Network)(nil)

// Network implements network.Transport over a libp2p host.
type Network struct {
	*network.Receiver

	logger *zap.Logger
	cfg    *Config
	dv     *types.DistributedValidator

	host host.Host
	// peers maps message authors to the co-validator index they may sign as.
	peers map[peer.ID]uint64
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription

	closeOnce sync.Once
}

// New creates the libp2p host. Gossip starts with Start.
func New(logger *zap.Logger, cfg *Config, dv *types.DistributedValidator) (*Network, error) {
	logger = logger.Named(logging.NameP2PNetwork)

	sk, err := cfg.privateKey()
	if err != nil {
		return nil, err
	}
	h, err := libp2p.New(
		libp2p.Identity(sk),
		libp2p.ListenAddrStrings(cfg.ListenAddr),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create libp2p host: %w", err)
	}
	peers, err := cfg.peerIndices(dv, h.ID())
	if err != nil {
		return nil, multierr.Append(err, h.Close())
	}
	logger.Info("libp2p host created", fields.PeerID(h.ID()), zap.Stringers("addrs", h.Addrs()))

	return &Network{
		Receiver: network.NewReceiver(logger, dv, cfg.ShareTTL),
		logger:   logger,
		cfg:      cfg,
		dv:       dv,
		host:     h,
		peers:    peers,
	}, nil
}

// Start joins the validator topic, connects static peers and listens until ctx is done.
func (n *Network) Start(ctx context.Context) error {
	peers, err := n.cfg.staticPeers()
	if err != nil {
		return err
	}

	n.ps, err = pubsub.NewGossipSub(ctx, n.host,
		pubsub.WithMessageIdFn(MsgID),
		pubsub.WithMessageSignaturePolicy(pubsub.StrictSign),
		pubsub.WithMaxMessageSize(maxMessageSize),
		pubsub.WithDirectPeers(peers),
	)
	if err != nil {
		return fmt.Errorf("could not create gossipsub: %w", err)
	}

	name := TopicName(n.dv.Identity.PubKey)
	if err := n.ps.RegisterTopicValidator(name, n.validate); err != nil {
		return fmt.Errorf("could not register topic validator: %w", err)
	}
	if n.topic, err = n.ps.Join(name); err != nil {
		return fmt.Errorf("could not join topic %s: %w", name, err)
	}
	if n.sub, err = n.topic.Subscribe(); err != nil {
		return fmt.Errorf("could not subscribe to topic %s: %w", name, err)
	}

	for _, p := range peers {
		if err := n.host.Connect(ctx, p); err != nil {
			n.logger.Warn("could not connect to peer", fields.PeerID(p.ID), zap.Error(err))
		}
	}

	go n.Receiver.Start(ctx)
	go n.listen(ctx, name)
	return nil
}

func (n *Network) listen(ctx context.Context, topic string) {
	logger := n.logger.Named(logging.NamePubsubTopicListener).With(fields.Topic(topic))
	logger.Debug("listening")
	for {
		msg, err := n.sub.Next(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, pubsub.ErrSubscriptionCancelled) {
				logger.Warn("subscription failed", zap.Error(err))
			}
			return
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		if err := n.Receive(ctx, msg.Data); err != nil {
			logger.Debug("dropped message", fields.PeerID(msg.ReceivedFrom), zap.Error(err))
		}
	}
}

// validate accepts messages of this validator whose signed author is the co-validator the
// message claims as signer.
func (n *Network) validate(_ context.Context, _ peer.ID, msg *pubsub.Message) pubsub.ValidationResult {
	decoded, err := network.DecodeMessage(msg.Data)
	if err != nil {
		return pubsub.ValidationReject
	}
	if decoded.ValidatorPubKey() != n.dv.Identity.PubKey {
		return pubsub.ValidationReject
	}
	author := msg.GetFrom()
	index, ok := n.peers[author]
	if !ok || index != decoded.Signer() {
		n.logger.Debug("rejecting message of unexpected author",
			fields.PeerID(author),
			fields.Signer(decoded.Signer()))
		return pubsub.ValidationReject
	}
	return pubsub.ValidationAccept
}

func (n *Network) Broadcast(ctx context.Context, share *types.PartialSignature) error {
	return n.publish(ctx, &network.Message{Type: network.MsgPartialSignature, PartialSignature: share})
}

func (n *Network) BroadcastConsensus(ctx context.Context, msg *types.ConsensusMessage) error {
	return n.publish(ctx, &network.Message{Type: network.MsgConsensus, Consensus: msg})
}

// publish delivers msg locally and then gossips it.
func (n *Network) publish(ctx context.Context, msg *network.Message) error {
	if n.topic == nil {
		return fmt.Errorf("network not started")
	}
	data, err := network.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("could not encode message: %w", err)
	}
	if err := n.Dispatch(ctx, msg); err != nil {
		return fmt.Errorf("local delivery failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.PublishTimeout)
	defer cancel()
	if err := n.topic.Publish(ctx, data); err != nil {
		return fmt.Errorf("could not publish: %w", err)
	}
	return nil
}

// ID is the libp2p peer id of the host.
func (n *Network) ID() peer.ID {
	return n.host.ID()
}

// Addrs returns the host's listen addresses with its peer id appended.
func (n *Network) Addrs() ([]multiaddr.Multiaddr, error) {
	return peer.AddrInfoToP2pAddrs(&peer.AddrInfo{ID: n.host.ID(), Addrs: n.host.Addrs()})
}

// Peers returns the peers currently in the validator topic.
func (n *Network) Peers() []peer.ID {
	if n.topic == nil {
		return nil
	}
	return n.topic.ListPeers()
}

func (n *Network) Close() error {
	var err error
	n.closeOnce.Do(func() {
		if n.sub != nil {
			n.sub.Cancel()
		}
		if n.topic != nil {
			err = multierr.Append(err, n.topic.Close())
		}
		err = multierr.Append(err, n.host.Close())
	})
	return err
}
