package qbft

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	specqbft "github.com/ssvlabs/ssv-spec/qbft"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/network"
	"github.com/ssvlabs/dvnode/protocol/types"
)

const (
	// earlyMessageTTL bounds how long messages of an instance that has not started yet are kept.
	earlyMessageTTL = time.Minute
	// maxEarlyMessages bounds the messages kept per instance that has not started yet.
	maxEarlyMessages = 256
	finishedTTL      = 10 * time.Minute
)

var (
	_ Engine                  = (*Controller)(nil)
	_ network.ConsensusRouter = (*Controller)(nil)
)

// Controller runs one Instance per duty and routes inbound consensus messages to it.
type Controller struct {
	logger      *zap.Logger
	dv          *types.DistributedValidator
	broadcaster Broadcaster
	source      CandidateSource
	check       *ValueCheck
	cfg         Config

	mu        sync.Mutex
	instances map[types.InstanceID]*Instance
	early     *ttlcache.Cache[types.InstanceID, []*Message]
	finished  *ttlcache.Cache[types.InstanceID, struct{}]
	// suspended holds instances that ran out of rounds. They keep their prepared state
	// and are resumed by the next Decide of the same duty.
	suspended *ttlcache.Cache[types.InstanceID, *Instance]
}

func NewController(
	logger *zap.Logger,
	dv *types.DistributedValidator,
	broadcaster Broadcaster,
	source CandidateSource,
	check *ValueCheck,
	cfg Config,
) *Controller {
	return &Controller{
		logger:      logger.Named(logging.NameConsensus),
		dv:          dv,
		broadcaster: broadcaster,
		source:      source,
		check:       check,
		cfg:         cfg,
		instances:   make(map[types.InstanceID]*Instance),
		early: ttlcache.New(
			ttlcache.WithTTL[types.InstanceID, []*Message](earlyMessageTTL),
			ttlcache.WithDisableTouchOnHit[types.InstanceID, []*Message](),
		),
		finished: ttlcache.New(
			ttlcache.WithTTL[types.InstanceID, struct{}](finishedTTL),
		),
		suspended: ttlcache.New(
			ttlcache.WithTTL[types.InstanceID, *Instance](finishedTTL),
			ttlcache.WithDisableTouchOnHit[types.InstanceID, *Instance](),
		),
	}
}

// RouteConsensus hands msg to its running or suspended instance. Messages of instances that
// have not started yet are kept until they do; messages of finished instances are dropped.
func (c *Controller) RouteConsensus(_ context.Context, msg *Message) {
	id := msg.InstanceID()

	c.mu.Lock()
	defer c.mu.Unlock()

	if inst, ok := c.instances[id]; ok {
		inst.enqueue(msg)
		return
	}
	if item := c.suspended.Get(id); item != nil {
		item.Value().enqueue(msg)
		return
	}
	if c.finished.Has(id) {
		return
	}

	c.early.DeleteExpired()
	var pending []*Message
	if item := c.early.Get(id); item != nil {
		pending = item.Value()
	}
	if len(pending) >= maxEarlyMessages {
		c.logger.Debug("too many messages for instance not yet started",
			zap.Stringer("instance", id),
			fields.Signer(msg.Signer))
		return
	}
	c.early.Set(id, append(pending, msg), ttlcache.DefaultTTL)
}

// Decide runs consensus for the duty and returns the decided value. It fails with
// types.ErrConsensusTimeout when the round budget runs out or ctx is done first. An
// instance that ran out of rounds is resumed by the next Decide of the same duty.
func (c *Controller) Decide(ctx context.Context, duty types.Duty, opts ...DecideOption) (*CandidateValue, error) {
	if duty.ValidatorPubKey() != c.dv.Identity.PubKey {
		return nil, fmt.Errorf("duty of validator %x is not ours", duty.ValidatorPubKey())
	}

	id := types.InstanceID{
		ValidatorPubKey: duty.ValidatorPubKey(),
		Kind:            duty.Kind(),
		Height:          specqbft.Height(duty.DutySlot()),
	}
	candidate, err := c.candidateFunc(duty, opts...)
	if err != nil {
		return nil, err
	}
	params := instanceParams{
		logger:      c.logger,
		id:          id,
		dv:          c.dv,
		budget:      c.cfg.RoundBudget,
		broadcaster: c.broadcaster,
		validate: func(ctx context.Context, value []byte) error {
			v, err := DecodeValue(id.Kind, value)
			if err != nil {
				return err
			}
			return c.check.Validity(ctx, v, duty)
		},
		candidate:    candidate,
		roundTimeout: c.cfg.RoundTimeout,
	}

	inst, early, err := c.register(id, params)
	if err != nil {
		return nil, err
	}
	for _, msg := range early {
		inst.enqueue(msg)
	}

	start := time.Now()
	value, err := inst.Run(ctx)
	if err != nil {
		// Only a budget that ran out leaves the instance worth resuming.
		c.unregister(id, ctx.Err() == nil)
		recordFailed(ctx, id.Kind)
		return nil, err
	}
	c.unregister(id, false)
	recordDecided(ctx, id.Kind, inst.DecidedRound(), time.Since(start))
	return DecodeValue(id.Kind, value)
}

// register marks the instance of id as running, resuming a suspended one if there is one.
func (c *Controller) register(id types.InstanceID, p instanceParams) (*Instance, []*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.instances[id]; ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrInstanceRunning, id)
	}
	var inst *Instance
	if item := c.suspended.Get(id); item != nil {
		inst = item.Value()
		inst.resume(p)
		c.suspended.Delete(id)
		c.logger.Debug("resuming consensus", zap.Stringer("instance", id))
	} else {
		inst = newInstance(p)
	}
	c.instances[id] = inst
	c.finished.Delete(id)

	var early []*Message
	if item := c.early.Get(id); item != nil {
		early = item.Value()
		c.early.Delete(id)
	}
	return inst, early, nil
}

func (c *Controller) unregister(id types.InstanceID, suspend bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inst := c.instances[id]
	delete(c.instances, id)
	if suspend && inst != nil {
		c.suspended.Set(id, inst, ttlcache.DefaultTTL)
		return
	}
	c.finished.Set(id, struct{}{}, ttlcache.DefaultTTL)
}

// candidateFunc returns what the local node proposes when it leads a round.
func (c *Controller) candidateFunc(duty types.Duty, opts ...DecideOption) (func(ctx context.Context) ([]byte, error), error) {
	switch d := duty.(type) {
	case *types.AttestationDuty:
		return func(ctx context.Context) ([]byte, error) {
			data, err := c.source.AttestationData(ctx, d.Slot, d.CommitteeIndex)
			if err != nil {
				return nil, fmt.Errorf("could not fetch attestation data: %w", err)
			}
			return (&CandidateValue{Attestation: data}).Encode()
		}, nil

	case *types.ProposerDuty:
		reveal, ok := RandaoRevealOf(opts...)
		if !ok {
			return nil, fmt.Errorf("proposal duty at slot %d needs a randao reveal", d.Slot)
		}
		return func(ctx context.Context) ([]byte, error) {
			block, err := c.source.BeaconBlock(ctx, d.Slot, reveal, c.cfg.Graffiti)
			if err != nil {
				return nil, fmt.Errorf("could not fetch block: %w", err)
			}
			return (&CandidateValue{Block: block}).Encode()
		}, nil

	default:
		return nil, fmt.Errorf("unsupported duty %T", duty)
	}
}
