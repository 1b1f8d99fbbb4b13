// Package duties schedules the validator's duties and drives each one from consensus to a
// broadcast signature share.
package duties

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/networkconfig"
	"github.com/ssvlabs/dvnode/protocol/qbft"
	"github.com/ssvlabs/dvnode/protocol/types"
)

const (
	defaultSigningBackoff    = 100 * time.Millisecond
	defaultMaxSigningBackoff = 2 * time.Second
)

// Signer produces signature shares and the roots they sign.
type Signer interface {
	AttestationSigningRoot(ctx context.Context, data *phase0.AttestationData) (phase0.Root, error)
	BlockSigningRoot(ctx context.Context, block *phase0.BeaconBlock) (phase0.Root, error)
	SignAttestation(ctx context.Context, duty *types.AttestationDuty, data *phase0.AttestationData) (*types.PartialSignature, error)
	SignBlock(ctx context.Context, duty *types.ProposerDuty, block *phase0.BeaconBlock) (*types.PartialSignature, error)
	SignRandao(ctx context.Context, duty *types.ProposerDuty, epoch phase0.Epoch) (*types.PartialSignature, error)
}

// SlashingStore records what is about to be signed. Record calls fail with an error
// wrapping types.ErrSlashingViolation when signing would be slashable.
type SlashingStore interface {
	RecordAttestation(pubKey phase0.BLSPubKey, data *phase0.AttestationData, signingRoot phase0.Root) error
	RecordBlock(pubKey phase0.BLSPubKey, slot phase0.Slot, signingRoot phase0.Root) error
}

// ValidityChecker is the admission predicate values are decided under.
type ValidityChecker interface {
	Validity(ctx context.Context, candidate *qbft.CandidateValue, duty types.Duty) error
}

type ShareBroadcaster interface {
	Broadcast(ctx context.Context, share *types.PartialSignature) error
}

// RandaoSource yields combined randao reveals.
type RandaoSource interface {
	Await(ctx context.Context, epoch phase0.Epoch) (phase0.BLSSignature, error)
}

type OrchestratorOptions struct {
	DV           *types.DistributedValidator
	BeaconConfig *networkconfig.BeaconConfig
	Engine       qbft.Engine
	Validity     ValidityChecker
	Store        SlashingStore
	Signer       Signer
	Transport    ShareBroadcaster
	Randao       RandaoSource

	SigningBackoff    time.Duration
	MaxSigningBackoff time.Duration
}

// run is one execution of a duty. It holds the single-flight lock of its key while
// deciding, recording and signing.
type run struct {
	id     string
	duty   types.Duty
	cancel context.CancelCauseFunc
	done   chan struct{}

	mu         sync.Mutex
	state      State
	superseded bool
}

// Orchestrator drives duties through Deciding, Recording, Signing and Broadcasting.
type Orchestrator struct {
	logger *zap.Logger
	opts   OrchestratorOptions

	mu       sync.Mutex
	inflight map[types.DutyKey]*run
}

func NewOrchestrator(logger *zap.Logger, opts OrchestratorOptions) *Orchestrator {
	if opts.SigningBackoff == 0 {
		opts.SigningBackoff = defaultSigningBackoff
	}
	if opts.MaxSigningBackoff == 0 {
		opts.MaxSigningBackoff = defaultMaxSigningBackoff
	}
	return &Orchestrator{
		logger:   logger.Named(logging.NameDutyOrchestrator),
		opts:     opts,
		inflight: make(map[types.DutyKey]*run),
	}
}

// Deadline is when a duty stops being worth serving: the end of the slot after its slot.
func (o *Orchestrator) Deadline(duty types.Duty) time.Time {
	return o.opts.BeaconConfig.SlotEndTime(duty.DutySlot() + 1)
}

// Execute runs the duty to completion. It fails fast with types.ErrDutyInFlight while
// another run of the same kind and slot is deciding, recording or signing.
func (o *Orchestrator) Execute(ctx context.Context, duty types.Duty) error {
	if duty.ValidatorPubKey() != o.opts.DV.Identity.PubKey {
		return fmt.Errorf("duty of validator %x is not ours", duty.ValidatorPubKey())
	}

	dutyCtx, cancelDeadline := context.WithDeadline(ctx, o.Deadline(duty))
	defer cancelDeadline()
	ctx, cancel := context.WithCancelCause(dutyCtx)
	defer cancel(nil)

	r, err := o.acquire(duty, cancel)
	if err != nil {
		return err
	}
	var releaseOnce sync.Once
	release := func() { releaseOnce.Do(func() { o.release(r) }) }
	defer release()

	logger := o.logger.With(
		fields.DutyID(r.id),
		fields.DutyKind(duty.Kind()),
		fields.Slot(duty.DutySlot()),
		fields.Epoch(o.opts.BeaconConfig.EstimatedEpochAtSlot(duty.DutySlot())),
		fields.CurrentSlot(o.opts.BeaconConfig.EstimatedCurrentSlot()))

	if err := o.execute(ctx, dutyCtx, logger, r, release); err != nil {
		return o.abort(ctx, logger, r, err)
	}
	return nil
}

// Supersede replaces the run of the same kind and slot with duty. A run that has not
// started signing is cancelled; one that has is left to finish. The new duty starts once
// the previous run released its key.
func (o *Orchestrator) Supersede(ctx context.Context, duty types.Duty) error {
	key := types.DutyKeyOf(duty)

	o.mu.Lock()
	r, ok := o.inflight[key]
	o.mu.Unlock()

	if ok {
		r.mu.Lock()
		if r.state < StateSigning {
			r.superseded = true
			r.cancel(types.ErrDutySuperseded)
		}
		r.mu.Unlock()

		o.logger.Info("superseding duty", fields.DutyID(r.id), fields.DutyKind(key.Kind), fields.Slot(key.Slot))
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return o.Execute(ctx, duty)
}

func (o *Orchestrator) acquire(duty types.Duty, cancel context.CancelCauseFunc) (*run, error) {
	key := types.DutyKeyOf(duty)

	o.mu.Lock()
	defer o.mu.Unlock()

	if held, ok := o.inflight[key]; ok {
		return nil, fmt.Errorf("%w: %s held by %s", types.ErrDutyInFlight, key, held.id)
	}
	r := &run{
		id:     uuid.NewString(),
		duty:   duty,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateScheduled,
	}
	o.inflight[key] = r
	return r, nil
}

func (o *Orchestrator) release(r *run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, types.DutyKeyOf(r.duty))
	close(r.done)
}

// transition moves the run to state. Entering Signing fails once the run was superseded;
// after that the run can no longer be cancelled.
func (o *Orchestrator) transition(ctx context.Context, logger *zap.Logger, r *run, state State) error {
	r.mu.Lock()
	if state == StateSigning && r.superseded {
		r.mu.Unlock()
		return types.ErrDutySuperseded
	}
	from := r.state
	r.state = state
	r.mu.Unlock()

	logger.Debug("duty state changed", zap.Stringer("from", from), fields.State(state.String()))
	recordTransition(ctx, r.duty.Kind(), state)
	return nil
}

// execute runs the duty under ctx, which supersession cancels. From Signing on it runs
// under dutyCtx, which only the caller and the duty deadline end.
func (o *Orchestrator) execute(ctx, dutyCtx context.Context, logger *zap.Logger, r *run, release func()) error {
	start := time.Now()
	if err := o.transition(ctx, logger, r, StateDeciding); err != nil {
		return err
	}

	var opts []qbft.DecideOption
	if proposal, ok := r.duty.(*types.ProposerDuty); ok {
		reveal, err := o.randaoReveal(ctx, logger, proposal)
		if err != nil {
			return err
		}
		opts = append(opts, qbft.WithRandaoReveal(reveal))
	}

	value, err := o.decide(ctx, logger, r.duty, opts...)
	if err != nil {
		return err
	}

	if err := o.transition(ctx, logger, r, StateRecording); err != nil {
		return err
	}
	if err := o.opts.Validity.Validity(ctx, value, r.duty); err != nil {
		return fmt.Errorf("decided value failed validity: %w", err)
	}
	if err := o.record(ctx, logger, r.duty, value); err != nil {
		return err
	}

	if err := o.transition(ctx, logger, r, StateSigning); err != nil {
		return err
	}
	ctx = dutyCtx
	share, err := o.sign(ctx, logger, r.duty, value)
	if err != nil {
		return err
	}
	release()

	if err := o.transition(ctx, logger, r, StateBroadcasting); err != nil {
		return err
	}
	if err := o.opts.Transport.Broadcast(ctx, share); err != nil {
		return fmt.Errorf("could not broadcast share: %w", err)
	}

	if err := o.transition(ctx, logger, r, StateDone); err != nil {
		return err
	}
	recordRunDuration(ctx, r.duty.Kind(), time.Since(start))
	logger.Info("duty done", fields.Root(share.SigningRoot), fields.Took(time.Since(start)))
	return nil
}

// randaoReveal signs and broadcasts the randao share of the duty epoch and waits for the
// combined reveal.
func (o *Orchestrator) randaoReveal(ctx context.Context, logger *zap.Logger, duty *types.ProposerDuty) (phase0.BLSSignature, error) {
	epoch := o.opts.BeaconConfig.EstimatedEpochAtSlot(duty.Slot)

	var share *types.PartialSignature
	err := o.withSigningRetry(ctx, logger, func(ctx context.Context) error {
		var err error
		share, err = o.opts.Signer.SignRandao(ctx, duty, epoch)
		return err
	})
	if err != nil {
		return phase0.BLSSignature{}, fmt.Errorf("could not sign randao: %w", err)
	}
	if err := o.opts.Transport.Broadcast(ctx, share); err != nil {
		return phase0.BLSSignature{}, fmt.Errorf("could not broadcast randao share: %w", err)
	}

	reveal, err := o.opts.Randao.Await(ctx, epoch)
	if err != nil {
		return phase0.BLSSignature{}, fmt.Errorf("%w: %w", errRandaoUnavailable, err)
	}
	logger.Debug("got randao reveal", fields.Epoch(epoch))
	return reveal, nil
}

var errRandaoUnavailable = errors.New("randao reveal unavailable")

// decide runs consensus, retrying once after a timeout while the duty deadline allows.
func (o *Orchestrator) decide(ctx context.Context, logger *zap.Logger, duty types.Duty, opts ...qbft.DecideOption) (*qbft.CandidateValue, error) {
	value, err := o.opts.Engine.Decide(ctx, duty, opts...)
	if err == nil || !errors.Is(err, types.ErrConsensusTimeout) || ctx.Err() != nil {
		return value, err
	}
	logger.Warn("consensus timed out, retrying", zap.Error(err))
	return o.opts.Engine.Decide(ctx, duty, opts...)
}

func (o *Orchestrator) record(ctx context.Context, logger *zap.Logger, duty types.Duty, value *qbft.CandidateValue) error {
	pubKey := duty.ValidatorPubKey()
	switch duty.(type) {
	case *types.AttestationDuty:
		var root phase0.Root
		err := o.withSigningRetry(ctx, logger, func(ctx context.Context) error {
			var err error
			root, err = o.opts.Signer.AttestationSigningRoot(ctx, value.Attestation)
			return err
		})
		if err != nil {
			return err
		}
		return o.opts.Store.RecordAttestation(pubKey, value.Attestation, root)

	case *types.ProposerDuty:
		var root phase0.Root
		err := o.withSigningRetry(ctx, logger, func(ctx context.Context) error {
			var err error
			root, err = o.opts.Signer.BlockSigningRoot(ctx, value.Block)
			return err
		})
		if err != nil {
			return err
		}
		return o.opts.Store.RecordBlock(pubKey, value.Block.Slot, root)

	default:
		return fmt.Errorf("unsupported duty %T", duty)
	}
}

func (o *Orchestrator) sign(ctx context.Context, logger *zap.Logger, duty types.Duty, value *qbft.CandidateValue) (*types.PartialSignature, error) {
	var share *types.PartialSignature
	err := o.withSigningRetry(ctx, logger, func(ctx context.Context) error {
		var err error
		switch d := duty.(type) {
		case *types.AttestationDuty:
			share, err = o.opts.Signer.SignAttestation(ctx, d, value.Attestation)
		case *types.ProposerDuty:
			share, err = o.opts.Signer.SignBlock(ctx, d, value.Block)
		default:
			err = fmt.Errorf("unsupported duty %T", duty)
		}
		return err
	})
	return share, err
}

// withSigningRetry retries fn with exponential backoff while it fails with
// types.ErrSigningUnavailable and ctx is not done.
func (o *Orchestrator) withSigningRetry(ctx context.Context, logger *zap.Logger, fn func(ctx context.Context) error) error {
	backoff := o.opts.SigningBackoff
	for {
		err := fn(ctx)
		if err == nil || !errors.Is(err, types.ErrSigningUnavailable) {
			return err
		}
		logger.Warn("signing unavailable, backing off", zap.Duration("backoff", backoff), zap.Error(err))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("gave up before deadline: %w", err)
		case <-timer.C:
		}
		backoff = min(2*backoff, o.opts.MaxSigningBackoff)
	}
}

// abort moves the run to Aborted and reports why the duty was missed.
func (o *Orchestrator) abort(ctx context.Context, logger *zap.Logger, r *run, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, types.ErrDutySuperseded) && !errors.Is(err, types.ErrDutySuperseded) {
		err = fmt.Errorf("%w: %w", types.ErrDutySuperseded, err)
	}
	_ = o.transition(context.WithoutCancel(ctx), logger, r, StateAborted)
	ctx = context.WithoutCancel(ctx)

	switch {
	case errors.Is(err, types.ErrSlashingViolation):
		logger.Error("refusing to sign slashable duty", fields.SlashingViolation(err))
		recordMissed(ctx, r.duty.Kind(), missedReasonSlashing)
	case errors.Is(err, types.ErrDutySuperseded):
		logger.Info("duty superseded", zap.Error(err))
		recordMissed(ctx, r.duty.Kind(), missedReasonSuperseded)
	case errors.Is(err, types.ErrConsensusTimeout):
		logger.Warn("missed duty: no decision", zap.Error(err))
		recordMissed(ctx, r.duty.Kind(), missedReasonConsensusTimeout)
	case errors.Is(err, types.ErrSigningUnavailable):
		logger.Warn("missed duty: signing unavailable", zap.Error(err))
		recordMissed(ctx, r.duty.Kind(), missedReasonSigningDeadline)
	case errors.Is(err, errRandaoUnavailable):
		logger.Warn("missed duty: no randao reveal", zap.Error(err))
		recordMissed(ctx, r.duty.Kind(), missedReasonRandaoUnavailable)
	default:
		logger.Error("duty failed", zap.Error(err))
		recordMissed(ctx, r.duty.Kind(), missedReasonError)
	}
	return err
}
