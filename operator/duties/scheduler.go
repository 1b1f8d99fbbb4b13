package duties

import (
	"context"
	"errors"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/oleiade/lane/v2"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/networkconfig"
	"github.com/ssvlabs/dvnode/operator/duties/dutystore"
	"github.com/ssvlabs/dvnode/operator/slotticker"
	"github.com/ssvlabs/dvnode/protocol/types"
)

const (
	defaultMaxConcurrentDuties = 16
	lateDutyThreshold          = 100 * time.Millisecond
)

type DutyFetcher interface {
	AttesterDuties(ctx context.Context, epoch phase0.Epoch, indices []phase0.ValidatorIndex) ([]*types.AttestationDuty, error)
	ProposerDuties(ctx context.Context, epoch phase0.Epoch, indices []phase0.ValidatorIndex) ([]*types.ProposerDuty, error)
}

// DutyExecutor serves duties. Orchestrator implements it.
type DutyExecutor interface {
	Execute(ctx context.Context, duty types.Duty) error
	Supersede(ctx context.Context, duty types.Duty) error
}

type SchedulerOptions struct {
	BeaconNode         DutyFetcher
	BeaconConfig       *networkconfig.BeaconConfig
	Indices            []phase0.ValidatorIndex
	Executor           DutyExecutor
	SlotTickerProvider slotticker.Provider
	DutyStore          *dutystore.Store
	// MaxConcurrentDuties bounds the duties executed at once.
	MaxConcurrentDuties int
}

type scheduledDuty struct {
	duty        types.Duty
	serviceTime time.Time
	supersede   bool
}

// Scheduler fetches the validator's duties every epoch and hands each one to the executor
// at its service time: slot start for proposals, a third into the slot for attestations.
type Scheduler struct {
	logger       *zap.Logger
	beaconNode   DutyFetcher
	beaconConfig *networkconfig.BeaconConfig
	indices      []phase0.ValidatorIndex
	executor     DutyExecutor
	ticker       slotticker.SlotTicker
	store        *dutystore.Store
	maxDuties    int

	queue *lane.PriorityQueue[*scheduledDuty, int64]
	// lastSlot is the latest slot whose duties were queued.
	lastSlot phase0.Slot
}

func NewScheduler(logger *zap.Logger, opts *SchedulerOptions) *Scheduler {
	store := opts.DutyStore
	if store == nil {
		store = dutystore.New()
	}
	maxDuties := opts.MaxConcurrentDuties
	if maxDuties == 0 {
		maxDuties = defaultMaxConcurrentDuties
	}
	return &Scheduler{
		logger:       logger.Named(logging.NameDutyScheduler),
		beaconNode:   opts.BeaconNode,
		beaconConfig: opts.BeaconConfig,
		indices:      opts.Indices,
		executor:     opts.Executor,
		ticker:       opts.SlotTickerProvider(),
		store:        store,
		maxDuties:    maxDuties,
		queue:        lane.NewMinPriorityQueue[*scheduledDuty, int64](),
	}
}

// Run schedules duties until ctx is done, then waits for running duties to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("duty scheduler started", fields.Count(len(s.indices)))
	p := pool.New().WithContext(ctx).WithMaxGoroutines(s.maxDuties)

	s.onSlot(ctx, s.beaconConfig.EstimatedCurrentSlot())
	s.dispatch(p)

	wake := time.NewTimer(s.untilNext())
	defer wake.Stop()
	tick := s.ticker.Next()
	for {
		select {
		case <-ctx.Done():
			return p.Wait()
		case <-tick:
			s.onSlot(ctx, s.ticker.Slot())
			tick = s.ticker.Next()
		case <-wake.C:
		}
		s.dispatch(p)

		if !wake.Stop() {
			select {
			case <-wake.C:
			default:
			}
		}
		wake.Reset(s.untilNext())
	}
}

// onSlot makes sure the duties around the slot are fetched and queues the slot's duties.
func (s *Scheduler) onSlot(ctx context.Context, slot phase0.Slot) {
	epoch := s.beaconConfig.EstimatedEpochAtSlot(slot)
	logger := s.logger.With(fields.Slot(slot), fields.Epoch(epoch))
	logger.Debug("slot ticker", zap.Uint64("position", uint64(slot)%s.beaconConfig.SlotsPerEpoch()+1))

	// The attester lookahead fetched a slot ago may be stale once its epoch begins.
	refresh := s.beaconConfig.IsFirstSlotOfEpoch(slot)
	s.fetchAttesters(ctx, logger, epoch, refresh)
	s.fetchAttesters(ctx, logger, epoch+1, false)
	s.fetchProposers(ctx, logger, epoch)
	if epoch > 1 {
		s.store.Attester.ResetEpoch(epoch - 2)
		s.store.Proposer.ResetEpoch(epoch - 2)
	}

	if slot <= s.lastSlot && s.lastSlot != 0 {
		return
	}
	for _, duty := range s.store.Proposer.SlotDuties(epoch, slot) {
		s.push(&scheduledDuty{duty: duty, serviceTime: s.beaconConfig.SlotStartTime(slot)})
	}
	for _, duty := range s.store.Attester.SlotDuties(epoch, slot) {
		s.push(&scheduledDuty{duty: duty, serviceTime: s.attestationServiceTime(slot)})
	}
	s.lastSlot = slot
}

func (s *Scheduler) attestationServiceTime(slot phase0.Slot) time.Time {
	return s.beaconConfig.SlotStartTime(slot).Add(s.beaconConfig.IntervalDuration())
}

func (s *Scheduler) fetchAttesters(ctx context.Context, logger *zap.Logger, epoch phase0.Epoch, refresh bool) {
	if s.store.Attester.HasEpoch(epoch) && !refresh {
		return
	}
	start := time.Now()
	duties, err := s.beaconNode.AttesterDuties(ctx, epoch, s.indices)
	if err != nil {
		logger.Warn("could not fetch attester duties", fields.Epoch(epoch), zap.Error(err))
		return
	}
	s.store.Attester.MarkFetched(epoch)
	for _, duty := range duties {
		previous := s.store.Attester.Add(epoch, duty.Slot, duty.ValidatorIndex, duty)
		if previous == nil || *previous == *duty {
			continue
		}
		logger.Info("attester duty changed", fields.Slot(duty.Slot), zap.Stringer("previous", previous), zap.Stringer("current", duty))
		if s.lastSlot != 0 && duty.Slot <= s.lastSlot {
			s.push(&scheduledDuty{duty: duty, serviceTime: s.attestationServiceTime(duty.Slot), supersede: true})
		}
	}
	logger.Debug("fetched attester duties", fields.Epoch(epoch), fields.Count(len(duties)), fields.Took(time.Since(start)))
}

func (s *Scheduler) fetchProposers(ctx context.Context, logger *zap.Logger, epoch phase0.Epoch) {
	if s.store.Proposer.HasEpoch(epoch) {
		return
	}
	start := time.Now()
	duties, err := s.beaconNode.ProposerDuties(ctx, epoch, s.indices)
	if err != nil {
		logger.Warn("could not fetch proposer duties", fields.Epoch(epoch), zap.Error(err))
		return
	}
	s.store.Proposer.MarkFetched(epoch)
	for _, duty := range duties {
		s.store.Proposer.Add(epoch, duty.Slot, duty.ValidatorIndex, duty)
	}
	logger.Debug("fetched proposer duties", fields.Epoch(epoch), fields.Count(len(duties)), fields.Took(time.Since(start)))
}

func (s *Scheduler) push(sd *scheduledDuty) {
	s.queue.Push(sd, sd.serviceTime.UnixNano())
}

// untilNext returns how long until the earliest queued duty is due.
func (s *Scheduler) untilNext() time.Duration {
	_, at, ok := s.queue.Head()
	if !ok {
		return time.Hour
	}
	return max(0, time.Until(time.Unix(0, at)))
}

// dispatch starts every queued duty whose service time has come.
func (s *Scheduler) dispatch(p *pool.ContextPool) {
	now := time.Now().UnixNano()
	for {
		_, at, ok := s.queue.Head()
		if !ok || at > now {
			return
		}
		sd, _, _ := s.queue.Pop()
		p.Go(func(ctx context.Context) error {
			s.execute(ctx, sd)
			return nil
		})
	}
}

func (s *Scheduler) execute(ctx context.Context, sd *scheduledDuty) {
	duty := sd.duty
	logger := s.logger.With(
		fields.DutyKind(duty.Kind()),
		fields.Slot(duty.DutySlot()),
		fields.CurrentSlot(s.beaconConfig.EstimatedCurrentSlot()),
		fields.Validator(duty.ValidatorPubKey()))

	delay := time.Since(sd.serviceTime)
	if delay >= lateDutyThreshold {
		logger.Debug("late duty execution", zap.Int64("slot_delay", delay.Milliseconds()))
	}
	recordExecution(ctx, duty.Kind(), delay)

	var err error
	if sd.supersede {
		err = s.executor.Supersede(ctx, duty)
	} else {
		err = s.executor.Execute(ctx, duty)
	}
	switch {
	case err == nil:
	case errors.Is(err, types.ErrDutyInFlight):
		logger.Debug("duty already in flight", zap.Error(err))
	default:
		logger.Debug("duty not served", zap.Error(err))
	}
}
