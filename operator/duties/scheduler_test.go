package duties

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/sourcegraph/conc/pool"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ssvlabs/dvnode/beacon/mocks"
	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/networkconfig"
	"github.com/ssvlabs/dvnode/operator/slotticker"
	protocoltesting "github.com/ssvlabs/dvnode/protocol/testing"
	"github.com/ssvlabs/dvnode/protocol/types"
)

type mockSlotTicker struct {
	ch   chan time.Time
	slot phase0.Slot
}

func (m *mockSlotTicker) Next() <-chan time.Time { return m.ch }
func (m *mockSlotTicker) Slot() phase0.Slot      { return m.slot }

type executedDuty struct {
	duty      types.Duty
	supersede bool
}

type recordingExecutor struct {
	mu       sync.Mutex
	executed []executedDuty
}

func (e *recordingExecutor) Execute(_ context.Context, duty types.Duty) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, executedDuty{duty: duty})
	return nil
}

func (e *recordingExecutor) Supersede(_ context.Context, duty types.Duty) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, executedDuty{duty: duty, supersede: true})
	return nil
}

func (e *recordingExecutor) all() []executedDuty {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]executedDuty(nil), e.executed...)
}

var testIndices = []phase0.ValidatorIndex{protocoltesting.TestValidatorIndex}

type schedulerFixture struct {
	scheduler    *Scheduler
	beacon       *mocks.MockBeaconNode
	executor     *recordingExecutor
	ticker       *mockSlotTicker
	beaconConfig *networkconfig.BeaconConfig
}

// newSchedulerFixture uses a chain whose current slot is 100, a few seconds in, so the
// duties of slot 100 are due.
func newSchedulerFixture(t *testing.T) *schedulerFixture {
	genesis := time.Now().Add(-(100*12*time.Second + 5*time.Second))
	beaconConfig := networkconfig.NewLocalBeaconConfig(genesis, 12*time.Second, protocoltesting.TestGenesisValidatorsRoot)
	beacon := mocks.NewMockBeaconNode(gomock.NewController(t))
	ticker := &mockSlotTicker{ch: make(chan time.Time)}
	executor := &recordingExecutor{}
	s := NewScheduler(logging.TestLogger(t), &SchedulerOptions{
		BeaconNode:         beacon,
		BeaconConfig:       beaconConfig,
		Indices:            testIndices,
		Executor:           executor,
		SlotTickerProvider: func() slotticker.SlotTicker { return ticker },
	})
	return &schedulerFixture{scheduler: s, beacon: beacon, executor: executor, ticker: ticker, beaconConfig: beaconConfig}
}

func attesterDuty(slot phase0.Slot, committeeIndex phase0.CommitteeIndex) *types.AttestationDuty {
	return &types.AttestationDuty{
		PubKey:                  phase0.BLSPubKey{0x01},
		ValidatorIndex:          protocoltesting.TestValidatorIndex,
		CommitteeIndex:          committeeIndex,
		CommitteeLength:         16,
		CommitteesAtSlot:        4,
		ValidatorCommitteeIndex: 3,
		Slot:                    slot,
	}
}

func proposerDuty(slot phase0.Slot) *types.ProposerDuty {
	return &types.ProposerDuty{PubKey: phase0.BLSPubKey{0x01}, ValidatorIndex: protocoltesting.TestValidatorIndex, Slot: slot}
}

func TestSchedulerServesDueDuties(t *testing.T) {
	f := newSchedulerFixture(t)
	require.Equal(t, phase0.Slot(100), f.beaconConfig.EstimatedCurrentSlot())

	attester := attesterDuty(100, 2)
	later := attesterDuty(101, 1)
	proposer := proposerDuty(100)
	f.beacon.EXPECT().AttesterDuties(gomock.Any(), phase0.Epoch(3), testIndices).Return([]*types.AttestationDuty{attester, later}, nil).Times(1)
	f.beacon.EXPECT().AttesterDuties(gomock.Any(), phase0.Epoch(4), testIndices).Return(nil, nil).Times(1)
	f.beacon.EXPECT().ProposerDuties(gomock.Any(), phase0.Epoch(3), testIndices).Return([]*types.ProposerDuty{proposer}, nil).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.scheduler.Run(ctx) }()

	require.Eventually(t, func() bool { return len(f.executor.all()) == 2 }, 5*time.Second, 10*time.Millisecond)
	served := map[types.Duty]bool{}
	for _, e := range f.executor.all() {
		require.False(t, e.supersede)
		served[e.duty] = true
	}
	require.True(t, served[attester])
	require.True(t, served[proposer])

	// Duties are fetched once per epoch and slot 101 is not due yet.
	f.ticker.slot = 100
	f.ticker.ch <- time.Now()
	time.Sleep(50 * time.Millisecond)
	require.Len(t, f.executor.all(), 2)

	cancel()
	require.NoError(t, <-done)
}

func TestSchedulerSupersedesChangedDuty(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	logger := logging.TestLogger(t)

	original := attesterDuty(100, 2)
	corrected := attesterDuty(100, 5)
	gomock.InOrder(
		f.beacon.EXPECT().AttesterDuties(gomock.Any(), phase0.Epoch(3), testIndices).Return([]*types.AttestationDuty{original}, nil),
		f.beacon.EXPECT().AttesterDuties(gomock.Any(), phase0.Epoch(3), testIndices).Return([]*types.AttestationDuty{corrected}, nil),
	)
	f.beacon.EXPECT().AttesterDuties(gomock.Any(), phase0.Epoch(4), testIndices).Return(nil, nil)
	f.beacon.EXPECT().ProposerDuties(gomock.Any(), phase0.Epoch(3), testIndices).Return(nil, nil)

	first := pool.New().WithContext(ctx)
	f.scheduler.onSlot(ctx, 100)
	f.scheduler.dispatch(first)
	require.NoError(t, first.Wait())

	second := pool.New().WithContext(ctx)
	f.scheduler.fetchAttesters(ctx, logger, 3, true)
	f.scheduler.dispatch(second)
	require.NoError(t, second.Wait())

	executed := f.executor.all()
	require.Len(t, executed, 2)
	require.Equal(t, executedDuty{duty: original}, executed[0])
	require.Equal(t, executedDuty{duty: corrected, supersede: true}, executed[1])
	require.Equal(t, corrected, f.scheduler.store.Attester.ValidatorDuty(3, 100, protocoltesting.TestValidatorIndex))
}

func TestSchedulerFetchFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)

	gomock.InOrder(
		f.beacon.EXPECT().AttesterDuties(gomock.Any(), phase0.Epoch(3), testIndices).Return(nil, context.DeadlineExceeded),
		f.beacon.EXPECT().AttesterDuties(gomock.Any(), phase0.Epoch(3), testIndices).Return([]*types.AttestationDuty{attesterDuty(101, 2)}, nil),
	)
	f.beacon.EXPECT().AttesterDuties(gomock.Any(), phase0.Epoch(4), testIndices).Return(nil, nil)
	f.beacon.EXPECT().ProposerDuties(gomock.Any(), phase0.Epoch(3), testIndices).Return(nil, nil)

	f.scheduler.onSlot(ctx, 100)
	require.False(t, f.scheduler.store.Attester.HasEpoch(3))

	f.scheduler.onSlot(ctx, 101)
	require.True(t, f.scheduler.store.Attester.HasEpoch(3))
	_, serviceTime, ok := f.scheduler.queue.Head()
	require.True(t, ok)
	require.Equal(t, f.beaconConfig.SlotStartTime(101).Add(4*time.Second).UnixNano(), serviceTime)
}
