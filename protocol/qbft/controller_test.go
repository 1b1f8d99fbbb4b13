package qbft

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	specqbft "github.com/ssvlabs/ssv-spec/qbft"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ssvlabs/dvnode/beacon/mocks"
	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/network/inmem"
	protocoltesting "github.com/ssvlabs/dvnode/protocol/testing"
	"github.com/ssvlabs/dvnode/protocol/types"
	"github.com/ssvlabs/dvnode/slashingprotection"
	"github.com/ssvlabs/dvnode/storage/basedb"
	"github.com/ssvlabs/dvnode/storage/kv"
)

const (
	testSlot      = phase0.Slot(100)
	testCommittee = phase0.CommitteeIndex(2)
)

var testGraffiti = [32]byte{'d', 'v'}

type testNode struct {
	controller *Controller
	beacon     *mocks.MockBeaconNode
	store      *slashingprotection.Store
}

type testCluster struct {
	*protocoltesting.Cluster
	hub   *inmem.Hub
	nodes map[uint64]*testNode
}

func newTestCluster(t *testing.T, cfg Config) *testCluster {
	logger := logging.TestLogger(t)
	ctrl := gomock.NewController(t)
	tc := &testCluster{
		Cluster: protocoltesting.NewCluster(t, 3, 4),
		hub:     inmem.NewHub(),
		nodes:   make(map[uint64]*testNode),
	}
	for self := uint64(1); self <= tc.Size(); self++ {
		dv := tc.DV(self)
		db, err := kv.NewInMemory(logger, basedb.Options{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		store := slashingprotection.New(logger, db)

		transport := tc.hub.Join(logger, dv)
		beacon := mocks.NewMockBeaconNode(ctrl)
		check := NewValueCheck(store, tc.Bridge(logger, self))
		controller := NewController(logger, dv, transport, beacon, check, cfg)
		transport.UseConsensusRouter(controller)

		tc.nodes[self] = &testNode{controller: controller, beacon: beacon, store: store}
	}
	return tc
}

// nodeAttestationData differs per co-validator so the decided value tells whose
// candidate won.
func nodeAttestationData(self uint64) *phase0.AttestationData {
	data := protocoltesting.AttestationData(testSlot, testCommittee, 2, 3)
	data.BeaconBlockRoot[2] = byte(self)
	return data
}

func (tc *testCluster) expectAttestationData() {
	for self, node := range tc.nodes {
		node.beacon.EXPECT().AttestationData(gomock.Any(), testSlot, testCommittee).Return(nodeAttestationData(self), nil).AnyTimes()
	}
}

type decision struct {
	value *CandidateValue
	err   error
}

// decideAll runs Decide on the given co-validators concurrently.
func (tc *testCluster) decideAll(ctx context.Context, duty types.Duty, selves []uint64, opts ...DecideOption) map[uint64]decision {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[uint64]decision)
	)
	for _, self := range selves {
		wg.Add(1)
		go func(self uint64) {
			defer wg.Done()
			value, err := tc.nodes[self].controller.Decide(ctx, duty, opts...)
			mu.Lock()
			defer mu.Unlock()
			results[self] = decision{value: value, err: err}
		}(self)
	}
	wg.Wait()
	return results
}

func fixedRoundTimeout(d time.Duration) func(specqbft.Round) time.Duration {
	return func(specqbft.Round) time.Duration { return d }
}

func TestControllerAgreement(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	t.Run("all co-validators decide the leader's candidate", func(t *testing.T) {
		tc := newTestCluster(t, Config{RoundTimeout: fixedRoundTimeout(time.Second)})
		tc.expectAttestationData()
		duty := tc.AttestationDuty(testSlot, testCommittee, 16, 3)

		results := tc.decideAll(ctx, duty, []uint64{1, 2, 3, 4})
		// (100 + 1) mod 4 selects co-validator 2.
		for self, result := range results {
			require.NoError(t, result.err, "co-validator %d", self)
			require.Equal(t, nodeAttestationData(2), result.value.Attestation, "co-validator %d", self)
		}
	})

	t.Run("silent leader is replaced", func(t *testing.T) {
		tc := newTestCluster(t, Config{RoundTimeout: fixedRoundTimeout(300 * time.Millisecond)})
		tc.expectAttestationData()
		duty := tc.AttestationDuty(testSlot, testCommittee, 16, 3)

		results := tc.decideAll(ctx, duty, []uint64{1, 3, 4})
		// Round 2 is led by co-validator 3.
		for self, result := range results {
			require.NoError(t, result.err, "co-validator %d", self)
			require.Equal(t, nodeAttestationData(3), result.value.Attestation, "co-validator %d", self)
		}
	})

	t.Run("proposal", func(t *testing.T) {
		tc := newTestCluster(t, Config{RoundTimeout: fixedRoundTimeout(time.Second), Graffiti: testGraffiti})
		reveal := phase0.BLSSignature{0x0f}
		block := protocoltesting.Block(testSlot, protocoltesting.TestValidatorIndex, reveal, testGraffiti)
		for _, node := range tc.nodes {
			node.beacon.EXPECT().BeaconBlock(gomock.Any(), testSlot, reveal, testGraffiti).Return(block, nil).AnyTimes()
		}
		duty := tc.ProposerDuty(testSlot)

		_, err := tc.nodes[1].controller.Decide(ctx, duty)
		require.ErrorContains(t, err, "randao reveal")

		want, err := block.HashTreeRoot()
		require.NoError(t, err)
		results := tc.decideAll(ctx, duty, []uint64{1, 2, 3, 4}, WithRandaoReveal(reveal))
		for self, result := range results {
			require.NoError(t, result.err, "co-validator %d", self)
			got, err := result.value.Block.HashTreeRoot()
			require.NoError(t, err)
			require.Equal(t, want, got, "co-validator %d", self)
		}
	})
}

func TestControllerTimeout(t *testing.T) {
	tc := newTestCluster(t, Config{RoundBudget: 3, RoundTimeout: fixedRoundTimeout(50 * time.Millisecond)})
	tc.expectAttestationData()
	duty := tc.AttestationDuty(testSlot, testCommittee, 16, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	results := tc.decideAll(ctx, duty, []uint64{1, 2})
	for self, result := range results {
		require.ErrorIs(t, result.err, types.ErrConsensusTimeout, "co-validator %d", self)
		require.Nil(t, result.value)
	}

	t.Run("context done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := tc.nodes[3].controller.Decide(ctx, duty)
		require.ErrorIs(t, err, types.ErrConsensusTimeout)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestControllerResumesAfterTimeout(t *testing.T) {
	// Early rounds time out quickly so the first attempt runs out; later ones leave room to decide.
	timeout := func(round specqbft.Round) time.Duration {
		if round <= 2 {
			return 50 * time.Millisecond
		}
		return 10 * time.Second
	}
	tc := newTestCluster(t, Config{RoundBudget: 2, RoundTimeout: timeout})
	tc.expectAttestationData()
	duty := tc.AttestationDuty(testSlot, testCommittee, 16, 3)
	id := types.InstanceID{ValidatorPubKey: tc.ValidatorPubKey(), Kind: types.KindAttestation, Height: specqbft.Height(testSlot)}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	for self, result := range tc.decideAll(ctx, duty, []uint64{1, 2}) {
		require.ErrorIs(t, result.err, types.ErrConsensusTimeout, "co-validator %d", self)
	}
	for _, self := range []uint64{1, 2} {
		require.True(t, tc.nodes[self].controller.suspended.Has(id), "co-validator %d", self)
	}

	results := tc.decideAll(ctx, duty, []uint64{1, 2, 3, 4})
	var want *phase0.AttestationData
	for self, result := range results {
		require.NoError(t, result.err, "co-validator %d", self)
		require.NotNil(t, result.value.Attestation)
		if want == nil {
			want = result.value.Attestation
		}
		require.Equal(t, want, result.value.Attestation, "co-validator %d", self)
	}
	for self, node := range tc.nodes {
		require.False(t, node.controller.suspended.Has(id), "co-validator %d", self)
	}
}

func TestControllerRejectsSlashableProposal(t *testing.T) {
	tc := newTestCluster(t, Config{RoundBudget: 2, RoundTimeout: fixedRoundTimeout(100 * time.Millisecond)})
	tc.expectAttestationData()
	duty := tc.AttestationDuty(testSlot, testCommittee, 16, 3)

	// Everyone already signed a conflicting vote for the same target.
	conflicting := protocoltesting.AttestationData(testSlot, testCommittee, 2, 3)
	conflicting.BeaconBlockRoot = phase0.Root{0xff}
	for self, node := range tc.nodes {
		root, err := tc.Bridge(logging.TestLogger(t), self).AttestationSigningRoot(context.Background(), conflicting)
		require.NoError(t, err)
		require.NoError(t, node.store.RecordAttestation(tc.ValidatorPubKey(), conflicting, root))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for self, result := range tc.decideAll(ctx, duty, []uint64{1, 2, 3, 4}) {
		require.ErrorIs(t, result.err, types.ErrConsensusTimeout, "co-validator %d", self)
	}
}

func TestControllerRouting(t *testing.T) {
	tc := newTestCluster(t, Config{RoundTimeout: fixedRoundTimeout(time.Hour)})
	tc.expectAttestationData()
	duty := tc.AttestationDuty(testSlot, testCommittee, 16, 3)
	controller := tc.nodes[1].controller
	id := types.InstanceID{ValidatorPubKey: tc.ValidatorPubKey(), Kind: types.KindAttestation, Height: specqbft.Height(testSlot)}

	early := &Message{
		MsgType:         specqbft.PrepareMsgType,
		ValidatorPubKey: id.ValidatorPubKey,
		Kind:            id.Kind,
		Height:          id.Height,
		Round:           specqbft.FirstRound,
		Signer:          2,
	}
	controller.RouteConsensus(context.Background(), early)
	require.True(t, controller.early.Has(id))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := controller.Decide(ctx, duty)
		done <- err
	}()

	require.Eventually(t, func() bool {
		controller.mu.Lock()
		defer controller.mu.Unlock()
		_, running := controller.instances[id]
		return running
	}, 5*time.Second, 10*time.Millisecond)
	require.False(t, controller.early.Has(id), "early messages are replayed on start")

	_, err := controller.Decide(ctx, duty)
	require.ErrorIs(t, err, ErrInstanceRunning)

	cancel()
	require.ErrorIs(t, <-done, types.ErrConsensusTimeout)

	// Late messages of a finished instance are dropped.
	controller.RouteConsensus(context.Background(), early)
	require.False(t, controller.early.Has(id))
}
