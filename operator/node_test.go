package operator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ssvlabs/dvnode/beacon/mocks"
	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/network"
	"github.com/ssvlabs/dvnode/network/inmem"
	"github.com/ssvlabs/dvnode/operator/slotticker"
	protocoltesting "github.com/ssvlabs/dvnode/protocol/testing"
	"github.com/ssvlabs/dvnode/protocol/types"
	"github.com/ssvlabs/dvnode/slashingprotection"
	"github.com/ssvlabs/dvnode/storage/basedb"
	"github.com/ssvlabs/dvnode/storage/kv"
)

const (
	testSlot      = phase0.Slot(100)
	testEpoch     = phase0.Epoch(3)
	testCommittee = phase0.CommitteeIndex(2)
)

// idleTicker never ticks, so only the duties of the slot the node starts in are served.
type idleTicker struct{}

func (idleTicker) Next() <-chan time.Time { return nil }
func (idleTicker) Slot() phase0.Slot      { return 0 }

type submissions struct {
	mu           sync.Mutex
	attestations map[uint64][]*phase0.Attestation
}

func (s *submissions) add(self uint64, att *phase0.Attestation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attestations[self] = append(s.attestations[self], att)
}

func (s *submissions) count(self uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attestations[self])
}

func (s *submissions) get(self uint64) []*phase0.Attestation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*phase0.Attestation(nil), s.attestations[self]...)
}

// TestNodeServesAttestation runs 4 co-validators with threshold 3 through a full
// attestation duty at slot 100. Shares of co-validator 4 never arrive.
func TestNodeServesAttestation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger := logging.TestLogger(t)

	// Slot 100 began 5 seconds ago, so its attestation is due.
	genesis := time.Now().Add(-(time.Duration(testSlot)*12*time.Second + 5*time.Second))
	cluster := protocoltesting.NewClusterWithGenesis(t, 3, 4, genesis)
	require.Equal(t, testSlot, cluster.BeaconConfig.EstimatedCurrentSlot())

	duty := cluster.AttestationDuty(testSlot, testCommittee, 16, 3)
	data := protocoltesting.AttestationData(testSlot, testCommittee, 9, 10)

	hub := inmem.NewHub()
	hub.SetFilter(func(from, _ uint64, msg *network.Message) bool {
		return from != 4 || msg.Type != network.MsgPartialSignature
	})

	submitted := &submissions{attestations: make(map[uint64][]*phase0.Attestation)}
	stores := make(map[uint64]*slashingprotection.Store)
	nodes := make(map[uint64]*Node)
	ctrl := gomock.NewController(t)
	for self := uint64(1); self <= cluster.Size(); self++ {
		db, err := kv.NewInMemory(logger, basedb.Options{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		beaconNode := mocks.NewMockBeaconNode(ctrl)
		beaconNode.EXPECT().ForkVersion(gomock.Any(), gomock.Any()).Return(protocoltesting.TestForkVersion, nil).AnyTimes()
		beaconNode.EXPECT().GenesisValidatorsRoot(gomock.Any()).Return(protocoltesting.TestGenesisValidatorsRoot, nil).AnyTimes()
		beaconNode.EXPECT().AttesterDuties(gomock.Any(), testEpoch, gomock.Any()).Return([]*types.AttestationDuty{duty}, nil).AnyTimes()
		beaconNode.EXPECT().AttesterDuties(gomock.Any(), testEpoch+1, gomock.Any()).Return(nil, nil).AnyTimes()
		beaconNode.EXPECT().ProposerDuties(gomock.Any(), testEpoch, gomock.Any()).Return(nil, nil).AnyTimes()
		beaconNode.EXPECT().AttestationData(gomock.Any(), testSlot, testCommittee).Return(data, nil).AnyTimes()
		beaconNode.EXPECT().SubmitAttestation(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, att *phase0.Attestation) error {
				submitted.add(self, att)
				return nil
			}).AnyTimes()

		stores[self] = slashingprotection.New(logger, db)
		node, err := New(logger, Options{
			DV:                 cluster.DV(self),
			BeaconNode:         beaconNode,
			BeaconConfig:       cluster.BeaconConfig,
			Transport:          hub.Join(logger, cluster.DV(self)),
			Signer:             cluster.Signer(self),
			SlashingStore:      stores[self],
			SlotTickerProvider: func() slotticker.SlotTicker { return idleTicker{} },
		})
		require.NoError(t, err)
		nodes[self] = node
	}

	errs := make(chan error, len(nodes))
	for _, node := range nodes {
		go func() { errs <- node.Start(ctx) }()
	}

	require.Eventually(t, func() bool {
		for self := range nodes {
			if submitted.count(self) == 0 {
				return false
			}
		}
		return true
	}, 20*time.Second, 50*time.Millisecond)

	// Give late shares a chance to cause a second submission.
	time.Sleep(500 * time.Millisecond)
	cancel()
	for range nodes {
		require.NoError(t, <-errs)
	}

	root, err := cluster.Bridge(logger, 1).AttestationSigningRoot(context.Background(), data)
	require.NoError(t, err)
	for self := range nodes {
		atts := submitted.get(self)
		require.Len(t, atts, 1, "co-validator %d", self)
		att := atts[0]
		require.Equal(t, data, att.Data)
		require.True(t, att.AggregationBits.BitAt(duty.ValidatorCommitteeIndex))
		require.Equal(t, uint64(1), att.AggregationBits.Count())

		sig, err := types.DeserializeBLSSignature(att.Signature)
		require.NoError(t, err)
		require.True(t, sig.VerifyByte(cluster.Keys.ValidatorKey.GetPublicKey(), root[:]))

		record, err := stores[self].Record(cluster.ValidatorPubKey())
		require.NoError(t, err)
		require.Len(t, record.SignedAttestations, 1)
	}
}

func TestNewRejectsInvalidValidator(t *testing.T) {
	logger := logging.TestLogger(t)
	cluster := protocoltesting.NewCluster(t, 3, 4)
	dv := cluster.DV(1)
	dv.SelfIndex = 7

	_, err := New(logger, Options{DV: dv, SlashingStore: &slashingprotection.Store{}})
	require.ErrorContains(t, err, "invalid distributed validator")

	_, err = New(logger, Options{DV: cluster.DV(1)})
	require.ErrorContains(t, err, "missing slashing protection store")
}
