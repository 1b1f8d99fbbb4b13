package goclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/attestantio/go-eth2-client/api"
	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/prysmaticlabs/go-bitfield"
	"github.com/stretchr/testify/require"

	"github.com/ssvlabs/dvnode/beacon"
	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/networkconfig"
	"github.com/ssvlabs/dvnode/protocol/types"
)

type fakeClient struct {
	genesis         *apiv1.Genesis
	forks           []*phase0.Fork
	attesterDuties  []*apiv1.AttesterDuty
	proposerDuties  []*apiv1.ProposerDuty
	attestationData *phase0.AttestationData
	proposal        *api.VersionedProposal
	syncState       *apiv1.SyncState
	submitErr       error

	genesisCalls          int
	attestationCalls      atomic.Int32
	attestationRelease    chan struct{}
	submittedAttestations []*spec.VersionedAttestation
	submittedProposals    []*api.VersionedSignedProposal
}

func (f *fakeClient) Address() string { return "fake:5052" }

func (f *fakeClient) Genesis(context.Context, *api.GenesisOpts) (*api.Response[*apiv1.Genesis], error) {
	f.genesisCalls++
	return &api.Response[*apiv1.Genesis]{Data: f.genesis}, nil
}

func (f *fakeClient) NodeSyncing(context.Context, *api.NodeSyncingOpts) (*api.Response[*apiv1.SyncState], error) {
	if f.syncState == nil {
		return nil, errors.New("connection refused")
	}
	return &api.Response[*apiv1.SyncState]{Data: f.syncState}, nil
}

func (f *fakeClient) ForkSchedule(context.Context, *api.ForkScheduleOpts) (*api.Response[[]*phase0.Fork], error) {
	return &api.Response[[]*phase0.Fork]{Data: f.forks}, nil
}

func (f *fakeClient) AttesterDuties(context.Context, *api.AttesterDutiesOpts) (*api.Response[[]*apiv1.AttesterDuty], error) {
	return &api.Response[[]*apiv1.AttesterDuty]{Data: f.attesterDuties}, nil
}

func (f *fakeClient) ProposerDuties(context.Context, *api.ProposerDutiesOpts) (*api.Response[[]*apiv1.ProposerDuty], error) {
	return &api.Response[[]*apiv1.ProposerDuty]{Data: f.proposerDuties}, nil
}

func (f *fakeClient) AttestationData(context.Context, *api.AttestationDataOpts) (*api.Response[*phase0.AttestationData], error) {
	f.attestationCalls.Add(1)
	if f.attestationRelease != nil {
		<-f.attestationRelease
	}
	return &api.Response[*phase0.AttestationData]{Data: f.attestationData}, nil
}

func (f *fakeClient) SubmitAttestations(_ context.Context, opts *api.SubmitAttestationsOpts) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submittedAttestations = append(f.submittedAttestations, opts.Attestations...)
	return nil
}

func (f *fakeClient) Proposal(context.Context, *api.ProposalOpts) (*api.Response[*api.VersionedProposal], error) {
	return &api.Response[*api.VersionedProposal]{Data: f.proposal}, nil
}

func (f *fakeClient) SubmitProposal(_ context.Context, opts *api.SubmitProposalOpts) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submittedProposals = append(f.submittedProposals, opts.Proposal)
	return nil
}

func newTestClient(t *testing.T, client *fakeClient) *GoClient {
	cfg := networkconfig.NewLocalBeaconConfig(time.Unix(0, 0), 12*time.Second, phase0.Root{7})
	return NewWithClient(logging.TestLogger(t), client, Options{}, cfg)
}

func TestForkVersionAndGenesisAreCached(t *testing.T) {
	client := &fakeClient{
		genesis: &apiv1.Genesis{GenesisValidatorsRoot: phase0.Root{7}},
		forks: []*phase0.Fork{
			{Epoch: 0, CurrentVersion: phase0.Version{0}},
			{Epoch: 0, CurrentVersion: phase0.Version{1}},
			{Epoch: 10, CurrentVersion: phase0.Version{2}},
		},
	}
	gc := newTestClient(t, client)
	ctx := context.Background()

	root, err := gc.GenesisValidatorsRoot(ctx)
	require.NoError(t, err)
	require.Equal(t, phase0.Root{7}, root)
	_, err = gc.GenesisValidatorsRoot(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, client.genesisCalls)

	version, err := gc.ForkVersion(ctx, 31)
	require.NoError(t, err)
	require.Equal(t, phase0.Version{1}, version)

	version, err = gc.ForkVersion(ctx, 10*32)
	require.NoError(t, err)
	require.Equal(t, phase0.Version{2}, version)

	require.NoError(t, gc.assertSameNetwork(ctx))
	client.genesis.GenesisForkVersion = phase0.Version{9}
	require.ErrorContains(t, gc.assertSameNetwork(ctx), "genesis fork version mismatch")
}

func TestDuties(t *testing.T) {
	client := &fakeClient{
		attesterDuties: []*apiv1.AttesterDuty{{
			PubKey:                  phase0.BLSPubKey{1},
			Slot:                    100,
			ValidatorIndex:          5,
			CommitteeIndex:          2,
			CommitteeLength:         128,
			CommitteesAtSlot:        4,
			ValidatorCommitteeIndex: 17,
		}},
		proposerDuties: []*apiv1.ProposerDuty{
			{PubKey: phase0.BLSPubKey{1}, Slot: 101, ValidatorIndex: 5},
			{PubKey: phase0.BLSPubKey{2}, Slot: 102, ValidatorIndex: 6},
		},
	}
	gc := newTestClient(t, client)

	attesterDuties, err := gc.AttesterDuties(context.Background(), 3, []phase0.ValidatorIndex{5})
	require.NoError(t, err)
	require.Equal(t, []*types.AttestationDuty{{
		PubKey:                  phase0.BLSPubKey{1},
		ValidatorIndex:          5,
		CommitteeIndex:          2,
		CommitteeLength:         128,
		CommitteesAtSlot:        4,
		ValidatorCommitteeIndex: 17,
		Slot:                    100,
	}}, attesterDuties)

	proposerDuties, err := gc.ProposerDuties(context.Background(), 3, []phase0.ValidatorIndex{5})
	require.NoError(t, err)
	require.Len(t, proposerDuties, 1)
	require.Equal(t, phase0.Slot(101), proposerDuties[0].Slot)
}

func TestAttestation(t *testing.T) {
	data := &phase0.AttestationData{
		Slot:   100,
		Index:  2,
		Source: &phase0.Checkpoint{Epoch: 2},
		Target: &phase0.Checkpoint{Epoch: 3},
	}
	client := &fakeClient{attestationData: data}
	gc := newTestClient(t, client)

	got, err := gc.AttestationData(context.Background(), 100, 2)
	require.NoError(t, err)
	require.Equal(t, data, got)

	_, err = gc.AttestationData(context.Background(), 101, 2)
	require.ErrorContains(t, err, "does not match requested slot")

	attestation := &phase0.Attestation{AggregationBits: bitfield.NewBitlist(4), Data: data}
	require.NoError(t, gc.SubmitAttestation(context.Background(), attestation))
	require.Len(t, client.submittedAttestations, 1)
	require.Equal(t, spec.DataVersionPhase0, client.submittedAttestations[0].Version)
	require.Equal(t, attestation, client.submittedAttestations[0].Phase0)

	client.submitErr = errors.New("boom")
	require.ErrorContains(t, gc.SubmitAttestation(context.Background(), attestation), "boom")
}

func TestBeaconBlock(t *testing.T) {
	block := &phase0.BeaconBlock{Slot: 101, ProposerIndex: 5}
	client := &fakeClient{proposal: &api.VersionedProposal{Version: spec.DataVersionPhase0, Phase0: block}}
	gc := newTestClient(t, client)

	got, err := gc.BeaconBlock(context.Background(), 101, phase0.BLSSignature{1}, [32]byte{})
	require.NoError(t, err)
	require.Equal(t, block, got)

	require.NoError(t, gc.SubmitBlock(context.Background(), &phase0.SignedBeaconBlock{Message: block}))
	require.Len(t, client.submittedProposals, 1)
	require.Equal(t, block, client.submittedProposals[0].Phase0.Message)
	require.Error(t, gc.SubmitBlock(context.Background(), &phase0.SignedBeaconBlock{}))

	client.proposal = &api.VersionedProposal{Version: spec.DataVersionDeneb}
	_, err = gc.BeaconBlock(context.Background(), 101, phase0.BLSSignature{1}, [32]byte{})
	require.ErrorIs(t, err, beacon.ErrUnsupportedBlockVersion)
}

func TestHealthy(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	gc := newTestClient(t, client)
	require.ErrorContains(t, gc.Healthy(ctx), "connection refused")

	client.syncState = &apiv1.SyncState{HeadSlot: 100}
	require.NoError(t, gc.Healthy(ctx))

	client.syncState = &apiv1.SyncState{HeadSlot: 90, SyncDistance: 10, IsSyncing: true}
	require.ErrorIs(t, gc.Healthy(ctx), errSyncing)

	client.syncState = &apiv1.SyncState{HeadSlot: 100, IsOptimistic: true}
	require.ErrorIs(t, gc.Healthy(ctx), errOptimistic)
}

func TestAttestationDataSharesInflightRequest(t *testing.T) {
	data := &phase0.AttestationData{
		Slot:   100,
		Index:  2,
		Source: &phase0.Checkpoint{Epoch: 2},
		Target: &phase0.Checkpoint{Epoch: 3},
	}
	client := &fakeClient{attestationData: data, attestationRelease: make(chan struct{})}
	gc := newTestClient(t, client)

	const callers = 5
	results := make([]*phase0.AttestationData, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := gc.AttestationData(context.Background(), 100, 2)
			require.NoError(t, err)
			results[i] = got
		}(i)
	}

	require.Eventually(t, func() bool { return client.attestationCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(client.attestationRelease)
	wg.Wait()

	require.Equal(t, int32(1), client.attestationCalls.Load())
	for _, got := range results {
		require.Equal(t, data, got)
	}
}
