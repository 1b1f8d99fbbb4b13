package signer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/herumi/bls-eth-go-binary/bls"
	"github.com/stretchr/testify/require"

	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/networkconfig"
	"github.com/ssvlabs/dvnode/protocol/types"
	"github.com/ssvlabs/dvnode/utils/threshold"
)

type staticDomains struct {
	forkVersion           phase0.Version
	genesisValidatorsRoot phase0.Root
	err                   error
}

func (d *staticDomains) ForkVersion(context.Context, phase0.Slot) (phase0.Version, error) {
	return d.forkVersion, d.err
}

func (d *staticDomains) GenesisValidatorsRoot(context.Context) (phase0.Root, error) {
	return d.genesisValidatorsRoot, d.err
}

func TestComputeDomain(t *testing.T) {
	// Mainnet deposit domain.
	domain, err := ComputeDomain(phase0.DomainType{0x03, 0x00, 0x00, 0x00}, phase0.Version{}, phase0.Root{})
	require.NoError(t, err)
	require.Equal(t, "0x03000000f5a5fd42d16a20302798ef6ed309979b43003d2320d9f0e8ea9831a9", hexutil.Encode(domain[:]))

	attester, err := DomainType(types.KindAttestation)
	require.NoError(t, err)
	phase0Domain, err := ComputeDomain(attester, phase0.Version{}, phase0.Root{1})
	require.NoError(t, err)
	altairDomain, err := ComputeDomain(attester, phase0.Version{1}, phase0.Root{1})
	require.NoError(t, err)
	require.Equal(t, attester[:], phase0Domain[:4])
	require.NotEqual(t, phase0Domain, altairDomain)

	_, err = DomainType(types.DutyKind(0))
	require.Error(t, err)
}

type bridgeFixture struct {
	keys    *threshold.KeySet
	dv      *types.DistributedValidator
	domains *staticDomains
	bridge  *Bridge
}

func newBridgeFixture(t *testing.T) *bridgeFixture {
	keys, err := threshold.GenerateKeySet(3, 4)
	require.NoError(t, err)

	dv := keys.DistributedValidator(42, 2)
	domains := &staticDomains{forkVersion: phase0.Version{0x01}, genesisValidatorsRoot: phase0.Root{0xaa}}
	beaconConfig := networkconfig.NewLocalBeaconConfig(time.Now(), 12*time.Second, domains.genesisValidatorsRoot)

	return &bridgeFixture{
		keys:    keys,
		dv:      dv,
		domains: domains,
		bridge:  NewBridge(logging.TestLogger(t), dv, NewLocalSigner(keys.Shares[2]), domains, beaconConfig),
	}
}

func verifyShare(t *testing.T, share *types.PartialSignature, key *bls.SecretKey) {
	sig, err := types.DeserializeBLSSignature(share.Signature)
	require.NoError(t, err)
	root := share.SigningRoot
	require.True(t, sig.VerifyByte(key.GetPublicKey(), root[:]))
}

func TestBridgeSignAttestation(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	duty := &types.AttestationDuty{
		PubKey:                  f.keys.ValidatorPubKey(),
		ValidatorIndex:          42,
		CommitteeLength:         16,
		ValidatorCommitteeIndex: 5,
		Slot:                    100,
	}
	data := &phase0.AttestationData{
		Slot:            100,
		BeaconBlockRoot: phase0.Root{0x01},
		Source:          &phase0.Checkpoint{Epoch: 2},
		Target:          &phase0.Checkpoint{Epoch: 3, Root: phase0.Root{0x02}},
	}

	share, err := f.bridge.SignAttestation(ctx, duty, data)
	require.NoError(t, err)
	require.Equal(t, types.KindAttestation, share.Kind)
	require.EqualValues(t, 2, share.Signer)
	require.EqualValues(t, 16, share.CommitteeLength)
	require.EqualValues(t, 5, share.ValidatorCommitteeIndex)
	require.NoError(t, share.Validate())
	verifyShare(t, share, f.keys.Shares[2])

	attester, err := DomainType(types.KindAttestation)
	require.NoError(t, err)
	domain, err := ComputeDomain(attester, f.domains.forkVersion, f.domains.genesisValidatorsRoot)
	require.NoError(t, err)
	objectRoot, err := data.HashTreeRoot()
	require.NoError(t, err)
	expected, err := (&phase0.SigningData{ObjectRoot: objectRoot, Domain: domain}).HashTreeRoot()
	require.NoError(t, err)
	require.Equal(t, phase0.Root(expected), share.SigningRoot)

	decoded := &phase0.AttestationData{}
	require.NoError(t, decoded.UnmarshalSSZ(share.Object))
	require.Equal(t, data, decoded)
}

func TestBridgeSignProposal(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()
	duty := &types.ProposerDuty{PubKey: f.keys.ValidatorPubKey(), ValidatorIndex: 42, Slot: 64}

	randao, err := f.bridge.SignRandao(ctx, duty, 2)
	require.NoError(t, err)
	require.Equal(t, types.KindRandao, randao.Kind)
	verifyShare(t, randao, f.keys.Shares[2])

	block := &phase0.BeaconBlock{
		Slot:          64,
		ProposerIndex: 42,
		Body: &phase0.BeaconBlockBody{
			ETH1Data:          &phase0.ETH1Data{BlockHash: make([]byte, 32)},
			ProposerSlashings: []*phase0.ProposerSlashing{},
			AttesterSlashings: []*phase0.AttesterSlashing{},
			Attestations:      []*phase0.Attestation{},
			Deposits:          []*phase0.Deposit{},
			VoluntaryExits:    []*phase0.SignedVoluntaryExit{},
		},
	}
	proposal, err := f.bridge.SignBlock(ctx, duty, block)
	require.NoError(t, err)
	require.Equal(t, types.KindProposal, proposal.Kind)
	require.NotEqual(t, randao.SigningRoot, proposal.SigningRoot)
	verifyShare(t, proposal, f.keys.Shares[2])
}

func TestBridgeErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("domain unavailable", func(t *testing.T) {
		f := newBridgeFixture(t)
		f.domains.err = errors.New("beacon node offline")
		duty := &types.ProposerDuty{PubKey: f.keys.ValidatorPubKey(), Slot: 64}

		_, err := f.bridge.SignRandao(ctx, duty, 2)
		require.ErrorIs(t, err, types.ErrSigningUnavailable)
	})

	t.Run("oracle missing share", func(t *testing.T) {
		f := newBridgeFixture(t)
		f.bridge.signer = NewLocalSigner(f.keys.Shares[1])
		duty := &types.ProposerDuty{PubKey: f.keys.ValidatorPubKey(), Slot: 64}

		_, err := f.bridge.SignRandao(ctx, duty, 2)
		require.ErrorIs(t, err, types.ErrSigningUnavailable)
	})

	t.Run("cancelled", func(t *testing.T) {
		f := newBridgeFixture(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		duty := &types.ProposerDuty{PubKey: f.keys.ValidatorPubKey(), Slot: 64}

		_, err := f.bridge.SignRandao(cancelled, duty, 2)
		require.ErrorIs(t, err, types.ErrSigningUnavailable)
	})

	t.Run("foreign duty", func(t *testing.T) {
		f := newBridgeFixture(t)
		duty := &types.ProposerDuty{PubKey: phase0.BLSPubKey{0x99}, Slot: 64}

		_, err := f.bridge.SignRandao(ctx, duty, 2)
		require.Error(t, err)
		require.NotErrorIs(t, err, types.ErrSigningUnavailable)
	})
}
