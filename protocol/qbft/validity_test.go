package qbft

import (
	"context"
	"testing"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/stretchr/testify/require"

	"github.com/ssvlabs/dvnode/logging"
	protocoltesting "github.com/ssvlabs/dvnode/protocol/testing"
	"github.com/ssvlabs/dvnode/protocol/types"
	"github.com/ssvlabs/dvnode/signer"
	"github.com/ssvlabs/dvnode/slashingprotection"
	"github.com/ssvlabs/dvnode/storage/basedb"
	"github.com/ssvlabs/dvnode/storage/kv"
)

func newValueCheckFixture(t *testing.T) (*ValueCheck, *slashingprotection.Store, *signer.Bridge, *protocoltesting.Cluster) {
	logger := logging.TestLogger(t)
	cluster := protocoltesting.NewCluster(t, 3, 4)
	db, err := kv.NewInMemory(logger, basedb.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := slashingprotection.New(logger, db)
	bridge := cluster.Bridge(logger, 1)
	return NewValueCheck(store, bridge), store, bridge, cluster
}

func TestValidityAttestation(t *testing.T) {
	ctx := context.Background()
	check, store, bridge, cluster := newValueCheckFixture(t)
	duty := cluster.AttestationDuty(testSlot, testCommittee, 16, 3)

	t.Run("valid", func(t *testing.T) {
		candidate := &CandidateValue{Attestation: protocoltesting.AttestationData(testSlot, testCommittee, 2, 3)}
		require.NoError(t, check.Validity(ctx, candidate, duty))
	})

	t.Run("slot mismatch", func(t *testing.T) {
		candidate := &CandidateValue{Attestation: protocoltesting.AttestationData(testSlot+1, testCommittee, 2, 3)}
		require.ErrorIs(t, check.Validity(ctx, candidate, duty), ErrSlotMismatch)
	})

	t.Run("committee mismatch", func(t *testing.T) {
		candidate := &CandidateValue{Attestation: protocoltesting.AttestationData(testSlot, testCommittee+1, 2, 3)}
		require.ErrorIs(t, check.Validity(ctx, candidate, duty), ErrCommitteeMismatch)
	})

	t.Run("incomplete", func(t *testing.T) {
		data := protocoltesting.AttestationData(testSlot, testCommittee, 2, 3)
		data.Target = nil
		require.Error(t, check.Validity(ctx, &CandidateValue{Attestation: data}, duty))
		require.Error(t, check.Validity(ctx, &CandidateValue{}, duty))
	})

	t.Run("slashable", func(t *testing.T) {
		recorded := protocoltesting.AttestationData(testSlot, testCommittee, 2, 3)
		root, err := bridge.AttestationSigningRoot(ctx, recorded)
		require.NoError(t, err)
		require.NoError(t, store.RecordAttestation(cluster.ValidatorPubKey(), recorded, root))

		// Same target, different head.
		conflicting := protocoltesting.AttestationData(testSlot, testCommittee, 2, 3)
		conflicting.BeaconBlockRoot[5] = 0xff
		err = check.Validity(ctx, &CandidateValue{Attestation: conflicting}, duty)
		require.ErrorIs(t, err, types.ErrSlashingViolation)

		// Re-signing what was recorded stays valid.
		require.NoError(t, check.Validity(ctx, &CandidateValue{Attestation: recorded}, duty))
	})
}

func TestValidityProposal(t *testing.T) {
	ctx := context.Background()
	check, store, bridge, cluster := newValueCheckFixture(t)
	duty := cluster.ProposerDuty(testSlot)

	t.Run("valid", func(t *testing.T) {
		block := protocoltesting.Block(testSlot, protocoltesting.TestValidatorIndex, phase0.BLSSignature{0x01}, testGraffiti)
		require.NoError(t, check.Validity(ctx, &CandidateValue{Block: block}, duty))
	})

	t.Run("slot mismatch", func(t *testing.T) {
		block := protocoltesting.Block(testSlot-1, protocoltesting.TestValidatorIndex, phase0.BLSSignature{0x01}, testGraffiti)
		require.ErrorIs(t, check.Validity(ctx, &CandidateValue{Block: block}, duty), ErrSlotMismatch)
	})

	t.Run("proposer mismatch", func(t *testing.T) {
		block := protocoltesting.Block(testSlot, protocoltesting.TestValidatorIndex+1, phase0.BLSSignature{0x01}, testGraffiti)
		require.ErrorIs(t, check.Validity(ctx, &CandidateValue{Block: block}, duty), ErrProposerMismatch)
	})

	t.Run("slashable", func(t *testing.T) {
		recorded := protocoltesting.Block(testSlot, protocoltesting.TestValidatorIndex, phase0.BLSSignature{0x01}, testGraffiti)
		root, err := bridge.BlockSigningRoot(ctx, recorded)
		require.NoError(t, err)
		require.NoError(t, store.RecordBlock(cluster.ValidatorPubKey(), testSlot, root))

		other := protocoltesting.Block(testSlot, protocoltesting.TestValidatorIndex, phase0.BLSSignature{0x02}, testGraffiti)
		err = check.Validity(ctx, &CandidateValue{Block: other}, duty)
		require.ErrorIs(t, err, types.ErrSlashingViolation)
	})

	t.Run("wrong duty", func(t *testing.T) {
		require.Error(t, check.Validity(ctx, &CandidateValue{}, randaoDuty{slot: testSlot}))
	})
}

type randaoDuty struct{ slot phase0.Slot }

func (d randaoDuty) Kind() types.DutyKind              { return types.KindRandao }
func (d randaoDuty) DutySlot() phase0.Slot             { return d.slot }
func (d randaoDuty) ValidatorPubKey() phase0.BLSPubKey { return phase0.BLSPubKey{} }
