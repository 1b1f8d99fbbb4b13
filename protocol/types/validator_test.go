package types

import (
	"testing"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/stretchr/testify/require"
)

func testDV(n, threshold uint64) *DistributedValidator {
	pk := phase0.BLSPubKey{1}
	dv := &DistributedValidator{
		Identity:  ValidatorIdentity{PubKey: pk, Index: 7},
		Threshold: threshold,
		SelfIndex: 1,
	}
	for i := uint64(1); i <= n; i++ {
		dv.CoValidators = append(dv.CoValidators, &CoValidator{ValidatorPubKey: pk, Index: i})
	}
	return dv
}

func TestDistributedValidator(t *testing.T) {
	t.Run("quorums", func(t *testing.T) {
		require.EqualValues(t, 3, testDV(4, 3).ConsensusQuorum())
		require.EqualValues(t, 4, testDV(5, 3).ConsensusQuorum())
		require.EqualValues(t, 5, testDV(7, 5).ConsensusQuorum())
		require.EqualValues(t, 3, testDV(4, 3).Quorum())
	})

	t.Run("validate", func(t *testing.T) {
		require.NoError(t, testDV(4, 3).Validate())
		require.Error(t, testDV(4, 5).Validate())

		dv := testDV(4, 3)
		dv.SelfIndex = 9
		require.Error(t, dv.Validate())

		dv = testDV(4, 3)
		dv.CoValidators[1].Index = 1
		require.Error(t, dv.Validate())
	})

	t.Run("sorted indices", func(t *testing.T) {
		dv := testDV(3, 2)
		dv.CoValidators[0].Index, dv.CoValidators[2].Index = 3, 1
		require.Equal(t, []uint64{1, 2, 3}, dv.SortedIndices())
	})
}

func TestDutyKindText(t *testing.T) {
	for _, kind := range []DutyKind{KindAttestation, KindProposal, KindRandao} {
		text, err := kind.MarshalText()
		require.NoError(t, err)

		var decoded DutyKind
		require.NoError(t, decoded.UnmarshalText(text))
		require.Equal(t, kind, decoded)
	}

	_, err := DutyKind(42).MarshalText()
	require.Error(t, err)
}
