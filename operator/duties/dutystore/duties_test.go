package dutystore

import (
	"testing"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/stretchr/testify/require"

	"github.com/ssvlabs/dvnode/protocol/types"
)

func TestDuties(t *testing.T) {
	store := New()
	duty := &types.AttestationDuty{ValidatorIndex: 1, Slot: 33, CommitteeIndex: 2}

	require.False(t, store.Attester.HasEpoch(1))
	require.Nil(t, store.Attester.Add(1, 33, 1, duty))
	require.True(t, store.Attester.HasEpoch(1))
	require.Equal(t, duty, store.Attester.ValidatorDuty(1, 33, 1))
	require.Nil(t, store.Attester.ValidatorDuty(1, 34, 1))
	require.Equal(t, []*types.AttestationDuty{duty}, store.Attester.SlotDuties(1, 33))
	require.Empty(t, store.Attester.SlotDuties(2, 33))

	updated := &types.AttestationDuty{ValidatorIndex: 1, Slot: 33, CommitteeIndex: 5}
	require.Equal(t, duty, store.Attester.Add(1, 33, 1, updated))
	require.Equal(t, updated, store.Attester.ValidatorDuty(1, 33, 1))

	store.Attester.ResetEpoch(1)
	require.False(t, store.Attester.HasEpoch(1))

	store.Proposer.MarkFetched(phase0.Epoch(3))
	require.True(t, store.Proposer.HasEpoch(3))
	require.Empty(t, store.Proposer.SlotDuties(3, 96))
}
