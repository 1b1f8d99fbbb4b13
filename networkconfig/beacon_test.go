package networkconfig

import (
	"testing"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/stretchr/testify/require"
)

func TestSlotTiming(t *testing.T) {
	genesis := time.Unix(1000, 0)
	cfg := NewLocalBeaconConfig(genesis, 12*time.Second, phase0.Root{1})

	require.Equal(t, genesis.Add(1200*time.Second), cfg.SlotStartTime(100))
	require.Equal(t, genesis.Add(1212*time.Second), cfg.SlotEndTime(100))
	require.Equal(t, phase0.Slot(100), cfg.EstimatedSlotAtTime(genesis.Add(1205*time.Second)))
	require.Equal(t, phase0.Slot(0), cfg.EstimatedSlotAtTime(genesis.Add(-time.Hour)))
	require.Equal(t, phase0.Epoch(3), cfg.EstimatedEpochAtSlot(100))
	require.Equal(t, phase0.Slot(96), cfg.FirstSlotAtEpoch(3))
	require.True(t, cfg.IsFirstSlotOfEpoch(96))
	require.False(t, cfg.IsFirstSlotOfEpoch(100))
	require.Equal(t, 4*time.Second, cfg.IntervalDuration())
	require.Equal(t, 12*time.Second, cfg.SlotDuration())
	require.Equal(t, uint64(32), cfg.SlotsPerEpoch())
}

func TestGetBeaconConfigByName(t *testing.T) {
	cfg, err := GetBeaconConfigByName("hoodi")
	require.NoError(t, err)
	require.Same(t, Hoodi, cfg)
	require.Equal(t, "hoodi", cfg.NetworkName())
	require.Equal(t, phase0.Version{0x10, 0x00, 0x09, 0x10}, cfg.GenesisForkVersion())

	_, err = GetBeaconConfigByName("prater")
	require.Error(t, err)
	require.Equal(t, []string{"holesky", "hoodi", "mainnet", "sepolia"}, SupportedNames())
	require.Contains(t, Mainnet.String(), "mainnet")
}
