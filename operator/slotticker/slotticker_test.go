package slotticker

import (
	"testing"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/stretchr/testify/require"
)

func TestSlotTicker(t *testing.T) {
	const numTicks = 3
	slotDuration := 200 * time.Millisecond
	genesisTime := time.Now().Truncate(slotDuration).Add(-slotDuration)
	expectedSlot := phase0.Slot(time.Since(genesisTime)/slotDuration) + 1

	ticker := New(Config{SlotDuration: slotDuration, GenesisTime: genesisTime})
	for i := 0; i < numTicks; i++ {
		<-ticker.Next()
		require.Equal(t, expectedSlot, ticker.Slot())
		expectedSlot++
	}
}

func TestSlotTickerFirstTick(t *testing.T) {
	slotDuration := 200 * time.Millisecond
	ticker := New(Config{SlotDuration: slotDuration, GenesisTime: time.Now()})

	start := time.Now()
	<-ticker.Next()
	require.GreaterOrEqual(t, time.Since(start)+10*time.Millisecond, slotDuration)
	require.Equal(t, phase0.Slot(1), ticker.Slot())
}

func TestSlotTickerGenesisInFuture(t *testing.T) {
	slotDuration := 200 * time.Millisecond
	genesisTime := time.Now().Add(500 * time.Millisecond)
	ticker := New(Config{SlotDuration: slotDuration, GenesisTime: genesisTime})

	<-ticker.Next()
	require.WithinDuration(t, genesisTime, time.Now(), 50*time.Millisecond)
	require.Equal(t, phase0.Slot(0), ticker.Slot())

	<-ticker.Next()
	require.Equal(t, phase0.Slot(1), ticker.Slot())
}
