package roundtimer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	specqbft "github.com/ssvlabs/ssv-spec/qbft"
	"github.com/stretchr/testify/require"
)

func TestRoundTimeout(t *testing.T) {
	require.Equal(t, 2*time.Second, RoundTimeout(specqbft.FirstRound))
	require.Equal(t, 2*time.Second, RoundTimeout(8))
	require.Equal(t, 2*time.Minute, RoundTimeout(9))
}

func TestRoundTimer_TimeoutForRound(t *testing.T) {
	fixed := func(specqbft.Round) time.Duration { return 100 * time.Millisecond }

	t.Run("fires once", func(t *testing.T) {
		var count, last atomic.Uint64
		timer := NewWithTimeout(context.Background(), func(round specqbft.Round) {
			count.Add(1)
			last.Store(uint64(round))
		}, fixed)

		timer.TimeoutForRound(specqbft.FirstRound)
		require.Zero(t, count.Load())
		require.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, 5*time.Millisecond)
		require.EqualValues(t, 1, last.Load())
		require.Never(t, func() bool { return count.Load() > 1 }, 200*time.Millisecond, 20*time.Millisecond)
	})

	t.Run("reset before elapsed", func(t *testing.T) {
		var count, last atomic.Uint64
		timer := NewWithTimeout(context.Background(), func(round specqbft.Round) {
			count.Add(1)
			last.Store(uint64(round))
		}, fixed)

		timer.TimeoutForRound(specqbft.FirstRound)
		time.Sleep(50 * time.Millisecond)
		timer.TimeoutForRound(2)
		require.Equal(t, specqbft.Round(2), timer.Round())
		require.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, 5*time.Millisecond)
		require.EqualValues(t, 2, last.Load())
	})

	t.Run("killed", func(t *testing.T) {
		var count atomic.Uint64
		timer := NewWithTimeout(context.Background(), func(specqbft.Round) { count.Add(1) }, fixed)

		timer.TimeoutForRound(specqbft.FirstRound)
		timer.Kill()
		require.Never(t, func() bool { return count.Load() > 0 }, 250*time.Millisecond, 20*time.Millisecond)
	})
}
