package roundtimer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	specqbft "github.com/ssvlabs/ssv-spec/qbft"
)

// OnTimeout is called with the round that timed out.
type OnTimeout func(round specqbft.Round)

type RoundTimeoutFunc func(specqbft.Round) time.Duration

var (
	quickTimeoutThreshold = specqbft.Round(8)
	quickTimeout          = 2 * time.Second
	slowTimeout           = 2 * time.Minute
)

// RoundTimeout returns the timeout of a round: 2s up to round 8, 2m afterwards.
func RoundTimeout(r specqbft.Round) time.Duration {
	if r <= quickTimeoutThreshold {
		return quickTimeout
	}
	return slowTimeout
}

// RoundTimer fires once per round unless the round changes first.
type RoundTimer struct {
	ctx context.Context
	// cancelCtx cancels the current context, will be called from Kill()
	cancelCtx context.CancelFunc

	mu    sync.Mutex
	timer *time.Timer
	done  OnTimeout
	// round is the current round of the timer
	round atomic.Uint64

	roundTimeout RoundTimeoutFunc
}

func New(pctx context.Context, done OnTimeout) *RoundTimer {
	return NewWithTimeout(pctx, done, RoundTimeout)
}

func NewWithTimeout(pctx context.Context, done OnTimeout, roundTimeout RoundTimeoutFunc) *RoundTimer {
	ctx, cancelCtx := context.WithCancel(pctx)
	return &RoundTimer{
		ctx:          ctx,
		cancelCtx:    cancelCtx,
		done:         done,
		roundTimeout: roundTimeout,
	}
}

// Round returns the round the timer is armed for.
func (t *RoundTimer) Round() specqbft.Round {
	return specqbft.Round(t.round.Load())
}

// TimeoutForRound (re)arms the timer for the given round. A pending timeout of a previous
// round is discarded.
func (t *RoundTimer) TimeoutForRound(round specqbft.Round) {
	t.round.Store(uint64(round))
	timeout := t.roundTimeout(round)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	timer := time.NewTimer(timeout)
	t.timer = timer
	go t.waitForRound(round, timer.C)
}

func (t *RoundTimer) waitForRound(round specqbft.Round, timeout <-chan time.Time) {
	select {
	case <-t.ctx.Done():
	case <-timeout:
		if t.Round() == round && t.done != nil {
			t.done(round)
		}
	}
}

// Kill stops the timer. Pending timeouts never fire.
func (t *RoundTimer) Kill() {
	t.cancelCtx()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
}
