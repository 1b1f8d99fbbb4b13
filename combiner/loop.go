package combiner

import (
	"context"
	"errors"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/network"
	"github.com/ssvlabs/dvnode/protocol/types"
)

const (
	minPollInterval = 50 * time.Millisecond
	maxPollInterval = 2 * time.Second

	defaultStaleAfter  = 2 * 12 * time.Second
	defaultCombinedTTL = 30 * time.Minute
)

type LoopOptions struct {
	// StaleAfter is how long a root may stay below threshold before an alarm is raised.
	StaleAfter time.Duration
	// CombinedTTL is how long combined roots are remembered.
	CombinedTTL time.Duration
}

// Loop combines the pending shares of one kind and hands the results to a sink.
type Loop struct {
	logger    *zap.Logger
	kind      types.DutyKind
	dv        *types.DistributedValidator
	collector network.ShareCollector
	roots     SigningRoots
	sink      Sink

	staleAfter time.Duration
	combined   *ttlcache.Cache[phase0.Root, struct{}]
	alarmed    *ttlcache.Cache[phase0.Root, struct{}]
}

func NewLoop(
	logger *zap.Logger,
	kind types.DutyKind,
	dv *types.DistributedValidator,
	collector network.ShareCollector,
	roots SigningRoots,
	sink Sink,
	opts LoopOptions,
) *Loop {
	if opts.StaleAfter == 0 {
		opts.StaleAfter = defaultStaleAfter
	}
	if opts.CombinedTTL == 0 {
		opts.CombinedTTL = defaultCombinedTTL
	}
	return &Loop{
		logger:     logger.Named(logging.NameCombiner).With(fields.DutyKind(kind)),
		kind:       kind,
		dv:         dv,
		collector:  collector,
		roots:      roots,
		sink:       sink,
		staleAfter: opts.StaleAfter,
		combined:   ttlcache.New(ttlcache.WithTTL[phase0.Root, struct{}](opts.CombinedTTL)),
		alarmed:    ttlcache.New(ttlcache.WithTTL[phase0.Root, struct{}](opts.CombinedTTL)),
	}
}

// Run polls until ctx is done. The poll interval doubles while nothing is combined and
// resets once something is.
func (l *Loop) Run(ctx context.Context) error {
	go l.combined.Start()
	go l.alarmed.Start()
	defer l.combined.Stop()
	defer l.alarmed.Stop()

	l.logger.Debug("combination loop started")
	interval := minPollInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if l.Poll(ctx) > 0 {
			interval = minPollInterval
		} else {
			interval = min(2*interval, maxPollInterval)
		}
		timer.Reset(interval)
	}
}

// Poll makes one pass over the pending roots and returns how many were delivered.
func (l *Loop) Poll(ctx context.Context) int {
	delivered := 0
	for _, pending := range l.collector.Pending(l.kind) {
		if ctx.Err() != nil {
			return delivered
		}
		if l.combined.Has(pending.SigningRoot) {
			// Late shares of an already delivered object.
			l.collector.Discard(l.kind, pending.SigningRoot)
			continue
		}
		if uint64(pending.Shares) < l.dv.Quorum() {
			l.checkStale(ctx, pending)
			continue
		}
		if l.process(ctx, pending) {
			delivered++
		}
	}
	return delivered
}

func (l *Loop) process(ctx context.Context, pending network.PendingRoot) bool {
	logger := l.logger.With(fields.Root(pending.SigningRoot))

	shares := l.collector.Collect(l.kind, pending.SigningRoot)
	combined, err := Combine(logger, l.dv, shares)
	if err != nil {
		if errors.Is(err, types.ErrInsufficientShares) {
			l.checkStale(ctx, pending)
		} else {
			logger.Warn("could not combine shares", zap.Error(err))
		}
		return false
	}

	obj, err := assemble(ctx, l.roots, combined, shares)
	if err != nil {
		logger.Warn("could not assemble signed object", zap.Error(err))
		return false
	}

	start := time.Now()
	if err := l.sink.Deliver(ctx, obj); err != nil {
		// Left pending, so the next poll retries.
		logger.Error("could not deliver signed object", fields.Slot(obj.Slot), zap.Error(err))
		return false
	}
	recordDelivery(ctx, l.kind, time.Since(start))
	recordCombined(ctx, l.kind)

	l.combined.Set(pending.SigningRoot, struct{}{}, ttlcache.DefaultTTL)
	l.alarmed.Delete(pending.SigningRoot)
	l.collector.Discard(l.kind, pending.SigningRoot)

	logger.Info("delivered signed object",
		fields.Slot(obj.Slot),
		fields.Signers(combined.Signers),
		fields.Took(time.Since(pending.FirstSeen)))
	return true
}

// checkStale raises a single alarm for a root that stays below threshold too long.
func (l *Loop) checkStale(ctx context.Context, pending network.PendingRoot) {
	if time.Since(pending.FirstSeen) < l.staleAfter || l.alarmed.Has(pending.SigningRoot) {
		return
	}
	l.alarmed.Set(pending.SigningRoot, struct{}{}, ttlcache.DefaultTTL)
	recordStaleRoot(ctx, l.kind)
	l.logger.Warn("signing root is stale",
		fields.Root(pending.SigningRoot),
		fields.Count(pending.Shares),
		zap.Duration("age", time.Since(pending.FirstSeen)))
}
