// Package slotticker ticks at the start of every beacon chain slot.
package slotticker

import (
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
)

type Provider func() SlotTicker

type SlotTicker interface {
	// Next returns a channel that fires at the start of the next slot.
	Next() <-chan time.Time
	// Slot returns the slot Next last fired for.
	Slot() phase0.Slot
}

type Config struct {
	SlotDuration time.Duration
	GenesisTime  time.Time
}

type slotTicker struct {
	timer        *time.Timer
	slotDuration time.Duration
	genesisTime  time.Time
	slot         phase0.Slot
}

// New returns a ticker whose first tick is the start of the slot following now, or
// genesis if it is in the future.
func New(cfg Config) SlotTicker {
	var initialDelay time.Duration
	if sinceGenesis := time.Since(cfg.GenesisTime); sinceGenesis < 0 {
		initialDelay = -sinceGenesis
	} else {
		slotsSinceGenesis := sinceGenesis / cfg.SlotDuration
		initialDelay = time.Until(cfg.GenesisTime.Add((slotsSinceGenesis + 1) * cfg.SlotDuration))
	}
	return &slotTicker{
		timer:        time.NewTimer(initialDelay),
		slotDuration: cfg.SlotDuration,
		genesisTime:  cfg.GenesisTime,
	}
}

func (s *slotTicker) Next() <-chan time.Time {
	sinceGenesis := time.Since(s.genesisTime)
	if sinceGenesis < 0 {
		return s.timer.C
	}
	if !s.timer.Stop() {
		select {
		case <-s.timer.C:
		default:
		}
	}
	slot := uint64(sinceGenesis / s.slotDuration)
	s.timer.Reset(time.Until(s.genesisTime.Add(time.Duration(slot+1) * s.slotDuration)))
	s.slot = phase0.Slot(slot + 1)
	return s.timer.C
}

func (s *slotTicker) Slot() phase0.Slot {
	return s.slot
}
