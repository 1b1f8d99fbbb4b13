package networkconfig

import (
	"fmt"
	"math"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/sanity-io/litter"
)

type BeaconConfig struct {
	networkName           string
	slotDuration          time.Duration
	slotsPerEpoch         uint64
	intervalsPerSlot      uint64
	genesisForkVersion    phase0.Version
	genesisTime           time.Time
	genesisValidatorsRoot phase0.Root
}

func NewBeaconConfig(
	networkName string,
	slotDuration time.Duration,
	slotsPerEpoch uint64,
	genesisForkVersion phase0.Version,
	genesisTime time.Time,
	genesisValidatorsRoot phase0.Root,
) *BeaconConfig {
	return &BeaconConfig{
		networkName:           networkName,
		slotDuration:          slotDuration,
		slotsPerEpoch:         slotsPerEpoch,
		intervalsPerSlot:      3,
		genesisForkVersion:    genesisForkVersion,
		genesisTime:           genesisTime,
		genesisValidatorsRoot: genesisValidatorsRoot,
	}
}

// String implements Stringer interface.
func (b *BeaconConfig) String() string {
	return litter.Options{HidePrivateFields: false}.Sdump(b)
}

// SlotStartTime returns the start time for the given slot
func (b *BeaconConfig) SlotStartTime(slot phase0.Slot) time.Time {
	if slot > math.MaxInt64 {
		panic(fmt.Sprintf("slot %d out of range", slot))
	}
	durationSinceGenesisStart := time.Duration(slot) * b.slotDuration // #nosec G115: slot cannot exceed math.MaxInt64
	return b.genesisTime.Add(durationSinceGenesisStart)
}

// SlotEndTime returns the end time for the given slot
func (b *BeaconConfig) SlotEndTime(slot phase0.Slot) time.Time {
	return b.SlotStartTime(slot + 1)
}

// EstimatedCurrentSlot returns the estimation of the current slot
func (b *BeaconConfig) EstimatedCurrentSlot() phase0.Slot {
	return b.EstimatedSlotAtTime(time.Now())
}

// EstimatedSlotAtTime estimates slot at the given time. Times before genesis map to slot 0.
func (b *BeaconConfig) EstimatedSlotAtTime(t time.Time) phase0.Slot {
	if t.Before(b.genesisTime) {
		return 0
	}
	timeAfterGenesis := t.Sub(b.genesisTime)
	return phase0.Slot(timeAfterGenesis / b.slotDuration) // #nosec G115: genesis can't be negative
}

// EstimatedEpochAtSlot estimates epoch at the given slot
func (b *BeaconConfig) EstimatedEpochAtSlot(slot phase0.Slot) phase0.Epoch {
	return phase0.Epoch(uint64(slot) / b.slotsPerEpoch)
}

func (b *BeaconConfig) IsFirstSlotOfEpoch(slot phase0.Slot) bool {
	return uint64(slot)%b.slotsPerEpoch == 0
}

func (b *BeaconConfig) FirstSlotAtEpoch(epoch phase0.Epoch) phase0.Slot {
	return phase0.Slot(uint64(epoch) * b.slotsPerEpoch)
}

// IntervalDuration is a third of a slot, the time attestations are produced at.
func (b *BeaconConfig) IntervalDuration() time.Duration {
	return b.slotDuration / time.Duration(b.intervalsPerSlot) // #nosec G115: intervals per slot is a small constant
}

func (b *BeaconConfig) SlotDuration() time.Duration {
	return b.slotDuration
}

func (b *BeaconConfig) SlotsPerEpoch() uint64 {
	return b.slotsPerEpoch
}

func (b *BeaconConfig) GenesisForkVersion() phase0.Version {
	return b.genesisForkVersion
}

func (b *BeaconConfig) GenesisTime() time.Time {
	return b.genesisTime
}

func (b *BeaconConfig) GenesisValidatorsRoot() phase0.Root {
	return b.genesisValidatorsRoot
}

func (b *BeaconConfig) NetworkName() string {
	return b.networkName
}
