// Package dutystore keeps fetched duties per epoch until they are served.
package dutystore

import (
	"sync"

	"github.com/attestantio/go-eth2-client/spec/phase0"

	"github.com/ssvlabs/dvnode/protocol/types"
)

type Duty interface {
	types.AttestationDuty | types.ProposerDuty
}

type Duties[D Duty] struct {
	mu sync.RWMutex
	m  map[phase0.Epoch]map[phase0.Slot]map[phase0.ValidatorIndex]*D
}

func NewDuties[D Duty]() *Duties[D] {
	return &Duties[D]{
		m: make(map[phase0.Epoch]map[phase0.Slot]map[phase0.ValidatorIndex]*D),
	}
}

// SlotDuties returns the duties of every validator at the slot.
func (d *Duties[D]) SlotDuties(epoch phase0.Epoch, slot phase0.Slot) []*D {
	d.mu.RLock()
	defer d.mu.RUnlock()

	byValidator, ok := d.m[epoch][slot]
	if !ok {
		return nil
	}
	duties := make([]*D, 0, len(byValidator))
	for _, duty := range byValidator {
		duties = append(duties, duty)
	}
	return duties
}

func (d *Duties[D]) ValidatorDuty(epoch phase0.Epoch, slot phase0.Slot, validatorIndex phase0.ValidatorIndex) *D {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.m[epoch][slot][validatorIndex]
}

// Add stores the duty and returns the duty it replaced, if any.
func (d *Duties[D]) Add(epoch phase0.Epoch, slot phase0.Slot, validatorIndex phase0.ValidatorIndex, duty *D) (previous *D) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.m[epoch]; !ok {
		d.m[epoch] = make(map[phase0.Slot]map[phase0.ValidatorIndex]*D)
	}
	if _, ok := d.m[epoch][slot]; !ok {
		d.m[epoch][slot] = make(map[phase0.ValidatorIndex]*D)
	}
	previous = d.m[epoch][slot][validatorIndex]
	d.m[epoch][slot][validatorIndex] = duty
	return previous
}

// HasEpoch reports whether duties of the epoch were fetched.
func (d *Duties[D]) HasEpoch(epoch phase0.Epoch) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.m[epoch]
	return ok
}

// MarkFetched records that the epoch was fetched, even when it holds no duty.
func (d *Duties[D]) MarkFetched(epoch phase0.Epoch) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.m[epoch]; !ok {
		d.m[epoch] = make(map[phase0.Slot]map[phase0.ValidatorIndex]*D)
	}
}

func (d *Duties[D]) ResetEpoch(epoch phase0.Epoch) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.m, epoch)
}

// Store holds the duties of every kind.
type Store struct {
	Attester *Duties[types.AttestationDuty]
	Proposer *Duties[types.ProposerDuty]
}

func New() *Store {
	return &Store{
		Attester: NewDuties[types.AttestationDuty](),
		Proposer: NewDuties[types.ProposerDuty](),
	}
}
