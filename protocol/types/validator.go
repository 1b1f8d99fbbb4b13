package types

import (
	"fmt"
	"sort"

	"github.com/attestantio/go-eth2-client/spec/phase0"
)

// ValidatorIdentity is the logical Ethereum validator a DV acts for.
type ValidatorIdentity struct {
	PubKey phase0.BLSPubKey
	Index  phase0.ValidatorIndex
}

// CoValidator is one peer holding a key share of the validator.
type CoValidator struct {
	ValidatorPubKey phase0.BLSPubKey
	SharePubKey     phase0.BLSPubKey
	// Index is the 1-based id of the share within the threshold scheme.
	Index uint64
}

// DistributedValidator is a validator together with its fixed set of co-validators.
type DistributedValidator struct {
	Identity     ValidatorIdentity
	CoValidators []*CoValidator
	Threshold    uint64
	// SelfIndex is the co-validator index of the local node.
	SelfIndex uint64
}

// Validate checks the DV is internally consistent.
func (dv *DistributedValidator) Validate() error {
	n := uint64(len(dv.CoValidators))
	if n == 0 {
		return fmt.Errorf("no co-validators")
	}
	if dv.Threshold == 0 || dv.Threshold > n {
		return fmt.Errorf("invalid threshold %d for %d co-validators", dv.Threshold, n)
	}
	seen := make(map[uint64]struct{}, n)
	for _, cv := range dv.CoValidators {
		if cv.Index == 0 {
			return fmt.Errorf("co-validator index must be positive")
		}
		if cv.ValidatorPubKey != dv.Identity.PubKey {
			return fmt.Errorf("co-validator %d belongs to another validator", cv.Index)
		}
		if _, ok := seen[cv.Index]; ok {
			return fmt.Errorf("duplicate co-validator index %d", cv.Index)
		}
		seen[cv.Index] = struct{}{}
	}
	if _, ok := seen[dv.SelfIndex]; !ok {
		return fmt.Errorf("self index %d is not a co-validator", dv.SelfIndex)
	}
	return nil
}

// Quorum is the number of distinct shares needed to reconstruct a signature.
func (dv *DistributedValidator) Quorum() uint64 {
	return dv.Threshold
}

// ConsensusQuorum is the smallest number of co-validators strictly above two thirds.
func (dv *DistributedValidator) ConsensusQuorum() uint64 {
	n := uint64(len(dv.CoValidators))
	return 2*n/3 + 1
}

func (dv *DistributedValidator) CoValidator(index uint64) (*CoValidator, bool) {
	for _, cv := range dv.CoValidators {
		if cv.Index == index {
			return cv, true
		}
	}
	return nil, false
}

func (dv *DistributedValidator) Self() *CoValidator {
	cv, _ := dv.CoValidator(dv.SelfIndex)
	return cv
}

// SortedIndices returns the co-validator indices in ascending order.
func (dv *DistributedValidator) SortedIndices() []uint64 {
	indices := make([]uint64, 0, len(dv.CoValidators))
	for _, cv := range dv.CoValidators {
		indices = append(indices, cv.Index)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}

// VerifyShare checks the share is signed by the share key of its co-validator.
func (dv *DistributedValidator) VerifyShare(share *PartialSignature) error {
	InitBLS()

	cv, ok := dv.CoValidator(share.Signer)
	if !ok {
		return fmt.Errorf("signer %d is not a co-validator", share.Signer)
	}
	sig, err := DeserializeBLSSignature(share.Signature)
	if err != nil {
		return fmt.Errorf("malformed signature: %w", err)
	}
	pk, err := DeserializeBLSPublicKey(cv.SharePubKey[:])
	if err != nil {
		return fmt.Errorf("malformed share public key: %w", err)
	}
	root := share.SigningRoot
	if !sig.VerifyByte(&pk, root[:]) {
		return fmt.Errorf("share of signer %d does not verify", share.Signer)
	}
	return nil
}
