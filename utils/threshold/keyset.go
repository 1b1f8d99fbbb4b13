package threshold

import (
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/herumi/bls-eth-go-binary/bls"

	"github.com/ssvlabs/dvnode/protocol/types"
)

// KeySet is a validator key split into threshold shares.
type KeySet struct {
	ValidatorKey *bls.SecretKey
	Shares       map[uint64]*bls.SecretKey
	Threshold    uint64
}

// GenerateKeySet creates a random validator key and splits it.
func GenerateKeySet(threshold, count uint64) (*KeySet, error) {
	types.InitBLS()

	sk := &bls.SecretKey{}
	sk.SetByCSPRNG()
	return SplitKeySet(sk, threshold, count)
}

// SplitKeySet splits an existing validator key.
func SplitKeySet(sk *bls.SecretKey, threshold, count uint64) (*KeySet, error) {
	shares, err := Create(sk.Serialize(), threshold, count)
	if err != nil {
		return nil, fmt.Errorf("could not split key: %w", err)
	}
	return &KeySet{ValidatorKey: sk, Shares: shares, Threshold: threshold}, nil
}

func (ks *KeySet) ValidatorPubKey() phase0.BLSPubKey {
	var pk phase0.BLSPubKey
	copy(pk[:], ks.ValidatorKey.GetPublicKey().Serialize())
	return pk
}

// DistributedValidator describes the key set as seen by the co-validator at selfIndex.
func (ks *KeySet) DistributedValidator(index phase0.ValidatorIndex, selfIndex uint64) *types.DistributedValidator {
	validatorPubKey := ks.ValidatorPubKey()
	dv := &types.DistributedValidator{
		Identity:  types.ValidatorIdentity{PubKey: validatorPubKey, Index: index},
		Threshold: ks.Threshold,
		SelfIndex: selfIndex,
	}
	for i := uint64(1); i <= uint64(len(ks.Shares)); i++ {
		var sharePubKey phase0.BLSPubKey
		copy(sharePubKey[:], ks.Shares[i].GetPublicKey().Serialize())
		dv.CoValidators = append(dv.CoValidators, &types.CoValidator{
			ValidatorPubKey: validatorPubKey,
			SharePubKey:     sharePubKey,
			Index:           i,
		})
	}
	return dv
}
