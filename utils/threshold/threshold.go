package threshold

import (
	"fmt"
	"strconv"

	"github.com/herumi/bls-eth-go-binary/bls"

	"github.com/ssvlabs/dvnode/protocol/types"
)

// Create splits a serialized bls.SecretKey into count shares, any threshold of which
// reconstruct signatures of the original key. Shares are keyed by their 1-based index.
func Create(skBytes []byte, threshold uint64, count uint64) (map[uint64]*bls.SecretKey, error) {
	types.InitBLS()

	if threshold <= 1 {
		return nil, fmt.Errorf("invalid threshold: threshold must be greater than 1, got %d", threshold)
	}
	if count < threshold {
		return nil, fmt.Errorf("insufficient count: need at least %d shares for threshold %d, got %d", threshold, threshold, count)
	}

	// master key polynomial, the free coefficient is the secret
	msk := make([]bls.SecretKey, threshold)
	sk := &bls.SecretKey{}
	if err := sk.Deserialize(skBytes); err != nil {
		return nil, err
	}
	msk[0] = *sk
	for i := uint64(1); i < threshold; i++ {
		coef := bls.SecretKey{}
		coef.SetByCSPRNG()
		msk[i] = coef
	}

	// evaluate shares - starting from 1 because 0 is the master key
	shares := make(map[uint64]*bls.SecretKey, count)
	for i := uint64(1); i <= count; i++ {
		blsID, err := shareID(i)
		if err != nil {
			return nil, err
		}
		share := bls.SecretKey{}
		if err := share.Set(msk, blsID); err != nil {
			return nil, err
		}
		shares[i] = &share
	}
	return shares, nil
}

func shareID(index uint64) (*bls.ID, error) {
	if index == 0 {
		return nil, fmt.Errorf("share index must be positive")
	}
	blsID := &bls.ID{}
	if err := blsID.SetDecString(strconv.FormatUint(index, 10)); err != nil {
		return nil, err
	}
	return blsID, nil
}
