package threshold

import (
	"fmt"
	"sort"

	"github.com/herumi/bls-eth-go-binary/bls"

	"github.com/ssvlabs/dvnode/protocol/types"
)

// ReconstructSignatures interpolates the full signature from partial signatures keyed by
// share index. All given shares are used, so the caller picks exactly the subset it wants.
func ReconstructSignatures(signatures map[uint64][]byte) (*bls.Sign, error) {
	types.InitBLS()

	if len(signatures) == 0 {
		return nil, fmt.Errorf("no signatures to reconstruct")
	}

	indices := make([]uint64, 0, len(signatures))
	for index := range signatures {
		indices = append(indices, index)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	sigVec := make([]bls.Sign, 0, len(indices))
	idVec := make([]bls.ID, 0, len(indices))
	for _, index := range indices {
		blsID, err := shareID(index)
		if err != nil {
			return nil, err
		}
		sigBytes := make([]byte, len(signatures[index]))
		copy(sigBytes, signatures[index])
		sig := bls.Sign{}
		if err := sig.Deserialize(sigBytes); err != nil {
			return nil, fmt.Errorf("could not deserialize signature of share %d: %w", index, err)
		}
		sigVec = append(sigVec, sig)
		idVec = append(idVec, *blsID)
	}

	reconstructed := bls.Sign{}
	if err := reconstructed.Recover(sigVec, idVec); err != nil {
		return nil, fmt.Errorf("could not recover signature: %w", err)
	}
	return &reconstructed, nil
}
