// Package combiner rebuilds full validator signatures from threshold signature shares.
package combiner

import (
	"fmt"
	"sort"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/herumi/bls-eth-go-binary/bls"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/protocol/types"
	"github.com/ssvlabs/dvnode/utils/threshold"
)

// Combine reconstructs the validator signature over the shares' common signing root.
// Shares that fail verification under their co-validator's share key are dropped. It
// returns ErrInsufficientShares when fewer than threshold distinct signers remain.
func Combine(logger *zap.Logger, dv *types.DistributedValidator, shares []*types.PartialSignature) (*types.CombinedSignature, error) {
	types.InitBLS()

	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares", types.ErrInsufficientShares)
	}
	kind, root := shares[0].Kind, shares[0].SigningRoot

	valid := make(map[uint64]*types.PartialSignature, len(shares))
	for _, share := range shares {
		if share.Kind != kind || share.SigningRoot != root {
			return nil, fmt.Errorf("shares of different objects: %s/%x and %s/%x", kind, root, share.Kind, share.SigningRoot)
		}
		if _, ok := valid[share.Signer]; ok {
			continue
		}
		if err := dv.VerifyShare(share); err != nil {
			logger.Warn("dropping invalid share",
				fields.DutyKind(kind),
				fields.Root(root),
				fields.Signer(share.Signer),
				zap.Error(err))
			recordInvalidShare(kind)
			continue
		}
		valid[share.Signer] = share
	}

	if uint64(len(valid)) < dv.Quorum() {
		return nil, fmt.Errorf("%w: %d valid of %d required", types.ErrInsufficientShares, len(valid), dv.Quorum())
	}

	signers := make([]uint64, 0, len(valid))
	for signer := range valid {
		signers = append(signers, signer)
	}
	sort.Slice(signers, func(i, j int) bool { return signers[i] < signers[j] })
	signers = signers[:dv.Quorum()]

	signatures := make(map[uint64][]byte, len(signers))
	for _, signer := range signers {
		sigBytes := valid[signer].Signature
		signatures[signer] = sigBytes[:]
	}
	reconstructed, err := threshold.ReconstructSignatures(signatures)
	if err != nil {
		return nil, err
	}
	if err := verify(dv.Identity.PubKey, root, reconstructed); err != nil {
		return nil, fmt.Errorf("reconstructed signature is invalid: %w", err)
	}

	combined := &types.CombinedSignature{
		Kind:        kind,
		SigningRoot: root,
		Signers:     signers,
	}
	copy(combined.Signature[:], reconstructed.Serialize())
	return combined, nil
}

func verify(pubKey phase0.BLSPubKey, root phase0.Root, sig *bls.Sign) error {
	pk, err := types.DeserializeBLSPublicKey(pubKey[:])
	if err != nil {
		return fmt.Errorf("malformed public key: %w", err)
	}
	if !sig.VerifyByte(&pk, root[:]) {
		return fmt.Errorf("signature does not verify")
	}
	return nil
}
