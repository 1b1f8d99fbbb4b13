package threshold

import (
	"testing"

	"github.com/herumi/bls-eth-go-binary/bls"
	"github.com/stretchr/testify/require"

	"github.com/ssvlabs/dvnode/protocol/types"
)

func TestSplitAndReconstruct(t *testing.T) {
	types.InitBLS()
	sharesCount := uint64(4)
	threshold := uint64(3)
	message := []byte("dvRocks!")

	sk := bls.SecretKey{}
	sk.SetByCSPRNG()
	originalSig := sk.SignByte(message)

	shares, err := Create(sk.Serialize(), threshold, sharesCount)
	require.NoError(t, err)
	require.Len(t, shares, int(sharesCount))

	// every subset of size threshold reconstructs the same signature
	subsets := [][]uint64{{1, 2, 3}, {1, 2, 4}, {1, 3, 4}, {2, 3, 4}}
	for _, subset := range subsets {
		sigVec := make(map[uint64][]byte)
		for _, i := range subset {
			sigVec[i] = shares[i].SignByte(message).Serialize()
		}
		sig, err := ReconstructSignatures(sigVec)
		require.NoError(t, err)
		require.True(t, originalSig.IsEqual(sig), "subset %v", subset)
		require.True(t, sig.VerifyByte(sk.GetPublicKey(), message))
	}

	// fewer shares than the threshold give a different signature
	sig, err := ReconstructSignatures(map[uint64][]byte{
		1: shares[1].SignByte(message).Serialize(),
		2: shares[2].SignByte(message).Serialize(),
	})
	require.NoError(t, err)
	require.False(t, sig.VerifyByte(sk.GetPublicKey(), message))
}

func TestCreateValidation(t *testing.T) {
	types.InitBLS()
	sk := bls.SecretKey{}
	sk.SetByCSPRNG()

	_, err := Create(sk.Serialize(), 1, 4)
	require.ErrorContains(t, err, "invalid threshold")
	_, err = Create(sk.Serialize(), 3, 2)
	require.ErrorContains(t, err, "insufficient count")
	_, err = Create([]byte{1, 2, 3}, 3, 4)
	require.Error(t, err)
}

func TestReconstructValidation(t *testing.T) {
	_, err := ReconstructSignatures(nil)
	require.Error(t, err)

	_, err = ReconstructSignatures(map[uint64][]byte{0: make([]byte, 96)})
	require.ErrorContains(t, err, "share index must be positive")

	_, err = ReconstructSignatures(map[uint64][]byte{1: {1, 2, 3}})
	require.ErrorContains(t, err, "could not deserialize signature")
}

func TestKeySet(t *testing.T) {
	ks, err := GenerateKeySet(3, 4)
	require.NoError(t, err)

	dv := ks.DistributedValidator(42, 2)
	require.NoError(t, dv.Validate())
	require.Equal(t, ks.ValidatorPubKey(), dv.Identity.PubKey)
	require.Len(t, dv.CoValidators, 4)
	require.EqualValues(t, 2, dv.Self().Index)

	sharePubKey := ks.Shares[2].GetPublicKey().Serialize()
	require.Equal(t, sharePubKey, dv.Self().SharePubKey[:])
}
