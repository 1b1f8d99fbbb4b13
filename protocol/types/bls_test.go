package types

import (
	"testing"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/herumi/bls-eth-go-binary/bls"
	"github.com/stretchr/testify/require"
)

func TestDeserializeBLSSignature(t *testing.T) {
	InitBLS()

	var sk bls.SecretKey
	sk.SetByCSPRNG()
	root := phase0.Root{0x01, 0x02}

	// The signature sits next to a slice in a heap allocated share.
	share := &PartialSignature{
		Kind:        KindAttestation,
		SigningRoot: root,
		Signer:      1,
		Object:      []byte{0xde, 0xad},
	}
	copy(share.Signature[:], sk.SignByte(root[:]).Serialize())

	sig, err := DeserializeBLSSignature(share.Signature)
	require.NoError(t, err)
	require.True(t, sig.VerifyByte(sk.GetPublicKey(), root[:]))

	_, err = DeserializeBLSSignature(phase0.BLSSignature{0x01})
	require.Error(t, err)
}
