package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/herumi/bls-eth-go-binary/bls"
	"github.com/stretchr/testify/require"

	"github.com/ssvlabs/dvnode/operator/keystore"
	"github.com/ssvlabs/dvnode/protocol/types"
)

func TestCreateThreshold(t *testing.T) {
	types.InitBLS()
	sk := &bls.SecretKey{}
	sk.SetByCSPRNG()

	dir := t.TempDir()
	passwordFile := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte("secret"), 0o600))

	paths, err := createThreshold("0x"+sk.GetHexString(), 3, 4, 42, filepath.Join(dir, "shares"), "secret")
	require.NoError(t, err)
	require.Len(t, paths, 4)

	msg := []byte("message")
	signatures := make(map[uint64][]byte)
	for i, path := range paths {
		dv, share, err := keystore.Load(path, passwordFile)
		require.NoError(t, err)
		require.EqualValues(t, i+1, dv.SelfIndex)
		require.EqualValues(t, 42, dv.Identity.Index)
		require.Equal(t, sk.GetPublicKey().Serialize(), dv.Identity.PubKey[:])
		signatures[dv.SelfIndex] = share.SignByte(msg).Serialize()
	}
	require.Len(t, signatures, 4)
}

func TestCreateThresholdRejectsInvalidInput(t *testing.T) {
	dir := t.TempDir()

	_, err := createThreshold("not hex", 3, 4, 1, dir, "secret")
	require.ErrorContains(t, err, "failed to set hex private key")

	_, err = createThreshold("", 5, 4, 1, dir, "secret")
	require.Error(t, err)

	_, err = createThreshold("", 3, 4, 1, dir, "")
	require.ErrorContains(t, err, "password required")
}
