package operator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/networkconfig"
	"github.com/ssvlabs/dvnode/storage/basedb"
	"github.com/ssvlabs/dvnode/storage/kv"
)

func Test_verifyNetwork(t *testing.T) {
	logger := logging.TestLogger(t)
	db, err := kv.NewInMemory(logger, basedb.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	t.Run("first open locks the network", func(t *testing.T) {
		require.NoError(t, verifyNetwork(db, networkconfig.Holesky))

		stored, found, err := db.Get(configPrefix, networkLockKey)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, networkconfig.Holesky.NetworkName(), string(stored.Value))
	})

	t.Run("same network reopens", func(t *testing.T) {
		require.NoError(t, verifyNetwork(db, networkconfig.Holesky))
	})

	t.Run("other network is rejected", func(t *testing.T) {
		err := verifyNetwork(db, networkconfig.Mainnet)
		require.ErrorContains(t, err, "database belongs to network")
	})
}
