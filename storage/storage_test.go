package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/storage/basedb"
)

func TestEngines(t *testing.T) {
	for _, engine := range []string{EngineBadger, EnginePebble} {
		t.Run(engine, func(t *testing.T) {
			logger := logging.TestLogger(t)
			path := t.TempDir()

			db, err := Open(logger, basedb.Options{Engine: engine, Path: path})
			require.NoError(t, err)

			prefix := []byte("p/")
			for i := 0; i < 3; i++ {
				require.NoError(t, db.Set([]byte("p/"), []byte(fmt.Sprintf("k%d", i)), []byte{byte(i)}))
			}
			require.NoError(t, db.Set([]byte("q/"), []byte("k0"), []byte{9}))

			obj, found, err := db.Get(prefix, []byte("k1"))
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, []byte{1}, obj.Value)

			_, found, err = db.Get(prefix, []byte("missing"))
			require.NoError(t, err)
			require.False(t, found)

			count, err := db.CountPrefix(prefix)
			require.NoError(t, err)
			require.EqualValues(t, 3, count)

			var keys []string
			require.NoError(t, db.GetAll(prefix, func(i int, obj basedb.Obj) error {
				keys = append(keys, string(obj.Key))
				return nil
			}))
			require.Equal(t, []string{"k0", "k1", "k2"}, keys)

			err = db.Update(func(txn basedb.Txn) error {
				if err := txn.Set([]byte("p/"), []byte("k3"), []byte{3}); err != nil {
					return err
				}
				obj, found, err := txn.Get([]byte("p/"), []byte("k3"))
				require.True(t, found)
				require.Equal(t, []byte{3}, obj.Value)
				return err
			})
			require.NoError(t, err)

			err = db.Update(func(txn basedb.Txn) error {
				if err := txn.Set([]byte("p/"), []byte("k4"), []byte{4}); err != nil {
					return err
				}
				return fmt.Errorf("rollback")
			})
			require.Error(t, err)
			_, found, err = db.Get(prefix, []byte("k4"))
			require.NoError(t, err)
			require.False(t, found)

			require.NoError(t, db.Delete([]byte("p/"), []byte("k0")))
			require.NoError(t, db.DropPrefix([]byte("q/")))
			count, err = db.CountPrefix([]byte("q/"))
			require.NoError(t, err)
			require.Zero(t, count)
			require.NoError(t, db.Close())

			reopened, err := Open(logger, basedb.Options{Engine: engine, Path: path})
			require.NoError(t, err)
			defer func() { require.NoError(t, reopened.Close()) }()

			count, err = reopened.CountPrefix(prefix)
			require.NoError(t, err)
			require.EqualValues(t, 3, count)
		})
	}
}

func TestUnknownEngine(t *testing.T) {
	_, err := Open(logging.TestLogger(t), basedb.Options{Engine: "bolt"})
	require.Error(t, err)
}

func TestKeyDoesNotAliasPrefix(t *testing.T) {
	prefix := make([]byte, 2, 8)
	copy(prefix, "p/")

	a := basedb.Key(prefix, []byte("a"))
	b := basedb.Key(prefix, []byte("b"))
	require.Equal(t, "p/a", string(a))
	require.Equal(t, "p/b", string(b))
	require.Equal(t, "p/", string(prefix))
}
