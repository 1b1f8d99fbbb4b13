package operator

import (
	"bytes"
	"fmt"

	"github.com/ssvlabs/dvnode/networkconfig"
	"github.com/ssvlabs/dvnode/storage/basedb"
)

var (
	configPrefix       = []byte("config/")
	networkLockKey     = []byte("network")
	genesisRootLockKey = []byte("genesis-validators-root")
)

// verifyNetwork binds the database to the first network it was opened for. Slashing
// protection history of one network must never be consulted on another.
func verifyNetwork(db basedb.Database, beaconConfig *networkconfig.BeaconConfig) error {
	root := beaconConfig.GenesisValidatorsRoot()
	name := []byte(beaconConfig.NetworkName())

	storedName, found, err := db.Get(configPrefix, networkLockKey)
	if err != nil {
		return fmt.Errorf("could not read network lock: %w", err)
	}
	if !found {
		return db.Update(func(txn basedb.Txn) error {
			if err := txn.Set(configPrefix, networkLockKey, name); err != nil {
				return err
			}
			return txn.Set(configPrefix, genesisRootLockKey, root[:])
		})
	}
	if !bytes.Equal(storedName.Value, name) {
		return fmt.Errorf("database belongs to network %q, not %q", storedName.Value, name)
	}

	storedRoot, found, err := db.Get(configPrefix, genesisRootLockKey)
	if err != nil {
		return fmt.Errorf("could not read genesis validators root lock: %w", err)
	}
	if found && !bytes.Equal(storedRoot.Value, root[:]) {
		return fmt.Errorf("database belongs to genesis validators root %x, not %x", storedRoot.Value, root)
	}
	return nil
}
