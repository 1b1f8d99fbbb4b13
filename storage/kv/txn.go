package kv

import (
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/ssvlabs/dvnode/storage/basedb"
)

// badgerTxn adapts a badger transaction owned by BadgerDB.Update or BadgerDB.Get.
type badgerTxn struct {
	txn *badger.Txn
	db  *BadgerDB
}

func newTxn(txn *badger.Txn, db *BadgerDB) basedb.Txn {
	return badgerTxn{txn: txn, db: db}
}

func (t badgerTxn) Set(prefix []byte, key []byte, value []byte) error {
	return t.txn.Set(basedb.Key(prefix, key), value)
}

// Get reports found=false for missing keys rather than badger.ErrKeyNotFound.
func (t badgerTxn) Get(prefix []byte, key []byte) (basedb.Obj, bool, error) {
	item, err := t.txn.Get(basedb.Key(prefix, key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return basedb.Obj{}, false, nil
	}
	if err != nil {
		return basedb.Obj{}, false, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return basedb.Obj{}, false, err
	}
	return basedb.Obj{Key: key, Value: value}, true, nil
}

func (t badgerTxn) GetAll(prefix []byte, handler func(int, basedb.Obj) error) error {
	return t.db.allGetter(prefix, handler)(t.txn)
}

func (t badgerTxn) Delete(prefix []byte, key []byte) error {
	return t.txn.Delete(basedb.Key(prefix, key))
}
