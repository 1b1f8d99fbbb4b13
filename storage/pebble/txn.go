package pebble

import (
	"errors"

	"github.com/cockroachdb/pebble"

	"github.com/ssvlabs/dvnode/storage/basedb"
)

type pebbleTxn struct {
	batch *pebble.Batch
}

func newTxn(batch *pebble.Batch) basedb.Txn {
	return &pebbleTxn{batch: batch}
}

func (t *pebbleTxn) Set(prefix []byte, key []byte, value []byte) error {
	return t.batch.Set(basedb.Key(prefix, key), value, nil)
}

func (t *pebbleTxn) Get(prefix []byte, key []byte) (basedb.Obj, bool, error) {
	return get(t.batch, prefix, key)
}

func (t *pebbleTxn) GetAll(prefix []byte, fn func(int, basedb.Obj) error) error {
	return getAll(t.batch, prefix, fn)
}

func (t *pebbleTxn) Delete(prefix []byte, key []byte) error {
	return t.batch.Delete(basedb.Key(prefix, key), nil)
}

func get(reader pebble.Reader, prefix []byte, key []byte) (basedb.Obj, bool, error) {
	value, closer, err := reader.Get(basedb.Key(prefix, key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return basedb.Obj{}, false, nil
		}
		return basedb.Obj{}, true, err
	}

	valCopy := make([]byte, len(value))
	copy(valCopy, value)
	if err := closer.Close(); err != nil {
		return basedb.Obj{}, true, err
	}
	return basedb.Obj{
		Key:   key,
		Value: valCopy,
	}, true, nil
}

func getAll(reader pebble.Reader, prefix []byte, fn func(int, basedb.Obj) error) error {
	iter, err := makePrefixIter(reader, prefix)
	if err != nil {
		return err
	}

	defer func() { _ = iter.Close() }() // returns the same 'accumulated' error as iter.Error()

	i := 0
	for iter.First(); iter.Valid(); iter.Next() {
		v, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		key := make([]byte, len(iter.Key())-len(prefix))
		copy(key, iter.Key()[len(prefix):])

		val := make([]byte, len(v))
		copy(val, v)

		if err := fn(i, basedb.Obj{Key: key, Value: val}); err != nil {
			return err
		}
		i++
	}

	return iter.Error()
}
