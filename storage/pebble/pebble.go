package pebble

import (
	"context"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/storage/basedb"
)

var _ basedb.Database = &DB{}

type DB struct {
	*pebble.DB
	logger *zap.Logger
}

func New(logger *zap.Logger, path string, opts *pebble.Options) (*DB, error) {
	pdb, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return &DB{
		DB:     pdb,
		logger: logger,
	}, nil
}

func (pdb *DB) Close() error {
	return pdb.DB.Close()
}

func (pdb *DB) Get(prefix []byte, key []byte) (basedb.Obj, bool, error) {
	return get(pdb.DB, prefix, key)
}

func (pdb *DB) Set(prefix, key, value []byte) error {
	return pdb.DB.Set(basedb.Key(prefix, key), value, pebble.Sync)
}

func (pdb *DB) Delete(prefix, key []byte) error {
	return pdb.DB.Delete(basedb.Key(prefix, key), pebble.Sync)
}

func (pdb *DB) GetAll(prefix []byte, fn func(int, basedb.Obj) error) error {
	return getAll(pdb.DB, prefix, fn)
}

func (pdb *DB) Update(fn func(basedb.Txn) error) error {
	batch := pdb.NewIndexedBatch()
	defer func() { _ = batch.Close() }()

	if err := fn(newTxn(batch)); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (pdb *DB) CountPrefix(prefix []byte) (int64, error) {
	iter, err := makePrefixIter(pdb.DB, prefix)
	if err != nil {
		return 0, err
	}

	defer func() { _ = iter.Close() }()

	count := int64(0)
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}

	if err := iter.Error(); err != nil {
		return 0, err
	}

	return count, nil
}

func (pdb *DB) DropPrefix(prefix []byte) error {
	batch := pdb.NewBatch()
	iter, err := makePrefixIter(pdb.DB, prefix)
	if err != nil {
		return err
	}

	defer func() {
		_ = iter.Close()
		_ = batch.Close() // never returns an error
	}()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := batch.Delete(iter.Key(), nil); err != nil {
			return err
		}
	}

	if err := iter.Error(); err != nil {
		return err
	}

	return batch.Commit(pebble.Sync)
}

func (pdb *DB) QuickGC(context.Context) error {
	return nil // pebble db does not require periodic gc
}

func (pdb *DB) FullGC(context.Context) error {
	iter, err := pdb.NewIter(nil)
	if err != nil {
		return err
	}

	var first, last []byte

	if iter.First() {
		first = append(first, iter.Key()...)
	}
	if iter.Last() {
		last = append(last, iter.Key()...)
	}
	if err := iter.Close(); err != nil {
		return err
	}
	if first == nil {
		return nil
	}

	return pdb.Compact(first, last, true)
}

func makePrefixIter(reader pebble.Reader, prefix []byte) (*pebble.Iterator, error) {
	keyUpperBound := func(b []byte) []byte {
		end := make([]byte, len(b))
		copy(end, b)
		for i := len(end) - 1; i >= 0; i-- {
			end[i] = end[i] + 1
			if end[i] != 0 {
				return end[:i+1]
			}
		}
		return nil // no upper-bound
	}

	return reader.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
}
