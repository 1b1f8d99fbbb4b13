package kv

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/storage/basedb"
)

var _ basedb.Database = &BadgerDB{}

// BadgerDB struct
type BadgerDB struct {
	logger *zap.Logger

	db *badger.DB

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// gcMutex is locked during garbage collection cycles.
	gcMutex sync.Mutex
}

// New creates a persistent DB instance.
func New(logger *zap.Logger, options basedb.Options) (*BadgerDB, error) {
	return createDB(logger, options, false)
}

// NewInMemory creates an in-memory DB instance.
func NewInMemory(logger *zap.Logger, options basedb.Options) (*BadgerDB, error) {
	return createDB(logger, options, true)
}

func createDB(logger *zap.Logger, options basedb.Options, inMemory bool) (*BadgerDB, error) {
	// Open the Badger database located in the options.Path directory.
	// It will be created if it doesn't exist.
	opt := badger.DefaultOptions(options.Path)

	if inMemory {
		opt.InMemory = inMemory
		opt.Dir = ""
		opt.ValueDir = ""
	}

	opt.ValueLogFileSize = 1024 * 1024 * 100
	opt.Logger = newLogger(logger)

	db, err := badger.Open(opt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open badger")
	}

	// Set up context/cancel to control background goroutines.
	parentCtx := options.Ctx
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	badgerDB := BadgerDB{
		logger: logger,
		db:     db,
		ctx:    ctx,
		cancel: cancel,
	}

	// Start periodic garbage collection.
	if options.GCInterval > 0 && !inMemory {
		badgerDB.wg.Add(1)
		go badgerDB.periodicallyCollectGarbage(options.GCInterval)
	}

	return &badgerDB, nil
}

// Update runs fn inside a read-write transaction, committing on success.
func (b *BadgerDB) Update(fn func(basedb.Txn) error) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return fn(newTxn(txn, b))
	})
}

// Set save value with key to storage
func (b *BadgerDB) Set(prefix []byte, key []byte, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(basedb.Key(prefix, key), value)
	})
}

// Get return value for specified key, returns found=false when the key is missing
func (b *BadgerDB) Get(prefix []byte, key []byte) (obj basedb.Obj, found bool, err error) {
	err = b.db.View(func(txn *badger.Txn) error {
		obj, found, err = newTxn(txn, b).Get(prefix, key)
		return err
	})
	return obj, found, err
}

// GetAll returns all the items of a given collection
func (b *BadgerDB) GetAll(prefix []byte, handler func(int, basedb.Obj) error) error {
	return b.db.View(b.allGetter(prefix, handler))
}

func (b *BadgerDB) allGetter(prefix []byte, handler func(int, basedb.Obj) error) func(txn *badger.Txn) error {
	return func(txn *badger.Txn) error {
		opt := badger.DefaultIteratorOptions
		opt.Prefix = prefix
		it := txn.NewIterator(opt)
		defer it.Close()
		i := 0
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			obj := basedb.Obj{
				Key:   bytes.TrimPrefix(item.KeyCopy(nil), prefix),
				Value: value,
			}
			if err := handler(i, obj); err != nil {
				return err
			}
			i++
		}
		return nil
	}
}

// Delete deletes the given key under the given prefix.
func (b *BadgerDB) Delete(prefix []byte, key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return newTxn(txn, b).Delete(prefix, key)
	})
}

// CountPrefix the number of objects with the given prefix
func (b *BadgerDB) CountPrefix(prefix []byte) (int64, error) {
	var res int64
	err := b.db.View(func(txn *badger.Txn) error {
		opt := badger.DefaultIteratorOptions
		opt.Prefix = prefix
		opt.PrefetchValues = false
		it := txn.NewIterator(opt)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			res++
		}
		return nil
	})
	return res, err
}

// DropPrefix deletes all keys with the given prefix.
func (b *BadgerDB) DropPrefix(prefix []byte) error {
	return b.db.DropPrefix(prefix)
}

// Close closes the database.
func (b *BadgerDB) Close() error {
	// Stop & wait for background goroutines.
	b.cancel()
	b.wg.Wait()

	err := b.db.Close()
	if err != nil {
		b.logger.Fatal("failed to close DB", zap.Error(err))
	}
	return err
}

// periodicallyCollectGarbage runs a QuickGC cycle periodically.
func (b *BadgerDB) periodicallyCollectGarbage(interval time.Duration) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-time.After(interval):
			start := time.Now()
			err := b.QuickGC(context.Background())
			if err != nil {
				b.logger.Error("periodic GC cycle failed", zap.Error(err))
			} else {
				b.logger.Debug("periodic GC cycle completed", zap.Duration("took", time.Since(start)))
			}
		}
	}
}

// QuickGC runs a short garbage collection cycle to reclaim some unused disk space.
func (b *BadgerDB) QuickGC(ctx context.Context) error {
	return b.gc(ctx, 0.7)
}

// FullGC runs a long garbage collection cycle to reclaim (ideally) all unused disk space.
func (b *BadgerDB) FullGC(ctx context.Context) error {
	return b.gc(ctx, 0.1)
}

func (b *BadgerDB) gc(ctx context.Context, discardRatio float64) error {
	b.gcMutex.Lock()
	defer b.gcMutex.Unlock()

	for ctx.Err() == nil {
		err := b.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			// No more garbage to collect.
			break
		}
		if err != nil {
			return errors.Wrap(err, "failed to collect garbage")
		}
	}
	return nil
}
