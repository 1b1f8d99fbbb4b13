package basedb

import (
	"context"
	"time"
)

// Options for creating all db type
type Options struct {
	Ctx        context.Context `yaml:"-"`
	Engine     string          `yaml:"Engine" env:"DB_ENGINE" env-default:"badger" env-description:"Database engine (badger or pebble)"`
	Path       string          `yaml:"Path" env:"DB_PATH" env-default:"./data/db" env-description:"Database storage directory path"`
	GCInterval time.Duration   `yaml:"GCInterval" env:"DB_GC_INTERVAL" env-default:"6m" env-description:"Interval between garbage collection runs (0 to disable)"`
}

// Reader is a read-only accessor to the database.
type Reader interface {
	Get(prefix []byte, key []byte) (Obj, bool, error)
	GetAll(prefix []byte, handler func(int, Obj) error) error
}

// ReadWriter is a read-write accessor to the database.
type ReadWriter interface {
	Reader
	Set(prefix []byte, key []byte, value []byte) error
	Delete(prefix []byte, key []byte) error
}

// Txn is a read-write transaction. It is committed by Database.Update.
type Txn interface {
	ReadWriter
}

// Database is the key-value store behind the slashing protection records.
type Database interface {
	ReadWriter

	// Update runs fn in a transaction that is committed only when fn succeeds.
	Update(fn func(Txn) error) error
	CountPrefix(prefix []byte) (int64, error)
	DropPrefix(prefix []byte) error
	Close() error
}

// GarbageCollector is an interface implemented by storage engines which demand garbage collection.
type GarbageCollector interface {
	// QuickGC runs a short garbage collection cycle to reclaim some unused disk space.
	// Designed to be called periodically while the database is being used.
	QuickGC(context.Context) error

	// FullGC runs a long garbage collection cycle to reclaim (ideally) all unused disk space.
	// Designed to be called when the database is not being used.
	FullGC(context.Context) error
}

// Key joins prefix and key into a new slice, leaving both arguments untouched.
func Key(prefix, key []byte) []byte {
	k := make([]byte, 0, len(prefix)+len(key))
	k = append(k, prefix...)
	return append(k, key...)
}

// Obj struct for getting key/value from storage
type Obj struct {
	Key   []byte
	Value []byte
}
