package storage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/storage/basedb"
	"github.com/ssvlabs/dvnode/storage/kv"
	"github.com/ssvlabs/dvnode/storage/pebble"
)

const (
	EngineBadger = "badger"
	EnginePebble = "pebble"
)

// Open opens the database engine selected in the options.
func Open(logger *zap.Logger, opts basedb.Options) (basedb.Database, error) {
	switch opts.Engine {
	case "", EngineBadger:
		return kv.New(logger, opts)
	case EnginePebble:
		return pebble.New(logger.Named(logging.NamePebbleDBLog), opts.Path, nil)
	default:
		return nil, fmt.Errorf("unknown db engine %q", opts.Engine)
	}
}
