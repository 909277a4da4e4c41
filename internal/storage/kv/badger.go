package kv

import (
	"errors"

	"github.com/pvzzle/txrecorder/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

const keyPrefix = "slot:"

// Badger is a KV backed by a badger database. The caller owns db.
type Badger struct {
	db     *badger.DB
	logger zerolog.Logger
}

func NewBadger(db *badger.DB, logger zerolog.Logger) *Badger {
	return &Badger{db: db, logger: logger}
}

// Open opens (or creates) a badger database at dir. An empty dir opens an in-memory database.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	return badger.Open(opts)
}

func (b *Badger) Get(key string) (string, error) {
	var out string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		b.logger.Error().Err(err).Str("key", key).Msg("slot read failed")
		return "", err
	}
	return out, nil
}

func (b *Badger) Set(key, value string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), []byte(value))
	})
	if err != nil {
		b.logger.Error().Err(err).Str("key", key).Msg("slot write failed")
		return err
	}
	b.logger.Debug().Str("key", key).Str("value", value).Msg("slot written")
	return nil
}
