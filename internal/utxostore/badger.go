package utxostore

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces wallet state inside a shared database.
const keyPrefix = "cswallet/"

// BadgerStore keeps wallet state in a badger database. Every Set is its
// own transaction; Save syncs the value log.
type BadgerStore struct {
	db       *badger.DB
	inMemory bool
}

// OpenBadger opens (or creates) the database in dir. An empty dir opens an
// in-memory database.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store: %w", err)
	}
	return &BadgerStore{db: db, inMemory: dir == ""}, nil
}

// Get returns the value stored under key.
func (b *BadgerStore) Get(key string) (string, bool, error) {
	var (
		value []byte
		found bool
	)
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return string(value), found, nil
}

// Set stores value under key.
func (b *BadgerStore) Set(key, value string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Save flushes written values to disk.
func (b *BadgerStore) Save() error {
	if b.inMemory {
		return nil
	}
	return b.db.Sync()
}

// Close closes the database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
