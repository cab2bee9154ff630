package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore persists numbers in an embedded Badger database.
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

func NewBadgerStore(path, prefix string) (*BadgerStore, error) {
	slog.Info("🔌 Opening Badger store...", "path", path)

	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", path, err)
	}

	slog.Info("✅ Badger store opened", "path", path)
	return &BadgerStore{db: db, prefix: prefix}, nil
}

func (b *BadgerStore) fullKey(k string) ([]byte, error) {
	if k == "" {
		return nil, ErrKeyEmpty
	}
	if b.prefix != "" {
		return []byte(b.prefix + "/" + k), nil
	}
	return []byte(k), nil
}

func (b *BadgerStore) LoadNumber(_ context.Context, key string) (float64, bool, error) {
	k, err := b.fullKey(key)
	if err != nil {
		return 0, false, err
	}

	var raw []byte
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load %s: %w", key, err)
	}

	v, err := decodeNumber(key, string(raw))
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (b *BadgerStore) SaveNumber(_ context.Context, key string, value float64) error {
	k, err := b.fullKey(key)
	if err != nil {
		return err
	}

	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, []byte(encodeNumber(value)))
	}); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (b *BadgerStore) Close() error {
	slog.Info("🔌 Closing Badger store...")
	return b.db.Close()
}
