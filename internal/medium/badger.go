package medium

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Badger persists items in an embedded badger database.
type Badger struct {
	db       *badger.DB
	capacity int
}

// NewBadger opens the database at dir; an empty dir opens an in-memory instance.
func NewBadger(dir string, capacity int) (*Badger, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	db, err := badger.Open(opts.WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db, capacity: capacity}, nil
}

func (b *Badger) SetItem(_ context.Context, key, value string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		used, err := b.usedExcept(txn, key)
		if err != nil {
			return err
		}
		if exceeds(b.capacity, used+itemSize(key, value)) {
			return ErrQuotaExceeded
		}
		return txn.Set([]byte(key), []byte(value))
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return ErrQuotaExceeded
	}
	return closedErr(err)
}

// closedErr marks operations on a closed database as ErrUnavailable.
func closedErr(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func (b *Badger) usedExcept(txn *badger.Txn, skip string) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	total := 0
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		k := string(item.Key())
		if k == skip {
			continue
		}
		total += len(k) + int(item.ValueSize())
	}
	return total, nil
}

func (b *Badger) GetItem(_ context.Context, key string) (string, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, closedErr(err)
	}
	return string(value), true, nil
}

func (b *Badger) RemoveItem(_ context.Context, key string) error {
	return closedErr(b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	}))
}

func (b *Badger) Close() error {
	return b.db.Close()
}
