// Package cursor persists the per-entity modification watermark used by the
// incremental index synchronizer.
package cursor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Store keeps one int64 unix-nanosecond watermark per entity type.
type Store interface {
	Get(ctx context.Context, entity string) (int64, error)
	// Advance moves the watermark forward. A value at or below the stored
	// one is ignored so the watermark never regresses.
	Advance(ctx context.Context, entity string, value int64) (int64, error)
	// Reset sets the watermark back to zero.
	Reset(ctx context.Context, entity string) error
	All(ctx context.Context) (map[string]int64, error)
}

const prefix = "cursor/"

func key(entity string) []byte { return []byte(prefix + entity) }

// BadgerStore shares the primary store's Badger database.
type BadgerStore struct {
	db *badger.DB
	mu sync.Mutex
}

func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Get(ctx context.Context, entity string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var v int64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		v, err = read(txn, entity)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get cursor %s: %w", entity, err)
	}
	return v, nil
}

func (s *BadgerStore) Advance(ctx context.Context, entity string, value int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored int64
	err := s.db.Update(func(txn *badger.Txn) error {
		cur, err := read(txn, entity)
		if err != nil {
			return err
		}
		if value <= cur {
			stored = cur
			return nil
		}
		stored = value
		return txn.Set(key(entity), encode(value))
	})
	if err != nil {
		return 0, fmt.Errorf("advance cursor %s: %w", entity, err)
	}
	return stored, nil
}

func (s *BadgerStore) Reset(ctx context.Context, entity string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(entity), encode(0))
	})
	if err != nil {
		return fmt.Errorf("reset cursor %s: %w", entity, err)
	}
	return nil
}

func (s *BadgerStore) All(ctx context.Context) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			entity := string(item.Key()[len(prefix):])
			if err := item.Value(func(v []byte) error {
				out[entity] = decode(v)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	return out, nil
}

func read(txn *badger.Txn, entity string) (int64, error) {
	item, err := txn.Get(key(entity))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v int64
	err = item.Value(func(b []byte) error {
		v = decode(b)
		return nil
	})
	return v, err
}

func encode(v int64) []byte { return binary.BigEndian.AppendUint64(nil, uint64(v)) }

func decode(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}
