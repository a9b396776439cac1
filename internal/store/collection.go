package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Collection stores documents of one type.
//
// Writes to a collection are serialized. Each write stamps UpdatedAt with a
// value strictly greater than every earlier stamp in the collection, so the
// modification index never holds two documents with the same time and a
// watermark compared with ">" cannot skip a committed document.
type Collection[T any, P interface {
	*T
	Document
}] struct {
	s    *Store
	name string

	mu   sync.Mutex
	last int64

	now func() time.Time
}

func newCollection[T any, P interface {
	*T
	Document
}](s *Store, name string) (*Collection[T, P], error) {
	c := &Collection[T, P]{s: s, name: name, now: time.Now}
	last, err := c.lastModified()
	if err != nil {
		return nil, fmt.Errorf("load clock for %s: %w", name, err)
	}
	c.last = last
	return c, nil
}

func (c *Collection[T, P]) Name() string { return c.name }

// lastModified reads the newest modification stamp persisted for the collection.
func (c *Collection[T, P]) lastModified() (int64, error) {
	prefix := collectionPrefix(prefixModified, c.name)
	var last int64
	err := c.s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), bytes.Repeat([]byte{0xff}, 9)...)
		it.Seek(seek)
		if it.ValidForPrefix(prefix) {
			last, _ = decodeModifiedKey(len(prefix), it.Item().Key())
		}
		return nil
	})
	return last, err
}

// stamp returns the next modification time. Callers hold c.mu.
func (c *Collection[T, P]) stamp() time.Time {
	n := c.now().UTC().UnixNano()
	if n <= c.last {
		n = c.last + 1
	}
	c.last = n
	return time.Unix(0, n).UTC()
}

// Insert writes a new document. A missing ID is generated, a zero Seq is
// allocated from the collection sequence and a zero CreatedAt is set to now.
// ErrDuplicate is returned when the natural key already exists and
// ErrSlugTaken when the slug belongs to another document.
func (c *Collection[T, P]) Insert(ctx context.Context, doc P) error {
	if err := c.guard(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	meta := doc.Meta()
	prev := *meta
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}

	err := c.s.db.Update(func(txn *badger.Txn) error {
		if nk := doc.NaturalKey(); nk != "" {
			if _, err := txn.Get(naturalKey(c.name, nk)); err == nil {
				return ErrDuplicate
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		if _, err := txn.Get(docKey(c.name, meta.ID)); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if slug := doc.SlugKey(); slug != "" {
			owner, err := getString(txn, slugKey(c.name, slug))
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			if owner != "" {
				return ErrSlugTaken
			}
		}

		seq, err := c.nextSeq(txn, meta.Seq)
		if err != nil {
			return err
		}
		meta.Seq = seq

		stamp := c.stamp()
		if meta.CreatedAt.IsZero() {
			meta.CreatedAt = stamp
		}
		meta.UpdatedAt = stamp

		return c.writeIndexed(txn, doc, nil)
	})
	if err != nil {
		*meta = prev
		return fmt.Errorf("insert %s: %w", c.name, err)
	}
	return nil
}

// Update replaces an existing document and moves its index entries.
func (c *Collection[T, P]) Update(ctx context.Context, doc P) error {
	if err := c.guard(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	meta := doc.Meta()
	prevUpdated := meta.UpdatedAt
	err := c.s.db.Update(func(txn *badger.Txn) error {
		old, err := c.get(txn, meta.ID)
		if err != nil {
			return err
		}
		if slug := doc.SlugKey(); slug != "" && slug != old.SlugKey() {
			owner, err := getString(txn, slugKey(c.name, slug))
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			if owner != "" && owner != meta.ID {
				return ErrSlugTaken
			}
		}
		if nk := doc.NaturalKey(); nk != "" && nk != old.NaturalKey() {
			owner, err := getString(txn, naturalKey(c.name, nk))
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			if owner != "" && owner != meta.ID {
				return ErrDuplicate
			}
		}

		meta.UpdatedAt = c.stamp()
		return c.writeIndexed(txn, doc, old)
	})
	if err != nil {
		meta.UpdatedAt = prevUpdated
		return fmt.Errorf("update %s %s: %w", c.name, meta.ID, err)
	}
	return nil
}

// writeIndexed stores doc and its index entries, removing stale entries of old.
func (c *Collection[T, P]) writeIndexed(txn *badger.Txn, doc P, old P) error {
	meta := doc.Meta()
	if old != nil {
		om := old.Meta()
		if err := txn.Delete(modifiedKey(c.name, om.UpdatedAt.UnixNano(), om.ID)); err != nil {
			return err
		}
		if nk := old.NaturalKey(); nk != "" && nk != doc.NaturalKey() {
			if err := txn.Delete(naturalKey(c.name, nk)); err != nil {
				return err
			}
		}
		if slug := old.SlugKey(); slug != "" && slug != doc.SlugKey() {
			if err := txn.Delete(slugKey(c.name, slug)); err != nil {
				return err
			}
		}
		if pk := old.ParentKey(); pk != "" && pk != doc.ParentKey() {
			if err := txn.Delete(parentKey(c.name, pk, om.ID)); err != nil {
				return err
			}
		}
	}

	data, err := msgpack.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := txn.Set(docKey(c.name, meta.ID), data); err != nil {
		return err
	}
	id := []byte(meta.ID)
	if nk := doc.NaturalKey(); nk != "" {
		if err := txn.Set(naturalKey(c.name, nk), id); err != nil {
			return err
		}
	}
	if slug := doc.SlugKey(); slug != "" {
		if err := txn.Set(slugKey(c.name, slug), id); err != nil {
			return err
		}
	}
	if pk := doc.ParentKey(); pk != "" {
		if err := txn.Set(parentKey(c.name, pk, meta.ID), nil); err != nil {
			return err
		}
	}
	return txn.Set(modifiedKey(c.name, meta.UpdatedAt.UnixNano(), meta.ID), nil)
}

// nextSeq allocates a sequence value, or keeps an explicit one and raises the
// counter past it so later allocations never collide.
func (c *Collection[T, P]) nextSeq(txn *badger.Txn, explicit int64) (int64, error) {
	var cur uint64
	item, err := txn.Get(seqKey(c.name))
	switch {
	case err == nil:
		if err := item.Value(func(v []byte) error {
			if len(v) == 8 {
				cur = binary.BigEndian.Uint64(v)
			}
			return nil
		}); err != nil {
			return 0, err
		}
	case errors.Is(err, badger.ErrKeyNotFound):
	default:
		return 0, err
	}

	next := int64(cur) + 1
	if explicit > 0 {
		next = explicit
	}
	if next > int64(cur) {
		if err := txn.Set(seqKey(c.name), binary.BigEndian.AppendUint64(nil, uint64(next))); err != nil {
			return 0, err
		}
	}
	return next, nil
}

func (c *Collection[T, P]) Get(ctx context.Context, id string) (P, error) {
	if err := c.guard(ctx); err != nil {
		return nil, err
	}
	var doc P
	err := c.s.db.View(func(txn *badger.Txn) error {
		var err error
		doc, err = c.get(txn, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", c.name, id, err)
	}
	return doc, nil
}

// GetByKey looks a document up by its natural key.
func (c *Collection[T, P]) GetByKey(ctx context.Context, key string) (P, error) {
	return c.getVia(ctx, naturalKey(c.name, key), "key", key)
}

func (c *Collection[T, P]) GetBySlug(ctx context.Context, slug string) (P, error) {
	return c.getVia(ctx, slugKey(c.name, slug), "slug", slug)
}

func (c *Collection[T, P]) getVia(ctx context.Context, indexKey []byte, kind, value string) (P, error) {
	if err := c.guard(ctx); err != nil {
		return nil, err
	}
	var doc P
	err := c.s.db.View(func(txn *badger.Txn) error {
		id, err := getString(txn, indexKey)
		if err != nil {
			return err
		}
		doc, err = c.get(txn, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get %s by %s %q: %w", c.name, kind, value, err)
	}
	return doc, nil
}

// SlugTaken reports whether any document in the collection owns slug.
func (c *Collection[T, P]) SlugTaken(ctx context.Context, slug string) (bool, error) {
	if err := c.guard(ctx); err != nil {
		return false, err
	}
	var taken bool
	err := c.s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(slugKey(c.name, slug))
		switch {
		case err == nil:
			taken = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return false, fmt.Errorf("check slug %s: %w", c.name, err)
	}
	return taken, nil
}

// ListByParent returns the children of parent ordered by id.
func (c *Collection[T, P]) ListByParent(ctx context.Context, parent string) ([]P, error) {
	if err := c.guard(ctx); err != nil {
		return nil, err
	}
	prefix := parentPrefix(c.name, parent)
	var out []P
	err := c.s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(it.Item().Key()[len(prefix):])
			doc, err := c.get(txn, id)
			if err != nil {
				return err
			}
			out = append(out, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s by parent %s: %w", c.name, parent, err)
	}
	return out, nil
}

// Scan returns up to limit documents with id greater than after, in id order.
func (c *Collection[T, P]) Scan(ctx context.Context, after string, limit int) ([]P, error) {
	if err := c.guard(ctx); err != nil {
		return nil, err
	}
	prefix := collectionPrefix(prefixDoc, c.name)
	var out []P
	err := c.s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		start := prefix
		if after != "" {
			start = append(docKey(c.name, after), 0x00)
		}
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			doc, err := decodeItem[T, P](it.Item())
			if err != nil {
				return err
			}
			out = append(out, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", c.name, err)
	}
	return out, nil
}

// Each walks the whole collection in pages, stopping at the first error.
func (c *Collection[T, P]) Each(ctx context.Context, fn func(P) error) error {
	const page = 500
	after := ""
	for {
		docs, err := c.Scan(ctx, after, page)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if err := fn(d); err != nil {
				return err
			}
		}
		if len(docs) < page {
			return nil
		}
		after = docs[len(docs)-1].Meta().ID
	}
}

func (c *Collection[T, P]) Count(ctx context.Context) (int, error) {
	if err := c.guard(ctx); err != nil {
		return 0, err
	}
	prefix := collectionPrefix(prefixDoc, c.name)
	n := 0
	err := c.s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return n, nil
}

// ModifiedAfter returns up to limit documents whose UpdatedAt is strictly
// after the given unix nanos, oldest first.
func (c *Collection[T, P]) ModifiedAfter(ctx context.Context, after int64, limit int) ([]P, error) {
	if err := c.guard(ctx); err != nil {
		return nil, err
	}
	prefix := collectionPrefix(prefixModified, c.name)
	var out []P
	err := c.s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		start := binary.BigEndian.AppendUint64(append([]byte{}, prefix...), uint64(after+1))
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			_, id := decodeModifiedKey(len(prefix), it.Item().Key())
			doc, err := c.get(txn, id)
			if err != nil {
				return err
			}
			out = append(out, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s modified after %d: %w", c.name, after, err)
	}
	return out, nil
}

func (c *Collection[T, P]) get(txn *badger.Txn, id string) (P, error) {
	item, err := txn.Get(docKey(c.name, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeItem[T, P](item)
}

func (c *Collection[T, P]) guard(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.s.checkOpen()
}

func decodeItem[T any, P interface {
	*T
	Document
}](item *badger.Item) (P, error) {
	doc := P(new(T))
	err := item.Value(func(v []byte) error {
		return msgpack.Unmarshal(v, doc)
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", item.Key(), err)
	}
	return doc, nil
}

func getString(txn *badger.Txn, key []byte) (string, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(v), nil
}
