// Package indexsync keeps the search index current by pulling documents
// modified after a persisted watermark.
package indexsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"novelhub/internal/cursor"
	"novelhub/internal/logging"
	"novelhub/internal/progress"
	"novelhub/internal/search"
)

// Source lists documents of one entity type modified strictly after a
// watermark, oldest first.
type Source interface {
	ModifiedAfter(ctx context.Context, after int64, limit int) ([]Record, error)
}

// Record is a search document plus the store modification stamp it came from.
type Record struct {
	Doc      search.Document
	Modified int64
}

// Index is the part of the search index the synchronizer writes to.
type Index interface {
	Upsert(ctx context.Context, docs []search.Document) error
	Count(ctx context.Context) (int, error)
}

var ErrUnknownEntity = errors.New("unknown entity type")

type Synchronizer struct {
	index    Index
	cursors  cursor.Store
	sources  map[string]Source
	pageSize int
	log      zerolog.Logger
	observer progress.Observer

	// one pass per entity at a time keeps cursor writes single-writer
	locks map[string]*sync.Mutex
}

func New(index Index, cursors cursor.Store, sources map[string]Source, pageSize int, log zerolog.Logger, observer progress.Observer) *Synchronizer {
	if pageSize <= 0 {
		pageSize = 500
	}
	locks := make(map[string]*sync.Mutex, len(sources))
	for entity := range sources {
		locks[entity] = &sync.Mutex{}
	}
	return &Synchronizer{
		index:    index,
		cursors:  cursors,
		sources:  sources,
		pageSize: pageSize,
		log:      logging.Component(log, "indexsync"),
		observer: observer,
		locks:    locks,
	}
}

// Entities returns the configured entity types in sync order.
func (s *Synchronizer) Entities() []string {
	out := make([]string, 0, len(s.sources))
	for _, e := range search.Entities {
		if _, ok := s.sources[e]; ok {
			out = append(out, e)
		}
	}
	var extra []string
	for e := range s.sources {
		found := false
		for _, known := range out {
			if known == e {
				found = true
				break
			}
		}
		if !found {
			extra = append(extra, e)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Heal resets every cursor when the index is empty, since an empty index
// cannot reflect a non-zero watermark. It reports whether a reset happened.
func (s *Synchronizer) Heal(ctx context.Context) (bool, error) {
	n, err := s.index.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count index: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	reset := false
	for _, entity := range s.Entities() {
		cur, err := s.cursors.Get(ctx, entity)
		if err != nil {
			return reset, err
		}
		if cur == 0 {
			continue
		}
		if err := s.cursors.Reset(ctx, entity); err != nil {
			return reset, err
		}
		reset = true
	}
	if reset {
		s.log.Warn().Msg("search index is empty, cursors reset for full catch-up")
		progress.Emit(s.observer, progress.Event{Type: progress.CursorReset})
	}
	return reset, nil
}

// Sync indexes every document of entity modified after its cursor and
// returns how many were upserted. The cursor moves only after a page is
// stored in the index.
func (s *Synchronizer) Sync(ctx context.Context, entity string) (int, error) {
	if _, err := s.Heal(ctx); err != nil {
		return 0, err
	}
	return s.sync(ctx, entity)
}

func (s *Synchronizer) sync(ctx context.Context, entity string) (int, error) {
	src, ok := s.sources[entity]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	mu := s.locks[entity]
	mu.Lock()
	defer mu.Unlock()

	cur, err := s.cursors.Get(ctx, entity)
	if err != nil {
		return 0, err
	}

	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		recs, err := src.ModifiedAfter(ctx, cur, s.pageSize)
		if err != nil {
			return processed, fmt.Errorf("read %s after %d: %w", entity, cur, err)
		}
		if len(recs) == 0 {
			break
		}

		docs := make([]search.Document, len(recs))
		high := cur
		for i, r := range recs {
			docs[i] = r.Doc
			if r.Modified > high {
				high = r.Modified
			}
		}
		if err := s.index.Upsert(ctx, docs); err != nil {
			return processed, fmt.Errorf("index %s page: %w", entity, err)
		}
		if cur, err = s.cursors.Advance(ctx, entity, high); err != nil {
			return processed, err
		}
		processed += len(recs)
		progress.Emit(s.observer, progress.Event{
			Type:      progress.SyncPage,
			Entity:    entity,
			Processed: len(recs),
			Cursor:    cur,
		})

		if len(recs) < s.pageSize {
			break
		}
	}

	progress.Emit(s.observer, progress.Event{
		Type:      progress.SyncFinished,
		Entity:    entity,
		Processed: processed,
		Cursor:    cur,
	})
	s.log.Info().Str("entity", entity).Int("processed", processed).Int64("cursor", cur).Msg("sync finished")
	return processed, nil
}

// SyncAll heals once, then syncs every entity type. An entity failing does
// not stop the others; the errors are joined.
func (s *Synchronizer) SyncAll(ctx context.Context) (map[string]int, error) {
	if _, err := s.Heal(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(s.sources))
	var errs []error
	for _, entity := range s.Entities() {
		n, err := s.sync(ctx, entity)
		out[entity] = n
		if err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", entity, err))
		}
	}
	return out, errors.Join(errs...)
}

// Cursors returns the stored watermark of every configured entity type.
func (s *Synchronizer) Cursors(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(s.sources))
	for _, entity := range s.Entities() {
		v, err := s.cursors.Get(ctx, entity)
		if err != nil {
			return nil, err
		}
		out[entity] = v
	}
	return out, nil
}
