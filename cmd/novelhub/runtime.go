package main

import (
	"context"
	"fmt"

	"novelhub/internal/cursor"
	"novelhub/internal/indexsync"
	"novelhub/internal/legacy"
	"novelhub/internal/metrics"
	"novelhub/internal/migrate"
	"novelhub/internal/progress"
	"novelhub/internal/search"
	"novelhub/internal/store"
	"novelhub/pkg/database"
)

// runtime holds every opened dependency for one command.
type runtime struct {
	store    *store.Store
	index    *search.Index
	source   *legacy.Source
	cursors  *cursor.BadgerStore
	syncer   *indexsync.Synchronizer
	hub      *progress.Hub
	metrics  *metrics.Metrics
	observer progress.Observer

	closers []func() error
}

type openOpts struct {
	legacy bool
}

// open fails fast: any store that cannot be opened is a fatal init error.
func (a *app) open(ctx context.Context, o openOpts) (*runtime, error) {
	rt := &runtime{hub: progress.NewHub(), metrics: metrics.New()}
	rt.observer = progress.Fanout{progress.LogObserver(a.log), rt.hub, rt.metrics}

	st, err := store.Open(store.Options{
		Path:     a.cfg.Store.Path,
		InMemory: a.cfg.Store.InMemory,
		Logger:   a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.store = st
	rt.closers = append(rt.closers, st.Close)

	idx, err := search.Open(a.cfg.Search.Path)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("open search index: %w", err)
	}
	rt.index = idx
	rt.closers = append(rt.closers, idx.Close)

	if o.legacy {
		db, err := database.OpenReadOnly(database.Config{Driver: a.cfg.Legacy.Driver, DSN: a.cfg.Legacy.DSN})
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("open legacy database: %w", err)
		}
		rt.closers = append(rt.closers, db.Close)
		rt.source = legacy.NewSource(db, a.cfg.Legacy.Driver, a.cfg.Legacy.QueryTimeout)
		if err := rt.source.Check(ctx); err != nil {
			rt.close()
			return nil, err
		}
	}

	rt.cursors = cursor.NewBadgerStore(st.Badger())
	rt.syncer = indexsync.New(idx, rt.cursors, indexsync.StoreSources(st), a.cfg.Sync.PageSize, a.log, rt.observer)

	if err := ctx.Err(); err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) deps(a *app, cache migrate.Invalidator) migrate.Deps {
	d := migrate.Deps{
		Store:    rt.store,
		Index:    rt.index,
		Cache:    cache,
		Observer: rt.observer,
		Log:      a.log,
	}
	if rt.source != nil {
		d.Source = rt.source
	}
	return d
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i]()
	}
	rt.closers = nil
}

func (a *app) migrateOptions() migrate.Options {
	return migrate.Options{
		BatchSize:         a.cfg.Migration.BatchSize,
		Workers:           a.cfg.Migration.Workers,
		MaxNovels:         a.cfg.Migration.MaxNovels,
		DryRun:            a.cfg.Migration.DryRun,
		MaxGenres:         a.cfg.Taxonomy.MaxGenres,
		FavoriteThreshold: a.cfg.Social.FavoriteThreshold,
	}
}
