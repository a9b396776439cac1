// Package catalog serves migrated novels and search results over HTTP.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"novelhub/internal/search"
	"novelhub/internal/store"
	"novelhub/pkg/models"
)

type Repo struct {
	Store *store.Store
	Index *search.Index
	Cache *NovelCache
}

func NewRepo(st *store.Store, idx *search.Index, cache *NovelCache) *Repo {
	return &Repo{Store: st, Index: idx, Cache: cache}
}

// GetBySlug reads through the cache. A missing novel returns nil, nil.
func (r *Repo) GetBySlug(ctx context.Context, slug string) (*models.Novel, error) {
	if n, ok := r.Cache.Get(slug); ok {
		return n, nil
	}
	n, err := r.Store.Novels.GetBySlug(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get novel: %w", err)
	}
	r.Cache.Set(n)
	return n, nil
}

// Chapters returns the novel's chapters in reading order.
func (r *Repo) Chapters(ctx context.Context, novelID string) ([]*models.Chapter, error) {
	chapters, err := r.Store.Chapters.ListByParent(ctx, novelID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	sortChapters(chapters)
	return chapters, nil
}

func (r *Repo) Search(ctx context.Context, q search.Query) (int, []search.Document, error) {
	total, err := r.Index.SearchCount(ctx, q)
	if err != nil {
		return 0, nil, err
	}
	items, err := r.Index.Search(ctx, q)
	if err != nil {
		return 0, nil, err
	}
	return total, items, nil
}
