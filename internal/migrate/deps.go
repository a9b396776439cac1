// Package migrate moves the legacy relational dataset into the document
// store, stage by stage, and reconciles the derived novel aggregates.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"novelhub/internal/legacy"
	"novelhub/internal/progress"
	"novelhub/internal/search"
	"novelhub/internal/store"
)

// LegacySource is the read side of the legacy database.
type LegacySource interface {
	Genres(ctx context.Context) ([]legacy.Taxon, error)
	Tags(ctx context.Context) ([]legacy.Taxon, error)
	Novels(ctx context.Context, afterID int64, limit int) ([]legacy.Novel, error)
	CountNovels(ctx context.Context) (int, error)
	Chapters(ctx context.Context, novelID int64) ([]legacy.Chapter, error)
	Users(ctx context.Context, afterID int64, limit int) ([]legacy.User, error)
	UsersWithBookmarks(ctx context.Context, afterID int64, limit int) ([]legacy.User, error)
	Ratings(ctx context.Context, afterID int64, limit int) ([]legacy.Rating, error)
	Comments(ctx context.Context, afterID int64, limit int) ([]legacy.Comment, error)
	ReadingLists(ctx context.Context, afterID int64, limit int) ([]legacy.ReadingList, error)
	ReadingListItems(ctx context.Context, listID int64) ([]legacy.ReadingListItem, error)
}

// Indexer receives documents pushed right after a write.
type Indexer interface {
	Upsert(ctx context.Context, docs []search.Document) error
}

// Invalidator drops cached read models keyed by novel slug.
type Invalidator interface {
	Invalidate(slug string)
}

type Deps struct {
	Source   LegacySource
	Store    *store.Store
	Index    Indexer
	Cache    Invalidator
	Observer progress.Observer
	Log      zerolog.Logger
}

type Options struct {
	BatchSize int
	Workers   int
	// MaxNovels caps migrated novels; -1 means no cap.
	MaxNovels         int
	DryRun            bool
	MaxGenres         int
	// FavoriteThreshold is used as given; 0 turns every positive rating
	// into a favorite. Configuration supplies the default.
	FavoriteThreshold int
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 200
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxGenres < 2 {
		o.MaxGenres = 50
	}
	return o
}

// reservations hands out unique names across concurrent workers. taken
// reports whether a name already exists in the store.
type reservations struct {
	mu    sync.Mutex
	names map[string]struct{}
	taken func(ctx context.Context, name string) (bool, error)
}

func newReservations(taken func(ctx context.Context, name string) (bool, error)) *reservations {
	return &reservations{names: make(map[string]struct{}), taken: taken}
}

// reserve returns base, or base with the first free numeric suffix from next.
func (r *reservations) reserve(ctx context.Context, base string, next func(base string, n int) string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	candidate := base
	for n := 1; ; n++ {
		if n > 1 {
			candidate = next(base, n)
		}
		if _, ok := r.names[candidate]; ok {
			continue
		}
		taken, err := r.taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			r.names[candidate] = struct{}{}
			return candidate, nil
		}
	}
}

// release lets a name be handed out again after a failed write.
func (r *reservations) release(name string) {
	r.mu.Lock()
	delete(r.names, name)
	r.mu.Unlock()
}

// dashSuffix yields slug, slug-2, slug-3 ...
func dashSuffix(base string, n int) string { return base + "-" + strconv.Itoa(n) }

// pushIndex upserts one document; failures become warnings.
func pushIndex(ctx context.Context, idx Indexer, doc search.Document, err error) []string {
	if idx == nil {
		return nil
	}
	if err == nil {
		err = idx.Upsert(ctx, []search.Document{doc})
	}
	if err != nil {
		return []string{fmt.Sprintf("index %s %s: %v", doc.Entity, doc.ID, err)}
	}
	return nil
}

func isDuplicate(err error) bool { return errors.Is(err, store.ErrDuplicate) }
func isNotFound(err error) bool  { return errors.Is(err, store.ErrNotFound) }
func isSlugTaken(err error) bool { return errors.Is(err, store.ErrSlugTaken) }
