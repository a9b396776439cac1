package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Options{InMemory: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestInsertAssignsIdentity(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	n := &models.Novel{Base: models.Base{LegacyID: 42, Seq: 42}, Title: "Stars", Slug: "stars"}
	require.NoError(t, st.Novels.Insert(ctx, n))

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, int64(42), n.Seq)
	assert.False(t, n.CreatedAt.IsZero())
	assert.False(t, n.UpdatedAt.IsZero())

	got, err := st.Novels.GetByKey(ctx, models.LegacyKey(42))
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, "Stars", got.Title)

	bySlug, err := st.Novels.GetBySlug(ctx, "stars")
	require.NoError(t, err)
	assert.Equal(t, n.ID, bySlug.ID)
}

func TestInsertAllocatesSequencePastExplicit(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	explicit := &models.Favorite{Base: models.Base{Seq: 10}, UserID: "u1", NovelID: "n1"}
	require.NoError(t, st.Favorites.Insert(ctx, explicit))

	next := &models.Favorite{UserID: "u1", NovelID: "n2"}
	require.NoError(t, st.Favorites.Insert(ctx, next))
	assert.Equal(t, int64(11), next.Seq)
}

func TestInsertDuplicateNaturalKey(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Novels.Insert(ctx, &models.Novel{Base: models.Base{LegacyID: 7}, Slug: "a"}))

	dup := &models.Novel{Base: models.Base{LegacyID: 7}, Slug: "b"}
	err := st.Novels.Insert(ctx, dup)
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Empty(t, dup.ID, "failed insert must not leave a generated id behind")

	n, err := st.Novels.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSlugTaken(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	a := &models.Novel{Base: models.Base{LegacyID: 1}, Slug: "same"}
	require.NoError(t, st.Novels.Insert(ctx, a))

	err := st.Novels.Insert(ctx, &models.Novel{Base: models.Base{LegacyID: 2}, Slug: "same"})
	require.ErrorIs(t, err, ErrSlugTaken)

	taken, err := st.Novels.SlugTaken(ctx, "same")
	require.NoError(t, err)
	assert.True(t, taken)

	b := &models.Novel{Base: models.Base{LegacyID: 2}, Slug: "other"}
	require.NoError(t, st.Novels.Insert(ctx, b))
	b.Slug = "same"
	require.ErrorIs(t, st.Novels.Update(ctx, b), ErrSlugTaken)

	// renaming frees the old slug
	a.Slug = "renamed"
	require.NoError(t, st.Novels.Update(ctx, a))
	taken, err = st.Novels.SlugTaken(ctx, "same")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestGetMissing(t *testing.T) {
	st := openTestStore(t)
	_, err := st.Users.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = st.Users.GetBySlug(context.Background(), "nobody")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStampsStrictlyIncrease(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st.Genres.now = func() time.Time { return frozen }

	var prev time.Time
	for i := 1; i <= 5; i++ {
		g := &models.Taxon{Base: models.Base{LegacyID: int64(i)}, Kind: models.KindGenre, Slug: fmt.Sprintf("g%d", i)}
		require.NoError(t, st.Genres.Insert(ctx, g))
		assert.True(t, g.UpdatedAt.After(prev), "stamp %d must be after %s", i, prev)
		prev = g.UpdatedAt
	}
}

func TestModifiedAfterOrdersByStamp(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 1; i <= 3; i++ {
		u := &models.User{Base: models.Base{LegacyID: int64(i)}, Username: fmt.Sprintf("user%d", i)}
		require.NoError(t, st.Users.Insert(ctx, u))
		ids = append(ids, u.ID)
	}

	first, err := st.Users.Get(ctx, ids[0])
	require.NoError(t, err)
	first.DisplayName = "touched"
	require.NoError(t, st.Users.Update(ctx, first))

	all, err := st.Users.ModifiedAfter(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{ids[1], ids[2], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID})

	after, err := st.Users.ModifiedAfter(ctx, all[0].UpdatedAt.UnixNano(), 1)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, ids[2], after[0].ID)
}

func TestConcurrentWritesNeverShareStamp(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				c := &models.Chapter{Base: models.Base{LegacyID: int64(w*100 + i + 1)}, NovelID: "n"}
				assert.NoError(t, st.Chapters.Insert(ctx, c))
			}
		}(w)
	}
	wg.Wait()

	docs, err := st.Chapters.ModifiedAfter(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, docs, 100)
	seen := make(map[int64]bool)
	for i, d := range docs {
		ns := d.UpdatedAt.UnixNano()
		assert.False(t, seen[ns])
		seen[ns] = true
		if i > 0 {
			assert.Greater(t, ns, docs[i-1].UpdatedAt.UnixNano())
		}
	}
}

func TestListByParent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, st.Chapters.Insert(ctx, &models.Chapter{Base: models.Base{LegacyID: int64(i)}, NovelID: "a", Sequence: i}))
	}
	require.NoError(t, st.Chapters.Insert(ctx, &models.Chapter{Base: models.Base{LegacyID: 9}, NovelID: "b", Sequence: 1}))

	a, err := st.Chapters.ListByParent(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, a, 3)

	b, err := st.Chapters.ListByParent(ctx, "b")
	require.NoError(t, err)
	require.Len(t, b, 1)
	assert.Equal(t, int64(9), b[0].LegacyID)

	// moving a chapter updates the parent index
	b[0].NovelID = "a"
	require.NoError(t, st.Chapters.Update(ctx, b[0]))
	a, err = st.Chapters.ListByParent(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, a, 4)
	b, err = st.Chapters.ListByParent(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestEachPagesWholeCollection(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 1203; i++ {
		require.NoError(t, st.Comments.Insert(ctx, &models.Comment{Base: models.Base{LegacyID: int64(i)}, NovelID: "n"}))
	}
	seen := 0
	require.NoError(t, st.Comments.Each(ctx, func(*models.Comment) error {
		seen++
		return nil
	}))
	assert.Equal(t, 1203, seen)

	page, err := st.Comments.Scan(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, page, 10)
	next, err := st.Comments.Scan(ctx, page[9].ID, 10)
	require.NoError(t, err)
	require.Len(t, next, 10)
	assert.Greater(t, next[0].ID, page[9].ID)
}

func TestClockSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st, err := Open(Options{Path: dir, Logger: zerolog.Nop()})
	require.NoError(t, err)
	first := &models.Taxon{Base: models.Base{LegacyID: 1}, Kind: models.KindTag, Slug: "t1"}
	require.NoError(t, st.Tags.Insert(ctx, first))
	require.NoError(t, st.Close())

	st, err = Open(Options{Path: dir, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer st.Close()

	st.Tags.now = func() time.Time { return first.UpdatedAt.Add(-time.Hour) }
	second := &models.Taxon{Base: models.Base{LegacyID: 2}, Kind: models.KindTag, Slug: "t2"}
	require.NoError(t, st.Tags.Insert(ctx, second))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestClosedStore(t *testing.T) {
	st, err := Open(Options{InMemory: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.NoError(t, st.Close())

	_, err = st.Novels.Count(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
