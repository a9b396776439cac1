package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/internal/legacy/legacytest"
	"novelhub/internal/search"
	"novelhub/pkg/models"
)

func seedNovel42(e *testEnv) {
	e.legacy.Genre(1, "Sci-fi")
	e.legacy.Genre(2, "Game")
	e.legacy.Novel(legacytest.Novel{
		ID:     42,
		Title:  "Star Raiders Online",
		Author: "Ann",
		Status: "completed",
		Genres: []string{"Sci-fi", "Game"},
	})
	e.legacy.Chapter(421, 42, 1, 100)
	e.legacy.Chapter(422, 42, 2, 200)
	e.legacy.Chapter(423, 42, 3, 150)
}

func genreNames(t *testing.T, e *testEnv, ids []string) []string {
	t.Helper()
	var out []string
	for _, id := range ids {
		g, err := e.store.Genres.Get(context.Background(), id)
		require.NoError(t, err)
		out = append(out, g.Name)
	}
	return out
}

func TestNovelMigrationAndRerun(t *testing.T) {
	e := newTestEnv(t)
	seedNovel42(e)
	ctx := context.Background()

	report := e.migrateAll(t, testOptions())
	assert.Zero(t, report.Failed())

	n, err := e.store.Novels.GetByKey(ctx, models.LegacyKey(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n.Seq)
	assert.Equal(t, "star-raiders-online", n.Slug)
	assert.Equal(t, models.NovelCompleted, n.Status)
	assert.Equal(t, 3, n.ChaptersCount)
	assert.Equal(t, 450, n.WordCount)
	assert.Equal(t, []string{"Science Fiction", "Gaming"}, genreNames(t, e, n.GenreIDs))
	assert.Equal(t, []string{}, n.TagIDs)

	chapters, err := e.store.Chapters.ListByParent(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, chapters, 3)
	bySeq := map[int]*models.Chapter{}
	for _, c := range chapters {
		bySeq[c.Sequence] = c
	}
	assert.Equal(t, 100, bySeq[1].WordCount)
	assert.Equal(t, 200, bySeq[2].WordCount)
	assert.Equal(t, 150, bySeq[3].WordCount)
	assert.Equal(t, bySeq[1].ID, n.FirstChapterID)
	assert.Equal(t, bySeq[3].ID, n.LatestChapterID)
	assert.Equal(t, 3, n.LatestChapterSeq)

	doc, err := e.index.Get(ctx, search.EntityNovels, n.ID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Star Raiders Online", doc.Title)

	// a chapter published after the first run
	e.legacy.Chapter(424, 42, 4, 50)
	report = e.migrateAll(t, testOptions())
	assert.Zero(t, report.Failed())

	content, ok := report.Stage(StageContent)
	require.True(t, ok)
	assert.Equal(t, 1, content.Migrated)

	n, err = e.store.Novels.GetByKey(ctx, models.LegacyKey(42))
	require.NoError(t, err)
	assert.Equal(t, 4, n.ChaptersCount)
	assert.Equal(t, 500, n.WordCount)
	assert.Equal(t, 4, n.LatestChapterSeq)

	novels, err := e.store.Novels.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, novels)
	genres, err := e.store.Genres.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, genres)
}

func TestRerunWithoutChangesSkips(t *testing.T) {
	e := newTestEnv(t)
	seedNovel42(e)

	e.migrateAll(t, testOptions())
	report := e.migrateAll(t, testOptions())

	content, ok := report.Stage(StageContent)
	require.True(t, ok)
	assert.Equal(t, 0, content.Migrated)
	assert.Equal(t, 1, content.Skipped)

	stats, ok := report.Stage(StageStats)
	require.True(t, ok)
	assert.Equal(t, 0, stats.Migrated)

	chapters, err := e.store.Chapters.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, chapters)
}

func TestUnpublishedChaptersAreStoredButNotCounted(t *testing.T) {
	e := newTestEnv(t)
	e.legacy.Novel(legacytest.Novel{ID: 1, Title: "Drafty"})
	e.legacy.Chapter(1, 1, 1, 10)
	e.legacy.ChapterContent(2, 1, 2, legacytest.Words(20), false)
	e.legacy.ChapterContent(3, 1, 3, "<p>three <b>html</b> words</p>", true)

	e.migrateAll(t, testOptions())

	n, err := e.store.Novels.GetByKey(context.Background(), models.LegacyKey(1))
	require.NoError(t, err)
	assert.Equal(t, 2, n.ChaptersCount)
	assert.Equal(t, 13, n.WordCount)
	assert.Equal(t, 3, n.LatestChapterSeq)

	chapters, err := e.store.Chapters.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, chapters)
}

func TestUnknownStatusAndUnresolvedGenresWarn(t *testing.T) {
	e := newTestEnv(t)
	e.legacy.Novel(legacytest.Novel{ID: 1, Title: "Odd", Status: "mystery-state", Genres: []string{"Basket Weaving"}})

	report := e.migrateAll(t, testOptions())
	content, ok := report.Stage(StageContent)
	require.True(t, ok)
	assert.Equal(t, 1, content.Migrated)
	assert.Len(t, content.Warnings, 2)

	n, err := e.store.Novels.GetByKey(context.Background(), models.LegacyKey(1))
	require.NoError(t, err)
	assert.Equal(t, models.NovelOngoing, n.Status)
	assert.Empty(t, n.GenreIDs)
}

func TestPartiallyResolvedGenresWarnOnce(t *testing.T) {
	e := newTestEnv(t)
	e.legacy.Genre(1, "Sci-fi")
	e.legacy.Novel(legacytest.Novel{ID: 1, Title: "Mixed", Status: "ongoing", Genres: []string{"Sci-fi", "Basket Weaving", "Basket Weaving "}})

	report := e.migrateAll(t, testOptions())
	content, ok := report.Stage(StageContent)
	require.True(t, ok)
	require.Len(t, content.Warnings, 1)
	assert.Contains(t, content.Warnings[0], `unresolved genres ["Basket Weaving"]`)

	n, err := e.store.Novels.GetByKey(context.Background(), models.LegacyKey(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"Science Fiction"}, genreNames(t, e, n.GenreIDs))
}

func TestSlugCollisionsGetSuffixes(t *testing.T) {
	e := newTestEnv(t)
	for id := int64(1); id <= 3; id++ {
		e.legacy.Novel(legacytest.Novel{ID: id, Title: "Same Title"})
	}
	e.legacy.Novel(legacytest.Novel{ID: 4, Title: "!!!"})

	e.migrateAll(t, testOptions())

	slugs := map[string]bool{}
	require.NoError(t, e.store.Novels.Each(context.Background(), func(n *models.Novel) error {
		slugs[n.Slug] = true
		return nil
	}))
	assert.Equal(t, map[string]bool{
		"same-title":   true,
		"same-title-2": true,
		"same-title-3": true,
		"novel-4":      true,
	}, slugs)
}

func TestMaxNovelsBoundsContent(t *testing.T) {
	e := newTestEnv(t)
	for id := int64(1); id <= 5; id++ {
		e.legacy.Novel(legacytest.Novel{ID: id, Title: "Novel"})
	}

	opts := testOptions()
	opts.MaxNovels = 3
	report := e.migrateAll(t, opts)

	content, ok := report.Stage(StageContent)
	require.True(t, ok)
	assert.Equal(t, 3, content.Total)
	assert.Equal(t, 3, content.Migrated)

	n, err := e.store.Novels.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = e.store.Novels.GetByKey(context.Background(), models.LegacyKey(4))
	assert.Error(t, err)
}

func TestComputeStats(t *testing.T) {
	n := &models.Novel{}
	chapters := []*models.Chapter{
		{Base: models.Base{ID: "b"}, Sequence: 2, WordCount: 5, Published: true},
		{Base: models.Base{ID: "a"}, Sequence: 1, WordCount: 7, Published: true},
		{Base: models.Base{ID: "c"}, Sequence: 3, WordCount: 100},
	}
	assert.True(t, computeStats(n, chapters))
	assert.Equal(t, 2, n.ChaptersCount)
	assert.Equal(t, 12, n.WordCount)
	assert.Equal(t, "a", n.FirstChapterID)
	assert.Equal(t, "b", n.LatestChapterID)
	assert.False(t, computeStats(n, chapters))

	assert.True(t, computeStats(n, nil))
	assert.Zero(t, n.ChaptersCount)
	assert.Empty(t, n.LatestChapterID)
}
