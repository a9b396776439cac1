package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/internal/search"
	"novelhub/pkg/models"
)

func TestReconcileFixesDrift(t *testing.T) {
	e := newTestEnv(t)
	seedNovel42(e)
	e.migrateAll(t, testOptions())
	ctx := context.Background()

	n, err := e.store.Novels.GetByKey(ctx, models.LegacyKey(42))
	require.NoError(t, err)
	n.WordCount = 1
	n.ChaptersCount = 99
	require.NoError(t, e.store.Novels.Update(ctx, n))

	cache := &invalidations{}
	d := e.deps()
	d.Cache = cache
	res := NewReconciler(d, testOptions()).Reconcile(ctx)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Migrated)
	assert.Equal(t, []string{n.Slug}, cache.slugs)

	fixed, err := e.store.Novels.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, 450, fixed.WordCount)
	assert.Equal(t, 3, fixed.ChaptersCount)

	doc, err := e.index.Get(ctx, search.EntityNovels, n.ID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Contains(t, string(doc.Payload), `"word_count":450`)

	again := NewReconciler(d, testOptions()).Reconcile(ctx)
	assert.Equal(t, 1, again.Skipped)
	assert.Len(t, cache.slugs, 1)
}

func TestReconcileDryRunLeavesStore(t *testing.T) {
	e := newTestEnv(t)
	seedNovel42(e)
	e.migrateAll(t, testOptions())
	ctx := context.Background()

	n, err := e.store.Novels.GetByKey(ctx, models.LegacyKey(42))
	require.NoError(t, err)
	n.WordCount = 1
	require.NoError(t, e.store.Novels.Update(ctx, n))

	opts := testOptions()
	opts.DryRun = true
	res := NewReconciler(e.deps(), opts).Reconcile(ctx)
	assert.Equal(t, 1, res.Migrated)

	still, err := e.store.Novels.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, still.WordCount)
}
