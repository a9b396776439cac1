package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/internal/search"
)

func TestIndexCountsPerEntity(t *testing.T) {
	idx, err := search.Open(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	ctx := context.Background()
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, idx.Upsert(ctx, []search.Document{
		{Entity: search.EntityNovels, ID: "n1", Title: "One", UpdatedAt: at},
		{Entity: search.EntityNovels, ID: "n2", Title: "Two", UpdatedAt: at},
		{Entity: search.EntityGenres, ID: "g1", Title: "Fantasy", UpdatedAt: at},
	}))

	counts, err := indexCounts(ctx, idx)
	require.NoError(t, err)
	assert.Len(t, counts, len(search.Entities))
	assert.Equal(t, 2, counts[search.EntityNovels])
	assert.Equal(t, 1, counts[search.EntityGenres])
	assert.Equal(t, 0, counts[search.EntityUsers])
}

func TestIndexCountsClosedIndex(t *testing.T) {
	idx, err := search.Open(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = indexCounts(context.Background(), idx)
	assert.Error(t, err)
}
