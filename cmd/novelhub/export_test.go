package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/internal/store"
	"novelhub/pkg/models"
)

func TestExportNovels(t *testing.T) {
	st, err := store.Open(store.Options{InMemory: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	g := &models.Taxon{Kind: models.KindGenre, Name: "Sci-fi", Slug: "sci-fi"}
	require.NoError(t, st.Genres.Insert(ctx, g))
	require.NoError(t, st.Novels.Insert(ctx, &models.Novel{
		Base: models.Base{LegacyID: 42, Seq: 42}, Title: "Star Raiders Online", Slug: "star-raiders-online",
		Status: models.NovelCompleted, GenreIDs: []string{g.ID, "gone"}, ChaptersCount: 3, WordCount: 450,
	}))
	require.NoError(t, st.Novels.Insert(ctx, &models.Novel{
		Base: models.Base{LegacyID: 7, Seq: 7}, Title: "Moon Harbor", Slug: "moon-harbor", Status: models.NovelOngoing,
	}))

	var buf bytes.Buffer
	require.NoError(t, exportNovels(ctx, st, &buf))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, "seq", rows[0][1])
	assert.Equal(t, "7", rows[1][1])
	assert.Equal(t, "Star Raiders Online", rows[2][3])
	assert.Equal(t, "Sci-fi", rows[2][6])
	assert.Equal(t, "450", rows[2][8])
}

func TestExportReadingLists(t *testing.T) {
	st, err := store.Open(store.Options{InMemory: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	require.NoError(t, st.ReadingLists.Insert(ctx, &models.ReadingList{
		Base: models.Base{LegacyID: 1}, UserID: "u1", Name: "Weekend", NovelCount: 2, Covers: []string{"a.jpg", "b.jpg"},
	}))

	var buf bytes.Buffer
	require.NoError(t, exportReadingLists(ctx, st, &buf))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Weekend", "false", "2", "a.jpg|b.jpg"}, rows[1][2:])
}
