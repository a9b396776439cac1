package legacy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/internal/legacy"
	"novelhub/internal/legacy/legacytest"
)

func TestParseLabels(t *testing.T) {
	assert.Nil(t, legacy.ParseLabels(""))
	assert.Equal(t, []string{"Sci-fi", "Game"}, legacy.ParseLabels(`["Sci-fi","Game"]`))
	assert.Equal(t, []string{"Action", "Drama"}, legacy.ParseLabels(" Action, ,Drama "))
	assert.Equal(t, []string{"[broken"}, legacy.ParseLabels("[broken"))
}

func TestNovelsSkipsUnpublishedAndDeleted(t *testing.T) {
	db := legacytest.New(t)
	no := false
	db.Novel(legacytest.Novel{ID: 1, Title: "One", Genres: []string{"Fantasy"}})
	db.Novel(legacytest.Novel{ID: 2, Title: "Draft", Published: &no})
	db.Novel(legacytest.Novel{ID: 3, Title: "Gone", Deleted: true})
	db.Novel(legacytest.Novel{ID: 4, Title: "Four", Tags: []string{"Isekai"}})

	src := db.Source()
	ctx := context.Background()

	n, err := src.CountNovels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	novels, err := src.Novels(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, novels, 2)
	assert.Equal(t, int64(1), novels[0].ID)
	assert.Equal(t, []string{"Fantasy"}, novels[0].Genres)
	assert.Equal(t, int64(4), novels[1].ID)
	assert.Equal(t, []string{"Isekai"}, novels[1].Tags)
	assert.False(t, novels[0].CreatedAt.IsZero())

	page, err := src.Novels(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(4), page[0].ID)
}

func TestChaptersInReadingOrder(t *testing.T) {
	db := legacytest.New(t)
	db.Novel(legacytest.Novel{ID: 1, Title: "One"})
	db.Chapter(30, 1, 2, 5)
	db.Chapter(10, 1, 1, 3)
	db.Chapter(20, 1, 1.5, 4)
	db.Exec(`UPDATE chapters SET deleted_at = CURRENT_TIMESTAMP WHERE id = 20`)

	chapters, err := db.Source().Chapters(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, int64(10), chapters[0].ID)
	assert.Equal(t, int64(30), chapters[1].ID)
	assert.True(t, chapters[0].Published)
	assert.Equal(t, legacytest.Words(3), chapters[0].Content)
}

func TestUsersAndBookmarks(t *testing.T) {
	db := legacytest.New(t)
	db.User(legacytest.User{ID: 1, Email: "a@example.com"})
	db.User(legacytest.User{ID: 2, Email: "b@example.com", Bookmarks: `{"list":[5,9]}`})
	db.Exec(`UPDATE users SET bookmarks = '' WHERE id = 1`)

	ctx := context.Background()
	users, err := db.Source().Users(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	withBookmarks, err := db.Source().UsersWithBookmarks(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, withBookmarks, 1)
	assert.Equal(t, int64(2), withBookmarks[0].ID)
	assert.Equal(t, `{"list":[5,9]}`, withBookmarks[0].Bookmarks)
}

func TestCommentsAndReadingLists(t *testing.T) {
	db := legacytest.New(t)
	db.Comment(1, 7, 8, 0, 0, "root")
	db.Comment(2, 7, 8, 0, 1, "reply")
	db.ReadingList(1, 7, "Faves")
	db.ReadingListItem(1, 1, 8, 2)
	db.ReadingListItem(2, 1, 9, 1)

	ctx := context.Background()
	src := db.Source()

	comments, err := src.Comments(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Zero(t, comments[0].ParentID)
	assert.Equal(t, int64(1), comments[1].ParentID)

	lists, err := src.ReadingLists(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.True(t, lists[0].Public)

	items, err := src.ReadingListItems(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(9), items[0].NovelID)
	assert.Equal(t, int64(8), items[1].NovelID)
}
