package migrate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"novelhub/internal/legacy/legacytest"
	"novelhub/pkg/models"
)

// socialFixture migrates taxonomy and content, then returns a social
// migrator over the resulting identifier maps.
func socialFixture(t *testing.T, e *testEnv, opts Options) *SocialMigrator {
	t.Helper()
	ctx := context.Background()
	d := e.deps()

	tax, err := NewTaxonomyMigrator(d, opts).Migrate(ctx)
	require.NoError(t, err)
	novels := NewIdentifierMap()
	NewContentMigrator(d, opts, tax.Genres, tax.Tags, novels).Migrate(ctx)

	users, err := BuildUserMap(ctx, e.store)
	require.NoError(t, err)
	m := NewSocialMigrator(d, opts, novels, users)
	m.hashCost = bcrypt.MinCost
	return m
}

func TestUsernamesAndPasswords(t *testing.T) {
	e := newTestEnv(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	e.legacy.User(legacytest.User{ID: 1, Email: "Ann+news@example.com", PasswordHash: string(hash), Role: "Admin"})
	e.legacy.User(legacytest.User{ID: 2, Email: "ann@other.org", PasswordHash: "md5:abcdef"})
	e.legacy.User(legacytest.User{ID: 3, Email: "@@@"})

	m := socialFixture(t, e, testOptions())
	res := m.MigrateUsers(context.Background())
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Migrated)
	assert.Len(t, res.Warnings, 2)

	ctx := context.Background()
	u1, err := e.store.Users.GetByKey(ctx, models.LegacyKey(1))
	require.NoError(t, err)
	u2, err := e.store.Users.GetByKey(ctx, models.LegacyKey(2))
	require.NoError(t, err)
	u3, err := e.store.Users.GetByKey(ctx, models.LegacyKey(3))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"ann", "ann1"}, []string{u1.Username, u2.Username})
	assert.Equal(t, "user3", u3.Username)

	assert.Equal(t, string(hash), u1.PasswordHash)
	assert.False(t, u1.MustResetPassword)
	assert.Equal(t, "admin", u1.Role)

	assert.True(t, u2.MustResetPassword)
	_, err = bcrypt.Cost([]byte(u2.PasswordHash))
	assert.NoError(t, err)
	assert.Equal(t, "reader", u2.Role)

	again := m.MigrateUsers(ctx)
	assert.Equal(t, 3, again.Skipped)
	n, err := e.store.Users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUsernameBase(t *testing.T) {
	assert.Equal(t, "john.doe", UsernameBase("John.Doe+tag@example.com", 1))
	assert.Equal(t, "user7", UsernameBase("", 7))
	assert.Equal(t, "ab", UsernameBase("_a-b_@x", 1))
	assert.Len(t, UsernameBase("abcdefghijklmnopqrstuvwxyz0123456789@x", 1), 30)
}

func TestBookmarksBecomeFavorites(t *testing.T) {
	e := newTestEnv(t)
	created := time.Date(2018, 4, 5, 6, 7, 8, 0, time.UTC)
	e.legacy.Novel(legacytest.Novel{ID: 5, Title: "Five"})
	e.legacy.Novel(legacytest.Novel{ID: 9, Title: "Nine"})
	e.legacy.User(legacytest.User{ID: 1, Email: "reader@example.com", Bookmarks: `{"list":[5,9]}`, CreatedAt: created})
	e.legacy.User(legacytest.User{ID: 2, Email: "broken@example.com", Bookmarks: `not json`})
	e.legacy.User(legacytest.User{ID: 3, Email: "ghost@example.com", Bookmarks: `[404]`})

	m := socialFixture(t, e, testOptions())
	ctx := context.Background()
	m.MigrateUsers(ctx)

	res := m.MigrateBookmarksToFavorites(ctx)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Migrated)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)

	user, err := e.store.Users.GetByKey(ctx, models.LegacyKey(1))
	require.NoError(t, err)
	favs, err := e.store.Favorites.ListByParent(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, favs, 2)
	for _, f := range favs {
		assert.True(t, f.CreatedAt.Equal(created), "favorite dated %s", f.CreatedAt)
		assert.Equal(t, models.FavoriteFromBookmark, f.Source)
	}

	again := m.MigrateBookmarksToFavorites(ctx)
	assert.Zero(t, again.Migrated)
	n, err := e.store.Favorites.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRatingsAboveThresholdBecomeFavorites(t *testing.T) {
	e := newTestEnv(t)
	e.legacy.Novel(legacytest.Novel{ID: 1, Title: "One"})
	e.legacy.Novel(legacytest.Novel{ID: 2, Title: "Two"})
	e.legacy.User(legacytest.User{ID: 1, Email: "a@example.com", Bookmarks: "[2]"})
	e.legacy.Rating(1, 1, 1, 5)
	e.legacy.Rating(2, 1, 2, 3)
	e.legacy.Rating(3, 99, 1, 5)
	e.legacy.Rating(4, 1, 2, 4)

	m := socialFixture(t, e, testOptions())
	ctx := context.Background()
	m.MigrateUsers(ctx)

	res := m.MigrateRatingsToFavorites(ctx)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 2, res.Migrated)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], ErrMissingReference.Error())

	// novel 2 is already a favorite through rating 4
	bm := m.MigrateBookmarksToFavorites(ctx)
	assert.Equal(t, 1, bm.Skipped)

	n, err := e.store.Favorites.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestZeroFavoriteThresholdKeepsLowRatings(t *testing.T) {
	e := newTestEnv(t)
	e.legacy.Novel(legacytest.Novel{ID: 1, Title: "One"})
	e.legacy.Novel(legacytest.Novel{ID: 2, Title: "Two"})
	e.legacy.User(legacytest.User{ID: 1, Email: "a@example.com"})
	e.legacy.Rating(1, 1, 1, 1)
	e.legacy.Rating(2, 1, 2, 2)

	opts := testOptions()
	opts.FavoriteThreshold = 0
	m := socialFixture(t, e, opts)
	ctx := context.Background()
	m.MigrateUsers(ctx)

	res := m.MigrateRatingsToFavorites(ctx)
	assert.Equal(t, 2, res.Migrated)
	assert.Zero(t, res.Skipped)

	n, err := e.store.Favorites.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCommentParentsAreLinked(t *testing.T) {
	e := newTestEnv(t)
	e.legacy.Novel(legacytest.Novel{ID: 1, Title: "One"})
	e.legacy.Chapter(10, 1, 1, 5)
	e.legacy.User(legacytest.User{ID: 1, Email: "a@example.com"})
	// the reply precedes its parent in id order
	e.legacy.Comment(1, 1, 1, 10, 3, "reply")
	e.legacy.Comment(2, 1, 1, 0, 0, "root")
	e.legacy.Comment(3, 1, 1, 0, 2, "middle")
	e.legacy.Comment(4, 1, 1, 0, 999, "dangling")
	e.legacy.Comment(5, 42, 1, 0, 0, "stranger")

	opts := testOptions()
	opts.Workers = 1
	m := socialFixture(t, e, opts)
	ctx := context.Background()
	m.MigrateUsers(ctx)

	res := m.MigrateComments(ctx)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 4, res.Migrated)
	assert.Equal(t, 1, res.Skipped)

	get := func(id int64) *models.Comment {
		c, err := e.store.Comments.GetByKey(ctx, models.LegacyKey(id))
		require.NoError(t, err)
		return c
	}
	root, middle, reply, dangling := get(2), get(3), get(1), get(4)
	assert.Empty(t, root.ParentID)
	assert.Equal(t, root.ID, middle.ParentID)
	assert.Equal(t, middle.ID, reply.ParentID)
	assert.Empty(t, dangling.ParentID)
	assert.Equal(t, int64(999), dangling.LegacyParentID)
	assert.NotEmpty(t, reply.ChapterID)
	assert.Zero(t, reply.Depth)

	again := m.MigrateComments(ctx)
	assert.Zero(t, again.Migrated)
	assert.Equal(t, 5, again.Skipped)
}
