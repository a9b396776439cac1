// Package legacytest builds throwaway SQLite legacy databases for tests.
package legacytest

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"novelhub/internal/legacy"
	"novelhub/pkg/database"
)

type DB struct {
	*sql.DB
	t testing.TB
}

// New creates an empty legacy schema in a temp directory. The database is
// closed when the test ends.
func New(t testing.TB) *DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "legacy.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, database.SchemaLegacy))
	t.Cleanup(func() { _ = db.Close() })
	return &DB{DB: db, t: t}
}

func (d *DB) Source() *legacy.Source {
	return legacy.NewSource(d.DB, database.DriverSQLite, 5*time.Second)
}

func (d *DB) Exec(q string, args ...any) {
	d.t.Helper()
	_, err := d.DB.Exec(q, args...)
	require.NoError(d.t, err)
}

func (d *DB) Genre(id int64, name string) {
	d.t.Helper()
	d.Exec(`INSERT INTO genres (id, name) VALUES (?, ?)`, id, name)
}

func (d *DB) Tag(id int64, name string) {
	d.t.Helper()
	d.Exec(`INSERT INTO tags (id, name) VALUES (?, ?)`, id, name)
}

type Novel struct {
	ID        int64
	Title     string
	Author    string
	Status    string
	CoverURL  string
	Genres    []string
	Tags      []string
	Published *bool // nil means published
	Deleted   bool
	CreatedAt time.Time
}

func (d *DB) Novel(n Novel) {
	d.t.Helper()
	published := n.Published == nil || *n.Published
	var deleted any
	if n.Deleted {
		deleted = time.Now().UTC()
	}
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	d.Exec(`INSERT INTO novels (id, title, author, status, cover_url, genres, tags, published, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Author, n.Status, n.CoverURL, jsonList(n.Genres), jsonList(n.Tags),
		published, created, created, deleted)
}

// Chapter inserts a published chapter with words generated words.
func (d *DB) Chapter(id, novelID int64, number float64, words int) {
	d.t.Helper()
	d.ChapterContent(id, novelID, number, Words(words), true)
}

func (d *DB) ChapterContent(id, novelID int64, number float64, content string, published bool) {
	d.t.Helper()
	d.Exec(`INSERT INTO chapters (id, novel_id, chapter_number, title, content, published, created_at)
		VALUES (?, ?, ?, '', ?, ?, ?)`,
		id, novelID, number, content, published, time.Date(2020, 2, 1, 0, 0, 0, int(id), time.UTC))
}

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
	Bookmarks    string
	CreatedAt    time.Time
}

func (d *DB) User(u User) {
	d.t.Helper()
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	}
	var bookmarks any
	if u.Bookmarks != "" {
		bookmarks = u.Bookmarks
	}
	d.Exec(`INSERT INTO users (id, email, username, password_hash, role, bookmarks, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, "", u.PasswordHash, u.Role, bookmarks, created)
}

func (d *DB) Rating(id, userID, novelID int64, score int) {
	d.t.Helper()
	d.Exec(`INSERT INTO ratings (id, user_id, novel_id, score, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, novelID, score, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC))
}

// Comment inserts a comment; a zero parentID or chapterID is stored as NULL.
func (d *DB) Comment(id, userID, novelID, chapterID, parentID int64, body string) {
	d.t.Helper()
	d.Exec(`INSERT INTO comments (id, user_id, novel_id, chapter_id, parent_id, body) VALUES (?, ?, ?, ?, ?, ?)`,
		id, userID, novelID, nullID(chapterID), nullID(parentID), body)
}

func (d *DB) ReadingList(id, userID int64, name string) {
	d.t.Helper()
	d.Exec(`INSERT INTO reading_lists (id, user_id, name) VALUES (?, ?, ?)`, id, userID, name)
}

func (d *DB) ReadingListItem(id, listID, novelID int64, position int) {
	d.t.Helper()
	d.Exec(`INSERT INTO reading_list_items (id, reading_list_id, novel_id, position) VALUES (?, ?, ?, ?)`,
		id, listID, novelID, position)
}

// Words returns n space separated words.
func Words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func jsonList(labels []string) any {
	if labels == nil {
		return nil
	}
	b, _ := json.Marshal(labels)
	return string(b)
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
