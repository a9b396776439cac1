// Package search is the secondary search index, a SQLite database holding one
// flattened document per (entity, id).
package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"novelhub/pkg/database"
)

var ErrClosed = errors.New("search index closed")

const (
	EntityNovels       = "novels"
	EntityGenres       = "genres"
	EntityTags         = "tags"
	EntityUsers        = "users"
	EntityReadingLists = "reading_lists"
)

// Entities lists every indexed entity type in sync order.
var Entities = []string{EntityGenres, EntityTags, EntityNovels, EntityUsers, EntityReadingLists}

type Document struct {
	Entity    string          `json:"entity"`
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Body      string          `json:"body,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Index struct {
	DB     *sql.DB
	closed atomic.Bool
	now    func() time.Time
}

func NewIndex(db *sql.DB) *Index {
	return &Index{DB: db, now: time.Now}
}

// Open opens (and creates) the index database at path.
func Open(path string) (*Index, error) {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, database.SchemaSearch); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewIndex(db), nil
}

func (x *Index) Close() error {
	if !x.closed.CompareAndSwap(false, true) {
		return nil
	}
	return x.DB.Close()
}

func (x *Index) check(ctx context.Context) error {
	if x.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// Upsert writes docs in one transaction; either the whole page is stored or none of it.
func (x *Index) Upsert(ctx context.Context, docs []Document) error {
	if err := x.check(ctx); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	tx, err := x.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO search_documents (entity, id, title, body, tags, payload, updated_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity, id) DO UPDATE SET
		  title = excluded.title,
		  body = excluded.body,
		  tags = excluded.tags,
		  payload = excluded.payload,
		  updated_at = excluded.updated_at,
		  indexed_at = excluded.indexed_at
	`)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	indexedAt := x.now().UTC().UnixNano()
	for _, d := range docs {
		if d.Entity == "" || d.ID == "" {
			return fmt.Errorf("upsert document: entity and id are required")
		}
		tags := d.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("marshal tags for %s/%s: %w", d.Entity, d.ID, err)
		}
		payload := string(d.Payload)
		if payload == "" {
			payload = "{}"
		}

		if _, err := stmt.ExecContext(ctx,
			d.Entity,
			d.ID,
			d.Title,
			d.Body,
			string(tagsJSON),
			payload,
			d.UpdatedAt.UTC().UnixNano(),
			indexedAt,
		); err != nil {
			return fmt.Errorf("exec upsert for %s/%s: %w", d.Entity, d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Count returns the number of documents across every entity type.
func (x *Index) Count(ctx context.Context) (int, error) {
	if err := x.check(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := x.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return n, nil
}

func (x *Index) CountEntity(ctx context.Context, entity string) (int, error) {
	if err := x.check(ctx); err != nil {
		return 0, err
	}
	var n int
	row := x.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_documents WHERE entity = ?`, entity)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s scan: %w", entity, err)
	}
	return n, nil
}

// Get returns nil when the document is not indexed.
func (x *Index) Get(ctx context.Context, entity, id string) (*Document, error) {
	if err := x.check(ctx); err != nil {
		return nil, err
	}
	row := x.DB.QueryRowContext(ctx, selectColumns+` WHERE entity = ? AND id = ?`, entity, id)
	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan get: %w", err)
	}
	return d, nil
}

// ModifiedAfter returns documents of entity updated strictly after the given
// unix nanos, oldest first.
func (x *Index) ModifiedAfter(ctx context.Context, entity string, after int64, limit int) ([]Document, error) {
	if err := x.check(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := x.DB.QueryContext(ctx,
		selectColumns+` WHERE entity = ? AND updated_at > ? ORDER BY updated_at ASC, id ASC LIMIT ?`,
		entity, after, limit)
	if err != nil {
		return nil, fmt.Errorf("modified query: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows, limit)
}

type Query struct {
	Entity string
	Q      string   // keyword search in title/body
	Tags   []string // any-match on taxonomy ids
	Limit  int
	Offset int
}

func (x *Index) Search(ctx context.Context, q Query) ([]Document, error) {
	if err := x.check(ctx); err != nil {
		return nil, err
	}
	sqlStr, args := buildSearchSQL(q, false)
	rows, err := x.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows, q.Limit)
}

func (x *Index) SearchCount(ctx context.Context, q Query) (int, error) {
	if err := x.check(ctx); err != nil {
		return 0, err
	}
	sqlStr, args := buildSearchSQL(q, true)
	var total int
	if err := x.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

const selectColumns = `SELECT entity, id, title, body, tags, payload, updated_at FROM search_documents`

// buildSearchSQL builds either COUNT(*) or SELECT list.
// The tag filter is any-match, a LIKE against the stored JSON text.
func buildSearchSQL(q Query, countOnly bool) (string, []any) {
	base := selectColumns
	if countOnly {
		base = `SELECT COUNT(*) FROM search_documents`
	}

	var where []string
	var args []any

	if e := strings.TrimSpace(q.Entity); e != "" {
		where = append(where, "entity = ?")
		args = append(args, e)
	}

	if kw := strings.TrimSpace(q.Q); kw != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(body) LIKE ?)")
		like := "%" + strings.ToLower(kw) + "%"
		args = append(args, like, like)
	}

	var tagOr []string
	for _, t := range q.Tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		tagOr = append(tagOr, "tags LIKE ?")
		args = append(args, `%"`+t+`"%`)
	}
	if len(tagOr) > 0 {
		where = append(where, "("+strings.Join(tagOr, " OR ")+")")
	}

	sqlStr := base
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY title ASC, id ASC LIMIT ? OFFSET ?"
		limit := q.Limit
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, limit, offset)
	}
	return sqlStr, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		d        Document
		body     sql.NullString
		tagsJSON string
		payload  string
		updated  int64
	)
	if err := row.Scan(&d.Entity, &d.ID, &d.Title, &body, &tagsJSON, &payload, &updated); err != nil {
		return nil, err
	}
	d.Body = body.String
	d.UpdatedAt = time.Unix(0, updated).UTC()
	d.Payload = json.RawMessage(payload)
	_ = json.Unmarshal([]byte(tagsJSON), &d.Tags)
	return &d, nil
}

func scanDocuments(rows *sql.Rows, hint int) ([]Document, error) {
	if hint <= 0 || hint > 100 {
		hint = 20
	}
	out := make([]Document, 0, hint)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}
