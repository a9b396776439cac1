package legacy

import (
	"context"
	"database/sql"

	"novelhub/pkg/database"
)

func (s *Source) taxa(ctx context.Context, table string) ([]Taxon, error) {
	rows, cancel, err := s.query(ctx, `SELECT id, name, description FROM `+table+` ORDER BY id ASC`)
	if err != nil {
		return nil, wrap("list "+table, err)
	}
	defer cancel()
	defer rows.Close()

	var out []Taxon
	for rows.Next() {
		var (
			t    Taxon
			desc sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Name, &desc); err != nil {
			return nil, wrap("scan "+table, err)
		}
		t.Description = desc.String
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("rows "+table, err)
	}
	return out, nil
}

func (s *Source) Genres(ctx context.Context) ([]Taxon, error) { return s.taxa(ctx, "genres") }
func (s *Source) Tags(ctx context.Context) ([]Taxon, error)   { return s.taxa(ctx, "tags") }

// novelFilter takes one bind argument, true.
const novelFilter = `published = ? AND deleted_at IS NULL`

// Novels returns published, not deleted novels with id greater than afterID.
func (s *Source) Novels(ctx context.Context, afterID int64, limit int) ([]Novel, error) {
	rows, cancel, err := s.query(ctx, `
		SELECT id, title, author, description, cover_url, status, genres, tags, views, created_at, updated_at
		FROM novels
		WHERE `+novelFilter+` AND id > ?
		ORDER BY id ASC`+s.limitClause(), true, afterID, pageLimit(limit))
	if err != nil {
		return nil, wrap("list novels", err)
	}
	defer cancel()
	defer rows.Close()

	var out []Novel
	for rows.Next() {
		var (
			n                                         Novel
			author, desc, cover, status, genres, tags sql.NullString
			views                                     sql.NullInt64
			created, updated                          sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.Title, &author, &desc, &cover, &status, &genres, &tags, &views, &created, &updated); err != nil {
			return nil, wrap("scan novel", err)
		}
		n.Author = author.String
		n.Description = desc.String
		n.CoverURL = cover.String
		n.Status = status.String
		n.Genres = ParseLabels(genres.String)
		n.Tags = ParseLabels(tags.String)
		n.Views = views.Int64
		n.CreatedAt = nullTime(created)
		n.UpdatedAt = nullTime(updated)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("rows novels", err)
	}
	return out, nil
}

func (s *Source) CountNovels(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var n int
	q := database.Rebind(s.Driver, `SELECT COUNT(*) FROM novels WHERE `+novelFilter)
	if err := s.DB.QueryRowContext(ctx, q, true).Scan(&n); err != nil {
		return 0, wrap("count novels", err)
	}
	return n, nil
}

// Chapters returns the non-deleted chapters of a novel in reading order.
func (s *Source) Chapters(ctx context.Context, novelID int64) ([]Chapter, error) {
	rows, cancel, err := s.query(ctx, `
		SELECT id, novel_id, chapter_number, title, content, published, created_at
		FROM chapters
		WHERE novel_id = ? AND deleted_at IS NULL
		ORDER BY chapter_number ASC, id ASC`, novelID)
	if err != nil {
		return nil, wrap("list chapters", err)
	}
	defer cancel()
	defer rows.Close()

	var out []Chapter
	for rows.Next() {
		var (
			c              Chapter
			number         sql.NullFloat64
			title, content sql.NullString
			published      sql.NullBool
			created        sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.NovelID, &number, &title, &content, &published, &created); err != nil {
			return nil, wrap("scan chapter", err)
		}
		c.Number = number.Float64
		c.Title = title.String
		c.Content = content.String
		c.Published = !published.Valid || published.Bool
		c.CreatedAt = nullTime(created)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("rows chapters", err)
	}
	return out, nil
}

const userColumns = `id, email, username, display_name, avatar_url, password_hash, role, bookmarks, created_at`

// Users pages through users that are not deleted.
func (s *Source) Users(ctx context.Context, afterID int64, limit int) ([]User, error) {
	return s.users(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE deleted_at IS NULL AND id > ?
		ORDER BY id ASC`+s.limitClause(), afterID, pageLimit(limit))
}

// UsersWithBookmarks pages through users with a non-empty bookmarks field.
func (s *Source) UsersWithBookmarks(ctx context.Context, afterID int64, limit int) ([]User, error) {
	return s.users(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE deleted_at IS NULL AND bookmarks IS NOT NULL AND bookmarks <> '' AND id > ?
		ORDER BY id ASC`+s.limitClause(), afterID, pageLimit(limit))
}

func (s *Source) users(ctx context.Context, q string, args ...any) ([]User, error) {
	rows, cancel, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, wrap("list users", err)
	}
	defer cancel()
	defer rows.Close()

	var out []User
	for rows.Next() {
		var (
			u                                                 User
			email, username, display, avatar, hash, role, bmk sql.NullString
			created                                           sql.NullTime
		)
		if err := rows.Scan(&u.ID, &email, &username, &display, &avatar, &hash, &role, &bmk, &created); err != nil {
			return nil, wrap("scan user", err)
		}
		u.Email = email.String
		u.Username = username.String
		u.DisplayName = display.String
		u.AvatarURL = avatar.String
		u.PasswordHash = hash.String
		u.Role = role.String
		u.Bookmarks = bmk.String
		u.CreatedAt = nullTime(created)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("rows users", err)
	}
	return out, nil
}

func (s *Source) Ratings(ctx context.Context, afterID int64, limit int) ([]Rating, error) {
	rows, cancel, err := s.query(ctx, `
		SELECT id, user_id, novel_id, score, created_at
		FROM ratings
		WHERE id > ?
		ORDER BY id ASC`+s.limitClause(), afterID, pageLimit(limit))
	if err != nil {
		return nil, wrap("list ratings", err)
	}
	defer cancel()
	defer rows.Close()

	var out []Rating
	for rows.Next() {
		var (
			r           Rating
			user, novel sql.NullInt64
			created     sql.NullTime
		)
		if err := rows.Scan(&r.ID, &user, &novel, &r.Score, &created); err != nil {
			return nil, wrap("scan rating", err)
		}
		r.UserID = user.Int64
		r.NovelID = novel.Int64
		r.CreatedAt = nullTime(created)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("rows ratings", err)
	}
	return out, nil
}

// Comments pages through comments that are not deleted.
func (s *Source) Comments(ctx context.Context, afterID int64, limit int) ([]Comment, error) {
	rows, cancel, err := s.query(ctx, `
		SELECT id, user_id, novel_id, chapter_id, parent_id, body, created_at
		FROM comments
		WHERE deleted_at IS NULL AND id > ?
		ORDER BY id ASC`+s.limitClause(), afterID, pageLimit(limit))
	if err != nil {
		return nil, wrap("list comments", err)
	}
	defer cancel()
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var (
			c                            Comment
			user, novel, chapter, parent sql.NullInt64
			body                         sql.NullString
			created                      sql.NullTime
		)
		if err := rows.Scan(&c.ID, &user, &novel, &chapter, &parent, &body, &created); err != nil {
			return nil, wrap("scan comment", err)
		}
		c.UserID = user.Int64
		c.NovelID = novel.Int64
		c.ChapterID = chapter.Int64
		c.ParentID = parent.Int64
		c.Body = body.String
		c.CreatedAt = nullTime(created)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("rows comments", err)
	}
	return out, nil
}

func (s *Source) ReadingLists(ctx context.Context, afterID int64, limit int) ([]ReadingList, error) {
	rows, cancel, err := s.query(ctx, `
		SELECT id, user_id, name, description, is_public, created_at, updated_at
		FROM reading_lists
		WHERE id > ?
		ORDER BY id ASC`+s.limitClause(), afterID, pageLimit(limit))
	if err != nil {
		return nil, wrap("list reading lists", err)
	}
	defer cancel()
	defer rows.Close()

	var out []ReadingList
	for rows.Next() {
		var (
			l                ReadingList
			user             sql.NullInt64
			desc             sql.NullString
			public           sql.NullBool
			created, updated sql.NullTime
		)
		if err := rows.Scan(&l.ID, &user, &l.Name, &desc, &public, &created, &updated); err != nil {
			return nil, wrap("scan reading list", err)
		}
		l.UserID = user.Int64
		l.Description = desc.String
		l.Public = !public.Valid || public.Bool
		l.CreatedAt = nullTime(created)
		l.UpdatedAt = nullTime(updated)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("rows reading lists", err)
	}
	return out, nil
}

// ReadingListItems returns the items of one list in display order.
func (s *Source) ReadingListItems(ctx context.Context, listID int64) ([]ReadingListItem, error) {
	rows, cancel, err := s.query(ctx, `
		SELECT id, reading_list_id, novel_id, position, note, created_at
		FROM reading_list_items
		WHERE reading_list_id = ?
		ORDER BY position ASC, id ASC`, listID)
	if err != nil {
		return nil, wrap("list reading list items", err)
	}
	defer cancel()
	defer rows.Close()

	var out []ReadingListItem
	for rows.Next() {
		var (
			it              ReadingListItem
			novel, position sql.NullInt64
			note            sql.NullString
			created         sql.NullTime
		)
		if err := rows.Scan(&it.ID, &it.ListID, &novel, &position, &note, &created); err != nil {
			return nil, wrap("scan reading list item", err)
		}
		it.NovelID = novel.Int64
		it.Position = int(position.Int64)
		it.Note = note.String
		it.CreatedAt = nullTime(created)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("rows reading list items", err)
	}
	return out, nil
}
