package migrate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"novelhub/internal/legacy"
	"novelhub/internal/search"
	"novelhub/pkg/models"
)

// SocialMigrator moves users, favorites and comments. Each operation pages
// through the legacy table on its own and can be re-run.
type SocialMigrator struct {
	deps      Deps
	opts      Options
	novels    *IdentifierMap
	users     *IdentifierMap
	usernames *reservations
	hashCost  int
}

func NewSocialMigrator(deps Deps, opts Options, novels, users *IdentifierMap) *SocialMigrator {
	return &SocialMigrator{
		deps:      deps,
		opts:      opts.withDefaults(),
		novels:    novels,
		users:     users,
		usernames: newReservations(deps.Store.Users.SlugTaken),
		hashCost:  bcrypt.DefaultCost,
	}
}

// page drives a keyset paginated legacy read through the worker pool.
func page[T any](ctx context.Context, rec *recorder, batch, workers int, load func(ctx context.Context, afterID int64, limit int) ([]T, error), id func(T) int64, fn func(context.Context, T) itemResult) {
	var afterID int64
	for ctx.Err() == nil {
		rows, err := load(ctx, afterID, batch)
		if err != nil {
			rec.fatal(fmt.Errorf("load page after %d: %w", afterID, err))
			return
		}
		rec.addTotal(len(rows))
		forEach(ctx, workers, rows, rec, fn)
		rec.batch()
		if len(rows) < batch {
			return
		}
		afterID = id(rows[len(rows)-1])
	}
}

func (m *SocialMigrator) MigrateUsers(ctx context.Context) MigrationResult {
	rec := newRecorder(StageUsers, m.deps.Observer)
	page(ctx, rec, m.opts.BatchSize, m.opts.Workers, m.deps.Source.Users,
		func(u legacy.User) int64 { return u.ID }, m.migrateUser)
	return rec.finish()
}

func (m *SocialMigrator) migrateUser(ctx context.Context, row legacy.User) itemResult {
	existing, err := m.deps.Store.Users.GetByKey(ctx, models.LegacyKey(row.ID))
	if err == nil {
		m.users.Put(row.ID, existing.ID, "")
		return skipped()
	}
	if !isNotFound(err) {
		return failed(fmt.Errorf("user %d: %w", row.ID, err))
	}

	var res itemResult
	hash, reset := row.PasswordHash, false
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		hash, err = m.randomHash()
		if err != nil {
			return failed(fmt.Errorf("user %d: %w", row.ID, err))
		}
		reset = true
		res = res.warn("user %d: password hash is not bcrypt, reset required", row.ID)
	}

	role := strings.ToLower(strings.TrimSpace(row.Role))
	if role == "" {
		role = "reader"
	}

	user := &models.User{
		Base: models.Base{
			ID:        uuid.NewString(),
			Seq:       row.ID,
			LegacyID:  row.ID,
			CreatedAt: row.CreatedAt,
		},
		Email:             strings.TrimSpace(row.Email),
		DisplayName:       row.DisplayName,
		AvatarURL:         row.AvatarURL,
		PasswordHash:      hash,
		MustResetPassword: reset,
		Role:              role,
	}

	base := UsernameBase(row.Email, row.ID)
	for attempt := 0; ; attempt++ {
		name, err := m.usernames.reserve(ctx, base, numberSuffix)
		if err != nil {
			return failed(fmt.Errorf("user %d: reserve username: %w", row.ID, err))
		}
		user.Username = name
		if m.opts.DryRun {
			break
		}
		err = m.deps.Store.Users.Insert(ctx, user)
		if err == nil {
			break
		}
		if isDuplicate(err) {
			m.usernames.release(name)
			existing, gerr := m.deps.Store.Users.GetByKey(ctx, models.LegacyKey(row.ID))
			if gerr != nil {
				return failed(fmt.Errorf("user %d: %w", row.ID, gerr))
			}
			m.users.Put(row.ID, existing.ID, "")
			return skipped()
		}
		if !isSlugTaken(err) || attempt >= 5 {
			m.usernames.release(name)
			return failed(fmt.Errorf("user %d: %w", row.ID, err))
		}
	}
	m.users.Put(row.ID, user.ID, "")

	if !m.opts.DryRun {
		doc, derr := search.UserDocument(user)
		res.warnings = append(res.warnings, pushIndex(ctx, m.deps.Index, doc, derr)...)
	}
	return migrated(res.warnings...)
}

func (m *SocialMigrator) randomHash() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random password: %w", err)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(buf)), m.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// UsernameBase derives a username from the e-mail local part: lowercase
// letters, digits, '_' and '.' only. Without a usable local part it falls
// back to user<legacyID>.
func UsernameBase(email string, legacyID int64) string {
	local := strings.ToLower(strings.TrimSpace(email))
	if i := strings.IndexByte(local, '@'); i >= 0 {
		local = local[:i]
	}
	if i := strings.IndexByte(local, '+'); i >= 0 {
		local = local[:i]
	}
	var b strings.Builder
	for _, r := range local {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	name := strings.Trim(b.String(), "._")
	if name == "" {
		return "user" + strconv.FormatInt(legacyID, 10)
	}
	if len(name) > 30 {
		name = name[:30]
	}
	return name
}

// numberSuffix yields name, name1, name2 ...
func numberSuffix(base string, n int) string { return base + strconv.Itoa(n-1) }

// MigrateRatingsToFavorites turns ratings above the threshold into favorites.
func (m *SocialMigrator) MigrateRatingsToFavorites(ctx context.Context) MigrationResult {
	rec := newRecorder(StageRatings, m.deps.Observer)
	page(ctx, rec, m.opts.BatchSize, m.opts.Workers, m.deps.Source.Ratings,
		func(r legacy.Rating) int64 { return r.ID }, m.migrateRating)
	return rec.finish()
}

func (m *SocialMigrator) migrateRating(ctx context.Context, row legacy.Rating) itemResult {
	if row.Score <= m.opts.FavoriteThreshold {
		return skipped()
	}
	userID, ok := m.users.Lookup(row.UserID)
	if !ok {
		return missing("rating %d: user %d", row.ID, row.UserID)
	}
	novelID, ok := m.novels.Lookup(row.NovelID)
	if !ok {
		return missing("rating %d: novel %d", row.ID, row.NovelID)
	}
	return m.favorite(ctx, userID, novelID, models.FavoriteFromRating, row.CreatedAt, fmt.Sprintf("rating %d", row.ID))
}

func (m *SocialMigrator) favorite(ctx context.Context, userID, novelID string, src models.FavoriteSource, at time.Time, label string) itemResult {
	if m.opts.DryRun {
		return migrated()
	}
	fav := &models.Favorite{
		Base:    models.Base{CreatedAt: at},
		UserID:  userID,
		NovelID: novelID,
		Source:  src,
	}
	err := m.deps.Store.Favorites.Insert(ctx, fav)
	if isDuplicate(err) {
		return skipped()
	}
	if err != nil {
		return failed(fmt.Errorf("%s: %w", label, err))
	}
	return migrated()
}

// MigrateBookmarksToFavorites decodes each user's bookmark field into
// favorites dated at the user's creation time.
func (m *SocialMigrator) MigrateBookmarksToFavorites(ctx context.Context) MigrationResult {
	rec := newRecorder(StageBookmarks, m.deps.Observer)
	page(ctx, rec, m.opts.BatchSize, m.opts.Workers, m.deps.Source.UsersWithBookmarks,
		func(u legacy.User) int64 { return u.ID }, m.migrateBookmarks)
	return rec.finish()
}

func (m *SocialMigrator) migrateBookmarks(ctx context.Context, row legacy.User) itemResult {
	ids, err := ParseBookmarks(row.Bookmarks)
	if err != nil {
		return failed(fmt.Errorf("user %d bookmarks: %w", row.ID, err))
	}
	if len(ids) == 0 {
		return skipped()
	}
	userID, ok := m.users.Lookup(row.ID)
	if !ok {
		return missing("bookmarks of user %d", row.ID)
	}

	var (
		res   itemResult
		added int
	)
	for _, legacyNovel := range ids {
		novelID, ok := m.novels.Lookup(legacyNovel)
		if !ok {
			res = res.warn("user %d bookmark: novel %d: %v", row.ID, legacyNovel, ErrMissingReference)
			continue
		}
		r := m.favorite(ctx, userID, novelID, models.FavoriteFromBookmark, row.CreatedAt, fmt.Sprintf("user %d bookmark %d", row.ID, legacyNovel))
		switch r.outcome {
		case outcomeFailed:
			return itemResult{outcome: outcomeFailed, err: r.err, warnings: res.warnings}
		case outcomeMigrated:
			added++
		}
	}
	if added == 0 {
		return skipped(res.warnings...)
	}
	return migrated(res.warnings...)
}

// MigrateComments keeps the legacy parent linkage. ParentID is set when the
// parent is already migrated; a final pass links parents written later in
// the same run, and re-runs heal the rest. Depth and Path stay unset.
func (m *SocialMigrator) MigrateComments(ctx context.Context) MigrationResult {
	rec := newRecorder(StageComments, m.deps.Observer)
	orphans := &orphanSet{}
	page(ctx, rec, m.opts.BatchSize, m.opts.Workers, m.deps.Source.Comments,
		func(c legacy.Comment) int64 { return c.ID },
		func(ctx context.Context, row legacy.Comment) itemResult {
			return m.migrateComment(ctx, row, orphans)
		})

	for _, c := range orphans.drain() {
		if linked, err := m.linkParent(ctx, c); err != nil {
			rec.warn("comment %d: link parent %d: %v", c.LegacyID, c.LegacyParentID, err)
		} else if !linked {
			rec.warn("comment %d: parent %d: %v", c.LegacyID, c.LegacyParentID, ErrMissingReference)
		}
	}
	return rec.finish()
}

func (m *SocialMigrator) migrateComment(ctx context.Context, row legacy.Comment, orphans *orphanSet) itemResult {
	existing, err := m.deps.Store.Comments.GetByKey(ctx, models.LegacyKey(row.ID))
	if err == nil {
		if existing.ParentID == "" && existing.LegacyParentID != 0 {
			linked, err := m.linkParent(ctx, existing)
			if err != nil {
				return failed(fmt.Errorf("comment %d: link parent: %w", row.ID, err))
			}
			if linked {
				return migrated()
			}
		}
		return skipped()
	}
	if !isNotFound(err) {
		return failed(fmt.Errorf("comment %d: %w", row.ID, err))
	}

	userID, ok := m.users.Lookup(row.UserID)
	if !ok {
		return missing("comment %d: user %d", row.ID, row.UserID)
	}
	novelID, ok := m.novels.Lookup(row.NovelID)
	if !ok {
		return missing("comment %d: novel %d", row.ID, row.NovelID)
	}

	c := &models.Comment{
		Base: models.Base{
			Seq:       row.ID,
			LegacyID:  row.ID,
			CreatedAt: row.CreatedAt,
		},
		UserID:         userID,
		NovelID:        novelID,
		LegacyParentID: row.ParentID,
		Body:           row.Body,
	}

	var res itemResult
	if row.ChapterID != 0 {
		if ch, err := m.deps.Store.Chapters.GetByKey(ctx, models.LegacyKey(row.ChapterID)); err == nil {
			c.ChapterID = ch.ID
		} else {
			res = res.warn("comment %d: chapter %d: %v", row.ID, row.ChapterID, ErrMissingReference)
		}
	}
	if row.ParentID != 0 {
		if p, err := m.deps.Store.Comments.GetByKey(ctx, models.LegacyKey(row.ParentID)); err == nil {
			c.ParentID = p.ID
		}
	}

	if m.opts.DryRun {
		return migrated(res.warnings...)
	}
	err = m.deps.Store.Comments.Insert(ctx, c)
	if isDuplicate(err) {
		return skipped(res.warnings...)
	}
	if err != nil {
		return failed(fmt.Errorf("comment %d: %w", row.ID, err))
	}
	if c.ParentID == "" && c.LegacyParentID != 0 {
		orphans.add(c)
	}
	return migrated(res.warnings...)
}

// linkParent sets ParentID when the legacy parent has been migrated.
func (m *SocialMigrator) linkParent(ctx context.Context, c *models.Comment) (bool, error) {
	p, err := m.deps.Store.Comments.GetByKey(ctx, models.LegacyKey(c.LegacyParentID))
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.ParentID = p.ID
	if m.opts.DryRun {
		return true, nil
	}
	if err := m.deps.Store.Comments.Update(ctx, c); err != nil {
		return false, err
	}
	return true, nil
}

type orphanSet struct {
	mu    sync.Mutex
	items []*models.Comment
}

func (s *orphanSet) add(c *models.Comment) {
	s.mu.Lock()
	s.items = append(s.items, c)
	s.mu.Unlock()
}

func (s *orphanSet) drain() []*models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.items
	s.items = nil
	return out
}
