package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"novelhub/internal/legacy"
	"novelhub/internal/search"
	"novelhub/internal/taxonomy"
	"novelhub/pkg/models"
	"novelhub/pkg/utils"
)

// ContentMigrator moves published novels and their chapters.
type ContentMigrator struct {
	deps   Deps
	opts   Options
	genres *taxonomy.Mapping
	tags   *taxonomy.Mapping
	novels *IdentifierMap
	slugs  *reservations
}

func NewContentMigrator(deps Deps, opts Options, genres, tags *taxonomy.Mapping, novels *IdentifierMap) *ContentMigrator {
	return &ContentMigrator{
		deps:   deps,
		opts:   opts.withDefaults(),
		genres: genres,
		tags:   tags,
		novels: novels,
		slugs:  newReservations(deps.Store.Novels.SlugTaken),
	}
}

func (m *ContentMigrator) Migrate(ctx context.Context) MigrationResult {
	rec := newRecorder(StageContent, m.deps.Observer)

	total, err := m.deps.Source.CountNovels(ctx)
	if err != nil {
		rec.fatal(fmt.Errorf("count novels: %w", err))
		return rec.finish()
	}
	if m.opts.MaxNovels >= 0 && total > m.opts.MaxNovels {
		total = m.opts.MaxNovels
	}
	rec.addTotal(total)

	var afterID int64
	seen := 0
	for {
		limit := m.opts.BatchSize
		if m.opts.MaxNovels >= 0 {
			if remaining := m.opts.MaxNovels - seen; remaining < limit {
				limit = remaining
			}
		}
		if limit <= 0 || ctx.Err() != nil {
			break
		}

		rows, err := m.deps.Source.Novels(ctx, afterID, limit)
		if err != nil {
			rec.fatal(fmt.Errorf("load novels after %d: %w", afterID, err))
			break
		}
		forEach(ctx, m.opts.Workers, rows, rec, m.migrateNovel)
		rec.batch()

		seen += len(rows)
		if len(rows) < limit {
			break
		}
		afterID = rows[len(rows)-1].ID
	}
	return rec.finish()
}

func (m *ContentMigrator) migrateNovel(ctx context.Context, row legacy.Novel) itemResult {
	existing, err := m.deps.Store.Novels.GetByKey(ctx, models.LegacyKey(row.ID))
	switch {
	case err == nil:
		return m.update(ctx, row, existing)
	case isNotFound(err):
		return m.insert(ctx, row)
	default:
		return failed(fmt.Errorf("novel %d: %w", row.ID, err))
	}
}

func (m *ContentMigrator) insert(ctx context.Context, row legacy.Novel) itemResult {
	var res itemResult

	status, ok := models.ParseNovelStatus(row.Status)
	if !ok {
		res = res.warn("novel %d: unknown status %q, using %s", row.ID, row.Status, status)
	}

	tagIDs, droppedTags := m.tags.LookupAll(row.Tags)
	if len(droppedTags) > 0 {
		m.deps.Log.Debug().Int64("novel", row.ID).Int("dropped", len(droppedTags)).Strs("tags", droppedTags).Msg("unmapped tags dropped")
	}
	genreIDs, unresolved := m.genres.ResolveAll(row.Genres)
	switch {
	case len(genreIDs) == 0:
		res = res.warn("novel %d: no genre resolved from %q", row.ID, taxonomy.Normalize(row.Genres))
	case len(unresolved) > 0:
		res = res.warn("novel %d: unresolved genres %q dropped", row.ID, taxonomy.Normalize(unresolved))
	}

	base := utils.Slugify(row.Title)
	if base == "" {
		base = fmt.Sprintf("novel-%d", row.ID)
	}

	novel := &models.Novel{
		Base: models.Base{
			ID:        uuid.NewString(),
			Seq:       row.ID,
			LegacyID:  row.ID,
			CreatedAt: row.CreatedAt,
		},
		Title:       row.Title,
		Author:      row.Author,
		Description: row.Description,
		CoverURL:    row.CoverURL,
		Status:      status,
		GenreIDs:    nonNil(genreIDs),
		TagIDs:      nonNil(tagIDs),
		Views:       row.Views,
	}

	for attempt := 0; ; attempt++ {
		slug, err := m.slugs.reserve(ctx, base, dashSuffix)
		if err != nil {
			return failed(fmt.Errorf("novel %d: reserve slug: %w", row.ID, err))
		}
		novel.Slug = slug
		if m.opts.DryRun {
			break
		}
		err = m.deps.Store.Novels.Insert(ctx, novel)
		if err == nil {
			break
		}
		if isDuplicate(err) {
			// Inserted concurrently or by an interrupted run.
			m.slugs.release(slug)
			existing, gerr := m.deps.Store.Novels.GetByKey(ctx, models.LegacyKey(row.ID))
			if gerr != nil {
				return failed(fmt.Errorf("novel %d: %w", row.ID, gerr))
			}
			return m.update(ctx, row, existing)
		}
		if !isSlugTaken(err) || attempt >= 5 {
			m.slugs.release(slug)
			return failed(fmt.Errorf("novel %d: %w", row.ID, err))
		}
	}
	m.novels.Put(row.ID, novel.ID, novel.Slug)

	chapters, err := m.deps.Source.Chapters(ctx, row.ID)
	if err != nil {
		return failed(fmt.Errorf("novel %d: %w", row.ID, err))
	}
	stored := make([]*models.Chapter, 0, len(chapters))
	for i, c := range chapters {
		ch, err := m.writeChapter(ctx, novel.ID, i+1, c)
		if err != nil {
			res.warnings = append(res.warnings, fmt.Sprintf("novel %d chapter %d: %v", row.ID, c.ID, err))
			continue
		}
		stored = append(stored, ch)
	}

	computeStats(novel, stored)
	if m.opts.DryRun {
		return migrated(res.warnings...)
	}
	if err := m.deps.Store.Novels.Update(ctx, novel); err != nil {
		return failed(fmt.Errorf("novel %d: write aggregates: %w", row.ID, err))
	}
	doc, derr := search.NovelDocument(novel)
	res.warnings = append(res.warnings, pushIndex(ctx, m.deps.Index, doc, derr)...)
	return migrated(res.warnings...)
}

// update ingests chapters missing from an already migrated novel and
// recomputes its aggregates.
func (m *ContentMigrator) update(ctx context.Context, row legacy.Novel, novel *models.Novel) itemResult {
	m.novels.Put(row.ID, novel.ID, novel.Slug)

	stored, err := m.deps.Store.Chapters.ListByParent(ctx, novel.ID)
	if err != nil {
		return failed(fmt.Errorf("novel %d: %w", row.ID, err))
	}
	present := make(map[int64]struct{}, len(stored))
	maxSeq := 0
	for _, c := range stored {
		present[c.LegacyID] = struct{}{}
		if c.Sequence > maxSeq {
			maxSeq = c.Sequence
		}
	}

	chapters, err := m.deps.Source.Chapters(ctx, row.ID)
	if err != nil {
		return failed(fmt.Errorf("novel %d: %w", row.ID, err))
	}

	var warnings []string
	added := 0
	for _, c := range chapters {
		if _, ok := present[c.ID]; ok {
			continue
		}
		ch, err := m.writeChapter(ctx, novel.ID, maxSeq+1, c)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("novel %d chapter %d: %v", row.ID, c.ID, err))
			continue
		}
		maxSeq++
		added++
		stored = append(stored, ch)
	}

	changed := computeStats(novel, stored)
	if !changed && added == 0 {
		return skipped(warnings...)
	}
	if m.opts.DryRun {
		return migrated(warnings...)
	}
	if err := m.deps.Store.Novels.Update(ctx, novel); err != nil {
		return failed(fmt.Errorf("novel %d: write aggregates: %w", row.ID, err))
	}
	doc, derr := search.NovelDocument(novel)
	warnings = append(warnings, pushIndex(ctx, m.deps.Index, doc, derr)...)
	return migrated(warnings...)
}

func (m *ContentMigrator) writeChapter(ctx context.Context, novelID string, seq int, c legacy.Chapter) (*models.Chapter, error) {
	ch := &models.Chapter{
		Base: models.Base{
			Seq:       c.ID,
			LegacyID:  c.ID,
			CreatedAt: c.CreatedAt,
		},
		NovelID:   novelID,
		Sequence:  seq,
		Title:     c.Title,
		Content:   c.Content,
		WordCount: utils.CountWords(c.Content),
		Published: c.Published,
	}
	if ch.Title == "" {
		ch.Title = fmt.Sprintf("Chapter %d", seq)
	}
	if c.Published && !c.CreatedAt.IsZero() {
		at := c.CreatedAt
		ch.PublishedAt = &at
	}
	if m.opts.DryRun {
		ch.ID = uuid.NewString()
		return ch, nil
	}

	err := m.deps.Store.Chapters.Insert(ctx, ch)
	if isDuplicate(err) {
		return m.deps.Store.Chapters.GetByKey(ctx, models.LegacyKey(c.ID))
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// computeStats derives the chapter aggregates and pointers from the published
// chapters and reports whether any stored value changed.
func computeStats(n *models.Novel, chapters []*models.Chapter) bool {
	var (
		count, words int
		first, last  *models.Chapter
	)
	for _, c := range chapters {
		if !c.Published {
			continue
		}
		count++
		words += c.WordCount
		if first == nil || c.Sequence < first.Sequence {
			first = c
		}
		if last == nil || c.Sequence > last.Sequence {
			last = c
		}
	}

	next := *n
	next.ChaptersCount = count
	next.WordCount = words
	next.FirstChapterID, next.FirstChapterSeq = "", 0
	next.LatestChapterID, next.LatestChapterSeq, next.LatestChapterAt = "", 0, nil
	if first != nil {
		next.FirstChapterID, next.FirstChapterSeq = first.ID, first.Sequence
	}
	if last != nil {
		next.LatestChapterID, next.LatestChapterSeq = last.ID, last.Sequence
		at := last.CreatedAt
		if last.PublishedAt != nil {
			at = *last.PublishedAt
		}
		if !at.IsZero() {
			next.LatestChapterAt = &at
		}
	}

	changed := next.ChaptersCount != n.ChaptersCount ||
		next.WordCount != n.WordCount ||
		next.FirstChapterID != n.FirstChapterID ||
		next.FirstChapterSeq != n.FirstChapterSeq ||
		next.LatestChapterID != n.LatestChapterID ||
		next.LatestChapterSeq != n.LatestChapterSeq ||
		!sameTime(next.LatestChapterAt, n.LatestChapterAt)
	*n = next
	return changed
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
