package migrate

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"novelhub/internal/legacy"
	"novelhub/internal/search"
	"novelhub/pkg/models"
)

type ReadingListMigrator struct {
	deps   Deps
	opts   Options
	novels *IdentifierMap
	users  *IdentifierMap
}

func NewReadingListMigrator(deps Deps, opts Options, novels, users *IdentifierMap) *ReadingListMigrator {
	return &ReadingListMigrator{deps: deps, opts: opts.withDefaults(), novels: novels, users: users}
}

func (m *ReadingListMigrator) MigrateReadingLists(ctx context.Context) MigrationResult {
	rec := newRecorder(StageReadingLists, m.deps.Observer)
	page(ctx, rec, m.opts.BatchSize, m.opts.Workers, m.deps.Source.ReadingLists,
		func(l legacy.ReadingList) int64 { return l.ID }, m.migrateList)
	return rec.finish()
}

type listItem struct {
	index   int
	row     legacy.ReadingListItem
	novelID string
}

func (m *ReadingListMigrator) migrateList(ctx context.Context, row legacy.ReadingList) itemResult {
	ownerID, ok := m.users.Lookup(row.UserID)
	if !ok {
		return missing("reading list %d: owner %d", row.ID, row.UserID)
	}

	rows, err := m.deps.Source.ReadingListItems(ctx, row.ID)
	if err != nil {
		return failed(fmt.Errorf("reading list %d: %w", row.ID, err))
	}
	var (
		res   itemResult
		items []listItem
	)
	for i, it := range rows {
		novelID, ok := m.novels.Lookup(it.NovelID)
		if !ok {
			res = res.warn("reading list %d item %d: novel %d: %v", row.ID, it.ID, it.NovelID, ErrMissingReference)
			continue
		}
		items = append(items, listItem{index: i, row: it, novelID: novelID})
	}

	existing, err := m.deps.Store.ReadingLists.GetByKey(ctx, models.LegacyKey(row.ID))
	switch {
	case err == nil:
		return m.extend(ctx, existing, items, res)
	case !isNotFound(err):
		return failed(fmt.Errorf("reading list %d: %w", row.ID, err))
	}

	list := &models.ReadingList{
		Base: models.Base{
			ID:        uuid.NewString(),
			Seq:       row.ID,
			LegacyID:  row.ID,
			CreatedAt: row.CreatedAt,
		},
		UserID:      ownerID,
		Name:        row.Name,
		Description: row.Description,
		Public:      row.Public,
		NovelCount:  len(items),
		Covers:      m.covers(ctx, items),
	}
	if m.opts.DryRun {
		return migrated(res.warnings...)
	}
	if err := m.deps.Store.ReadingLists.Insert(ctx, list); err != nil {
		if isDuplicate(err) {
			return skipped(res.warnings...)
		}
		return failed(fmt.Errorf("reading list %d: %w", row.ID, err))
	}

	for _, it := range items {
		if _, err := m.writeItem(ctx, list, it); err != nil {
			res = res.warn("reading list %d item %d: %v", row.ID, it.row.ID, err)
		}
	}
	doc, derr := search.ReadingListDocument(list)
	res.warnings = append(res.warnings, pushIndex(ctx, m.deps.Index, doc, derr)...)
	return migrated(res.warnings...)
}

// extend adds items missing from an already migrated list.
func (m *ReadingListMigrator) extend(ctx context.Context, list *models.ReadingList, items []listItem, res itemResult) itemResult {
	if m.opts.DryRun {
		return skipped(res.warnings...)
	}
	added := 0
	for _, it := range items {
		ok, err := m.writeItem(ctx, list, it)
		if err != nil {
			res = res.warn("reading list %d item %d: %v", list.LegacyID, it.row.ID, err)
			continue
		}
		if ok {
			added++
		}
	}
	if added == 0 {
		return skipped(res.warnings...)
	}

	list.NovelCount = len(items)
	list.Covers = m.covers(ctx, items)
	if err := m.deps.Store.ReadingLists.Update(ctx, list); err != nil {
		return failed(fmt.Errorf("reading list %d: %w", list.LegacyID, err))
	}
	doc, derr := search.ReadingListDocument(list)
	res.warnings = append(res.warnings, pushIndex(ctx, m.deps.Index, doc, derr)...)
	return migrated(res.warnings...)
}

// writeItem reports false when the item already exists.
func (m *ReadingListMigrator) writeItem(ctx context.Context, list *models.ReadingList, it listItem) (bool, error) {
	position := it.row.Position
	if position <= 0 {
		position = it.index + 1
	}
	item := &models.ReadingListItem{
		Base: models.Base{
			Seq:       it.row.ID,
			LegacyID:  it.row.ID,
			CreatedAt: it.row.CreatedAt,
		},
		ListID:   list.ID,
		NovelID:  it.novelID,
		Position: position,
		Note:     it.row.Note,
	}
	err := m.deps.Store.ReadingListItems.Insert(ctx, item)
	if isDuplicate(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// covers samples cover images from the first valid items.
func (m *ReadingListMigrator) covers(ctx context.Context, items []listItem) []string {
	out := make([]string, 0, models.MaxListCovers)
	for _, it := range items {
		if len(out) == models.MaxListCovers {
			break
		}
		n, err := m.deps.Store.Novels.Get(ctx, it.novelID)
		if err != nil || n.CoverURL == "" {
			continue
		}
		out = append(out, n.CoverURL)
	}
	return out
}
