package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"novelhub/internal/legacy"
	"novelhub/internal/search"
	"novelhub/internal/store"
	"novelhub/internal/taxonomy"
	"novelhub/pkg/models"
	"novelhub/pkg/utils"
)

// TaxonomyResult carries the stage summary and the label mappings the
// content stage resolves through.
type TaxonomyResult struct {
	MigrationResult
	Genres *taxonomy.Mapping
	Tags   *taxonomy.Mapping
}

type TaxonomyMigrator struct {
	deps Deps
	opts Options
}

func NewTaxonomyMigrator(deps Deps, opts Options) *TaxonomyMigrator {
	return &TaxonomyMigrator{deps: deps, opts: opts.withDefaults()}
}

// Migrate writes canonical genres then tags. Rows run one at a time because
// the first row that produces a canonical label owns its record.
func (m *TaxonomyMigrator) Migrate(ctx context.Context) (TaxonomyResult, error) {
	rec := newRecorder(StageTaxonomy, m.deps.Observer)
	out := TaxonomyResult{}

	genres, err := m.deps.Source.Genres(ctx)
	if err != nil {
		return TaxonomyResult{MigrationResult: rec.finish()}, fmt.Errorf("load genres: %w", err)
	}
	tags, err := m.deps.Source.Tags(ctx)
	if err != nil {
		return TaxonomyResult{MigrationResult: rec.finish()}, fmt.Errorf("load tags: %w", err)
	}
	rec.addTotal(len(genres) + len(tags))

	out.Genres, err = m.migrateKind(ctx, rec, models.KindGenre, m.deps.Store.Genres, genres)
	if err != nil {
		return TaxonomyResult{MigrationResult: rec.finish()}, err
	}
	rec.batch()
	out.Tags, err = m.migrateKind(ctx, rec, models.KindTag, m.deps.Store.Tags, tags)
	if err != nil {
		return TaxonomyResult{MigrationResult: rec.finish()}, err
	}
	out.MigrationResult = rec.finish()
	return out, nil
}

type taxonState struct {
	kind    models.TaxonKind
	coll    *store.Collection[models.Taxon, *models.Taxon]
	mapping *taxonomy.Mapping
	byKey   map[string]*models.Taxon // taxonomy.Key(name) -> record
	slugs   *reservations
	limit   int // 0 means unbounded
}

func (s *taxonState) distinct() int {
	n := 0
	for k := range s.byKey {
		if k != taxonomy.Key(taxonomy.Other) {
			n++
		}
	}
	return n
}

func (m *TaxonomyMigrator) migrateKind(ctx context.Context, rec *recorder, kind models.TaxonKind, coll *store.Collection[models.Taxon, *models.Taxon], rows []legacy.Taxon) (*taxonomy.Mapping, error) {
	st := &taxonState{
		kind:    kind,
		coll:    coll,
		mapping: taxonomy.NewMapping(),
		byKey:   make(map[string]*models.Taxon),
		slugs:   newReservations(coll.SlugTaken),
	}
	if kind == models.KindGenre {
		st.limit = m.opts.MaxGenres
	}

	err := coll.Each(ctx, func(t *models.Taxon) error {
		st.byKey[taxonomy.Key(t.Name)] = t
		registerTaxon(st.mapping, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load stored %ss: %w", kind, err)
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return st.mapping, ctx.Err()
		}
		rec.add(m.migrateRow(ctx, st, row))
	}
	return st.mapping, nil
}

func (m *TaxonomyMigrator) migrateRow(ctx context.Context, st *taxonState, row legacy.Taxon) itemResult {
	label := strings.TrimSpace(row.Name)
	if label == "" {
		return skipped(fmt.Sprintf("%s %d: empty name", st.kind, row.ID))
	}

	// Already migrated by an earlier run.
	if existing, err := st.coll.GetByKey(ctx, models.LegacyKey(row.ID)); err == nil {
		st.mapping.Bind(label, existing.ID)
		return migrated()
	} else if !isNotFound(err) {
		return failed(fmt.Errorf("%s %d: %w", st.kind, row.ID, err))
	}

	name := label
	if st.kind == models.KindGenre {
		name, _ = taxonomy.Canonicalize(label)
	}
	key := taxonomy.Key(name)
	if key == "" {
		return skipped(fmt.Sprintf("%s %d: label %q has no letters or digits", st.kind, row.ID, label))
	}

	if t, ok := st.byKey[key]; ok {
		return m.bindAlias(ctx, st, t, label)
	}

	var res itemResult
	if st.limit > 0 && name != taxonomy.Other && st.distinct() >= st.limit-1 {
		res = res.warn("%s %d: %q exceeds the %d %s ceiling, folded into %s", st.kind, row.ID, label, st.limit, st.kind, taxonomy.Other)
		other, ok := st.byKey[taxonomy.Key(taxonomy.Other)]
		if !ok {
			var err error
			other, err = m.create(ctx, st, taxonomy.Other, 0, "")
			if err != nil {
				return failed(fmt.Errorf("%s %d: create %s: %w", st.kind, row.ID, taxonomy.Other, err))
			}
		}
		bound := m.bindAlias(ctx, st, other, label)
		bound.warnings = append(res.warnings, bound.warnings...)
		return bound
	}

	t, err := m.create(ctx, st, name, row.ID, row.Description)
	if err != nil {
		return failed(fmt.Errorf("%s %d: %w", st.kind, row.ID, err))
	}
	if label != name {
		return m.bindAlias(ctx, st, t, label)
	}
	st.mapping.Bind(label, t.ID)
	return migrated()
}

// create writes a canonical record owned by legacyID (0 for records the
// migration invents) and registers it.
func (m *TaxonomyMigrator) create(ctx context.Context, st *taxonState, name string, legacyID int64, description string) (*models.Taxon, error) {
	base := utils.Slugify(name)
	if base == "" {
		base = fmt.Sprintf("%s-%d", st.kind, legacyID)
	}

	for attempt := 0; attempt < 5; attempt++ {
		slug, err := st.slugs.reserve(ctx, base, dashSuffix)
		if err != nil {
			return nil, err
		}
		t := &models.Taxon{
			Base:        models.Base{Seq: legacyID, LegacyID: legacyID},
			Kind:        st.kind,
			Name:        name,
			Slug:        slug,
			Description: description,
		}
		if m.opts.DryRun {
			t.ID = uuid.NewString()
		} else if err := st.coll.Insert(ctx, t); err != nil {
			if isSlugTaken(err) {
				continue
			}
			st.slugs.release(slug)
			return nil, err
		}
		m.index(ctx, t)
		st.byKey[taxonomy.Key(name)] = t
		registerTaxon(st.mapping, t)
		return t, nil
	}
	return nil, fmt.Errorf("no free slug for %q", name)
}

// bindAlias maps label to t and records it on the stored aliases.
func (m *TaxonomyMigrator) bindAlias(ctx context.Context, st *taxonState, t *models.Taxon, label string) itemResult {
	st.mapping.Bind(label, t.ID)
	if label == t.Name || t.HasAlias(label) {
		return migrated()
	}
	t.Aliases = append(t.Aliases, label)
	if m.opts.DryRun {
		return migrated()
	}
	if err := st.coll.Update(ctx, t); err != nil {
		return migrated(fmt.Sprintf("%s %q: record alias %q: %v", st.kind, t.Name, label, err))
	}
	m.index(ctx, t)
	return migrated()
}

func (m *TaxonomyMigrator) index(ctx context.Context, t *models.Taxon) {
	if m.opts.DryRun {
		return
	}
	doc, err := search.TaxonDocument(t)
	for _, w := range pushIndex(ctx, m.deps.Index, doc, err) {
		m.deps.Log.Warn().Msg(w)
	}
}

func registerTaxon(mp *taxonomy.Mapping, t *models.Taxon) {
	mp.Add(taxonomy.Entry{ID: t.ID, Name: t.Name, Slug: t.Slug})
	for _, a := range t.Aliases {
		mp.Bind(a, t.ID)
	}
}

// HydrateMappings rebuilds the genre and tag mappings from stored taxonomy.
func HydrateMappings(ctx context.Context, st *store.Store) (genres, tags *taxonomy.Mapping, err error) {
	genres, tags = taxonomy.NewMapping(), taxonomy.NewMapping()
	if err := st.Genres.Each(ctx, func(t *models.Taxon) error {
		registerTaxon(genres, t)
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("hydrate genres: %w", err)
	}
	if err := st.Tags.Each(ctx, func(t *models.Taxon) error {
		registerTaxon(tags, t)
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("hydrate tags: %w", err)
	}
	return genres, tags, nil
}
