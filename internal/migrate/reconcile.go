package migrate

import (
	"context"
	"fmt"

	"novelhub/internal/search"
	"novelhub/pkg/models"
)

// Reconciler recomputes novel aggregates from the stored chapters and
// corrects drift. It does not depend on migration order and is safe to run
// on a schedule.
type Reconciler struct {
	deps Deps
	opts Options
}

func NewReconciler(deps Deps, opts Options) *Reconciler {
	return &Reconciler{deps: deps, opts: opts.withDefaults()}
}

func (r *Reconciler) Reconcile(ctx context.Context) MigrationResult {
	rec := newRecorder(StageStats, r.deps.Observer)

	after := ""
	for ctx.Err() == nil {
		novels, err := r.deps.Store.Novels.Scan(ctx, after, r.opts.BatchSize)
		if err != nil {
			rec.fatal(fmt.Errorf("scan novels: %w", err))
			break
		}
		rec.addTotal(len(novels))
		forEach(ctx, r.opts.Workers, novels, rec, r.reconcile)
		rec.batch()
		if len(novels) < r.opts.BatchSize {
			break
		}
		after = novels[len(novels)-1].ID
	}
	return rec.finish()
}

func (r *Reconciler) reconcile(ctx context.Context, n *models.Novel) itemResult {
	chapters, err := r.deps.Store.Chapters.ListByParent(ctx, n.ID)
	if err != nil {
		return failed(fmt.Errorf("novel %s: %w", n.ID, err))
	}
	if !computeStats(n, chapters) {
		return skipped()
	}
	if r.opts.DryRun {
		return migrated()
	}
	if err := r.deps.Store.Novels.Update(ctx, n); err != nil {
		return failed(fmt.Errorf("novel %s: %w", n.ID, err))
	}
	if r.deps.Cache != nil {
		r.deps.Cache.Invalidate(n.Slug)
	}
	doc, derr := search.NovelDocument(n)
	return migrated(pushIndex(ctx, r.deps.Index, doc, derr)...)
}
