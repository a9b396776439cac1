package migrate

import (
	"context"
	"fmt"
	"time"

	"novelhub/internal/logging"
	"novelhub/internal/progress"
	"novelhub/internal/taxonomy"
)

// Syncer rebuilds the search index from the store after a run.
type Syncer interface {
	SyncAll(ctx context.Context) (map[string]int, error)
}

// Plan selects what one orchestrator run does.
type Plan struct {
	Skip map[Stage]bool
	// RebuildIndexAfter runs the synchronizer once the stages finish.
	RebuildIndexAfter bool
}

// Report aggregates one orchestrator run.
type Report struct {
	StartedAt  time.Time         `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time         `json:"finished_at" yaml:"finished_at"`
	DryRun     bool              `json:"dry_run" yaml:"dry_run"`
	Stages     []MigrationResult `json:"stages" yaml:"stages"`
	Synced     map[string]int    `json:"synced,omitempty" yaml:"synced,omitempty"`
	SyncError  string            `json:"sync_error,omitempty" yaml:"sync_error,omitempty"`
}

// Failed is the number of failed records across every stage.
func (r Report) Failed() int {
	n := 0
	for _, s := range r.Stages {
		n += s.Failed
	}
	return n
}

func (r Report) Stage(s Stage) (MigrationResult, bool) {
	for _, res := range r.Stages {
		if res.Stage == s {
			return res, true
		}
	}
	return MigrationResult{}, false
}

// Orchestrator runs the stages in dependency order. A failed stage is
// reported, never retried.
type Orchestrator struct {
	deps   Deps
	opts   Options
	syncer Syncer
}

func NewOrchestrator(deps Deps, opts Options, syncer Syncer) *Orchestrator {
	if deps.Observer == nil {
		deps.Observer = progress.Nop
	}
	return &Orchestrator{deps: deps, opts: opts.withDefaults(), syncer: syncer}
}

func (o *Orchestrator) Run(ctx context.Context, plan Plan) Report {
	report := Report{StartedAt: time.Now().UTC(), DryRun: o.opts.DryRun}
	log := logging.Component(o.deps.Log, "orchestrator")

	if o.opts.MaxNovels == 0 {
		log.Info().Msg("max novels is 0, skipping migration")
	} else {
		report.Stages = o.runStages(ctx, plan)
	}

	if (plan.RebuildIndexAfter || o.opts.MaxNovels == 0) && o.syncer != nil && !o.opts.DryRun {
		synced, err := o.syncer.SyncAll(ctx)
		report.Synced = synced
		if err != nil {
			report.SyncError = err.Error()
			log.Error().Err(err).Msg("index sync failed")
		}
	}

	report.FinishedAt = time.Now().UTC()
	return report
}

func (o *Orchestrator) runStages(ctx context.Context, plan Plan) []MigrationResult {
	var results []MigrationResult
	log := logging.Component(o.deps.Log, "orchestrator")

	record := func(res MigrationResult) {
		results = append(results, res)
		progress.Emit(o.deps.Observer, res.event(progress.StageFinished))
		ev := log.Info()
		if res.Failed > 0 || len(res.Errors) > 0 {
			ev = log.Warn()
		}
		ev.Str("stage", string(res.Stage)).
			Int("total", res.Total).
			Int("migrated", res.Migrated).
			Int("skipped", res.Skipped).
			Int("failed", res.Failed).
			Int("warnings", len(res.Warnings)).
			Dur("took", res.Duration).
			Msg("stage finished")
	}
	start := func(s Stage) bool {
		if plan.Skip[s] {
			log.Info().Str("stage", string(s)).Msg("stage skipped")
			return false
		}
		if ctx.Err() != nil {
			return false
		}
		progress.Emit(o.deps.Observer, progress.Event{Type: progress.StageStarted, Stage: string(s)})
		return true
	}

	var genres, tags *taxonomy.Mapping
	if start(StageTaxonomy) {
		res, err := NewTaxonomyMigrator(o.deps, o.opts).Migrate(ctx)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
		}
		record(res.MigrationResult)
		genres, tags = res.Genres, res.Tags
	}
	if genres == nil || tags == nil {
		var err error
		genres, tags, err = HydrateMappings(ctx, o.deps.Store)
		if err != nil {
			record(MigrationResult{Stage: StageTaxonomy, Errors: []string{err.Error()}, StartedAt: time.Now().UTC()})
			return results
		}
	}
	log.Debug().Int("genres", genres.Len()).Int("tags", tags.Len()).Msg("taxonomy mappings ready")

	novels, err := BuildNovelMap(ctx, o.deps.Store)
	if err != nil {
		record(MigrationResult{Stage: StageContent, Errors: []string{err.Error()}, StartedAt: time.Now().UTC()})
		return results
	}
	if start(StageContent) {
		record(NewContentMigrator(o.deps, o.opts, genres, tags, novels).Migrate(ctx))
	}

	users, err := BuildUserMap(ctx, o.deps.Store)
	if err != nil {
		record(MigrationResult{Stage: StageUsers, Errors: []string{err.Error()}, StartedAt: time.Now().UTC()})
		return results
	}
	social := NewSocialMigrator(o.deps, o.opts, novels, users)
	if start(StageUsers) {
		record(social.MigrateUsers(ctx))
	}
	if start(StageRatings) {
		record(social.MigrateRatingsToFavorites(ctx))
	}
	if start(StageBookmarks) {
		record(social.MigrateBookmarksToFavorites(ctx))
	}
	if start(StageComments) {
		record(social.MigrateComments(ctx))
	}
	if start(StageReadingLists) {
		record(NewReadingListMigrator(o.deps, o.opts, novels, users).MigrateReadingLists(ctx))
	}
	if start(StageStats) {
		record(NewReconciler(o.deps, o.opts).Reconcile(ctx))
	}
	return results
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	for _, st := range Stages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}
