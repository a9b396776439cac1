package migrate

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"novelhub/internal/progress"
)

type Stage string

const (
	StageTaxonomy     Stage = "taxonomy"
	StageContent      Stage = "content"
	StageUsers        Stage = "users"
	StageRatings      Stage = "ratings"
	StageBookmarks    Stage = "bookmarks"
	StageComments     Stage = "comments"
	StageReadingLists Stage = "reading_lists"
	StageStats        Stage = "stats"
)

// Stages is the execution order.
var Stages = []Stage{
	StageTaxonomy, StageContent, StageUsers, StageRatings,
	StageBookmarks, StageComments, StageReadingLists, StageStats,
}

// ErrMissingReference marks a record whose user or novel was not migrated.
var ErrMissingReference = errors.New("missing reference")

// MigrationResult is the terminal summary of one stage.
type MigrationResult struct {
	Stage     Stage         `json:"stage" yaml:"stage"`
	Total     int           `json:"total" yaml:"total"`
	Migrated  int           `json:"migrated" yaml:"migrated"`
	Skipped   int           `json:"skipped" yaml:"skipped"`
	Failed    int           `json:"failed" yaml:"failed"`
	Errors    []string      `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings  []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

func (r MigrationResult) event(t progress.EventType) progress.Event {
	return progress.Event{
		Type:      t,
		Stage:     string(r.Stage),
		Processed: r.Migrated + r.Skipped + r.Failed,
		Total:     r.Total,
		Migrated:  r.Migrated,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
	}
}

type outcome int

const (
	outcomeMigrated outcome = iota
	outcomeSkipped
	outcomeFailed
)

// itemResult is the outcome of one record. Warnings are kept for every
// outcome; err is only set for failures.
type itemResult struct {
	outcome  outcome
	err      error
	warnings []string
}

func migrated(warnings ...string) itemResult {
	return itemResult{outcome: outcomeMigrated, warnings: warnings}
}

func skipped(warnings ...string) itemResult {
	return itemResult{outcome: outcomeSkipped, warnings: warnings}
}

func failed(err error) itemResult {
	return itemResult{outcome: outcomeFailed, err: err}
}

// missing skips a record whose reference is absent, with a warning.
func missing(format string, args ...any) itemResult {
	return skipped(fmt.Errorf(format+": %w", append(args, ErrMissingReference)...).Error())
}

func (r itemResult) warn(format string, args ...any) itemResult {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
	return r
}

// recorder aggregates item results into a MigrationResult.
type recorder struct {
	mu       sync.Mutex
	res      MigrationResult
	observer progress.Observer
}

func newRecorder(stage Stage, observer progress.Observer) *recorder {
	return &recorder{
		res:      MigrationResult{Stage: stage, StartedAt: time.Now().UTC()},
		observer: observer,
	}
}

func (r *recorder) addTotal(n int) {
	r.mu.Lock()
	r.res.Total += n
	r.mu.Unlock()
}

func (r *recorder) add(item itemResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch item.outcome {
	case outcomeMigrated:
		r.res.Migrated++
	case outcomeSkipped:
		r.res.Skipped++
	case outcomeFailed:
		r.res.Failed++
		if item.err != nil {
			r.res.Errors = append(r.res.Errors, item.err.Error())
		}
	}
	r.res.Warnings = append(r.res.Warnings, item.warnings...)
}

func (r *recorder) warn(format string, args ...any) {
	r.mu.Lock()
	r.res.Warnings = append(r.res.Warnings, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

// fatal records an error that stopped the stage early.
func (r *recorder) fatal(err error) {
	r.mu.Lock()
	r.res.Errors = append(r.res.Errors, err.Error())
	r.mu.Unlock()
}

func (r *recorder) snapshot() MigrationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.res
	out.Errors = append([]string(nil), r.res.Errors...)
	out.Warnings = append([]string(nil), r.res.Warnings...)
	return out
}

// batch emits a progress event with the running counts.
func (r *recorder) batch() {
	progress.Emit(r.observer, r.snapshot().event(progress.StageBatch))
}

func (r *recorder) finish() MigrationResult {
	out := r.snapshot()
	out.Duration = time.Since(out.StartedAt)
	return out
}
