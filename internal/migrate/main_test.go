package migrate

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"novelhub/internal/legacy/legacytest"
	"novelhub/internal/progress"
	"novelhub/internal/search"
	"novelhub/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
		goleak.IgnoreAnyFunction("go.opencensus.io/stats/view.(*worker).start"),
		goleak.IgnoreAnyFunction("github.com/golang/glog.(*fileSink).flushDaemon"),
		goleak.IgnoreAnyFunction("github.com/dgraph-io/ristretto/v2/z.(*AllocatorPool).freeupAllocators"),
	)
}

type testEnv struct {
	legacy *legacytest.DB
	store  *store.Store
	index  *search.Index
	events *eventLog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.Open(store.Options{InMemory: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	idx, err := search.Open(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	return &testEnv{legacy: legacytest.New(t), store: st, index: idx, events: &eventLog{}}
}

func (e *testEnv) deps() Deps {
	return Deps{
		Source:   e.legacy.Source(),
		Store:    e.store,
		Index:    e.index,
		Observer: e.events,
		Log:      zerolog.Nop(),
	}
}

func testOptions() Options {
	return Options{BatchSize: 2, Workers: 3, MaxNovels: -1, MaxGenres: 50, FavoriteThreshold: 3}
}

// migrateAll runs every stage without the index rebuild.
func (e *testEnv) migrateAll(t *testing.T, opts Options) Report {
	t.Helper()
	return NewOrchestrator(e.deps(), opts, nil).Run(context.Background(), Plan{})
}

type eventLog struct {
	mu     sync.Mutex
	events []progress.Event
}

func (l *eventLog) Observe(e progress.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) ofType(t progress.EventType) []progress.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []progress.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type invalidations struct {
	mu    sync.Mutex
	slugs []string
}

func (i *invalidations) Invalidate(slug string) {
	i.mu.Lock()
	i.slugs = append(i.slugs, slug)
	i.mu.Unlock()
}
