package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/internal/indexsync"
	"novelhub/internal/migrate"
	"novelhub/internal/progress"
)

type fakeSyncer struct {
	synced  []string
	failAll bool
}

func (f *fakeSyncer) Sync(_ context.Context, entity string) (int, error) {
	if entity == "bogus" {
		return 0, fmt.Errorf("sync %s: %w", entity, indexsync.ErrUnknownEntity)
	}
	f.synced = append(f.synced, entity)
	return 4, nil
}

func (f *fakeSyncer) SyncAll(context.Context) (map[string]int, error) {
	if f.failAll {
		return map[string]int{"genres": 2}, errors.New("index down")
	}
	return map[string]int{"genres": 2, "novels": 5}, nil
}

func (f *fakeSyncer) Cursors(context.Context) (map[string]int64, error) {
	return map[string]int64{"novels": 99}, nil
}

type fakeReconciler struct{ calls int }

func (f *fakeReconciler) Reconcile(context.Context) migrate.MigrationResult {
	f.calls++
	return migrate.MigrationResult{Stage: migrate.StageStats, Total: 3, Migrated: 1, Skipped: 2}
}

func newRouter(s Syncer, r Reconciler, hub *progress.Hub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(s, r, hub).RegisterRoutes(router.Group("/admin"))
	return router
}

func do(router *gin.Engine, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestSyncRoutes(t *testing.T) {
	syncer := &fakeSyncer{}
	router := newRouter(syncer, &fakeReconciler{}, nil)

	w, body := do(router, http.MethodPost, "/admin/sync")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 5, body["synced"].(map[string]any)["novels"])

	w, body = do(router, http.MethodPost, "/admin/sync/users")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "users", body["entity"])
	assert.EqualValues(t, 4, body["processed"])
	assert.Equal(t, []string{"users"}, syncer.synced)

	w, _ = do(router, http.MethodPost, "/admin/sync/bogus")
	assert.Equal(t, http.StatusNotFound, w.Code)

	syncer.failAll = true
	w, body = do(router, http.MethodPost, "/admin/sync")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "index down", body["error"])
}

func TestReconcileRoute(t *testing.T) {
	rec := &fakeReconciler{}
	router := newRouter(&fakeSyncer{}, rec, nil)

	w, body := do(router, http.MethodPost, "/admin/reconcile")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, "stats", body["stage"])
	assert.EqualValues(t, 2, body["skipped"])
}

func TestCursorsAndProgressRoutes(t *testing.T) {
	hub := progress.NewHub()
	hub.Observe(progress.Event{Type: progress.StageFinished, Stage: "content", Migrated: 8})
	router := newRouter(&fakeSyncer{}, &fakeReconciler{}, hub)

	w, body := do(router, http.MethodGet, "/admin/cursors")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 99, body["cursors"].(map[string]any)["novels"])

	w, body = do(router, http.MethodGet, "/admin/progress")
	require.Equal(t, http.StatusOK, w.Code)
	content := body["events"].(map[string]any)["content"].(map[string]any)
	assert.EqualValues(t, 8, content["migrated"])

	w, body = do(newRouter(&fakeSyncer{}, &fakeReconciler{}, nil), http.MethodGet, "/admin/progress")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["events"])
}
