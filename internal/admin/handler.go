// Package admin exposes operator routes that trigger index syncs and
// aggregate reconciliation.
package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"novelhub/internal/indexsync"
	"novelhub/internal/migrate"
	"novelhub/internal/progress"
)

type Syncer interface {
	Sync(ctx context.Context, entity string) (int, error)
	SyncAll(ctx context.Context) (map[string]int, error)
	Cursors(ctx context.Context) (map[string]int64, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context) migrate.MigrationResult
}

type Handler struct {
	Sync      Syncer
	Reconcile Reconciler
	Hub       *progress.Hub
}

func NewHandler(sync Syncer, rec Reconciler, hub *progress.Hub) *Handler {
	return &Handler{Sync: sync, Reconcile: rec, Hub: hub}
}

// RegisterRoutes expects rg to be behind the operator auth middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sync", h.syncAll)
	rg.POST("/sync/:entity", h.syncOne)
	rg.POST("/reconcile", h.reconcile)
	rg.GET("/cursors", h.cursors)
	rg.GET("/progress", h.progress)
}

func (h *Handler) syncAll(c *gin.Context) {
	synced, err := h.Sync.SyncAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "synced": synced})
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": synced})
}

func (h *Handler) syncOne(c *gin.Context) {
	entity := c.Param("entity")
	n, err := h.Sync.Sync(c.Request.Context(), entity)
	if errors.Is(err, indexsync.ErrUnknownEntity) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown entity"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "processed": n})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entity": entity, "processed": n})
}

func (h *Handler) reconcile(c *gin.Context) {
	res := h.Reconcile.Reconcile(c.Request.Context())
	c.JSON(http.StatusOK, res)
}

func (h *Handler) cursors(c *gin.Context) {
	cursors, err := h.Sync.Cursors(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cursor read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cursors": cursors})
}

func (h *Handler) progress(c *gin.Context) {
	if h.Hub == nil {
		c.JSON(http.StatusOK, gin.H{"events": gin.H{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": h.Hub.Snapshot(), "clients": h.Hub.Stats()})
}
