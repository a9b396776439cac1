package catalog

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"novelhub/internal/search"
	"novelhub/pkg/models"
)

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/novels/:slug", h.getNovel)              // GET /novels/:slug
	r.GET("/novels/:slug/chapters", h.listChapters) // GET /novels/:slug/chapters
	r.GET("/search", h.search)                      // GET /search?q=&entity=&tags=
}

func (h *Handler) getNovel(c *gin.Context) {
	n, err := h.Repo.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if n == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, n)
}

type chapterSummary struct {
	ID        string `json:"id"`
	Sequence  int    `json:"sequence"`
	Title     string `json:"title"`
	WordCount int    `json:"word_count"`
}

func (h *Handler) listChapters(c *gin.Context) {
	n, err := h.Repo.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if n == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	chapters, err := h.Repo.Chapters(c.Request.Context(), n.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	out := make([]chapterSummary, 0, len(chapters))
	for _, ch := range chapters {
		if !ch.Published {
			continue
		}
		out = append(out, chapterSummary{ID: ch.ID, Sequence: ch.Sequence, Title: ch.Title, WordCount: ch.WordCount})
	}
	c.JSON(http.StatusOK, gin.H{"novel_id": n.ID, "items": out})
}

func (h *Handler) search(c *gin.Context) {
	q := search.Query{
		Entity: c.DefaultQuery("entity", search.EntityNovels),
		Q:      c.Query("q"),
		Limit:  parseInt(c.Query("limit"), 20),
		Offset: parseInt(c.Query("offset"), 0),
	}

	// tags=a,b OR tags=a&tags=b
	tags := c.QueryArray("tags")
	if len(tags) == 1 && strings.Contains(tags[0], ",") {
		tags = strings.Split(tags[0], ",")
	}
	q.Tags = tags

	total, items, err := h.Repo.Search(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func sortChapters(chapters []*models.Chapter) {
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Sequence < chapters[j].Sequence })
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
