package catalog

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"novelhub/pkg/models"
)

// NovelCache holds novels by slug for the read path.
type NovelCache struct {
	c *gocache.Cache
}

func NewNovelCache(ttl time.Duration) *NovelCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &NovelCache{c: gocache.New(ttl, 2*ttl)}
}

func (nc *NovelCache) Get(slug string) (*models.Novel, bool) {
	v, ok := nc.c.Get(slug)
	if !ok {
		return nil, false
	}
	n, ok := v.(*models.Novel)
	return n, ok
}

func (nc *NovelCache) Set(n *models.Novel) {
	nc.c.SetDefault(n.Slug, n)
}

func (nc *NovelCache) Invalidate(slug string) {
	nc.c.Delete(slug)
}

func (nc *NovelCache) Len() int { return nc.c.ItemCount() }
