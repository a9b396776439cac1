package migrate

import (
	"context"
	"fmt"
	"sync"

	"novelhub/internal/store"
	"novelhub/pkg/models"
)

// IdentifierMap maps legacy integer ids to opaque ids, plus a slug for
// novels. It only grows; concurrent readers are safe.
type IdentifierMap struct {
	mu    sync.RWMutex
	ids   map[int64]string
	slugs map[int64]string
}

func NewIdentifierMap() *IdentifierMap {
	return &IdentifierMap{
		ids:   make(map[int64]string),
		slugs: make(map[int64]string),
	}
}

func (m *IdentifierMap) Put(legacyID int64, id, slug string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[legacyID] = id
	if slug != "" {
		m.slugs[legacyID] = slug
	}
}

func (m *IdentifierMap) Lookup(legacyID int64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ids[legacyID]
	return id, ok
}

func (m *IdentifierMap) Slug(legacyID int64) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slugs[legacyID]
}

func (m *IdentifierMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// BuildNovelMap scans the novel collection.
func BuildNovelMap(ctx context.Context, st *store.Store) (*IdentifierMap, error) {
	m := NewIdentifierMap()
	err := st.Novels.Each(ctx, func(n *models.Novel) error {
		if n.LegacyID != 0 {
			m.Put(n.LegacyID, n.ID, n.Slug)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build novel map: %w", err)
	}
	return m, nil
}

// BuildUserMap scans the user collection.
func BuildUserMap(ctx context.Context, st *store.Store) (*IdentifierMap, error) {
	m := NewIdentifierMap()
	err := st.Users.Each(ctx, func(u *models.User) error {
		if u.LegacyID != 0 {
			m.Put(u.LegacyID, u.ID, "")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build user map: %w", err)
	}
	return m, nil
}
