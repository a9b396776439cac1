package taxonomy

import (
	"strings"
	"sync"

	"novelhub/pkg/utils"
)

// Tier identifies which resolution step matched a label.
type Tier int

const (
	TierNone Tier = iota
	TierDirect
	TierNormalized
	TierSlug
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierNormalized:
		return "normalized"
	case TierSlug:
		return "slug"
	}
	return "none"
}

type Entry struct {
	ID   string
	Name string
	Slug string
}

// Mapping resolves labels to canonical taxonomy ids. Several labels may
// resolve to one id. Safe for concurrent use.
type Mapping struct {
	mu     sync.RWMutex
	byName map[string]string // lowercased canonical name -> id
	bySlug map[string]string
	labels map[string]string // lowercased bound label -> id
	ids    map[string]Entry
}

func NewMapping() *Mapping {
	return &Mapping{
		byName: make(map[string]string),
		bySlug: make(map[string]string),
		labels: make(map[string]string),
		ids:    make(map[string]Entry),
	}
}

func labelKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Add registers a canonical record.
func (m *Mapping) Add(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[e.ID] = e
	if k := labelKey(e.Name); k != "" {
		m.byName[k] = e.ID
	}
	if e.Slug != "" {
		m.bySlug[e.Slug] = e.ID
	}
}

// Bind records that a raw label resolves to id.
func (m *Mapping) Bind(label, id string) {
	k := labelKey(label)
	if k == "" {
		return
	}
	m.mu.Lock()
	m.labels[k] = id
	m.mu.Unlock()
}

// Lookup is the direct lookup: a bound label or a canonical name, ignoring case.
func (m *Mapping) Lookup(label string) (string, bool) {
	k := labelKey(label)
	if k == "" {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.labels[k]; ok {
		return id, true
	}
	id, ok := m.byName[k]
	return id, ok
}

// Resolve runs the resolution chain: direct lookup, then the normalized
// label, then the label's slug against canonical slugs.
func (m *Mapping) Resolve(label string) (string, Tier, bool) {
	if id, ok := m.Lookup(label); ok {
		return id, TierDirect, true
	}
	if name, known := Canonicalize(label); known {
		if id, ok := m.Lookup(name); ok {
			return id, TierNormalized, true
		}
	}
	if slug := utils.Slugify(label); slug != "" {
		m.mu.RLock()
		id, ok := m.bySlug[slug]
		m.mu.RUnlock()
		if ok {
			return id, TierSlug, true
		}
	}
	return "", TierNone, false
}

// ResolveAll resolves labels to distinct ids in first-seen order and returns
// the labels that did not resolve.
func (m *Mapping) ResolveAll(labels []string) (ids []string, unresolved []string) {
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if strings.TrimSpace(l) == "" {
			continue
		}
		id, _, ok := m.Resolve(l)
		if !ok {
			unresolved = append(unresolved, l)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, unresolved
}

// LookupAll is ResolveAll restricted to direct lookups.
func (m *Mapping) LookupAll(labels []string) (ids []string, unresolved []string) {
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if strings.TrimSpace(l) == "" {
			continue
		}
		id, ok := m.Lookup(l)
		if !ok {
			unresolved = append(unresolved, l)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, unresolved
}

// Len is the number of distinct canonical records.
func (m *Mapping) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}
