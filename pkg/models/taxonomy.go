package models

type TaxonKind string

const (
	KindGenre TaxonKind = "genre"
	KindTag   TaxonKind = "tag"
)

// Taxon is a canonical genre or tag. Aliases records every raw legacy label
// that resolved to it so the label mapping can be rebuilt from the store.
type Taxon struct {
	Base `msgpack:",inline"`

	Kind        TaxonKind `json:"kind" msgpack:"kind"`
	Name        string    `json:"name" msgpack:"name"`
	Slug        string    `json:"slug" msgpack:"slug"`
	Description string    `json:"description,omitempty" msgpack:"description"`
	Aliases     []string  `json:"aliases,omitempty" msgpack:"aliases"`
}

// NaturalKey is empty for taxa created during migration without a legacy row.
func (t *Taxon) NaturalKey() string {
	if t.LegacyID == 0 {
		return ""
	}
	return LegacyKey(t.LegacyID)
}
func (t *Taxon) ParentKey() string { return "" }
func (t *Taxon) SlugKey() string   { return t.Slug }

// HasAlias reports whether label is already recorded, compared verbatim.
func (t *Taxon) HasAlias(label string) bool {
	for _, a := range t.Aliases {
		if a == label {
			return true
		}
	}
	return false
}
