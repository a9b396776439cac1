package models

import (
	"strconv"
	"time"
)

// Base is the identity every canonical document carries.
//
// ID is the opaque identifier used for all cross-document references.
// Seq is the dense integer id: the legacy id when the mapping is one-to-one,
// otherwise a value allocated from the collection sequence.
type Base struct {
	ID        string    `json:"id" msgpack:"id"`
	Seq       int64     `json:"seq" msgpack:"seq"`
	LegacyID  int64     `json:"legacy_id,omitempty" msgpack:"legacy_id"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
}

func (b *Base) Meta() *Base { return b }

// LegacyKey is the natural key used by documents mapped one-to-one from a legacy row.
func LegacyKey(legacyID int64) string {
	return strconv.FormatInt(legacyID, 10)
}
