package models

// MaxListCovers bounds the cover images denormalized onto a reading list.
const MaxListCovers = 4

type ReadingList struct {
	Base `msgpack:",inline"`

	UserID      string   `json:"user_id" msgpack:"user_id"`
	Name        string   `json:"name" msgpack:"name"`
	Description string   `json:"description,omitempty" msgpack:"description"`
	Public      bool     `json:"public" msgpack:"public"`
	NovelCount  int      `json:"novel_count" msgpack:"novel_count"`
	Covers      []string `json:"covers" msgpack:"covers"`
}

func (l *ReadingList) NaturalKey() string { return LegacyKey(l.LegacyID) }
func (l *ReadingList) ParentKey() string  { return l.UserID }
func (l *ReadingList) SlugKey() string    { return "" }

// ReadingListItem maps one-to-one to a legacy item row, so both Seq and the
// natural key are the legacy item id and stay stable when the list is reordered.
type ReadingListItem struct {
	Base `msgpack:",inline"`

	ListID   string `json:"list_id" msgpack:"list_id"`
	NovelID  string `json:"novel_id" msgpack:"novel_id"`
	Position int    `json:"position" msgpack:"position"`
	Note     string `json:"note,omitempty" msgpack:"note"`
}

func (i *ReadingListItem) NaturalKey() string { return LegacyKey(i.LegacyID) }
func (i *ReadingListItem) ParentKey() string  { return i.ListID }
func (i *ReadingListItem) SlugKey() string    { return "" }
