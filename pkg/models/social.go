package models

type FavoriteSource string

const (
	FavoriteFromRating   FavoriteSource = "rating"
	FavoriteFromBookmark FavoriteSource = "bookmark"
)

// Favorite links a user to a novel. At most one exists per (user, novel).
type Favorite struct {
	Base `msgpack:",inline"`

	UserID  string         `json:"user_id" msgpack:"user_id"`
	NovelID string         `json:"novel_id" msgpack:"novel_id"`
	Source  FavoriteSource `json:"source" msgpack:"source"`
}

func FavoriteKey(userID, novelID string) string { return userID + "/" + novelID }

func (f *Favorite) NaturalKey() string { return FavoriteKey(f.UserID, f.NovelID) }
func (f *Favorite) ParentKey() string  { return f.UserID }
func (f *Favorite) SlugKey() string    { return "" }

// Comment keeps its legacy parent linkage. Depth and Path are not computed
// during migration.
type Comment struct {
	Base `msgpack:",inline"`

	UserID         string `json:"user_id" msgpack:"user_id"`
	NovelID        string `json:"novel_id" msgpack:"novel_id"`
	ChapterID      string `json:"chapter_id,omitempty" msgpack:"chapter_id"`
	ParentID       string `json:"parent_id,omitempty" msgpack:"parent_id"`
	LegacyParentID int64  `json:"legacy_parent_id,omitempty" msgpack:"legacy_parent_id"`
	Body           string `json:"body" msgpack:"body"`
	Depth          int    `json:"depth" msgpack:"depth"`
	Path           string `json:"path" msgpack:"path"`
}

func (c *Comment) NaturalKey() string { return LegacyKey(c.LegacyID) }
func (c *Comment) ParentKey() string  { return c.NovelID }
func (c *Comment) SlugKey() string    { return "" }
