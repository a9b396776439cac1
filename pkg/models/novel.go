package models

import (
	"strings"
	"time"
)

type NovelStatus string

const (
	NovelOngoing   NovelStatus = "ongoing"
	NovelCompleted NovelStatus = "completed"
	NovelHiatus    NovelStatus = "hiatus"
	NovelDropped   NovelStatus = "dropped"
)

// ParseNovelStatus maps a legacy status string to the canonical enum.
// Unknown values resolve to ongoing and report ok=false.
func ParseNovelStatus(raw string) (NovelStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ongoing", "active", "publishing", "in progress", "in_progress", "":
		return NovelOngoing, true
	case "completed", "complete", "finished", "ended":
		return NovelCompleted, true
	case "hiatus", "paused", "on hold", "on_hold":
		return NovelHiatus, true
	case "dropped", "cancelled", "canceled", "abandoned":
		return NovelDropped, true
	}
	return NovelOngoing, false
}

// Novel is the canonical novel document.
//
// ChaptersCount, WordCount and the first/latest chapter pointers are
// denormalized from the published chapters and must be recomputed whenever
// the chapter set changes.
type Novel struct {
	Base `msgpack:",inline"`

	Title       string      `json:"title" msgpack:"title"`
	Slug        string      `json:"slug" msgpack:"slug"`
	Author      string      `json:"author,omitempty" msgpack:"author"`
	Description string      `json:"description,omitempty" msgpack:"description"`
	CoverURL    string      `json:"cover_url,omitempty" msgpack:"cover_url"`
	Status      NovelStatus `json:"status" msgpack:"status"`
	GenreIDs    []string    `json:"genre_ids" msgpack:"genre_ids"`
	TagIDs      []string    `json:"tag_ids" msgpack:"tag_ids"`
	Views       int64       `json:"views" msgpack:"views"`

	ChaptersCount    int        `json:"chapters_count" msgpack:"chapters_count"`
	WordCount        int        `json:"word_count" msgpack:"word_count"`
	FirstChapterID   string     `json:"first_chapter_id,omitempty" msgpack:"first_chapter_id"`
	FirstChapterSeq  int        `json:"first_chapter_seq,omitempty" msgpack:"first_chapter_seq"`
	LatestChapterID  string     `json:"latest_chapter_id,omitempty" msgpack:"latest_chapter_id"`
	LatestChapterSeq int        `json:"latest_chapter_seq,omitempty" msgpack:"latest_chapter_seq"`
	LatestChapterAt  *time.Time `json:"latest_chapter_at,omitempty" msgpack:"latest_chapter_at"`
}

func (n *Novel) NaturalKey() string { return LegacyKey(n.LegacyID) }
func (n *Novel) ParentKey() string  { return "" }
func (n *Novel) SlugKey() string    { return n.Slug }

// Chapter belongs to a novel; Sequence is dense per novel and starts at 1.
type Chapter struct {
	Base `msgpack:",inline"`

	NovelID     string     `json:"novel_id" msgpack:"novel_id"`
	Sequence    int        `json:"sequence" msgpack:"sequence"`
	Title       string     `json:"title" msgpack:"title"`
	Content     string     `json:"content" msgpack:"content"`
	WordCount   int        `json:"word_count" msgpack:"word_count"`
	Published   bool       `json:"published" msgpack:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty" msgpack:"published_at"`
}

func (c *Chapter) NaturalKey() string { return LegacyKey(c.LegacyID) }
func (c *Chapter) ParentKey() string  { return c.NovelID }
func (c *Chapter) SlugKey() string    { return "" }
