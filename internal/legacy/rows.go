package legacy

import "time"

type Taxon struct {
	ID          int64
	Name        string
	Description string
}

type Novel struct {
	ID          int64
	Title       string
	Author      string
	Description string
	CoverURL    string
	Status      string
	Genres      []string
	Tags        []string
	Views       int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Chapter struct {
	ID        int64
	NovelID   int64
	Number    float64
	Title     string
	Content   string
	Published bool
	CreatedAt time.Time
}

type User struct {
	ID           int64
	Email        string
	Username     string
	DisplayName  string
	AvatarURL    string
	PasswordHash string
	Role         string
	Bookmarks    string
	CreatedAt    time.Time
}

type Rating struct {
	ID        int64
	UserID    int64
	NovelID   int64
	Score     int
	CreatedAt time.Time
}

type Comment struct {
	ID        int64
	UserID    int64
	NovelID   int64
	ChapterID int64
	ParentID  int64
	Body      string
	CreatedAt time.Time
}

type ReadingList struct {
	ID          int64
	UserID      int64
	Name        string
	Description string
	Public      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ReadingListItem struct {
	ID        int64
	ListID    int64
	NovelID   int64
	Position  int
	Note      string
	CreatedAt time.Time
}
