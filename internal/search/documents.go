package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"novelhub/pkg/models"
)

func payload(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return b, nil
}

// NovelDocument flattens a novel; Tags holds its genre and tag ids.
func NovelDocument(n *models.Novel) (Document, error) {
	p, err := payload(n)
	if err != nil {
		return Document{}, err
	}
	tags := make([]string, 0, len(n.GenreIDs)+len(n.TagIDs))
	tags = append(tags, n.GenreIDs...)
	tags = append(tags, n.TagIDs...)

	body := n.Description
	if n.Author != "" {
		body = n.Author + "\n" + body
	}
	return Document{
		Entity:    EntityNovels,
		ID:        n.ID,
		Title:     n.Title,
		Body:      body,
		Tags:      tags,
		Payload:   p,
		UpdatedAt: n.UpdatedAt,
	}, nil
}

func TaxonDocument(t *models.Taxon) (Document, error) {
	p, err := payload(t)
	if err != nil {
		return Document{}, err
	}
	entity := EntityTags
	if t.Kind == models.KindGenre {
		entity = EntityGenres
	}
	return Document{
		Entity:    entity,
		ID:        t.ID,
		Title:     t.Name,
		Body:      strings.Join(append([]string{t.Description}, t.Aliases...), " "),
		Payload:   p,
		UpdatedAt: t.UpdatedAt,
	}, nil
}

// UserDocument never includes the password hash (the model hides it from JSON).
func UserDocument(u *models.User) (Document, error) {
	p, err := payload(u)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Entity:    EntityUsers,
		ID:        u.ID,
		Title:     u.Username,
		Body:      u.DisplayName,
		Payload:   p,
		UpdatedAt: u.UpdatedAt,
	}, nil
}

func ReadingListDocument(l *models.ReadingList) (Document, error) {
	p, err := payload(l)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Entity:    EntityReadingLists,
		ID:        l.ID,
		Title:     l.Name,
		Body:      l.Description,
		Tags:      []string{l.UserID},
		Payload:   p,
		UpdatedAt: l.UpdatedAt,
	}, nil
}
