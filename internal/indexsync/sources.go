package indexsync

import (
	"context"

	"novelhub/internal/search"
	"novelhub/internal/store"
	"novelhub/pkg/models"
)

// collectionSource adapts a store collection and a document converter.
type collectionSource[T any, P interface {
	*T
	store.Document
}] struct {
	coll    *store.Collection[T, P]
	convert func(P) (search.Document, error)
}

func (c collectionSource[T, P]) ModifiedAfter(ctx context.Context, after int64, limit int) ([]Record, error) {
	docs, err := c.coll.ModifiedAfter(ctx, after, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(docs))
	for _, d := range docs {
		doc, err := c.convert(d)
		if err != nil {
			return nil, err
		}
		out = append(out, Record{Doc: doc, Modified: d.Meta().UpdatedAt.UnixNano()})
	}
	return out, nil
}

// StoreSources wires every indexed entity type to its collection.
func StoreSources(st *store.Store) map[string]Source {
	return map[string]Source{
		search.EntityNovels: collectionSource[models.Novel, *models.Novel]{
			coll: st.Novels, convert: search.NovelDocument,
		},
		search.EntityGenres: collectionSource[models.Taxon, *models.Taxon]{
			coll: st.Genres, convert: search.TaxonDocument,
		},
		search.EntityTags: collectionSource[models.Taxon, *models.Taxon]{
			coll: st.Tags, convert: search.TaxonDocument,
		},
		search.EntityUsers: collectionSource[models.User, *models.User]{
			coll: st.Users, convert: search.UserDocument,
		},
		search.EntityReadingLists: collectionSource[models.ReadingList, *models.ReadingList]{
			coll: st.ReadingLists, convert: search.ReadingListDocument,
		},
	}
}
