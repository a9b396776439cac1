// Package store is the primary document store: msgpack documents in an
// embedded Badger database with secondary indexes by natural key, slug,
// parent and modification time.
package store

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"novelhub/internal/logging"
	"novelhub/pkg/models"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate natural key")
	ErrSlugTaken = errors.New("slug already taken")
	ErrClosed    = errors.New("store closed")
)

// Document is implemented by every canonical model stored in a Collection.
// Empty keys are not indexed.
type Document interface {
	Meta() *models.Base
	NaturalKey() string
	ParentKey() string
	SlugKey() string
}

const (
	CollNovels           = "novels"
	CollChapters         = "chapters"
	CollGenres           = "genres"
	CollTags             = "tags"
	CollUsers            = "users"
	CollFavorites        = "favorites"
	CollComments         = "comments"
	CollReadingLists     = "reading_lists"
	CollReadingListItems = "reading_list_items"
)

type Options struct {
	Path     string
	InMemory bool
	Logger   zerolog.Logger
}

// Store groups every canonical collection over one Badger database.
type Store struct {
	db     *badger.DB
	closed atomic.Bool

	Novels           *Collection[models.Novel, *models.Novel]
	Chapters         *Collection[models.Chapter, *models.Chapter]
	Genres           *Collection[models.Taxon, *models.Taxon]
	Tags             *Collection[models.Taxon, *models.Taxon]
	Users            *Collection[models.User, *models.User]
	Favorites        *Collection[models.Favorite, *models.Favorite]
	Comments         *Collection[models.Comment, *models.Comment]
	ReadingLists     *Collection[models.ReadingList, *models.ReadingList]
	ReadingListItems *Collection[models.ReadingListItem, *models.ReadingListItem]
}

func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(badgerLogger{log: logging.Component(opts.Logger, "badger")})
	if opts.InMemory {
		bopts = bopts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	var err error
	if s.Novels, err = newCollection[models.Novel](s, CollNovels); err != nil {
		return err
	}
	if s.Chapters, err = newCollection[models.Chapter](s, CollChapters); err != nil {
		return err
	}
	if s.Genres, err = newCollection[models.Taxon](s, CollGenres); err != nil {
		return err
	}
	if s.Tags, err = newCollection[models.Taxon](s, CollTags); err != nil {
		return err
	}
	if s.Users, err = newCollection[models.User](s, CollUsers); err != nil {
		return err
	}
	if s.Favorites, err = newCollection[models.Favorite](s, CollFavorites); err != nil {
		return err
	}
	if s.Comments, err = newCollection[models.Comment](s, CollComments); err != nil {
		return err
	}
	if s.ReadingLists, err = newCollection[models.ReadingList](s, CollReadingLists); err != nil {
		return err
	}
	if s.ReadingListItems, err = newCollection[models.ReadingListItem](s, CollReadingListItems); err != nil {
		return err
	}
	return nil
}

// Badger exposes the underlying database for stores that share it (cursors).
func (s *Store) Badger() *badger.DB { return s.db }

func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// badgerLogger routes badger's internal logging through zerolog. Info is
// demoted to debug since badger is chatty on open and compaction.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.log.Error().Msgf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warn().Msgf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.log.Debug().Msgf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{})   { l.log.Trace().Msgf(f, v...) }
