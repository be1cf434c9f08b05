package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"

	eventbus "github.com/hanpama/bookgraph/internal/eventbus"
	events "github.com/hanpama/bookgraph/internal/events"
)

// Store is the append-only, in-memory catalog. It is safe for concurrent use.
//
// Ids come from a counter per entity that starts at the highest seeded id,
// so they are never reused even when the seed has gaps.
type Store struct {
	mu           sync.RWMutex
	authors      []Author
	books        []Book
	lastAuthorID int
	lastBookID   int
	strict       bool
}

type StoreOption func(*Store)

// WithStrictReferences makes AddBook reject unknown author ids.
func WithStrictReferences(strict bool) StoreOption {
	return func(s *Store) { s.strict = strict }
}

// NewStore returns a store holding a copy of seed.
func NewStore(seed Seed, opts ...StoreOption) *Store {
	s := &Store{
		authors: slices.Clone(seed.Authors),
		books:   slices.Clone(seed.Books),
	}
	s.lastAuthorID = lo.Max(lo.Map(s.authors, func(a Author, _ int) int { return a.ID }))
	s.lastBookID = lo.Max(lo.Map(s.books, func(b Book, _ int) int { return b.ID }))
	for _, o := range opts {
		o(s)
	}
	return s
}

// Authors returns every author in insertion order.
func (s *Store) Authors() []Author {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.authors)
}

// Books returns every book in insertion order.
func (s *Store) Books() []Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.books)
}

// Author returns the first author with id.
func (s *Store) Author(id int) (Author, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Find(s.authors, func(a Author) bool { return a.ID == id })
}

// Book returns the first book with id.
func (s *Store) Book(id int) (Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Find(s.books, func(b Book) bool { return b.ID == id })
}

// BooksByAuthor returns the books of one author in insertion order.
func (s *Store) BooksByAuthor(authorID int) []Book {
	return s.BooksByAuthors([]int{authorID})[authorID]
}

// BooksByAuthors groups the books of the given authors in one pass.
// Authors without books are absent from the result.
func (s *Store) BooksByAuthors(authorIDs []int) map[int][]Book {
	want := lo.Keyify(authorIDs)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.GroupBy(
		lo.Filter(s.books, func(b Book, _ int) bool {
			_, ok := want[b.AuthorID]
			return ok
		}),
		func(b Book) int { return b.AuthorID },
	)
}

// AuthorsByID returns the authors with the given ids, keyed by id. Unknown
// ids are absent from the result.
func (s *Store) AuthorsByID(ids []int) map[int]Author {
	want := lo.Keyify(ids)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]Author, len(want))
	for _, a := range s.authors {
		if _, ok := want[a.ID]; !ok {
			continue
		}
		if _, seen := out[a.ID]; !seen {
			out[a.ID] = a
		}
	}
	return out
}

// AddAuthor appends an author with the next author id.
func (s *Store) AddAuthor(ctx context.Context, name string) Author {
	s.mu.Lock()
	s.lastAuthorID++
	a := Author{ID: s.lastAuthorID, Name: name}
	s.authors = append(s.authors, a)
	s.mu.Unlock()

	eventbus.Publish(ctx, events.RecordAdded{Kind: "author", ID: a.ID, Name: a.Name})
	return a
}

// AddBook appends a book with the next book id. In strict mode an unknown
// authorID fails with ErrInvalidReference and nothing is appended.
func (s *Store) AddBook(ctx context.Context, name string, authorID int) (Book, error) {
	s.mu.Lock()
	if s.strict && !lo.ContainsBy(s.authors, func(a Author) bool { return a.ID == authorID }) {
		s.mu.Unlock()
		return Book{}, fmt.Errorf("author %d: %w", authorID, ErrInvalidReference)
	}
	s.lastBookID++
	b := Book{ID: s.lastBookID, Name: name, AuthorID: authorID}
	s.books = append(s.books, b)
	s.mu.Unlock()

	eventbus.Publish(ctx, events.RecordAdded{Kind: "book", ID: b.ID, Name: b.Name})
	return b, nil
}

// Len returns the number of authors and books.
func (s *Store) Len() (authors, books int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.authors), len(s.books)
}
