package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	eventbus "github.com/hanpama/bookgraph/internal/eventbus"
	events "github.com/hanpama/bookgraph/internal/events"
)

func TestStoreLookups(t *testing.T) {
	s := NewStore(DefaultSeed())

	b, ok := s.Book(4)
	require.True(t, ok)
	require.Equal(t, Book{ID: 4, Name: "The Fellowship of the Ring", AuthorID: 2}, b)

	_, ok = s.Book(99)
	require.False(t, ok)

	a, ok := s.Author(3)
	require.True(t, ok)
	require.Equal(t, "Brent Weeks", a.Name)

	_, ok = s.Author(0)
	require.False(t, ok)

	got := s.AuthorsByID([]int{2, 2, 42, 1})
	want := map[int]Author{1: {ID: 1, Name: "J. K. Rowling"}, 2: {ID: 2, Name: "J. R. R. Tolkien"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("AuthorsByID mismatch (-want +got):\n%s", diff)
	}
}

func TestBooksByAuthor(t *testing.T) {
	s := NewStore(DefaultSeed())
	for _, a := range s.Authors() {
		var want []Book
		for _, b := range s.Books() {
			if b.AuthorID == a.ID {
				want = append(want, b)
			}
		}
		if diff := cmp.Diff(want, s.BooksByAuthor(a.ID)); diff != "" {
			t.Fatalf("books of %s mismatch (-want +got):\n%s", a.Name, diff)
		}
	}
	require.Empty(t, s.BooksByAuthor(42))
}

func TestAddAuthor(t *testing.T) {
	s := NewStore(DefaultSeed())

	a := s.AddAuthor(context.Background(), "New Author")

	require.Equal(t, Author{ID: 4, Name: "New Author"}, a)
	authors := s.Authors()
	require.Len(t, authors, 4)
	require.Equal(t, a, authors[3])
}

func TestAddBookWithoutReferenceCheck(t *testing.T) {
	s := NewStore(DefaultSeed())

	b, err := s.AddBook(context.Background(), "Orphan", 42)

	require.NoError(t, err)
	require.Equal(t, Book{ID: 9, Name: "Orphan", AuthorID: 42}, b)
	require.Len(t, s.Books(), 9)
}

func TestAddBookStrict(t *testing.T) {
	s := NewStore(DefaultSeed(), WithStrictReferences(true))

	_, err := s.AddBook(context.Background(), "Orphan", 42)
	require.ErrorIs(t, err, ErrInvalidReference)
	require.Len(t, s.Books(), 8)

	b, err := s.AddBook(context.Background(), "The Black Prism", 3)
	require.NoError(t, err)
	require.Equal(t, 9, b.ID)
}

func TestIDsAreNeverReused(t *testing.T) {
	seed, err := LoadSeed("testdata/seed.yaml")
	require.NoError(t, err)
	s := NewStore(seed)

	require.Equal(t, 8, s.AddAuthor(context.Background(), "Iain M. Banks").ID)
	b, err := s.AddBook(context.Background(), "Consider Phlebas", 8)
	require.NoError(t, err)
	require.Equal(t, 16, b.ID)
}

func TestEmptyStore(t *testing.T) {
	s := NewStore(Seed{})
	require.Empty(t, s.Authors())
	require.Equal(t, 1, s.AddAuthor(context.Background(), "First").ID)
}

func TestSnapshotsAreCopies(t *testing.T) {
	seed := DefaultSeed()
	s := NewStore(seed)
	seed.Authors[0].Name = "changed"

	authors := s.Authors()
	authors[1].Name = "changed"

	a, _ := s.Author(1)
	require.Equal(t, "J. K. Rowling", a.Name)
	a, _ = s.Author(2)
	require.Equal(t, "J. R. R. Tolkien", a.Name)
}

func TestConcurrentAdds(t *testing.T) {
	s := NewStore(DefaultSeed())
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddAuthor(context.Background(), "someone")
			_ = s.Authors()
		}()
	}
	wg.Wait()

	ids := map[int]bool{}
	for _, a := range s.Authors() {
		require.False(t, ids[a.ID], "duplicate id %d", a.ID)
		ids[a.ID] = true
	}
	authors, books := s.Len()
	require.Equal(t, 53, authors)
	require.Equal(t, 8, books)
}

func TestMutationsPublishEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	var got []events.RecordAdded
	eventbus.Subscribe(func(_ context.Context, e events.RecordAdded) { got = append(got, e) })

	s := NewStore(DefaultSeed(), WithStrictReferences(true))
	s.AddAuthor(context.Background(), "New Author")
	_, _ = s.AddBook(context.Background(), "Orphan", 42)
	_, _ = s.AddBook(context.Background(), "Untitled", 4)

	want := []events.RecordAdded{
		{Kind: "author", ID: 4, Name: "New Author"},
		{Kind: "book", ID: 9, Name: "Untitled"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSeed(t *testing.T) {
	seed, err := LoadSeed("testdata/seed.yaml")
	require.NoError(t, err)
	require.Equal(t, []Author{{ID: 2, Name: "Ursula K. Le Guin"}, {ID: 7, Name: "Terry Pratchett"}}, seed.Authors)
	require.Len(t, seed.Books, 3)
	require.Equal(t, Book{ID: 15, Name: "The Tombs of Atuan", AuthorID: 2}, seed.Books[2])

	_, err = LoadSeed("testdata/unknown_field.yaml")
	require.Error(t, err)

	_, err = LoadSeed("testdata/missing.yaml")
	require.Error(t, err)
}
