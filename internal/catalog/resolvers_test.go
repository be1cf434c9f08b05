package catalog

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	eventbus "github.com/hanpama/bookgraph/internal/eventbus"
	events "github.com/hanpama/bookgraph/internal/events"
	executor "github.com/hanpama/bookgraph/internal/executor"
	language "github.com/hanpama/bookgraph/internal/language"
	schema "github.com/hanpama/bookgraph/internal/schema"
)

func execute(t *testing.T, store *Store, query string, vars map[string]any) *executor.ExecutionResult {
	t.Helper()
	sch, rt, err := Build(store)
	require.NoError(t, err)
	doc, errs := language.LoadQuery(sch.Source, query)
	require.Empty(t, errs)
	return executor.NewExecutor(rt, sch).ExecuteRequest(context.Background(), doc, "", vars, nil)
}

func TestBuildMarksRelationsAsync(t *testing.T) {
	sch, _, err := Build(NewStore(DefaultSeed()))
	require.NoError(t, err)

	require.True(t, sch.FieldDefinition("Book", "author").Async)
	require.True(t, sch.FieldDefinition("Author", "books").Async)
	require.False(t, sch.FieldDefinition("Query", "books").Async)
	require.Equal(t, "This represents a book written by an author", sch.Types["Book"].Description)
	require.Equal(t, "Root Mutation", sch.GetMutationType().Description)
}

func TestSchemaNullability(t *testing.T) {
	sch, err := NewSchema()
	require.NoError(t, err)

	for _, tc := range []struct{ typ, field, want string }{
		{"Book", "id", "Int!"},
		{"Book", "name", "String!"},
		{"Book", "authorId", "Int!"},
		{"Book", "author", "Author"},
		{"Author", "books", "[Book]"},
		{"Query", "book", "Book"},
		{"Query", "authors", "[Author]"},
		{"Mutation", "addBook", "Book"},
	} {
		require.Equal(t, tc.want, sch.FieldDefinition(tc.typ, tc.field).Type.String(), "%s.%s", tc.typ, tc.field)
	}
	args := sch.FieldDefinition("Mutation", "addBook").Arguments
	require.Equal(t, "String!", args[0].Type.String())
	require.Equal(t, "Int!", args[1].Type.String())
	require.Equal(t, schema.TypeKindObject, sch.Types["Author"].Kind)
}

func TestQueryBook(t *testing.T) {
	store := NewStore(DefaultSeed())

	res := execute(t, store, `{
		hit: book(id: 7) { id name authorId author { name } }
		miss: book(id: 99) { id }
		none: book { id }
	}`, nil)

	want := map[string]any{
		"hit": map[string]any{
			"id":       7,
			"name":     "The Way of Shadows",
			"authorId": 3,
			"author":   map[string]any{"name": "Brent Weeks"},
		},
		"miss": nil,
		"none": nil,
	}
	require.Empty(t, res.Errors)
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryAuthorBooks(t *testing.T) {
	res := execute(t, NewStore(DefaultSeed()), `{ author(id: 1) { name books { name } } }`, nil)

	want := map[string]any{"author": map[string]any{
		"name": "J. K. Rowling",
		"books": []any{
			map[string]any{"name": "Harry Potter and the Chamber of Secrets"},
			map[string]any{"name": "Harry Potter and the Prisoner of Azkaban"},
			map[string]any{"name": "Harry Potter and the Goblet of Fire"},
		},
	}}
	require.Empty(t, res.Errors)
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestAuthorWithoutBooks(t *testing.T) {
	store := NewStore(DefaultSeed())
	store.AddAuthor(context.Background(), "New Author")

	res := execute(t, store, `{ author(id: 4) { name books { name } } }`, nil)

	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"author": map[string]any{"name": "New Author", "books": []any{}}}, res.Data)
}

func TestQueryListsKeepStoreOrder(t *testing.T) {
	store := NewStore(DefaultSeed())

	res := execute(t, store, `{ authors { id } books { id } }`, nil)

	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{
		"authors": []any{map[string]any{"id": 1}, map[string]any{"id": 2}, map[string]any{"id": 3}},
		"books": []any{
			map[string]any{"id": 1}, map[string]any{"id": 2}, map[string]any{"id": 3}, map[string]any{"id": 4},
			map[string]any{"id": 5}, map[string]any{"id": 6}, map[string]any{"id": 7}, map[string]any{"id": 8},
		},
	}, res.Data)
}

func TestBookAuthorsResolveInOneBatch(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	var batches []events.ResolverBatch
	eventbus.Subscribe(func(_ context.Context, e events.ResolverBatch) { batches = append(batches, e) })

	res := execute(t, NewStore(DefaultSeed()), `{ books { author { name } } }`, nil)

	require.Empty(t, res.Errors)
	require.Len(t, res.Data.(map[string]any)["books"], 8)
	require.Len(t, batches, 1)
	require.Equal(t, "Book", batches[0].ObjectType)
	require.Equal(t, "author", batches[0].Field)
	require.Equal(t, 8, batches[0].Size)
}

func TestMutationAddAuthor(t *testing.T) {
	store := NewStore(DefaultSeed())

	res := execute(t, store, `mutation { addAuthor(name: "New Author") { id name } }`, nil)

	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"addAuthor": map[string]any{"id": 4, "name": "New Author"}}, res.Data)
	require.Len(t, store.Authors(), 4)
}

func TestMutationAddBook(t *testing.T) {
	store := NewStore(DefaultSeed())

	res := execute(t, store, `mutation Add($name: String!, $author: Int!) {
		addBook(name: $name, authorId: $author) { id name author { name } }
	}`, map[string]any{"name": "The Silmarillion", "author": float64(2)})

	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"addBook": map[string]any{
		"id":     9,
		"name":   "The Silmarillion",
		"author": map[string]any{"name": "J. R. R. Tolkien"},
	}}, res.Data)
}

func TestMutationsRunInDocumentOrder(t *testing.T) {
	store := NewStore(DefaultSeed())

	res := execute(t, store, `mutation {
		first: addAuthor(name: "A") { id }
		book: addBook(name: "B", authorId: 4) { author { name } }
		second: addAuthor(name: "C") { id }
	}`, nil)

	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{
		"first":  map[string]any{"id": 4},
		"book":   map[string]any{"author": map[string]any{"name": "A"}},
		"second": map[string]any{"id": 5},
	}, res.Data)
}

func TestMutationStrictReference(t *testing.T) {
	store := NewStore(DefaultSeed(), WithStrictReferences(true))

	res := execute(t, store, `mutation { addBook(name: "Orphan", authorId: 42) { id } }`, nil)

	require.Equal(t, map[string]any{"addBook": nil}, res.Data)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0].Message, ErrInvalidReference.Error())
	require.Equal(t, executor.Path{"addBook"}, res.Errors[0].Path)
	require.Len(t, store.Books(), 8)
}

func TestMissingArgumentIsRejected(t *testing.T) {
	store := NewStore(DefaultSeed())
	sch, _, err := Build(store)
	require.NoError(t, err)

	_, errs := language.LoadQuery(sch.Source, `mutation { addAuthor { id } }`)

	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Message, "name")
	require.NotEmpty(t, errs[0].Locations)
	require.Len(t, store.Authors(), 3)
}

func TestMutationNullVariableForRequiredArgument(t *testing.T) {
	store := NewStore(DefaultSeed())

	res := execute(t, store, `mutation($n: String = "x") { addAuthor(name: $n) { id } }`,
		map[string]any{"n": nil})

	require.Equal(t, map[string]any{"addAuthor": nil}, res.Data)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0].Message, `Argument "name" has invalid value`)
	require.Equal(t, executor.Path{"addAuthor"}, res.Errors[0].Path)
	require.Len(t, store.Authors(), 3)
}

func TestMutationIntOutOfRange(t *testing.T) {
	store := NewStore(DefaultSeed())

	res := execute(t, store, `mutation { addBook(name: "x", authorId: 99999999999) { id } }`, nil)

	require.Equal(t, map[string]any{"addBook": nil}, res.Data)
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0].Message, `Argument "authorId" has invalid value`)
	require.Len(t, store.Books(), 8)
}

func TestMutationResolversCheckArguments(t *testing.T) {
	store := NewStore(DefaultSeed())
	_, rt, err := Build(store)
	require.NoError(t, err)

	_, err = rt.ResolveSync(context.Background(), "Mutation", "addAuthor", nil, map[string]any{})
	require.EqualError(t, err, `argument "name" is missing`)
	_, err = rt.ResolveSync(context.Background(), "Mutation", "addBook", nil, map[string]any{"name": "x"})
	require.EqualError(t, err, `argument "authorId" is missing`)
	authors, books := store.Len()
	require.Equal(t, 3, authors)
	require.Equal(t, 8, books)
}
