package catalog

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	localrt "github.com/hanpama/bookgraph/internal/localrt"
	schema "github.com/hanpama/bookgraph/internal/schema"
)

func errMissingArgument(name string) error {
	return fmt.Errorf("argument %q is missing", name)
}

// Register attaches the catalog resolvers backed by store to rt. Scalar
// fields are projected from Author and Book by their graphql tags.
func Register(rt *localrt.Runtime, store *Store) *localrt.Runtime {
	return rt.
		Resolve("Query", "book", func(ctx context.Context, _ any, args map[string]any) (any, error) {
			id, ok := args["id"].(int)
			if !ok {
				return nil, nil
			}
			if b, found := store.Book(id); found {
				return b, nil
			}
			return nil, nil
		}).
		Resolve("Query", "books", func(ctx context.Context, _ any, _ map[string]any) (any, error) {
			return store.Books(), nil
		}).
		Resolve("Query", "author", func(ctx context.Context, _ any, args map[string]any) (any, error) {
			id, ok := args["id"].(int)
			if !ok {
				return nil, nil
			}
			if a, found := store.Author(id); found {
				return a, nil
			}
			return nil, nil
		}).
		Resolve("Query", "authors", func(ctx context.Context, _ any, _ map[string]any) (any, error) {
			return store.Authors(), nil
		}).
		Resolve("Mutation", "addBook", func(ctx context.Context, _ any, args map[string]any) (any, error) {
			name, ok := args["name"].(string)
			if !ok {
				return nil, errMissingArgument("name")
			}
			authorID, ok := args["authorId"].(int)
			if !ok {
				return nil, errMissingArgument("authorId")
			}
			b, err := store.AddBook(ctx, name, authorID)
			if err != nil {
				return nil, err
			}
			return b, nil
		}).
		Resolve("Mutation", "addAuthor", func(ctx context.Context, _ any, args map[string]any) (any, error) {
			name, ok := args["name"].(string)
			if !ok {
				return nil, errMissingArgument("name")
			}
			return store.AddAuthor(ctx, name), nil
		}).
		Batch("Book", "author", func(ctx context.Context, sources []any, _ []map[string]any) ([]any, error) {
			books, err := sourcesOf[Book](sources)
			if err != nil {
				return nil, err
			}
			byID := store.AuthorsByID(lo.Map(books, func(b Book, _ int) int { return b.AuthorID }))
			return lo.Map(books, func(b Book, _ int) any {
				if a, ok := byID[b.AuthorID]; ok {
					return a
				}
				return nil
			}), nil
		}).
		Batch("Author", "books", func(ctx context.Context, sources []any, _ []map[string]any) ([]any, error) {
			authors, err := sourcesOf[Author](sources)
			if err != nil {
				return nil, err
			}
			byAuthor := store.BooksByAuthors(lo.Map(authors, func(a Author, _ int) int { return a.ID }))
			return lo.Map(authors, func(a Author, _ int) any {
				if books, ok := byAuthor[a.ID]; ok {
					return books
				}
				return []Book{}
			}), nil
		})
}

func sourcesOf[T any](sources []any) ([]T, error) {
	out := make([]T, len(sources))
	for i, s := range sources {
		v, ok := s.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("catalog: source %d is %T, want %T", i, s, zero)
		}
		out[i] = v
	}
	return out, nil
}

// Build runs both phases of the schema build: it loads the SDL, then binds
// the catalog resolvers backed by store.
func Build(store *Store, opts ...localrt.Option) (*schema.Schema, *localrt.Runtime, error) {
	sch, err := NewSchema()
	if err != nil {
		return nil, nil, err
	}
	rt := Register(localrt.New(opts...), store)
	if err := rt.Bind(sch); err != nil {
		return nil, nil, err
	}
	return sch, rt, nil
}
