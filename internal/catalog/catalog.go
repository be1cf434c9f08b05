// Package catalog holds the authors and books served by bookgraph: the
// in-memory store, its seed data, the GraphQL schema and the resolvers
// binding one to the other.
package catalog

import "errors"

// ErrInvalidReference is returned by AddBook in strict mode when the book
// names an author the store does not hold.
var ErrInvalidReference = errors.New("invalid reference")

// Author is a writer of books.
type Author struct {
	ID   int    `graphql:"id" yaml:"id"`
	Name string `graphql:"name" yaml:"name"`
}

// Book belongs to one author by AuthorID. The reference is not enforced
// unless the store is strict.
type Book struct {
	ID       int    `graphql:"id" yaml:"id"`
	Name     string `graphql:"name" yaml:"name"`
	AuthorID int    `graphql:"authorId" yaml:"authorId"`
}
