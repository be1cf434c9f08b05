package catalog

import (
	_ "embed"
	"fmt"

	schema "github.com/hanpama/bookgraph/internal/schema"
)

//go:embed schema.graphql
var sdl string

// NewSchema builds the catalog schema. Resolvers are attached afterwards by
// Register.
func NewSchema() (*schema.Schema, error) {
	sch, err := schema.BuildFromSDL(sdl)
	if err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}
	return sch, nil
}
