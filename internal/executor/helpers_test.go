package executor

import (
	"testing"

	language "github.com/hanpama/bookgraph/internal/language"
	schema "github.com/hanpama/bookgraph/internal/schema"
)

func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	doc, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse %q: %v", q, err)
	}
	return doc
}

// newSchemaWithQueryType builds a schema rooted at query. A nil query
// leaves the schema without a query type.
func newSchemaWithQueryType(query *schema.Type, types ...*schema.Type) *schema.Schema {
	sch := schema.NewSchema("")
	if query != nil {
		sch.SetQueryType(query.Name).AddType(query)
	}
	for _, t := range types {
		sch.AddType(t)
	}
	return sch
}

func newObjectType(name string, fields ...*schema.Field) *schema.Type {
	typ := schema.NewType(name, schema.TypeKindObject, "")
	for _, f := range fields {
		typ.AddField(f)
	}
	return typ
}

func newScalarType(name string) *schema.Type {
	return schema.NewType(name, schema.TypeKindScalar, "")
}
