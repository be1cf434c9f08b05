package language

import (
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates SDL on top of the GraphQL prelude
// (built-in scalars, directives and introspection types).
func LoadSchema(name, source string) (*SchemaDefinition, error) {
	return gqlparser.LoadSchema(&ast.Source{Name: name, Input: source})
}

// LoadQuery parses source and validates it against sch. Syntax and
// validation failures are both reported as located errors.
func LoadQuery(sch *SchemaDefinition, source string) (*QueryDocument, ErrorList) {
	doc, errs := gqlparser.LoadQuery(sch, source)
	if len(errs) > 0 {
		return nil, errs
	}
	return doc, nil
}

// AsError converts err into a located GraphQL error.
func AsError(err error) *Error {
	if ge, ok := err.(*gqlerror.Error); ok {
		return ge
	}
	return gqlerror.Wrap(err)
}

// Prelude returns a schema holding only the built-in scalars, directives
// and introspection types.
func Prelude() (*SchemaDefinition, error) {
	return gqlparser.LoadSchema()
}
