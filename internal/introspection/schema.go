package introspection

import (
	"sync"

	language "github.com/hanpama/bookgraph/internal/language"
	schema "github.com/hanpama/bookgraph/internal/schema"
)

// prelude backs schemas that were assembled by hand and carry no Source.
var prelude = sync.OnceValue(func() *language.SchemaDefinition {
	src, err := language.Prelude()
	if err != nil {
		panic(err)
	}
	return src
})

// extendSchemaWithIntrospection returns a copy of original with the
// introspection types and root fields added. original is left untouched.
func extendSchemaWithIntrospection(original *schema.Schema) *schema.Schema {
	extended := &schema.Schema{
		QueryType:        original.QueryType,
		MutationType:     original.MutationType,
		SubscriptionType: original.SubscriptionType,
		Types:            make(map[string]*schema.Type, len(original.Types)+8),
		Directives:       original.Directives,
		Description:      original.Description,
		Source:           original.Source,
	}
	for name, typ := range original.Types {
		extended.Types[name] = typ
	}

	src := original.Source
	if src == nil {
		src = prelude()
	}
	for _, t := range schema.IntrospectionTypes(src) {
		extended.AddType(t)
	}
	// hand-built schemas may not declare the scalars introspection uses
	for _, name := range []string{"String", "Boolean"} {
		if extended.Types[name] == nil {
			extended.AddType(schema.BuiltinScalar(name))
		}
	}

	queryType := extended.GetQueryType()
	if queryType == nil {
		return extended
	}
	queryTypeCopy := *queryType
	queryTypeCopy.Fields = append(append([]*schema.Field(nil), queryType.Fields...),
		schema.NewField("__schema", "Access the current type schema of this server.",
			schema.NonNullType(schema.NamedType("__Schema"))),
		schema.NewField("__type", "Request the type information of a single type.",
			schema.NamedType("__Type")).
			AddArgument(schema.NewInputValue("name", "The name of the type to look up.",
				schema.NonNullType(schema.NamedType("String")))),
	)
	extended.Types[queryType.Name] = &queryTypeCopy
	return extended
}
