package introspection

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	executor "github.com/hanpama/bookgraph/internal/executor"
	language "github.com/hanpama/bookgraph/internal/language"
	schema "github.com/hanpama/bookgraph/internal/schema"
)

// noopRuntime implements executor.Runtime with no behaviour.
type noopRuntime struct{}

func (noopRuntime) ResolveSync(context.Context, string, string, any, map[string]any) (any, error) {
	return nil, nil
}

func (noopRuntime) BatchResolveAsync(context.Context, []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return nil
}

func (noopRuntime) ResolveType(context.Context, string, any) (string, error) {
	return "", nil
}

func (noopRuntime) SerializeLeafValue(_ context.Context, _ string, value any) (any, error) {
	return value, nil
}

const testSDL = `
type Query {
  book(id: Int): Book
  books(limit: Int = 10, order: String = "asc"): [Book]
}

type Book {
  id: Int!
  name: String @deprecated
}
`

func buildSchema(t *testing.T, sdl string) *schema.Schema {
	t.Helper()
	sch, err := schema.BuildFromSDL(sdl)
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	return sch
}

func execute(t *testing.T, sch *schema.Schema, query string) map[string]any {
	t.Helper()
	wrapped := Wrap(noopRuntime{}, sch)
	exec := executor.NewExecutor(wrapped.Runtime, wrapped.Schema)
	doc, err := language.ParseQuery(query)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
	if len(res.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	return res.Data.(map[string]any)
}

func TestIntrospectionEnabled(t *testing.T) {
	data := execute(t, buildSchema(t, testSDL), "{__schema{queryType{name} mutationType{name}}}")

	want := map[string]any{"__schema": map[string]any{
		"queryType":    map[string]any{"name": "Query"},
		"mutationType": nil,
	}}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestTypeFields(t *testing.T) {
	sch := buildSchema(t, testSDL)
	data := execute(t, sch, `{
		__type(name: "Book") {
			kind
			name
			fields { name type { kind name ofType { kind name } } }
			all: fields(includeDeprecated: true) { name isDeprecated deprecationReason }
		}
	}`)

	reason := "No longer supported"
	want := map[string]any{"__type": map[string]any{
		"kind": "OBJECT",
		"name": "Book",
		"fields": []any{
			map[string]any{"name": "id", "type": map[string]any{
				"kind":   "NON_NULL",
				"name":   nil,
				"ofType": map[string]any{"kind": "SCALAR", "name": "Int"},
			}},
		},
		"all": []any{
			map[string]any{"name": "id", "isDeprecated": false, "deprecationReason": nil},
			map[string]any{"name": "name", "isDeprecated": true, "deprecationReason": &reason},
		},
	}}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestArgumentDefaults(t *testing.T) {
	data := execute(t, buildSchema(t, testSDL), `{
		__type(name: "Query") { fields { name args { name defaultValue } } }
	}`)

	got := data["__type"].(map[string]any)["fields"].([]any)[1].(map[string]any)["args"]
	limit, order := "10", `"asc"`
	want := []any{
		map[string]any{"name": "limit", "defaultValue": &limit},
		map[string]any{"name": "order", "defaultValue": &order},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestWrapLeavesOriginalSchema(t *testing.T) {
	sch := buildSchema(t, testSDL)
	wrapped := Wrap(noopRuntime{}, sch)

	if sch.GetQueryType().Field("__schema") != nil {
		t.Fatalf("original query type gained __schema")
	}
	if wrapped.Schema.GetQueryType().Field("__schema") == nil {
		t.Fatalf("wrapped query type lacks __schema")
	}
	if wrapped.Schema.Source != sch.Source {
		t.Fatalf("wrapped schema lost its source")
	}
	if wrapped.Schema.Types["__Type"] == nil {
		t.Fatalf("wrapped schema lacks __Type")
	}
}

func TestHandBuiltSchema(t *testing.T) {
	sch := schema.NewSchema("").SetQueryType("Root")
	sch.AddType(schema.NewType("Root", schema.TypeKindObject, "").
		AddField(schema.NewField("ok", "", schema.NamedType("Boolean"))))

	data := execute(t, sch, "{__schema{queryType{name}}}")

	want := map[string]any{"__schema": map[string]any{"queryType": map[string]any{"name": "Root"}}}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestTypenameField(t *testing.T) {
	sch := buildSchema(t, testSDL)
	// __typename works without the introspection wrapper
	exec := executor.NewExecutor(noopRuntime{}, sch)
	doc, err := language.ParseQuery("{__typename}")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
	if len(res.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	data := res.Data.(map[string]any)
	if data["__typename"] != "Query" {
		t.Fatalf("expected __typename to be Query, got %v", data["__typename"])
	}
}
