package schema

import (
	"fmt"
	"strings"

	language "github.com/hanpama/bookgraph/internal/language"
)

// BuildFromSDL parses and validates sdl with gqlparser and converts the
// result into an executable Schema. Introspection types are left out; the
// introspection package adds its own. All fields start synchronous.
func BuildFromSDL(sdl string) (*Schema, error) {
	src, err := language.LoadSchema("schema.graphql", sdl)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return BuildFromDefinition(src), nil
}

// BuildFromDefinition converts a validated gqlparser schema.
func BuildFromDefinition(src *language.SchemaDefinition) *Schema {
	s := NewSchema(src.Description)
	s.Source = src
	if src.Query != nil {
		s.SetQueryType(src.Query.Name)
	}
	if src.Mutation != nil {
		s.SetMutationType(src.Mutation.Name)
	}
	if src.Subscription != nil {
		s.SetSubscriptionType(src.Subscription.Name)
	}

	for name, def := range src.Types {
		if strings.HasPrefix(name, "__") {
			continue
		}
		if t, ok := builtinTypes[name]; ok {
			s.AddType(t)
			continue
		}
		s.AddType(buildType(src, def))
	}

	for name, def := range src.Directives {
		if d, ok := builtinDirectives[name]; ok {
			s.AddDirective(d)
			continue
		}
		if def.Position != nil && def.Position.Src != nil && def.Position.Src.BuiltIn {
			continue
		}
		s.AddDirective(buildDirective(def))
	}
	return s
}

// IntrospectionTypes converts the __-prefixed types of src, which every
// gqlparser schema carries from the prelude.
func IntrospectionTypes(src *language.SchemaDefinition) []*Type {
	var out []*Type
	for name, def := range src.Types {
		if strings.HasPrefix(name, "__") {
			out = append(out, buildType(src, def))
		}
	}
	return out
}

func buildType(src *language.SchemaDefinition, def *language.Definition) *Type {
	switch def.Kind {
	case language.Object, language.Interface:
		return buildComposite(src, def)
	case language.Union:
		t := NewType(def.Name, TypeKindUnion, def.Description)
		for _, name := range def.Types {
			t.AddPossibleType(name)
		}
		return t
	case language.Enum:
		t := NewType(def.Name, TypeKindEnum, def.Description)
		for _, v := range def.EnumValues {
			ev := NewEnumValue(v.Name, v.Description)
			if reason, ok := deprecation(v.Directives); ok {
				ev.Deprecate(reason)
			}
			t.AddEnumValue(ev)
		}
		return t
	case language.InputObject:
		t := NewType(def.Name, TypeKindInputObject, def.Description).
			SetOneOf(def.Directives.ForName("oneOf") != nil)
		for _, f := range def.Fields {
			t.AddInputField(buildInputValue(f.Name, f.Description, f.Type, f.DefaultValue, f.Directives))
		}
		return t
	default:
		t := NewType(def.Name, TypeKindScalar, def.Description)
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
				t.SetSpecifiedByURL(arg.Value.Raw)
			}
		}
		return t
	}
}

func buildComposite(src *language.SchemaDefinition, def *language.Definition) *Type {
	kind := TypeKindObject
	if def.Kind == language.Interface {
		kind = TypeKindInterface
	}
	t := NewType(def.Name, kind, def.Description)
	for _, name := range def.Interfaces {
		t.AddInterface(name)
	}
	if kind == TypeKindInterface {
		for _, impl := range src.GetPossibleTypes(def) {
			t.AddPossibleType(impl.Name)
		}
	}
	for _, fd := range def.Fields {
		if strings.HasPrefix(fd.Name, "__") {
			continue
		}
		t.AddField(buildField(fd))
	}
	return t
}

func buildField(fd *language.FieldDefinition) *Field {
	f := NewField(fd.Name, fd.Description, buildTypeRef(fd.Type))
	if reason, ok := deprecation(fd.Directives); ok {
		f.Deprecate(reason)
	}
	for _, a := range fd.Arguments {
		f.AddArgument(buildInputValue(a.Name, a.Description, a.Type, a.DefaultValue, a.Directives))
	}
	return f
}

func buildDirective(def *language.DirectiveDefinition) *Directive {
	d := NewDirective(def.Name, def.Description).SetRepeatable(def.IsRepeatable)
	for _, loc := range def.Locations {
		d.Locations = append(d.Locations, string(loc))
	}
	for _, a := range def.Arguments {
		d.AddArgument(buildInputValue(a.Name, a.Description, a.Type, a.DefaultValue, a.Directives))
	}
	return d
}

func buildInputValue(name, description string, typ *language.Type, def *language.Value, dirs language.DirectiveList) *InputValue {
	in := NewInputValue(name, description, buildTypeRef(typ))
	if def != nil {
		v, err := def.Value(nil)
		if err == nil {
			in.SetDefault(v)
		}
	}
	if reason, ok := deprecation(dirs); ok {
		in.Deprecate(reason)
	}
	return in
}

func buildTypeRef(t *language.Type) *TypeRef {
	if t == nil {
		return nil
	}
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		return NonNullType(ref)
	}
	return ref
}

func deprecation(dirs language.DirectiveList) (string, bool) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return "", false
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw, true
	}
	return deprecatedDirective.Arguments[0].DefaultValue.(string), true
}
