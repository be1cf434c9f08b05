package executor

import (
	"context"
	"fmt"
	"reflect"

	language "github.com/hanpama/bookgraph/internal/language"
	schema "github.com/hanpama/bookgraph/internal/schema"
)

type Path []PathElement

type PathElement any

// executionState holds the state of one operation.
type executionState struct {
	ctx            context.Context
	runtime        Runtime
	schema         *schema.Schema
	document       *language.QueryDocument
	variableValues map[string]any
	errors         []GraphQLError

	// async tasks queued for the next batch
	pending []asyncTask
	// paths nullified by Non-Null propagation; tasks below them are dropped
	nullified map[string]struct{}
}

// asyncTask is a field waiting for BatchResolveAsync.
type asyncTask struct {
	Task      AsyncResolveTask
	Path      Path
	FieldType *schema.TypeRef
	Fields    []*language.Field
}

// asyncPending marks a response slot that a batch will fill.
type asyncPending struct{}

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// Schema returns the schema the executor runs against.
func (e *Executor) Schema() *schema.Schema { return e.schema }

func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	operation := getOperation(document, operationName)
	if operation == nil {
		if operationName != "" {
			return errorResult(fmt.Sprintf("Unknown operation named %q.", operationName))
		}
		return errorResult("Must provide operation name if query contains multiple operations.")
	}

	coercedVariableValues, err := coerceVariableValues(e.schema, operation, variableValues)
	if err != nil {
		return errorResult(err.Error())
	}

	var rootType *schema.Type
	switch operation.Operation {
	case language.Query:
		rootType = e.schema.GetQueryType()
	case language.Mutation:
		rootType = e.schema.GetMutationType()
	case language.Subscription:
		rootType = e.schema.GetSubscriptionType()
	default:
		return errorResult(fmt.Sprintf("unsupported operation type: %s", operation.Operation))
	}
	if rootType == nil {
		return errorResult(fmt.Sprintf("Schema is not configured for %ss.", operation.Operation))
	}

	state := &executionState{
		ctx:            ctx,
		runtime:        e.runtime,
		schema:         e.schema,
		document:       document,
		variableValues: coercedVariableValues,
		errors:         []GraphQLError{},
		nullified:      make(map[string]struct{}),
	}

	data := make(map[string]any)
	grouped := collectFields(state, rootType, operation.SelectionSet).orderedFields()
	if operation.Operation == language.Mutation {
		// Root mutation fields run serially: each one, including its nested
		// async work, completes before the next starts.
		for _, cf := range grouped {
			executeFields(state, rootType, initialValue, []collectedField{cf}, Path{}, data)
			state.drain(data)
		}
	} else {
		executeFields(state, rootType, initialValue, grouped, Path{}, data)
		state.drain(data)
	}

	return &ExecutionResult{Data: data, Errors: state.errors}
}

func errorResult(message string) *ExecutionResult {
	return &ExecutionResult{Errors: []GraphQLError{{Message: message}}}
}

// drain runs queued async tasks depth by depth until none remain.
func (s *executionState) drain(data map[string]any) {
	for len(s.pending) > 0 {
		tasks, results := s.flush()
		for i, at := range tasks {
			var res AsyncResolveResult
			if i < len(results) {
				res = results[i]
			} else {
				res = AsyncResolveResult{Error: fmt.Errorf("runtime returned no result for %s.%s", at.Task.ObjectType, at.Task.Field)}
			}
			completeAsyncField(s, at, res, data)
		}
	}
}

// flush hands the live pending tasks to the runtime in one batch.
func (s *executionState) flush() ([]asyncTask, []AsyncResolveResult) {
	live := make([]asyncTask, 0, len(s.pending))
	for _, at := range s.pending {
		if s.hasNullifiedPrefix(at.Path) {
			continue
		}
		live = append(live, at)
	}
	s.pending = nil
	if len(live) == 0 {
		return nil, nil
	}

	tasks := make([]AsyncResolveTask, len(live))
	for i, at := range live {
		tasks[i] = at.Task
	}
	return live, s.runtime.BatchResolveAsync(s.ctx, tasks)
}

// executeSelectionSet executes a selection set on objectValue. Async fields
// are queued and left as placeholders. It returns nil when a Non-Null child
// resolved to null below the root.
func executeSelectionSet(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, objectValue any, path Path) map[string]any {
	grouped := collectFields(state, objectType, selectionSet).orderedFields()
	resultMap := make(map[string]any, len(grouped))
	if !executeFields(state, objectType, objectValue, grouped, path, resultMap) {
		return nil
	}
	return resultMap
}

// executeFields writes each collected field of objectType into resultMap.
// It reports false when a Non-Null field below the root came back null, in
// which case the enclosing object must be nulled.
func executeFields(state *executionState, objectType *schema.Type, objectValue any, grouped []collectedField, path Path, resultMap map[string]any) bool {
	for _, cf := range grouped {
		fieldPath := appendPath(path, cf.ResponseName)
		fieldResult := executeFieldGroup(state, objectType, objectValue, cf.Fields, fieldPath)

		if cf.Fields[0].Name == "__typename" {
			resultMap[cf.ResponseName] = fieldResult
			continue
		}

		fieldDef := objectType.Field(cf.Fields[0].Name)
		if fieldDef == nil {
			// error already recorded by executeFieldGroup
			continue
		}

		if isNullish(fieldResult) {
			if schema.IsNonNull(fieldDef.Type) && len(path) > 0 {
				return false
			}
			resultMap[cf.ResponseName] = nil
			continue
		}
		resultMap[cf.ResponseName] = fieldResult
	}
	return true
}

func executeFieldGroup(state *executionState, objectType *schema.Type, objectValue any, fields []*language.Field, path Path) any {
	field := fields[0]
	if field.Name == "__typename" {
		return objectType.Name
	}

	fieldDef := objectType.Field(field.Name)
	if fieldDef == nil {
		state.addError(fmt.Sprintf("Cannot query field %q on type %q.", field.Name, objectType.Name), path, fields)
		return nil
	}

	argumentValues, ok := coerceArgumentValues(state, fieldDef, field.Arguments, path, fields)
	if !ok {
		// the field resolves to null without calling the runtime
		return nil
	}

	if fieldDef.Async {
		state.pending = append(state.pending, asyncTask{
			Task: AsyncResolveTask{
				ObjectType: objectType.Name,
				Field:      field.Name,
				Source:     objectValue,
				Args:       argumentValues,
			},
			Path:      path,
			FieldType: fieldDef.Type,
			Fields:    fields,
		})
		return asyncPending{}
	}

	value, err := state.runtime.ResolveSync(state.ctx, objectType.Name, field.Name, objectValue, argumentValues)
	if err != nil {
		state.addError(err.Error(), path, fields)
		value = nil
	}
	return completeValue(state, fieldDef.Type, fields, value, path)
}

// completeAsyncField writes one batch result into the response tree.
func completeAsyncField(state *executionState, at asyncTask, res AsyncResolveResult, data map[string]any) {
	path := at.Path
	if state.hasNullifiedPrefix(path) {
		return
	}

	var completed any
	if res.Error != nil {
		state.addError(res.Error.Error(), path, at.Fields)
	} else {
		completed = completeValue(state, at.FieldType, at.Fields, res.Value, path)
	}

	if isNullish(completed) {
		if schema.IsNonNull(at.FieldType) {
			// Async results have no type context for their ancestors, so the
			// null propagates to the root field.
			top := topLevelFieldPath(path)
			setValueAtPath(data, top, nil)
			state.markNullified(top)
			return
		}
		completed = nil
	}
	setValueAtPath(data, path, completed)
}

func completeValue(state *executionState, fieldType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			if !state.hasErrorAtPath(path) {
				state.addError(fmt.Sprintf("Cannot return null for non-nullable field %s.", pathToString(path)), path, fields)
			}
			return nil
		}
		return completeValue(state, schema.Unwrap(fieldType), fields, result, path)
	}

	if isNullish(result) {
		return nil
	}

	if schema.IsList(fieldType) {
		return completeListValue(state, fieldType, fields, result, path)
	}

	namedType := schema.GetNamedType(fieldType)
	typeObj := state.schema.Types[namedType]
	if typeObj == nil {
		state.addError(fmt.Sprintf("Unknown type: %s", namedType), path, fields)
		return nil
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		serialized, err := state.runtime.SerializeLeafValue(state.ctx, namedType, result)
		if err != nil {
			state.addError(err.Error(), path, fields)
			return nil
		}
		return serialized
	case schema.TypeKindObject:
		return executeSelectionSet(state, typeObj, mergeSelectionSets(fields), result, path)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return completeAbstractValue(state, namedType, fields, result, path)
	default:
		state.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", typeObj.Kind), path, fields)
		return nil
	}
}

func completeListValue(state *executionState, listType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	items, ok := result.([]any)
	if !ok {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			state.addError(fmt.Sprintf("Expected list value, got %T", result), path, fields)
			return nil
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := schema.Unwrap(listType)
	completed := make([]any, len(items))
	for i, item := range items {
		v := completeValue(state, inner, fields, item, appendPath(path, i))
		if isNullish(v) {
			if schema.IsNonNull(inner) {
				return nil
			}
			v = nil
		}
		completed[i] = v
	}
	return completed
}

func completeAbstractValue(state *executionState, abstractTypeName string, fields []*language.Field, result any, path Path) any {
	typeName, err := state.runtime.ResolveType(state.ctx, abstractTypeName, result)
	if err != nil {
		state.addError(err.Error(), path, fields)
		return nil
	}
	objectType := state.schema.Types[typeName]
	if objectType == nil || objectType.Kind != schema.TypeKindObject {
		state.addError(fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime. Got: %s", abstractTypeName, typeName), path, fields)
		return nil
	}
	return executeSelectionSet(state, objectType, mergeSelectionSets(fields), result, path)
}

func (s *executionState) addError(message string, path Path, fields []*language.Field) {
	ge := GraphQLError{Message: message, Path: path}
	for _, f := range fields {
		if f != nil && f.Position != nil {
			ge.Locations = append(ge.Locations, Location{Line: f.Position.Line, Column: f.Position.Column})
			break
		}
	}
	s.errors = append(s.errors, ge)
}

func (s *executionState) hasErrorAtPath(path Path) bool {
	for _, err := range s.errors {
		if reflect.DeepEqual(err.Path, path) {
			return true
		}
	}
	return false
}

func (s *executionState) markNullified(p Path) {
	if key := pathToString(p); key != "" {
		s.nullified[key] = struct{}{}
	}
}

func (s *executionState) hasNullifiedPrefix(p Path) bool {
	if len(s.nullified) == 0 {
		return false
	}
	for i := range p {
		if _, ok := s.nullified[pathToString(p[:i+1])]; ok {
			return true
		}
	}
	return false
}

func pathToString(path Path) string {
	result := ""
	for i, elem := range path {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				result += "."
			}
			result += v
		case int:
			result += fmt.Sprintf("[%d]", v)
		}
	}
	return result
}

func appendPath(path Path, elem PathElement) Path {
	newPath := make(Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

func topLevelFieldPath(p Path) Path {
	for _, elem := range p {
		if name, ok := elem.(string); ok {
			return Path{name}
		}
	}
	return Path{}
}

// getOperation picks the operation by name, or the only one when unnamed.
func getOperation(document *language.QueryDocument, operationName string) *language.OperationDefinition {
	if operationName == "" {
		if len(document.Operations) == 1 {
			return document.Operations[0]
		}
		return nil
	}
	return document.Operations.ForName(operationName)
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	var ref *schema.TypeRef
	if t.Elem != nil {
		ref = schema.ListType(typeRefFromAST(t.Elem))
	} else {
		ref = schema.NamedType(t.NamedType)
	}
	if t.NonNull {
		return schema.NonNullType(ref)
	}
	return ref
}

// setValueAtPath writes value into the response tree at path. Missing
// intermediate objects are created; a null ancestor leaves the tree as is.
func setValueAtPath(root map[string]any, path Path, value any) {
	if len(path) == 0 {
		return
	}
	current := any(root)
	for _, elem := range path[:len(path)-1] {
		switch e := elem.(type) {
		case string:
			m, ok := current.(map[string]any)
			if !ok {
				return
			}
			next, exists := m[e]
			if !exists {
				next = make(map[string]any)
				m[e] = next
			}
			current = next
		case int:
			slice, ok := current.([]any)
			if !ok || e >= len(slice) {
				return
			}
			current = slice[e]
		}
	}
	switch last := path[len(path)-1].(type) {
	case string:
		if m, ok := current.(map[string]any); ok {
			m[last] = value
		}
	case int:
		if slice, ok := current.([]any); ok && last < len(slice) {
			slice[last] = value
		}
	}
}

func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
