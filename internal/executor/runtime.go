package executor

import (
	"context"
)

// Runtime is the host integration surface the Executor resolves fields
// through.
//
// Contract
//   - At each depth the Executor drains synchronous fields via ResolveSync,
//     then calls BatchResolveAsync once with every async field collected at
//     that depth. The next depth starts only after the batch is completed.
//   - ResolveSync is never invoked for fields marked Async, and
//     BatchResolveAsync is never invoked with an empty task list.
//   - Errors are converted into located GraphQL errors. A Non-Null field that
//     errors propagates null according to the GraphQL rules.
//   - Implementations may be called concurrently for different operations and
//     must not mutate source or args values.
//
// Identifiers
//   - objectType is the GraphQL type name ("Book"); for root fields it is the
//     root type name ("Query", "Mutation").
//   - source is the parent value (the executor's initial value for root fields).
//   - args holds argument values already coerced to Go values.
type Runtime interface {
	// ResolveSync resolves a synchronous field value immediately. Return
	// (nil, nil) to produce null for a nullable field.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves one execution depth of async field tasks.
	//
	// Requirements:
	// - len(results) == len(tasks), results[i] corresponds to tasks[i].
	// - Each element carries its own error; one failure must not fail the batch.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// ResolveType returns the concrete object type name for a value of an
	// interface or union type.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// SerializeLeafValue serializes a scalar or enum value into a JSON-safe Go
	// value. Enums serialize to their symbolic name.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

type AsyncResolveTask struct {
	// ObjectType is the parent GraphQL object type name for the field.
	ObjectType string
	// Field is the GraphQL field name to resolve.
	Field string
	// Source is the parent object value (the initial value for root fields).
	Source any
	// Args are the field arguments, coerced to Go values per the schema.
	Args map[string]any
}

type AsyncResolveResult struct {
	// Value is the resolved raw value prior to completion, or nil on error.
	Value any
	// Error contains a failure specific to this element.
	Error error
}
