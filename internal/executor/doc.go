// Package executor implements a breadth-first, batch-friendly GraphQL executor
// with explicit runtime hooks for synchronous resolution, depth-wise batching of
// asynchronous work, abstract-type resolution, and leaf serialization.
//
// # Preparation
//
// Documents are expected to be validated before they reach the executor
// (see language.LoadQuery). ExecuteRequest then:
//  1. Chooses the operation by name, or by uniqueness when unnamed.
//  2. Coerces variables against the operation's variable definitions.
//     Errors here stop execution with a nil data value.
//  3. Determines the root object type and collects the root selection set.
//
// # Execution Model
//
// Fields are classified by schema.Field.Async:
//
//   - Synchronous fields are projections of the parent value and resolve
//     immediately through Runtime.ResolveSync. Object results keep expanding
//     in place without adding batch depth.
//   - Asynchronous fields are queued and resolved together through
//     Runtime.BatchResolveAsync, once per depth. Their object results are
//     expanded after the batch returns, and any async children they discover
//     wait for the next batch.
//
// For a response whose deepest chain of async fields has length d,
// BatchResolveAsync is invoked exactly d times. In the bookgraph catalog this
// means that `{ books { author { name } } }` loads every author in one call,
// whatever the number of books.
//
// Root mutation fields are executed serially: each field, including every
// batch it causes, finishes before the next root field starts.
//
// # Value Completion
//
//   - Non-Null: complete the inner type; a null result records an error and
//     nulls the nearest nullable ancestor.
//   - List: complete each element with an index-aware path.
//   - Leaf: Runtime.SerializeLeafValue.
//   - Abstract: Runtime.ResolveType, then complete as that object type.
//
// Tasks queued under a path that has been nulled are dropped before the next
// batch. A Non-Null async field that resolves to null nulls its root field,
// since the executor no longer holds the ancestor types at that point.
//
// # Errors
//
// Errors carry the message, the response path and the location of the field
// in the document. Batch results are independent, so one failing element does
// not fail its siblings.
package executor
