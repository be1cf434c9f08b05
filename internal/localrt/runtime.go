// Package localrt is an in-process executor.Runtime: resolvers are plain Go
// functions registered per type and field, and fields without a resolver
// are projected from the parent value.
package localrt

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	eventbus "github.com/hanpama/bookgraph/internal/eventbus"
	events "github.com/hanpama/bookgraph/internal/events"
	executor "github.com/hanpama/bookgraph/internal/executor"
	schema "github.com/hanpama/bookgraph/internal/schema"
)

// ResolveFunc resolves one field of one parent value.
type ResolveFunc func(ctx context.Context, source any, args map[string]any) (any, error)

// BatchFunc resolves one field for every parent value reached at the same
// depth. It must return one value per source, in order.
type BatchFunc func(ctx context.Context, sources []any, args []map[string]any) ([]any, error)

type fieldKey struct {
	objectType string
	field      string
}

func (k fieldKey) String() string { return k.objectType + "." + k.field }

// Runtime implements executor.Runtime over registered Go functions.
//
// Registration happens before Bind and is not safe for concurrent use.
// After Bind the runtime is read-only and may serve concurrent operations.
type Runtime struct {
	resolvers   map[fieldKey]ResolveFunc
	batches     map[fieldKey]BatchFunc
	scalars     map[string]func(any) (any, error)
	resolveType func(abstractType string, value any) (string, error)
	parallel    bool
}

var _ executor.Runtime = (*Runtime)(nil)

type Option func(*Runtime)

// WithTypeResolver sets the function naming the concrete type of interface
// and union values. The default reads "__typename" from maps and the Go type
// name from structs.
func WithTypeResolver(fn func(abstractType string, value any) (string, error)) Option {
	return func(r *Runtime) { r.resolveType = fn }
}

// WithScalar registers a serializer for a custom scalar.
func WithScalar(name string, serialize func(any) (any, error)) Option {
	return func(r *Runtime) { r.scalars[name] = serialize }
}

// WithParallelGroups runs the groups of one batch concurrently.
func WithParallelGroups() Option { return func(r *Runtime) { r.parallel = true } }

func New(opts ...Option) *Runtime {
	r := &Runtime{
		resolvers:   make(map[fieldKey]ResolveFunc),
		batches:     make(map[fieldKey]BatchFunc),
		scalars:     make(map[string]func(any) (any, error)),
		resolveType: defaultResolveType,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve registers a synchronous resolver for objectType.field.
func (r *Runtime) Resolve(objectType, field string, fn ResolveFunc) *Runtime {
	r.resolvers[fieldKey{objectType, field}] = fn
	return r
}

// Batch registers a batch resolver for objectType.field. Bind marks the
// field async so the executor collects it once per depth.
func (r *Runtime) Batch(objectType, field string, fn BatchFunc) *Runtime {
	r.batches[fieldKey{objectType, field}] = fn
	return r
}

// Bind attaches the registered resolvers to sch. It fails when a resolver
// names a type or field sch does not define, or when a field has both a
// synchronous and a batch resolver.
func (r *Runtime) Bind(sch *schema.Schema) error {
	var errs []error
	for k := range r.resolvers {
		if sch.FieldDefinition(k.objectType, k.field) == nil {
			errs = append(errs, fmt.Errorf("resolver for unknown field %s", k))
		}
		if _, dup := r.batches[k]; dup {
			errs = append(errs, fmt.Errorf("field %s has both a resolver and a batch resolver", k))
		}
	}
	for k := range r.batches {
		f := sch.FieldDefinition(k.objectType, k.field)
		if f == nil {
			errs = append(errs, fmt.Errorf("batch resolver for unknown field %s", k))
			continue
		}
		f.SetAsync(true)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("localrt: bind: %w", err)
	}
	return nil
}

func (r *Runtime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	if fn, ok := r.resolvers[fieldKey{objectType, field}]; ok {
		return fn(ctx, source, args)
	}
	return project(source, field)
}

// BatchResolveAsync groups tasks by type and field and resolves each group
// with a single call of its batch resolver. Results keep the task order.
func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	type group struct {
		key  fieldKey
		idxs []int
	}
	groups := []group{}
	idxByKey := map[fieldKey]int{}
	for i, t := range tasks {
		k := fieldKey{t.ObjectType, t.Field}
		if gi, ok := idxByKey[k]; ok {
			groups[gi].idxs = append(groups[gi].idxs, i)
		} else {
			idxByKey[k] = len(groups)
			groups = append(groups, group{key: k, idxs: []int{i}})
		}
	}

	run := func(g group) {
		start := time.Now()
		err := r.runGroup(ctx, g.key, tasks, g.idxs, results)
		eventbus.Publish(ctx, events.ResolverBatch{
			ObjectType: g.key.objectType,
			Field:      g.key.field,
			Size:       len(g.idxs),
			Err:        err,
			Duration:   time.Since(start),
		})
	}

	if r.parallel && len(groups) > 1 {
		var wg sync.WaitGroup
		wg.Add(len(groups))
		for _, g := range groups {
			go func() {
				defer wg.Done()
				run(g)
			}()
		}
		wg.Wait()
	} else {
		for _, g := range groups {
			run(g)
		}
	}
	return results
}

// runGroup writes the results of one group in place. The returned error is
// the group-wide failure, if any.
func (r *Runtime) runGroup(ctx context.Context, key fieldKey, tasks []executor.AsyncResolveTask, idxs []int, results []executor.AsyncResolveResult) error {
	if fn, ok := r.batches[key]; ok {
		sources := make([]any, len(idxs))
		args := make([]map[string]any, len(idxs))
		for j, idx := range idxs {
			sources[j] = tasks[idx].Source
			args[j] = tasks[idx].Args
		}
		values, err := fn(ctx, sources, args)
		if err == nil && len(values) != len(idxs) {
			err = fmt.Errorf("batch resolver for %s returned %d values for %d sources", key, len(values), len(idxs))
		}
		for j, idx := range idxs {
			if err != nil {
				results[idx] = executor.AsyncResolveResult{Error: err}
				continue
			}
			results[idx] = executor.AsyncResolveResult{Value: values[j]}
		}
		return err
	}

	var firstErr error
	for _, idx := range idxs {
		t := tasks[idx]
		v, err := r.ResolveSync(ctx, t.ObjectType, t.Field, t.Source, t.Args)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		results[idx] = executor.AsyncResolveResult{Value: v, Error: err}
	}
	return firstErr
}

func (r *Runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return r.resolveType(abstractType, value)
}

func defaultResolveType(abstractType string, value any) (string, error) {
	if m, ok := value.(map[string]any); ok {
		if name, ok := m["__typename"].(string); ok {
			return name, nil
		}
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		return rv.Type().Name(), nil
	}
	return "", fmt.Errorf("cannot resolve concrete type of %s from %T", abstractType, value)
}
