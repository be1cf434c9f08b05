package events

import "time"

// ResolverBatch is emitted after the runtime resolves one group of async
// tasks sharing a type and field.
type ResolverBatch struct {
	ObjectType string
	Field      string
	Size       int
	Err        error
	Duration   time.Duration
}
