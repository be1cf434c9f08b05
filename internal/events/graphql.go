package events

import "time"

// GraphQLStart is emitted once the operation of a request is known.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
}

// GraphQLFinish is emitted after executing a GraphQL operation, or after
// rejecting it. Rejected operations never reached a resolver.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Rejected      bool
	Errors        []error
	Duration      time.Duration
}
