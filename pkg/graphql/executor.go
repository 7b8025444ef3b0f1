package graphql

import (
	"context"
	"errors"
)

var (
	ErrExecutorNotStarted      = errors.New("executor has not been started")
	ErrSubscriptionNotExecuted = errors.New("subscription operations must be subscribed to")
)

// Executor is the execution capability shared by the query endpoint and both subscription engines.
//
// Execute and Subscribe return RequestErrors when the request can't be parsed or validated.
// Errors which happen during execution are part of the Response.
type Executor interface {
	// Start prepares the executor (e.g. builds and validates the schema). It must be called before
	// any operation is executed.
	Start(ctx context.Context) error
	// Execute runs a query or mutation.
	Execute(ctx context.Context, request *Request) (*Response, error)
	// Subscribe runs a subscription. The returned channel is closed when the source stream ends
	// or ctx is done.
	Subscribe(ctx context.Context, request *Request) (<-chan *Response, error)
}

type rootValueContextKey struct{}

// WithRootValue attaches a root value to the context. Resolvers can access it with RootValueFromContext.
func WithRootValue(ctx context.Context, rootValue interface{}) context.Context {
	if rootValue == nil {
		return ctx
	}
	return context.WithValue(ctx, rootValueContextKey{}, rootValue)
}

func RootValueFromContext(ctx context.Context) interface{} {
	return ctx.Value(rootValueContextKey{})
}
