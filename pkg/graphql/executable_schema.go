package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	gql "github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/executor"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/handler/lru"
	"github.com/vektah/gqlparser/v2/ast"
)

const DefaultQueryCacheSize = 1000

var ErrNilExecutableSchema = errors.New("the provided executable schema is nil")

// ExecutorOptions configures the executors of this package.
type ExecutorOptions struct {
	// QueryCacheSize is the amount of parsed and validated documents kept in memory.
	QueryCacheSize int
	// DisableIntrospection rejects __schema and __type queries.
	DisableIntrospection bool
}

func (o *ExecutorOptions) queryCacheSize() int {
	if o.QueryCacheSize <= 0 {
		return DefaultQueryCacheSize
	}
	return o.QueryCacheSize
}

// ExecutableSchemaExecutor executes operations against a gqlgen generated schema.
type ExecutableSchemaExecutor struct {
	schema  gql.ExecutableSchema
	options ExecutorOptions

	mu   sync.RWMutex
	exec *executor.Executor
}

func NewExecutableSchemaExecutor(schema gql.ExecutableSchema, options ExecutorOptions) *ExecutableSchemaExecutor {
	return &ExecutableSchemaExecutor{
		schema:  schema,
		options: options,
	}
}

func (e *ExecutableSchemaExecutor) Start(_ context.Context) error {
	if e.schema == nil || e.schema.Schema() == nil {
		return ErrNilExecutableSchema
	}

	exec := executor.New(e.schema)
	if !e.options.DisableIntrospection {
		exec.Use(extension.Introspection{})
	}
	exec.SetQueryCache(lru.New(e.options.queryCacheSize()))

	e.mu.Lock()
	e.exec = exec
	e.mu.Unlock()
	return nil
}

func (e *ExecutableSchemaExecutor) Execute(ctx context.Context, request *Request) (*Response, error) {
	ctx, exec, rc, err := e.operationContext(ctx, request)
	if err != nil {
		return nil, err
	}

	if rc.Operation.Operation == ast.Subscription {
		return nil, RequestErrorsFromError(ErrSubscriptionNotExecuted)
	}

	responses, ctx := exec.DispatchOperation(ctx, rc)
	return responseFromGQLGen(responses(ctx)), nil
}

func (e *ExecutableSchemaExecutor) Subscribe(ctx context.Context, request *Request) (<-chan *Response, error) {
	ctx, exec, rc, err := e.operationContext(ctx, request)
	if err != nil {
		return nil, err
	}

	responses, ctx := exec.DispatchOperation(ctx, rc)
	out := make(chan *Response)
	go func() {
		defer close(out)
		for {
			response := responses(ctx)
			if response == nil {
				return
			}

			select {
			case out <- responseFromGQLGen(response):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (e *ExecutableSchemaExecutor) operationContext(ctx context.Context, request *Request) (context.Context, *executor.Executor, *gql.OperationContext, error) {
	e.mu.RLock()
	exec := e.exec
	e.mu.RUnlock()
	if exec == nil {
		return ctx, nil, nil, ErrExecutorNotStarted
	}

	variables, err := request.VariablesMap()
	if err != nil {
		return ctx, nil, nil, err
	}

	start := gql.Now()
	params := &gql.RawParams{
		Query:         request.Query,
		OperationName: request.OperationName,
		Variables:     variables,
		ReadTime: gql.TraceTiming{
			Start: start,
			End:   gql.Now(),
		},
	}

	if len(request.Extensions) > 0 {
		if err = json.Unmarshal(request.Extensions, &params.Extensions); err != nil {
			return ctx, nil, nil, RequestErrorsFromError(err)
		}
	}

	ctx = gql.StartOperationTrace(ctx)
	rc, gqlErrors := exec.CreateOperationContext(ctx, params)
	if gqlErrors != nil {
		return ctx, nil, nil, RequestErrorsFromGQLErrors(gqlErrors)
	}

	return ctx, exec, rc, nil
}

func responseFromGQLGen(response *gql.Response) *Response {
	if response == nil {
		return &Response{Data: json.RawMessage("null")}
	}

	result := &Response{
		Data:       response.Data,
		Extensions: response.Extensions,
	}
	if len(response.Errors) > 0 {
		result.Errors = RequestErrorsFromGQLErrors(response.Errors)
	}
	if len(result.Data) == 0 {
		result.Data = json.RawMessage("null")
	}

	return result
}

// Interface Guards
var _ Executor = (*ExecutableSchemaExecutor)(nil)
