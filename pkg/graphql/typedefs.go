package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	gql "github.com/99designs/gqlgen/graphql"
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/validator"
)

var (
	ErrEmptyTypeDefs = errors.New("the provided type definitions are empty")
	ErrNilResolvers  = errors.New("the provided resolvers are nil")
)

// FieldResolveFunc resolves a root field of the Query or Mutation type.
// The returned value is serialized to JSON and projected onto the selection set.
type FieldResolveFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// SubscriptionResolveFunc creates the source stream of a root field of the Subscription type.
// The returned channel must be closed by the resolver when the stream ends or ctx is done.
type SubscriptionResolveFunc func(ctx context.Context, args map[string]interface{}) (<-chan interface{}, error)

// Resolvers is a resolver map keyed by root field name.
type Resolvers struct {
	Query        map[string]FieldResolveFunc
	Mutation     map[string]FieldResolveFunc
	Subscription map[string]SubscriptionResolveFunc
}

// TypeDefsExecutor builds a schema from SDL type definitions and executes operations with a resolver map.
// Only root fields are resolved; nested selections are projected from the root field's result.
type TypeDefsExecutor struct {
	typeDefs  string
	resolvers *Resolvers
	options   ExecutorOptions

	mu         sync.RWMutex
	schema     *ast.Schema
	queryCache *lru.Cache
}

func NewTypeDefsExecutor(typeDefs string, resolvers *Resolvers, options ExecutorOptions) *TypeDefsExecutor {
	return &TypeDefsExecutor{
		typeDefs:  typeDefs,
		resolvers: resolvers,
		options:   options,
	}
}

func (e *TypeDefsExecutor) Start(_ context.Context) error {
	if e.typeDefs == "" {
		return ErrEmptyTypeDefs
	}
	if e.resolvers == nil {
		return ErrNilResolvers
	}

	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "typeDefs", Input: e.typeDefs})
	if err != nil {
		return fmt.Errorf("invalid type definitions: %w", err)
	}

	if err = e.checkResolvers(schema); err != nil {
		return err
	}

	queryCache, err := lru.New(e.options.queryCacheSize())
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.schema = schema
	e.queryCache = queryCache
	e.mu.Unlock()
	return nil
}

func (e *TypeDefsExecutor) checkResolvers(schema *ast.Schema) error {
	check := func(definition *ast.Definition, has func(name string) bool) error {
		if definition == nil {
			return nil
		}
		for _, field := range definition.Fields {
			if isIntrospectionField(field.Name) {
				continue
			}
			if !has(field.Name) {
				return fmt.Errorf("missing resolver for %s.%s", definition.Name, field.Name)
			}
		}
		return nil
	}

	if err := check(schema.Query, func(name string) bool { _, ok := e.resolvers.Query[name]; return ok }); err != nil {
		return err
	}
	if err := check(schema.Mutation, func(name string) bool { _, ok := e.resolvers.Mutation[name]; return ok }); err != nil {
		return err
	}
	return check(schema.Subscription, func(name string) bool { _, ok := e.resolvers.Subscription[name]; return ok })
}

func (e *TypeDefsExecutor) Execute(ctx context.Context, request *Request) (*Response, error) {
	prepared, err := e.prepare(request)
	if err != nil {
		return nil, err
	}
	schema, operation := prepared.schema, prepared.operation

	var resolvers map[string]FieldResolveFunc
	var rootType *ast.Definition
	switch operation.Operation.Operation {
	case ast.Query:
		resolvers, rootType = e.resolvers.Query, schema.Query
	case ast.Mutation:
		resolvers, rootType = e.resolvers.Mutation, schema.Mutation
	default:
		return nil, RequestErrorsFromError(ErrSubscriptionNotExecuted)
	}

	response := &Response{}
	buf := bytes.NewBuffer(make([]byte, 0, 1024))
	buf.WriteByte('{')
	for i, field := range prepared.fields(operation.Operation.SelectionSet, rootType.Name) {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(buf, field.Alias)

		if field.Name == "__typename" {
			writeJSON(buf, rootType.Name)
			continue
		}

		resolve, ok := resolvers[field.Name]
		if !ok {
			buf.WriteString("null")
			response.Errors = append(response.Errors, fieldError(field.Field, fmt.Sprintf("no resolver for %s.%s", rootType.Name, field.Name)))
			continue
		}

		value, resolveErr := resolve(ctx, field.ArgumentMap(operation.Variables))
		if resolveErr != nil {
			buf.WriteString("null")
			response.Errors = append(response.Errors, fieldError(field.Field, resolveErr.Error()))
			continue
		}

		if err = prepared.write(buf, field, value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')

	response.Data = buf.Bytes()
	return response, nil
}

func (e *TypeDefsExecutor) Subscribe(ctx context.Context, request *Request) (<-chan *Response, error) {
	prepared, err := e.prepare(request)
	if err != nil {
		return nil, err
	}
	operation := prepared.operation

	if operation.Operation.Operation != ast.Subscription {
		return nil, RequestErrors{{Message: "operation is not a subscription"}}
	}

	fields := prepared.fields(operation.Operation.SelectionSet, prepared.schema.Subscription.Name)
	if len(fields) != 1 {
		return nil, RequestErrors{{Message: "subscriptions must select exactly one top level field"}}
	}
	field := fields[0]

	resolve, ok := e.resolvers.Subscription[field.Name]
	if !ok {
		return nil, RequestErrors{{Message: fmt.Sprintf("no resolver for Subscription.%s", field.Name)}}
	}

	source, err := resolve(ctx, field.ArgumentMap(operation.Variables))
	if err != nil {
		return nil, RequestErrors{fieldError(field.Field, err.Error())}
	}

	out := make(chan *Response)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-source:
				if !ok {
					return
				}

				select {
				case out <- prepared.eventResponse(field, event):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// prepare parses and validates the request and coerces its variables.
func (e *TypeDefsExecutor) prepare(request *Request) (*projection, error) {
	e.mu.RLock()
	schema, queryCache := e.schema, e.queryCache
	e.mu.RUnlock()
	if schema == nil {
		return nil, ErrExecutorNotStarted
	}

	if request.Query == "" {
		return nil, RequestErrors{{Message: ErrEmptyRequest.Error()}}
	}

	document, err := e.loadQuery(schema, queryCache, request.Query)
	if err != nil {
		return nil, err
	}

	operation := document.Operations.ForName(request.OperationName)
	if operation == nil {
		return nil, RequestErrors{{Message: ErrOperationNotFound.Error()}}
	}

	rawVariables, err := request.VariablesMap()
	if err != nil {
		return nil, err
	}

	variables, err := validator.VariableValues(schema, operation, rawVariables)
	if err != nil {
		return nil, RequestErrorsFromError(err)
	}

	return &projection{
		schema: schema,
		operation: &gql.OperationContext{
			RawQuery:      request.Query,
			OperationName: request.OperationName,
			Variables:     variables,
			Doc:           document,
			Operation:     operation,
		},
	}, nil
}

func (e *TypeDefsExecutor) loadQuery(schema *ast.Schema, queryCache *lru.Cache, query string) (*ast.QueryDocument, error) {
	key := xxhash.Sum64String(query)
	if cached, ok := queryCache.Get(key); ok {
		return cached.(*ast.QueryDocument), nil
	}

	document, gqlErrors := gqlparser.LoadQuery(schema, query)
	if len(gqlErrors) > 0 {
		return nil, RequestErrorsFromGQLErrors(gqlErrors)
	}

	queryCache.Add(key, document)
	return document, nil
}

func (p *projection) eventResponse(field gql.CollectedField, event interface{}) *Response {
	if err, ok := event.(error); ok {
		return &Response{
			Data:   json.RawMessage("null"),
			Errors: RequestErrors{fieldError(field.Field, err.Error())},
		}
	}

	buf := bytes.NewBuffer(make([]byte, 0, 256))
	buf.WriteByte('{')
	writeKey(buf, field.Alias)
	if err := p.write(buf, field, event); err != nil {
		return &Response{
			Data:   json.RawMessage("null"),
			Errors: RequestErrors{fieldError(field.Field, err.Error())},
		}
	}
	buf.WriteByte('}')

	return &Response{Data: buf.Bytes()}
}

func fieldError(field *ast.Field, message string) RequestError {
	requestError := RequestError{
		Message: message,
		Path:    ErrorPath{field.Alias},
	}
	if field.Position != nil {
		requestError.Locations = []ErrorLocation{{Line: field.Position.Line, Column: field.Position.Column}}
	}
	return requestError
}

func isIntrospectionField(name string) bool {
	return name == "__schema" || name == "__type" || name == "__typename"
}
