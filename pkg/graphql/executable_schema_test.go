package graphql

import (
	"context"
	"testing"

	gql "github.com/99designs/gqlgen/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

const executableSchemaTypeDefs = `
type Query { hello: String }
type Subscription { counter: Int }
`

func newExecutableSchemaMock(t *testing.T) *gql.ExecutableSchemaMock {
	t.Helper()
	schema := gqlparser.MustLoadSchema(&ast.Source{Input: executableSchemaTypeDefs})

	return &gql.ExecutableSchemaMock{
		SchemaFunc: func() *ast.Schema {
			return schema
		},
		ComplexityFunc: func(typeName string, fieldName string, childComplexity int, args map[string]interface{}) (int, bool) {
			return 0, false
		},
		ExecFunc: func(ctx context.Context) gql.ResponseHandler {
			rc := gql.GetOperationContext(ctx)
			if rc.Operation.Operation == ast.Subscription {
				counter := 0
				return func(ctx context.Context) *gql.Response {
					counter++
					if counter > 3 {
						return nil
					}
					return &gql.Response{Data: []byte(`{"counter":` + string(rune('0'+counter)) + `}`)}
				}
			}

			return gql.OneShot(&gql.Response{Data: []byte(`{"hello":"world"}`)})
		},
	}
}

func TestExecutableSchemaExecutor(t *testing.T) {
	t.Run("should return error when not started", func(t *testing.T) {
		executor := NewExecutableSchemaExecutor(newExecutableSchemaMock(t), ExecutorOptions{})
		_, err := executor.Execute(context.Background(), &Request{Query: "{ hello }"})
		assert.ErrorIs(t, err, ErrExecutorNotStarted)
	})

	t.Run("should fail to start without schema", func(t *testing.T) {
		executor := NewExecutableSchemaExecutor(nil, ExecutorOptions{})
		assert.ErrorIs(t, executor.Start(context.Background()), ErrNilExecutableSchema)
	})

	executor := NewExecutableSchemaExecutor(newExecutableSchemaMock(t), ExecutorOptions{QueryCacheSize: 10})
	require.NoError(t, executor.Start(context.Background()))

	t.Run("should execute query", func(t *testing.T) {
		response, err := executor.Execute(context.Background(), &Request{Query: "{ hello }"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"hello":"world"}`, string(response.Data))
		assert.False(t, response.HasErrors())
	})

	t.Run("should return request errors for invalid query", func(t *testing.T) {
		_, err := executor.Execute(context.Background(), &Request{Query: "{ goodbye }"})

		var requestErrors RequestErrors
		require.ErrorAs(t, err, &requestErrors)
		assert.Contains(t, requestErrors[0].Message, "goodbye")
	})

	t.Run("should refuse to execute a subscription", func(t *testing.T) {
		_, err := executor.Execute(context.Background(), &Request{Query: "subscription { counter }"})

		var requestErrors RequestErrors
		assert.ErrorAs(t, err, &requestErrors)
	})

	t.Run("should stream subscription results until the source ends", func(t *testing.T) {
		results, err := executor.Subscribe(context.Background(), &Request{Query: "subscription { counter }"})
		require.NoError(t, err)

		var received []string
		for result := range results {
			received = append(received, string(result.Data))
		}

		assert.Equal(t, []string{`{"counter":1}`, `{"counter":2}`, `{"counter":3}`}, received)
	})
}
