package websocket

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wundergraph/graphql-http-ws-server/pkg/graphql"
)

const counterTypeDefs = `
type Query {
	hello: String
}

type Subscription {
	counter: Int!
}
`

func newCounterExecutor(t *testing.T, events chan interface{}) graphql.Executor {
	t.Helper()

	executor := graphql.NewTypeDefsExecutor(counterTypeDefs, &graphql.Resolvers{
		Query: map[string]graphql.FieldResolveFunc{
			"hello": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return "world", nil
			},
		},
		Subscription: map[string]graphql.SubscriptionResolveFunc{
			"counter": func(ctx context.Context, args map[string]interface{}) (<-chan interface{}, error) {
				out := make(chan interface{})
				go func() {
					defer close(out)
					for {
						select {
						case <-ctx.Done():
							return
						case event := <-events:
							select {
							case out <- event:
							case <-ctx.Done():
								return
							}
						}
					}
				}()
				return out, nil
			},
		},
	}, graphql.ExecutorOptions{})
	require.NoError(t, executor.Start(context.Background()))
	return executor
}

func TestHandleWithOptions(t *testing.T) {
	t.Run("should serve graphql-ws operations", func(t *testing.T) {
		events := make(chan interface{})
		executor := newCounterExecutor(t, events)
		serverConn, _ := net.Pipe()
		testClient := NewTestClient(false)

		done := make(chan struct{})
		go func() {
			defer close(done)
			err := Handle(
				context.Background(),
				serverConn,
				executor,
				WithCustomClient(testClient),
				WithProtocol(ProtocolGraphQLWS),
				WithCustomKeepAliveInterval(time.Hour),
			)
			assert.NoError(t, err)
		}()

		testClient.writeMessageFromClient([]byte(`{"type":"connection_init"}`))
		assert.Equal(t, `{"type":"connection_ack"}`, string(testClient.readMessageToClient()))
		assert.Equal(t, `{"type":"ka"}`, string(testClient.readMessageToClient()))

		testClient.writeMessageFromClient([]byte(`{"id":"1","type":"start","payload":{"query":"{ hello }"}}`))
		assert.Equal(t, `{"id":"1","type":"data","payload":{"data":{"hello":"world"}}}`, string(testClient.readMessageToClient()))
		assert.Equal(t, `{"id":"1","type":"complete"}`, string(testClient.readMessageToClient()))

		testClient.writeMessageFromClient([]byte(`{"id":"2","type":"start","payload":{"query":"subscription { counter }"}}`))
		events <- 1
		assert.Equal(t, `{"id":"2","type":"data","payload":{"data":{"counter":1}}}`, string(testClient.readMessageToClient()))
		events <- 2
		assert.Equal(t, `{"id":"2","type":"data","payload":{"data":{"counter":2}}}`, string(testClient.readMessageToClient()))

		testClient.writeMessageFromClient([]byte(`{"id":"2","type":"stop"}`))
		assert.Equal(t, `{"id":"2","type":"complete"}`, string(testClient.readMessageToClient()))

		testClient.writeMessageFromClient([]byte(`{"type":"connection_terminate"}`))
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler did not return after connection_terminate")
		}
		assert.False(t, testClient.IsConnected())
	})

	t.Run("should serve graphql-transport-ws operations", func(t *testing.T) {
		events := make(chan interface{})
		executor := newCounterExecutor(t, events)
		serverConn, _ := net.Pipe()
		testClient := NewTestClient(false)

		done := make(chan struct{})
		go func() {
			defer close(done)
			err := Handle(
				context.Background(),
				serverConn,
				executor,
				WithCustomClient(testClient),
				WithProtocol(ProtocolGraphQLTransportWS),
				WithCustomKeepAliveInterval(time.Hour),
			)
			assert.NoError(t, err)
		}()

		testClient.writeMessageFromClient([]byte(`{"type":"connection_init"}`))
		assert.Equal(t, `{"type":"connection_ack"}`, string(testClient.readMessageToClient()))

		testClient.writeMessageFromClient([]byte(`{"id":"1","type":"subscribe","payload":{"query":"{ hello }"}}`))
		assert.Equal(t, `{"id":"1","type":"next","payload":{"data":{"hello":"world"}}}`, string(testClient.readMessageToClient()))
		assert.Equal(t, `{"id":"1","type":"complete"}`, string(testClient.readMessageToClient()))

		testClient.writeMessageFromClient([]byte(`{"id":"2","type":"subscribe","payload":{"query":"subscription { counter }"}}`))
		events <- 7
		assert.Equal(t, `{"id":"2","type":"next","payload":{"data":{"counter":7}}}`, string(testClient.readMessageToClient()))

		testClient.writeMessageFromClient([]byte(`{"id":"2","type":"complete"}`))
		assert.Equal(t, `{"id":"2","type":"complete"}`, string(testClient.readMessageToClient()))

		require.NoError(t, testClient.Disconnect())
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler did not return after disconnect")
		}
	})

	t.Run("should cancel running subscriptions when the context is done", func(t *testing.T) {
		events := make(chan interface{})
		executor := newCounterExecutor(t, events)
		serverConn, _ := net.Pipe()
		testClient := NewTestClient(false)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = Handle(ctx, serverConn, executor,
				WithCustomClient(testClient),
				WithCustomKeepAliveInterval(-1),
			)
		}()

		testClient.writeMessageFromClient([]byte(`{"type":"connection_init"}`))
		assert.Equal(t, `{"type":"connection_ack"}`, string(testClient.readMessageToClient()))
		testClient.writeMessageFromClient([]byte(`{"id":"1","type":"start","payload":{"query":"subscription { counter }"}}`))
		events <- 1
		assert.Equal(t, `{"id":"1","type":"data","payload":{"data":{"counter":1}}}`, string(testClient.readMessageToClient()))

		cancel()
		// the read loop notices the cancelled context after the next message
		testClient.writeMessageFromClient([]byte(`{"id":"3","type":"stop"}`))

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler did not return after context cancellation")
		}
	})

	t.Run("should fail on unknown protocol", func(t *testing.T) {
		serverConn, clientConn := net.Pipe()
		defer clientConn.Close()

		err := Handle(context.Background(), serverConn, nil,
			WithCustomClient(NewTestClient(false)),
			WithProtocol("graphql-unknown"),
		)
		assert.EqualError(t, err, "unknown protocol: graphql-unknown")
	})

	t.Run("should fail without executor and engine", func(t *testing.T) {
		serverConn, clientConn := net.Pipe()
		defer clientConn.Close()

		err := Handle(context.Background(), serverConn, nil, WithCustomClient(NewTestClient(false)))
		assert.ErrorIs(t, err, graphql.ErrExecutorNotStarted)
	})
}
