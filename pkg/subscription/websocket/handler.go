package websocket

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-http-ws-server/pkg/graphql"
	"github.com/wundergraph/graphql-http-ws-server/pkg/subscription"
)

// Protocol defines the protocol names as type.
type Protocol string

const (
	ProtocolGraphQLWS          Protocol = "graphql-ws"
	ProtocolGraphQLTransportWS Protocol = "graphql-transport-ws"
)

// DefaultProtocol is used when a client does not declare a subprotocol.
var DefaultProtocol = ProtocolGraphQLWS

const DefaultConnectionInitTimeOut = "10s"

// HandleOptions can be used to pass options to the websocket handler.
type HandleOptions struct {
	Logger                    abstractlogger.Logger
	Protocol                  Protocol
	WebSocketInitFunc         InitFunc
	CustomClient              subscription.TransportClient
	CustomKeepAliveInterval   time.Duration
	CustomReadErrorTimeOut    time.Duration
	CustomInitTimeOutDuration time.Duration
	CustomSubscriptionEngine  subscription.Engine
	OnOperation               OperationFunc
	OnOperationComplete       OperationCompleteFunc
	RootValue                 interface{}
}

// HandleOptionFunc can be used to define option functions.
type HandleOptionFunc func(opts *HandleOptions)

// WithLogger is a function that sets a logger for the websocket handler.
func WithLogger(logger abstractlogger.Logger) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.Logger = logger
	}
}

// WithProtocol is a function that sets the subprotocol spoken on the connection.
func WithProtocol(protocol Protocol) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.Protocol = protocol
	}
}

// WithInitFunc is a function that sets the init function for the websocket handler.
func WithInitFunc(initFunc InitFunc) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.WebSocketInitFunc = initFunc
	}
}

// WithCustomClient is a function that set a custom transport client for the websocket handler.
func WithCustomClient(client subscription.TransportClient) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.CustomClient = client
	}
}

// WithCustomKeepAliveInterval is a function that sets a custom keep-alive interval for the websocket handler.
func WithCustomKeepAliveInterval(keepAliveInterval time.Duration) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.CustomKeepAliveInterval = keepAliveInterval
	}
}

// WithCustomReadErrorTimeOut is a function that sets a custom read error time out for the
// websocket handler.
func WithCustomReadErrorTimeOut(readErrorTimeOut time.Duration) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.CustomReadErrorTimeOut = readErrorTimeOut
	}
}

// WithCustomInitTimeOutDuration sets the time a graphql-transport-ws client has to send connection_init.
func WithCustomInitTimeOutDuration(initTimeOut time.Duration) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.CustomInitTimeOutDuration = initTimeOut
	}
}

// WithCustomSubscriptionEngine is a function that sets a custom subscription engine for the websocket handler.
func WithCustomSubscriptionEngine(subscriptionEngine subscription.Engine) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.CustomSubscriptionEngine = subscriptionEngine
	}
}

// WithOperationFunc sets the graphql-ws 'start' hook.
func WithOperationFunc(onOperation OperationFunc) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.OnOperation = onOperation
	}
}

// WithOperationCompleteFunc sets the graphql-ws operation completion hook.
func WithOperationCompleteFunc(onOperationComplete OperationCompleteFunc) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.OnOperationComplete = onOperationComplete
	}
}

// WithRootValue sets the root value handed to graphql-ws operations.
func WithRootValue(rootValue interface{}) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.RootValue = rootValue
	}
}

// Handle will handle the websocket subscription. It can take optional option functions to customize the handler
// behavior. It blocks until the connection is closed.
func Handle(ctx context.Context, conn net.Conn, executor graphql.Executor, options ...HandleOptionFunc) error {
	definedOptions := HandleOptions{
		Logger: abstractlogger.Noop{},
	}

	for _, optionFunc := range options {
		optionFunc(&definedOptions)
	}

	return HandleWithOptions(ctx, conn, executor, definedOptions)
}

// HandleWithOptions will handle the websocket connection. It requires an option struct to define the behavior.
// An error is only returned if the connection could not be set up.
func HandleWithOptions(ctx context.Context, conn net.Conn, executor graphql.Executor, options HandleOptions) error {
	// Use noop logger to prevent nil pointers if none was provided
	if options.Logger == nil {
		options.Logger = abstractlogger.Noop{}
	}
	if options.Protocol == "" {
		options.Protocol = DefaultProtocol
	}

	// keep-alive and operations of the connection end with it
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer func() {
		if err := conn.Close(); err != nil && !isClosedConnError(err) {
			options.Logger.Error("websocket.HandleWithOptions: on deferred closing connection",
				abstractlogger.String("message", "could not close connection to client"),
				abstractlogger.Error(err),
			)
		}
	}()

	var client subscription.TransportClient
	if options.CustomClient != nil {
		client = options.CustomClient
	} else {
		client = NewClient(options.Logger, conn)
	}

	protocolHandler, err := newProtocolHandler(client, options)
	if err != nil {
		options.Logger.Error("websocket.HandleWithOptions: on protocol handler creation",
			abstractlogger.String("message", "could not create protocol handler"),
			abstractlogger.String("protocol", string(options.Protocol)),
			abstractlogger.Error(err),
		)
		return err
	}

	subscriptionHandler, err := subscription.NewUniversalProtocolHandlerWithOptions(client, protocolHandler, executor, subscription.UniversalProtocolHandlerOptions{
		Logger:                 options.Logger,
		CustomReadErrorTimeOut: options.CustomReadErrorTimeOut,
		CustomEngine:           options.CustomSubscriptionEngine,
	})
	if err != nil {
		options.Logger.Error("websocket.HandleWithOptions: on subscription handler creation",
			abstractlogger.String("message", "could not create subscription handler"),
			abstractlogger.String("protocol", string(options.Protocol)),
			abstractlogger.Error(err),
		)
		return err
	}

	if closer, ok := protocolHandler.(interface{ Close() }); ok {
		defer closer.Close()
	}

	subscriptionHandler.Handle(ctx) // Blocking
	return nil
}

func newProtocolHandler(client subscription.TransportClient, options HandleOptions) (subscription.Protocol, error) {
	switch options.Protocol {
	case ProtocolGraphQLWS:
		return NewProtocolGraphQLWSHandlerWithOptions(client, ProtocolGraphQLWSHandlerOptions{
			Logger:                  options.Logger,
			WebSocketInitFunc:       options.WebSocketInitFunc,
			CustomKeepAliveInterval: options.CustomKeepAliveInterval,
			OnOperation:             options.OnOperation,
			OnOperationComplete:     options.OnOperationComplete,
			RootValue:               options.RootValue,
		})
	case ProtocolGraphQLTransportWS:
		return NewProtocolGraphQLTransportWSHandlerWithOptions(client, ProtocolGraphQLTransportWSHandlerOptions{
			Logger:                    options.Logger,
			WebSocketInitFunc:         options.WebSocketInitFunc,
			CustomKeepAliveInterval:   options.CustomKeepAliveInterval,
			CustomInitTimeOutDuration: options.CustomInitTimeOutDuration,
		})
	default:
		return nil, fmt.Errorf("unknown protocol: %s", options.Protocol)
	}
}
