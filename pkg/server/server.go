// Package server assembles a GraphQL server answering queries over HTTP and subscriptions over
// graphql-ws and graphql-transport-ws on one port and path.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-multierror"
	"github.com/jensneuse/abstractlogger"
	pkgerrors "github.com/pkg/errors"

	"github.com/wundergraph/graphql-http-ws-server/pkg/graphql"
	pkghttp "github.com/wundergraph/graphql-http-ws-server/pkg/http"
	"github.com/wundergraph/graphql-http-ws-server/pkg/playground"
	"github.com/wundergraph/graphql-http-ws-server/pkg/subscription/websocket"
)

const (
	drainStepHTTP      = "http"
	drainStepTransport = "graphql-transport-ws"
	drainStepLegacy    = "graphql-ws"
)

// engineHandle owns the websocket listener of one subscription engine.
// Only the graphql-transport-ws engine can be disposed.
type engineHandle struct {
	protocol websocket.Protocol
	listener *websocket.Server
	dispose  func(ctx context.Context) error
}

// close stops the engine from accepting connections. Disposable engines also close all of their connections.
func (e engineHandle) close(ctx context.Context) error {
	if e.dispose != nil {
		return e.dispose(ctx)
	}
	e.listener.Close()
	return nil
}

// Server is the composed GraphQL server. It is created by New and driven by Start and Shutdown.
type Server struct {
	config    Config
	logger    abstractlogger.Logger
	lifecycle *lifecycle
	metrics   *pkghttp.Metrics

	executor     graphql.Executor
	queryHandler *pkghttp.GraphQLHTTPRequestHandler
	broker       *pkghttp.UpgradeBroker
	router       chi.Router
	httpServer   *http.Server
	legacy       engineHandle
	transport    engineHandle

	listener  net.Listener
	serveDone chan struct{}
}

// New validates the configuration and wires all components. The upgrade broker is installed as the handler of
// the http server before anything can be served. Nothing is opened until Start is called.
func New(config Config) (*Server, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	metrics, err := pkghttp.NewMetrics(config.MetricsRegisterer)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:    config,
		logger:    config.Logger,
		lifecycle: newLifecycle(),
		metrics:   metrics,
		executor:  newExecutor(config),
	}

	legacyOptions := legacyServerOptions(config)
	legacyOptions.OnConnection, legacyOptions.OnDisconnect = s.connectionHooks(websocket.ProtocolGraphQLWS, legacyOptions.OnDisconnect)
	legacyListener := websocket.NewGraphQLWSServer(s.executor, legacyOptions)
	s.legacy = engineHandle{
		protocol: websocket.ProtocolGraphQLWS,
		listener: legacyListener,
	}

	transportOptions := transportServerOptions(config)
	transportOptions.OnConnection, transportOptions.OnDisconnect = s.connectionHooks(websocket.ProtocolGraphQLTransportWS, nil)
	transportListener := websocket.NewGraphQLTransportWSServer(s.executor, transportOptions)
	s.transport = engineHandle{
		protocol: websocket.ProtocolGraphQLTransportWS,
		listener: transportListener,
		dispose:  transportListener.Shutdown,
	}

	handlerOptions := pkghttp.HandlerOptions{
		Logger:         s.logger,
		ContextFunc:    config.HTTPContext,
		CSRFPrevention: *config.CSRFPrevention,
	}
	if config.Playground {
		handlerOptions.Playground = playground.New(playground.Config{
			GraphqlEndpointPath:             config.GraphQLPath,
			GraphQLSubscriptionEndpointPath: config.SubscriptionsPath,
		})
	}
	s.queryHandler = pkghttp.NewGraphqlHTTPHandlerFunc(s.executor, handlerOptions)

	s.router = config.Router
	if s.router == nil {
		s.router = chi.NewRouter()
		if external, ok := config.Source.(ExternalServer); ok && external.Server.Handler != nil {
			s.router.NotFound(external.Server.Handler.ServeHTTP)
		}
	}
	s.router.Handle(config.GraphQLPath, s.queryHandler)

	s.broker = pkghttp.NewUpgradeBroker(pkghttp.UpgradeBrokerOptions{
		Logger:            s.logger,
		SubscriptionsPath: config.SubscriptionsPath,
		Legacy:            legacyListener,
		Transport:         transportListener,
		Next:              s.router,
		UnmatchedUpgrades: config.UnmatchedUpgrades,
		Metrics:           metrics,
	})

	switch source := config.Source.(type) {
	case OwnedServer:
		s.httpServer = &http.Server{
			Addr:              config.listenAddr(),
			Handler:           s.broker,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
		}
	case ExternalServer:
		s.httpServer = source.Server
		s.httpServer.Handler = s.broker
	}

	return s, nil
}

func newExecutor(config Config) graphql.Executor {
	options := graphql.ExecutorOptions{
		QueryCacheSize: config.QueryCacheSize,
	}

	if config.Schema != nil {
		if config.TypeDefs != "" || config.Resolvers != nil {
			config.Logger.Warn("server.New: both Schema and TypeDefs are configured",
				abstractlogger.String("message", "TypeDefs and Resolvers are ignored"),
			)
		}
		return graphql.NewExecutableSchemaExecutor(config.Schema, options)
	}

	return graphql.NewTypeDefsExecutor(config.TypeDefs, config.Resolvers, options)
}

func (s *Server) connectionHooks(protocol websocket.Protocol, onDisconnect websocket.ConnectionFunc) (websocket.ConnectionFunc, websocket.ConnectionFunc) {
	opened := func(ctx context.Context, connectionID string) {
		s.metrics.ConnectionOpened(string(protocol))
	}
	closed := func(ctx context.Context, connectionID string) {
		s.metrics.ConnectionClosed(string(protocol))
		if onDisconnect != nil {
			onDisconnect(ctx, connectionID)
		}
	}
	return opened, closed
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return s.lifecycle.State()
}

// Addr returns the bound address. It is nil if the server doesn't listen (yet).
func (s *Server) Addr() net.Addr {
	if s.State() != StateListening || s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Handler returns the root handler of the server. It can be used to serve requests when the server doesn't listen itself.
func (s *Server) Handler() http.Handler {
	return s.broker
}

// Start starts the executor, runs the OnStart hooks of the plugins and binds the address if the server
// listens. Any error leaves the server in the Failed state with all components closed.
func (s *Server) Start(ctx context.Context) error {
	if !s.lifecycle.transition(StateUnstarted, StateStarting) {
		return ErrAlreadyStarted
	}

	if err := s.start(ctx); err != nil {
		s.logger.Error("server.Server.Start: on start",
			abstractlogger.Error(err),
		)
		s.discard()
		s.lifecycle.fail()
		return err
	}

	s.queryHandler.SetReady(true)
	s.lifecycle.listening()
	return nil
}

func (s *Server) start(ctx context.Context) error {
	if err := s.executor.Start(ctx); err != nil {
		return pkgerrors.Wrap(err, "could not start executor")
	}

	for i, plugin := range s.config.Plugins {
		if err := plugin.OnStart(ctx); err != nil {
			return pkgerrors.Wrapf(err, "plugin %d failed to start", i)
		}
	}

	if !*s.config.Listen {
		return nil
	}

	addr := s.config.listenAddr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return &BindError{Addr: addr, Err: err}
	}
	s.listener = listener
	s.serveDone = make(chan struct{})

	go s.serve(listener)

	port := listener.Addr().String()
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		port = strconv.Itoa(tcpAddr.Port)
	}
	s.logger.Info(fmt.Sprintf("GraphQLHTTPServer ready on port %s on path %s", port, s.config.GraphQLPath))
	s.logger.Info(fmt.Sprintf("GraphQLHTTPServer Subscriptions ready on port %s on path %s", port, s.config.SubscriptionsPath))
	return nil
}

func (s *Server) serve(listener net.Listener) {
	defer close(s.serveDone)

	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("server.Server.serve: on serve",
			abstractlogger.String("addr", listener.Addr().String()),
			abstractlogger.Error(err),
		)
	}
}

// discard closes all components of a server which never listened.
func (s *Server) discard() {
	s.broker.Close()
	s.queryHandler.SetReady(false)
	if s.listener != nil {
		_ = s.listener.Close()
	}
	_ = s.transport.close(context.Background())
	_ = s.legacy.close(context.Background())
}

// Shutdown drains the server: it stops accepting upgrades and connections, waits for in-flight queries,
// disposes the graphql-transport-ws engine, closes the graphql-ws listener and runs the OnDrain hooks of
// the plugins. A failing step doesn't stop the following ones, all failures are returned together.
// Calling Shutdown again, or on a server which never listened, does nothing.
func (s *Server) Shutdown(ctx context.Context) error {
	for {
		switch s.lifecycle.beginDrain() {
		case StateListening:
			return s.drain(ctx)
		case StateStarting:
			if err := s.lifecycle.waitStarted(ctx); err != nil {
				return err
			}
		case StateDraining:
			return s.lifecycle.waitDrained(ctx)
		case StateUnstarted:
			s.discard()
			return nil
		default:
			return nil
		}
	}
}

func (s *Server) drain(ctx context.Context) error {
	defer s.lifecycle.stop()

	var result *multierror.Error
	collect := func(step string, err error) {
		if err == nil {
			return
		}
		s.logger.Error("server.Server.drain: on drain step",
			abstractlogger.String("step", step),
			abstractlogger.Error(err),
		)
		s.metrics.ObserveDrainError(step)
		result = multierror.Append(result, &DrainError{Step: step, Err: err})
	}

	s.broker.Close()
	s.queryHandler.SetReady(false)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		collect(drainStepHTTP, err)
	} else if s.serveDone != nil {
		<-s.serveDone
	}

	collect(drainStepTransport, s.transport.close(ctx))
	collect(drainStepLegacy, s.legacy.close(ctx))

	for i, plugin := range s.config.Plugins {
		collect(fmt.Sprintf("plugin %d", i), plugin.OnDrain(ctx))
	}

	return result.ErrorOrNil()
}
