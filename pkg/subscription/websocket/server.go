package websocket

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/google/uuid"
	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/wundergraph/graphql-http-ws-server/pkg/graphql"
	"github.com/wundergraph/graphql-http-ws-server/pkg/subscription"
)

var ErrServerClosed = errors.New("websocket server is closed")

// ConnectionFunc is called with the id of a connection and the context of its upgrade request.
type ConnectionFunc func(ctx context.Context, connectionID string)

// ServerOptions configures a Server.
type ServerOptions struct {
	Logger                abstractlogger.Logger
	InitFunc              InitFunc
	KeepAliveInterval     time.Duration
	ReadErrorTimeOut      time.Duration
	ConnectionInitTimeOut time.Duration
	// OnConnection is called after the handshake of a connection was completed.
	OnConnection ConnectionFunc
	// OnDisconnect is called after a connection was closed and all of its operations returned.
	OnDisconnect ConnectionFunc

	// graphql-ws only
	OnOperation         OperationFunc
	OnOperationComplete OperationCompleteFunc
	RootValue           interface{}
}

// Server accepts websocket connections of a single subprotocol and serves them with a graphql.Executor.
// Every accepted connection runs in its own goroutine until the client or Shutdown closes it.
type Server struct {
	logger   abstractlogger.Logger
	protocol Protocol
	executor graphql.Executor
	options  ServerOptions
	upgrader ws.HTTPUpgrader

	accepting *atomic.Bool
	baseCtx   context.Context
	cancel    context.CancelFunc

	mu          sync.Mutex
	connections map[string]*Client
	wg          sync.WaitGroup

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewGraphQLWSServer creates a Server speaking the graphql-ws (subscriptions-transport-ws) protocol.
func NewGraphQLWSServer(executor graphql.Executor, options ServerOptions) *Server {
	return newServer(ProtocolGraphQLWS, executor, options)
}

// NewGraphQLTransportWSServer creates a Server speaking the graphql-transport-ws protocol.
// The graphql-ws specific options are ignored.
func NewGraphQLTransportWSServer(executor graphql.Executor, options ServerOptions) *Server {
	options.OnOperation = nil
	options.OnOperationComplete = nil
	options.RootValue = nil
	return newServer(ProtocolGraphQLTransportWS, executor, options)
}

func newServer(protocol Protocol, executor graphql.Executor, options ServerOptions) *Server {
	if options.Logger == nil {
		options.Logger = abstractlogger.Noop{}
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		logger:      options.Logger,
		protocol:    protocol,
		executor:    executor,
		options:     options,
		accepting:   atomic.NewBool(true),
		baseCtx:     baseCtx,
		cancel:      cancel,
		connections: make(map[string]*Client),
	}
	s.upgrader = ws.HTTPUpgrader{
		Protocol: func(requested string) bool {
			return requested == string(protocol)
		},
	}
	return s
}

// Protocol returns the subprotocol this server speaks.
func (s *Server) Protocol() Protocol {
	return s.protocol
}

// ActiveConnections returns the amount of currently open connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// HandleUpgrade completes the websocket handshake of r and starts serving the connection.
// It returns after the handshake, the connection itself is served in the background.
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request) error {
	if !s.accepting.Load() {
		return ErrServerClosed
	}

	conn, rw, _, err := s.upgrader.Upgrade(r, w)
	if err != nil {
		s.logger.Debug("websocket.Server.HandleUpgrade: on upgrade",
			abstractlogger.String("protocol", string(s.protocol)),
			abstractlogger.Error(err),
		)
		return err
	}

	if rw != nil && rw.Reader.Buffered() > 0 {
		conn = &bufferedConn{Conn: conn, reader: rw.Reader}
	}

	connectionID := uuid.NewString()
	client := NewClient(s.logger, conn)

	s.mu.Lock()
	if !s.accepting.Load() {
		s.mu.Unlock()
		_ = client.DisconnectWithReason(CompiledCloseReasonGoingAway)
		return ErrServerClosed
	}
	s.connections[connectionID] = client
	s.wg.Add(1)
	s.mu.Unlock()

	// the request context is cancelled when ServeHTTP returns
	ctx := subscription.NewInitialHttpRequestContext(r.WithContext(s.baseCtx))

	s.logger.Debug("websocket.Server.HandleUpgrade: connection established",
		abstractlogger.String("protocol", string(s.protocol)),
		abstractlogger.String("connection_id", connectionID),
	)
	if s.options.OnConnection != nil {
		s.options.OnConnection(ctx, connectionID)
	}

	go s.serve(ctx, connectionID, conn, client)
	return nil
}

func (s *Server) serve(ctx context.Context, connectionID string, conn net.Conn, client *Client) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.connections, connectionID)
		s.mu.Unlock()

		if s.options.OnDisconnect != nil {
			s.options.OnDisconnect(ctx, connectionID)
		}
	}()

	err := HandleWithOptions(ctx, conn, s.executor, HandleOptions{
		Logger:                    s.logger,
		Protocol:                  s.protocol,
		WebSocketInitFunc:         s.options.InitFunc,
		CustomClient:              client,
		CustomKeepAliveInterval:   s.options.KeepAliveInterval,
		CustomReadErrorTimeOut:    s.options.ReadErrorTimeOut,
		CustomInitTimeOutDuration: s.options.ConnectionInitTimeOut,
		OnOperation:               s.options.OnOperation,
		OnOperationComplete:       s.options.OnOperationComplete,
		RootValue:                 s.options.RootValue,
	})
	if err != nil {
		s.logger.Error("websocket.Server.serve: on handle connection",
			abstractlogger.String("protocol", string(s.protocol)),
			abstractlogger.String("connection_id", connectionID),
			abstractlogger.Error(err),
		)
	}
}

// Close stops accepting new connections. Open connections are left untouched.
func (s *Server) Close() {
	s.accepting.Store(false)
}

// Shutdown stops accepting new connections, cancels every running operation and closes all open connections
// with 1001 (going away). It blocks until all connections and their operations have returned or ctx is done.
// Only the first call does the work, later calls return its result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Server) shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.accepting.Store(false)
	clients := make([]*Client, 0, len(s.connections))
	for _, client := range s.connections {
		clients = append(clients, client)
	}
	s.mu.Unlock()

	s.cancel()

	var group errgroup.Group
	for _, client := range clients {
		client := client
		group.Go(func() error {
			err := client.DisconnectWithReason(CompiledCloseReasonGoingAway)
			if isClosedConnError(err) {
				return nil
			}
			return err
		})
	}
	disconnectErr := group.Wait()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return disconnectErr
}

// bufferedConn replays bytes the handshake already read from the socket.
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (b *bufferedConn) Read(p []byte) (int, error) {
	return b.reader.Read(p)
}

func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, subscription.ErrTransportClientClosedConnection)
}
