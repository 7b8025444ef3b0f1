package subscription

//go:generate mockgen -destination=protocol_mock_test.go -package=subscription . Protocol

import (
	"context"
	"errors"
	"time"

	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-http-ws-server/pkg/graphql"
)

const (
	DefaultKeepAliveInterval = "15s"
	DefaultReadErrorTimeOut  = "5s"
)

var ErrCouldNotReadMessageFromClient = errors.New("could not read message from client")

// Protocol defines an interface for a subscription protocol decoupled from the underlying transport.
type Protocol interface {
	Handle(ctx context.Context, engine Engine, message []byte) error
	EventHandler() EventHandler
}

// UniversalProtocolHandlerOptions is struct that defines options for the UniversalProtocolHandler.
type UniversalProtocolHandlerOptions struct {
	Logger                 abstractlogger.Logger
	CustomReadErrorTimeOut time.Duration
	CustomEngine           Engine
}

// UniversalProtocolHandler can handle any protocol by using the Protocol interface.
type UniversalProtocolHandler struct {
	logger                    abstractlogger.Logger
	client                    TransportClient
	protocol                  Protocol
	engine                    Engine
	readErrorTimeOut          time.Duration
	isReadTimeOutTimerRunning bool
	readTimeOutCancel         context.CancelFunc
}

// NewUniversalProtocolHandler creates a new UniversalProtocolHandler.
func NewUniversalProtocolHandler(client TransportClient, protocol Protocol, executor graphql.Executor) (*UniversalProtocolHandler, error) {
	options := UniversalProtocolHandlerOptions{
		Logger: abstractlogger.Noop{},
	}

	return NewUniversalProtocolHandlerWithOptions(client, protocol, executor, options)
}

// NewUniversalProtocolHandlerWithOptions creates a new UniversalProtocolHandler. It requires an option struct.
func NewUniversalProtocolHandlerWithOptions(client TransportClient, protocol Protocol, executor graphql.Executor, options UniversalProtocolHandlerOptions) (*UniversalProtocolHandler, error) {
	handler := UniversalProtocolHandler{
		logger:   abstractlogger.Noop{},
		client:   client,
		protocol: protocol,
	}

	if options.Logger != nil {
		handler.logger = options.Logger
	}

	if options.CustomReadErrorTimeOut != 0 {
		handler.readErrorTimeOut = options.CustomReadErrorTimeOut
	} else {
		var err error
		handler.readErrorTimeOut, err = time.ParseDuration(DefaultReadErrorTimeOut)
		if err != nil {
			return nil, err
		}
	}

	if options.CustomEngine != nil {
		handler.engine = options.CustomEngine
	} else {
		if executor == nil {
			return nil, graphql.ErrExecutorNotStarted
		}
		handler.engine = NewExecutorEngine(handler.logger, executor)
	}

	return &handler, nil
}

// Handle will handle the subscription connection. It blocks until the client disconnects or ctx is done.
// All operations of the connection are cancelled and awaited before Handle returns.
func (u *UniversalProtocolHandler) Handle(ctx context.Context) {
	defer func() {
		if u.readTimeOutCancel != nil {
			u.readTimeOutCancel()
		}

		err := u.engine.TerminateAllSubscriptions(u.protocol.EventHandler())
		if err != nil {
			u.logger.Error("subscription.UniversalProtocolHandler.Handle: on terminate connections",
				abstractlogger.Error(err),
			)
		}

		if waiter, ok := u.engine.(interface{ Wait() }); ok {
			waiter.Wait()
		}
	}()

	u.protocol.EventHandler().Emit(EventTypeOnConnectionOpened, "", nil, nil)

	for {
		if !u.client.IsConnected() {
			u.logger.Debug("subscription.UniversalProtocolHandler.Handle: on client is connected check",
				abstractlogger.String("message", "client has disconnected"),
			)

			return
		}

		message, err := u.client.ReadBytesFromClient()
		if errors.Is(err, ErrTransportClientClosedConnection) {
			u.logger.Debug("subscription.UniversalProtocolHandler.Handle: reading from a closed connection")
			return
		} else if err != nil {
			u.logger.Error("subscription.UniversalProtocolHandler.Handle: on reading bytes from client",
				abstractlogger.Error(err),
				abstractlogger.ByteString("message", message),
			)

			if !u.isReadTimeOutTimerRunning {
				var timeOutCtx context.Context
				timeOutCtx, u.readTimeOutCancel = context.WithCancel(context.Background())
				params := TimeOutParams{
					Name:            "subscription reader error time out",
					Logger:          u.logger,
					TimeOutContext:  timeOutCtx,
					TimeOutAction:   u.closeConnection,
					TimeOutDuration: u.readErrorTimeOut,
				}
				go TimeOutChecker(params)
				u.isReadTimeOutTimerRunning = true
			}

			u.protocol.EventHandler().Emit(EventTypeOnConnectionError, "", nil, ErrCouldNotReadMessageFromClient)
		} else {
			if u.isReadTimeOutTimerRunning && u.readTimeOutCancel != nil {
				u.readTimeOutCancel()
				u.isReadTimeOutTimerRunning = false
				u.readTimeOutCancel = nil
			}

			if len(message) > 0 {
				err := u.protocol.Handle(ctx, u.engine, message)
				if err != nil {
					u.logger.Error("subscription.UniversalProtocolHandler.Handle: on protocol handling",
						abstractlogger.Error(err),
					)
				}
			}
		}

		select {
		case <-ctx.Done():
			return
		default:
			continue
		}
	}
}

func (u *UniversalProtocolHandler) closeConnection() {
	if err := u.client.Disconnect(); err != nil {
		u.logger.Error("subscription.UniversalProtocolHandler.closeConnection: on disconnect",
			abstractlogger.Error(err),
		)
	}
}
