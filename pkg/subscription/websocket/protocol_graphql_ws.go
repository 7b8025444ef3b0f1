package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-http-ws-server/pkg/graphql"
	"github.com/wundergraph/graphql-http-ws-server/pkg/subscription"
)

// GraphQLWSMessageType is the type of a message of the legacy graphql-ws protocol (subscriptions-transport-ws).
type GraphQLWSMessageType string

const (
	GraphQLWSMessageTypeConnectionInit      GraphQLWSMessageType = "connection_init"
	GraphQLWSMessageTypeConnectionAck       GraphQLWSMessageType = "connection_ack"
	GraphQLWSMessageTypeConnectionError     GraphQLWSMessageType = "connection_error"
	GraphQLWSMessageTypeConnectionTerminate GraphQLWSMessageType = "connection_terminate"
	GraphQLWSMessageTypeConnectionKeepAlive GraphQLWSMessageType = "ka"
	GraphQLWSMessageTypeStart               GraphQLWSMessageType = "start"
	GraphQLWSMessageTypeStop                GraphQLWSMessageType = "stop"
	GraphQLWSMessageTypeData                GraphQLWSMessageType = "data"
	GraphQLWSMessageTypeError               GraphQLWSMessageType = "error"
	GraphQLWSMessageTypeComplete            GraphQLWSMessageType = "complete"
)

var (
	ErrGraphQLWSUnexpectedMessageType = errors.New("unexpected message type")

	errGraphQLWSJSONSyntax        = errors.New("json syntax error")
	errGraphQLWSConnectionRefused = errors.New("failed to accept the websocket connection")
)

// OperationFunc is called for every 'start' message before the operation is executed.
// The returned request replaces the one sent by the client. Returning an error rejects the operation.
type OperationFunc func(ctx context.Context, id string, request *graphql.Request) (*graphql.Request, error)

// OperationCompleteFunc is called after an operation was completed, either by the server or by a 'stop' from the client.
type OperationCompleteFunc func(ctx context.Context, id string)

type GraphQLWSMessage struct {
	Id      string               `json:"id,omitempty"`
	Type    GraphQLWSMessageType `json:"type"`
	Payload json.RawMessage      `json:"payload,omitempty"`
}

type GraphQLWSMessageReader struct {
	logger abstractlogger.Logger
}

func (g *GraphQLWSMessageReader) Read(data []byte) (*GraphQLWSMessage, error) {
	message := &GraphQLWSMessage{}
	if err := json.Unmarshal(data, message); err != nil {
		g.logger.Debug("websocket.GraphQLWSMessageReader.Read: on json unmarshal",
			abstractlogger.Error(err),
			abstractlogger.ByteString("data", data),
		)
		return nil, err
	}
	return message, nil
}

// GraphQLWSMessageWriter serializes graphql-ws messages to a transport client. Writes are serialized by mu.
type GraphQLWSMessageWriter struct {
	logger abstractlogger.Logger
	mu     *sync.Mutex
	Client subscription.TransportClient
}

func (g *GraphQLWSMessageWriter) WriteData(id string, responseData []byte) error {
	return g.send(id, GraphQLWSMessageTypeData, json.RawMessage(responseData))
}

func (g *GraphQLWSMessageWriter) WriteComplete(id string) error {
	return g.send(id, GraphQLWSMessageTypeComplete, nil)
}

func (g *GraphQLWSMessageWriter) WriteKeepAlive() error {
	return g.send("", GraphQLWSMessageTypeConnectionKeepAlive, nil)
}

func (g *GraphQLWSMessageWriter) WriteTerminate(reason string) error {
	return g.send("", GraphQLWSMessageTypeConnectionTerminate, reason)
}

func (g *GraphQLWSMessageWriter) WriteConnectionError(reason string) error {
	return g.send("", GraphQLWSMessageTypeConnectionError, reason)
}

func (g *GraphQLWSMessageWriter) WriteError(id string, errors graphql.RequestErrors) error {
	return g.send(id, GraphQLWSMessageTypeError, errors)
}

func (g *GraphQLWSMessageWriter) WriteAck() error {
	return g.send("", GraphQLWSMessageTypeConnectionAck, nil)
}

// send encodes payload unless it is nil or already raw JSON.
func (g *GraphQLWSMessageWriter) send(id string, messageType GraphQLWSMessageType, payload interface{}) error {
	message := GraphQLWSMessage{Id: id, Type: messageType}

	switch payload := payload.(type) {
	case nil:
	case json.RawMessage:
		message.Payload = payload
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		message.Payload = encoded
	}

	data, err := json.Marshal(message)
	if err != nil {
		g.logger.Error("websocket.GraphQLWSMessageWriter.send: on json marshal",
			abstractlogger.Error(err),
			abstractlogger.String("id", id),
			abstractlogger.String("type", string(messageType)),
		)
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Client.WriteBytesToClient(data)
}

// GraphQLWSWriteEventHandler turns engine events into graphql-ws messages.
type GraphQLWSWriteEventHandler struct {
	logger abstractlogger.Logger
	Writer GraphQLWSMessageWriter
	// onOperationComplete is invoked after the 'complete' message of an operation was written.
	onOperationComplete func(id string)
}

func (g *GraphQLWSWriteEventHandler) Emit(eventType subscription.EventType, id string, data []byte, err error) {
	switch eventType {
	case subscription.EventTypeOnSubscriptionData:
		g.check(GraphQLWSMessageTypeData, id, g.Writer.WriteData(id, data))
	case subscription.EventTypeOnNonSubscriptionExecutionResult:
		g.check(GraphQLWSMessageTypeData, id, g.Writer.WriteData(id, data))
		g.complete(id)
	case subscription.EventTypeOnSubscriptionCompleted:
		g.complete(id)
	case subscription.EventTypeOnError, subscription.EventTypeOnDuplicatedSubscriberID:
		g.check(GraphQLWSMessageTypeError, id, g.Writer.WriteError(id, graphql.RequestErrorsFromError(err)))
	case subscription.EventTypeOnConnectionError:
		g.check(GraphQLWSMessageTypeConnectionError, id, g.Writer.WriteConnectionError(err.Error()))
	}
}

func (g *GraphQLWSWriteEventHandler) complete(id string) {
	g.check(GraphQLWSMessageTypeComplete, id, g.Writer.WriteComplete(id))
	if g.onOperationComplete != nil {
		g.onOperationComplete(id)
	}
}

// check logs failed writes. Writes to a closed connection are expected and ignored.
func (g *GraphQLWSWriteEventHandler) check(messageType GraphQLWSMessageType, id string, err error) {
	if err == nil || errors.Is(err, subscription.ErrTransportClientClosedConnection) {
		return
	}
	g.logger.Error("websocket.GraphQLWSWriteEventHandler: on write",
		abstractlogger.Error(err),
		abstractlogger.String("id", id),
		abstractlogger.String("type", string(messageType)),
	)
}

type ProtocolGraphQLWSHandlerOptions struct {
	Logger            abstractlogger.Logger
	WebSocketInitFunc InitFunc
	// CustomKeepAliveInterval overrides DefaultKeepAliveInterval. A negative value disables 'ka' messages.
	CustomKeepAliveInterval time.Duration
	OnOperation             OperationFunc
	OnOperationComplete     OperationCompleteFunc
	// RootValue is attached to the context of every operation, see graphql.RootValueFromContext.
	RootValue interface{}
}

// ProtocolGraphQLWSHandler speaks the legacy graphql-ws protocol on a single connection.
type ProtocolGraphQLWSHandler struct {
	logger              abstractlogger.Logger
	reader              GraphQLWSMessageReader
	writeEventHandler   GraphQLWSWriteEventHandler
	keepAliveInterval   time.Duration
	initFunc            InitFunc
	onOperation         OperationFunc
	onOperationComplete OperationCompleteFunc
	rootValue           interface{}

	mu            sync.RWMutex
	connectionCtx context.Context
	keepAliveOnce sync.Once
}

func NewProtocolGraphQLWSHandler(client subscription.TransportClient) (*ProtocolGraphQLWSHandler, error) {
	return NewProtocolGraphQLWSHandlerWithOptions(client, ProtocolGraphQLWSHandlerOptions{})
}

func NewProtocolGraphQLWSHandlerWithOptions(client subscription.TransportClient, opts ProtocolGraphQLWSHandlerOptions) (*ProtocolGraphQLWSHandler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = abstractlogger.Noop{}
	}

	keepAliveInterval := opts.CustomKeepAliveInterval
	if keepAliveInterval == 0 {
		var err error
		if keepAliveInterval, err = time.ParseDuration(subscription.DefaultKeepAliveInterval); err != nil {
			return nil, err
		}
	}

	p := &ProtocolGraphQLWSHandler{
		logger: logger,
		reader: GraphQLWSMessageReader{logger: logger},
		writeEventHandler: GraphQLWSWriteEventHandler{
			logger: logger,
			Writer: GraphQLWSMessageWriter{
				logger: logger,
				mu:     &sync.Mutex{},
				Client: client,
			},
		},
		keepAliveInterval:   keepAliveInterval,
		initFunc:            opts.WebSocketInitFunc,
		onOperation:         opts.OnOperation,
		onOperationComplete: opts.OnOperationComplete,
		rootValue:           opts.RootValue,
	}

	if p.onOperationComplete != nil {
		p.writeEventHandler.onOperationComplete = func(id string) {
			p.onOperationComplete(p.operationContext(context.Background()), id)
		}
	}

	return p, nil
}

// Handle processes one message of the client.
func (p *ProtocolGraphQLWSHandler) Handle(ctx context.Context, engine subscription.Engine, data []byte) error {
	message, err := p.reader.Read(data)
	if err != nil {
		var syntaxErr *json.SyntaxError
		if !errors.As(err, &syntaxErr) {
			return err
		}
		p.writeEventHandler.Emit(subscription.EventTypeOnError, "", nil, errGraphQLWSJSONSyntax)
		return nil
	}

	switch message.Type {
	case GraphQLWSMessageTypeConnectionInit:
		return p.onConnectionInit(ctx, engine, message.Payload)
	case GraphQLWSMessageTypeStart:
		return p.onStart(ctx, engine, message)
	case GraphQLWSMessageTypeStop:
		return engine.StopSubscription(message.Id, &p.writeEventHandler)
	case GraphQLWSMessageTypeConnectionTerminate:
		return p.terminate(engine)
	default:
		p.writeEventHandler.Emit(subscription.EventTypeOnConnectionError, message.Id, nil,
			fmt.Errorf("%w: %s", ErrGraphQLWSUnexpectedMessageType, message.Type))
		return nil
	}
}

func (p *ProtocolGraphQLWSHandler) EventHandler() subscription.EventHandler {
	return &p.writeEventHandler
}

func (p *ProtocolGraphQLWSHandler) onConnectionInit(ctx context.Context, engine subscription.Engine, payload []byte) error {
	connectionCtx := ctx
	if p.initFunc != nil {
		initCtx, err := p.initFunc(ctx, payload)
		if err != nil {
			p.logger.Debug("websocket.ProtocolGraphQLWSHandler.onConnectionInit: connection rejected",
				abstractlogger.Error(err),
			)
			p.writeEventHandler.Emit(subscription.EventTypeOnConnectionError, "", nil, errGraphQLWSConnectionRefused)
			return p.terminate(engine)
		}
		if initCtx != nil {
			connectionCtx = initCtx
		}
	}

	p.mu.Lock()
	p.connectionCtx = connectionCtx
	p.mu.Unlock()

	p.writeEventHandler.check(GraphQLWSMessageTypeConnectionAck, "", p.writeEventHandler.Writer.WriteAck())
	p.keepAlive(connectionCtx)
	return nil
}

func (p *ProtocolGraphQLWSHandler) onStart(ctx context.Context, engine subscription.Engine, message *GraphQLWSMessage) error {
	operationCtx := p.operationContext(ctx)

	payload := []byte(message.Payload)
	if p.onOperation != nil {
		var err error
		if payload, err = p.applyOperationFunc(operationCtx, message.Id, payload); err != nil {
			p.writeEventHandler.Emit(subscription.EventTypeOnError, message.Id, nil, err)
			return nil
		}
	}

	return engine.StartOperation(operationCtx, message.Id, payload, &p.writeEventHandler)
}

func (p *ProtocolGraphQLWSHandler) applyOperationFunc(ctx context.Context, id string, payload []byte) ([]byte, error) {
	request := &graphql.Request{}
	if err := json.Unmarshal(payload, request); err != nil {
		return nil, graphql.RequestErrorsFromError(err)
	}

	modified, err := p.onOperation(ctx, id, request)
	if err != nil {
		return nil, err
	}
	if modified == nil {
		modified = request
	}
	return json.Marshal(modified)
}

func (p *ProtocolGraphQLWSHandler) terminate(engine subscription.Engine) error {
	if err := engine.TerminateAllSubscriptions(&p.writeEventHandler); err != nil {
		return err
	}
	return p.writeEventHandler.Writer.Client.Disconnect()
}

// operationContext is the context established by connection_init, ctx if there was none yet.
func (p *ProtocolGraphQLWSHandler) operationContext(ctx context.Context) context.Context {
	p.mu.RLock()
	if p.connectionCtx != nil {
		ctx = p.connectionCtx
	}
	p.mu.RUnlock()

	if p.rootValue != nil {
		ctx = graphql.WithRootValue(ctx, p.rootValue)
	}
	return ctx
}

// keepAlive sends 'ka' right away and then every keepAliveInterval until ctx is done.
// Repeated connection_init messages don't start another ticker.
func (p *ProtocolGraphQLWSHandler) keepAlive(ctx context.Context) {
	if p.keepAliveInterval < 0 {
		return
	}

	p.keepAliveOnce.Do(func() {
		writer := &p.writeEventHandler.Writer
		p.writeEventHandler.check(GraphQLWSMessageTypeConnectionKeepAlive, "", writer.WriteKeepAlive())

		go func() {
			ticker := time.NewTicker(p.keepAliveInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.writeEventHandler.check(GraphQLWSMessageTypeConnectionKeepAlive, "", writer.WriteKeepAlive())
				}
			}
		}()
	})
}

var (
	_ subscription.EventHandler = (*GraphQLWSWriteEventHandler)(nil)
	_ subscription.Protocol     = (*ProtocolGraphQLWSHandler)(nil)
)
