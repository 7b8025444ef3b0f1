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

// GraphQLTransportWSMessageType is the 'type' of a graphql-transport-ws message.
type GraphQLTransportWSMessageType string

const (
	GraphQLTransportWSMessageTypeConnectionInit GraphQLTransportWSMessageType = "connection_init"
	GraphQLTransportWSMessageTypeConnectionAck  GraphQLTransportWSMessageType = "connection_ack"
	GraphQLTransportWSMessageTypePing           GraphQLTransportWSMessageType = "ping"
	GraphQLTransportWSMessageTypePong           GraphQLTransportWSMessageType = "pong"
	GraphQLTransportWSMessageTypeSubscribe      GraphQLTransportWSMessageType = "subscribe"
	GraphQLTransportWSMessageTypeNext           GraphQLTransportWSMessageType = "next"
	GraphQLTransportWSMessageTypeError          GraphQLTransportWSMessageType = "error"
	GraphQLTransportWSMessageTypeComplete       GraphQLTransportWSMessageType = "complete"
)

// GraphQLTransportWSHeartbeatPayload is the payload of unsolicited pongs sent as keep-alive.
const GraphQLTransportWSHeartbeatPayload = `{"type":"heartbeat"}`

// Close codes of the graphql-transport-ws protocol.
const (
	CloseCodeBadRequest                    uint16 = 4400
	CloseCodeUnauthorized                  uint16 = 4401
	CloseCodeForbidden                     uint16 = 4403
	CloseCodeConnectionInitTimeout         uint16 = 4408
	CloseCodeSubscriberAlreadyExists       uint16 = 4409
	CloseCodeTooManyInitialisationRequests uint16 = 4429
)

const invalidMessageReason = "Invalid message received"

type GraphQLTransportWSMessage struct {
	Id      string                        `json:"id,omitempty"`
	Type    GraphQLTransportWSMessageType `json:"type"`
	Payload json.RawMessage               `json:"payload,omitempty"`
}

// GraphQLTransportWSMessageSubscribePayload is the payload of a 'subscribe' message.
type GraphQLTransportWSMessageSubscribePayload struct {
	OperationName string          `json:"operationName,omitempty"`
	Query         string          `json:"query"`
	Variables     json.RawMessage `json:"variables,omitempty"`
	Extensions    json.RawMessage `json:"extensions,omitempty"`
}

type GraphQLTransportWSMessageReader struct {
	logger abstractlogger.Logger
}

func (g *GraphQLTransportWSMessageReader) Read(data []byte) (*GraphQLTransportWSMessage, error) {
	message := &GraphQLTransportWSMessage{}
	if err := json.Unmarshal(data, message); err != nil {
		g.logger.Debug("websocket.GraphQLTransportWSMessageReader.Read: on json unmarshal",
			abstractlogger.Error(err),
			abstractlogger.ByteString("data", data),
		)
		return nil, err
	}
	return message, nil
}

func (g *GraphQLTransportWSMessageReader) DeserializeSubscribePayload(message *GraphQLTransportWSMessage) (*GraphQLTransportWSMessageSubscribePayload, error) {
	payload := &GraphQLTransportWSMessageSubscribePayload{}
	if err := json.Unmarshal(message.Payload, payload); err != nil {
		g.logger.Debug("websocket.GraphQLTransportWSMessageReader.DeserializeSubscribePayload: on json unmarshal",
			abstractlogger.Error(err),
			abstractlogger.ByteString("payload", message.Payload),
		)
		return nil, err
	}
	return payload, nil
}

// GraphQLTransportWSMessageWriter serializes graphql-transport-ws messages to a transport client. Writes are serialized by mu.
type GraphQLTransportWSMessageWriter struct {
	logger abstractlogger.Logger
	mu     *sync.Mutex
	Client subscription.TransportClient
}

func (g *GraphQLTransportWSMessageWriter) WriteConnectionAck() error {
	return g.send("", GraphQLTransportWSMessageTypeConnectionAck, nil)
}

// WritePing and WritePong take an optional raw JSON payload.
func (g *GraphQLTransportWSMessageWriter) WritePing(payload []byte) error {
	return g.send("", GraphQLTransportWSMessageTypePing, payload)
}

func (g *GraphQLTransportWSMessageWriter) WritePong(payload []byte) error {
	return g.send("", GraphQLTransportWSMessageTypePong, payload)
}

func (g *GraphQLTransportWSMessageWriter) WriteNext(id string, executionResult []byte) error {
	return g.send(id, GraphQLTransportWSMessageTypeNext, executionResult)
}

func (g *GraphQLTransportWSMessageWriter) WriteError(id string, graphqlErrors graphql.RequestErrors) error {
	payload, err := json.Marshal(graphqlErrors)
	if err != nil {
		return err
	}
	return g.send(id, GraphQLTransportWSMessageTypeError, payload)
}

func (g *GraphQLTransportWSMessageWriter) WriteComplete(id string) error {
	return g.send(id, GraphQLTransportWSMessageTypeComplete, nil)
}

func (g *GraphQLTransportWSMessageWriter) send(id string, messageType GraphQLTransportWSMessageType, payload []byte) error {
	data, err := json.Marshal(GraphQLTransportWSMessage{Id: id, Type: messageType, Payload: payload})
	if err != nil {
		g.logger.Error("websocket.GraphQLTransportWSMessageWriter.send: on json marshal",
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

// GraphQLTransportWSEventHandler turns engine events into graphql-transport-ws messages.
type GraphQLTransportWSEventHandler struct {
	logger             abstractlogger.Logger
	Writer             GraphQLTransportWSMessageWriter
	OnConnectionOpened func()
}

func (g *GraphQLTransportWSEventHandler) Emit(eventType subscription.EventType, id string, data []byte, err error) {
	switch eventType {
	case subscription.EventTypeOnConnectionOpened:
		if g.OnConnectionOpened != nil {
			g.OnConnectionOpened()
		}
	case subscription.EventTypeOnSubscriptionData:
		g.check(GraphQLTransportWSMessageTypeNext, id, g.Writer.WriteNext(id, data))
	case subscription.EventTypeOnNonSubscriptionExecutionResult:
		g.check(GraphQLTransportWSMessageTypeNext, id, g.Writer.WriteNext(id, data))
		g.check(GraphQLTransportWSMessageTypeComplete, id, g.Writer.WriteComplete(id))
	case subscription.EventTypeOnSubscriptionCompleted:
		g.check(GraphQLTransportWSMessageTypeComplete, id, g.Writer.WriteComplete(id))
	case subscription.EventTypeOnError:
		g.check(GraphQLTransportWSMessageTypeError, id, g.Writer.WriteError(id, graphql.RequestErrorsFromError(err)))
	case subscription.EventTypeOnDuplicatedSubscriberID:
		g.disconnect(CloseCodeSubscriberAlreadyExists, fmt.Sprintf("Subscriber for %s already exists", id))
	}
}

// disconnect closes the connection with a graphql-transport-ws close code.
func (g *GraphQLTransportWSEventHandler) disconnect(code uint16, reason string) {
	if err := g.Writer.Client.DisconnectWithReason(NewCloseReason(code, reason)); err != nil {
		g.logger.Error("websocket.GraphQLTransportWSEventHandler.disconnect: on disconnect with reason",
			abstractlogger.Error(err),
			abstractlogger.Int("code", int(code)),
			abstractlogger.String("reason", reason),
		)
	}
}

// check logs failed writes. Writes to a closed connection are expected and ignored.
func (g *GraphQLTransportWSEventHandler) check(messageType GraphQLTransportWSMessageType, id string, err error) {
	if err == nil || errors.Is(err, subscription.ErrTransportClientClosedConnection) {
		return
	}
	g.logger.Error("websocket.GraphQLTransportWSEventHandler: on write",
		abstractlogger.Error(err),
		abstractlogger.String("id", id),
		abstractlogger.String("type", string(messageType)),
	)
}

type ProtocolGraphQLTransportWSHandlerOptions struct {
	Logger            abstractlogger.Logger
	WebSocketInitFunc InitFunc
	// CustomKeepAliveInterval overrides the heartbeat interval. A negative value disables heartbeats.
	CustomKeepAliveInterval   time.Duration
	CustomInitTimeOutDuration time.Duration
}

// ProtocolGraphQLTransportWSHandler implements subscription.Protocol for graphql-transport-ws.
// Handle is called from a single goroutine, only the timers and the heartbeat run concurrently.
type ProtocolGraphQLTransportWSHandler struct {
	logger       abstractlogger.Logger
	reader       GraphQLTransportWSMessageReader
	eventHandler GraphQLTransportWSEventHandler
	initFunc     InitFunc

	// connectionCtx is set by an accepted connection_init and carries the result of initFunc to all operations.
	connectionCtx         context.Context
	connectionInitialized bool

	heartbeatInterval time.Duration
	heartbeatStarted  bool

	connectionInitTimerStarted    bool
	connectionInitTimeOutCancel   context.CancelFunc
	connectionInitTimeOutDuration time.Duration
}

func NewProtocolGraphQLTransportWSHandler(client subscription.TransportClient) (*ProtocolGraphQLTransportWSHandler, error) {
	return NewProtocolGraphQLTransportWSHandlerWithOptions(client, ProtocolGraphQLTransportWSHandlerOptions{})
}

func NewProtocolGraphQLTransportWSHandlerWithOptions(client subscription.TransportClient, opts ProtocolGraphQLTransportWSHandlerOptions) (*ProtocolGraphQLTransportWSHandler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = abstractlogger.Noop{}
	}

	heartbeatInterval := opts.CustomKeepAliveInterval
	if heartbeatInterval == 0 {
		var err error
		if heartbeatInterval, err = time.ParseDuration(subscription.DefaultKeepAliveInterval); err != nil {
			return nil, err
		}
	}

	initTimeOut := opts.CustomInitTimeOutDuration
	if initTimeOut == 0 {
		var err error
		if initTimeOut, err = time.ParseDuration(DefaultConnectionInitTimeOut); err != nil {
			return nil, err
		}
	}

	p := &ProtocolGraphQLTransportWSHandler{
		logger: logger,
		reader: GraphQLTransportWSMessageReader{logger: logger},
		eventHandler: GraphQLTransportWSEventHandler{
			logger: logger,
			Writer: GraphQLTransportWSMessageWriter{
				logger: logger,
				mu:     &sync.Mutex{},
				Client: client,
			},
		},
		initFunc:                      opts.WebSocketInitFunc,
		heartbeatInterval:             heartbeatInterval,
		connectionInitTimeOutDuration: initTimeOut,
	}
	p.eventHandler.OnConnectionOpened = p.startConnectionInitTimer

	return p, nil
}

func (p *ProtocolGraphQLTransportWSHandler) Handle(ctx context.Context, engine subscription.Engine, data []byte) error {
	if !p.connectionInitialized {
		p.startConnectionInitTimer()
	}

	message, err := p.reader.Read(data)
	if err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			p.close(CloseCodeBadRequest, "JSON syntax error")
		} else {
			p.close(CloseCodeBadRequest, invalidMessageReason)
		}
		return nil
	}

	switch message.Type {
	case GraphQLTransportWSMessageTypeConnectionInit:
		p.onConnectionInit(ctx, message.Payload)
	case GraphQLTransportWSMessageTypePing:
		// pong echoes the payload of ping
		p.eventHandler.check(GraphQLTransportWSMessageTypePong, "", p.eventHandler.Writer.WritePong(message.Payload))
	case GraphQLTransportWSMessageTypePong:
	case GraphQLTransportWSMessageTypeSubscribe:
		return p.onSubscribe(engine, message)
	case GraphQLTransportWSMessageTypeComplete:
		return engine.StopSubscription(message.Id, &p.eventHandler)
	default:
		p.close(CloseCodeBadRequest, fmt.Sprintf("Invalid type '%s'", message.Type))
	}
	return nil
}

func (p *ProtocolGraphQLTransportWSHandler) EventHandler() subscription.EventHandler {
	return &p.eventHandler
}

// Close releases the connection init timer. It must be called from the goroutine calling Handle.
func (p *ProtocolGraphQLTransportWSHandler) Close() {
	p.stopConnectionInitTimer()
}

func (p *ProtocolGraphQLTransportWSHandler) onConnectionInit(ctx context.Context, payload []byte) {
	if p.connectionInitialized {
		p.close(CloseCodeTooManyInitialisationRequests, "Too many initialisation requests")
		return
	}
	p.connectionInitialized = true
	p.stopConnectionInitTimer()

	connectionCtx := ctx
	if p.initFunc != nil {
		initCtx, err := p.initFunc(ctx, InitPayload(payload))
		if err != nil {
			p.logger.Debug("websocket.ProtocolGraphQLTransportWSHandler.onConnectionInit: connection rejected",
				abstractlogger.Error(err),
			)
			p.close(CloseCodeForbidden, "Forbidden")
			return
		}
		if initCtx != nil {
			connectionCtx = initCtx
		}
	}

	p.connectionCtx = connectionCtx
	p.eventHandler.check(GraphQLTransportWSMessageTypeConnectionAck, "", p.eventHandler.Writer.WriteConnectionAck())
	p.startHeartbeat(connectionCtx)
}

func (p *ProtocolGraphQLTransportWSHandler) onSubscribe(engine subscription.Engine, message *GraphQLTransportWSMessage) error {
	if p.connectionCtx == nil {
		p.close(CloseCodeUnauthorized, "Unauthorized")
		return nil
	}
	if message.Id == "" {
		p.close(CloseCodeBadRequest, invalidMessageReason)
		return nil
	}

	payload, err := p.reader.DeserializeSubscribePayload(message)
	if err != nil {
		p.close(CloseCodeBadRequest, invalidMessageReason)
		return nil
	}

	request, err := json.Marshal(graphql.Request{
		OperationName: payload.OperationName,
		Query:         payload.Query,
		Variables:     payload.Variables,
		Extensions:    payload.Extensions,
	})
	if err != nil {
		return err
	}

	return engine.StartOperation(p.connectionCtx, message.Id, request, &p.eventHandler)
}

// startConnectionInitTimer closes the connection with 4408 unless connection_init arrives in time.
func (p *ProtocolGraphQLTransportWSHandler) startConnectionInitTimer() {
	if p.connectionInitTimerStarted {
		return
	}
	p.connectionInitTimerStarted = true

	timeOutCtx, cancel := context.WithCancel(context.Background())
	p.connectionInitTimeOutCancel = cancel
	go subscription.TimeOutChecker(subscription.TimeOutParams{
		Name:           "connection init time out",
		Logger:         p.logger,
		TimeOutContext: timeOutCtx,
		TimeOutAction: func() {
			p.close(CloseCodeConnectionInitTimeout, "Connection initialisation timeout")
		},
		TimeOutDuration: p.connectionInitTimeOutDuration,
	})
}

func (p *ProtocolGraphQLTransportWSHandler) stopConnectionInitTimer() {
	if p.connectionInitTimeOutCancel != nil {
		p.connectionInitTimeOutCancel()
		p.connectionInitTimeOutCancel = nil
	}
}

// startHeartbeat sends a pong every heartbeatInterval until ctx is done.
func (p *ProtocolGraphQLTransportWSHandler) startHeartbeat(ctx context.Context) {
	if p.heartbeatStarted || p.heartbeatInterval < 0 {
		return
	}
	p.heartbeatStarted = true

	go func() {
		ticker := time.NewTicker(p.heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := p.eventHandler.Writer.WritePong([]byte(GraphQLTransportWSHeartbeatPayload))
				p.eventHandler.check(GraphQLTransportWSMessageTypePong, "", err)
			}
		}
	}()
}

func (p *ProtocolGraphQLTransportWSHandler) close(code uint16, reason string) {
	p.eventHandler.disconnect(code, reason)
}

var (
	_ subscription.EventHandler = (*GraphQLTransportWSEventHandler)(nil)
	_ subscription.Protocol     = (*ProtocolGraphQLTransportWSHandler)(nil)
)
