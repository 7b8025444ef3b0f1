package websocket

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"

	"github.com/wundergraph/graphql-http-ws-server/pkg/subscription"
)

// CloseReason is a close frame built at runtime, see NewCloseReason.
type CloseReason ws.Frame

// CompiledCloseReason is a close frame compiled to its wire representation.
type CompiledCloseReason []byte

var (
	CompiledCloseReasonNormal              = compileCloseReason(ws.StatusNormalClosure, "Normal Closure")
	CompiledCloseReasonGoingAway           = compileCloseReason(ws.StatusGoingAway, "Server Shutting Down")
	CompiledCloseReasonInternalServerError = compileCloseReason(ws.StatusInternalServerError, "Internal Server Error")
)

func compileCloseReason(code ws.StatusCode, reason string) CompiledCloseReason {
	return ws.MustCompileFrame(ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason)))
}

// NewCloseReason builds a close frame with an application defined code.
func NewCloseReason(code uint16, reason string) CloseReason {
	return CloseReason(ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusCode(code), reason)))
}

// Client is the TransportClient of one websocket connection. Messages are read by a single goroutine,
// writes can happen concurrently from operations, keep-alives and Server.Shutdown.
type Client struct {
	logger abstractlogger.Logger
	conn   net.Conn
	closed *atomic.Bool

	writeMu sync.Mutex
}

func NewClient(logger abstractlogger.Logger, conn net.Conn) *Client {
	return &Client{
		logger: logger,
		conn:   conn,
		closed: atomic.NewBool(false),
	}
}

// ReadBytesFromClient reads the next data message. Control frames are answered by wsutil.
func (c *Client) ReadBytesFromClient() ([]byte, error) {
	if c.closed.Load() {
		return nil, subscription.ErrTransportClientClosedConnection
	}

	data, opCode, err := wsutil.ReadClientData(c.conn)
	if err == nil {
		return data, nil
	}
	if c.markClosedOn(err) {
		return nil, subscription.ErrTransportClientClosedConnection
	}

	c.logger.Error("websocket.Client.ReadBytesFromClient: after reading from client",
		abstractlogger.Error(err),
		abstractlogger.Any("opCode", opCode),
	)
	return nil, err
}

// WriteBytesToClient writes message as a single text frame.
func (c *Client) WriteBytesToClient(message []byte) error {
	if c.closed.Load() {
		return subscription.ErrTransportClientClosedConnection
	}

	err := c.write(func(w io.Writer) error {
		return wsutil.WriteServerMessage(w, ws.OpText, message)
	})
	if err == nil {
		return nil
	}
	if c.markClosedOn(err) {
		return subscription.ErrTransportClientClosedConnection
	}

	c.logger.Error("websocket.Client.WriteBytesToClient: after writing to client",
		abstractlogger.Error(err),
		abstractlogger.Int("length", len(message)),
	)
	return err
}

func (c *Client) IsConnected() bool {
	return !c.closed.Load()
}

// Disconnect closes the connection without a close frame.
func (c *Client) Disconnect() error {
	c.closed.Store(true)
	return c.conn.Close()
}

// DisconnectWithReason sends a close frame before closing the connection. reason is either a CloseReason or a
// CompiledCloseReason, anything else is replaced by 4400.
func (c *Client) DisconnectWithReason(reason interface{}) error {
	var frame []byte
	switch reason := reason.(type) {
	case CompiledCloseReason:
		frame = reason
	case CloseReason:
		compiled, err := ws.CompileFrame(ws.Frame(reason))
		if err != nil {
			return err
		}
		frame = compiled
	default:
		c.logger.Error("websocket.Client.DisconnectWithReason: on unknown reason",
			abstractlogger.Any("reason", reason),
		)
		frame = ws.MustCompileFrame(ws.Frame(NewCloseReason(CloseCodeBadRequest, "unknown reason")))
	}

	err := c.write(func(w io.Writer) error {
		_, err := w.Write(frame)
		return err
	})
	if err != nil {
		c.logger.Error("websocket.Client.DisconnectWithReason: after writing close frame",
			abstractlogger.Error(err),
		)
		c.markClosedOn(err)
		return err
	}

	return c.Disconnect()
}

func (c *Client) write(writeFn func(w io.Writer) error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFn(c.conn)
}

// markClosedOn reports whether err means the peer or the server closed the connection and remembers it.
func (c *Client) markClosedOn(err error) bool {
	var closedErr wsutil.ClosedError
	switch {
	case errors.As(err, &closedErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed):
		c.closed.Store(true)
		return true
	}
	return c.closed.Load()
}

var _ subscription.TransportClient = (*Client)(nil)
