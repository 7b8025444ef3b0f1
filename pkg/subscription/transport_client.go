package subscription

//go:generate mockgen -destination=transport_client_mock_test.go -package=subscription . TransportClient

import (
	"errors"
)

// ErrTransportClientClosedConnection is returned by a TransportClient once its connection is gone.
var ErrTransportClientClosedConnection = errors.New("transport client has a closed connection")

// TransportClient moves raw messages between a subscription protocol and one client connection.
type TransportClient interface {
	// ReadBytesFromClient blocks until the next message arrives.
	// It returns ErrTransportClientClosedConnection when the connection is closed.
	ReadBytesFromClient() ([]byte, error)
	// WriteBytesToClient sends one message.
	// It returns ErrTransportClientClosedConnection when the connection is closed.
	WriteBytesToClient([]byte) error
	IsConnected() bool
	// Disconnect closes the connection without telling the client why.
	Disconnect() error
	// DisconnectWithReason closes the connection with a transport specific reason, e.g. a websocket close frame.
	DisconnectWithReason(reason interface{}) error
}
