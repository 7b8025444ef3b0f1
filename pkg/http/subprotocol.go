package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wundergraph/graphql-http-ws-server/pkg/subscription/websocket"
)

const HeaderSecWebSocketProtocol = "Sec-WebSocket-Protocol"

// SubprotocolDecision tells which subscription engine is responsible for an upgrade.
type SubprotocolDecision int

const (
	DecisionNotApplicable SubprotocolDecision = iota
	DecisionLegacyGraphQLWS
	DecisionGraphQLTransportWS
)

func (d SubprotocolDecision) String() string {
	switch d {
	case DecisionLegacyGraphQLWS:
		return string(websocket.ProtocolGraphQLWS)
	case DecisionGraphQLTransportWS:
		return string(websocket.ProtocolGraphQLTransportWS)
	default:
		return "not_applicable"
	}
}

// Protocol returns the websocket subprotocol of the decision. It is empty for DecisionNotApplicable.
func (d SubprotocolDecision) Protocol() websocket.Protocol {
	switch d {
	case DecisionLegacyGraphQLWS:
		return websocket.ProtocolGraphQLWS
	case DecisionGraphQLTransportWS:
		return websocket.ProtocolGraphQLTransportWS
	default:
		return ""
	}
}

var ErrUnsupportedSubprotocol = errors.New("unsupported websocket subprotocol")

type UnsupportedSubprotocolError struct {
	Protocol string
}

func (e *UnsupportedSubprotocolError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedSubprotocol, e.Protocol)
}

func (e *UnsupportedSubprotocolError) Is(target error) bool {
	return target == ErrUnsupportedSubprotocol
}

// UpgradeRequest is the part of a websocket upgrade request the subprotocol decision depends on.
type UpgradeRequest struct {
	Path     string
	Protocol string
}

// Decide is a shorthand for SelectSubprotocol.
func (u UpgradeRequest) Decide(subscriptionsPath string) (SubprotocolDecision, error) {
	return SelectSubprotocol(subscriptionsPath, u.Path, u.Protocol)
}

// SelectSubprotocol decides which subscription engine serves an upgrade of requestPath.
// Upgrades of other paths than subscriptionsPath are not applicable. A missing subprotocol
// header selects graphql-ws, any token other than the two known ones is rejected.
func SelectSubprotocol(subscriptionsPath, requestPath, protocolHeader string) (SubprotocolDecision, error) {
	if requestPath != subscriptionsPath {
		return DecisionNotApplicable, nil
	}

	protocol := strings.TrimSpace(protocolHeader)
	if protocol == "" {
		protocol = string(websocket.DefaultProtocol)
	}

	switch websocket.Protocol(protocol) {
	case websocket.ProtocolGraphQLTransportWS:
		return DecisionGraphQLTransportWS, nil
	case websocket.ProtocolGraphQLWS:
		return DecisionLegacyGraphQLWS, nil
	default:
		return DecisionNotApplicable, &UnsupportedSubprotocolError{Protocol: protocol}
	}
}
