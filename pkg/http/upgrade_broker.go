package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"

	"github.com/wundergraph/graphql-http-ws-server/pkg/subscription/websocket"
)

const (
	upgradeOutcomeUnsupported = "unsupported"
	upgradeOutcomeDraining    = "draining"
)

// UpgradeListener completes the websocket handshake of an upgrade request and takes over the connection.
type UpgradeListener interface {
	HandleUpgrade(w http.ResponseWriter, r *http.Request) error
}

// UnmatchedUpgradePolicy decides what happens to upgrades of paths other than the subscriptions path.
type UnmatchedUpgradePolicy int

const (
	// UnmatchedUpgradePassThrough hands the upgrade to the next handler.
	UnmatchedUpgradePassThrough UnmatchedUpgradePolicy = iota
	// UnmatchedUpgradeDestroy closes the connection without a response.
	UnmatchedUpgradeDestroy
)

type UpgradeBrokerOptions struct {
	Logger            abstractlogger.Logger
	SubscriptionsPath string
	// Legacy serves graphql-ws upgrades.
	Legacy UpgradeListener
	// Transport serves graphql-transport-ws upgrades.
	Transport UpgradeListener
	// Next serves every request which isn't handled by the broker.
	Next              http.Handler
	UnmatchedUpgrades UnmatchedUpgradePolicy
	Metrics           *Metrics
}

// UpgradeBroker is the root handler of the server. It dispatches websocket upgrades of the subscriptions
// path to the listener of the requested subprotocol and passes everything else to the next handler.
type UpgradeBroker struct {
	log               abstractlogger.Logger
	subscriptionsPath string
	legacy            UpgradeListener
	transport         UpgradeListener
	next              http.Handler
	unmatchedUpgrades UnmatchedUpgradePolicy
	metrics           *Metrics
	closed            *atomic.Bool
}

func NewUpgradeBroker(options UpgradeBrokerOptions) *UpgradeBroker {
	broker := &UpgradeBroker{
		log:               options.Logger,
		subscriptionsPath: options.SubscriptionsPath,
		legacy:            options.Legacy,
		transport:         options.Transport,
		next:              options.Next,
		unmatchedUpgrades: options.UnmatchedUpgrades,
		metrics:           options.Metrics,
		closed:            atomic.NewBool(false),
	}

	if broker.log == nil {
		broker.log = abstractlogger.Noop{}
	}
	if broker.next == nil {
		broker.next = http.NotFoundHandler()
	}

	return broker
}

// Close makes the broker destroy every following upgrade. Other requests still reach the next handler.
func (b *UpgradeBroker) Close() {
	b.closed.Store(true)
}

func (b *UpgradeBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !isWebsocketUpgrade(r) {
		b.next.ServeHTTP(w, r)
		return
	}

	if b.closed.Load() {
		b.metrics.ObserveUpgrade(upgradeOutcomeDraining)
		b.destroy(w, r)
		return
	}

	upgrade := UpgradeRequest{
		Path:     r.URL.Path,
		Protocol: r.Header.Get(HeaderSecWebSocketProtocol),
	}

	decision, err := upgrade.Decide(b.subscriptionsPath)
	if err != nil {
		b.log.Debug("http.UpgradeBroker.ServeHTTP: on subprotocol selection",
			abstractlogger.String("path", upgrade.Path),
			abstractlogger.String("remote_addr", r.RemoteAddr),
			abstractlogger.Error(err),
		)
		b.metrics.ObserveUpgrade(upgradeOutcomeUnsupported)
		b.destroy(w, r)
		return
	}
	b.metrics.ObserveUpgrade(decision.String())

	switch decision {
	case DecisionLegacyGraphQLWS:
		b.upgrade(b.legacy, decision, w, r)
	case DecisionGraphQLTransportWS:
		b.upgrade(b.transport, decision, w, r)
	default:
		if b.unmatchedUpgrades == UnmatchedUpgradeDestroy {
			b.destroy(w, r)
			return
		}
		b.next.ServeHTTP(w, r)
	}
}

func (b *UpgradeBroker) upgrade(listener UpgradeListener, decision SubprotocolDecision, w http.ResponseWriter, r *http.Request) {
	if listener == nil {
		b.log.Error("http.UpgradeBroker.upgrade: no listener for subprotocol",
			abstractlogger.String("protocol", decision.String()),
		)
		b.destroy(w, r)
		return
	}

	err := listener.HandleUpgrade(w, r)
	if errors.Is(err, websocket.ErrServerClosed) {
		b.destroy(w, r)
		return
	}
	if err != nil {
		// the listener already answered the handshake
		b.log.Debug("http.UpgradeBroker.upgrade: on handshake",
			abstractlogger.String("protocol", decision.String()),
			abstractlogger.String("remote_addr", r.RemoteAddr),
			abstractlogger.Error(err),
		)
	}
}

// destroy closes the underlying connection without writing a response.
func (b *UpgradeBroker) destroy(w http.ResponseWriter, r *http.Request) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		panic(http.ErrAbortHandler)
	}

	conn, _, err := hijacker.Hijack()
	if err != nil {
		b.log.Debug("http.UpgradeBroker.destroy: on hijack",
			abstractlogger.String("remote_addr", r.RemoteAddr),
			abstractlogger.Error(err),
		)
		panic(http.ErrAbortHandler)
	}

	if err := conn.Close(); err != nil {
		b.log.Debug("http.UpgradeBroker.destroy: on close",
			abstractlogger.String("remote_addr", r.RemoteAddr),
			abstractlogger.Error(err),
		)
	}
}

func isWebsocketUpgrade(r *http.Request) bool {
	for _, header := range r.Header.Values("Upgrade") {
		if strings.EqualFold(strings.TrimSpace(header), "websocket") {
			return true
		}
	}
	return false
}
