package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	gql "github.com/99designs/gqlgen/graphql"
	"github.com/go-chi/chi/v5"
	"github.com/jensneuse/abstractlogger"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wundergraph/graphql-http-ws-server/pkg/graphql"
	pkghttp "github.com/wundergraph/graphql-http-ws-server/pkg/http"
	"github.com/wundergraph/graphql-http-ws-server/pkg/subscription/websocket"
)

const (
	DefaultPort              = 80
	DefaultGraphQLPath       = "/graphql"
	DefaultSubscriptionsPath = "/graphql"

	defaultReadHeaderTimeout = 10 * time.Second
)

// ServerSource tells whether the server owns its *http.Server or adopts an existing one.
// It is either OwnedServer or ExternalServer.
type ServerSource interface {
	isServerSource()
}

// OwnedServer makes the server create and listen with its own *http.Server.
type OwnedServer struct {
	Host string
	Port int
}

func (OwnedServer) isServerSource() {}

// ExternalServer adopts an existing *http.Server. Its handler is replaced by the upgrade broker,
// the previous handler keeps serving every request the GraphQL endpoint doesn't handle.
type ExternalServer struct {
	Server *http.Server
}

func (ExternalServer) isServerSource() {}

// HTTPContextFunc builds the context of a query from its http request.
type HTTPContextFunc = pkghttp.ContextFunc

// Config configures a Server. It is not modified after New returned.
type Config struct {
	// Source defaults to OwnedServer{Port: DefaultPort}.
	Source ServerSource
	// Router serves all requests which aren't websocket upgrades. The GraphQL endpoint is mounted on it.
	Router            chi.Router
	GraphQLPath       string
	SubscriptionsPath string
	// Listen makes Start bind the address of the server. Defaults to true for OwnedServer and false for ExternalServer.
	Listen *bool

	// Schema is a gqlgen executable schema. It takes precedence over TypeDefs and Resolvers.
	Schema    gql.ExecutableSchema
	TypeDefs  string
	Resolvers *graphql.Resolvers

	// Context and HTTPContext build the context of queries, HTTPContext wins if both are set.
	Context     HTTPContextFunc
	HTTPContext HTTPContextFunc
	// WSContext is called on connection_init of graphql-transport-ws connections.
	WSContext websocket.InitFunc

	Logger  abstractlogger.Logger
	Plugins []Plugin

	// graphql-ws only
	RootValue           interface{}
	OnConnect           websocket.InitFunc
	OnOperation         websocket.OperationFunc
	OnOperationComplete websocket.OperationCompleteFunc
	OnDisconnect        websocket.ConnectionFunc
	KeepAlive           time.Duration

	Playground bool
	// CSRFPrevention defaults to true.
	CSRFPrevention *bool
	QueryCacheSize int
	// UnmatchedUpgrades decides about upgrades of other paths than SubscriptionsPath.
	UnmatchedUpgrades     pkghttp.UnmatchedUpgradePolicy
	MetricsRegisterer     prometheus.Registerer
	ConnectionInitTimeout time.Duration
}

func boolPtr(value bool) *bool {
	return &value
}

// withDefaults validates the configuration and fills in all defaults.
func (c Config) withDefaults() (Config, error) {
	if c.Logger == nil {
		c.Logger = abstractlogger.Noop{}
	}

	if c.Source == nil {
		c.Source = OwnedServer{Port: DefaultPort}
	}

	switch source := c.Source.(type) {
	case OwnedServer:
		if source.Port < 1 || source.Port > 65535 {
			return c, &ConfigurationError{Field: "Port", Reason: "must be between 1 and 65535, got " + strconv.Itoa(source.Port)}
		}
		if c.Listen == nil {
			c.Listen = boolPtr(true)
		}
	case ExternalServer:
		if source.Server == nil {
			return c, &ConfigurationError{Field: "Source", Reason: "external server must not be nil"}
		}
		if c.Listen == nil {
			c.Listen = boolPtr(false)
		}
	default:
		return c, &ConfigurationError{Field: "Source", Reason: "unknown server source"}
	}

	if c.GraphQLPath == "" {
		c.GraphQLPath = DefaultGraphQLPath
	}
	if c.SubscriptionsPath == "" {
		c.SubscriptionsPath = DefaultSubscriptionsPath
	}
	if !strings.HasPrefix(c.GraphQLPath, "/") {
		return c, &ConfigurationError{Field: "GraphQLPath", Reason: "must start with '/'"}
	}
	if !strings.HasPrefix(c.SubscriptionsPath, "/") {
		return c, &ConfigurationError{Field: "SubscriptionsPath", Reason: "must start with '/'"}
	}

	if c.Schema == nil {
		switch {
		case c.TypeDefs == "" && c.Resolvers == nil:
			return c, &ConfigurationError{Field: "Schema", Reason: "either Schema or TypeDefs and Resolvers are required"}
		case c.TypeDefs == "":
			return c, &ConfigurationError{Field: "TypeDefs", Reason: "Resolvers require TypeDefs"}
		case c.Resolvers == nil:
			return c, &ConfigurationError{Field: "Resolvers", Reason: "TypeDefs require Resolvers"}
		}
	}

	if c.CSRFPrevention == nil {
		c.CSRFPrevention = boolPtr(true)
	}
	if c.HTTPContext == nil {
		c.HTTPContext = c.Context
	}

	return c, nil
}

// listenAddr is the address Start binds.
func (c Config) listenAddr() string {
	switch source := c.Source.(type) {
	case OwnedServer:
		return net.JoinHostPort(source.Host, strconv.Itoa(source.Port))
	case ExternalServer:
		if source.Server.Addr != "" {
			return source.Server.Addr
		}
	}
	return ":" + strconv.Itoa(DefaultPort)
}

// legacyServerOptions picks the options the graphql-ws engine understands. Nothing else of the config reaches it.
func legacyServerOptions(c Config) websocket.ServerOptions {
	return websocket.ServerOptions{
		Logger:              c.Logger,
		InitFunc:            c.OnConnect,
		KeepAliveInterval:   c.KeepAlive,
		OnDisconnect:        c.OnDisconnect,
		OnOperation:         c.OnOperation,
		OnOperationComplete: c.OnOperationComplete,
		RootValue:           c.RootValue,
	}
}

func transportServerOptions(c Config) websocket.ServerOptions {
	return websocket.ServerOptions{
		Logger:                c.Logger,
		InitFunc:              c.WSContext,
		ConnectionInitTimeOut: c.ConnectionInitTimeout,
	}
}
