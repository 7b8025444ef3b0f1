package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"

	"github.com/wundergraph/graphql-http-ws-server/pkg/graphql"
)

// ContextFunc builds the context a query is executed with. Returning an error answers the request with 500.
type ContextFunc func(r *http.Request) (context.Context, error)

type HandlerOptions struct {
	Logger      abstractlogger.Logger
	ContextFunc ContextFunc
	// CSRFPrevention rejects requests which could have been sent by a browser without a preflight.
	CSRFPrevention bool
	// Playground serves GET requests accepting text/html when set.
	Playground http.Handler
}

func NewGraphqlHTTPHandlerFunc(executor graphql.Executor, options HandlerOptions) *GraphQLHTTPRequestHandler {
	handler := &GraphQLHTTPRequestHandler{
		log:            options.Logger,
		executor:       executor,
		contextFunc:    options.ContextFunc,
		csrfPrevention: options.CSRFPrevention,
		playground:     options.Playground,
		ready:          atomic.NewBool(false),
	}

	if handler.log == nil {
		handler.log = abstractlogger.Noop{}
	}

	return handler
}

// GraphQLHTTPRequestHandler serves queries and mutations over GET and POST.
// It answers with 503 until it was marked ready.
type GraphQLHTTPRequestHandler struct {
	log            abstractlogger.Logger
	executor       graphql.Executor
	contextFunc    ContextFunc
	csrfPrevention bool
	playground     http.Handler
	ready          *atomic.Bool
}

// SetReady toggles whether requests are executed or answered with 503.
func (g *GraphQLHTTPRequestHandler) SetReady(ready bool) {
	g.ready.Store(ready)
}

func (g *GraphQLHTTPRequestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !g.ready.Load() {
		w.Header().Set("Retry-After", "1")
		http.Error(w, "server is not ready", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if g.playground != nil && acceptsHTML(r) {
			g.playground.ServeHTTP(w, r)
			return
		}
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if g.csrfPrevention && isCSRFRequest(r) {
		g.log.Debug("GraphQLHTTPRequestHandler.ServeHTTP: on csrf prevention",
			abstractlogger.String("method", r.Method),
			abstractlogger.String("content_type", r.Header.Get(httpHeaderContentType)),
		)
		http.Error(w, csrfErrorMessage, http.StatusBadRequest)
		return
	}

	g.handleHTTP(w, r)
}

func acceptsHTML(r *http.Request) bool {
	for _, accept := range r.Header.Values("Accept") {
		if strings.Contains(accept, httpContentTypeTextHTML) {
			return true
		}
	}
	return false
}
