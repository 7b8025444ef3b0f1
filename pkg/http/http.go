// Package http serves GraphQL requests over HTTP and dispatches websocket upgrades to the subscription engines.
package http

import (
	"errors"
	"net/http"

	log "github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-http-ws-server/pkg/graphql"
)

const (
	httpHeaderContentType string = "Content-Type"

	httpContentTypeApplicationJson string = "application/json"
	httpContentTypeTextHTML        string = "text/html"
)

func (g *GraphQLHTTPRequestHandler) handleHTTP(w http.ResponseWriter, r *http.Request) {
	var request graphql.Request
	if err := graphql.UnmarshalHttpRequest(r, &request); err != nil {
		g.log.Debug("GraphQLHTTPRequestHandler.handleHTTP: on unmarshal request",
			log.Error(err),
		)
		g.writeRequestErrors(w, http.StatusBadRequest, graphql.RequestErrorsFromError(err))
		return
	}

	if r.Method == http.MethodGet {
		operationType, err := request.OperationType()
		if err != nil {
			g.writeRequestErrors(w, http.StatusBadRequest, graphql.RequestErrorsFromError(err))
			return
		}
		if operationType != graphql.OperationTypeQuery {
			w.Header().Set("Allow", http.MethodPost)
			g.writeRequestErrors(w, http.StatusMethodNotAllowed, graphql.RequestErrors{
				{Message: "Can only perform a " + operationType.String() + " operation from a POST request."},
			})
			return
		}
	}

	ctx := r.Context()
	if g.contextFunc != nil {
		var err error
		ctx, err = g.contextFunc(r)
		if err != nil {
			g.log.Error("GraphQLHTTPRequestHandler.handleHTTP: on context creation",
				log.Error(err),
			)
			g.writeRequestErrors(w, http.StatusInternalServerError, graphql.RequestErrors{
				{Message: "context creation failed: " + err.Error()},
			})
			return
		}
	}

	response, err := g.executor.Execute(ctx, &request)
	if err != nil {
		var requestErrors graphql.RequestErrors
		if errors.As(err, &requestErrors) {
			g.writeRequestErrors(w, http.StatusBadRequest, requestErrors)
			return
		}

		g.log.Error("GraphQLHTTPRequestHandler.handleHTTP: on execute",
			log.String("operation_name", request.OperationName),
			log.Error(err),
		)
		g.writeRequestErrors(w, http.StatusInternalServerError, graphql.RequestErrorsFromError(err))
		return
	}

	responseBytes, err := response.Marshal()
	if err != nil {
		g.log.Error("GraphQLHTTPRequestHandler.handleHTTP: on marshal response",
			log.Error(err),
		)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set(httpHeaderContentType, httpContentTypeApplicationJson)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(responseBytes)
}

func (g *GraphQLHTTPRequestHandler) writeRequestErrors(w http.ResponseWriter, statusCode int, requestErrors graphql.RequestErrors) {
	w.Header().Set(httpHeaderContentType, httpContentTypeApplicationJson)
	w.WriteHeader(statusCode)
	if _, err := requestErrors.WriteResponse(w); err != nil {
		g.log.Error("GraphQLHTTPRequestHandler.writeRequestErrors",
			log.Error(err),
		)
	}
}
