// Package playground is a http.Handler hosting the GraphQL Playground application.
package playground

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"strings"
)

//go:embed files/playground.html
var playgroundHTML string

const (
	playgroundTemplate = "playgroundTemplate"

	// DefaultAssetsURL is the CDN location of the playground javascript, css and favicon.
	DefaultAssetsURL = "https://cdn.jsdelivr.net/npm/graphql-playground-react@1.7.26/build"
	DefaultTitle     = "GraphQL Playground"
)

const (
	contentTypeHeader   = "Content-Type"
	contentTypeTextHTML = "text/html; charset=utf-8"
)

var templates = template.Must(template.New(playgroundTemplate).Parse(playgroundHTML))

// Config is the configuration Object to instruct New on how to render the playground page
type Config struct {
	// GraphqlEndpointPath is the path where synchronous (Query, Mutation) GraphQL requests are served
	GraphqlEndpointPath string
	// GraphQLSubscriptionEndpointPath is the path where websocket upgrades for subscriptions are served
	GraphQLSubscriptionEndpointPath string
	// AssetsURL is where the static assets are loaded from, DefaultAssetsURL if empty
	AssetsURL string
	Title     string
}

type playgroundTemplateData struct {
	Title                   string
	CssURL                  string
	JsURL                   string
	FavIconURL              string
	EndpointURL             string
	SubscriptionEndpointURL string
}

// Playground renders the playground page for a GraphQL endpoint.
type Playground struct {
	data playgroundTemplateData
}

func New(config Config) *Playground {
	assetsURL := strings.TrimSuffix(config.AssetsURL, "/")
	if assetsURL == "" {
		assetsURL = DefaultAssetsURL
	}

	title := config.Title
	if title == "" {
		title = DefaultTitle
	}

	subscriptionEndpoint := config.GraphQLSubscriptionEndpointPath
	if subscriptionEndpoint == "" {
		subscriptionEndpoint = config.GraphqlEndpointPath
	}

	return &Playground{
		data: playgroundTemplateData{
			Title:                   title,
			CssURL:                  assetsURL + "/static/css/index.css",
			JsURL:                   assetsURL + "/static/js/middleware.js",
			FavIconURL:              assetsURL + "/favicon.png",
			EndpointURL:             config.GraphqlEndpointPath,
			SubscriptionEndpointURL: subscriptionEndpoint,
		},
	}
}

func (p *Playground) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	buf := bytes.NewBuffer(make([]byte, 0, len(playgroundHTML)+256))
	if err := templates.ExecuteTemplate(buf, playgroundTemplate, p.data); err != nil {
		writer.WriteHeader(http.StatusInternalServerError)
		_, _ = writer.Write([]byte(err.Error()))
		return
	}

	writer.Header().Add(contentTypeHeader, contentTypeTextHTML)
	_, _ = buf.WriteTo(writer)
}
