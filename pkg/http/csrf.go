package http

import (
	"mime"
	"net/http"
	"strings"
)

const csrfErrorMessage = "This operation has been blocked as a potential Cross-Site Request Forgery (CSRF). " +
	"Please either specify a 'content-type' header (with a type that is not one of " +
	"application/x-www-form-urlencoded, multipart/form-data, text/plain) or provide a non-empty value " +
	"for one of the following headers: x-apollo-operation-name, apollo-require-preflight"

var csrfPreflightHeaders = []string{"X-Apollo-Operation-Name", "Apollo-Require-Preflight"}

// content types a browser may send without a preflight request
var simpleContentTypes = map[string]struct{}{
	"application/x-www-form-urlencoded": {},
	"multipart/form-data":               {},
	"text/plain":                        {},
}

func isCSRFRequest(r *http.Request) bool {
	for _, header := range csrfPreflightHeaders {
		if strings.TrimSpace(r.Header.Get(header)) != "" {
			return false
		}
	}

	contentType := r.Header.Get(httpHeaderContentType)
	if contentType == "" {
		return true
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}

	_, simple := simpleContentTypes[strings.ToLower(mediaType)]
	return simple
}
