package websocket

import (
	"context"
	"encoding/json"
)

// InitPayload is the payload of a connection_init message (connectionParams in graphql-ws).
type InitPayload json.RawMessage

// Authorization returns the authorization value of the init payload, if present.
// Both "authorization" and "Authorization" keys are accepted.
func (p InitPayload) Authorization() string {
	if len(p) == 0 {
		return ""
	}

	var values map[string]interface{}
	if err := json.Unmarshal(p, &values); err != nil {
		return ""
	}

	for _, key := range []string{"authorization", "Authorization"} {
		if value, ok := values[key].(string); ok {
			return value
		}
	}
	return ""
}

// InitFunc is called when the server receives a connection_init message from the client.
// It can be used to check the init payload and to enrich the context of the connection.
// Returning an error rejects the connection.
type InitFunc func(ctx context.Context, initPayload InitPayload) (context.Context, error)
