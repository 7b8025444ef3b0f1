package graphql

import (
	"encoding/json"
)

type Response struct {
	Data       json.RawMessage        `json:"data,omitempty"`
	Errors     RequestErrors          `json:"errors,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

func (r Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// HasErrors indicates whether the response carries any errors.
func (r Response) HasErrors() bool {
	return len(r.Errors) > 0
}
