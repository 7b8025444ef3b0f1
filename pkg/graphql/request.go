package graphql

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

type OperationType int

const (
	OperationTypeUnknown OperationType = iota
	OperationTypeQuery
	OperationTypeMutation
	OperationTypeSubscription
)

func (o OperationType) String() string {
	switch o {
	case OperationTypeQuery:
		return "query"
	case OperationTypeMutation:
		return "mutation"
	case OperationTypeSubscription:
		return "subscription"
	default:
		return "unknown"
	}
}

var (
	ErrEmptyRequest      = errors.New("the provided request is empty")
	ErrOperationNotFound = errors.New("operation could not be found in the provided document")
)

type Request struct {
	OperationName string          `json:"operationName,omitempty"`
	Variables     json.RawMessage `json:"variables,omitempty"`
	Query         string          `json:"query"`
	Extensions    json.RawMessage `json:"extensions,omitempty"`
}

func UnmarshalRequest(reader io.Reader, request *Request) error {
	requestBytes, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if len(requestBytes) == 0 {
		return ErrEmptyRequest
	}

	return json.Unmarshal(requestBytes, &request)
}

// UnmarshalHttpRequest reads a GraphQL request either from the body of a POST request
// or from the query parameters of a GET request.
func UnmarshalHttpRequest(r *http.Request, request *Request) error {
	if r.Method != http.MethodGet {
		return UnmarshalRequest(r.Body, request)
	}

	values := r.URL.Query()
	request.Query = values.Get("query")
	request.OperationName = values.Get("operationName")
	if variables := values.Get("variables"); variables != "" {
		request.Variables = json.RawMessage(variables)
	}
	if extensions := values.Get("extensions"); extensions != "" {
		request.Extensions = json.RawMessage(extensions)
	}

	if request.Query == "" {
		return ErrEmptyRequest
	}

	return nil
}

// VariablesMap decodes the raw variables into a map. Missing or null variables result in an empty map.
func (r *Request) VariablesMap() (map[string]interface{}, error) {
	variables := make(map[string]interface{})
	if len(r.Variables) == 0 || string(r.Variables) == "null" {
		return variables, nil
	}

	if err := json.Unmarshal(r.Variables, &variables); err != nil {
		return nil, RequestErrors{
			{
				Message: "variables must be a JSON object: " + err.Error(),
			},
		}
	}

	return variables, nil
}

// OperationType parses the query and returns the type of the selected operation.
func (r *Request) OperationType() (OperationType, error) {
	if r.Query == "" {
		return OperationTypeUnknown, ErrEmptyRequest
	}

	document, err := parser.ParseQuery(&ast.Source{Input: r.Query})
	if err != nil {
		return OperationTypeUnknown, RequestErrorsFromError(err)
	}

	operation := document.Operations.ForName(r.OperationName)
	if operation == nil {
		return OperationTypeUnknown, ErrOperationNotFound
	}

	return operationTypeFromAST(operation.Operation), nil
}

func operationTypeFromAST(operation ast.Operation) OperationType {
	switch operation {
	case ast.Query:
		return OperationTypeQuery
	case ast.Mutation:
		return OperationTypeMutation
	case ast.Subscription:
		return OperationTypeSubscription
	default:
		return OperationTypeUnknown
	}
}
