package graphql

import (
	"errors"
	"io"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

type Errors interface {
	error
	WriteResponse(writer io.Writer) (n int, err error)
	Count() int
	ErrorByIndex(i int) error
}

// RequestErrors are errors which are caused by the request itself (parsing, validation, variables)
// and not by the execution of the operation.
type RequestErrors []RequestError

func RequestErrorsFromError(err error) RequestErrors {
	if err == nil {
		return nil
	}

	var requestErrors RequestErrors
	if errors.As(err, &requestErrors) {
		return requestErrors
	}

	var gqlErrors gqlerror.List
	if errors.As(err, &gqlErrors) {
		return RequestErrorsFromGQLErrors(gqlErrors)
	}

	var gqlError *gqlerror.Error
	if errors.As(err, &gqlError) {
		return RequestErrorsFromGQLErrors(gqlerror.List{gqlError})
	}

	return RequestErrors{
		{
			Message: err.Error(),
		},
	}
}

func RequestErrorsFromGQLErrors(list gqlerror.List) (errs RequestErrors) {
	if len(list) == 0 {
		return RequestErrors{
			{
				Message: "Internal Error",
			},
		}
	}

	for _, gqlErr := range list {
		if gqlErr == nil {
			continue
		}

		requestError := RequestError{
			Message:    gqlErr.Message,
			Extensions: gqlErr.Extensions,
		}

		for _, location := range gqlErr.Locations {
			requestError.Locations = append(requestError.Locations, ErrorLocation{
				Line:   location.Line,
				Column: location.Column,
			})
		}

		for _, element := range gqlErr.Path {
			requestError.Path = append(requestError.Path, element)
		}

		errs = append(errs, requestError)
	}

	return errs
}

func (o RequestErrors) Error() string {
	if len(o) > 0 {
		return o.ErrorByIndex(0).Error()
	}
	return "no error"
}

func (o RequestErrors) WriteResponse(writer io.Writer) (n int, err error) {
	response := Response{
		Errors: o,
	}

	responseBytes, err := response.Marshal()
	if err != nil {
		return 0, err
	}

	return writer.Write(responseBytes)
}

func (o RequestErrors) Count() int {
	return len(o)
}

func (o RequestErrors) ErrorByIndex(i int) error {
	if i >= o.Count() {
		return nil
	}

	return o[i]
}

type RequestError struct {
	Message    string                 `json:"message"`
	Locations  []ErrorLocation        `json:"locations,omitempty"`
	Path       ErrorPath              `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

func (o RequestError) Error() string {
	return o.Message
}

type ErrorPath []interface{}

type ErrorLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Interface Guards
var _ Errors = (RequestErrors)(nil)
