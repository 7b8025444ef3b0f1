package server

import (
	"errors"
	"fmt"
)

var ErrAlreadyStarted = errors.New("server has already been started")

// ConfigurationError is returned by New for invalid or missing options. Nothing has been opened when it is returned.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration of %s: %s", e.Field, e.Reason)
}

// BindError is returned by Start when the address could not be bound.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Unwrap() error {
	return e.Err
}

func (e *BindError) Error() string {
	return fmt.Sprintf("could not listen on %s: %s", e.Addr, e.Err)
}

// DrainError is a failed step of Shutdown. The remaining steps were run regardless.
type DrainError struct {
	Step string
	Err  error
}

func (e *DrainError) Unwrap() error {
	return e.Err
}

func (e *DrainError) Error() string {
	return fmt.Sprintf("drain step %s failed: %s", e.Step, e.Err)
}
