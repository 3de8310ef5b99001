package app

import (
	"errors"
	"fmt"
)

// ErrAlreadyWrapped is the cause of the ConfigurationError returned when a
// driver session is wrapped twice.
var ErrAlreadyWrapped = errors.New("driver session is already wrapped")

// ErrConnection represents a database connection error.
type ErrConnection struct {
	Driver string
	Cause  error
}

func (e *ErrConnection) Error() string {
	return fmt.Sprintf("%s connection error: %v", e.Driver, e.Cause)
}

func (e *ErrConnection) Unwrap() error {
	return e.Cause
}

// ConfigurationError reports invalid arguments when a session is wrapped.
// It is returned before any asynchronous work starts.
type ConfigurationError struct {
	Cause error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config error: %v", e.Cause)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// MisuseError reports a paginator used outside its open scope. The
// paginator is left as it was.
type MisuseError struct {
	Op    string
	State string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("paginator %s: not allowed while %s", e.Op, e.State)
}
