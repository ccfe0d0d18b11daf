// Package rxflow holds what the rx runtime shares with its hosts: tagged
// errors, logging, configuration and an in-process event emitter.
package rxflow

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// ProducerError is raised when a producer or an operator function panics.
	ProducerError ErrorKind = iota
	// ObserverCallbackError is raised when an observer's Next, Error or
	// Complete handler panics. It is rethrown to the emitting call stack.
	ObserverCallbackError
	// UnhandledError carries an error that reached an observer without an
	// error handler.
	UnhandledError
)

func (k ErrorKind) String() string {
	switch k {
	case ProducerError:
		return "producer-error"
	case ObserverCallbackError:
		return "observer-callback-error"
	case UnhandledError:
		return "unhandled-error"
	}
	return fmt.Sprintf("error-kind(%d)", int(k))
}

type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func newError(kind ErrorKind, v interface{}) *Error {
	if e, ok := v.(*Error); ok && e.Kind == kind {
		return e
	}
	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("%v", v)
	}
	return &Error{
		Kind:    kind,
		Message: err.Error(),
		Cause:   err,
	}
}

// RuntimeError wraps a recovered panic value of a producer.
func RuntimeError(v interface{}) *Error {
	return newError(ProducerError, v)
}

// CallbackError wraps a recovered panic value of an observer callback.
func CallbackError(v interface{}) *Error {
	return newError(ObserverCallbackError, v)
}

func Unhandled(err error) *Error {
	return newError(UnhandledError, err)
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
