package protocol

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the wall core.
type ErrorKind string

const (
	// KindConfig is fatal: the process must not run with invalid geometry.
	KindConfig ErrorKind = "ConfigError"
	// KindProtocol marks a malformed or missing client payload.
	KindProtocol ErrorKind = "ProtocolError"
	// KindNamespaceConflict marks a second open of a live module channel.
	KindNamespaceConflict ErrorKind = "NamespaceConflict"
	// KindConnection marks a transport failure; always retried.
	KindConnection ErrorKind = "ConnectionError"
	// KindCapacity marks a request refused by a bounded resource.
	KindCapacity ErrorKind = "CapacityError"
)

// Error carries a kind, a short message and the underlying cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err wraps an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
