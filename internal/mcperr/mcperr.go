// Package mcperr defines the small error taxonomy shared by every layer of
// the registry and gateway: transports, sessions, the connection manager and
// the HTTP surface all produce and propagate these kinds as values, and the
// gateway is the only layer that turns them into HTTP status codes.
package mcperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the abstract error kinds from the error handling design.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindTransport      Kind = "transport"
	KindProtocol       Kind = "protocol"
	KindNotInitialized Kind = "not_initialized"
	KindTimeout        Kind = "timeout"
	KindCancelled      Kind = "cancelled"
	KindConnect        Kind = "connect"
	KindInternal       Kind = "internal"
)

// Error is the concrete type behind every Kind above. Code is only
// meaningful for KindProtocol, where it carries the JSON-RPC error code.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func build(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return build(KindValidation, nil, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return build(KindNotFound, nil, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return build(KindConflict, nil, format, args...)
}

func Transport(err error, format string, args ...any) *Error {
	return build(KindTransport, err, format, args...)
}

// Protocol wraps a JSON-RPC error reply (code in -32700..-32000, or any
// application-defined code the downstream server returned).
func Protocol(code int, message string) *Error {
	return &Error{Kind: KindProtocol, Code: code, Message: message}
}

func NotInitialized(format string, args ...any) *Error {
	return build(KindNotInitialized, nil, format, args...)
}

func Timeout(format string, args ...any) *Error {
	return build(KindTimeout, nil, format, args...)
}

func Cancelled(format string, args ...any) *Error {
	return build(KindCancelled, nil, format, args...)
}

func Connect(err error, format string, args ...any) *Error {
	return build(KindConnect, err, format, args...)
}

func Internal(err error, format string, args ...any) *Error {
	return build(KindInternal, err, format, args...)
}

// Is reports whether err (or something it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// As extracts the *Error from err, following the chain of wrapped errors.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// StatusCode maps a core error to the HTTP status the gateway must answer
// with. Errors that are not one of ours map to 500.
func StatusCode(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConnect, KindTransport:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
