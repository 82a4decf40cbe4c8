package gateway

import "fmt"

// Code is the transport-independent status of a failed operation.
type Code int

const (
	CodeInvalidArgument Code = iota
	CodeUnauthenticated
	CodeNotFound
	CodeFailedPrecondition
	CodeInternal
	CodeUnavailable
)

// HTTPStatus maps a status code to its HTTP equivalent.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return 400
	case CodeUnauthenticated:
		return 401
	case CodeNotFound:
		return 404
	case CodeFailedPrecondition:
		return 412
	case CodeUnavailable:
		return 503
	default:
		return 500
	}
}

// StatusError is an operation failure with a client-facing message.
type StatusError struct {
	Code    Code
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

func statusErrorf(code Code, format string, args ...interface{}) *StatusError {
	return &StatusError{Code: code, Message: fmt.Sprintf(format, args...)}
}
