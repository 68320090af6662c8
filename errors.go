package main

import "net/http"

// ErrorKind classifies API rejections. Nothing is mutated on a rejection and
// nothing is retried internally.
type ErrorKind int

const (
	ErrValidation    ErrorKind = iota // malformed or out-of-range input
	ErrAuthorization                  // unknown room or token mismatch
	ErrPrecondition                   // operation illegal in the current state
)

// APIError is the only error type the room API returns.
type APIError struct {
	Kind ErrorKind
	Msg  string
}

func (e *APIError) Error() string { return e.Msg }

// Status maps the error kind to an HTTP status code.
func (e *APIError) Status() int {
	switch e.Kind {
	case ErrAuthorization:
		return http.StatusUnauthorized
	case ErrPrecondition:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func validationError(msg string) *APIError {
	return &APIError{Kind: ErrValidation, Msg: msg}
}

func authError(msg string) *APIError {
	return &APIError{Kind: ErrAuthorization, Msg: msg}
}

func preconditionError(msg string) *APIError {
	return &APIError{Kind: ErrPrecondition, Msg: msg}
}

var (
	errRoomNotFound = authError("room not found")
	errInvalidToken = authError("invalid token")
)
