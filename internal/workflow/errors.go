package workflow

import (
	"errors"
	"net/http"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrDocumentExists     = errors.New("document already registered")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrRetryLimitExceeded = errors.New("retry limit exceeded")
	ErrTerminalState      = errors.New("document is in a terminal state")
)

// MapHTTPStatus translates workflow errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDocumentExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrRetryLimitExceeded),
		errors.Is(err, ErrTerminalState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
