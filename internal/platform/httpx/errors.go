package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer.
var (
	ErrUnauthorized = errors.New("login required")
	ErrForbidden    = errors.New("no access")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("duplicate entry")
	ErrNotFound     = errors.New("resource not found")
	ErrInternal     = errors.New("internal inconsistency")
)

// Fixed client-facing messages for the authentication and authorization outcomes.
const (
	MsgLoginRequired = "Login required"
	MsgNoAccess      = "No Access"
)

// RespondError maps domain errors to HTTP responses with a JSON message body.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		Message(w, http.StatusUnauthorized, MsgLoginRequired)
	case errors.Is(err, ErrForbidden):
		Message(w, http.StatusForbidden, MsgNoAccess)
	case errors.Is(err, ErrValidation):
		Message(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrConflict):
		Message(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		Message(w, http.StatusNotFound, err.Error())
	default:
		Message(w, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
