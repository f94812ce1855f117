// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/fincore/internal/shared"
)

// ErrUnauthorized is returned when no caller identity accompanies the request.
var ErrUnauthorized = errors.New("unauthorized")

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrAccountingLocked), errors.Is(err, shared.ErrDocumentLocked):
		return http.StatusLocked
	case errors.Is(err, shared.ErrInvalidTransition), errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Internal errors never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	kind := shared.KindName(err)
	if errors.Is(err, ErrUnauthorized) {
		kind = "UNAUTHORIZED"
	}
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = ""
	}
	JSON(w, status, ProblemDetail{
		Title:  http.StatusText(status),
		Status: status,
		Kind:   kind,
		Detail: detail,
	})
}
