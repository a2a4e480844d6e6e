package apierr

import (
	"errors"
	"net/http"

	"github.com/joao-fontenele/cellarflow/internal/domain"
)

// Status maps an error onto the HTTP status returned to clients.
func Status(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTransient):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Message returns the client-facing text for err. Server-side failures never
// leak their cause.
func Message(err error) string {
	switch status := Status(err); {
	case status == http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	case status >= http.StatusInternalServerError:
		return "internal server error"
	}
	return err.Error()
}
