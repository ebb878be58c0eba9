package api

import (
	"errors"
	"net/http"

	"github.com/tworjaga/cherenkov-engine/internal/query"
)

// writeQueryError maps a query.Service error to the appropriate HTTP status.
func writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, query.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, query.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, query.ErrNotYetImplemented):
		WriteError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, query.ErrTierUnavailable):
		WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
