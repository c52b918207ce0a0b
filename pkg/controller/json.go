package controller

import (
	"encoding/json"
	"filtersync/pkg/serrors"
	"net/http"
)

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// WriteError writes err as a JSON error body. The status follows the error
// kind; unknown errors become 500.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, StatusFor(err), errorBody{Error: err.Error()})
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	switch serrors.KindOf(err) {
	case serrors.ErrNotFound:
		return http.StatusNotFound
	case serrors.ErrBadRequest:
		return http.StatusBadRequest
	case serrors.ErrUnauthorized, serrors.ErrForbidden:
		return http.StatusBadGateway
	case serrors.ErrUnavailable, serrors.ErrRateLimited:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
