package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	adapter "github.com/bcnelson/casbin-dynamodb-adapter"
)

// errInvalidInput marks request decoding/validation failures.
var errInvalidInput = errors.New("invalid input")

// apiError is the JSON error response body.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, &apiError{Code: status, Message: message})
}

// handleError converts adapter and validation errors to HTTP errors.
func handleError(w http.ResponseWriter, err error) {
	var partial *adapter.PartialBatchError
	switch {
	case errors.Is(err, errInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, adapter.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, "policy store unavailable")
	case errors.As(err, &partial):
		respondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, adapter.ErrStoreRejected):
		respondError(w, http.StatusInternalServerError, "policy store rejected request")
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON decodes JSON from a request body.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidInput
	}
	return nil
}
