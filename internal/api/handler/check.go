package handler

import (
	"fmt"
	"net/http"

	"github.com/bcnelson/casbin-dynamodb-adapter/internal/authz"
)

// CheckHandler handles authorization check requests.
type CheckHandler struct {
	authorizer *authz.Authorizer
}

// NewCheckHandler creates a new CheckHandler.
func NewCheckHandler(authorizer *authz.Authorizer) *CheckHandler {
	return &CheckHandler{authorizer: authorizer}
}

type checkRequest struct {
	Request []string `json:"request"`
}

type checkResponse struct {
	Allowed  bool `json:"allowed"`
	Enforced bool `json:"enforced"`
}

// Check evaluates a request tuple against the loaded policy.
func (h *CheckHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}
	if len(req.Request) == 0 {
		handleError(w, fmt.Errorf("%w: request is required", errInvalidInput))
		return
	}

	rvals := make([]interface{}, len(req.Request))
	for i, v := range req.Request {
		rvals[i] = v
	}

	allowed, enforced, err := h.authorizer.Authorize(rvals...)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &checkResponse{Allowed: allowed, Enforced: enforced})
}
