package handler

import (
	"fmt"
	"net/http"

	"github.com/bcnelson/casbin-dynamodb-adapter/internal/authz"
)

// PolicyHandler handles policy management endpoints.
type PolicyHandler struct {
	authorizer *authz.Authorizer
}

// NewPolicyHandler creates a new PolicyHandler.
func NewPolicyHandler(authorizer *authz.Authorizer) *PolicyHandler {
	return &PolicyHandler{authorizer: authorizer}
}

type policyRequest struct {
	Ptype string   `json:"ptype"`
	Rule  []string `json:"rule"`
}

type policiesRequest struct {
	Ptype string     `json:"ptype"`
	Rules [][]string `json:"rules"`
}

type filterRequest struct {
	Ptype       string   `json:"ptype"`
	FieldIndex  int      `json:"field_index"`
	FieldValues []string `json:"field_values"`
}

func (req *policyRequest) validate() error {
	if req.Ptype == "" || len(req.Rule) == 0 {
		return fmt.Errorf("%w: ptype and rule are required", errInvalidInput)
	}
	return nil
}

func (req *policiesRequest) validate() error {
	if req.Ptype == "" || len(req.Rules) == 0 {
		return fmt.Errorf("%w: ptype and rules are required", errInvalidInput)
	}
	return nil
}

// List returns the rules of one policy type (?ptype=, default "p").
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	ptype := r.URL.Query().Get("ptype")
	if ptype == "" {
		ptype = "p"
	}

	rules := h.authorizer.Policies(ptype)
	if rules == nil {
		rules = [][]string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"ptype": ptype, "rules": rules})
}

// Add adds a single rule.
func (h *PolicyHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		handleError(w, err)
		return
	}

	added, err := h.authorizer.AddPolicy(req.Ptype, req.Rule)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]bool{"added": added})
}

// AddBatch adds multiple rules.
func (h *PolicyHandler) AddBatch(w http.ResponseWriter, r *http.Request) {
	var req policiesRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		handleError(w, err)
		return
	}

	added, err := h.authorizer.AddPolicies(req.Ptype, req.Rules)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]bool{"added": added})
}

// Remove removes a single rule. Removing an absent rule is not an error.
func (h *PolicyHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		handleError(w, err)
		return
	}

	removed, err := h.authorizer.RemovePolicy(req.Ptype, req.Rule)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// RemoveBatch removes multiple rules.
func (h *PolicyHandler) RemoveBatch(w http.ResponseWriter, r *http.Request) {
	var req policiesRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		handleError(w, err)
		return
	}

	removed, err := h.authorizer.RemovePolicies(req.Ptype, req.Rules)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// RemoveFiltered removes all rules matching a positional field pattern.
func (h *PolicyHandler) RemoveFiltered(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}
	if req.Ptype == "" || len(req.FieldValues) == 0 {
		handleError(w, fmt.Errorf("%w: ptype and field_values are required", errInvalidInput))
		return
	}

	removed, err := h.authorizer.RemoveFiltered(req.Ptype, req.FieldIndex, req.FieldValues...)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// Reload re-reads the full policy set from the store.
func (h *PolicyHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.authorizer.Reload(); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}
