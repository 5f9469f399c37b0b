package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/roles"
)

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError maps the engine's error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := ""

	switch {
	case authz.IsImmutableRole(err):
		status = http.StatusConflict
		code = "immutable_role"
	case authz.IsForbidden(err):
		status = http.StatusForbidden
		code = "forbidden"
	case authz.IsNotFound(err):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, roles.ErrRoleInUse):
		status = http.StatusConflict
		code = "role_in_use"
	case authz.IsResolutionError(err):
		status = http.StatusServiceUnavailable
		code = "resolution_failed"
	}

	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, Code: "bad_request"})
}
