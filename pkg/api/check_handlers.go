package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/gatekeeper/pkg/audit"
	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/engine"
)

// CheckHandlers handles permission-check and claims HTTP requests
type CheckHandlers struct {
	engine *engine.Engine
	audit  *auditSink
}

// NewCheckHandlers creates a new CheckHandlers
func NewCheckHandlers(eng *engine.Engine, sink *auditSink) *CheckHandlers {
	return &CheckHandlers{engine: eng, audit: sink}
}

// RegisterRoutes registers check and claims routes
func (h *CheckHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/check", h.Check).Methods("POST")
	router.HandleFunc("/users/{user_id}/claims", h.GetClaims).Methods("GET")
	router.HandleFunc("/users/{user_id}/claims", h.InvalidateClaims).Methods("DELETE")
}

type checkRequest struct {
	UserID     authz.UserID   `json:"user_id"`
	Permission string         `json:"permission"`
	OrgType    *authz.OrgType `json:"org_type,omitempty"`
	OrgID      *authz.OrgID   `json:"org_id,omitempty"`
}

type checkResponse struct {
	Granted bool `json:"granted"`
}

// Check evaluates one permission for a user, optionally in an organization
// scope.
func (h *CheckHandlers) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.UserID <= 0 {
		badRequest(w, "user_id is required")
		return
	}

	perm, err := h.engine.Catalog().ParseKey(req.Permission)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var orgCtx *authz.OrgContext
	if req.OrgType != nil {
		if req.OrgID == nil {
			badRequest(w, "org_id is required with org_type")
			return
		}
		orgCtx = &authz.OrgContext{Type: *req.OrgType, ID: *req.OrgID}
	}

	granted, err := h.engine.Check(r.Context(), req.UserID, perm, orgCtx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{Granted: granted})
}

// GetClaims returns a user's resolved claims snapshot.
func (h *CheckHandlers) GetClaims(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDVar(r)
	if !ok {
		badRequest(w, "invalid user id")
		return
	}

	claims, err := h.engine.GetClaims(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

// InvalidateClaims drops a user's cached claims.
func (h *CheckHandlers) InvalidateClaims(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDVar(r)
	if !ok {
		badRequest(w, "invalid user id")
		return
	}

	if err := h.engine.InvalidateClaims(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}

	h.audit.emit(r, &audit.Event{
		EventType:    audit.EventTypeClaimsInvalidate,
		ResourceType: audit.ResourceTypeClaims,
		TargetUserID: userField(userID),
	})
	w.WriteHeader(http.StatusNoContent)
}

func userIDVar(r *http.Request) (authz.UserID, bool) {
	raw := mux.Vars(r)["user_id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return authz.UserID(id), true
}
