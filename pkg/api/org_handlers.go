package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/gatekeeper/pkg/audit"
	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/engine"
	"github.com/platinummonkey/gatekeeper/pkg/membership"
)

// OrgHandlers handles organization bootstrap and membership HTTP requests
type OrgHandlers struct {
	engine *engine.Engine
	audit  *auditSink
}

// NewOrgHandlers creates a new OrgHandlers
func NewOrgHandlers(eng *engine.Engine, sink *auditSink) *OrgHandlers {
	return &OrgHandlers{engine: eng, audit: sink}
}

// RegisterRoutes registers organization routes
func (h *OrgHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/organizations", h.CreateOrganization).Methods("POST")
	router.HandleFunc("/organizations/{org_type}/{org_id}/members", h.ListMembers).Methods("GET")
	router.HandleFunc("/organizations/{org_type}/{org_id}/members", h.AddMember).Methods("POST")
	router.HandleFunc("/organizations/{org_type}/{org_id}/members/{user_id}", h.RemoveMember).Methods("DELETE")
}

type createOrganizationRequest struct {
	OrgType authz.OrgType `json:"org_type"`
	OrgID   authz.OrgID   `json:"org_id"`
	OwnerID authz.UserID  `json:"owner_id"`
}

// CreateOrganization registers an organization with the engine: system
// roles, the owner's membership, and the owner's ADMIN assignment.
func (h *OrgHandlers) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.OrgType == "" || req.OrgID <= 0 || req.OwnerID <= 0 {
		badRequest(w, "org_type, org_id, and owner_id are required")
		return
	}

	scope := authz.OrgContext{Type: req.OrgType, ID: req.OrgID}
	if err := h.engine.CreateOrganization(r.Context(), scope, req.OwnerID); err != nil {
		writeError(w, err)
		return
	}

	orgType, orgID := scopeFields(scope)
	h.audit.emit(r, &audit.Event{
		EventType:    audit.EventTypeOrgBootstrap,
		ResourceType: audit.ResourceTypeOrganization,
		OrgType:      orgType,
		OrgID:        orgID,
		TargetUserID: userField(req.OwnerID),
	})
	w.WriteHeader(http.StatusCreated)
}

// ListMembers lists an organization's active members.
func (h *OrgHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromVars(w, r)
	if !ok {
		return
	}

	members, err := h.engine.Membership.ListMembers(r.Context(), scope.Type, scope.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if members == nil {
		members = []membership.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

type addMemberRequest struct {
	UserID  authz.UserID `json:"user_id"`
	IsAdmin bool         `json:"is_admin"`
	IsOwner bool         `json:"is_owner"`
}

// AddMember adds a user to an organization.
func (h *OrgHandlers) AddMember(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromVars(w, r)
	if !ok {
		return
	}

	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		badRequest(w, "user_id is required")
		return
	}

	member := &membership.Member{
		UserID:  req.UserID,
		OrgType: scope.Type,
		OrgID:   scope.ID,
		IsAdmin: req.IsAdmin,
		IsOwner: req.IsOwner,
	}
	if err := h.engine.Membership.AddMember(r.Context(), member); err != nil {
		writeError(w, err)
		return
	}

	orgType, orgID := scopeFields(scope)
	h.audit.emit(r, &audit.Event{
		EventType:    audit.EventTypeMemberAdd,
		ResourceType: audit.ResourceTypeMembership,
		OrgType:      orgType,
		OrgID:        orgID,
		TargetUserID: userField(req.UserID),
		Metadata:     map[string]interface{}{"is_admin": req.IsAdmin, "is_owner": req.IsOwner},
	})
	writeJSON(w, http.StatusCreated, member)
}

// RemoveMember soft-deletes a user's membership.
func (h *OrgHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromVars(w, r)
	if !ok {
		return
	}
	userID, ok := userIDVar(r)
	if !ok {
		badRequest(w, "invalid user id")
		return
	}

	if err := h.engine.Membership.RemoveMember(r.Context(), userID, scope.Type, scope.ID); err != nil {
		writeError(w, err)
		return
	}

	orgType, orgID := scopeFields(scope)
	h.audit.emit(r, &audit.Event{
		EventType:    audit.EventTypeMemberRemove,
		ResourceType: audit.ResourceTypeMembership,
		OrgType:      orgType,
		OrgID:        orgID,
		TargetUserID: userField(userID),
	})
	w.WriteHeader(http.StatusNoContent)
}

// scopeFromVars parses the {org_type}/{org_id} path segments.
func scopeFromVars(w http.ResponseWriter, r *http.Request) (authz.OrgContext, bool) {
	vars := mux.Vars(r)
	orgID, err := strconv.ParseInt(vars["org_id"], 10, 64)
	if err != nil || orgID <= 0 || vars["org_type"] == "" {
		badRequest(w, "invalid organization scope")
		return authz.OrgContext{}, false
	}
	return authz.OrgContext{Type: authz.OrgType(vars["org_type"]), ID: authz.OrgID(orgID)}, true
}

// scopeFromQuery parses optional ?org_type=&org_id= into a role scope; both
// absent means the global scope.
func scopeFromQuery(w http.ResponseWriter, r *http.Request) (*authz.OrgContext, bool) {
	orgType := r.URL.Query().Get("org_type")
	orgIDRaw := r.URL.Query().Get("org_id")
	if orgType == "" && orgIDRaw == "" {
		return nil, true
	}
	if orgType == "" || orgIDRaw == "" {
		badRequest(w, "org_type and org_id must be given together")
		return nil, false
	}
	orgID, err := strconv.ParseInt(orgIDRaw, 10, 64)
	if err != nil || orgID <= 0 {
		badRequest(w, "invalid org_id")
		return nil, false
	}
	return &authz.OrgContext{Type: authz.OrgType(orgType), ID: authz.OrgID(orgID)}, true
}
