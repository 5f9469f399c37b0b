package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/gatekeeper/pkg/audit"
	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/engine"
	"github.com/platinummonkey/gatekeeper/pkg/roles"
)

// RoleHandlers handles role management HTTP requests
type RoleHandlers struct {
	engine *engine.Engine
	audit  *auditSink
}

// NewRoleHandlers creates a new RoleHandlers
func NewRoleHandlers(eng *engine.Engine, sink *auditSink) *RoleHandlers {
	return &RoleHandlers{engine: eng, audit: sink}
}

// RegisterRoutes registers role routes
func (h *RoleHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/roles", h.ListRoles).Methods("GET")
	router.HandleFunc("/roles", h.CreateRole).Methods("POST")
	router.HandleFunc("/roles/reorder", h.ReorderRoles).Methods("POST")
	router.HandleFunc("/roles/{uuid}", h.GetRole).Methods("GET")
	router.HandleFunc("/roles/{uuid}", h.UpdateRole).Methods("PATCH")
	router.HandleFunc("/roles/{uuid}", h.DeleteRole).Methods("DELETE")
	router.HandleFunc("/roles/{uuid}/assignments", h.AssignRole).Methods("POST")
	router.HandleFunc("/roles/{uuid}/assignments/{user_id}", h.RevokeRole).Methods("DELETE")
}

// ListRoles lists roles, globally or within one organization scope.
func (h *RoleHandlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromQuery(w, r)
	if !ok {
		return
	}

	list, err := h.engine.Roles.ListRoles(r.Context(), scope)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []roles.Role{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetRole returns one role by UUID.
func (h *RoleHandlers) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.engine.Roles.GetRole(r.Context(), mux.Vars(r)["uuid"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// CreateRole creates a custom role.
func (h *RoleHandlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing actor", Code: "unauthorized"})
		return
	}

	var input roles.CreateRoleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	role, err := h.engine.Roles.CreateRole(r.Context(), actorID, input)
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit.emit(r, &audit.Event{
		EventType:    audit.EventTypeRoleCreate,
		ResourceType: audit.ResourceTypeRole,
		ResourceID:   role.UUID,
		Message:      "created role " + role.Name,
		Metadata:     map[string]interface{}{"order": role.Order},
	})
	writeJSON(w, http.StatusCreated, role)
}

// UpdateRole updates a custom role; absent fields are left unchanged.
func (h *RoleHandlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing actor", Code: "unauthorized"})
		return
	}

	var input roles.UpdateRoleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	role, err := h.engine.Roles.UpdateRole(r.Context(), actorID, mux.Vars(r)["uuid"], input)
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit.emit(r, &audit.Event{
		EventType:    audit.EventTypeRoleUpdate,
		ResourceType: audit.ResourceTypeRole,
		ResourceID:   role.UUID,
		Message:      "updated role " + role.Name,
	})
	writeJSON(w, http.StatusOK, role)
}

// DeleteRole deletes a custom role with no active assignments.
func (h *RoleHandlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing actor", Code: "unauthorized"})
		return
	}

	roleUUID := mux.Vars(r)["uuid"]
	if err := h.engine.Roles.DeleteRole(r.Context(), actorID, roleUUID); err != nil {
		writeError(w, err)
		return
	}

	h.audit.emit(r, &audit.Event{
		EventType:    audit.EventTypeRoleDelete,
		ResourceType: audit.ResourceTypeRole,
		ResourceID:   roleUUID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// ReorderRoles applies a bulk hierarchy order change, all-or-nothing.
func (h *RoleHandlers) ReorderRoles(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing actor", Code: "unauthorized"})
		return
	}

	var items []roles.ReorderItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if err := h.engine.Roles.ReorderRoles(r.Context(), actorID, items); err != nil {
		writeError(w, err)
		return
	}

	h.audit.emit(r, &audit.Event{
		EventType:    audit.EventTypeRoleReorder,
		ResourceType: audit.ResourceTypeRole,
		Metadata:     map[string]interface{}{"roles": len(items)},
	})
	w.WriteHeader(http.StatusNoContent)
}

type assignRequest struct {
	UserID authz.UserID `json:"user_id"`
}

// AssignRole binds the role to a user.
func (h *RoleHandlers) AssignRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing actor", Code: "unauthorized"})
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		badRequest(w, "user_id is required")
		return
	}

	roleUUID := mux.Vars(r)["uuid"]
	assignment, err := h.engine.Roles.AssignRole(r.Context(), actorID, req.UserID, roleUUID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit.emit(r, &audit.Event{
		EventType:    audit.EventTypeAssignmentCreate,
		ResourceType: audit.ResourceTypeAssignment,
		ResourceID:   roleUUID,
		TargetUserID: userField(req.UserID),
	})
	writeJSON(w, http.StatusCreated, assignment)
}

// RevokeRole removes a user's role assignment.
func (h *RoleHandlers) RevokeRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing actor", Code: "unauthorized"})
		return
	}

	userID, ok := userIDVar(r)
	if !ok {
		badRequest(w, "invalid user id")
		return
	}

	roleUUID := mux.Vars(r)["uuid"]
	if err := h.engine.Roles.RevokeRole(r.Context(), actorID, userID, roleUUID); err != nil {
		writeError(w, err)
		return
	}

	h.audit.emit(r, &audit.Event{
		EventType:    audit.EventTypeAssignmentRevoke,
		ResourceType: audit.ResourceTypeAssignment,
		ResourceID:   roleUUID,
		TargetUserID: userField(userID),
	})
	w.WriteHeader(http.StatusNoContent)
}
