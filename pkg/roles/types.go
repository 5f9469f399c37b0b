package roles

import (
	"time"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/catalog"
)

// RoleType distinguishes the auto-created system roles from custom ones.
type RoleType string

const (
	// TypeBasic is the auto-created member role of an organization. No
	// grants by default, immutable.
	TypeBasic RoleType = "BASIC"
	// TypeAdmin is the auto-created admin role of an organization. Holds
	// the global wildcard within its organization, immutable.
	TypeAdmin RoleType = "ADMIN"
	// TypeCustom roles are created and managed by permission-holding
	// actors, subject to the hierarchy guard.
	TypeCustom RoleType = "CUSTOM"
)

// Orders of the auto-created system roles. Hierarchy order gates who may
// mutate or assign a role; it carries no permission semantics.
const (
	BasicOrder = 10
	AdminOrder = 100
)

// Role is a named set of permission grants, either global
// (OrgType/OrgID nil) or bound to one organization.
type Role struct {
	ID          int64           `json:"id"`
	UUID        string          `json:"uuid"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Type        RoleType        `json:"type"`
	Order       int             `json:"order"`
	OrgType     *authz.OrgType  `json:"org_type,omitempty"`
	OrgID       *authz.OrgID    `json:"org_id,omitempty"`
	Grants      []catalog.Grant `json:"grants"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsSystem reports whether the role is one of the auto-created, immutable
// BASIC/ADMIN roles.
func (r *Role) IsSystem() bool {
	return r.Type == TypeBasic || r.Type == TypeAdmin
}

// Scope returns the role's organization scope, or nil for global roles.
func (r *Role) Scope() *authz.OrgContext {
	if r.OrgType == nil {
		return nil
	}
	scope := authz.OrgContext{Type: *r.OrgType}
	if r.OrgID != nil {
		scope.ID = *r.OrgID
	}
	return &scope
}

// Assignment binds a role to a user. OrgType/OrgID are denormalized copies
// of the role's scope so one row states "this grant applies in this scope"
// without joining the role table. ExpiresAt is optional; expired rows are
// excluded by the active predicate and purged by the sweeper.
type Assignment struct {
	ID        int64          `json:"id"`
	UserID    authz.UserID   `json:"user_id"`
	RoleID    int64          `json:"role_id"`
	OrgType   *authz.OrgType `json:"org_type,omitempty"`
	OrgID     *authz.OrgID   `json:"org_id,omitempty"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// CreateRoleInput is the payload for creating a custom role.
type CreateRoleInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Order       int             `json:"order"`
	OrgType     *authz.OrgType  `json:"org_type,omitempty"`
	OrgID       *authz.OrgID    `json:"org_id,omitempty"`
	Grants      []catalog.Grant `json:"grants"`
}

// UpdateRoleInput is the payload for updating a custom role. Nil fields are
// left unchanged.
type UpdateRoleInput struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Order       *int             `json:"order,omitempty"`
	Grants      *[]catalog.Grant `json:"grants,omitempty"`
}

// ReorderItem is one entry of a bulk reorder request.
type ReorderItem struct {
	RoleUUID string `json:"role_uuid"`
	Order    int    `json:"order"`
}
