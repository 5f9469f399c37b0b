package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/catalog"
	"github.com/platinummonkey/gatekeeper/pkg/observability"
)

// Names of the auto-created system roles.
const (
	NameBasic = "BASIC"
	NameAdmin = "ADMIN"
)

// ErrRoleInUse means a role deletion was refused because active
// assignments still reference the role.
var ErrRoleInUse = errors.New("role has active assignments")

// ClaimsInvalidator drops cached claims after a committed mutation.
type ClaimsInvalidator interface {
	InvalidateMany(ctx context.Context, userIDs ...authz.UserID) error
}

// Service implements role management: CRUD on custom roles, assignment and
// revocation, bulk reorder, and system role bootstrap. Every mutation runs
// the hierarchy guard first and invalidates the affected users' claims
// after commit.
type Service struct {
	store       *Store
	catalog     atomic.Pointer[catalog.Catalog]
	guard       *Guard
	invalidator ClaimsInvalidator
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// ServiceConfig configures a role service. Invalidator and Metrics may be
// nil.
type ServiceConfig struct {
	Store       *Store
	Catalog     *catalog.Catalog
	Invalidator ClaimsInvalidator
	Logger      *observability.Logger
	Metrics     *observability.Metrics
}

// NewService creates a role service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	s := &Service{
		store:       cfg.Store,
		guard:       NewGuard(cfg.Store, cfg.Metrics),
		invalidator: cfg.Invalidator,
		logger:      logger,
		metrics:     cfg.Metrics,
	}
	s.catalog.Store(cfg.Catalog)
	return s
}

// SetCatalog swaps the catalog used for grant validation, e.g. after a
// catalog file reload. Existing roles are not revalidated.
func (s *Service) SetCatalog(cat *catalog.Catalog) {
	s.catalog.Store(cat)
}

// Guard returns the hierarchy guard, for callers that need to run checks
// without mutating anything.
func (s *Service) Guard() *Guard {
	return s.guard
}

// GetRole returns a role by UUID.
func (s *Service) GetRole(ctx context.Context, roleUUID string) (*Role, error) {
	return s.store.GetRoleByUUID(ctx, roleUUID)
}

// ListRoles lists the roles of one scope; nil lists global roles.
func (s *Service) ListRoles(ctx context.Context, scope *authz.OrgContext) ([]Role, error) {
	return s.store.ListRoles(ctx, scope)
}

// CreateRole creates a custom role. The actor's hierarchy order must
// strictly exceed the new role's order, and every grant must be known to
// the catalog.
func (s *Service) CreateRole(ctx context.Context, actorID authz.UserID, input CreateRoleInput) (*Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("role name is required")
	}
	if err := s.catalog.Load().ValidateGrants(input.Grants); err != nil {
		return nil, err
	}
	if (input.OrgType == nil) != (input.OrgID == nil) {
		return nil, fmt.Errorf("org type and org id must be set together")
	}

	role := &Role{
		Name:        name,
		Description: input.Description,
		Type:        TypeCustom,
		Order:       input.Order,
		OrgType:     input.OrgType,
		OrgID:       input.OrgID,
		Grants:      input.Grants,
	}
	if role.Grants == nil {
		role.Grants = []catalog.Grant{}
	}

	if err := s.guard.AssertAboveOrder(ctx, actorID, role.Scope(), role.Order); err != nil {
		return nil, err
	}

	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}

	s.countMutation("create")
	s.logger.WithFields(map[string]interface{}{
		"role_uuid": role.UUID,
		"role_name": role.Name,
		"actor_id":  actorID,
	}).Info("role created")
	return role, nil
}

// UpdateRole updates a custom role. Nil input fields are left unchanged.
// Raising the order above the actor's own is refused.
func (s *Service) UpdateRole(ctx context.Context, actorID authz.UserID, roleUUID string, input UpdateRoleInput) (*Role, error) {
	role, err := s.store.GetRoleByUUID(ctx, roleUUID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.AssertCanActOnRole(ctx, actorID, role); err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("role name is required")
		}
		role.Name = name
	}
	if input.Description != nil {
		role.Description = *input.Description
	}
	if input.Order != nil {
		if err := s.guard.AssertAboveOrder(ctx, actorID, role.Scope(), *input.Order); err != nil {
			return nil, err
		}
		role.Order = *input.Order
	}
	if input.Grants != nil {
		if err := s.catalog.Load().ValidateGrants(*input.Grants); err != nil {
			return nil, err
		}
		role.Grants = *input.Grants
	}

	if err := s.store.UpdateRole(ctx, role); err != nil {
		return nil, err
	}

	s.countMutation("update")
	if err := s.invalidateRoleHolders(ctx, role.ID); err != nil {
		return role, err
	}
	return role, nil
}

// DeleteRole deletes a custom role. Deletion is refused with ErrRoleInUse
// while active assignments reference the role.
func (s *Service) DeleteRole(ctx context.Context, actorID authz.UserID, roleUUID string) error {
	role, err := s.store.GetRoleByUUID(ctx, roleUUID)
	if err != nil {
		return err
	}
	if err := s.guard.AssertCanActOnRole(ctx, actorID, role); err != nil {
		return err
	}

	count, err := s.store.CountActiveAssignments(ctx, role.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("cannot delete role %q held by %d users: %w", role.Name, count, ErrRoleInUse)
	}

	if err := s.store.DeleteRole(ctx, role.ID); err != nil {
		return err
	}

	s.countMutation("delete")
	s.logger.WithFields(map[string]interface{}{
		"role_uuid": role.UUID,
		"role_name": role.Name,
		"actor_id":  actorID,
	}).Info("role deleted")
	return nil
}

// AssignRole binds a role to a user. Assigning an already-held role is a
// no-op. The assignment carries the role's scope denormalized.
func (s *Service) AssignRole(ctx context.Context, actorID, userID authz.UserID, roleUUID string) (*Assignment, error) {
	role, err := s.store.GetRoleByUUID(ctx, roleUUID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.AssertCanAssignRole(ctx, actorID, role); err != nil {
		return nil, err
	}

	assignment := &Assignment{
		UserID:  userID,
		RoleID:  role.ID,
		OrgType: role.OrgType,
		OrgID:   role.OrgID,
	}
	created, err := s.store.CreateAssignment(ctx, assignment)
	if err != nil {
		return nil, err
	}
	if !created {
		return assignment, nil
	}

	s.countMutation("assign")
	if err := s.invalidate(ctx, userID); err != nil {
		return assignment, err
	}
	return assignment, nil
}

// RevokeRole removes a user's role assignment.
func (s *Service) RevokeRole(ctx context.Context, actorID, userID authz.UserID, roleUUID string) error {
	role, err := s.store.GetRoleByUUID(ctx, roleUUID)
	if err != nil {
		return err
	}
	if err := s.guard.AssertCanAssignRole(ctx, actorID, role); err != nil {
		return err
	}

	if err := s.store.DeleteAssignment(ctx, userID, role.ID); err != nil {
		return err
	}

	s.countMutation("revoke")
	return s.invalidate(ctx, userID)
}

// ReorderRoles applies a bulk order change, all-or-nothing. Every targeted
// role must be custom, and both its current and new order must be below
// the actor's.
func (s *Service) ReorderRoles(ctx context.Context, actorID authz.UserID, items []ReorderItem) error {
	if len(items) == 0 {
		return nil
	}

	orders := make(map[int64]int, len(items))
	roleIDs := make([]int64, 0, len(items))
	for _, item := range items {
		role, err := s.store.GetRoleByUUID(ctx, item.RoleUUID)
		if err != nil {
			return err
		}
		if err := s.guard.AssertCanActOnRole(ctx, actorID, role); err != nil {
			return err
		}
		if err := s.guard.AssertAboveOrder(ctx, actorID, role.Scope(), item.Order); err != nil {
			return err
		}
		if _, dup := orders[role.ID]; dup {
			return fmt.Errorf("duplicate role %s in reorder request", item.RoleUUID)
		}
		orders[role.ID] = item.Order
		roleIDs = append(roleIDs, role.ID)
	}

	if err := s.store.UpdateRoleOrders(ctx, orders); err != nil {
		return err
	}

	s.countMutation("reorder")

	seen := make(map[authz.UserID]struct{})
	var affected []authz.UserID
	for _, roleID := range roleIDs {
		userIDs, err := s.store.UserIDsForRole(ctx, roleID)
		if err != nil {
			return err
		}
		for _, userID := range userIDs {
			if _, ok := seen[userID]; ok {
				continue
			}
			seen[userID] = struct{}{}
			affected = append(affected, userID)
		}
	}
	return s.invalidate(ctx, affected...)
}

// EnsureSystemRoles creates the BASIC and ADMIN roles of a scope if they do
// not exist yet. Idempotent. ADMIN carries the full wildcard; BASIC starts
// with no grants.
func (s *Service) EnsureSystemRoles(ctx context.Context, scope *authz.OrgContext) (basic, admin *Role, err error) {
	basic, err = s.ensureSystemRole(ctx, scope, NameBasic, TypeBasic, BasicOrder, []catalog.Grant{})
	if err != nil {
		return nil, nil, err
	}
	admin, err = s.ensureSystemRole(ctx, scope, NameAdmin, TypeAdmin, AdminOrder, []catalog.Grant{catalog.GlobalWildcard})
	if err != nil {
		return nil, nil, err
	}
	return basic, admin, nil
}

// BootstrapOrganization ensures a new organization's system roles and makes
// the owner its ADMIN.
func (s *Service) BootstrapOrganization(ctx context.Context, scope authz.OrgContext, ownerID authz.UserID) error {
	_, admin, err := s.EnsureSystemRoles(ctx, &scope)
	if err != nil {
		return err
	}

	assignment := &Assignment{
		UserID:  ownerID,
		RoleID:  admin.ID,
		OrgType: admin.OrgType,
		OrgID:   admin.OrgID,
	}
	created, err := s.store.CreateAssignment(ctx, assignment)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	s.countMutation("bootstrap")
	s.logger.WithFields(map[string]interface{}{
		"org_type": scope.Type,
		"org_id":   scope.ID,
		"owner_id": ownerID,
	}).Info("organization bootstrapped")
	return s.invalidate(ctx, ownerID)
}

func (s *Service) ensureSystemRole(ctx context.Context, scope *authz.OrgContext, name string, roleType RoleType, order int, grants []catalog.Grant) (*Role, error) {
	role, err := s.store.GetRoleByName(ctx, name, scope)
	if err == nil {
		return role, nil
	}
	if !authz.IsNotFound(err) {
		return nil, err
	}

	role = &Role{
		Name:   name,
		Type:   roleType,
		Order:  order,
		Grants: grants,
	}
	if scope != nil {
		orgType := scope.Type
		orgID := scope.ID
		role.OrgType = &orgType
		role.OrgID = &orgID
	}
	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// invalidate drops affected users' cached claims after a committed
// mutation. A failed invalidation is returned so the caller can retry;
// the mutation itself already stands.
func (s *Service) invalidate(ctx context.Context, userIDs ...authz.UserID) error {
	if s.invalidator == nil || len(userIDs) == 0 {
		return nil
	}
	if err := s.invalidator.InvalidateMany(ctx, userIDs...); err != nil {
		s.logger.WithError(err).Error("claims invalidation failed after role mutation")
		return fmt.Errorf("claims invalidation failed: %w", err)
	}
	return nil
}

func (s *Service) invalidateRoleHolders(ctx context.Context, roleID int64) error {
	userIDs, err := s.store.UserIDsForRole(ctx, roleID)
	if err != nil {
		return err
	}
	return s.invalidate(ctx, userIDs...)
}

func (s *Service) countMutation(operation string) {
	if s.metrics != nil {
		s.metrics.RoleMutationsTotal.WithLabelValues(operation).Inc()
	}
}
