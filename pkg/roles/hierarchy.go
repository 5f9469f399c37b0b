package roles

import (
	"context"
	"fmt"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/observability"
)

// Guard enforces the role hierarchy: an actor may only mutate or assign
// roles strictly below their own highest order in the relevant scope.
// Hierarchy order gates role administration only; it never grants or
// denies permissions by itself.
type Guard struct {
	store   *Store
	metrics *observability.Metrics
}

// NewGuard creates a hierarchy guard backed by the role store.
func NewGuard(store *Store, metrics *observability.Metrics) *Guard {
	return &Guard{store: store, metrics: metrics}
}

// AssertCanActOnRole checks that the actor may mutate (update, delete,
// reorder) the given role. System roles are immutable for everyone.
func (g *Guard) AssertCanActOnRole(ctx context.Context, actorID authz.UserID, role *Role) error {
	if role.IsSystem() {
		return &authz.ImmutableRoleError{RoleName: role.Name}
	}
	return g.assertAboveOrder(ctx, actorID, role.Scope(), role.Order, role.Name)
}

// AssertCanAssignRole checks that the actor may assign or revoke the given
// role. System roles are assignable; only the order comparison applies.
func (g *Guard) AssertCanAssignRole(ctx context.Context, actorID authz.UserID, role *Role) error {
	return g.assertAboveOrder(ctx, actorID, role.Scope(), role.Order, role.Name)
}

// AssertAboveOrder checks that the actor's highest order in scope strictly
// exceeds the given order. Used for operations that target an order rather
// than an existing role, like creating a role at a chosen rank.
func (g *Guard) AssertAboveOrder(ctx context.Context, actorID authz.UserID, scope *authz.OrgContext, order int) error {
	return g.assertAboveOrder(ctx, actorID, scope, order, "")
}

func (g *Guard) assertAboveOrder(ctx context.Context, actorID authz.UserID, scope *authz.OrgContext, order int, roleName string) error {
	highest, ok, err := g.store.HighestOrder(ctx, actorID, scope)
	if err != nil {
		return fmt.Errorf("failed to compute actor hierarchy order: %w", err)
	}
	// An actor with no roles in scope fails every hierarchy check.
	if ok && highest > order {
		return nil
	}

	if g.metrics != nil {
		g.metrics.HierarchyDenialsTotal.Inc()
	}
	if roleName != "" {
		return authz.Forbidden("role %q is not below your hierarchy order", roleName)
	}
	return authz.Forbidden("order %d is not below your hierarchy order", order)
}
