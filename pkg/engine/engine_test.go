package engine

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/catalog"
	"github.com/platinummonkey/gatekeeper/pkg/claimcache"
	"github.com/platinummonkey/gatekeeper/pkg/roles"
)

const companyType = authz.OrgType("company")

const (
	ownerID    = authz.UserID(1)
	strangerID = authz.UserID(2)
)

// testSchema mirrors the production migrations with sqlite column types.
const testSchema = `
	CREATE TABLE roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT,
		type TEXT NOT NULL,
		role_order INTEGER NOT NULL DEFAULT 0,
		org_type TEXT,
		org_id INTEGER,
		grants TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(name, org_type, org_id)
	);

	CREATE TABLE user_roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		org_type TEXT,
		org_id INTEGER,
		expires_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(user_id, role_id)
	);

	CREATE TABLE organization_members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		org_type TEXT NOT NULL,
		org_id INTEGER NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		is_owner BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		deleted_at TIMESTAMP,
		UNIQUE(user_id, org_type, org_id)
	);
`

func setupEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// In-memory sqlite is per-connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return New(Config{
		DB:           db,
		CacheBackend: claimcache.NewMemoryBackend(100, time.Minute),
	})
}

func TestUserWithNoRolesGetsEmptyClaims(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	claims, err := eng.GetClaims(ctx, strangerID)
	require.NoError(t, err)
	assert.True(t, claims.Empty())
	assert.Empty(t, claims.Organizations)

	ok, err := eng.Check(ctx, strangerID, "projects:read", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = eng.Check(ctx, strangerID, "projects:read", &authz.OrgContext{Type: companyType, ID: 1})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateOrganizationGrantsOwnerAdmin(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	scope := authz.OrgContext{Type: companyType, ID: 7}
	require.NoError(t, eng.CreateOrganization(ctx, scope, ownerID))

	// The owner's claims carry the ADMIN wildcard under the organization.
	claims, err := eng.GetClaims(ctx, ownerID)
	require.NoError(t, err)
	assert.True(t, claims.OrgGrants(companyType, 7).Has("*"))

	ok, err := eng.Check(ctx, ownerID, "projects:create", &scope)
	require.NoError(t, err)
	assert.True(t, ok)

	// But nothing outside the organization.
	ok, err = eng.Check(ctx, ownerID, "projects:create", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	// An unrelated user gets nothing.
	ok, err = eng.Check(ctx, strangerID, "projects:create", &scope)
	require.NoError(t, err)
	assert.False(t, ok)

	// The owner's membership row exists with both flags.
	member, err := eng.Membership.GetMember(ctx, ownerID, companyType, 7)
	require.NoError(t, err)
	assert.True(t, member.IsOwner)
	assert.True(t, member.IsAdmin)
}

func TestRevokedRoleStopsGrantingAfterInvalidation(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	scope := authz.OrgContext{Type: companyType, ID: 7}
	require.NoError(t, eng.CreateOrganization(ctx, scope, ownerID))

	editor, err := eng.Roles.CreateRole(ctx, ownerID, roles.CreateRoleInput{
		Name:    "Editor",
		Order:   50,
		OrgType: &scope.Type,
		OrgID:   &scope.ID,
		Grants:  grantList("projects:read", "projects:update"),
	})
	require.NoError(t, err)

	_, err = eng.Roles.AssignRole(ctx, ownerID, strangerID, editor.UUID)
	require.NoError(t, err)

	ok, err := eng.Check(ctx, strangerID, "projects:update", &scope)
	require.NoError(t, err)
	assert.True(t, ok)

	// Revocation invalidates synchronously: the next check sees the change.
	require.NoError(t, eng.Roles.RevokeRole(ctx, ownerID, strangerID, editor.UUID))

	ok, err = eng.Check(ctx, strangerID, "projects:update", &scope)
	require.NoError(t, err)
	assert.False(t, ok)

	claims, err := eng.GetClaims(ctx, strangerID)
	require.NoError(t, err)
	assert.True(t, claims.Empty())
}

func TestAccessibleOrganizationsEndToEnd(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	require.NoError(t, eng.CreateOrganization(ctx, authz.OrgContext{Type: companyType, ID: 7}, ownerID))
	require.NoError(t, eng.CreateOrganization(ctx, authz.OrgContext{Type: companyType, ID: 8}, strangerID))

	got, err := eng.Access.AccessibleOrganizationIDs(ctx, ownerID, companyType, "companies:read")
	require.NoError(t, err)
	assert.Equal(t, []authz.OrgID{7}, got)

	// A global auditor sees every organization of the type.
	auditor, err := eng.Roles.CreateRole(ctx, ownerID, roles.CreateRoleInput{
		Name:   "Auditor",
		Order:  20,
		Grants: grantList("companies:read"),
	})
	require.Error(t, err, "org admin has no global hierarchy standing")

	// Bootstrap a global superuser directly through the store, the way an
	// operator seed script would.
	super := seedGlobalRole(t, eng, "Superuser", 1000, "*")
	seedAssignment(t, eng, ownerID, super)
	require.NoError(t, eng.InvalidateClaims(ctx, ownerID))

	auditor, err = eng.Roles.CreateRole(ctx, ownerID, roles.CreateRoleInput{
		Name:   "Auditor",
		Order:  20,
		Grants: grantList("companies:read"),
	})
	require.NoError(t, err)
	_, err = eng.Roles.AssignRole(ctx, ownerID, strangerID, auditor.UUID)
	require.NoError(t, err)

	got, err = eng.Access.AccessibleOrganizationIDs(ctx, strangerID, companyType, "companies:read")
	require.NoError(t, err)
	assert.Equal(t, []authz.OrgID{7, 8}, got)
}

func TestSystemRolesImmutableEvenForSuperuser(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	scope := authz.OrgContext{Type: companyType, ID: 7}
	require.NoError(t, eng.CreateOrganization(ctx, scope, ownerID))

	super := seedGlobalRole(t, eng, "Superuser", 1000, "*")
	seedAssignment(t, eng, ownerID, super)

	admin, err := eng.RoleStore().GetRoleByName(ctx, roles.NameAdmin, &scope)
	require.NoError(t, err)

	newName := "Renamed"
	_, err = eng.Roles.UpdateRole(ctx, ownerID, admin.UUID, roles.UpdateRoleInput{Name: &newName})
	assert.True(t, authz.IsImmutableRole(err))

	err = eng.Roles.DeleteRole(ctx, ownerID, admin.UUID)
	assert.True(t, authz.IsImmutableRole(err))
}

func grantList(keys ...string) []catalog.Grant {
	grants := make([]catalog.Grant, 0, len(keys))
	for _, key := range keys {
		grants = append(grants, catalog.Grant(key))
	}
	return grants
}

func seedGlobalRole(t *testing.T, eng *Engine, name string, order int, grants ...string) *roles.Role {
	t.Helper()
	role := &roles.Role{Name: name, Type: roles.TypeCustom, Order: order, Grants: grantList(grants...)}
	require.NoError(t, eng.RoleStore().CreateRole(context.Background(), role))
	return role
}

func seedAssignment(t *testing.T, eng *Engine, userID authz.UserID, role *roles.Role) {
	t.Helper()
	created, err := eng.RoleStore().CreateAssignment(context.Background(), &roles.Assignment{
		UserID:  userID,
		RoleID:  role.ID,
		OrgType: role.OrgType,
		OrgID:   role.OrgID,
	})
	require.NoError(t, err)
	require.True(t, created)
}
