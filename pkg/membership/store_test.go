package membership

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
)

const companyType = authz.OrgType("company")

const testSchema = `
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

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// In-memory sqlite is per-connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return db
}

func TestAddAndGetMember(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	member := &Member{UserID: 1, OrgType: companyType, OrgID: 7, IsOwner: true}
	require.NoError(t, store.AddMember(ctx, member))
	require.NotZero(t, member.ID)

	got, err := store.GetMember(ctx, 1, companyType, 7)
	require.NoError(t, err)
	assert.True(t, got.IsOwner)
	assert.False(t, got.IsAdmin)
	assert.Nil(t, got.DeletedAt)

	ok, err := store.IsMember(ctx, 1, companyType, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.IsMember(ctx, 2, companyType, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveMemberSoftDeletes(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	require.NoError(t, store.AddMember(ctx, &Member{UserID: 1, OrgType: companyType, OrgID: 7}))
	require.NoError(t, store.RemoveMember(ctx, 1, companyType, 7))

	ok, err := store.IsMember(ctx, 1, companyType, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing again is a not-found, not a silent no-op.
	assert.True(t, authz.IsNotFound(store.RemoveMember(ctx, 1, companyType, 7)))
}

func TestAddMemberRestoresSoftDeleted(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	original := &Member{UserID: 1, OrgType: companyType, OrgID: 7, IsOwner: true}
	require.NoError(t, store.AddMember(ctx, original))
	require.NoError(t, store.RemoveMember(ctx, 1, companyType, 7))

	restored := &Member{UserID: 1, OrgType: companyType, OrgID: 7, IsAdmin: true}
	require.NoError(t, store.AddMember(ctx, restored))
	assert.Equal(t, original.ID, restored.ID, "restore reuses the existing row")

	got, err := store.GetMember(ctx, 1, companyType, 7)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)
	assert.False(t, got.IsOwner, "restore applies the new flags")
	assert.Nil(t, got.DeletedAt)
}

func TestListMembersExcludesDeleted(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	require.NoError(t, store.AddMember(ctx, &Member{UserID: 1, OrgType: companyType, OrgID: 7}))
	require.NoError(t, store.AddMember(ctx, &Member{UserID: 2, OrgType: companyType, OrgID: 7}))
	require.NoError(t, store.AddMember(ctx, &Member{UserID: 3, OrgType: companyType, OrgID: 8}))
	require.NoError(t, store.RemoveMember(ctx, 2, companyType, 7))

	members, err := store.ListMembers(ctx, companyType, 7)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, authz.UserID(1), members[0].UserID)
}

func TestOrganizationIDsForUser(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	require.NoError(t, store.AddMember(ctx, &Member{UserID: 1, OrgType: companyType, OrgID: 7}))
	require.NoError(t, store.AddMember(ctx, &Member{UserID: 1, OrgType: companyType, OrgID: 9}))
	require.NoError(t, store.AddMember(ctx, &Member{UserID: 1, OrgType: authz.OrgType("project"), OrgID: 3}))
	require.NoError(t, store.AddMember(ctx, &Member{UserID: 1, OrgType: companyType, OrgID: 8}))
	require.NoError(t, store.RemoveMember(ctx, 1, companyType, 8))

	orgIDs, err := store.OrganizationIDsForUser(ctx, 1, companyType)
	require.NoError(t, err)
	assert.Equal(t, []authz.OrgID{7, 9}, orgIDs)
}

func TestSetFlags(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	require.NoError(t, store.AddMember(ctx, &Member{UserID: 1, OrgType: companyType, OrgID: 7}))
	require.NoError(t, store.SetFlags(ctx, 1, companyType, 7, true, false))

	got, err := store.GetMember(ctx, 1, companyType, 7)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	assert.True(t, authz.IsNotFound(store.SetFlags(ctx, 2, companyType, 7, true, false)))
}

func TestPurgeDeletedHonorsRetention(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewStore(db)

	require.NoError(t, store.AddMember(ctx, &Member{UserID: 1, OrgType: companyType, OrgID: 7}))
	require.NoError(t, store.AddMember(ctx, &Member{UserID: 2, OrgType: companyType, OrgID: 7}))
	require.NoError(t, store.RemoveMember(ctx, 1, companyType, 7))
	require.NoError(t, store.RemoveMember(ctx, 2, companyType, 7))

	// Age one deletion past the retention window.
	old := time.Now().Add(-48 * time.Hour)
	_, err := db.Exec(`UPDATE organization_members SET deleted_at = $1 WHERE user_id = 1`, old)
	require.NoError(t, err)

	purged, err := store.PurgeDeleted(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	// The recently deleted row survives for restore.
	restored := &Member{UserID: 2, OrgType: companyType, OrgID: 7}
	require.NoError(t, store.AddMember(ctx, restored))
	ok, err := store.IsMember(ctx, 2, companyType, 7)
	require.NoError(t, err)
	assert.True(t, ok)
}

// recordingInvalidator captures which users' claims were invalidated.
type recordingInvalidator struct {
	mu      sync.Mutex
	userIDs []authz.UserID
}

func (r *recordingInvalidator) InvalidateMany(_ context.Context, userIDs ...authz.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userIDs = append(r.userIDs, userIDs...)
	return nil
}

func TestServiceInvalidatesAfterMutations(t *testing.T) {
	ctx := context.Background()
	inv := &recordingInvalidator{}
	svc := NewService(NewStore(setupTestDB(t)), inv, nil)

	require.NoError(t, svc.AddMember(ctx, &Member{UserID: 1, OrgType: companyType, OrgID: 7}))
	require.NoError(t, svc.SetFlags(ctx, 1, companyType, 7, true, false))
	require.NoError(t, svc.RemoveMember(ctx, 1, companyType, 7))

	inv.mu.Lock()
	defer inv.mu.Unlock()
	assert.Equal(t, []authz.UserID{1, 1, 1}, inv.userIDs)
}
