package membership

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
)

// Member is one user's membership in one organization. Removal is a soft
// delete: DeletedAt is set, the row stays for restore and audit until the
// retention sweeper purges it.
type Member struct {
	ID        int64          `json:"id"`
	UserID    authz.UserID   `json:"user_id"`
	OrgType   authz.OrgType  `json:"org_type"`
	OrgID     authz.OrgID    `json:"org_id"`
	IsAdmin   bool           `json:"is_admin"`
	IsOwner   bool           `json:"is_owner"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
}

// activeMember is the single liveness predicate for membership rows.
const activeMember = "deleted_at IS NULL"

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the membership store migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organization_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organization_members (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL,
					org_type VARCHAR(64) NOT NULL,
					org_id BIGINT NOT NULL,
					is_admin BOOLEAN NOT NULL DEFAULT FALSE,
					is_owner BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMP,
					UNIQUE(user_id, org_type, org_id)
				);

				CREATE INDEX idx_org_members_user ON organization_members(user_id);
				CREATE INDEX idx_org_members_org ON organization_members(org_type, org_id);
			`,
		},
	}
}

// RunMigrations applies all membership store migrations in order
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, migration := range GetMigrations() {
		if _, err := db.ExecContext(ctx, migration.SQL); err != nil {
			return fmt.Errorf("membership migration %d (%s) failed: %w",
				migration.Version, migration.Description, err)
		}
	}
	return nil
}
