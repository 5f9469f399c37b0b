package roles

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the role store migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					uuid UUID NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					type VARCHAR(16) NOT NULL,
					role_order INTEGER NOT NULL DEFAULT 0,
					org_type VARCHAR(64),
					org_id BIGINT,
					grants JSONB NOT NULL DEFAULT '[]',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CHECK (org_id IS NULL OR org_type IS NOT NULL),
					UNIQUE(name, org_type, org_id)
				);

				CREATE INDEX idx_roles_org_scope ON roles(org_type, org_id);
				CREATE INDEX idx_roles_type ON roles(type);
			`,
		},
		{
			Version:     2,
			Description: "Create user_roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_roles (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					org_type VARCHAR(64),
					org_id BIGINT,
					expires_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, role_id)
				);

				CREATE INDEX idx_user_roles_user_id ON user_roles(user_id);
				CREATE INDEX idx_user_roles_role_id ON user_roles(role_id);
				CREATE INDEX idx_user_roles_expires_at ON user_roles(expires_at);
			`,
		},
	}
}

// RunMigrations applies all role store migrations in order
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, migration := range GetMigrations() {
		if _, err := db.ExecContext(ctx, migration.SQL); err != nil {
			return fmt.Errorf("role migration %d (%s) failed: %w",
				migration.Version, migration.Description, err)
		}
	}
	return nil
}
