package roles

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/catalog"
)

// activeAssignment is the single liveness predicate for user_roles rows.
// Every query that feeds permission computation must use it.
const activeAssignment = "(ur.expires_at IS NULL OR ur.expires_at > CURRENT_TIMESTAMP)"

// Store handles role and assignment persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new role store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const roleColumns = "id, uuid, name, description, type, role_order, org_type, org_id, grants, created_at, updated_at"

// CreateRole creates a new role
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	grantsJSON, err := json.Marshal(role.Grants)
	if err != nil {
		return fmt.Errorf("failed to marshal grants: %w", err)
	}

	if role.UUID == "" {
		role.UUID = uuid.NewString()
	}

	query := `
		INSERT INTO roles (uuid, name, description, type, role_order, org_type, org_id, grants, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	now := time.Now()
	err = s.db.QueryRowContext(ctx, query,
		role.UUID,
		role.Name,
		role.Description,
		role.Type,
		role.Order,
		role.OrgType,
		role.OrgID,
		string(grantsJSON),
		now,
		now,
	).Scan(&role.ID)

	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`
	role, err := scanRole(s.db.QueryRowContext(ctx, query, roleID))
	if err == sql.ErrNoRows {
		return nil, authz.NotFound("role", roleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetRoleByUUID retrieves a role by UUID
func (s *Store) GetRoleByUUID(ctx context.Context, roleUUID string) (*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE uuid = $1`
	role, err := scanRole(s.db.QueryRowContext(ctx, query, roleUUID))
	if err == sql.ErrNoRows {
		return nil, authz.NotFound("role", roleUUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetRoleByName retrieves a role by name within one scope. A nil scope
// looks up global roles.
func (s *Store) GetRoleByName(ctx context.Context, name string, scope *authz.OrgContext) (*Role, error) {
	var row *sql.Row
	if scope == nil {
		query := `SELECT ` + roleColumns + ` FROM roles WHERE name = $1 AND org_type IS NULL`
		row = s.db.QueryRowContext(ctx, query, name)
	} else {
		query := `SELECT ` + roleColumns + ` FROM roles WHERE name = $1 AND org_type = $2 AND org_id = $3`
		row = s.db.QueryRowContext(ctx, query, name, scope.Type, scope.ID)
	}

	role, err := scanRole(row)
	if err == sql.ErrNoRows {
		return nil, authz.NotFound("role", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// ListRoles lists roles in one scope, ordered by descending hierarchy
// order. A nil scope lists global roles.
func (s *Store) ListRoles(ctx context.Context, scope *authz.OrgContext) ([]Role, error) {
	var rows *sql.Rows
	var err error
	if scope == nil {
		query := `SELECT ` + roleColumns + ` FROM roles WHERE org_type IS NULL ORDER BY role_order DESC, name ASC`
		rows, err = s.db.QueryContext(ctx, query)
	} else {
		query := `SELECT ` + roleColumns + ` FROM roles WHERE org_type = $1 AND org_id = $2 ORDER BY role_order DESC, name ASC`
		rows, err = s.db.QueryContext(ctx, query, scope.Type, scope.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

// UpdateRole updates a role's name, description, order, and grants
func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	grantsJSON, err := json.Marshal(role.Grants)
	if err != nil {
		return fmt.Errorf("failed to marshal grants: %w", err)
	}

	query := `
		UPDATE roles
		SET name = $1, description = $2, role_order = $3, grants = $4, updated_at = $5
		WHERE id = $6
	`

	role.UpdatedAt = time.Now()
	result, err := s.db.ExecContext(ctx, query,
		role.Name,
		role.Description,
		role.Order,
		string(grantsJSON),
		role.UpdatedAt,
		role.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return authz.NotFound("role", role.ID)
	}
	return nil
}

// DeleteRole deletes a role by ID. Callers enforce the zero-assignments
// policy before calling.
func (s *Store) DeleteRole(ctx context.Context, roleID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return authz.NotFound("role", roleID)
	}
	return nil
}

// UpdateRoleOrders applies a batch of order changes in one transaction,
// all-or-nothing.
func (s *Store) UpdateRoleOrders(ctx context.Context, orders map[int64]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for roleID, order := range orders {
		result, err := tx.ExecContext(ctx,
			`UPDATE roles SET role_order = $1, updated_at = $2 WHERE id = $3`,
			order, now, roleID)
		if err != nil {
			return fmt.Errorf("failed to update role %d order: %w", roleID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return authz.NotFound("role", roleID)
		}
	}

	return tx.Commit()
}

// CreateAssignment binds a role to a user. The org scope columns are
// denormalized from the role by the service layer. Returns false when the
// (user, role) pair already exists.
func (s *Store) CreateAssignment(ctx context.Context, assignment *Assignment) (bool, error) {
	query := `
		INSERT INTO user_roles (user_id, role_id, org_type, org_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`

	now := time.Now()
	result, err := s.db.ExecContext(ctx, query,
		assignment.UserID,
		assignment.RoleID,
		assignment.OrgType,
		assignment.OrgID,
		assignment.ExpiresAt,
		now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create assignment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	assignment.CreatedAt = now
	return affected > 0, nil
}

// DeleteAssignment removes a user's role assignment
func (s *Store) DeleteAssignment(ctx context.Context, userID authz.UserID, roleID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`,
		userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return authz.NotFound("assignment", fmt.Sprintf("user %d role %d", userID, roleID))
	}
	return nil
}

// CountActiveAssignments counts the active assignments of a role
func (s *Store) CountActiveAssignments(ctx context.Context, roleID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM user_roles ur WHERE ur.role_id = $1 AND ` + activeAssignment

	var count int64
	if err := s.db.QueryRowContext(ctx, query, roleID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count assignments: %w", err)
	}
	return count, nil
}

// UserIDsForRole lists the users holding an active assignment of a role,
// used to invalidate their claims after a role mutation.
func (s *Store) UserIDsForRole(ctx context.Context, roleID int64) ([]authz.UserID, error) {
	query := `SELECT ur.user_id FROM user_roles ur WHERE ur.role_id = $1 AND ` + activeAssignment

	rows, err := s.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role users: %w", err)
	}
	defer rows.Close()

	var userIDs []authz.UserID
	for rows.Next() {
		var userID authz.UserID
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, rows.Err()
}

// ActiveRoleGrants lists a user's active assignments joined to their roles'
// grants. This is the resolver's assignment source.
func (s *Store) ActiveRoleGrants(ctx context.Context, userID authz.UserID) ([]authz.RoleGrant, error) {
	query := `
		SELECT r.id, ur.org_type, ur.org_id, r.grants
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1 AND ` + activeAssignment

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role grants: %w", err)
	}
	defer rows.Close()

	var grants []authz.RoleGrant
	for rows.Next() {
		var rg authz.RoleGrant
		var orgType sql.NullString
		var orgID sql.NullInt64
		var grantsJSON string

		if err := rows.Scan(&rg.RoleID, &orgType, &orgID, &grantsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan role grant: %w", err)
		}
		if orgType.Valid {
			t := authz.OrgType(orgType.String)
			rg.OrgType = &t
		}
		if orgID.Valid {
			id := authz.OrgID(orgID.Int64)
			rg.OrgID = &id
		}
		if err := json.Unmarshal([]byte(grantsJSON), &rg.Grants); err != nil {
			return nil, fmt.Errorf("failed to unmarshal grants: %w", err)
		}
		grants = append(grants, rg)
	}
	return grants, rows.Err()
}

// HighestOrder returns the maximum hierarchy order across a user's active
// roles in the relevant scope: global roles plus, when a scope is given,
// roles bound to that organization. The second return is false when the
// user holds no roles there, which fails every hierarchy check.
func (s *Store) HighestOrder(ctx context.Context, userID authz.UserID, scope *authz.OrgContext) (int, bool, error) {
	var row *sql.Row
	if scope == nil {
		query := `
			SELECT MAX(r.role_order)
			FROM user_roles ur
			JOIN roles r ON r.id = ur.role_id
			WHERE ur.user_id = $1 AND r.org_type IS NULL AND ` + activeAssignment
		row = s.db.QueryRowContext(ctx, query, userID)
	} else {
		query := `
			SELECT MAX(r.role_order)
			FROM user_roles ur
			JOIN roles r ON r.id = ur.role_id
			WHERE ur.user_id = $1
			  AND (r.org_type IS NULL OR (r.org_type = $2 AND r.org_id = $3))
			  AND ` + activeAssignment
		row = s.db.QueryRowContext(ctx, query, userID, scope.Type, scope.ID)
	}

	var max sql.NullInt64
	if err := row.Scan(&max); err != nil {
		return 0, false, fmt.Errorf("failed to compute highest order: %w", err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return int(max.Int64), true, nil
}

// PurgeExpiredAssignments deletes assignments past their expiry. Called by
// the sweeper; the active predicate already hides these rows from reads.
func (s *Store) PurgeExpiredAssignments(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE expires_at IS NOT NULL AND expires_at <= CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired assignments: %w", err)
	}
	return result.RowsAffected()
}

// scanRole scans a role from a database row
func scanRole(scanner interface {
	Scan(dest ...interface{}) error
}) (*Role, error) {
	var role Role
	var description sql.NullString
	var orgType sql.NullString
	var orgID sql.NullInt64
	var grantsJSON string

	err := scanner.Scan(
		&role.ID,
		&role.UUID,
		&role.Name,
		&description,
		&role.Type,
		&role.Order,
		&orgType,
		&orgID,
		&grantsJSON,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		role.Description = description.String
	}
	if orgType.Valid {
		t := authz.OrgType(orgType.String)
		role.OrgType = &t
	}
	if orgID.Valid {
		id := authz.OrgID(orgID.Int64)
		role.OrgID = &id
	}
	if err := json.Unmarshal([]byte(grantsJSON), &role.Grants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grants: %w", err)
	}
	if role.Grants == nil {
		role.Grants = []catalog.Grant{}
	}

	return &role, nil
}
