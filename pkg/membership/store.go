package membership

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
)

// Store handles organization membership persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new membership store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const memberColumns = "id, user_id, org_type, org_id, is_admin, is_owner, created_at, deleted_at"

// AddMember adds a user to an organization. If a soft-deleted row exists for
// the pair, it is restored with the new flags instead of inserted.
func (s *Store) AddMember(ctx context.Context, member *Member) error {
	existing, err := s.getAnyMember(ctx, member.UserID, member.OrgType, member.OrgID)
	if err != nil && !authz.IsNotFound(err) {
		return err
	}
	if existing != nil {
		query := `
			UPDATE organization_members
			SET is_admin = $1, is_owner = $2, deleted_at = NULL
			WHERE id = $3
		`
		if _, err := s.db.ExecContext(ctx, query, member.IsAdmin, member.IsOwner, existing.ID); err != nil {
			return fmt.Errorf("failed to restore member: %w", err)
		}
		member.ID = existing.ID
		member.CreatedAt = existing.CreatedAt
		member.DeletedAt = nil
		return nil
	}

	query := `
		INSERT INTO organization_members (user_id, org_type, org_id, is_admin, is_owner, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	now := time.Now()
	err = s.db.QueryRowContext(ctx, query,
		member.UserID,
		member.OrgType,
		member.OrgID,
		member.IsAdmin,
		member.IsOwner,
		now,
	).Scan(&member.ID)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	member.CreatedAt = now
	return nil
}

// RemoveMember soft-deletes a user's membership
func (s *Store) RemoveMember(ctx context.Context, userID authz.UserID, orgType authz.OrgType, orgID authz.OrgID) error {
	query := `
		UPDATE organization_members
		SET deleted_at = $1
		WHERE user_id = $2 AND org_type = $3 AND org_id = $4 AND ` + activeMember

	result, err := s.db.ExecContext(ctx, query, time.Now(), userID, orgType, orgID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return authz.NotFound("membership", fmt.Sprintf("user %d in %s/%d", userID, orgType, orgID))
	}
	return nil
}

// GetMember returns a user's active membership in an organization
func (s *Store) GetMember(ctx context.Context, userID authz.UserID, orgType authz.OrgType, orgID authz.OrgID) (*Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM organization_members
		WHERE user_id = $1 AND org_type = $2 AND org_id = $3 AND ` + activeMember

	member, err := scanMember(s.db.QueryRowContext(ctx, query, userID, orgType, orgID))
	if err == sql.ErrNoRows {
		return nil, authz.NotFound("membership", fmt.Sprintf("user %d in %s/%d", userID, orgType, orgID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// IsMember reports whether a user is an active member of an organization
func (s *Store) IsMember(ctx context.Context, userID authz.UserID, orgType authz.OrgType, orgID authz.OrgID) (bool, error) {
	_, err := s.GetMember(ctx, userID, orgType, orgID)
	if authz.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListMembers lists an organization's active members
func (s *Store) ListMembers(ctx context.Context, orgType authz.OrgType, orgID authz.OrgID) ([]Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM organization_members
		WHERE org_type = $1 AND org_id = $2 AND ` + activeMember + `
		ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, orgType, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *member)
	}
	return members, rows.Err()
}

// OrganizationIDsForUser lists the organizations of one type a user is an
// active member of. This feeds the accessible-organizations computation.
func (s *Store) OrganizationIDsForUser(ctx context.Context, userID authz.UserID, orgType authz.OrgType) ([]authz.OrgID, error) {
	query := `
		SELECT org_id
		FROM organization_members
		WHERE user_id = $1 AND org_type = $2 AND ` + activeMember + `
		ORDER BY org_id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID, orgType)
	if err != nil {
		return nil, fmt.Errorf("failed to list user organizations: %w", err)
	}
	defer rows.Close()

	var orgIDs []authz.OrgID
	for rows.Next() {
		var orgID authz.OrgID
		if err := rows.Scan(&orgID); err != nil {
			return nil, fmt.Errorf("failed to scan org id: %w", err)
		}
		orgIDs = append(orgIDs, orgID)
	}
	return orgIDs, rows.Err()
}

// AllOrganizationIDs lists every organization of a type that has at least
// one active member. Bootstrap always adds the owner, so this is the full
// set of live organizations of the type.
func (s *Store) AllOrganizationIDs(ctx context.Context, orgType authz.OrgType) ([]authz.OrgID, error) {
	query := `
		SELECT DISTINCT org_id
		FROM organization_members
		WHERE org_type = $1 AND ` + activeMember + `
		ORDER BY org_id ASC`

	rows, err := s.db.QueryContext(ctx, query, orgType)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgIDs []authz.OrgID
	for rows.Next() {
		var orgID authz.OrgID
		if err := rows.Scan(&orgID); err != nil {
			return nil, fmt.Errorf("failed to scan org id: %w", err)
		}
		orgIDs = append(orgIDs, orgID)
	}
	return orgIDs, rows.Err()
}

// SetFlags updates a member's admin and owner flags
func (s *Store) SetFlags(ctx context.Context, userID authz.UserID, orgType authz.OrgType, orgID authz.OrgID, isAdmin, isOwner bool) error {
	query := `
		UPDATE organization_members
		SET is_admin = $1, is_owner = $2
		WHERE user_id = $3 AND org_type = $4 AND org_id = $5 AND ` + activeMember

	result, err := s.db.ExecContext(ctx, query, isAdmin, isOwner, userID, orgType, orgID)
	if err != nil {
		return fmt.Errorf("failed to update member flags: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return authz.NotFound("membership", fmt.Sprintf("user %d in %s/%d", userID, orgType, orgID))
	}
	return nil
}

// PurgeDeleted permanently removes soft-deleted rows older than the
// retention window. Called by the sweeper.
func (s *Store) PurgeDeleted(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM organization_members WHERE deleted_at IS NOT NULL AND deleted_at < $1`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge deleted members: %w", err)
	}
	return result.RowsAffected()
}

// getAnyMember fetches a membership row regardless of deletion state.
func (s *Store) getAnyMember(ctx context.Context, userID authz.UserID, orgType authz.OrgType, orgID authz.OrgID) (*Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM organization_members
		WHERE user_id = $1 AND org_type = $2 AND org_id = $3`

	member, err := scanMember(s.db.QueryRowContext(ctx, query, userID, orgType, orgID))
	if err == sql.ErrNoRows {
		return nil, authz.NotFound("membership", fmt.Sprintf("user %d in %s/%d", userID, orgType, orgID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// scanMember scans a member from a database row
func scanMember(scanner interface {
	Scan(dest ...interface{}) error
}) (*Member, error) {
	var member Member
	var deletedAt sql.NullTime

	err := scanner.Scan(
		&member.ID,
		&member.UserID,
		&member.OrgType,
		&member.OrgID,
		&member.IsAdmin,
		&member.IsOwner,
		&member.CreatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		member.DeletedAt = &deletedAt.Time
	}
	return &member, nil
}
