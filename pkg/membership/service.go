package membership

import (
	"context"
	"fmt"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/observability"
)

// ClaimsInvalidator drops cached claims after a committed mutation.
type ClaimsInvalidator interface {
	InvalidateMany(ctx context.Context, userIDs ...authz.UserID) error
}

// Service manages organization membership. Membership gates organization
// access alongside permission grants, so every mutation invalidates the
// affected user's cached claims after commit.
type Service struct {
	store       *Store
	invalidator ClaimsInvalidator
	logger      *observability.Logger
}

// NewService creates a membership service. Invalidator may be nil.
func NewService(store *Store, invalidator ClaimsInvalidator, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{store: store, invalidator: invalidator, logger: logger}
}

// AddMember adds a user to an organization, restoring a previously removed
// membership when one exists.
func (s *Service) AddMember(ctx context.Context, member *Member) error {
	if err := s.store.AddMember(ctx, member); err != nil {
		return err
	}
	s.logger.WithFields(map[string]interface{}{
		"user_id":  member.UserID,
		"org_type": member.OrgType,
		"org_id":   member.OrgID,
	}).Info("member added")
	return s.invalidate(ctx, member.UserID)
}

// RemoveMember soft-deletes a user's membership.
func (s *Service) RemoveMember(ctx context.Context, userID authz.UserID, orgType authz.OrgType, orgID authz.OrgID) error {
	if err := s.store.RemoveMember(ctx, userID, orgType, orgID); err != nil {
		return err
	}
	s.logger.WithFields(map[string]interface{}{
		"user_id":  userID,
		"org_type": orgType,
		"org_id":   orgID,
	}).Info("member removed")
	return s.invalidate(ctx, userID)
}

// SetFlags updates a member's admin and owner flags.
func (s *Service) SetFlags(ctx context.Context, userID authz.UserID, orgType authz.OrgType, orgID authz.OrgID, isAdmin, isOwner bool) error {
	if err := s.store.SetFlags(ctx, userID, orgType, orgID, isAdmin, isOwner); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

// IsMember reports whether a user is an active member of an organization.
func (s *Service) IsMember(ctx context.Context, userID authz.UserID, orgType authz.OrgType, orgID authz.OrgID) (bool, error) {
	return s.store.IsMember(ctx, userID, orgType, orgID)
}

// GetMember returns a user's active membership.
func (s *Service) GetMember(ctx context.Context, userID authz.UserID, orgType authz.OrgType, orgID authz.OrgID) (*Member, error) {
	return s.store.GetMember(ctx, userID, orgType, orgID)
}

// ListMembers lists an organization's active members.
func (s *Service) ListMembers(ctx context.Context, orgType authz.OrgType, orgID authz.OrgID) ([]Member, error) {
	return s.store.ListMembers(ctx, orgType, orgID)
}

// OrganizationIDsForUser lists the organizations of one type the user
// belongs to.
func (s *Service) OrganizationIDsForUser(ctx context.Context, userID authz.UserID, orgType authz.OrgType) ([]authz.OrgID, error) {
	return s.store.OrganizationIDsForUser(ctx, userID, orgType)
}

func (s *Service) invalidate(ctx context.Context, userID authz.UserID) error {
	if s.invalidator == nil {
		return nil
	}
	if err := s.invalidator.InvalidateMany(ctx, userID); err != nil {
		s.logger.WithError(err).Error("claims invalidation failed after membership change")
		return fmt.Errorf("claims invalidation failed: %w", err)
	}
	return nil
}
