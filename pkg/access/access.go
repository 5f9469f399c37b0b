package access

import (
	"context"
	"time"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/catalog"
	"github.com/platinummonkey/gatekeeper/pkg/observability"
	"github.com/platinummonkey/gatekeeper/pkg/orgs"
)

// ClaimsGetter returns a user's claims, normally the claims cache.
type ClaimsGetter interface {
	Get(ctx context.Context, userID authz.UserID) (*authz.Claims, error)
}

// MembershipSource answers membership questions from the engine's own
// membership store.
type MembershipSource interface {
	IsMember(ctx context.Context, userID authz.UserID, orgType authz.OrgType, orgID authz.OrgID) (bool, error)
	OrganizationIDsForUser(ctx context.Context, userID authz.UserID, orgType authz.OrgType) ([]authz.OrgID, error)
	AllOrganizationIDs(ctx context.Context, orgType authz.OrgType) ([]authz.OrgID, error)
}

// Service provides the composite organization-scoped access checks every
// org-scoped resource handler runs before its finer permission checks.
type Service struct {
	claims     ClaimsGetter
	membership MembershipSource
	registry   *orgs.Registry
	metrics    *observability.Metrics
}

// NewService creates an access service. Metrics may be nil.
func NewService(claims ClaimsGetter, membership MembershipSource, registry *orgs.Registry, metrics *observability.Metrics) *Service {
	return &Service{
		claims:     claims,
		membership: membership,
		registry:   registry,
		metrics:    metrics,
	}
}

// Check reports whether the user holds the permission, optionally within an
// organization scope.
func (s *Service) Check(ctx context.Context, userID authz.UserID, perm catalog.Key, orgCtx *authz.OrgContext) (bool, error) {
	start := time.Now()
	claims, err := s.claims.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	granted := authz.Check(claims, perm, orgCtx)
	s.timeCheck(start, granted)
	return s.observe(granted), nil
}

// CanAccessOrganization reports whether the user may see an organization's
// resources at all: either the global permission, or an active membership.
// The organization is addressed by its public UUID; unknown UUIDs and
// unknown types yield false.
func (s *Service) CanAccessOrganization(ctx context.Context, userID authz.UserID, orgUUID string, orgType authz.OrgType, globalPerm catalog.Key) (bool, error) {
	orgID, ok, err := s.registry.OrganizationIDByUUID(ctx, orgType, orgUUID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return s.CanAccessOrganizationByID(ctx, userID, orgType, orgID, globalPerm)
}

// CanAccessOrganizationByID is CanAccessOrganization for callers that
// already hold the internal organization id.
func (s *Service) CanAccessOrganizationByID(ctx context.Context, userID authz.UserID, orgType authz.OrgType, orgID authz.OrgID, globalPerm catalog.Key) (bool, error) {
	claims, err := s.claims.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if authz.Check(claims, globalPerm, nil) {
		return s.observe(true), nil
	}
	ok, err := s.membership.IsMember(ctx, userID, orgType, orgID)
	if err != nil {
		return false, err
	}
	return s.observe(ok), nil
}

// AccessibleOrganizationIDs is the list-filtering primitive behind every
// index endpoint: the full organization set of the type when the user holds
// the global permission, otherwise exactly the organizations the user is a
// member of. Zero memberships yield an empty result, not an error.
func (s *Service) AccessibleOrganizationIDs(ctx context.Context, userID authz.UserID, orgType authz.OrgType, globalPerm catalog.Key) ([]authz.OrgID, error) {
	claims, err := s.claims.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if authz.Check(claims, globalPerm, nil) {
		return s.membership.AllOrganizationIDs(ctx, orgType)
	}
	return s.membership.OrganizationIDsForUser(ctx, userID, orgType)
}

// EnsureOrganizationPermission returns a ForbiddenError unless the user
// holds globalPerm globally or orgPerm within the organization addressed
// by UUID. An empty orgPerm defaults to globalPerm; an empty message gets a
// standard one.
func (s *Service) EnsureOrganizationPermission(ctx context.Context, userID authz.UserID, orgUUID string, orgType authz.OrgType, globalPerm, orgPerm catalog.Key, message string) error {
	if orgPerm == "" {
		orgPerm = globalPerm
	}
	if message == "" {
		message = "you do not have permission to perform this action"
	}

	claims, err := s.claims.Get(ctx, userID)
	if err != nil {
		return err
	}

	if authz.Check(claims, globalPerm, nil) {
		s.observe(true)
		return nil
	}

	orgID, ok, err := s.registry.OrganizationIDByUUID(ctx, orgType, orgUUID)
	if err != nil {
		return err
	}
	if ok && authz.CheckWithFallback(claims, globalPerm, orgPerm, authz.OrgContext{Type: orgType, ID: orgID}) {
		s.observe(true)
		return nil
	}

	s.observe(false)
	return &authz.ForbiddenError{Message: message}
}

func (s *Service) observe(granted bool) bool {
	if s.metrics != nil {
		outcome := "denied"
		if granted {
			outcome = "granted"
		}
		s.metrics.ChecksTotal.WithLabelValues(outcome).Inc()
	}
	return granted
}

// timeCheck observes check latency for the duration metric.
func (s *Service) timeCheck(start time.Time, granted bool) {
	if s.metrics == nil {
		return
	}
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	s.metrics.CheckDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
