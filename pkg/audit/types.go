package audit

import "time"

// EventType identifies what happened
type EventType string

const (
	// Role lifecycle events
	EventTypeRoleCreate  EventType = "role.create"
	EventTypeRoleUpdate  EventType = "role.update"
	EventTypeRoleDelete  EventType = "role.delete"
	EventTypeRoleReorder EventType = "role.reorder"

	// Role assignment events
	EventTypeAssignmentCreate EventType = "assignment.create"
	EventTypeAssignmentRevoke EventType = "assignment.revoke"

	// Membership events
	EventTypeMemberAdd    EventType = "member.add"
	EventTypeMemberRemove EventType = "member.remove"

	// Organization events
	EventTypeOrgBootstrap EventType = "organization.bootstrap"

	// Claims cache events
	EventTypeClaimsInvalidate EventType = "claims.invalidate"
)

// EventStatus indicates whether the audited operation succeeded
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusFailure EventStatus = "failure"
)

// ResourceType identifies the kind of resource an event touched
type ResourceType string

const (
	ResourceTypeRole         ResourceType = "role"
	ResourceTypeAssignment   ResourceType = "assignment"
	ResourceTypeMembership   ResourceType = "membership"
	ResourceTypeOrganization ResourceType = "organization"
	ResourceTypeClaims       ResourceType = "claims"
)

// Event is one audit trail entry. ActorID is the authenticated user who
// performed the mutation; TargetUserID is the user it affected, when the
// two differ.
type Event struct {
	ID           int64                  `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	EventType    EventType              `json:"event_type"`
	Status       EventStatus            `json:"status"`
	ActorID      *int64                 `json:"actor_id,omitempty"`
	TargetUserID *int64                 `json:"target_user_id,omitempty"`
	OrgType      *string                `json:"org_type,omitempty"`
	OrgID        *int64                 `json:"org_id,omitempty"`
	ResourceType ResourceType           `json:"resource_type,omitempty"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	RequestID    string                 `json:"request_id,omitempty"`
	Message      string                 `json:"message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Filter narrows an audit trail search. Nil/zero fields match everything.
type Filter struct {
	StartTime    *time.Time
	EndTime      *time.Time
	ActorID      *int64
	TargetUserID *int64
	OrgType      string
	OrgID        *int64
	EventTypes   []EventType
	Status       *EventStatus
	ResourceType ResourceType
	ResourceID   string
	Limit        int
	Offset       int
}

// ExportFormat selects the audit export encoding
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatNDJSON ExportFormat = "ndjson"
	ExportFormatCSV    ExportFormat = "csv"
)
