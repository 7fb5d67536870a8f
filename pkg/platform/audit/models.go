package audit

import (
	"context"
	"time"

	id "disposisi/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers changes to the disposition trail itself:
	// record creation, every workflow transition, deletion.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers authentication outcomes and rejected attempts
	// to act on a record without the required role or assignment.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted after a committed mutation (or a rejected attempt). Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category     EventCategory
	Timestamp    time.Time
	RecordID     id.RecordID
	LetterNumber string
	Action       string
	Actor        string
	ActorRole    id.Role
	FromStatus   string
	ToStatus     string
	// Detail carries the human-readable timeline text or rejection reason.
	Detail    string
	RequestID string
	ClientIP  string
	Device    string
}

type AuditEvent string

const (
	// Workflow events
	EventRecordCreated      AuditEvent = "record_created"
	EventRecordUpdated      AuditEvent = "record_updated"
	EventRecordDeleted      AuditEvent = "record_deleted"
	EventRecordTransitioned AuditEvent = "record_transitioned"
	EventTransitionRejected AuditEvent = "transition_rejected"

	// Attachment events
	EventAttachmentUploaded AuditEvent = "attachment_uploaded"

	// Auth events
	EventLoginSucceeded AuditEvent = "login_succeeded"
	EventLoginFailed    AuditEvent = "login_failed"
	EventLoginLocked    AuditEvent = "login_locked"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventRecordCreated:      CategoryCompliance,
	EventRecordDeleted:      CategoryCompliance,
	EventRecordTransitioned: CategoryCompliance,

	EventTransitionRejected: CategorySecurity,
	EventLoginFailed:        CategorySecurity,
	EventLoginLocked:        CategorySecurity,

	EventRecordUpdated:      CategoryOperations,
	EventAttachmentUploaded: CategoryOperations,
	EventLoginSucceeded:     CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store is the append-only sink for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
