// Package audit provides the audit trail for compliance engine operations.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/edurecord/student-records-compliance/types"
)

// Actions recorded in audit events.
const (
	ActionEncrypt      = "encrypt"
	ActionDecrypt      = "decrypt"
	ActionValidate     = "validate"
	ActionConsentCheck = "consent_check"
	ActionMFACheck     = "mfa_check"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Resource types.
const (
	ResourceStudentRecord = "student_record"
	ResourceRegionConfig  = "region_config"
	ResourceSubject       = "subject"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

// Context keys for engine operations. The web layer attaches these before
// invoking the engine; the engine copies them onto audit events.
const (
	KeyActorID    ContextKey = "actorId"    // authenticated caller
	KeyResourceID ContextKey = "resourceId" // record or subject identifier
	KeyAttributes ContextKey = "attributes" // validation attributes map
)

// WithActor returns a context carrying the acting caller's identifier.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, KeyActorID, actorID)
}

// WithResourceID returns a context carrying the record identifier being
// operated on.
func WithResourceID(ctx context.Context, resourceID string) context.Context {
	return context.WithValue(ctx, KeyResourceID, resourceID)
}

// WithAttributes returns a context carrying validation attributes such as
// "student_age" or "record_age_days". The map is copied; later mutation by
// the caller does not leak into the engine.
func WithAttributes(ctx context.Context, attrs map[string]string) context.Context {
	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return context.WithValue(ctx, KeyAttributes, copied)
}

// ActorFromContext extracts the acting caller, or "" when absent.
func ActorFromContext(ctx context.Context) string {
	if val, ok := ctx.Value(KeyActorID).(string); ok {
		return val
	}
	return ""
}

// ResourceIDFromContext extracts the record identifier, or "" when absent.
func ResourceIDFromContext(ctx context.Context) string {
	if val, ok := ctx.Value(KeyResourceID).(string); ok {
		return val
	}
	return ""
}

// AttributesFromContext extracts validation attributes, or nil when absent.
func AttributesFromContext(ctx context.Context) map[string]string {
	if val, ok := ctx.Value(KeyAttributes).(map[string]string); ok {
		return val
	}
	return nil
}

// NewEvent creates an audit event with essential fields populated. Actor and
// resource ID are taken from the context when present.
func NewEvent(ctx context.Context, action, region string, requirements types.AuditRequirements) *types.AuditEvent {
	return &types.AuditEvent{
		ID:           uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		Actor:        ActorFromContext(ctx),
		Action:       action,
		ResourceType: ResourceStudentRecord,
		ResourceID:   ResourceIDFromContext(ctx),
		Region:       region,
		Requirements: requirements,
		Outcome:      OutcomeSuccess,
		Detail:       make(map[string]string),
	}
}
