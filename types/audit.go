package types

import (
	"time"
)

// AuditEvent is the immutable record of one engine operation. Events are
// append-only; a failed operation still emits exactly one event with
// OutcomeFailure. Detail may carry field names and check names but never
// field values or ciphertext.
type AuditEvent struct {
	ID           string            `json:"id" bson:"_id"`
	Timestamp    time.Time         `json:"timestamp" bson:"timestamp"`
	Actor        string            `json:"actor" bson:"actor"`
	Action       string            `json:"action" bson:"action"`
	ResourceType string            `json:"resourceType" bson:"resourceType"`
	ResourceID   string            `json:"resourceId" bson:"resourceId"`
	Region       string            `json:"region" bson:"region"`
	Requirements AuditRequirements `json:"requirements" bson:"requirements"` // snapshot that applied to this call
	Outcome      string            `json:"outcome" bson:"outcome"`
	Detail       map[string]string `json:"detail,omitempty" bson:"detail,omitempty"`
}
