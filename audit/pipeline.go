package audit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/edurecord/student-records-compliance/interfaces"
	"github.com/edurecord/student-records-compliance/types"
)

// Pipeline delivers audit events to a sink. Delivery happens within the
// calling operation so a failed append can surface to the caller as a
// *types.AuditDeliveryFailedError warning; completeness of the audit trail
// is itself a compliance requirement, so failures are never dropped.
type Pipeline struct {
	sink interfaces.AuditSink
}

// NewPipeline creates a pipeline over a sink.
func NewPipeline(sink interfaces.AuditSink) (*Pipeline, error) {
	if sink == nil {
		return nil, fmt.Errorf("audit sink is required")
	}
	return &Pipeline{sink: sink}, nil
}

// Emit appends the event. A sink failure is returned as a
// *types.AuditDeliveryFailedError; the triggering operation still succeeds.
func (p *Pipeline) Emit(ctx context.Context, event *types.AuditEvent) error {
	if err := p.sink.Append(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("auditId", event.ID).
			Str("action", event.Action).
			Msg("Audit event delivery failed")
		return &types.AuditDeliveryFailedError{Err: err}
	}
	return nil
}

// Querier returns the sink's query side when supported.
func (p *Pipeline) Querier() (interfaces.AuditQuerier, bool) {
	q, ok := p.sink.(interfaces.AuditQuerier)
	return q, ok
}
