package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/loanflow/backend/internal/domain/shared"
)

// custodyEventTypes is every event the custody domain emits. Kept in one
// place so the audit trail cannot silently miss a new lifecycle step.
var custodyEventTypes = []string{
	"FloatIssued",
	"FloatConfirmed",
	"FloatCancelled",
	"HandoverSubmitted",
	"HandoverConfirmed",
	"HandoverRejected",
}

// AuditTrail writes one structured log line per custody lifecycle event.
// Cash movements are disputes waiting to happen; the trail gives operations
// an ordered record independent of the transactional tables.
type AuditTrail struct {
	logger *zap.Logger
}

// NewAuditTrail creates an audit trail writer
func NewAuditTrail(logger *zap.Logger) *AuditTrail {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditTrail{logger: logger}
}

// RegisterOn subscribes the trail to every custody event type
func (a *AuditTrail) RegisterOn(bus shared.EventBus) {
	for _, eventType := range custodyEventTypes {
		bus.Subscribe(eventType, a.Handle)
	}
}

// Handle records one event
func (a *AuditTrail) Handle(ctx context.Context, evt shared.DomainEvent) error {
	a.logger.Info("custody event",
		zap.String("event_type", evt.EventType()),
		zap.String("event_id", evt.EventID().String()),
		zap.String("aggregate_type", evt.AggregateType()),
		zap.String("aggregate_id", evt.AggregateID().String()),
		zap.String("tenant_id", evt.TenantID().String()),
		zap.Time("occurred_at", evt.OccurredAt()),
	)
	return nil
}
