package custody

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loanflow/backend/internal/domain/custody"
	"github.com/loanflow/backend/internal/domain/shared"
	"github.com/loanflow/backend/internal/infrastructure/logger"
	"github.com/loanflow/backend/internal/infrastructure/telemetry"
)

// CollectorConfirmationService handles the collector's acknowledgement that
// physical cash was received. Confirmation is the gate between issuance and
// transaction recording.
type CollectorConfirmationService struct {
	floatRepo custody.FloatRepository
	eventBus  shared.EventBus
}

// NewCollectorConfirmationService creates a new CollectorConfirmationService
func NewCollectorConfirmationService(floatRepo custody.FloatRepository, eventBus shared.EventBus) *CollectorConfirmationService {
	return &CollectorConfirmationService{
		floatRepo: floatRepo,
		eventBus:  eventBus,
	}
}

// ConfirmReceipt transitions the float to ACTIVE. Only the assigned
// collector may confirm; a float issued to someone else reads as not found.
// The conditional update in SaveTransition makes double confirmation a
// single-winner race.
func (s *CollectorConfirmationService) ConfirmReceipt(ctx context.Context, tenantID, collectorID, floatID uuid.UUID) (*custody.Float, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "collector_confirmation", "confirm_receipt")
	defer span.End()

	telemetry.SetAttributes(span,
		"float_id", floatID.String(),
		"collector_id", collectorID.String(),
	)

	f, err := s.floatRepo.FindByIDForTenant(ctx, tenantID, floatID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load float: %w", err)
	}
	if f == nil {
		return nil, shared.ErrNotFound
	}

	// A repeat confirm of an already active float is a no-op, so a collector
	// retrying a timed-out confirm sees success instead of a conflict.
	if f.Status == custody.FloatStatusActive && f.CollectorID == collectorID {
		return f, nil
	}

	from := f.Status
	if err := f.ConfirmReceipt(collectorID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.floatRepo.SaveTransition(ctx, f, from); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if s.eventBus != nil {
		s.eventBus.Publish(ctx, f.GetDomainEvents()...)
		f.ClearDomainEvents()
	}

	logger.L(ctx).Info("Float receipt confirmed",
		zap.String("float_id", floatID.String()),
		zap.String("collector_id", collectorID.String()),
	)

	return f, nil
}

// ListPending lists floats awaiting this collector's receipt
func (s *CollectorConfirmationService) ListPending(ctx context.Context, tenantID, collectorID uuid.UUID) ([]custody.Float, error) {
	return s.floatRepo.FindPendingForCollector(ctx, tenantID, collectorID)
}
