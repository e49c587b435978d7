package custody

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/loanflow/backend/internal/domain/custody"
	"github.com/loanflow/backend/internal/domain/shared"
	"github.com/loanflow/backend/internal/infrastructure/logger"
	"github.com/loanflow/backend/internal/infrastructure/telemetry"
)

// HandoverService handles end-of-day settlement: the collector submits the
// physical cash count, the cashier confirms or disputes it. The expected
// amount is frozen at submission and never recomputed.
type HandoverService struct {
	floatRepo    custody.FloatRepository
	handoverRepo custody.HandoverRepository
	eventBus     shared.EventBus
}

// NewHandoverService creates a new HandoverService
func NewHandoverService(
	floatRepo custody.FloatRepository,
	handoverRepo custody.HandoverRepository,
	eventBus shared.EventBus,
) *HandoverService {
	return &HandoverService{
		floatRepo:    floatRepo,
		handoverRepo: handoverRepo,
		eventBus:     eventBus,
	}
}

// SubmitHandoverRequest represents a collector's end-of-day declaration
type SubmitHandoverRequest struct {
	TenantID     uuid.UUID
	CollectorID  uuid.UUID
	FloatID      uuid.UUID
	ActualAmount decimal.Decimal
	Notes        string
}

// Submit freezes the float for settlement. The storage layer locks the
// float, snapshots the ledger balance as the expected amount and moves the
// float to PENDING_HANDOVER in one transaction, so a concurrent entry either
// lands before the freeze or is rejected after it.
func (s *HandoverService) Submit(ctx context.Context, req SubmitHandoverRequest) (*custody.Handover, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "handover", "submit")
	defer span.End()

	telemetry.SetAttributes(span,
		"float_id", req.FloatID.String(),
		"actual_amount", req.ActualAmount.String(),
	)

	if req.ActualAmount.IsNegative() {
		err := shared.NewDomainError("INVALID_AMOUNT", "Actual handover amount cannot be negative")
		telemetry.RecordError(span, err)
		return nil, err
	}

	h, err := s.handoverRepo.Submit(ctx, req.TenantID, req.CollectorID, req.FloatID, req.ActualAmount, req.Notes)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, h)

	logger.L(ctx).Info("Handover submitted",
		zap.String("handover_id", h.GetID().String()),
		zap.String("float_id", req.FloatID.String()),
		zap.String("expected_amount", h.ExpectedAmount.String()),
		zap.String("actual_amount", h.ActualAmount.String()),
		zap.String("variance", h.Variance.String()),
	)

	return h, nil
}

// Confirm accepts the handover and closes the float. A nonzero variance does
// not block confirmation, it stays on record for audit.
func (s *HandoverService) Confirm(ctx context.Context, tenantID, cashierID, handoverID uuid.UUID) (*custody.Handover, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "handover", "confirm")
	defer span.End()
	telemetry.SetAttributes(span, "handover_id", handoverID.String())

	h, err := s.decide(ctx, tenantID, handoverID, func(h *custody.Handover, f *custody.Float) error {
		if err := h.Confirm(cashierID); err != nil {
			return err
		}
		return f.CloseConfirmed()
	}, "Handover confirmed")
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return h, err
}

// Reject disputes the handover and closes the float as rejected. The float
// is not reopened; resolution happens via an explicit re-issuance.
func (s *HandoverService) Reject(ctx context.Context, tenantID, cashierID, handoverID uuid.UUID, reason string) (*custody.Handover, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "handover", "reject")
	defer span.End()
	telemetry.SetAttributes(span, "handover_id", handoverID.String())

	h, err := s.decide(ctx, tenantID, handoverID, func(h *custody.Handover, f *custody.Float) error {
		if err := h.Reject(cashierID, reason); err != nil {
			return err
		}
		return f.CloseRejected()
	}, "Handover rejected")
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return h, err
}

func (s *HandoverService) decide(
	ctx context.Context,
	tenantID, handoverID uuid.UUID,
	apply func(h *custody.Handover, f *custody.Float) error,
	logMsg string,
) (*custody.Handover, error) {
	h, err := s.handoverRepo.FindByIDForTenant(ctx, tenantID, handoverID)
	if err != nil {
		return nil, fmt.Errorf("failed to load handover: %w", err)
	}
	if h == nil {
		return nil, shared.ErrNotFound
	}

	f, err := s.floatRepo.FindByIDForTenant(ctx, tenantID, h.FloatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load float: %w", err)
	}
	if f == nil {
		return nil, shared.ErrNotFound
	}

	if err := apply(h, f); err != nil {
		return nil, err
	}

	if err := s.handoverRepo.SaveDecision(ctx, h, f); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, h)

	logger.L(ctx).Info(logMsg,
		zap.String("handover_id", handoverID.String()),
		zap.String("float_id", h.FloatID.String()),
		zap.String("variance", h.Variance.String()),
	)

	return h, nil
}

// GetHandover loads a single handover scoped to the tenant
func (s *HandoverService) GetHandover(ctx context.Context, tenantID, handoverID uuid.UUID) (*custody.Handover, error) {
	h, err := s.handoverRepo.FindByIDForTenant(ctx, tenantID, handoverID)
	if err != nil {
		return nil, fmt.Errorf("failed to load handover: %w", err)
	}
	if h == nil {
		return nil, shared.ErrNotFound
	}
	return h, nil
}

// ListPending lists handovers awaiting cashier decision
func (s *HandoverService) ListPending(ctx context.Context, tenantID uuid.UUID) ([]custody.Handover, error) {
	return s.handoverRepo.FindPendingForTenant(ctx, tenantID)
}

func (s *HandoverService) publishEvents(ctx context.Context, h *custody.Handover) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(ctx, h.GetDomainEvents()...)
	h.ClearDomainEvents()
}
