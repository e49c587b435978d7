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

// FloatIssuanceService handles the cashier side of the float lifecycle:
// issuing the daily float, cancelling unconfirmed floats and re-issuing
// after a rejected handover.
type FloatIssuanceService struct {
	floatRepo custody.FloatRepository
	eventBus  shared.EventBus
}

// NewFloatIssuanceService creates a new FloatIssuanceService
func NewFloatIssuanceService(floatRepo custody.FloatRepository, eventBus shared.EventBus) *FloatIssuanceService {
	return &FloatIssuanceService{
		floatRepo: floatRepo,
		eventBus:  eventBus,
	}
}

// IssueFloatRequest represents a request to issue a daily float
type IssueFloatRequest struct {
	TenantID      uuid.UUID
	CashierID     uuid.UUID
	CollectorID   uuid.UUID
	FloatDate     string
	OpeningAmount decimal.Decimal
	DailyCap      decimal.Decimal
	Notes         string
	// ReissuedFromID links an explicit re-issuance to a rejected float
	ReissuedFromID *uuid.UUID
}

// Issue creates a float in PENDING_CONFIRMATION. At most one non-terminal
// float may exist per (collector, date); the storage layer enforces this so
// two concurrent issuances cannot both succeed.
func (s *FloatIssuanceService) Issue(ctx context.Context, req IssueFloatRequest) (*custody.Float, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "float_issuance", "issue")
	defer span.End()

	telemetry.SetAttributes(span,
		"collector_id", req.CollectorID.String(),
		"float_date", req.FloatDate,
		"opening_amount", req.OpeningAmount.String(),
	)

	f, err := custody.NewFloat(req.TenantID, req.CashierID, req.CollectorID,
		req.FloatDate, req.OpeningAmount, req.DailyCap, req.Notes)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if req.ReissuedFromID != nil {
		predecessor, err := s.floatRepo.FindByIDForTenant(ctx, req.TenantID, *req.ReissuedFromID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to load predecessor float: %w", err)
		}
		if predecessor == nil {
			return nil, shared.ErrNotFound
		}
		if predecessor.Status != custody.FloatStatusHandoverRejected {
			return nil, shared.NewDomainError("INVALID_REISSUE",
				fmt.Sprintf("Can only re-issue from a rejected float, predecessor is %s", predecessor.Status))
		}
		if predecessor.CollectorID != req.CollectorID {
			return nil, shared.NewDomainError("INVALID_REISSUE", "Predecessor float belongs to a different collector")
		}
		f.WithReissuedFrom(predecessor.GetID())
	}

	if err := s.floatRepo.Create(ctx, f); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, f)

	logger.L(ctx).Info("Float issued",
		zap.String("float_id", f.GetID().String()),
		zap.String("collector_id", req.CollectorID.String()),
		zap.String("float_date", req.FloatDate),
		zap.String("opening_amount", req.OpeningAmount.String()),
	)

	return f, nil
}

// Cancel cancels a float that the collector has not yet confirmed. Cancelled
// floats are terminal and free the collector's daily slot.
func (s *FloatIssuanceService) Cancel(ctx context.Context, tenantID, cashierID, floatID uuid.UUID, reason string) (*custody.Float, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "float_issuance", "cancel")
	defer span.End()

	telemetry.SetAttributes(span, "float_id", floatID.String())

	f, err := s.floatRepo.FindByIDForTenant(ctx, tenantID, floatID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load float: %w", err)
	}
	if f == nil {
		return nil, shared.ErrNotFound
	}

	from := f.Status
	if err := f.Cancel(cashierID, reason); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.floatRepo.SaveTransition(ctx, f, from); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, f)

	logger.L(ctx).Info("Float cancelled",
		zap.String("float_id", floatID.String()),
		zap.String("reason", reason),
	)

	return f, nil
}

// GetFloat loads a single float scoped to the tenant
func (s *FloatIssuanceService) GetFloat(ctx context.Context, tenantID, floatID uuid.UUID) (*custody.Float, error) {
	f, err := s.floatRepo.FindByIDForTenant(ctx, tenantID, floatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load float: %w", err)
	}
	if f == nil {
		return nil, shared.ErrNotFound
	}
	return f, nil
}

// ListPending lists floats awaiting collector confirmation, cashier view
func (s *FloatIssuanceService) ListPending(ctx context.Context, tenantID uuid.UUID) ([]custody.Float, error) {
	return s.floatRepo.FindPendingForTenant(ctx, tenantID)
}

// ListHistory lists floats with filtering and pagination
func (s *FloatIssuanceService) ListHistory(ctx context.Context, tenantID uuid.UUID, filter custody.FloatHistoryFilter) (*shared.Paginated[custody.Float], error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 50
	}

	floats, total, err := s.floatRepo.FindHistory(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list float history: %w", err)
	}

	result := shared.NewPaginated(floats, total, filter.Page, filter.PageSize)
	return &result, nil
}

func (s *FloatIssuanceService) publishEvents(ctx context.Context, f *custody.Float) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(ctx, f.GetDomainEvents()...)
	f.ClearDomainEvents()
}
