package custody

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loanflow/backend/internal/domain/shared"
)

// FloatIssuedEvent is raised when a cashier issues a new float
type FloatIssuedEvent struct {
	shared.BaseDomainEvent
	FloatID       uuid.UUID       `json:"float_id"`
	CollectorID   uuid.UUID       `json:"collector_id"`
	CashierID     uuid.UUID       `json:"cashier_id"`
	FloatDate     string          `json:"float_date"`
	OpeningAmount decimal.Decimal `json:"opening_amount"`
	DailyCap      decimal.Decimal `json:"daily_cap"`
}

// EventType returns the event type name
func (e *FloatIssuedEvent) EventType() string {
	return "FloatIssued"
}

// NewFloatIssuedEvent creates a new FloatIssuedEvent
func NewFloatIssuedEvent(f *Float) *FloatIssuedEvent {
	return &FloatIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("FloatIssued", "Float", f.ID, f.TenantID),
		FloatID:         f.ID,
		CollectorID:     f.CollectorID,
		CashierID:       f.CashierID,
		FloatDate:       f.FloatDate,
		OpeningAmount:   f.OpeningAmount,
		DailyCap:        f.DailyCap,
	}
}

// FloatConfirmedEvent is raised when the collector confirms receipt
type FloatConfirmedEvent struct {
	shared.BaseDomainEvent
	FloatID     uuid.UUID `json:"float_id"`
	CollectorID uuid.UUID `json:"collector_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// EventType returns the event type name
func (e *FloatConfirmedEvent) EventType() string {
	return "FloatConfirmed"
}

// NewFloatConfirmedEvent creates a new FloatConfirmedEvent
func NewFloatConfirmedEvent(f *Float) *FloatConfirmedEvent {
	confirmedAt := time.Now()
	if f.ConfirmedAt != nil {
		confirmedAt = *f.ConfirmedAt
	}
	return &FloatConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("FloatConfirmed", "Float", f.ID, f.TenantID),
		FloatID:         f.ID,
		CollectorID:     f.CollectorID,
		ConfirmedAt:     confirmedAt,
	}
}

// FloatCancelledEvent is raised when a cashier cancels an unconfirmed float
type FloatCancelledEvent struct {
	shared.BaseDomainEvent
	FloatID     uuid.UUID `json:"float_id"`
	CollectorID uuid.UUID `json:"collector_id"`
	CancelledBy uuid.UUID `json:"cancelled_by"`
	Reason      string    `json:"reason"`
}

// EventType returns the event type name
func (e *FloatCancelledEvent) EventType() string {
	return "FloatCancelled"
}

// NewFloatCancelledEvent creates a new FloatCancelledEvent
func NewFloatCancelledEvent(f *Float) *FloatCancelledEvent {
	var cancelledBy uuid.UUID
	if f.CancelledBy != nil {
		cancelledBy = *f.CancelledBy
	}
	return &FloatCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("FloatCancelled", "Float", f.ID, f.TenantID),
		FloatID:         f.ID,
		CollectorID:     f.CollectorID,
		CancelledBy:     cancelledBy,
		Reason:          f.CancelReason,
	}
}

// HandoverSubmittedEvent is raised when a collector submits end-of-day cash
type HandoverSubmittedEvent struct {
	shared.BaseDomainEvent
	HandoverID     uuid.UUID       `json:"handover_id"`
	FloatID        uuid.UUID       `json:"float_id"`
	CollectorID    uuid.UUID       `json:"collector_id"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	ActualAmount   decimal.Decimal `json:"actual_amount"`
	Variance       decimal.Decimal `json:"variance"`
}

// EventType returns the event type name
func (e *HandoverSubmittedEvent) EventType() string {
	return "HandoverSubmitted"
}

// NewHandoverSubmittedEvent creates a new HandoverSubmittedEvent
func NewHandoverSubmittedEvent(h *Handover) *HandoverSubmittedEvent {
	return &HandoverSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("HandoverSubmitted", "Handover", h.ID, h.TenantID),
		HandoverID:      h.ID,
		FloatID:         h.FloatID,
		CollectorID:     h.CollectorID,
		ExpectedAmount:  h.ExpectedAmount,
		ActualAmount:    h.ActualAmount,
		Variance:        h.Variance,
	}
}

// HandoverConfirmedEvent is raised when the cashier accepts the handover
type HandoverConfirmedEvent struct {
	shared.BaseDomainEvent
	HandoverID  uuid.UUID       `json:"handover_id"`
	FloatID     uuid.UUID       `json:"float_id"`
	ConfirmedBy uuid.UUID       `json:"confirmed_by"`
	Variance    decimal.Decimal `json:"variance"`
}

// EventType returns the event type name
func (e *HandoverConfirmedEvent) EventType() string {
	return "HandoverConfirmed"
}

// NewHandoverConfirmedEvent creates a new HandoverConfirmedEvent
func NewHandoverConfirmedEvent(h *Handover) *HandoverConfirmedEvent {
	var confirmedBy uuid.UUID
	if h.ConfirmedBy != nil {
		confirmedBy = *h.ConfirmedBy
	}
	return &HandoverConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("HandoverConfirmed", "Handover", h.ID, h.TenantID),
		HandoverID:      h.ID,
		FloatID:         h.FloatID,
		ConfirmedBy:     confirmedBy,
		Variance:        h.Variance,
	}
}

// HandoverRejectedEvent is raised when the cashier disputes the handover
type HandoverRejectedEvent struct {
	shared.BaseDomainEvent
	HandoverID uuid.UUID       `json:"handover_id"`
	FloatID    uuid.UUID       `json:"float_id"`
	RejectedBy uuid.UUID       `json:"rejected_by"`
	Reason     string          `json:"reason"`
	Variance   decimal.Decimal `json:"variance"`
}

// EventType returns the event type name
func (e *HandoverRejectedEvent) EventType() string {
	return "HandoverRejected"
}

// NewHandoverRejectedEvent creates a new HandoverRejectedEvent
func NewHandoverRejectedEvent(h *Handover) *HandoverRejectedEvent {
	var rejectedBy uuid.UUID
	if h.ConfirmedBy != nil {
		rejectedBy = *h.ConfirmedBy
	}
	return &HandoverRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("HandoverRejected", "Handover", h.ID, h.TenantID),
		HandoverID:      h.ID,
		FloatID:         h.FloatID,
		RejectedBy:      rejectedBy,
		Reason:          h.RejectReason,
		Variance:        h.Variance,
	}
}
