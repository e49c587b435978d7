package custody

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loanflow/backend/internal/domain/shared"
)

// HandoverStatus represents the settlement state of a handover
type HandoverStatus string

const (
	HandoverStatusPending   HandoverStatus = "PENDING"   // Submitted by collector, awaiting cashier
	HandoverStatusConfirmed HandoverStatus = "CONFIRMED" // Cashier accepted the cash
	HandoverStatusRejected  HandoverStatus = "REJECTED"  // Cashier disputed the cash position
)

// IsValid checks if the status is a valid HandoverStatus
func (s HandoverStatus) IsValid() bool {
	switch s {
	case HandoverStatusPending, HandoverStatusConfirmed, HandoverStatusRejected:
		return true
	}
	return false
}

// String returns the string representation of HandoverStatus
func (s HandoverStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the cashier has decided
func (s HandoverStatus) IsTerminal() bool {
	return s == HandoverStatusConfirmed || s == HandoverStatusRejected
}

// Handover is the end-of-day settlement record for a float. ExpectedAmount is
// frozen at submission time and never recomputed; Variance separates "cash
// received" from "books balance" and is recorded for audit, never blocked on.
type Handover struct {
	shared.TenantAggregateRoot
	FloatID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	CollectorID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	CashierID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ExpectedAmount decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ActualAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Variance       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status         HandoverStatus  `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	ConfirmedBy    *uuid.UUID      `gorm:"type:uuid"`
	ConfirmedAt    *time.Time
	RejectReason   string `gorm:"type:varchar(500)"`
	Notes          string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (Handover) TableName() string {
	return "cash_handovers"
}

// NewHandover creates a pending handover with the variance computed once
// from the frozen expected amount.
func NewHandover(
	tenantID uuid.UUID,
	floatID uuid.UUID,
	collectorID uuid.UUID,
	cashierID uuid.UUID,
	expectedAmount decimal.Decimal,
	actualAmount decimal.Decimal,
	notes string,
) (*Handover, error) {
	if floatID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_FLOAT", "Float ID cannot be empty")
	}
	if collectorID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_COLLECTOR", "Collector ID cannot be empty")
	}
	if actualAmount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Actual handover amount cannot be negative")
	}
	if len(notes) > 500 {
		return nil, shared.NewDomainError("INVALID_NOTES", "Notes cannot exceed 500 characters")
	}

	h := &Handover{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		FloatID:             floatID,
		CollectorID:         collectorID,
		CashierID:           cashierID,
		ExpectedAmount:      expectedAmount,
		ActualAmount:        actualAmount,
		Variance:            actualAmount.Sub(expectedAmount),
		Status:              HandoverStatusPending,
		Notes:               notes,
	}

	h.AddDomainEvent(NewHandoverSubmittedEvent(h))

	return h, nil
}

// Confirm accepts the handover. Accepted regardless of variance magnitude;
// a nonzero variance stays on record for audit.
func (h *Handover) Confirm(cashierID uuid.UUID) error {
	if h.Status != HandoverStatusPending {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot confirm handover in %s status", h.Status))
	}
	if cashierID == uuid.Nil {
		return shared.NewDomainError("INVALID_CASHIER", "Confirming cashier ID is required")
	}

	now := time.Now()
	h.Status = HandoverStatusConfirmed
	h.ConfirmedBy = &cashierID
	h.ConfirmedAt = &now
	h.UpdatedAt = now
	h.IncrementVersion()

	h.AddDomainEvent(NewHandoverConfirmedEvent(h))

	return nil
}

// Reject disputes the handover. Terminal: the float is not reopened, the
// dispute requires an explicit administrative re-issuance.
func (h *Handover) Reject(cashierID uuid.UUID, reason string) error {
	if h.Status != HandoverStatusPending {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot reject handover in %s status", h.Status))
	}
	if cashierID == uuid.Nil {
		return shared.NewDomainError("INVALID_CASHIER", "Rejecting cashier ID is required")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Reject reason is required")
	}

	now := time.Now()
	h.Status = HandoverStatusRejected
	h.ConfirmedBy = &cashierID
	h.ConfirmedAt = &now
	h.RejectReason = reason
	h.UpdatedAt = now
	h.IncrementVersion()

	h.AddDomainEvent(NewHandoverRejectedEvent(h))

	return nil
}

// HasVariance returns true if declared cash differs from the ledger balance
func (h *Handover) HasVariance() bool {
	return !h.Variance.IsZero()
}
