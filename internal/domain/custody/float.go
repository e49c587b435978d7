package custody

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loanflow/backend/internal/domain/shared"
)

// FloatStatus represents the lifecycle state of a cash float
type FloatStatus string

const (
	FloatStatusPendingConfirmation FloatStatus = "PENDING_CONFIRMATION" // Issued, awaiting collector receipt
	FloatStatusActive              FloatStatus = "ACTIVE"               // Collector confirmed, transactions allowed
	FloatStatusPendingHandover     FloatStatus = "PENDING_HANDOVER"     // Collector submitted end-of-day handover
	FloatStatusHandoverConfirmed   FloatStatus = "HANDOVER_CONFIRMED"   // Cashier accepted the handover
	FloatStatusHandoverRejected    FloatStatus = "HANDOVER_REJECTED"    // Cashier disputed the handover
	FloatStatusCancelled           FloatStatus = "CANCELLED"            // Cashier cancelled before confirmation
)

// IsValid checks if the status is a valid FloatStatus
func (s FloatStatus) IsValid() bool {
	switch s {
	case FloatStatusPendingConfirmation, FloatStatusActive, FloatStatusPendingHandover,
		FloatStatusHandoverConfirmed, FloatStatusHandoverRejected, FloatStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of FloatStatus
func (s FloatStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the float is in a terminal state.
// Terminal floats free the (collector, date) uniqueness slot.
func (s FloatStatus) IsTerminal() bool {
	return s == FloatStatusHandoverConfirmed || s == FloatStatusHandoverRejected || s == FloatStatusCancelled
}

// CanConfirmReceipt returns true if the collector may confirm receipt
func (s FloatStatus) CanConfirmReceipt() bool {
	return s == FloatStatusPendingConfirmation
}

// CanCancel returns true if the cashier may cancel the float.
// Once active, cash is in the field and must go through handover.
func (s FloatStatus) CanCancel() bool {
	return s == FloatStatusPendingConfirmation
}

// CanRecordEntries returns true if ledger entries may be appended
func (s FloatStatus) CanRecordEntries() bool {
	return s == FloatStatusActive
}

// CanSubmitHandover returns true if the collector may submit a handover
func (s FloatStatus) CanSubmitHandover() bool {
	return s == FloatStatusActive
}

// NonTerminalStatuses lists the statuses that occupy a collector's daily slot
func NonTerminalStatuses() []FloatStatus {
	return []FloatStatus{FloatStatusPendingConfirmation, FloatStatusActive, FloatStatusPendingHandover}
}

// FloatDateLayout is the calendar-day format for float dates (tenant-local)
const FloatDateLayout = "2006-01-02"

// Float represents one day's cash custody grant from a cashier to a collector.
// It is the unit of serialization: all mutations against a float are
// linearized on its row.
type Float struct {
	shared.TenantAggregateRoot
	CollectorID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_floats_collector_date,priority:2"`
	CashierID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	FloatDate      string          `gorm:"type:varchar(10);not null;index:idx_floats_collector_date,priority:3"`
	OpeningAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DailyCap       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status         FloatStatus     `gorm:"type:varchar(30);not null;default:'PENDING_CONFIRMATION';index"`
	Notes          string          `gorm:"type:text"`
	ReissuedFromID *uuid.UUID      `gorm:"type:uuid"` // Explicit re-issuance after a rejected handover
	ConfirmedAt    *time.Time
	ClosedAt       *time.Time
	CancelledAt    *time.Time
	CancelledBy    *uuid.UUID `gorm:"type:uuid"`
	CancelReason   string     `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (Float) TableName() string {
	return "cash_floats"
}

// NewFloat creates a new float issuance in PENDING_CONFIRMATION status
func NewFloat(
	tenantID uuid.UUID,
	cashierID uuid.UUID,
	collectorID uuid.UUID,
	floatDate string,
	openingAmount decimal.Decimal,
	dailyCap decimal.Decimal,
	notes string,
) (*Float, error) {
	if cashierID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CASHIER", "Cashier ID cannot be empty")
	}
	if collectorID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_COLLECTOR", "Collector ID cannot be empty")
	}
	if _, err := time.Parse(FloatDateLayout, floatDate); err != nil {
		return nil, shared.NewDomainError("INVALID_FLOAT_DATE", fmt.Sprintf("Float date must be in %s format", FloatDateLayout))
	}
	if openingAmount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Opening amount must be positive")
	}
	if dailyCap.IsNegative() {
		return nil, shared.NewDomainError("INVALID_DAILY_CAP", "Daily cap cannot be negative")
	}
	if len(notes) > 500 {
		return nil, shared.NewDomainError("INVALID_NOTES", "Notes cannot exceed 500 characters")
	}

	f := &Float{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CollectorID:         collectorID,
		CashierID:           cashierID,
		FloatDate:           floatDate,
		OpeningAmount:       openingAmount,
		DailyCap:            dailyCap,
		Status:              FloatStatusPendingConfirmation,
		Notes:               notes,
	}

	f.AddDomainEvent(NewFloatIssuedEvent(f))

	return f, nil
}

// WithReissuedFrom links this float to a rejected predecessor. Re-issuance is
// an ordinary new float, never a reactivation of the disputed one.
func (f *Float) WithReissuedFrom(floatID uuid.UUID) *Float {
	f.ReissuedFromID = &floatID
	return f
}

// ConfirmReceipt transitions the float to ACTIVE on collector acknowledgement
func (f *Float) ConfirmReceipt(collectorID uuid.UUID) error {
	if f.CollectorID != collectorID {
		return shared.ErrNotFound
	}
	if !f.Status.CanConfirmReceipt() {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot confirm receipt of float in %s status", f.Status))
	}

	now := time.Now()
	f.Status = FloatStatusActive
	f.ConfirmedAt = &now
	f.UpdatedAt = now
	f.IncrementVersion()

	f.AddDomainEvent(NewFloatConfirmedEvent(f))

	return nil
}

// Cancel cancels a float that the collector has not yet confirmed
func (f *Float) Cancel(cashierID uuid.UUID, reason string) error {
	if !f.Status.CanCancel() {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot cancel float in %s status", f.Status))
	}
	if cashierID == uuid.Nil {
		return shared.NewDomainError("INVALID_CASHIER", "Cancelling cashier ID is required")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}

	now := time.Now()
	f.Status = FloatStatusCancelled
	f.CancelledAt = &now
	f.CancelledBy = &cashierID
	f.CancelReason = reason
	f.UpdatedAt = now
	f.IncrementVersion()

	f.AddDomainEvent(NewFloatCancelledEvent(f))

	return nil
}

// BeginHandover freezes the float for end-of-day settlement.
// After this, TransactionRecorder must reject any further entries.
func (f *Float) BeginHandover() error {
	if !f.Status.CanSubmitHandover() {
		return shared.NewDomainError("FLOAT_NOT_ACTIVE", fmt.Sprintf("Cannot submit handover for float in %s status", f.Status))
	}

	f.Status = FloatStatusPendingHandover
	f.UpdatedAt = time.Now()
	f.IncrementVersion()

	return nil
}

// CloseConfirmed terminates the float after the cashier accepted the handover
func (f *Float) CloseConfirmed() error {
	if f.Status != FloatStatusPendingHandover {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot close float in %s status", f.Status))
	}

	now := time.Now()
	f.Status = FloatStatusHandoverConfirmed
	f.ClosedAt = &now
	f.UpdatedAt = now
	f.IncrementVersion()

	return nil
}

// CloseRejected terminates the float after the cashier disputed the handover.
// The dispute is resolved out-of-band via an explicit re-issuance.
func (f *Float) CloseRejected() error {
	if f.Status != FloatStatusPendingHandover {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot reject handover of float in %s status", f.Status))
	}

	now := time.Now()
	f.Status = FloatStatusHandoverRejected
	f.ClosedAt = &now
	f.UpdatedAt = now
	f.IncrementVersion()

	return nil
}

// IsActive returns true if the float accepts ledger entries
func (f *Float) IsActive() bool {
	return f.Status == FloatStatusActive
}

// IsClosed returns true if the float reached a terminal state
func (f *Float) IsClosed() bool {
	return f.Status.IsTerminal()
}
