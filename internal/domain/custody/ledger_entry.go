package custody

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loanflow/backend/internal/domain/shared"
)

// EntryKind distinguishes the two directions of cash movement against a float
type EntryKind string

const (
	EntryKindCollection   EntryKind = "COLLECTION"   // Cash collected in the field, balance goes up
	EntryKindDisbursement EntryKind = "DISBURSEMENT" // Cash paid out in the field, balance goes down
)

// IsValid checks if the kind is a valid EntryKind
func (k EntryKind) IsValid() bool {
	return k == EntryKindCollection || k == EntryKindDisbursement
}

// String returns the string representation of EntryKind
func (k EntryKind) String() string {
	return string(k)
}

// LedgerEntry is an immutable record of one collection or disbursement
// against an active float. Entries are append-only; SequenceNo gives a
// gap-free total order per float independent of wall-clock skew.
type LedgerEntry struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	FloatID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_float_seq,priority:1;uniqueIndex:idx_ledger_float_idem,priority:1"`
	Kind           EntryKind       `gorm:"type:varchar(20);not null"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SequenceNo     int64           `gorm:"not null;uniqueIndex:idx_ledger_float_seq,priority:2"`
	IdempotencyKey *string         `gorm:"type:varchar(100);uniqueIndex:idx_ledger_float_idem,priority:2"`
	Reference      string          `gorm:"type:varchar(100)"` // Loan or payment the cash movement settles
	Notes          string          `gorm:"type:varchar(500)"`
	RecordedAt     time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (LedgerEntry) TableName() string {
	return "cash_ledger_entries"
}

// NewLedgerEntry creates a ledger entry. SequenceNo is assigned by the store
// inside the append transaction, not here.
func NewLedgerEntry(
	tenantID uuid.UUID,
	floatID uuid.UUID,
	kind EntryKind,
	amount decimal.Decimal,
	idempotencyKey string,
	reference string,
	notes string,
) (*LedgerEntry, error) {
	if floatID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_FLOAT", "Float ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", "Entry kind must be COLLECTION or DISBURSEMENT")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Entry amount must be positive")
	}
	if len(idempotencyKey) > 100 {
		return nil, shared.NewDomainError("INVALID_IDEMPOTENCY_KEY", "Idempotency key cannot exceed 100 characters")
	}

	e := &LedgerEntry{
		ID:         uuid.New(),
		TenantID:   tenantID,
		FloatID:    floatID,
		Kind:       kind,
		Amount:     amount,
		Reference:  reference,
		Notes:      notes,
		RecordedAt: time.Now(),
	}
	if idempotencyKey != "" {
		e.IdempotencyKey = &idempotencyKey
	}

	return e, nil
}

// Signed returns the entry amount with its balance effect sign
func (e *LedgerEntry) Signed() decimal.Decimal {
	if e.Kind == EntryKindDisbursement {
		return e.Amount.Neg()
	}
	return e.Amount
}

// IsDisbursement returns true for cap-consuming entries
func (e *LedgerEntry) IsDisbursement() bool {
	return e.Kind == EntryKindDisbursement
}
