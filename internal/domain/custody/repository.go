package custody

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceSnapshot is the ledger position of one float, computed inside the
// same transaction as any mutating call that depends on it.
type BalanceSnapshot struct {
	FloatID           uuid.UUID       `json:"float_id"`
	OpeningAmount     decimal.Decimal `json:"opening_amount"`
	Collected         decimal.Decimal `json:"collected"`
	Disbursed         decimal.Decimal `json:"disbursed"`
	Balance           decimal.Decimal `json:"balance"`
	LastTransactionAt *time.Time      `json:"last_transaction_at,omitempty"`
}

// AppendEntryInput carries one check-and-append request
type AppendEntryInput struct {
	TenantID       uuid.UUID
	FloatID        uuid.UUID
	Kind           EntryKind
	Amount         decimal.Decimal
	IdempotencyKey string
	Reference      string
	Notes          string
}

// AppendResult is the outcome of a successful (or deduplicated) append
type AppendResult struct {
	Entry     *LedgerEntry
	Snapshot  BalanceSnapshot
	Duplicate bool // true if the idempotency key matched an existing entry
}

// FloatHistoryFilter narrows float history queries
type FloatHistoryFilter struct {
	CollectorID *uuid.UUID
	Status      *FloatStatus
	FromDate    string
	ToDate      string
	Page        int
	PageSize    int
}

// EntryHistoryFilter narrows cash flow history queries
type EntryHistoryFilter struct {
	Kind     *EntryKind
	FromDate string
	ToDate   string
	Page     int
	PageSize int
}

// CollectorBalance is the read-side projection row for one collector's day
type CollectorBalance struct {
	CollectorID              uuid.UUID       `json:"collector_id"`
	FloatID                  uuid.UUID       `json:"float_id"`
	FloatDate                string          `json:"float_date"`
	Status                   FloatStatus     `json:"status"`
	OpeningAmount            decimal.Decimal `json:"opening_amount"`
	DailyCap                 decimal.Decimal `json:"daily_cap"`
	Collected                decimal.Decimal `json:"collected"`
	Disbursed                decimal.Decimal `json:"disbursed"`
	Balance                  decimal.Decimal `json:"balance"`
	AvailableForDisbursement decimal.Decimal `json:"available_for_disbursement"`
	LastTransactionAt        *time.Time      `json:"last_transaction_at,omitempty"`
}

// FloatRepository persists Float aggregates. Uniqueness of one non-terminal
// float per (collector, date) is enforced at this boundary, backed by a
// partial unique index so no caller can violate it.
type FloatRepository interface {
	// Create inserts a new float; returns ErrDuplicateActiveFloat if a
	// non-terminal float already occupies the (collector, date) slot.
	Create(ctx context.Context, f *Float) error

	// FindByIDForTenant loads a float scoped to a tenant; nil if absent
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Float, error)

	// FindOpenByCollectorAndDate returns the non-terminal float occupying the
	// slot, or nil
	FindOpenByCollectorAndDate(ctx context.Context, tenantID, collectorID uuid.UUID, floatDate string) (*Float, error)

	// SaveTransition persists a status change as a conditional update
	// (WHERE status = from AND version = old); exactly one racer wins,
	// losers get ErrInvalidTransition.
	SaveTransition(ctx context.Context, f *Float, from FloatStatus) error

	// FindPendingForCollector lists floats awaiting this collector's receipt
	FindPendingForCollector(ctx context.Context, tenantID, collectorID uuid.UUID) ([]Float, error)

	// FindPendingForTenant lists unconfirmed floats for the cashier view
	FindPendingForTenant(ctx context.Context, tenantID uuid.UUID) ([]Float, error)

	// FindHistory lists floats with filtering and pagination
	FindHistory(ctx context.Context, tenantID uuid.UUID, filter FloatHistoryFilter) ([]Float, int64, error)
}

// LedgerEntryRepository is the append-only transaction log. Append runs the
// whole check-and-append as one atomic unit serialized on the float row.
type LedgerEntryRepository interface {
	// Append locks the float, verifies it is ACTIVE, enforces the daily cap
	// and cash-on-hand ceilings for disbursements, assigns the next sequence
	// number and inserts the entry, all in a single transaction. A duplicate
	// idempotency key returns the original entry with Duplicate set.
	Append(ctx context.Context, input AppendEntryInput) (*AppendResult, error)

	// SnapshotBalance computes the float's position from its entries
	SnapshotBalance(ctx context.Context, tenantID, floatID uuid.UUID) (*BalanceSnapshot, error)

	// FindByIDForTenant loads a single entry; nil if absent
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*LedgerEntry, error)

	// FindByFloat returns all entries for a float in sequence order
	FindByFloat(ctx context.Context, tenantID, floatID uuid.UUID) ([]LedgerEntry, error)

	// FindHistory lists a collector's entries across floats, newest first,
	// with filtering and pagination
	FindHistory(ctx context.Context, tenantID, collectorID uuid.UUID, filter EntryHistoryFilter) ([]LedgerEntry, int64, error)
}

// HandoverRepository persists Handover records with the same transactional
// guarantees as float transitions.
type HandoverRepository interface {
	// Submit freezes the float for settlement in one transaction: lock the
	// float, require ACTIVE, snapshot the balance, transition to
	// PENDING_HANDOVER and insert the handover with the frozen expected
	// amount. A second submit fails with ErrFloatNotActive.
	Submit(ctx context.Context, tenantID, collectorID, floatID uuid.UUID, actualAmount decimal.Decimal, notes string) (*Handover, error)

	// FindByIDForTenant loads a handover scoped to a tenant; nil if absent
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Handover, error)

	// SaveDecision persists the cashier's confirm/reject together with the
	// float's terminal transition in one transaction; conditional updates
	// guarantee a single winner.
	SaveDecision(ctx context.Context, h *Handover, f *Float) error

	// FindPendingForTenant lists handovers awaiting cashier decision
	FindPendingForTenant(ctx context.Context, tenantID uuid.UUID) ([]Handover, error)
}

// BalanceReadRepository is the read-side projection over committed ledger
// data. It never participates in mutations.
type BalanceReadRepository interface {
	// GetCollectorBalances returns the per-collector projection for a day
	GetCollectorBalances(ctx context.Context, tenantID uuid.UUID, floatDate string) ([]CollectorBalance, error)

	// GetFloatBalance returns the projection for one float
	GetFloatBalance(ctx context.Context, tenantID, floatID uuid.UUID) (*CollectorBalance, error)
}
