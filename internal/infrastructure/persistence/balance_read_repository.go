package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/loanflow/backend/internal/domain/custody"
	"github.com/loanflow/backend/internal/domain/shared"
)

// GormBalanceReadRepository implements custody.BalanceReadRepository as a
// read-only projection over floats and their ledger entries.
type GormBalanceReadRepository struct {
	db *gorm.DB
}

// NewGormBalanceReadRepository creates a new GormBalanceReadRepository
func NewGormBalanceReadRepository(db *gorm.DB) *GormBalanceReadRepository {
	return &GormBalanceReadRepository{db: db}
}

// balanceRow is the join scan target; derived figures are computed in Go so
// the decimal arithmetic matches the write side exactly. LastAt is filled by
// a follow-up lookup on the newest sequence number because SQLite reports no
// column type for MAX(recorded_at) and the driver cannot scan it as a time.
type balanceRow struct {
	CollectorID   uuid.UUID
	FloatID       uuid.UUID
	FloatDate     string
	Status        custody.FloatStatus
	OpeningAmount decimal.Decimal
	DailyCap      decimal.Decimal
	Collected     decimal.NullDecimal
	Disbursed     decimal.NullDecimal
	LastAt        *time.Time `gorm:"-"`
}

const balanceSelect = `cash_floats.collector_id AS collector_id,
cash_floats.id AS float_id,
cash_floats.float_date AS float_date,
cash_floats.status AS status,
cash_floats.opening_amount AS opening_amount,
cash_floats.daily_cap AS daily_cap,
SUM(CASE WHEN cash_ledger_entries.kind = 'COLLECTION' THEN cash_ledger_entries.amount ELSE 0 END) AS collected,
SUM(CASE WHEN cash_ledger_entries.kind = 'DISBURSEMENT' THEN cash_ledger_entries.amount ELSE 0 END) AS disbursed`

// GetCollectorBalances returns the per-collector projection for a day
func (r *GormBalanceReadRepository) GetCollectorBalances(ctx context.Context, tenantID uuid.UUID, floatDate string) ([]custody.CollectorBalance, error) {
	var rows []balanceRow
	err := r.db.WithContext(ctx).
		Model(&custody.Float{}).
		Select(balanceSelect).
		Joins("LEFT JOIN cash_ledger_entries ON cash_ledger_entries.float_id = cash_floats.id").
		Where("cash_floats.tenant_id = ? AND cash_floats.float_date = ?", tenantID, floatDate).
		Group("cash_floats.id, cash_floats.collector_id, cash_floats.float_date, cash_floats.status, cash_floats.opening_amount, cash_floats.daily_cap").
		Order("cash_floats.collector_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	floatIDs := make([]uuid.UUID, 0, len(rows))
	for i := range rows {
		floatIDs = append(floatIDs, rows[i].FloatID)
	}
	lastTimes, err := r.lastTransactionTimes(ctx, tenantID, floatIDs)
	if err != nil {
		return nil, err
	}

	balances := make([]custody.CollectorBalance, 0, len(rows))
	for i := range rows {
		if at, ok := lastTimes[rows[i].FloatID]; ok {
			rows[i].LastAt = &at
		}
		balances = append(balances, rows[i].toBalance())
	}
	return balances, nil
}

// GetFloatBalance returns the projection for one float; ErrNotFound if absent
func (r *GormBalanceReadRepository) GetFloatBalance(ctx context.Context, tenantID, floatID uuid.UUID) (*custody.CollectorBalance, error) {
	var row balanceRow
	err := r.db.WithContext(ctx).
		Model(&custody.Float{}).
		Select(balanceSelect).
		Joins("LEFT JOIN cash_ledger_entries ON cash_ledger_entries.float_id = cash_floats.id").
		Where("cash_floats.tenant_id = ? AND cash_floats.id = ?", tenantID, floatID).
		Group("cash_floats.id, cash_floats.collector_id, cash_floats.float_date, cash_floats.status, cash_floats.opening_amount, cash_floats.daily_cap").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	lastTimes, err := r.lastTransactionTimes(ctx, tenantID, []uuid.UUID{row.FloatID})
	if err != nil {
		return nil, err
	}
	if at, ok := lastTimes[row.FloatID]; ok {
		row.LastAt = &at
	}

	balance := row.toBalance()
	return &balance, nil
}

// lastTransactionTimes returns the newest entry timestamp per float, located
// by the top sequence number so the datetime is read as a plain column.
func (r *GormBalanceReadRepository) lastTransactionTimes(ctx context.Context, tenantID uuid.UUID, floatIDs []uuid.UUID) (map[uuid.UUID]time.Time, error) {
	if len(floatIDs) == 0 {
		return map[uuid.UUID]time.Time{}, nil
	}

	var rows []struct {
		FloatID    uuid.UUID
		RecordedAt time.Time
	}
	err := r.db.WithContext(ctx).
		Model(&custody.LedgerEntry{}).
		Select("cash_ledger_entries.float_id AS float_id, cash_ledger_entries.recorded_at AS recorded_at").
		Joins("JOIN (SELECT float_id, MAX(sequence_no) AS max_seq FROM cash_ledger_entries WHERE tenant_id = ? GROUP BY float_id) latest"+
			" ON latest.float_id = cash_ledger_entries.float_id AND latest.max_seq = cash_ledger_entries.sequence_no", tenantID).
		Where("cash_ledger_entries.float_id IN ?", floatIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	times := make(map[uuid.UUID]time.Time, len(rows))
	for _, row := range rows {
		times[row.FloatID] = row.RecordedAt
	}
	return times, nil
}

func (b balanceRow) toBalance() custody.CollectorBalance {
	collected := decimal.Zero
	disbursed := decimal.Zero
	if b.Collected.Valid {
		collected = b.Collected.Decimal
	}
	if b.Disbursed.Valid {
		disbursed = b.Disbursed.Decimal
	}

	balance := b.OpeningAmount.Add(collected).Sub(disbursed)

	// Headroom is the tighter of the remaining cap and the cash on hand,
	// floored at zero for terminal or frozen floats.
	available := b.DailyCap.Sub(disbursed)
	if balance.LessThan(available) {
		available = balance
	}
	if available.IsNegative() || !b.Status.CanRecordEntries() {
		available = decimal.Zero
	}

	return custody.CollectorBalance{
		CollectorID:              b.CollectorID,
		FloatID:                  b.FloatID,
		FloatDate:                b.FloatDate,
		Status:                   b.Status,
		OpeningAmount:            b.OpeningAmount,
		DailyCap:                 b.DailyCap,
		Collected:                collected,
		Disbursed:                disbursed,
		Balance:                  balance,
		AvailableForDisbursement: available,
		LastTransactionAt:        b.LastAt,
	}
}

var _ custody.BalanceReadRepository = (*GormBalanceReadRepository)(nil)
