package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/loanflow/backend/internal/domain/custody"
	"github.com/loanflow/backend/internal/domain/shared"
)

// GormLedgerEntryRepository implements custody.LedgerEntryRepository. The
// float row is the serialization unit: Append locks it FOR UPDATE so cap and
// cash-on-hand ceilings are checked against a stable balance.
type GormLedgerEntryRepository struct {
	db *gorm.DB
}

// NewGormLedgerEntryRepository creates a new GormLedgerEntryRepository
func NewGormLedgerEntryRepository(db *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: db}
}

// ledgerTotals is the aggregate scan target for one float's entries
type ledgerTotals struct {
	Collected  decimal.Decimal
	Disbursed  decimal.Decimal
	MaxSeq     int64
	LastAt     *time.Time
	EntryCount int64
}

// Append runs the whole check-and-append as one transaction: lock the float,
// verify it accepts entries, dedupe on the idempotency key, enforce the
// disbursement ceilings, assign the next sequence number and insert.
func (r *GormLedgerEntryRepository) Append(ctx context.Context, input custody.AppendEntryInput) (*custody.AppendResult, error) {
	var result *custody.AppendResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f, err := lockFloat(tx, input.TenantID, input.FloatID)
		if err != nil {
			return err
		}
		if f == nil {
			return shared.ErrNotFound
		}
		if !f.Status.CanRecordEntries() {
			return shared.ErrFloatNotActive
		}

		if input.IdempotencyKey != "" {
			existing, err := r.findByIdempotencyKey(tx, input.TenantID, input.FloatID, input.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				snapshot, err := r.snapshotInTx(tx, f)
				if err != nil {
					return err
				}
				result = &custody.AppendResult{Entry: existing, Snapshot: *snapshot, Duplicate: true}
				return nil
			}
		}

		totals, err := r.aggregateTotals(tx, input.TenantID, input.FloatID)
		if err != nil {
			return err
		}
		balance := f.OpeningAmount.Add(totals.Collected).Sub(totals.Disbursed)

		if input.Kind == custody.EntryKindDisbursement {
			if totals.Disbursed.Add(input.Amount).GreaterThan(f.DailyCap) {
				return shared.ErrDailyCapExceeded
			}
			if input.Amount.GreaterThan(balance) {
				return shared.ErrInsufficientCash
			}
		}

		entry, err := custody.NewLedgerEntry(
			input.TenantID, input.FloatID, input.Kind, input.Amount,
			input.IdempotencyKey, input.Reference, input.Notes,
		)
		if err != nil {
			return err
		}
		entry.SequenceNo = totals.MaxSeq + 1

		if err := tx.Create(entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// A sequence collision means another writer slipped in between
				// our aggregate read and the insert; the caller retries. An
				// idempotency collision means the key's original entry landed
				// concurrently, so hand that one back.
				if input.IdempotencyKey != "" {
					existing, lookupErr := r.findByIdempotencyKey(tx, input.TenantID, input.FloatID, input.IdempotencyKey)
					if lookupErr == nil && existing != nil {
						snapshot, snapErr := r.snapshotInTx(tx, f)
						if snapErr != nil {
							return snapErr
						}
						result = &custody.AppendResult{Entry: existing, Snapshot: *snapshot, Duplicate: true}
						return nil
					}
				}
				return shared.ErrTransient
			}
			return err
		}

		snapshot := &custody.BalanceSnapshot{
			FloatID:           f.ID,
			OpeningAmount:     f.OpeningAmount,
			Collected:         totals.Collected,
			Disbursed:         totals.Disbursed,
			Balance:           balance.Add(entry.Signed()),
			LastTransactionAt: &entry.RecordedAt,
		}
		if input.Kind == custody.EntryKindDisbursement {
			snapshot.Disbursed = snapshot.Disbursed.Add(input.Amount)
		} else {
			snapshot.Collected = snapshot.Collected.Add(input.Amount)
		}

		result = &custody.AppendResult{Entry: entry, Snapshot: *snapshot}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SnapshotBalance computes the float's current position from its entries
func (r *GormLedgerEntryRepository) SnapshotBalance(ctx context.Context, tenantID, floatID uuid.UUID) (*custody.BalanceSnapshot, error) {
	var f custody.Float
	if err := r.db.WithContext(ctx).
		First(&f, "id = ? AND tenant_id = ?", floatID, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return r.snapshotInTx(r.db.WithContext(ctx), &f)
}

func (r *GormLedgerEntryRepository) snapshotInTx(tx *gorm.DB, f *custody.Float) (*custody.BalanceSnapshot, error) {
	totals, err := r.aggregateTotals(tx, f.TenantID, f.ID)
	if err != nil {
		return nil, err
	}
	return &custody.BalanceSnapshot{
		FloatID:           f.ID,
		OpeningAmount:     f.OpeningAmount,
		Collected:         totals.Collected,
		Disbursed:         totals.Disbursed,
		Balance:           f.OpeningAmount.Add(totals.Collected).Sub(totals.Disbursed),
		LastTransactionAt: totals.LastAt,
	}, nil
}

// aggregateTotals sums the float's entries. The newest entry's timestamp is
// read back by sequence number as a plain column; SQLite reports no column
// type for MAX(recorded_at), so scanning the aggregate directly breaks there.
func (r *GormLedgerEntryRepository) aggregateTotals(tx *gorm.DB, tenantID, floatID uuid.UUID) (*ledgerTotals, error) {
	var row struct {
		Collected  decimal.NullDecimal
		Disbursed  decimal.NullDecimal
		MaxSeq     int64
		EntryCount int64
	}
	err := tx.Model(&custody.LedgerEntry{}).
		Select(
			"COALESCE(SUM(CASE WHEN kind = ? THEN amount ELSE 0 END), 0) AS collected, "+
				"COALESCE(SUM(CASE WHEN kind = ? THEN amount ELSE 0 END), 0) AS disbursed, "+
				"COALESCE(MAX(sequence_no), 0) AS max_seq, "+
				"COUNT(*) AS entry_count",
			custody.EntryKindCollection, custody.EntryKindDisbursement,
		).
		Where("tenant_id = ? AND float_id = ?", tenantID, floatID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	totals := &ledgerTotals{MaxSeq: row.MaxSeq, EntryCount: row.EntryCount}
	totals.Collected = decimal.Zero
	totals.Disbursed = decimal.Zero
	if row.Collected.Valid {
		totals.Collected = row.Collected.Decimal
	}
	if row.Disbursed.Valid {
		totals.Disbursed = row.Disbursed.Decimal
	}

	if row.MaxSeq > 0 {
		var last custody.LedgerEntry
		err := tx.Select("recorded_at").
			Where("tenant_id = ? AND float_id = ? AND sequence_no = ?", tenantID, floatID, row.MaxSeq).
			First(&last).Error
		if err != nil {
			return nil, err
		}
		totals.LastAt = &last.RecordedAt
	}
	return totals, nil
}

func (r *GormLedgerEntryRepository) findByIdempotencyKey(tx *gorm.DB, tenantID, floatID uuid.UUID, key string) (*custody.LedgerEntry, error) {
	var entry custody.LedgerEntry
	if err := tx.
		Where("tenant_id = ? AND float_id = ? AND idempotency_key = ?", tenantID, floatID, key).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// FindByIDForTenant loads a single entry scoped to a tenant; nil if absent
func (r *GormLedgerEntryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*custody.LedgerEntry, error) {
	var entry custody.LedgerEntry
	if err := r.db.WithContext(ctx).
		First(&entry, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// FindByFloat returns all entries for a float in sequence order
func (r *GormLedgerEntryRepository) FindByFloat(ctx context.Context, tenantID, floatID uuid.UUID) ([]custody.LedgerEntry, error) {
	var entries []custody.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND float_id = ?", tenantID, floatID).
		Order("sequence_no ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// FindHistory lists a collector's entries across floats, newest first
func (r *GormLedgerEntryRepository) FindHistory(ctx context.Context, tenantID, collectorID uuid.UUID, filter custody.EntryHistoryFilter) ([]custody.LedgerEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&custody.LedgerEntry{}).
		Joins("JOIN cash_floats ON cash_floats.id = cash_ledger_entries.float_id").
		Where("cash_ledger_entries.tenant_id = ? AND cash_floats.collector_id = ?", tenantID, collectorID)

	if filter.Kind != nil {
		query = query.Where("cash_ledger_entries.kind = ?", *filter.Kind)
	}
	if filter.FromDate != "" {
		query = query.Where("cash_floats.float_date >= ?", filter.FromDate)
	}
	if filter.ToDate != "" {
		query = query.Where("cash_floats.float_date <= ?", filter.ToDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []custody.LedgerEntry
	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}
	if err := query.
		Order("cash_ledger_entries.recorded_at DESC, cash_ledger_entries.sequence_no DESC").
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// lockFloat loads the float under FOR UPDATE where the dialect supports it.
// SQLite rejects the clause; its single-writer model serializes writes anyway.
func lockFloat(tx *gorm.DB, tenantID, floatID uuid.UUID) (*custody.Float, error) {
	query := tx
	if supportsRowLocking(tx) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var f custody.Float
	if err := query.First(&f, "id = ? AND tenant_id = ?", floatID, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

var _ custody.LedgerEntryRepository = (*GormLedgerEntryRepository)(nil)
