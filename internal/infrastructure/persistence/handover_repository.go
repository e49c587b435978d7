package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/loanflow/backend/internal/domain/custody"
	"github.com/loanflow/backend/internal/domain/shared"
)

// GormHandoverRepository implements custody.HandoverRepository
type GormHandoverRepository struct {
	db      *gorm.DB
	entries *GormLedgerEntryRepository
}

// NewGormHandoverRepository creates a new GormHandoverRepository
func NewGormHandoverRepository(db *gorm.DB) *GormHandoverRepository {
	return &GormHandoverRepository{db: db, entries: NewGormLedgerEntryRepository(db)}
}

// Submit freezes the float for settlement in one transaction: lock the float,
// require ACTIVE, snapshot the balance as the frozen expected amount,
// transition to PENDING_HANDOVER and insert the handover row.
func (r *GormHandoverRepository) Submit(ctx context.Context, tenantID, collectorID, floatID uuid.UUID, actualAmount decimal.Decimal, notes string) (*custody.Handover, error) {
	var handover *custody.Handover

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f, err := lockFloat(tx, tenantID, floatID)
		if err != nil {
			return err
		}
		if f == nil || f.CollectorID != collectorID {
			return shared.ErrNotFound
		}
		if !f.Status.CanSubmitHandover() {
			return shared.ErrFloatNotActive
		}

		snapshot, err := r.entries.snapshotInTx(tx, f)
		if err != nil {
			return err
		}

		from := f.Status
		if err := f.BeginHandover(); err != nil {
			return err
		}
		result := tx.Model(f).
			Where("id = ? AND tenant_id = ? AND status = ? AND version = ?",
				f.ID, f.TenantID, from, f.Version-1).
			Updates(f)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrFloatNotActive
		}

		h, err := custody.NewHandover(tenantID, floatID, collectorID, f.CashierID,
			snapshot.Balance, actualAmount, notes)
		if err != nil {
			return err
		}
		if err := tx.Create(h).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrFloatNotActive
			}
			return err
		}

		handover = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return handover, nil
}

// FindByIDForTenant loads a handover scoped to a tenant; nil if absent
func (r *GormHandoverRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*custody.Handover, error) {
	var h custody.Handover
	if err := r.db.WithContext(ctx).
		First(&h, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &h, nil
}

// SaveDecision persists the cashier's confirm/reject together with the float's
// terminal transition in one transaction. Both updates are conditional on the
// prior status and version, so racing decisions have exactly one winner.
func (r *GormHandoverRepository) SaveDecision(ctx context.Context, h *custody.Handover, f *custody.Float) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(h).
			Where("id = ? AND tenant_id = ? AND status = ? AND version = ?",
				h.ID, h.TenantID, custody.HandoverStatusPending, h.Version-1).
			Updates(h)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrInvalidTransition
		}

		result = tx.Model(f).
			Where("id = ? AND tenant_id = ? AND status = ? AND version = ?",
				f.ID, f.TenantID, custody.FloatStatusPendingHandover, f.Version-1).
			Updates(f)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrInvalidTransition
		}
		return nil
	})
}

// FindPendingForTenant lists handovers awaiting cashier decision
func (r *GormHandoverRepository) FindPendingForTenant(ctx context.Context, tenantID uuid.UUID) ([]custody.Handover, error) {
	var handovers []custody.Handover
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, custody.HandoverStatusPending).
		Order("created_at ASC").
		Find(&handovers).Error; err != nil {
		return nil, err
	}
	return handovers, nil
}

var _ custody.HandoverRepository = (*GormHandoverRepository)(nil)
