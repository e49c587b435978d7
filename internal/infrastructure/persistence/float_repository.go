package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loanflow/backend/internal/domain/custody"
	"github.com/loanflow/backend/internal/domain/shared"
)

// GormFloatRepository implements custody.FloatRepository using GORM
type GormFloatRepository struct {
	db *gorm.DB
}

// NewGormFloatRepository creates a new GormFloatRepository
func NewGormFloatRepository(db *gorm.DB) *GormFloatRepository {
	return &GormFloatRepository{db: db}
}

// Create inserts a new float. The partial unique index on non-terminal
// (tenant, collector, date) rows backs the pre-check, so two concurrent
// issuances cannot both land.
func (r *GormFloatRepository) Create(ctx context.Context, f *custody.Float) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := r.findOpen(ctx, tx, f.TenantID, f.CollectorID, f.FloatDate)
		if err != nil {
			return err
		}
		if existing != nil {
			return shared.ErrDuplicateActiveFloat
		}

		if err := tx.Create(f).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrDuplicateActiveFloat
			}
			return err
		}
		return nil
	})
}

// FindByIDForTenant finds a float by ID for a specific tenant
func (r *GormFloatRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*custody.Float, error) {
	var f custody.Float
	if err := r.db.WithContext(ctx).
		First(&f, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

// FindOpenByCollectorAndDate returns the non-terminal float occupying the
// (collector, date) slot, or nil
func (r *GormFloatRepository) FindOpenByCollectorAndDate(ctx context.Context, tenantID, collectorID uuid.UUID, floatDate string) (*custody.Float, error) {
	return r.findOpen(ctx, r.db, tenantID, collectorID, floatDate)
}

func (r *GormFloatRepository) findOpen(ctx context.Context, db *gorm.DB, tenantID, collectorID uuid.UUID, floatDate string) (*custody.Float, error) {
	var f custody.Float
	if err := db.WithContext(ctx).
		Where("tenant_id = ? AND collector_id = ? AND float_date = ? AND status IN ?",
			tenantID, collectorID, floatDate, custody.NonTerminalStatuses()).
		First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

// SaveTransition persists a status change as a conditional update. The WHERE
// clause pins the prior status and version, so of two racing transitions
// exactly one sees RowsAffected == 1.
func (r *GormFloatRepository) SaveTransition(ctx context.Context, f *custody.Float, from custody.FloatStatus) error {
	result := r.db.WithContext(ctx).
		Model(f).
		Where("id = ? AND tenant_id = ? AND status = ? AND version = ?",
			f.ID, f.TenantID, from, f.Version-1).
		Updates(f)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrInvalidTransition
	}
	return nil
}

// FindPendingForCollector lists floats awaiting this collector's receipt
func (r *GormFloatRepository) FindPendingForCollector(ctx context.Context, tenantID, collectorID uuid.UUID) ([]custody.Float, error) {
	var floats []custody.Float
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND collector_id = ? AND status = ?",
			tenantID, collectorID, custody.FloatStatusPendingConfirmation).
		Order("float_date ASC, created_at ASC").
		Find(&floats).Error; err != nil {
		return nil, err
	}
	return floats, nil
}

// FindPendingForTenant lists unconfirmed floats for the cashier view
func (r *GormFloatRepository) FindPendingForTenant(ctx context.Context, tenantID uuid.UUID) ([]custody.Float, error) {
	var floats []custody.Float
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, custody.FloatStatusPendingConfirmation).
		Order("float_date ASC, created_at ASC").
		Find(&floats).Error; err != nil {
		return nil, err
	}
	return floats, nil
}

// FindHistory lists floats with filtering and pagination, newest day first
func (r *GormFloatRepository) FindHistory(ctx context.Context, tenantID uuid.UUID, filter custody.FloatHistoryFilter) ([]custody.Float, int64, error) {
	query := r.db.WithContext(ctx).Model(&custody.Float{}).Where("tenant_id = ?", tenantID)

	if filter.CollectorID != nil {
		query = query.Where("collector_id = ?", *filter.CollectorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.FromDate != "" {
		query = query.Where("float_date >= ?", filter.FromDate)
	}
	if filter.ToDate != "" {
		query = query.Where("float_date <= ?", filter.ToDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var floats []custody.Float
	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}
	if err := query.Order("float_date DESC, created_at DESC").Find(&floats).Error; err != nil {
		return nil, 0, err
	}
	return floats, total, nil
}

var _ custody.FloatRepository = (*GormFloatRepository)(nil)
