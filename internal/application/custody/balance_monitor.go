package custody

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loanflow/backend/internal/domain/custody"
	"github.com/loanflow/backend/internal/domain/shared"
)

// BalanceMonitor serves the read side: per-collector cash positions derived
// from committed ledger data. It never participates in mutations and its
// answers may trail an in-flight append by design.
type BalanceMonitor struct {
	balanceRepo custody.BalanceReadRepository
	entryRepo   custody.LedgerEntryRepository
}

// NewBalanceMonitor creates a new BalanceMonitor
func NewBalanceMonitor(balanceRepo custody.BalanceReadRepository, entryRepo custody.LedgerEntryRepository) *BalanceMonitor {
	return &BalanceMonitor{
		balanceRepo: balanceRepo,
		entryRepo:   entryRepo,
	}
}

// CollectorBalances returns the cash position of every collector with a
// float on the given day. An empty date defaults to today.
func (s *BalanceMonitor) CollectorBalances(ctx context.Context, tenantID uuid.UUID, floatDate string) ([]custody.CollectorBalance, error) {
	if floatDate == "" {
		floatDate = time.Now().Format(custody.FloatDateLayout)
	}
	if _, err := time.Parse(custody.FloatDateLayout, floatDate); err != nil {
		return nil, shared.NewDomainError("INVALID_FLOAT_DATE",
			fmt.Sprintf("Float date must be in %s format", custody.FloatDateLayout))
	}

	return s.balanceRepo.GetCollectorBalances(ctx, tenantID, floatDate)
}

// FloatBalance returns the position of one float
func (s *BalanceMonitor) FloatBalance(ctx context.Context, tenantID, floatID uuid.UUID) (*custody.CollectorBalance, error) {
	balance, err := s.balanceRepo.GetFloatBalance(ctx, tenantID, floatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load float balance: %w", err)
	}
	if balance == nil {
		return nil, shared.ErrNotFound
	}
	return balance, nil
}

// FloatSnapshot computes the ledger position of one float from its entries
func (s *BalanceMonitor) FloatSnapshot(ctx context.Context, tenantID, floatID uuid.UUID) (*custody.BalanceSnapshot, error) {
	snapshot, err := s.entryRepo.SnapshotBalance(ctx, tenantID, floatID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot float balance: %w", err)
	}
	if snapshot == nil {
		return nil, shared.ErrNotFound
	}
	return snapshot, nil
}
