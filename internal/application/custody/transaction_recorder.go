package custody

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/loanflow/backend/internal/domain/custody"
	"github.com/loanflow/backend/internal/domain/shared"
	"github.com/loanflow/backend/internal/infrastructure/logger"
	"github.com/loanflow/backend/internal/infrastructure/telemetry"
)

// appendRetries bounds retries on transient append conflicts. Validation
// failures (cap exceeded, float not active) are never retried.
const appendRetries = 3

// TransactionRecorder appends collections and disbursements to a float's
// ledger. The storage layer runs the whole check-and-append atomically; this
// service adds validation, the idempotency fast path and bounded retry.
type TransactionRecorder struct {
	floatRepo custody.FloatRepository
	entryRepo custody.LedgerEntryRepository
	idemStore shared.IdempotencyStore
	idemCfg   shared.IdempotencyConfig
}

// NewTransactionRecorder creates a new TransactionRecorder
func NewTransactionRecorder(
	floatRepo custody.FloatRepository,
	entryRepo custody.LedgerEntryRepository,
	idemStore shared.IdempotencyStore,
	idemCfg shared.IdempotencyConfig,
) *TransactionRecorder {
	return &TransactionRecorder{
		floatRepo: floatRepo,
		entryRepo: entryRepo,
		idemStore: idemStore,
		idemCfg:   idemCfg,
	}
}

// RecordEntryRequest represents a request to append one cash movement
type RecordEntryRequest struct {
	TenantID       uuid.UUID
	CollectorID    uuid.UUID
	FloatID        uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
	Reference      string
	Notes          string
}

// RecordCollection appends a cash receipt from a borrower
func (s *TransactionRecorder) RecordCollection(ctx context.Context, req RecordEntryRequest) (*custody.AppendResult, error) {
	return s.record(ctx, req, custody.EntryKindCollection)
}

// RecordDisbursement appends a cash release to a borrower. The storage layer
// rejects it if it would breach the daily cap or exceed cash on hand.
func (s *TransactionRecorder) RecordDisbursement(ctx context.Context, req RecordEntryRequest) (*custody.AppendResult, error) {
	return s.record(ctx, req, custody.EntryKindDisbursement)
}

func (s *TransactionRecorder) record(ctx context.Context, req RecordEntryRequest, kind custody.EntryKind) (*custody.AppendResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transaction_recorder", "record")
	defer span.End()

	telemetry.SetAttributes(span,
		"float_id", req.FloatID.String(),
		"kind", kind.String(),
		"amount", req.Amount.String(),
	)

	if req.Amount.LessThanOrEqual(decimal.Zero) {
		err := shared.NewDomainError("INVALID_AMOUNT", "Entry amount must be positive")
		telemetry.RecordError(span, err)
		return nil, err
	}

	// Ownership check up front so a collector cannot write into another
	// collector's float. The status check is repeated under lock in Append.
	f, err := s.floatRepo.FindByIDForTenant(ctx, req.TenantID, req.FloatID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load float: %w", err)
	}
	if f == nil || f.CollectorID != req.CollectorID {
		return nil, shared.ErrNotFound
	}

	// Fast path: a cached idempotency key short-circuits without touching
	// the float row. The unique index in storage remains the hard guarantee.
	if req.IdempotencyKey != "" && s.idemCfg.Enabled && s.idemStore != nil {
		if dup := s.lookupCached(ctx, req); dup != nil {
			telemetry.AddEvent(span, "idempotency_cache_hit")
			return dup, nil
		}
	}

	result, err := s.appendWithRetry(ctx, custody.AppendEntryInput{
		TenantID:       req.TenantID,
		FloatID:        req.FloatID,
		Kind:           kind,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
		Reference:      req.Reference,
		Notes:          req.Notes,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if req.IdempotencyKey != "" && s.idemCfg.Enabled && s.idemStore != nil {
		if _, err := s.idemStore.Remember(ctx, s.cacheKey(req), result.Entry.ID, s.idemCfg.TTL); err != nil {
			// Cache failure is not a business failure
			logger.L(ctx).Warn("Failed to cache idempotency key", zap.Error(err))
		}
	}

	logger.L(ctx).Info("Ledger entry recorded",
		zap.String("float_id", req.FloatID.String()),
		zap.String("kind", kind.String()),
		zap.String("amount", req.Amount.String()),
		zap.Int64("sequence_no", result.Entry.SequenceNo),
		zap.Bool("duplicate", result.Duplicate),
	)

	return result, nil
}

// appendWithRetry retries only transient conflicts: lock contention and
// serialization failures. Domain rejections surface immediately.
func (s *TransactionRecorder) appendWithRetry(ctx context.Context, input custody.AppendEntryInput) (*custody.AppendResult, error) {
	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 25 * time.Millisecond):
			}
		}

		result, err := s.entryRepo.Append(ctx, input)
		if err == nil {
			return result, nil
		}
		if !isTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("append retries exhausted: %w", lastErr)
}

func isTransient(err error) bool {
	return errors.Is(err, shared.ErrTransient) || errors.Is(err, shared.ErrConcurrencyConflict)
}

func (s *TransactionRecorder) cacheKey(req RecordEntryRequest) string {
	// Keys are scoped per float, matching the storage unique index
	return req.FloatID.String() + ":" + req.IdempotencyKey
}

// lookupCached returns the original append result if the key was seen
// before, or nil on a miss or any cache error.
func (s *TransactionRecorder) lookupCached(ctx context.Context, req RecordEntryRequest) *custody.AppendResult {
	entryID, err := s.idemStore.Lookup(ctx, s.cacheKey(req))
	if err != nil || entryID == uuid.Nil {
		return nil
	}

	entry, err := s.entryRepo.FindByIDForTenant(ctx, req.TenantID, entryID)
	if err != nil || entry == nil {
		return nil
	}

	snapshot, err := s.entryRepo.SnapshotBalance(ctx, req.TenantID, req.FloatID)
	if err != nil || snapshot == nil {
		return nil
	}

	return &custody.AppendResult{
		Entry:     entry,
		Snapshot:  *snapshot,
		Duplicate: true,
	}
}

// ListEntries returns all entries for a float in sequence order
func (s *TransactionRecorder) ListEntries(ctx context.Context, tenantID, floatID uuid.UUID) ([]custody.LedgerEntry, error) {
	return s.entryRepo.FindByFloat(ctx, tenantID, floatID)
}

// History lists a collector's cash movements across floats, newest first
func (s *TransactionRecorder) History(ctx context.Context, tenantID, collectorID uuid.UUID, filter custody.EntryHistoryFilter) (*shared.Paginated[custody.LedgerEntry], error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 50
	}

	entries, total, err := s.entryRepo.FindHistory(ctx, tenantID, collectorID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list cash flow history: %w", err)
	}

	result := shared.NewPaginated(entries, total, filter.Page, filter.PageSize)
	return &result, nil
}
