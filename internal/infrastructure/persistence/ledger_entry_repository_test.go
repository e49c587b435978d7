package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanflow/backend/internal/domain/custody"
	"github.com/loanflow/backend/internal/domain/shared"
)

func TestGormLedgerEntryRepository_AppendCollection(t *testing.T) {
	db := setupCustodyTestDB(t)
	repo := NewGormLedgerEntryRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	collectorID := uuid.New()
	f := seedActiveFloat(t, db, tenantID, collectorID, 5000, 5000)

	result, err := repo.Append(ctx, custody.AppendEntryInput{
		TenantID:  tenantID,
		FloatID:   f.ID,
		Kind:      custody.EntryKindCollection,
		Amount:    decimal.NewFromInt(1000),
		Reference: "LOAN-001",
	})
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, int64(1), result.Entry.SequenceNo)
	assert.True(t, result.Snapshot.Balance.Equal(decimal.NewFromInt(6000)))
	assert.True(t, result.Snapshot.Collected.Equal(decimal.NewFromInt(1000)))

	second, err := repo.Append(ctx, custody.AppendEntryInput{
		TenantID: tenantID,
		FloatID:  f.ID,
		Kind:     custody.EntryKindDisbursement,
		Amount:   decimal.NewFromInt(2500),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Entry.SequenceNo)
	assert.True(t, second.Snapshot.Balance.Equal(decimal.NewFromInt(3500)))
	assert.True(t, second.Snapshot.Disbursed.Equal(decimal.NewFromInt(2500)))
	assert.NotNil(t, second.Snapshot.LastTransactionAt)
}

func TestGormLedgerEntryRepository_AppendGuards(t *testing.T) {
	db := setupCustodyTestDB(t)
	floatRepo := NewGormFloatRepository(db)
	repo := NewGormLedgerEntryRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()

	t.Run("unknown float", func(t *testing.T) {
		_, err := repo.Append(ctx, custody.AppendEntryInput{
			TenantID: tenantID,
			FloatID:  uuid.New(),
			Kind:     custody.EntryKindCollection,
			Amount:   decimal.NewFromInt(100),
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("unconfirmed float rejects entries", func(t *testing.T) {
		f := newTestFloat(t, tenantID, uuid.New(), "2026-08-28")
		require.NoError(t, floatRepo.Create(ctx, f))

		_, err := repo.Append(ctx, custody.AppendEntryInput{
			TenantID: tenantID,
			FloatID:  f.ID,
			Kind:     custody.EntryKindCollection,
			Amount:   decimal.NewFromInt(100),
		})
		assert.ErrorIs(t, err, shared.ErrFloatNotActive)
	})

	t.Run("wrong tenant reads as not found", func(t *testing.T) {
		f := seedActiveFloat(t, db, tenantID, uuid.New(), 1000, 1000)

		_, err := repo.Append(ctx, custody.AppendEntryInput{
			TenantID: uuid.New(),
			FloatID:  f.ID,
			Kind:     custody.EntryKindCollection,
			Amount:   decimal.NewFromInt(100),
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormLedgerEntryRepository_DisbursementCeilings(t *testing.T) {
	db := setupCustodyTestDB(t)
	repo := NewGormLedgerEntryRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	f := seedActiveFloat(t, db, tenantID, uuid.New(), 5000, 3000)

	// 2000 of the 3000 cap consumed
	_, err := repo.Append(ctx, custody.AppendEntryInput{
		TenantID: tenantID,
		FloatID:  f.ID,
		Kind:     custody.EntryKindDisbursement,
		Amount:   decimal.NewFromInt(2000),
	})
	require.NoError(t, err)

	t.Run("exceeding the daily cap", func(t *testing.T) {
		_, err := repo.Append(ctx, custody.AppendEntryInput{
			TenantID: tenantID,
			FloatID:  f.ID,
			Kind:     custody.EntryKindDisbursement,
			Amount:   decimal.NewFromInt(1001),
		})
		assert.ErrorIs(t, err, shared.ErrDailyCapExceeded)
	})

	t.Run("exactly at the cap is allowed", func(t *testing.T) {
		result, err := repo.Append(ctx, custody.AppendEntryInput{
			TenantID: tenantID,
			FloatID:  f.ID,
			Kind:     custody.EntryKindDisbursement,
			Amount:   decimal.NewFromInt(1000),
		})
		require.NoError(t, err)
		assert.True(t, result.Snapshot.Disbursed.Equal(decimal.NewFromInt(3000)))
	})

	t.Run("collections are never capped", func(t *testing.T) {
		_, err := repo.Append(ctx, custody.AppendEntryInput{
			TenantID: tenantID,
			FloatID:  f.ID,
			Kind:     custody.EntryKindCollection,
			Amount:   decimal.NewFromInt(50000),
		})
		assert.NoError(t, err)
	})
}

func TestGormLedgerEntryRepository_InsufficientCash(t *testing.T) {
	db := setupCustodyTestDB(t)
	repo := NewGormLedgerEntryRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	// Cap is generous, cash on hand is the binding limit
	f := seedActiveFloat(t, db, tenantID, uuid.New(), 1000, 10000)

	_, err := repo.Append(ctx, custody.AppendEntryInput{
		TenantID: tenantID,
		FloatID:  f.ID,
		Kind:     custody.EntryKindDisbursement,
		Amount:   decimal.NewFromInt(1500),
	})
	assert.ErrorIs(t, err, shared.ErrInsufficientCash)

	// A collection raises the ceiling
	_, err = repo.Append(ctx, custody.AppendEntryInput{
		TenantID: tenantID,
		FloatID:  f.ID,
		Kind:     custody.EntryKindCollection,
		Amount:   decimal.NewFromInt(800),
	})
	require.NoError(t, err)

	result, err := repo.Append(ctx, custody.AppendEntryInput{
		TenantID: tenantID,
		FloatID:  f.ID,
		Kind:     custody.EntryKindDisbursement,
		Amount:   decimal.NewFromInt(1500),
	})
	require.NoError(t, err)
	assert.True(t, result.Snapshot.Balance.Equal(decimal.NewFromInt(300)))
}

func TestGormLedgerEntryRepository_IdempotentAppend(t *testing.T) {
	db := setupCustodyTestDB(t)
	repo := NewGormLedgerEntryRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	f := seedActiveFloat(t, db, tenantID, uuid.New(), 5000, 5000)

	first, err := repo.Append(ctx, custody.AppendEntryInput{
		TenantID:       tenantID,
		FloatID:        f.ID,
		Kind:           custody.EntryKindCollection,
		Amount:         decimal.NewFromInt(700),
		IdempotencyKey: "mobile-req-42",
	})
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	replay, err := repo.Append(ctx, custody.AppendEntryInput{
		TenantID:       tenantID,
		FloatID:        f.ID,
		Kind:           custody.EntryKindCollection,
		Amount:         decimal.NewFromInt(700),
		IdempotencyKey: "mobile-req-42",
	})
	require.NoError(t, err)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, first.Entry.ID, replay.Entry.ID)
	assert.True(t, replay.Snapshot.Balance.Equal(decimal.NewFromInt(5700)))

	entries, err := repo.FindByFloat(ctx, tenantID, f.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// The same key on a different float is a different request
	other := seedActiveFloat(t, db, tenantID, uuid.New(), 5000, 5000)
	fresh, err := repo.Append(ctx, custody.AppendEntryInput{
		TenantID:       tenantID,
		FloatID:        other.ID,
		Kind:           custody.EntryKindCollection,
		Amount:         decimal.NewFromInt(700),
		IdempotencyKey: "mobile-req-42",
	})
	require.NoError(t, err)
	assert.False(t, fresh.Duplicate)
}

func TestGormLedgerEntryRepository_SequenceOrder(t *testing.T) {
	db := setupCustodyTestDB(t)
	repo := NewGormLedgerEntryRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	f := seedActiveFloat(t, db, tenantID, uuid.New(), 5000, 5000)

	for i := 1; i <= 4; i++ {
		_, err := repo.Append(ctx, custody.AppendEntryInput{
			TenantID: tenantID,
			FloatID:  f.ID,
			Kind:     custody.EntryKindCollection,
			Amount:   decimal.NewFromInt(int64(i * 10)),
		})
		require.NoError(t, err)
	}

	entries, err := repo.FindByFloat(ctx, tenantID, f.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.SequenceNo)
	}
}

func TestGormLedgerEntryRepository_SnapshotBalance(t *testing.T) {
	db := setupCustodyTestDB(t)
	repo := NewGormLedgerEntryRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	f := seedActiveFloat(t, db, tenantID, uuid.New(), 2000, 2000)

	t.Run("empty float", func(t *testing.T) {
		snapshot, err := repo.SnapshotBalance(ctx, tenantID, f.ID)
		require.NoError(t, err)
		assert.True(t, snapshot.Balance.Equal(decimal.NewFromInt(2000)))
		assert.Nil(t, snapshot.LastTransactionAt)
	})

	t.Run("after entries", func(t *testing.T) {
		_, err := repo.Append(ctx, custody.AppendEntryInput{
			TenantID: tenantID,
			FloatID:  f.ID,
			Kind:     custody.EntryKindCollection,
			Amount:   decimal.NewFromInt(500),
		})
		require.NoError(t, err)
		_, err = repo.Append(ctx, custody.AppendEntryInput{
			TenantID: tenantID,
			FloatID:  f.ID,
			Kind:     custody.EntryKindDisbursement,
			Amount:   decimal.NewFromInt(300),
		})
		require.NoError(t, err)

		snapshot, err := repo.SnapshotBalance(ctx, tenantID, f.ID)
		require.NoError(t, err)
		assert.True(t, snapshot.Collected.Equal(decimal.NewFromInt(500)))
		assert.True(t, snapshot.Disbursed.Equal(decimal.NewFromInt(300)))
		assert.True(t, snapshot.Balance.Equal(decimal.NewFromInt(2200)))
		assert.NotNil(t, snapshot.LastTransactionAt)
	})

	t.Run("unknown float", func(t *testing.T) {
		_, err := repo.SnapshotBalance(ctx, tenantID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormLedgerEntryRepository_FindHistory(t *testing.T) {
	db := setupCustodyTestDB(t)
	repo := NewGormLedgerEntryRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	collectorID := uuid.New()
	f := seedActiveFloat(t, db, tenantID, collectorID, 5000, 5000)

	_, err := repo.Append(ctx, custody.AppendEntryInput{
		TenantID: tenantID, FloatID: f.ID,
		Kind: custody.EntryKindCollection, Amount: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	_, err = repo.Append(ctx, custody.AppendEntryInput{
		TenantID: tenantID, FloatID: f.ID,
		Kind: custody.EntryKindDisbursement, Amount: decimal.NewFromInt(200),
	})
	require.NoError(t, err)

	// Another collector's entries stay out of this history
	otherFloat := seedActiveFloat(t, db, tenantID, uuid.New(), 5000, 5000)
	_, err = repo.Append(ctx, custody.AppendEntryInput{
		TenantID: tenantID, FloatID: otherFloat.ID,
		Kind: custody.EntryKindCollection, Amount: decimal.NewFromInt(999),
	})
	require.NoError(t, err)

	t.Run("all entries for collector", func(t *testing.T) {
		entries, total, err := repo.FindHistory(ctx, tenantID, collectorID, custody.EntryHistoryFilter{
			Page: 1, PageSize: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, entries, 2)
	})

	t.Run("filter by kind", func(t *testing.T) {
		kind := custody.EntryKindDisbursement
		entries, total, err := repo.FindHistory(ctx, tenantID, collectorID, custody.EntryHistoryFilter{
			Kind: &kind, Page: 1, PageSize: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(200)))
	})

	t.Run("filter by date range excludes the day", func(t *testing.T) {
		_, total, err := repo.FindHistory(ctx, tenantID, collectorID, custody.EntryHistoryFilter{
			FromDate: "2026-09-01", Page: 1, PageSize: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
	})
}

// Racing disbursements against one float must admit exactly the prefix that
// fits under the daily cap and hand out gap-free sequence numbers. The pool
// is pinned to a single connection because every in-memory SQLite connection
// sees its own database.
func TestGormLedgerEntryRepository_ConcurrentDisbursements(t *testing.T) {
	db := setupCustodyTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := NewGormLedgerEntryRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	f := seedActiveFloat(t, db, tenantID, uuid.New(), 10000, 5000)

	const workers = 8
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			var appendErr error
			for attempt := 0; attempt < 5; attempt++ {
				_, appendErr = repo.Append(ctx, custody.AppendEntryInput{
					TenantID:  tenantID,
					FloatID:   f.ID,
					Kind:      custody.EntryKindDisbursement,
					Amount:    decimal.NewFromInt(1000),
					Reference: fmt.Sprintf("LOAN-%03d", n),
				})
				if !errors.Is(appendErr, shared.ErrTransient) && !errors.Is(appendErr, shared.ErrConcurrencyConflict) {
					break
				}
			}
			results <- appendErr
		}(i)
	}

	var succeeded, capped int
	for i := 0; i < workers; i++ {
		switch appendErr := <-results; {
		case appendErr == nil:
			succeeded++
		case errors.Is(appendErr, shared.ErrDailyCapExceeded):
			capped++
		default:
			t.Errorf("unexpected append error: %v", appendErr)
		}
	}
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 3, capped)

	snapshot, err := repo.SnapshotBalance(ctx, tenantID, f.ID)
	require.NoError(t, err)
	assert.True(t, snapshot.Disbursed.Equal(decimal.NewFromInt(5000)))
	assert.True(t, snapshot.Balance.Equal(decimal.NewFromInt(5000)))

	entries, err := repo.FindByFloat(ctx, tenantID, f.ID)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.SequenceNo)
	}
}
