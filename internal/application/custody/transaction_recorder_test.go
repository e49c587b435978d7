package custody

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loanflow/backend/internal/domain/custody"
	"github.com/loanflow/backend/internal/domain/shared"
)

type recorderFixture struct {
	tenantID    uuid.UUID
	cashierID   uuid.UUID
	collectorID uuid.UUID
	float       *custody.Float
	floatRepo   *MockFloatRepository
	entryRepo   *MockLedgerEntryRepository
	idemStore   *MockIdempotencyStore
	recorder    *TransactionRecorder
}

func newRecorderFixture(t *testing.T) *recorderFixture {
	t.Helper()

	fx := &recorderFixture{
		tenantID:    uuid.New(),
		cashierID:   uuid.New(),
		collectorID: uuid.New(),
		floatRepo:   new(MockFloatRepository),
		entryRepo:   new(MockLedgerEntryRepository),
		idemStore:   new(MockIdempotencyStore),
	}

	f, err := custody.NewFloat(fx.tenantID, fx.cashierID, fx.collectorID,
		"2026-08-28", decimal.NewFromInt(5000), decimal.NewFromInt(5000), "")
	require.NoError(t, err)
	require.NoError(t, f.ConfirmReceipt(fx.collectorID))
	fx.float = f

	fx.recorder = NewTransactionRecorder(fx.floatRepo, fx.entryRepo, fx.idemStore, shared.DefaultIdempotencyConfig())
	return fx
}

func (fx *recorderFixture) request(amount int64) RecordEntryRequest {
	return RecordEntryRequest{
		TenantID:    fx.tenantID,
		CollectorID: fx.collectorID,
		FloatID:     fx.float.GetID(),
		Amount:      decimal.NewFromInt(amount),
	}
}

func appendResultFor(input custody.AppendEntryInput, seq int64) *custody.AppendResult {
	entry, _ := custody.NewLedgerEntry(input.TenantID, input.FloatID, input.Kind,
		input.Amount, input.IdempotencyKey, input.Reference, input.Notes)
	entry.SequenceNo = seq
	return &custody.AppendResult{
		Entry: entry,
		Snapshot: custody.BalanceSnapshot{
			FloatID:       input.FloatID,
			OpeningAmount: decimal.NewFromInt(5000),
			Balance:       decimal.NewFromInt(5000).Add(entry.Signed()),
		},
	}
}

func TestTransactionRecorder_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("records a collection", func(t *testing.T) {
		fx := newRecorderFixture(t)

		fx.floatRepo.On("FindByIDForTenant", mock.Anything, fx.tenantID, fx.float.GetID()).Return(fx.float, nil)
		fx.entryRepo.On("Append", mock.Anything, mock.MatchedBy(func(in custody.AppendEntryInput) bool {
			return in.Kind == custody.EntryKindCollection && in.Amount.Equal(decimal.NewFromInt(1000))
		})).Return(appendResultFor(custody.AppendEntryInput{
			TenantID: fx.tenantID, FloatID: fx.float.GetID(),
			Kind: custody.EntryKindCollection, Amount: decimal.NewFromInt(1000),
		}, 1), nil)

		result, err := fx.recorder.RecordCollection(ctx, fx.request(1000))
		require.NoError(t, err)

		assert.False(t, result.Duplicate)
		assert.Equal(t, int64(1), result.Entry.SequenceNo)
		assert.True(t, result.Snapshot.Balance.Equal(decimal.NewFromInt(6000)))
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		fx := newRecorderFixture(t)

		_, err := fx.recorder.RecordDisbursement(ctx, fx.request(0))
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_AMOUNT", domainErr.Code)
		fx.entryRepo.AssertNotCalled(t, "Append")
	})

	t.Run("another collector's float reads as not found", func(t *testing.T) {
		fx := newRecorderFixture(t)

		req := fx.request(100)
		req.CollectorID = uuid.New()
		fx.floatRepo.On("FindByIDForTenant", mock.Anything, fx.tenantID, fx.float.GetID()).Return(fx.float, nil)

		_, err := fx.recorder.RecordCollection(ctx, req)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		fx.entryRepo.AssertNotCalled(t, "Append")
	})

	t.Run("cap exceeded is not retried", func(t *testing.T) {
		fx := newRecorderFixture(t)

		fx.floatRepo.On("FindByIDForTenant", mock.Anything, fx.tenantID, fx.float.GetID()).Return(fx.float, nil)
		fx.entryRepo.On("Append", mock.Anything, mock.Anything).Return(nil, shared.ErrDailyCapExceeded).Once()

		_, err := fx.recorder.RecordDisbursement(ctx, fx.request(6000))
		assert.ErrorIs(t, err, shared.ErrDailyCapExceeded)
		fx.entryRepo.AssertNumberOfCalls(t, "Append", 1)
	})

	t.Run("transient conflicts are retried then succeed", func(t *testing.T) {
		fx := newRecorderFixture(t)

		fx.floatRepo.On("FindByIDForTenant", mock.Anything, fx.tenantID, fx.float.GetID()).Return(fx.float, nil)
		fx.entryRepo.On("Append", mock.Anything, mock.Anything).Return(nil, shared.ErrTransient).Twice()
		fx.entryRepo.On("Append", mock.Anything, mock.Anything).Return(appendResultFor(custody.AppendEntryInput{
			TenantID: fx.tenantID, FloatID: fx.float.GetID(),
			Kind: custody.EntryKindCollection, Amount: decimal.NewFromInt(500),
		}, 1), nil).Once()

		result, err := fx.recorder.RecordCollection(ctx, fx.request(500))
		require.NoError(t, err)
		assert.False(t, result.Duplicate)
		fx.entryRepo.AssertNumberOfCalls(t, "Append", 3)
	})

	t.Run("retries are exhausted after persistent conflicts", func(t *testing.T) {
		fx := newRecorderFixture(t)

		fx.floatRepo.On("FindByIDForTenant", mock.Anything, fx.tenantID, fx.float.GetID()).Return(fx.float, nil)
		fx.entryRepo.On("Append", mock.Anything, mock.Anything).Return(nil, shared.ErrTransient)

		_, err := fx.recorder.RecordCollection(ctx, fx.request(500))
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrTransient)
		fx.entryRepo.AssertNumberOfCalls(t, "Append", 3)
	})
}

func TestTransactionRecorder_Idempotency(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit returns the original entry without appending", func(t *testing.T) {
		fx := newRecorderFixture(t)

		req := fx.request(1000)
		req.IdempotencyKey = "txn-001"

		entry, err := custody.NewLedgerEntry(fx.tenantID, fx.float.GetID(),
			custody.EntryKindCollection, decimal.NewFromInt(1000), "txn-001", "", "")
		require.NoError(t, err)
		entry.SequenceNo = 1

		cacheKey := fx.float.GetID().String() + ":txn-001"
		fx.floatRepo.On("FindByIDForTenant", mock.Anything, fx.tenantID, fx.float.GetID()).Return(fx.float, nil)
		fx.idemStore.On("Lookup", mock.Anything, cacheKey).Return(entry.ID, nil)
		fx.entryRepo.On("FindByIDForTenant", mock.Anything, fx.tenantID, entry.ID).Return(entry, nil)
		fx.entryRepo.On("SnapshotBalance", mock.Anything, fx.tenantID, fx.float.GetID()).Return(&custody.BalanceSnapshot{
			FloatID: fx.float.GetID(),
			Balance: decimal.NewFromInt(6000),
		}, nil)

		result, err := fx.recorder.RecordCollection(ctx, req)
		require.NoError(t, err)

		assert.True(t, result.Duplicate)
		assert.Equal(t, entry.ID, result.Entry.ID)
		fx.entryRepo.AssertNotCalled(t, "Append")
	})

	t.Run("cache miss appends and caches the new entry", func(t *testing.T) {
		fx := newRecorderFixture(t)

		req := fx.request(1000)
		req.IdempotencyKey = "txn-002"
		cacheKey := fx.float.GetID().String() + ":txn-002"

		fx.floatRepo.On("FindByIDForTenant", mock.Anything, fx.tenantID, fx.float.GetID()).Return(fx.float, nil)
		fx.idemStore.On("Lookup", mock.Anything, cacheKey).Return(uuid.Nil, nil)
		fx.entryRepo.On("Append", mock.Anything, mock.Anything).Return(appendResultFor(custody.AppendEntryInput{
			TenantID: fx.tenantID, FloatID: fx.float.GetID(),
			Kind: custody.EntryKindCollection, Amount: decimal.NewFromInt(1000),
			IdempotencyKey: "txn-002",
		}, 1), nil)
		fx.idemStore.On("Remember", mock.Anything, cacheKey, mock.AnythingOfType("uuid.UUID"), mock.Anything).Return(true, nil)

		result, err := fx.recorder.RecordCollection(ctx, req)
		require.NoError(t, err)
		assert.False(t, result.Duplicate)
		fx.idemStore.AssertExpectations(t)
	})

	t.Run("cache errors fall through to storage", func(t *testing.T) {
		fx := newRecorderFixture(t)

		req := fx.request(250)
		req.IdempotencyKey = "txn-003"
		cacheKey := fx.float.GetID().String() + ":txn-003"

		fx.floatRepo.On("FindByIDForTenant", mock.Anything, fx.tenantID, fx.float.GetID()).Return(fx.float, nil)
		fx.idemStore.On("Lookup", mock.Anything, cacheKey).Return(uuid.Nil, assert.AnError)
		fx.entryRepo.On("Append", mock.Anything, mock.Anything).Return(appendResultFor(custody.AppendEntryInput{
			TenantID: fx.tenantID, FloatID: fx.float.GetID(),
			Kind: custody.EntryKindCollection, Amount: decimal.NewFromInt(250),
			IdempotencyKey: "txn-003",
		}, 1), nil)
		fx.idemStore.On("Remember", mock.Anything, cacheKey, mock.AnythingOfType("uuid.UUID"), mock.Anything).Return(true, nil)

		result, err := fx.recorder.RecordCollection(ctx, req)
		require.NoError(t, err)
		assert.False(t, result.Duplicate)
	})

	t.Run("storage-level duplicate is surfaced as duplicate", func(t *testing.T) {
		fx := newRecorderFixture(t)
		// Disabled cache forces every request through storage
		fx.recorder = NewTransactionRecorder(fx.floatRepo, fx.entryRepo, nil, shared.IdempotencyConfig{Enabled: false})

		req := fx.request(1000)
		req.IdempotencyKey = "txn-004"

		dup := appendResultFor(custody.AppendEntryInput{
			TenantID: fx.tenantID, FloatID: fx.float.GetID(),
			Kind: custody.EntryKindCollection, Amount: decimal.NewFromInt(1000),
			IdempotencyKey: "txn-004",
		}, 1)
		dup.Duplicate = true

		fx.floatRepo.On("FindByIDForTenant", mock.Anything, fx.tenantID, fx.float.GetID()).Return(fx.float, nil)
		fx.entryRepo.On("Append", mock.Anything, mock.Anything).Return(dup, nil)

		result, err := fx.recorder.RecordCollection(ctx, req)
		require.NoError(t, err)
		assert.True(t, result.Duplicate)
	})
}
