package custody

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/loanflow/backend/internal/domain/custody"
	"github.com/loanflow/backend/internal/domain/shared"
)

// MockFloatRepository is a mock implementation of custody.FloatRepository
type MockFloatRepository struct {
	mock.Mock
}

func (m *MockFloatRepository) Create(ctx context.Context, f *custody.Float) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockFloatRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*custody.Float, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*custody.Float), args.Error(1)
}

func (m *MockFloatRepository) FindOpenByCollectorAndDate(ctx context.Context, tenantID, collectorID uuid.UUID, floatDate string) (*custody.Float, error) {
	args := m.Called(ctx, tenantID, collectorID, floatDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*custody.Float), args.Error(1)
}

func (m *MockFloatRepository) SaveTransition(ctx context.Context, f *custody.Float, from custody.FloatStatus) error {
	args := m.Called(ctx, f, from)
	return args.Error(0)
}

func (m *MockFloatRepository) FindPendingForCollector(ctx context.Context, tenantID, collectorID uuid.UUID) ([]custody.Float, error) {
	args := m.Called(ctx, tenantID, collectorID)
	return args.Get(0).([]custody.Float), args.Error(1)
}

func (m *MockFloatRepository) FindPendingForTenant(ctx context.Context, tenantID uuid.UUID) ([]custody.Float, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]custody.Float), args.Error(1)
}

func (m *MockFloatRepository) FindHistory(ctx context.Context, tenantID uuid.UUID, filter custody.FloatHistoryFilter) ([]custody.Float, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]custody.Float), args.Get(1).(int64), args.Error(2)
}

// MockLedgerEntryRepository is a mock implementation of custody.LedgerEntryRepository
type MockLedgerEntryRepository struct {
	mock.Mock
}

func (m *MockLedgerEntryRepository) Append(ctx context.Context, input custody.AppendEntryInput) (*custody.AppendResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*custody.AppendResult), args.Error(1)
}

func (m *MockLedgerEntryRepository) SnapshotBalance(ctx context.Context, tenantID, floatID uuid.UUID) (*custody.BalanceSnapshot, error) {
	args := m.Called(ctx, tenantID, floatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*custody.BalanceSnapshot), args.Error(1)
}

func (m *MockLedgerEntryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*custody.LedgerEntry, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*custody.LedgerEntry), args.Error(1)
}

func (m *MockLedgerEntryRepository) FindByFloat(ctx context.Context, tenantID, floatID uuid.UUID) ([]custody.LedgerEntry, error) {
	args := m.Called(ctx, tenantID, floatID)
	return args.Get(0).([]custody.LedgerEntry), args.Error(1)
}

func (m *MockLedgerEntryRepository) FindHistory(ctx context.Context, tenantID, collectorID uuid.UUID, filter custody.EntryHistoryFilter) ([]custody.LedgerEntry, int64, error) {
	args := m.Called(ctx, tenantID, collectorID, filter)
	return args.Get(0).([]custody.LedgerEntry), args.Get(1).(int64), args.Error(2)
}

// MockHandoverRepository is a mock implementation of custody.HandoverRepository
type MockHandoverRepository struct {
	mock.Mock
}

func (m *MockHandoverRepository) Submit(ctx context.Context, tenantID, collectorID, floatID uuid.UUID, actualAmount decimal.Decimal, notes string) (*custody.Handover, error) {
	args := m.Called(ctx, tenantID, collectorID, floatID, actualAmount, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*custody.Handover), args.Error(1)
}

func (m *MockHandoverRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*custody.Handover, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*custody.Handover), args.Error(1)
}

func (m *MockHandoverRepository) SaveDecision(ctx context.Context, h *custody.Handover, f *custody.Float) error {
	args := m.Called(ctx, h, f)
	return args.Error(0)
}

func (m *MockHandoverRepository) FindPendingForTenant(ctx context.Context, tenantID uuid.UUID) ([]custody.Handover, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]custody.Handover), args.Error(1)
}

// MockBalanceReadRepository is a mock implementation of custody.BalanceReadRepository
type MockBalanceReadRepository struct {
	mock.Mock
}

func (m *MockBalanceReadRepository) GetCollectorBalances(ctx context.Context, tenantID uuid.UUID, floatDate string) ([]custody.CollectorBalance, error) {
	args := m.Called(ctx, tenantID, floatDate)
	return args.Get(0).([]custody.CollectorBalance), args.Error(1)
}

func (m *MockBalanceReadRepository) GetFloatBalance(ctx context.Context, tenantID, floatID uuid.UUID) (*custody.CollectorBalance, error) {
	args := m.Called(ctx, tenantID, floatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*custody.CollectorBalance), args.Error(1)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) Remember(ctx context.Context, key string, entryID uuid.UUID, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, entryID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Lookup(ctx context.Context, key string) (uuid.UUID, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// recordingEventBus captures published events for assertions
type recordingEventBus struct {
	events []shared.DomainEvent
}

func (b *recordingEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) {
	b.events = append(b.events, events...)
}

func (b *recordingEventBus) Subscribe(eventType string, handler shared.EventHandler) {}

func (b *recordingEventBus) eventTypes() []string {
	types := make([]string, 0, len(b.events))
	for _, e := range b.events {
		types = append(types, e.EventType())
	}
	return types
}
