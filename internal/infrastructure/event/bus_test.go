package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/loanflow/backend/internal/domain/shared"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Float", uuid.New(), uuid.New()),
	}
}

func TestInMemoryEventBus_PublishDispatchesByType(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	ctx := context.Background()

	var issued, confirmed int
	bus.Subscribe("FloatIssued", func(ctx context.Context, evt shared.DomainEvent) error {
		issued++
		return nil
	})
	bus.Subscribe("FloatConfirmed", func(ctx context.Context, evt shared.DomainEvent) error {
		confirmed++
		return nil
	})

	bus.Publish(ctx, newTestEvent("FloatIssued"), newTestEvent("FloatIssued"), newTestEvent("FloatConfirmed"))

	assert.Equal(t, 2, issued)
	assert.Equal(t, 1, confirmed)
}

func TestInMemoryEventBus_MultipleHandlersPerType(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))

	var calls []string
	bus.Subscribe("FloatIssued", func(ctx context.Context, evt shared.DomainEvent) error {
		calls = append(calls, "first")
		return nil
	})
	bus.Subscribe("FloatIssued", func(ctx context.Context, evt shared.DomainEvent) error {
		calls = append(calls, "second")
		return nil
	})

	bus.Publish(context.Background(), newTestEvent("FloatIssued"))

	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestInMemoryEventBus_HandlerFailureDoesNotStopDispatch(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))

	var reached bool
	bus.Subscribe("FloatIssued", func(ctx context.Context, evt shared.DomainEvent) error {
		return errors.New("handler down")
	})
	bus.Subscribe("FloatIssued", func(ctx context.Context, evt shared.DomainEvent) error {
		reached = true
		return nil
	})

	bus.Publish(context.Background(), newTestEvent("FloatIssued"))

	assert.True(t, reached)
}

func TestInMemoryEventBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))

	bus.Subscribe("FloatIssued", func(ctx context.Context, evt shared.DomainEvent) error {
		panic("boom")
	})

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), newTestEvent("FloatIssued"))
	})
}

func TestInMemoryEventBus_NoHandlersIsNoop(t *testing.T) {
	bus := NewInMemoryEventBus(nil)

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), newTestEvent("HandoverRejected"))
	})
}

func TestAuditTrail_RegistersForAllLifecycleEvents(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	trail := NewAuditTrail(zaptest.NewLogger(t))
	trail.RegisterOn(bus)

	for _, eventType := range custodyEventTypes {
		assert.NotEmpty(t, bus.handlers[eventType], "missing handler for %s", eventType)
	}
}
