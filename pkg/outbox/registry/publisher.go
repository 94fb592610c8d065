package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkrogh/bookmarket-backend/pkg/config"
	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.UserTopic == "" {
		return nil, fmt.Errorf("user topic is required")
	}
	if cfg.OrderTopic == "" {
		return nil, fmt.Errorf("order topic is required")
	}
	if cfg.BookTopic == "" {
		return nil, fmt.Errorf("book topic is required")
	}
	if cfg.WarehouseTopic == "" {
		return nil, fmt.Errorf("warehouse topic is required")
	}
	if cfg.CompensationTopic == "" {
		return nil, fmt.Errorf("compensation topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventUserCreated,
			AggregateType:  enums.AggregateUser,
			Topic:          cfg.UserTopic,
			PayloadFactory: func() interface{} { return &payloads.UserCreatedEvent{} },
		},
		{
			EventType:      enums.EventUserUpdated,
			AggregateType:  enums.AggregateUser,
			Topic:          cfg.UserTopic,
			PayloadFactory: func() interface{} { return &payloads.UserUpdatedEvent{} },
		},
		{
			EventType:      enums.EventUserRoleChanged,
			AggregateType:  enums.AggregateUser,
			Topic:          cfg.UserTopic,
			PayloadFactory: func() interface{} { return &payloads.UserRoleChangedEvent{} },
		},
		{
			EventType:      enums.EventSellerCreated,
			AggregateType:  enums.AggregateSeller,
			Topic:          cfg.UserTopic,
			PayloadFactory: func() interface{} { return &payloads.SellerCreatedEvent{} },
		},
	} {
		reg.register(desc)
	}

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventBookCreated,
			AggregateType:  enums.AggregateBook,
			Topic:          cfg.BookTopic,
			PayloadFactory: func() interface{} { return &payloads.BookUpsertEvent{} },
		},
		{
			EventType:      enums.EventBookUpdated,
			AggregateType:  enums.AggregateBook,
			Topic:          cfg.BookTopic,
			PayloadFactory: func() interface{} { return &payloads.BookUpsertEvent{} },
		},
		{
			EventType:      enums.EventBookDeleted,
			AggregateType:  enums.AggregateBook,
			Topic:          cfg.BookTopic,
			PayloadFactory: func() interface{} { return &payloads.BookDeletedEvent{} },
		},
		{
			EventType:      enums.EventBookStockUpdated,
			AggregateType:  enums.AggregateBook,
			Topic:          cfg.BookTopic,
			PayloadFactory: func() interface{} { return &payloads.BookStockUpdatedEvent{} },
		},
	} {
		reg.register(desc)
	}

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventOrderCreated,
			AggregateType:  enums.AggregateOrder,
			Topic:          cfg.OrderTopic,
			PayloadFactory: func() interface{} { return &payloads.OrderCreatedEvent{} },
		},
		{
			EventType:      enums.EventOrderPaid,
			AggregateType:  enums.AggregateOrder,
			Topic:          cfg.OrderTopic,
			PayloadFactory: func() interface{} { return &payloads.OrderPaidEvent{} },
		},
		{
			EventType:      enums.EventOrderShipped,
			AggregateType:  enums.AggregateOrder,
			Topic:          cfg.OrderTopic,
			PayloadFactory: func() interface{} { return &payloads.OrderShippedEvent{} },
		},
		{
			EventType:      enums.EventOrderDelivered,
			AggregateType:  enums.AggregateOrder,
			Topic:          cfg.OrderTopic,
			PayloadFactory: func() interface{} { return &payloads.OrderDeliveredEvent{} },
		},
		{
			EventType:      enums.EventOrderCancelled,
			AggregateType:  enums.AggregateOrder,
			Topic:          cfg.OrderTopic,
			PayloadFactory: func() interface{} { return &payloads.OrderCancelledEvent{} },
		},
		{
			EventType:      enums.EventOrderRefunded,
			AggregateType:  enums.AggregateOrder,
			Topic:          cfg.OrderTopic,
			PayloadFactory: func() interface{} { return &payloads.OrderRefundedEvent{} },
		},
		{
			EventType:      enums.EventOrderItemStatusChanged,
			AggregateType:  enums.AggregateOrderItem,
			Topic:          cfg.OrderTopic,
			PayloadFactory: func() interface{} { return &payloads.OrderItemStatusChangedEvent{} },
		},
	} {
		reg.register(desc)
	}

	reg.register(EventDescriptor{
		EventType:      enums.EventInventoryReservationFailed,
		AggregateType:  enums.AggregateOrderItem,
		Topic:          cfg.WarehouseTopic,
		PayloadFactory: func() interface{} { return &payloads.InventoryReservationFailedEvent{} },
	})
	reg.register(EventDescriptor{
		EventType:      enums.EventSellerStatsUpdateFailed,
		AggregateType:  enums.AggregateSeller,
		Topic:          cfg.UserTopic,
		PayloadFactory: func() interface{} { return &payloads.SellerStatsUpdateFailedEvent{} },
	})

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventNotificationFailed,
			AggregateType:  enums.AggregateNotification,
			Topic:          cfg.CompensationTopic,
			PayloadFactory: func() interface{} { return &payloads.NotificationFailedEvent{} },
		},
		{
			EventType:      enums.EventCompensationRequired,
			AggregateType:  enums.AggregateCompensation,
			Topic:          cfg.CompensationTopic,
			PayloadFactory: func() interface{} { return &payloads.CompensationRequiredEvent{} },
		},
		{
			EventType:      enums.EventCompensationCompleted,
			AggregateType:  enums.AggregateCompensation,
			Topic:          cfg.CompensationTopic,
			PayloadFactory: func() interface{} { return &payloads.CompensationCompletedEvent{} },
		},
		{
			EventType:      enums.EventOrderCancellationRequested,
			AggregateType:  enums.AggregateCompensation,
			Topic:          cfg.CompensationTopic,
			PayloadFactory: func() interface{} { return &payloads.OrderCancellationRequestedEvent{} },
		},
	} {
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if payload == nil {
		return nil, NewNonRetryableError(fmt.Errorf("payload factory not configured for %s", event.EventType))
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}
