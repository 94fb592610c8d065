package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateOrderItem    OutboxAggregateType = "order_item"
	AggregateUser         OutboxAggregateType = "user"
	AggregateSeller       OutboxAggregateType = "seller"
	AggregateBook         OutboxAggregateType = "book"
	AggregateNotification OutboxAggregateType = "notification"
	AggregateCompensation OutboxAggregateType = "compensation"
	AggregateSettlement   OutboxAggregateType = "settlement"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateOrderItem,
	AggregateUser,
	AggregateSeller,
	AggregateBook,
	AggregateNotification,
	AggregateCompensation,
	AggregateSettlement,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the routing key carried in the event_type attribute.
// The string values are the authoritative cross-service contract; consumers
// in other services bind on them verbatim.
type OutboxEventType string

const (
	EventUserCreated     OutboxEventType = "UserCreated"
	EventUserUpdated     OutboxEventType = "UserUpdated"
	EventUserRoleChanged OutboxEventType = "UserRoleChanged"
	EventSellerCreated   OutboxEventType = "SellerCreated"

	EventBookCreated      OutboxEventType = "BookCreated"
	EventBookUpdated      OutboxEventType = "BookUpdated"
	EventBookDeleted      OutboxEventType = "BookDeleted"
	EventBookStockUpdated OutboxEventType = "BookStockUpdated"

	EventOrderCreated           OutboxEventType = "OrderCreated"
	EventOrderPaid              OutboxEventType = "OrderPaid"
	EventOrderShipped           OutboxEventType = "OrderShipped"
	EventOrderDelivered         OutboxEventType = "OrderDelivered"
	EventOrderCancelled         OutboxEventType = "OrderCancelled"
	EventOrderRefunded          OutboxEventType = "OrderRefunded"
	EventOrderItemStatusChanged OutboxEventType = "OrderItemStatusChanged"

	EventInventoryReservationFailed OutboxEventType = "InventoryReservationFailed"
	EventSellerStatsUpdateFailed    OutboxEventType = "SellerStatsUpdateFailed"
	EventNotificationFailed         OutboxEventType = "NotificationFailed"

	EventCompensationRequired       OutboxEventType = "CompensationRequired"
	EventCompensationCompleted      OutboxEventType = "CompensationCompleted"
	EventOrderCancellationRequested OutboxEventType = "OrderCancellationRequested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventUserCreated,
	EventUserUpdated,
	EventUserRoleChanged,
	EventSellerCreated,
	EventBookCreated,
	EventBookUpdated,
	EventBookDeleted,
	EventBookStockUpdated,
	EventOrderCreated,
	EventOrderPaid,
	EventOrderShipped,
	EventOrderDelivered,
	EventOrderCancelled,
	EventOrderRefunded,
	EventOrderItemStatusChanged,
	EventInventoryReservationFailed,
	EventSellerStatsUpdateFailed,
	EventNotificationFailed,
	EventCompensationRequired,
	EventCompensationCompleted,
	EventOrderCancellationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason labels why an outbox row was parked.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
