// Package payloads defines the typed bodies of the events this service
// publishes and consumes. Field names are the wire contract: JSON camelCase,
// timestamps RFC-3339 UTC, ids as canonical hyphenated strings.
package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

// UserCreatedEvent announces a freshly registered account.
type UserCreatedEvent struct {
	UserID string         `json:"userId"`
	Email  string         `json:"email"`
	Role   enums.UserRole `json:"role"`
}

// UserUpdatedEvent carries mutable profile fields, including the display
// name the search projection writes through into seller offers.
type UserUpdatedEvent struct {
	UserID      string         `json:"userId"`
	Email       string         `json:"email,omitempty"`
	Role        enums.UserRole `json:"role,omitempty"`
	DisplayName string         `json:"displayName,omitempty"`
}

// UserRoleChangedEvent reports a role transition.
type UserRoleChangedEvent struct {
	UserID  string         `json:"userId"`
	OldRole enums.UserRole `json:"oldRole"`
	NewRole enums.UserRole `json:"newRole"`
}

// SellerCreatedEvent seeds seller profiles and search seller names.
type SellerCreatedEvent struct {
	UserID      string `json:"userId"`
	SellerID    string `json:"sellerId"`
	DisplayName string `json:"displayName"`
}

// BookUpsertEvent is the shared body of BookCreated and BookUpdated.
type BookUpsertEvent struct {
	ISBN      string   `json:"isbn"`
	Title     string   `json:"title"`
	Author    string   `json:"author"`
	Genre     string   `json:"genre,omitempty"`
	Language  string   `json:"language,omitempty"`
	Format    string   `json:"format,omitempty"`
	Condition string   `json:"condition,omitempty"`
	Publisher string   `json:"publisher,omitempty"`
	Year      int      `json:"year,omitempty"`
	Rating    *float64 `json:"rating,omitempty"`
}

// BookDeletedEvent removes a title from the search projection.
type BookDeletedEvent struct {
	ISBN string `json:"isbn"`
}

// SellerOffer is one seller's listing for an ISBN.
type SellerOffer struct {
	SellerID   string          `json:"sellerId"`
	SellerName string          `json:"sellerName,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
}

// BookStockUpdatedEvent merges stock/price changes into the projection and
// drives the availability sorted sets.
type BookStockUpdatedEvent struct {
	ISBN             string          `json:"isbn"`
	TotalStock       int             `json:"totalStock"`
	AvailableSellers int             `json:"availableSellers"`
	MinPrice         decimal.Decimal `json:"minPrice"`
	Sellers          []SellerOffer   `json:"sellers,omitempty"`
}

// OrderItemRef is one line of an order as carried on the wire.
type OrderItemRef struct {
	OrderItemID uuid.UUID       `json:"orderItemId"`
	ISBN        string          `json:"isbn"`
	SellerID    string          `json:"sellerId"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// OrderCreatedEvent announces a materialized order with its seller groupings.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"orderId"`
	CustomerID  string          `json:"customerId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    enums.Currency  `json:"currency"`
	Items       []OrderItemRef  `json:"items"`
	OrderDate   time.Time       `json:"orderDate"`
}

// OrderPaidEvent confirms payment capture for an order.
type OrderPaidEvent struct {
	OrderID     uuid.UUID       `json:"orderId"`
	CustomerID  string          `json:"customerId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    enums.Currency  `json:"currency"`
	PaidAt      time.Time       `json:"paidAt"`
}

// OrderShippedEvent reports the shipped transition.
type OrderShippedEvent struct {
	OrderID    uuid.UUID `json:"orderId"`
	CustomerID string    `json:"customerId"`
	ShippedAt  time.Time `json:"shippedAt"`
}

// OrderDeliveredEvent reports the delivered transition.
type OrderDeliveredEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	CustomerID  string    `json:"customerId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// OrderCancelledEvent reports cancellation with the recorded reason.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	CustomerID  string    `json:"customerId"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelledAt"`
}

// OrderRefundedEvent reports a refund with the recorded reason.
type OrderRefundedEvent struct {
	OrderID    uuid.UUID `json:"orderId"`
	CustomerID string    `json:"customerId"`
	Reason     string    `json:"reason,omitempty"`
	RefundedAt time.Time `json:"refundedAt"`
}

// OrderItemStatusChangedEvent reports one item moving between item states.
type OrderItemStatusChangedEvent struct {
	OrderID     uuid.UUID             `json:"orderId"`
	OrderItemID uuid.UUID             `json:"orderItemId"`
	OldStatus   enums.OrderItemStatus `json:"oldStatus"`
	NewStatus   enums.OrderItemStatus `json:"newStatus"`
}

// InventoryReservationFailedEvent signals a failed warehouse reservation.
type InventoryReservationFailedEvent struct {
	OrderID     uuid.UUID  `json:"orderId"`
	OrderItemID *uuid.UUID `json:"orderItemId,omitempty"`
	ISBN        string     `json:"isbn,omitempty"`
	SellerID    string     `json:"sellerId,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	FailedAt    time.Time  `json:"failedAt"`
}

// SellerStatsUpdateFailedEvent signals a failed seller statistics update.
type SellerStatsUpdateFailedEvent struct {
	OrderID  uuid.UUID `json:"orderId"`
	SellerID string    `json:"sellerId"`
	Reason   string    `json:"reason,omitempty"`
	FailedAt time.Time `json:"failedAt"`
}

// NotificationFailedEvent reports a terminally failed notification delivery.
type NotificationFailedEvent struct {
	NotificationID uuid.UUID  `json:"notificationId"`
	OrderID        *uuid.UUID `json:"orderId,omitempty"`
	RecipientID    string     `json:"recipientId"`
	Reason         string     `json:"reason,omitempty"`
	FailedAt       time.Time  `json:"failedAt"`
}

// CompensationFailureRef is one critical failure included in a
// CompensationRequired event. Notification failures are never listed.
type CompensationFailureRef struct {
	OrderItemID  *uuid.UUID        `json:"orderItemId,omitempty"`
	FailureType  enums.FailureType `json:"failureType"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	FailedAt     time.Time         `json:"failedAt"`
}

// CompensationRequiredEvent asks downstream services to undo an order's side
// effects. Emitted at most once per order.
type CompensationRequiredEvent struct {
	OrderID     uuid.UUID                `json:"orderId"`
	Failures    []CompensationFailureRef `json:"failures"`
	TriggeredAt time.Time                `json:"triggeredAt"`
}

// CompensationCompletedEvent acknowledges one compensated failure.
type CompensationCompletedEvent struct {
	OrderID     uuid.UUID         `json:"orderId"`
	OrderItemID *uuid.UUID        `json:"orderItemId,omitempty"`
	FailureType enums.FailureType `json:"failureType"`
	CompletedAt time.Time         `json:"completedAt"`
}

// OrderCancellationRequestedEvent drives the order aggregate toward a
// terminal cancelled/refunded state after compensation has fanned in.
type OrderCancellationRequestedEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}
