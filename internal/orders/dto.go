package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	"github.com/mkrogh/bookmarket-backend/pkg/types"
)

// ListFilters describe the inputs supported by the customer orders list.
type ListFilters struct {
	Status   *enums.OrderStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

// OrderItemDto is one purchased offer inside an order response.
type OrderItemDto struct {
	ID        uuid.UUID             `json:"id"`
	ISBN      string                `json:"isbn"`
	SellerID  string                `json:"sellerId"`
	Quantity  int                   `json:"quantity"`
	UnitPrice decimal.Decimal       `json:"unitPrice"`
	Currency  enums.Currency        `json:"currency"`
	Status    enums.OrderItemStatus `json:"status"`
}

// OrderSummary exposes the aggregated fields returned in the customer list.
type OrderSummary struct {
	ID          uuid.UUID         `json:"id"`
	OrderDate   time.Time         `json:"orderDate"`
	TotalAmount decimal.Decimal   `json:"totalAmount"`
	Currency    enums.Currency    `json:"currency"`
	Status      enums.OrderStatus `json:"status"`
	TotalItems  int               `json:"totalItems"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// OrderDetail is the full order representation returned by the detail read.
type OrderDetail struct {
	ID                 uuid.UUID         `json:"id"`
	CustomerID         string            `json:"customerId"`
	OrderDate          time.Time         `json:"orderDate"`
	TotalAmount        decimal.Decimal   `json:"totalAmount"`
	Currency           enums.Currency    `json:"currency"`
	Status             enums.OrderStatus `json:"status"`
	DeliveryAddress    types.Address     `json:"deliveryAddress"`
	Items              []OrderItemDto    `json:"items"`
	PaidDate           *time.Time        `json:"paidDate,omitempty"`
	ShippedDate        *time.Time        `json:"shippedDate,omitempty"`
	DeliveredDate      *time.Time        `json:"deliveredDate,omitempty"`
	CompletedDate      *time.Time        `json:"completedDate,omitempty"`
	CancelledDate      *time.Time        `json:"cancelledDate,omitempty"`
	RefundedDate       *time.Time        `json:"refundedDate,omitempty"`
	CancellationReason *string           `json:"cancellationReason,omitempty"`
	RefundReason       *string           `json:"refundReason,omitempty"`
}
