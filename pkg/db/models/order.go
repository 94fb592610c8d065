package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	"github.com/mkrogh/bookmarket-backend/pkg/types"
)

// Order is the aggregate root for a customer purchase. Rows are append-only
// in spirit: once the status is terminal no further writes are accepted, and
// concurrent writers are fenced by the optimistic Version column.
type Order struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID         string            `gorm:"column:customer_id;type:text;not null;index"`
	OrderDate          time.Time         `gorm:"column:order_date;not null"`
	TotalAmount        decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency           enums.Currency    `gorm:"column:currency;type:text;not null;default:'DKK'"`
	Status             enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	DeliveryAddress    types.Address     `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	Items              []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidDate           *time.Time        `gorm:"column:paid_date"`
	ShippedDate        *time.Time        `gorm:"column:shipped_date"`
	DeliveredDate      *time.Time        `gorm:"column:delivered_date"`
	CompletedDate      *time.Time        `gorm:"column:completed_date"`
	CancelledDate      *time.Time        `gorm:"column:cancelled_date"`
	RefundedDate       *time.Time        `gorm:"column:refunded_date"`
	CancellationReason *string           `gorm:"column:cancellation_reason"`
	RefundReason       *string           `gorm:"column:refund_reason"`
	Version            int               `gorm:"column:version;not null;default:1"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
