package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

// PaymentAllocation splits one order item's gross amount into the platform
// fee and the seller payout. Rows are rolled up into SellerSettlements.
type PaymentAllocation struct {
	ID           uuid.UUID                     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID                     `gorm:"column:order_id;type:uuid;not null;index"`
	OrderItemID  uuid.UUID                     `gorm:"column:order_item_id;type:uuid;not null"`
	SellerID     string                        `gorm:"column:seller_id;type:text;not null;index"`
	GrossAmount  decimal.Decimal               `gorm:"column:gross_amount;type:numeric(12,2);not null"`
	PlatformFee  decimal.Decimal               `gorm:"column:platform_fee;type:numeric(12,2);not null"`
	NetPayout    decimal.Decimal               `gorm:"column:net_payout;type:numeric(12,2);not null"`
	Currency     enums.Currency                `gorm:"column:currency;type:text;not null;default:'DKK'"`
	Status       enums.PaymentAllocationStatus `gorm:"column:status;type:payment_allocation_status;not null;default:'pending'"`
	SettlementID *uuid.UUID                    `gorm:"column:settlement_id;type:uuid"`
	CreatedAt    time.Time                     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                     `gorm:"column:updated_at;autoUpdateTime"`
}
