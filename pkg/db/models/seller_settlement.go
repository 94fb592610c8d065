package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

// SellerSettlement aggregates a seller's payout for one settlement period.
type SellerSettlement struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    string                 `gorm:"column:seller_id;type:text;not null;index"`
	PeriodStart time.Time              `gorm:"column:period_start;not null"`
	PeriodEnd   time.Time              `gorm:"column:period_end;not null"`
	TotalPayout decimal.Decimal        `gorm:"column:total_payout;type:numeric(12,2);not null"`
	Currency    enums.Currency         `gorm:"column:currency;type:text;not null;default:'DKK'"`
	Status      enums.SettlementStatus `gorm:"column:status;type:settlement_status;not null;default:'pending'"`
	ProcessedAt *time.Time             `gorm:"column:processed_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
