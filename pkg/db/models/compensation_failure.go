package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

// CompensationFailure is one ledger entry recording a downstream failure for an order.
type CompensationFailure struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	OrderItemID   *uuid.UUID        `gorm:"column:order_item_id;type:uuid"`
	FailureType   enums.FailureType `gorm:"column:failure_type;type:failure_type;not null"`
	ErrorMessage  string            `gorm:"column:error_message;type:text;not null"`
	FailedAt      time.Time         `gorm:"column:failed_at;not null"`
	CompensatedAt *time.Time        `gorm:"column:compensated_at"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
}
