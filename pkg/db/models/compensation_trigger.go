package models

import (
	"time"

	"github.com/google/uuid"
)

// CompensationTrigger is the sticky once-per-order marker. The primary key on
// order_id is what enforces exactly one CompensationRequired per order: the
// second writer hits a unique violation and backs off.
type CompensationTrigger struct {
	OrderID                 uuid.UUID  `gorm:"column:order_id;type:uuid;primaryKey"`
	TriggeredAt             time.Time  `gorm:"column:triggered_at;not null"`
	CancellationRequestedAt *time.Time `gorm:"column:cancellation_requested_at"`
	CreatedAt               time.Time  `gorm:"column:created_at;autoCreateTime"`
}
