package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

// Notification stores one outbound email notification and its delivery state.
type Notification struct {
	ID          uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RecipientID string                   `gorm:"column:recipient_id;type:text;not null;index"`
	OrderID     *uuid.UUID               `gorm:"column:order_id;type:uuid"`
	Email       string                   `gorm:"column:email;type:text;not null"`
	Type        enums.NotificationType   `gorm:"column:type;type:notification_type;not null"`
	Subject     string                   `gorm:"column:subject;type:text;not null"`
	Body        string                   `gorm:"column:body;type:text;not null"`
	Status      enums.NotificationStatus `gorm:"column:status;type:notification_status;not null;default:'created'"`
	RetryCount  int                      `gorm:"column:retry_count;not null;default:0"`
	LastError   *string                  `gorm:"column:last_error"`
	SentAt      *time.Time               `gorm:"column:sent_at"`
	ReadAt      *time.Time               `gorm:"column:read_at"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
