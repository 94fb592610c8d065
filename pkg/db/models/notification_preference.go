package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

// NotificationPreference is the per-user opt-in matrix over notification types.
// The master EmailEnabled gate ANDs with the type-specific flag.
type NotificationPreference struct {
	ID           uuid.UUID                       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       string                          `gorm:"column:user_id;type:text;not null;uniqueIndex"`
	EmailEnabled bool                            `gorm:"column:email_enabled;not null;default:true"`
	Types        map[enums.NotificationType]bool `gorm:"column:types;type:jsonb;serializer:json"`
	CreatedAt    time.Time                       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                       `gorm:"column:updated_at;autoUpdateTime"`
}

// Effective reports whether notifications of the given type may be sent.
// Unknown types default to enabled so new types do not silently drop mail.
func (p NotificationPreference) Effective(notificationType enums.NotificationType) bool {
	if !p.EmailEnabled {
		return false
	}
	if p.Types == nil {
		return true
	}
	enabled, ok := p.Types[notificationType]
	if !ok {
		return true
	}
	return enabled
}
