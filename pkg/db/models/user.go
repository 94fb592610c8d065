package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	"github.com/mkrogh/bookmarket-backend/pkg/types"
)

// User represents the canonical identity entity.
type User struct {
	ID                  uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email               string         `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash        string         `gorm:"column:password_hash;not null"`
	Role                enums.UserRole `gorm:"column:role;type:user_role;not null;default:'customer'"`
	DeliveryAddress     *types.Address `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	FailedLoginAttempts int            `gorm:"column:failed_login_attempts;not null;default:0"`
	LockedUntil         *time.Time     `gorm:"column:locked_until"`
	LastLoginAt         *time.Time     `gorm:"column:last_login_at"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// IsLocked reports whether the account is under a lockout window at the given time.
func (u User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
