package notifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

// NotificationDto is the inbox representation of one notification.
type NotificationDto struct {
	ID          uuid.UUID                `json:"id"`
	RecipientID string                   `json:"recipientId"`
	OrderID     *uuid.UUID               `json:"orderId,omitempty"`
	Type        enums.NotificationType   `json:"type"`
	Subject     string                   `json:"subject"`
	Body        string                   `json:"body"`
	Status      enums.NotificationStatus `json:"status"`
	RetryCount  int                      `json:"retryCount"`
	LastError   *string                  `json:"lastError,omitempty"`
	SentAt      *time.Time               `json:"sentAt,omitempty"`
	ReadAt      *time.Time               `json:"readAt,omitempty"`
	CreatedAt   time.Time                `json:"createdAt"`
}

func newNotificationDto(notification models.Notification) NotificationDto {
	return NotificationDto{
		ID:          notification.ID,
		RecipientID: notification.RecipientID,
		OrderID:     notification.OrderID,
		Type:        notification.Type,
		Subject:     notification.Subject,
		Body:        notification.Body,
		Status:      notification.Status,
		RetryCount:  notification.RetryCount,
		LastError:   notification.LastError,
		SentAt:      notification.SentAt,
		ReadAt:      notification.ReadAt,
		CreatedAt:   notification.CreatedAt,
	}
}

// PreferenceDto is the opt-in matrix returned to the user.
type PreferenceDto struct {
	UserID       string                          `json:"userId"`
	EmailEnabled bool                            `json:"emailEnabled"`
	Types        map[enums.NotificationType]bool `json:"types,omitempty"`
}

func newPreferenceDto(preference models.NotificationPreference) PreferenceDto {
	return PreferenceDto{
		UserID:       preference.UserID,
		EmailEnabled: preference.EmailEnabled,
		Types:        preference.Types,
	}
}

func defaultPreferenceDto(userID string) PreferenceDto {
	return PreferenceDto{UserID: userID, EmailEnabled: true}
}
