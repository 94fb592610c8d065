package enums

// NotificationStatus maps to the notification_status enum in Postgres.
type NotificationStatus string

const (
	NotificationStatusCreated NotificationStatus = "created"
	NotificationStatusSending NotificationStatus = "sending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
	NotificationStatusRead    NotificationStatus = "read"
)

var validNotificationStatuses = []NotificationStatus{
	NotificationStatusCreated,
	NotificationStatusSending,
	NotificationStatusSent,
	NotificationStatusFailed,
	NotificationStatusRead,
}

// IsValid reports whether the value matches the canonical enum.
func (s NotificationStatus) IsValid() bool {
	for _, candidate := range validNotificationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminalForSend reports whether a send attempt may no longer run.
func (s NotificationStatus) IsTerminalForSend() bool {
	return s == NotificationStatusSent || s == NotificationStatusRead
}

// NotificationType labels the business trigger for a notification.
type NotificationType string

const (
	NotificationTypeOrderConfirmation NotificationType = "order_confirmation"
	NotificationTypeOrderShipped      NotificationType = "order_shipped"
	NotificationTypeOrderDelivered    NotificationType = "order_delivered"
	NotificationTypeOrderCancelled    NotificationType = "order_cancelled"
	NotificationTypeOrderRefunded     NotificationType = "order_refunded"
	NotificationTypeSellerSale        NotificationType = "seller_sale"
	NotificationTypeAccount           NotificationType = "account"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderConfirmation,
	NotificationTypeOrderShipped,
	NotificationTypeOrderDelivered,
	NotificationTypeOrderCancelled,
	NotificationTypeOrderRefunded,
	NotificationTypeSellerSale,
	NotificationTypeAccount,
}

// IsValid reports whether the value matches the canonical enum.
func (t NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// NotificationTypes returns all known types, used when seeding preferences.
func NotificationTypes() []NotificationType {
	out := make([]NotificationType, len(validNotificationTypes))
	copy(out, validNotificationTypes)
	return out
}
