package enums

// FailureType classifies downstream failures tracked per order.
type FailureType string

const (
	FailureInventoryReservation FailureType = "inventory_reservation"
	FailureSellerStatsUpdate    FailureType = "seller_stats_update"
	FailureNotification         FailureType = "notification"
)

var validFailureTypes = []FailureType{
	FailureInventoryReservation,
	FailureSellerStatsUpdate,
	FailureNotification,
}

// IsValid reports whether the value matches the canonical enum.
func (f FailureType) IsValid() bool {
	for _, candidate := range validFailureTypes {
		if candidate == f {
			return true
		}
	}
	return false
}

// IsCritical reports whether this failure alone can trigger compensation.
// Notification failures are tracked but never trigger on their own.
func (f FailureType) IsCritical() bool {
	return f == FailureInventoryReservation || f == FailureSellerStatsUpdate
}
