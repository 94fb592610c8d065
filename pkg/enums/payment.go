package enums

import "fmt"

// PaymentAllocationStatus maps to the payment_allocation_status enum in Postgres.
type PaymentAllocationStatus string

const (
	AllocationStatusPending  PaymentAllocationStatus = "pending"
	AllocationStatusPaid     PaymentAllocationStatus = "paid"
	AllocationStatusHeld     PaymentAllocationStatus = "held"
	AllocationStatusReversed PaymentAllocationStatus = "reversed"
)

var validAllocationStatuses = []PaymentAllocationStatus{
	AllocationStatusPending,
	AllocationStatusPaid,
	AllocationStatusHeld,
	AllocationStatusReversed,
}

// IsValid reports whether the value matches the canonical enum.
func (s PaymentAllocationStatus) IsValid() bool {
	for _, candidate := range validAllocationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// SettlementStatus maps to the settlement_status enum in Postgres.
type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "pending"
	SettlementStatusProcessed SettlementStatus = "processed"
	SettlementStatusFailed    SettlementStatus = "failed"
)

var validSettlementStatuses = []SettlementStatus{
	SettlementStatusPending,
	SettlementStatusProcessed,
	SettlementStatusFailed,
}

// IsValid reports whether the value matches the canonical enum.
func (s SettlementStatus) IsValid() bool {
	for _, candidate := range validSettlementStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSettlementStatus converts raw input into a SettlementStatus.
func ParseSettlementStatus(value string) (SettlementStatus, error) {
	for _, candidate := range validSettlementStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid settlement status %q", value)
}
