package compensation

import (
	"time"

	"github.com/google/uuid"

	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

// FailureDto is one ledger entry in the order failure response.
type FailureDto struct {
	ID            uuid.UUID         `json:"id"`
	OrderID       uuid.UUID         `json:"orderId"`
	OrderItemID   *uuid.UUID        `json:"orderItemId,omitempty"`
	FailureType   enums.FailureType `json:"failureType"`
	ErrorMessage  string            `json:"errorMessage"`
	FailedAt      time.Time         `json:"failedAt"`
	CompensatedAt *time.Time        `json:"compensatedAt,omitempty"`
}

func newFailureDto(failure models.CompensationFailure) FailureDto {
	return FailureDto{
		ID:            failure.ID,
		OrderID:       failure.OrderID,
		OrderItemID:   failure.OrderItemID,
		FailureType:   failure.FailureType,
		ErrorMessage:  failure.ErrorMessage,
		FailedAt:      failure.FailedAt,
		CompensatedAt: failure.CompensatedAt,
	}
}
