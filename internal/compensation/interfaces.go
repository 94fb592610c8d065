package compensation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

// Repository defines persistence operations for the compensation ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	RecordFailure(ctx context.Context, failure *models.CompensationFailure) error
	FindFailuresByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CompensationFailure, error)
	MarkCompensated(ctx context.Context, orderID uuid.UUID, orderItemID *uuid.UUID, failureType enums.FailureType, at time.Time) (int64, error)
	InsertTrigger(ctx context.Context, trigger *models.CompensationTrigger) error
	FindTrigger(ctx context.Context, orderID uuid.UUID) (*models.CompensationTrigger, error)
	MarkCancellationRequested(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error)
}
