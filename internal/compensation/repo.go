package compensation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a compensation repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) RecordFailure(ctx context.Context, failure *models.CompensationFailure) error {
	return r.db.WithContext(ctx).Create(failure).Error
}

func (r *repository) FindFailuresByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CompensationFailure, error) {
	var rows []models.CompensationFailure
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("failed_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkCompensated stamps the matching open failure rows and reports how many
// were stamped. Zero means the completion was a duplicate or out of order.
func (r *repository) MarkCompensated(ctx context.Context, orderID uuid.UUID, orderItemID *uuid.UUID, failureType enums.FailureType, at time.Time) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.CompensationFailure{}).
		Where("order_id = ? AND failure_type = ? AND compensated_at IS NULL", orderID, failureType)
	if orderItemID != nil {
		query = query.Where("order_item_id = ?", *orderItemID)
	}
	res := query.Update("compensated_at", at)
	return res.RowsAffected, res.Error
}

func (r *repository) InsertTrigger(ctx context.Context, trigger *models.CompensationTrigger) error {
	return r.db.WithContext(ctx).Create(trigger).Error
}

func (r *repository) FindTrigger(ctx context.Context, orderID uuid.UUID) (*models.CompensationTrigger, error) {
	var trigger models.CompensationTrigger
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&trigger).Error
	if err != nil {
		return nil, err
	}
	return &trigger, nil
}

// MarkCancellationRequested stamps the trigger once; zero rows affected means
// another worker already requested cancellation for the order.
func (r *repository) MarkCancellationRequested(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CompensationTrigger{}).
		Where("order_id = ? AND cancellation_requested_at IS NULL", orderID).
		Update("cancellation_requested_at", at)
	return res.RowsAffected, res.Error
}
