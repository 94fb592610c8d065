package payments

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

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateAllocations(ctx context.Context, allocations []models.PaymentAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&allocations).Error
}

func (r *repository) FindAllocationsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentAllocation, error) {
	var rows []models.PaymentAllocation
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateAllocationStatusByOrder(ctx context.Context, orderID uuid.UUID, from, to enums.PaymentAllocationStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentAllocation{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Update("status", to).Error
}

// FindUnsettledAllocations returns paid allocations created before the cutoff
// that are not yet rolled into a settlement.
func (r *repository) FindUnsettledAllocations(ctx context.Context, before time.Time) ([]models.PaymentAllocation, error) {
	var rows []models.PaymentAllocation
	err := r.db.WithContext(ctx).
		Where("settlement_id IS NULL AND status = ? AND created_at < ?", enums.AllocationStatusPaid, before).
		Order("seller_id ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateSettlement(ctx context.Context, settlement *models.SellerSettlement) (*models.SellerSettlement, error) {
	if err := r.db.WithContext(ctx).Create(settlement).Error; err != nil {
		return nil, err
	}
	return settlement, nil
}

func (r *repository) AssignAllocations(ctx context.Context, settlementID uuid.UUID, allocationIDs []uuid.UUID) error {
	if len(allocationIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.PaymentAllocation{}).
		Where("id IN ?", allocationIDs).
		Update("settlement_id", settlementID).Error
}

func (r *repository) FindSettlementsBySeller(ctx context.Context, sellerID string) ([]models.SellerSettlement, error) {
	var rows []models.SellerSettlement
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("period_start DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkSettlementProcessed(ctx context.Context, settlementID uuid.UUID, processedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerSettlement{}).
		Where("id = ?", settlementID).
		Updates(map[string]any{
			"status":       enums.SettlementStatusProcessed,
			"processed_at": processedAt,
		}).Error
}
