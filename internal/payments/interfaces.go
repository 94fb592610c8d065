package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

// Repository defines persistence operations for allocations and settlements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateAllocations(ctx context.Context, allocations []models.PaymentAllocation) error
	FindAllocationsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentAllocation, error)
	UpdateAllocationStatusByOrder(ctx context.Context, orderID uuid.UUID, from, to enums.PaymentAllocationStatus) error
	FindUnsettledAllocations(ctx context.Context, before time.Time) ([]models.PaymentAllocation, error)
	CreateSettlement(ctx context.Context, settlement *models.SellerSettlement) (*models.SellerSettlement, error)
	AssignAllocations(ctx context.Context, settlementID uuid.UUID, allocationIDs []uuid.UUID) error
	FindSettlementsBySeller(ctx context.Context, sellerID string) ([]models.SellerSettlement, error)
	MarkSettlementProcessed(ctx context.Context, settlementID uuid.UUID, processedAt time.Time) error
}
