package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	"github.com/mkrogh/bookmarket-backend/pkg/pagination"
)

// Repository defines persistence operations for the order aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID string, params pagination.Params, filters ListFilters) (*OrderList, error)
	UpdateWithVersion(ctx context.Context, orderID uuid.UUID, expectedVersion int, updates map[string]any) error
	UpdateItemStatuses(ctx context.Context, orderID uuid.UUID, status enums.OrderItemStatus) error
}

// AllocationReverser releases captured payment allocations when an order is
// cancelled or refunded after payment.
type AllocationReverser interface {
	ReverseByOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}
