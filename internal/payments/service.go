package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the money side of an order: splitting captured amounts into
// per-item allocations and rolling paid allocations into settlements.
type Service interface {
	Split(gross decimal.Decimal) FeeSplit
	CreateAllocationsTx(ctx context.Context, tx *gorm.DB, order *models.Order) ([]models.PaymentAllocation, error)
	ReverseByOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	GetSellerSettlements(ctx context.Context, sellerID string) ([]SettlementDto, error)
	RunSettlement(ctx context.Context, now time.Time) (int, error)
}

type service struct {
	repo       Repository
	tx         txRunner
	feePct     int
	periodDays int
}

// NewService builds a payments service with the platform fee percentage and
// settlement period from config.
func NewService(repo Repository, tx txRunner, feePct, periodDays int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if feePct < 0 || feePct > 100 {
		return nil, fmt.Errorf("platform fee percent out of range: %d", feePct)
	}
	if periodDays < 1 {
		return nil, fmt.Errorf("settlement period must be at least one day")
	}
	return &service{repo: repo, tx: tx, feePct: feePct, periodDays: periodDays}, nil
}

// Split applies the configured platform fee to one gross amount. Checkout
// uses it to show the same per-line split that allocation later persists.
func (s *service) Split(gross decimal.Decimal) FeeSplit {
	return SplitFee(gross, s.feePct)
}

// CreateAllocationsTx writes one paid allocation per order item inside the
// caller's transaction. The fee is taken per line, so a seller's payout is
// the sum of exact per-line remainders.
func (s *service) CreateAllocationsTx(ctx context.Context, tx *gorm.DB, order *models.Order) ([]models.PaymentAllocation, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if order == nil || len(order.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order with items required")
	}

	allocations := make([]models.PaymentAllocation, 0, len(order.Items))
	for _, item := range order.Items {
		gross := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		split := SplitFee(gross, s.feePct)
		allocations = append(allocations, models.PaymentAllocation{
			ID:          uuid.New(),
			OrderID:     order.ID,
			OrderItemID: item.ID,
			SellerID:    item.SellerID,
			GrossAmount: split.Gross,
			PlatformFee: split.Fee,
			NetPayout:   split.Net,
			Currency:    item.Currency,
			Status:      enums.AllocationStatusPaid,
		})
	}
	if err := s.repo.WithTx(tx).CreateAllocations(ctx, allocations); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment allocations")
	}
	return allocations, nil
}

// ReverseByOrder releases an order's captured allocations. Satisfies the
// orders service's AllocationReverser.
func (s *service) ReverseByOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	repo := s.repo.WithTx(tx)
	err := repo.UpdateAllocationStatusByOrder(ctx, orderID, enums.AllocationStatusPaid, enums.AllocationStatusReversed)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reverse allocations")
	}
	return nil
}

func (s *service) GetSellerSettlements(ctx context.Context, sellerID string) ([]SettlementDto, error) {
	if sellerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	rows, err := s.repo.FindSettlementsBySeller(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list settlements")
	}
	out := make([]SettlementDto, 0, len(rows))
	for _, row := range rows {
		out = append(out, newSettlementDto(row))
	}
	return out, nil
}

// RunSettlement rolls unsettled paid allocations into one settlement per
// seller for the period ending at the current period boundary, then pays each
// settlement out. Returns the number of settlements created.
func (s *service) RunSettlement(ctx context.Context, now time.Time) (int, error) {
	periodEnd := now.UTC().Truncate(24 * time.Hour)
	periodStart := periodEnd.AddDate(0, 0, -s.periodDays)

	created := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		allocations, err := repo.FindUnsettledAllocations(ctx, periodEnd)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load unsettled allocations")
		}

		type bucket struct {
			total    decimal.Decimal
			currency enums.Currency
			ids      []uuid.UUID
		}
		buckets := map[string]*bucket{}
		order := []string{}
		for _, allocation := range allocations {
			b, ok := buckets[allocation.SellerID]
			if !ok {
				b = &bucket{total: decimal.Zero, currency: allocation.Currency}
				buckets[allocation.SellerID] = b
				order = append(order, allocation.SellerID)
			}
			b.total = b.total.Add(allocation.NetPayout)
			b.ids = append(b.ids, allocation.ID)
		}

		for _, sellerID := range order {
			b := buckets[sellerID]
			settlement, err := repo.CreateSettlement(ctx, &models.SellerSettlement{
				ID:          uuid.New(),
				SellerID:    sellerID,
				PeriodStart: periodStart,
				PeriodEnd:   periodEnd,
				TotalPayout: b.total,
				Currency:    b.currency,
				Status:      enums.SettlementStatusPending,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create settlement")
			}
			if err := repo.AssignAllocations(ctx, settlement.ID, b.ids); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign allocations")
			}
			// Payouts ride the mock rails, so the transfer is immediate and
			// the settlement moves to processed in the same run.
			if err := repo.MarkSettlementProcessed(ctx, settlement.ID, now.UTC()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark settlement processed")
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
