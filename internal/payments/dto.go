package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

// SettlementDto is one settlement row in the seller payout response.
type SettlementDto struct {
	ID          uuid.UUID              `json:"id"`
	SellerID    string                 `json:"sellerId"`
	PeriodStart time.Time              `json:"periodStart"`
	PeriodEnd   time.Time              `json:"periodEnd"`
	TotalPayout decimal.Decimal        `json:"totalPayout"`
	Currency    enums.Currency         `json:"currency"`
	Status      enums.SettlementStatus `json:"status"`
	ProcessedAt *time.Time             `json:"processedAt,omitempty"`
}

func newSettlementDto(row models.SellerSettlement) SettlementDto {
	return SettlementDto{
		ID:          row.ID,
		SellerID:    row.SellerID,
		PeriodStart: row.PeriodStart,
		PeriodEnd:   row.PeriodEnd,
		TotalPayout: row.TotalPayout,
		Currency:    row.Currency,
		Status:      row.Status,
		ProcessedAt: row.ProcessedAt,
	}
}
