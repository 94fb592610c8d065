package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	"github.com/mkrogh/bookmarket-backend/pkg/types"
)

// SessionDto is the checkout session response.
type SessionDto struct {
	SessionID       string          `json:"sessionId"`
	Items           []SessionItem   `json:"items"`
	SellerGroups    []SellerGroup   `json:"sellerGroups"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Currency        enums.Currency  `json:"currency"`
	DeliveryAddress types.Address   `json:"deliveryAddress"`
	ExpiresAt       time.Time       `json:"expiresAt"`
}

func newSessionDto(session *Session) *SessionDto {
	return &SessionDto{
		SessionID:       session.SessionID,
		Items:           session.Items,
		SellerGroups:    session.SellerGroups,
		TotalAmount:     session.TotalAmount,
		Currency:        session.Currency,
		DeliveryAddress: session.DeliveryAddress,
		ExpiresAt:       session.ExpiresAt,
	}
}
