package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

// ChargeInput carries the capture request handed to the gateway.
type ChargeInput struct {
	Reference    string
	CustomerID   string
	Amount       decimal.Decimal
	Currency     enums.Currency
	PaymentToken string
}

// ChargeResult is the gateway's answer to a capture attempt.
type ChargeResult struct {
	TransactionID string
	Captured      bool
	DeclineReason string
	CapturedAt    time.Time
}

// Gateway captures payments. The marketplace never stores card data, only
// opaque tokens minted by the payment provider.
type Gateway interface {
	Charge(ctx context.Context, input ChargeInput) (*ChargeResult, error)
}

// mockGateway is the deterministic stand-in used until a real provider is
// wired. Tokens with the "declined" suffix fail, everything else captures.
type mockGateway struct{}

// NewMockGateway returns the deterministic development gateway.
func NewMockGateway() Gateway {
	return mockGateway{}
}

func (mockGateway) Charge(ctx context.Context, input ChargeInput) (*ChargeResult, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("charge amount must be positive")
	}
	if input.PaymentToken == "" {
		return &ChargeResult{Captured: false, DeclineReason: "missing payment token"}, nil
	}
	if strings.HasSuffix(input.PaymentToken, "declined") {
		return &ChargeResult{Captured: false, DeclineReason: "card declined"}, nil
	}
	return &ChargeResult{
		TransactionID: "mock_" + uuid.NewString(),
		Captured:      true,
		CapturedAt:    time.Now().UTC(),
	}, nil
}
