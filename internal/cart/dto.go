package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

// CartItemDto is one priced line in the cart response.
type CartItemDto struct {
	ID        uuid.UUID       `json:"id"`
	ISBN      string          `json:"isbn"`
	SellerID  string          `json:"sellerId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Currency  enums.Currency  `json:"currency"`
}

// CartDto is the cart response with the derived subtotal.
type CartDto struct {
	ID         uuid.UUID       `json:"id"`
	CustomerID string          `json:"customerId"`
	Items      []CartItemDto   `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Currency   enums.Currency  `json:"currency"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func emptyCartDto(customerID string) *CartDto {
	return &CartDto{
		CustomerID: customerID,
		Items:      []CartItemDto{},
		Subtotal:   decimal.Zero,
		Currency:   enums.DefaultCurrency,
	}
}

func newCartDto(cart models.CartRecord) *CartDto {
	dto := &CartDto{
		ID:         cart.ID,
		CustomerID: cart.CustomerID,
		Items:      make([]CartItemDto, 0, len(cart.Items)),
		Subtotal:   decimal.Zero,
		Currency:   enums.DefaultCurrency,
		UpdatedAt:  cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		dto.Items = append(dto.Items, CartItemDto{
			ID:        item.ID,
			ISBN:      item.ISBN,
			SellerID:  item.SellerID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: lineTotal,
			Currency:  item.Currency,
		})
		dto.Subtotal = dto.Subtotal.Add(lineTotal)
		dto.Currency = item.Currency
	}
	return dto
}
