package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
)

// CartItem is one offer line in a cart, keyed by (ISBN, seller).
// Adding the same key again sums the quantity instead of creating a row.
type CartItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID    uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_isbn_seller,priority:1"`
	ISBN      string          `gorm:"column:isbn;type:text;not null;uniqueIndex:ux_cart_items_cart_isbn_seller,priority:2"`
	SellerID  string          `gorm:"column:seller_id;type:text;not null;uniqueIndex:ux_cart_items_cart_isbn_seller,priority:3"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Currency  enums.Currency  `gorm:"column:currency;type:text;not null;default:'DKK'"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
