package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/pkg/db"
	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
	"github.com/mkrogh/bookmarket-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Offer is the seller offer snapshot used to price and stock-check cart lines.
type Offer struct {
	ISBN     string
	SellerID string
	Price    decimal.Decimal
	Currency enums.Currency
	Stock    int
}

// OfferLoader resolves the current offer for an (ISBN, seller) pair.
type OfferLoader interface {
	GetOffer(ctx context.Context, isbn, sellerID string) (*Offer, error)
}

// ErrOfferNotFound is returned by OfferLoader implementations when the pair
// has no active offer.
var ErrOfferNotFound = errors.New("offer not found")

// Service exposes cart operations for a single customer.
type Service interface {
	GetCart(ctx context.Context, customerID string) (*CartDto, error)
	AddItem(ctx context.Context, customerID string, input AddItemInput) (*CartDto, error)
	UpdateItemQuantity(ctx context.Context, customerID string, itemID uuid.UUID, quantity int) (*CartDto, error)
	RemoveItem(ctx context.Context, customerID string, itemID uuid.UUID) (*CartDto, error)
	ClearCart(ctx context.Context, customerID string) error
	ClearCartTx(ctx context.Context, tx *gorm.DB, customerID string) error
}

// AddItemInput captures one offer line heading into the cart.
type AddItemInput struct {
	ISBN     string
	SellerID string
	Quantity int
}

type service struct {
	repo   Repository
	tx     txRunner
	offers OfferLoader
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, offers OfferLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if offers == nil {
		return nil, fmt.Errorf("offer loader required")
	}
	return &service{repo: repo, tx: tx, offers: offers}, nil
}

func (s *service) GetCart(ctx context.Context, customerID string) (*CartDto, error) {
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	cart, err := s.repo.FindByCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyCartDto(customerID), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return newCartDto(*cart), nil
}

// AddItem merges the offer into the cart: an existing (ISBN, seller) line has
// its quantity summed and price refreshed, anything else becomes a new line.
func (s *service) AddItem(ctx context.Context, customerID string, input AddItemInput) (*CartDto, error) {
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	isbn, err := types.NewISBN(input.ISBN)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid isbn")
	}
	if input.SellerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	offer, err := s.offers.GetOffer(ctx, isbn.String(), input.SellerID)
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindByCustomer(ctx, customerID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cart, err = repo.CreateCart(ctx, &models.CartRecord{CustomerID: customerID})
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		existing, err := repo.FindItem(ctx, cart.ID, isbn.String(), input.SellerID)
		switch {
		case err == nil:
			merged := existing.Quantity + input.Quantity
			if offer.Stock < merged {
				return insufficientStock(isbn.String(), input.SellerID, offer.Stock, merged)
			}
			updates := map[string]any{
				"quantity":   merged,
				"unit_price": offer.Price,
				"updated_at": time.Now().UTC(),
			}
			if err := repo.UpdateItem(ctx, existing.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart item")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if offer.Stock < input.Quantity {
				return insufficientStock(isbn.String(), input.SellerID, offer.Stock, input.Quantity)
			}
			item := &models.CartItem{
				CartID:    cart.ID,
				ISBN:      isbn.String(),
				SellerID:  input.SellerID,
				Quantity:  input.Quantity,
				UnitPrice: offer.Price,
				Currency:  offer.Currency,
			}
			if err := repo.CreateItem(ctx, item); err != nil {
				if db.IsUniqueViolation(err, "ux_cart_items_cart_isbn_seller") {
					return pkgerrors.New(pkgerrors.CodeConflict, "cart item was added concurrently")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		return repo.Touch(ctx, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, customerID)
}

func (s *service) UpdateItemQuantity(ctx context.Context, customerID string, itemID uuid.UUID, quantity int) (*CartDto, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	err := s.withOwnedItem(ctx, customerID, itemID, func(repo Repository, cart *models.CartRecord, item *models.CartItem) error {
		offer, err := s.offers.GetOffer(ctx, item.ISBN, item.SellerID)
		if err != nil {
			if errors.Is(err, ErrOfferNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "offer no longer available")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
		}
		if offer.Stock < quantity {
			return insufficientStock(item.ISBN, item.SellerID, offer.Stock, quantity)
		}
		updates := map[string]any{
			"quantity":   quantity,
			"updated_at": time.Now().UTC(),
		}
		if err := repo.UpdateItem(ctx, item.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return repo.Touch(ctx, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, customerID)
}

func (s *service) RemoveItem(ctx context.Context, customerID string, itemID uuid.UUID) (*CartDto, error) {
	err := s.withOwnedItem(ctx, customerID, itemID, func(repo Repository, cart *models.CartRecord, item *models.CartItem) error {
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		return repo.Touch(ctx, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, customerID)
}

func (s *service) ClearCart(ctx context.Context, customerID string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ClearCartTx(ctx, tx, customerID)
	})
}

// ClearCartTx empties the cart inside the caller's transaction. Checkout uses
// it so the wipe commits atomically with the order.
func (s *service) ClearCartTx(ctx context.Context, tx *gorm.DB, customerID string) error {
	if customerID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	repo := s.repo.WithTx(tx)
	cart, err := repo.FindByCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := repo.DeleteItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
	}
	return repo.Touch(ctx, cart.ID)
}

func (s *service) withOwnedItem(ctx context.Context, customerID string, itemID uuid.UUID, fn func(repo Repository, cart *models.CartRecord, item *models.CartItem) error) error {
	if customerID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindByCustomer(ctx, customerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		item, err := repo.FindItemByID(ctx, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if item.CartID != cart.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cart item does not belong to customer")
		}
		return fn(repo, cart, item)
	})
}

func insufficientStock(isbn, sellerID string, available, requested int) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock for offer").
		WithDetails(map[string]any{
			"isbn":      isbn,
			"sellerId":  sellerID,
			"available": available,
			"requested": requested,
		})
}
