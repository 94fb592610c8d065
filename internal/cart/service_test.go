package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
)

type memRepo struct {
	carts map[string]*models.CartRecord
	items map[uuid.UUID]*models.CartItem
}

func newMemRepo() *memRepo {
	return &memRepo{
		carts: map[string]*models.CartRecord{},
		items: map[uuid.UUID]*models.CartItem{},
	}
}

func (m *memRepo) WithTx(tx *gorm.DB) Repository { return m }

func (m *memRepo) FindByCustomer(ctx context.Context, customerID string) (*models.CartRecord, error) {
	cart, ok := m.carts[customerID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *cart
	out.Items = nil
	for _, item := range m.items {
		if item.CartID == cart.ID {
			out.Items = append(out.Items, *item)
		}
	}
	return &out, nil
}

func (m *memRepo) CreateCart(ctx context.Context, cart *models.CartRecord) (*models.CartRecord, error) {
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	m.carts[cart.CustomerID] = cart
	return cart, nil
}

func (m *memRepo) FindItem(ctx context.Context, cartID uuid.UUID, isbn, sellerID string) (*models.CartItem, error) {
	for _, item := range m.items {
		if item.CartID == cartID && item.ISBN == isbn && item.SellerID == sellerID {
			copied := *item
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memRepo) FindItemByID(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	item, ok := m.items[itemID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *item
	return &copied, nil
}

func (m *memRepo) CreateItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	m.items[item.ID] = item
	return nil
}

func (m *memRepo) UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error {
	item := m.items[itemID]
	if qty, ok := updates["quantity"].(int); ok {
		item.Quantity = qty
	}
	if price, ok := updates["unit_price"].(decimal.Decimal); ok {
		item.UnitPrice = price
	}
	return nil
}

func (m *memRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	delete(m.items, itemID)
	return nil
}

func (m *memRepo) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	for id, item := range m.items {
		if item.CartID == cartID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *memRepo) Touch(ctx context.Context, cartID uuid.UUID) error { return nil }

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOffers struct {
	offers map[string]*Offer
}

func (s *stubOffers) GetOffer(ctx context.Context, isbn, sellerID string) (*Offer, error) {
	offer, ok := s.offers[isbn+"|"+sellerID]
	if !ok {
		return nil, ErrOfferNotFound
	}
	return offer, nil
}

func newCartService(t *testing.T) (Service, *memRepo, *stubOffers) {
	t.Helper()

	repo := newMemRepo()
	offers := &stubOffers{offers: map[string]*Offer{
		"9780132350884|s1": {ISBN: "9780132350884", SellerID: "s1", Price: decimal.RequireFromString("39.99"), Currency: enums.CurrencyDKK, Stock: 5},
		"9780132350884|s2": {ISBN: "9780132350884", SellerID: "s2", Price: decimal.RequireFromString("34.50"), Currency: enums.CurrencyDKK, Stock: 2},
	}}
	svc, err := NewService(repo, stubTx{}, offers)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo, offers
}

func TestAddItemCreatesCartAndLine(t *testing.T) {
	svc, _, _ := newCartService(t)
	ctx := context.Background()

	dto, err := svc.AddItem(ctx, "cust-1", AddItemInput{ISBN: "9780132350884", SellerID: "s1", Quantity: 2})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(dto.Items) != 1 {
		t.Fatalf("items = %d", len(dto.Items))
	}
	if dto.Items[0].Quantity != 2 {
		t.Errorf("quantity = %d", dto.Items[0].Quantity)
	}
	if want := decimal.RequireFromString("79.98"); !dto.Subtotal.Equal(want) {
		t.Errorf("subtotal = %s, want %s", dto.Subtotal, want)
	}
}

func TestAddItemMergesSameOfferLine(t *testing.T) {
	svc, _, _ := newCartService(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "cust-1", AddItemInput{ISBN: "9780132350884", SellerID: "s1", Quantity: 1}); err != nil {
		t.Fatalf("first AddItem: %v", err)
	}
	dto, err := svc.AddItem(ctx, "cust-1", AddItemInput{ISBN: "9780132350884", SellerID: "s1", Quantity: 2})
	if err != nil {
		t.Fatalf("second AddItem: %v", err)
	}
	if len(dto.Items) != 1 {
		t.Fatalf("merge must not add a second line, items = %d", len(dto.Items))
	}
	if dto.Items[0].Quantity != 3 {
		t.Errorf("merged quantity = %d, want 3", dto.Items[0].Quantity)
	}
}

func TestAddItemKeepsSellersSeparate(t *testing.T) {
	svc, _, _ := newCartService(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "cust-1", AddItemInput{ISBN: "9780132350884", SellerID: "s1", Quantity: 1}); err != nil {
		t.Fatalf("AddItem s1: %v", err)
	}
	dto, err := svc.AddItem(ctx, "cust-1", AddItemInput{ISBN: "9780132350884", SellerID: "s2", Quantity: 1})
	if err != nil {
		t.Fatalf("AddItem s2: %v", err)
	}
	if len(dto.Items) != 2 {
		t.Fatalf("same title from two sellers must stay two lines, items = %d", len(dto.Items))
	}
}

func TestAddItemInsufficientStock(t *testing.T) {
	svc, _, _ := newCartService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "cust-1", AddItemInput{ISBN: "9780132350884", SellerID: "s2", Quantity: 3})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("want CONFLICT, got %v", err)
	}
}

func TestAddItemMergeRespectsStock(t *testing.T) {
	svc, _, _ := newCartService(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "cust-1", AddItemInput{ISBN: "9780132350884", SellerID: "s2", Quantity: 2}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	_, err := svc.AddItem(ctx, "cust-1", AddItemInput{ISBN: "9780132350884", SellerID: "s2", Quantity: 1})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("merged quantity above stock must conflict, got %v", err)
	}
}

func TestAddItemUnknownOffer(t *testing.T) {
	svc, _, _ := newCartService(t)

	_, err := svc.AddItem(context.Background(), "cust-1", AddItemInput{ISBN: "9780195153446", SellerID: "nobody", Quantity: 1})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("want NOT_FOUND, got %v", err)
	}
}

func TestUpdateItemQuantityValidation(t *testing.T) {
	svc, _, _ := newCartService(t)

	_, err := svc.UpdateItemQuantity(context.Background(), "cust-1", uuid.New(), 0)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("want VALIDATION_ERROR, got %v", err)
	}
}

func TestRemoveItemRecomputesSubtotal(t *testing.T) {
	svc, _, _ := newCartService(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "cust-1", AddItemInput{ISBN: "9780132350884", SellerID: "s1", Quantity: 1}); err != nil {
		t.Fatalf("AddItem s1: %v", err)
	}
	dto, err := svc.AddItem(ctx, "cust-1", AddItemInput{ISBN: "9780132350884", SellerID: "s2", Quantity: 1})
	if err != nil {
		t.Fatalf("AddItem s2: %v", err)
	}

	var s2Item uuid.UUID
	for _, item := range dto.Items {
		if item.SellerID == "s2" {
			s2Item = item.ID
		}
	}
	dto, err = svc.RemoveItem(ctx, "cust-1", s2Item)
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(dto.Items) != 1 {
		t.Fatalf("items = %d", len(dto.Items))
	}
	if want := decimal.RequireFromString("39.99"); !dto.Subtotal.Equal(want) {
		t.Errorf("subtotal = %s, want %s", dto.Subtotal, want)
	}
}

func TestClearCart(t *testing.T) {
	svc, _, _ := newCartService(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "cust-1", AddItemInput{ISBN: "9780132350884", SellerID: "s1", Quantity: 1}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := svc.ClearCart(ctx, "cust-1"); err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	dto, err := svc.GetCart(ctx, "cust-1")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(dto.Items) != 0 || !dto.Subtotal.IsZero() {
		t.Errorf("cart not empty: %+v", dto)
	}
}

func TestGetCartUnknownCustomerIsEmpty(t *testing.T) {
	svc, _, _ := newCartService(t)

	dto, err := svc.GetCart(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(dto.Items) != 0 || !dto.Subtotal.IsZero() {
		t.Errorf("expected empty cart, got %+v", dto)
	}
}
