package checkout

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/internal/cart"
	"github.com/mkrogh/bookmarket-backend/internal/orders"
	"github.com/mkrogh/bookmarket-backend/internal/payments"
	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox"
	"github.com/mkrogh/bookmarket-backend/pkg/pagination"
	"github.com/mkrogh/bookmarket-backend/pkg/types"
)

type stubCarts struct {
	cart    *cart.CartDto
	cleared []string
}

func (s *stubCarts) GetCart(ctx context.Context, customerID string) (*cart.CartDto, error) {
	return s.cart, nil
}

func (s *stubCarts) ClearCartTx(ctx context.Context, tx *gorm.DB, customerID string) error {
	s.cleared = append(s.cleared, customerID)
	return nil
}

type memSessions struct {
	ttl      time.Duration
	sessions map[string]*Session
	deleted  []string
}

func newMemSessions() *memSessions {
	return &memSessions{ttl: 30 * time.Minute, sessions: map[string]*Session{}}
}

func (m *memSessions) TTL() time.Duration { return m.ttl }

func (m *memSessions) Save(ctx context.Context, session *Session) error {
	m.sessions[session.SessionID] = session
	return nil
}

func (m *memSessions) Get(ctx context.Context, sessionID string) (*Session, error) {
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (m *memSessions) Delete(ctx context.Context, sessionID string) error {
	delete(m.sessions, sessionID)
	m.deleted = append(m.deleted, sessionID)
	return nil
}

type stubOrderRepo struct {
	created *models.Order
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrderRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	s.created = order
	return order, nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) ListByCustomer(ctx context.Context, customerID string, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (s *stubOrderRepo) UpdateWithVersion(ctx context.Context, orderID uuid.UUID, expectedVersion int, updates map[string]any) error {
	return nil
}

func (s *stubOrderRepo) UpdateItemStatuses(ctx context.Context, orderID uuid.UUID, status enums.OrderItemStatus) error {
	return nil
}

type stubOrderWriter struct {
	paidOrder  *models.Order
	paidAmount decimal.Decimal
}

func (s *stubOrderWriter) MarkPaidTx(ctx context.Context, tx *gorm.DB, order *models.Order, amount decimal.Decimal, currency enums.Currency, actor *outbox.ActorRef) error {
	s.paidOrder = order
	s.paidAmount = amount
	return nil
}

type stubAllocations struct {
	orders []*models.Order
}

func (s *stubAllocations) Split(gross decimal.Decimal) payments.FeeSplit {
	return payments.SplitFee(gross, 10)
}

func (s *stubAllocations) CreateAllocationsTx(ctx context.Context, tx *gorm.DB, order *models.Order) ([]models.PaymentAllocation, error) {
	s.orders = append(s.orders, order)
	return nil, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubUsers struct {
	user *models.User
}

func (s *stubUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

type checkoutFixture struct {
	svc      Service
	carts    *stubCarts
	sessions *memSessions
	repo     *stubOrderRepo
	writer   *stubOrderWriter
	allocs   *stubAllocations
	events   *stubOutbox
	users    *stubUsers
}

func testAddress(t *testing.T) types.Address {
	t.Helper()

	address, err := types.NewAddress("Nyhavn 12", "Copenhagen", "1051", "", "DK")
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	return address
}

func twoSellerCart() *cart.CartDto {
	return &cart.CartDto{
		ID:         uuid.New(),
		CustomerID: "cust-1",
		Currency:   enums.CurrencyDKK,
		Subtotal:   decimal.RequireFromString("119.96"),
		Items: []cart.CartItemDto{
			{ID: uuid.New(), ISBN: "9780132350884", SellerID: "s1", Quantity: 1, UnitPrice: decimal.RequireFromString("79.97"), LineTotal: decimal.RequireFromString("79.97"), Currency: enums.CurrencyDKK},
			{ID: uuid.New(), ISBN: "9780134190440", SellerID: "s2", Quantity: 1, UnitPrice: decimal.RequireFromString("39.99"), LineTotal: decimal.RequireFromString("39.99"), Currency: enums.CurrencyDKK},
		},
	}
}

func newCheckoutFixture(t *testing.T, cartDto *cart.CartDto) *checkoutFixture {
	t.Helper()

	f := &checkoutFixture{
		carts:    &stubCarts{cart: cartDto},
		sessions: newMemSessions(),
		repo:     &stubOrderRepo{},
		writer:   &stubOrderWriter{},
		allocs:   &stubAllocations{},
		events:   &stubOutbox{},
		users:    &stubUsers{},
	}
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	svc, err := NewService(f.carts, f.sessions, f.repo, f.writer, f.allocs, payments.NewMockGateway(), stubTx{}, f.events, f.users, logg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func TestCreateSessionGroupsBySeller(t *testing.T) {
	f := newCheckoutFixture(t, twoSellerCart())
	ctx := context.Background()

	dto, err := f.svc.CreateSession(ctx, "cust-1", CreateSessionInput{DeliveryAddress: testAddress(t)})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if want := decimal.RequireFromString("119.96"); !dto.TotalAmount.Equal(want) {
		t.Errorf("total = %s, want %s", dto.TotalAmount, want)
	}
	if len(dto.SellerGroups) != 2 {
		t.Fatalf("seller groups = %d", len(dto.SellerGroups))
	}
	if !dto.SellerGroups[0].Subtotal.Equal(decimal.RequireFromString("79.97")) {
		t.Errorf("s1 subtotal = %s", dto.SellerGroups[0].Subtotal)
	}
	if !dto.SellerGroups[1].Subtotal.Equal(decimal.RequireFromString("39.99")) {
		t.Errorf("s2 subtotal = %s", dto.SellerGroups[1].Subtotal)
	}
	if dto.ExpiresAt.IsZero() {
		t.Error("session must carry its expiry")
	}
}

func TestCreateSessionSplitsFeesPerSeller(t *testing.T) {
	f := newCheckoutFixture(t, twoSellerCart())
	ctx := context.Background()

	dto, err := f.svc.CreateSession(ctx, "cust-1", CreateSessionInput{DeliveryAddress: testAddress(t)})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	s1 := dto.SellerGroups[0]
	if !s1.PlatformFee.Equal(decimal.RequireFromString("8.00")) {
		t.Errorf("s1 fee = %s, want 8.00", s1.PlatformFee)
	}
	if !s1.SellerPayout.Equal(decimal.RequireFromString("71.97")) {
		t.Errorf("s1 payout = %s, want 71.97", s1.SellerPayout)
	}
	s2 := dto.SellerGroups[1]
	if !s2.PlatformFee.Equal(decimal.RequireFromString("4.00")) {
		t.Errorf("s2 fee = %s, want 4.00", s2.PlatformFee)
	}
	if !s2.SellerPayout.Equal(decimal.RequireFromString("35.99")) {
		t.Errorf("s2 payout = %s, want 35.99", s2.SellerPayout)
	}

	sum := decimal.Zero
	for _, group := range dto.SellerGroups {
		sum = sum.Add(group.SellerPayout).Add(group.PlatformFee)
	}
	if !sum.Equal(dto.TotalAmount) {
		t.Errorf("payouts plus fees = %s, want total %s", sum, dto.TotalAmount)
	}
}

func TestCreateSessionEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t, &cart.CartDto{CustomerID: "cust-1", Subtotal: decimal.Zero, Items: []cart.CartItemDto{}})

	_, err := f.svc.CreateSession(context.Background(), "cust-1", CreateSessionInput{DeliveryAddress: testAddress(t)})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("want VALIDATION_ERROR, got %v", err)
	}
}

func TestCreateSessionFallsBackToStoredAddress(t *testing.T) {
	customerID := uuid.New()
	cartDto := twoSellerCart()
	cartDto.CustomerID = customerID.String()
	f := newCheckoutFixture(t, cartDto)

	stored := testAddress(t)
	f.users.user = &models.User{ID: customerID, DeliveryAddress: &stored}

	dto, err := f.svc.CreateSession(context.Background(), customerID.String(), CreateSessionInput{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if dto.DeliveryAddress != stored {
		t.Errorf("address = %+v, want stored default %+v", dto.DeliveryAddress, stored)
	}
}

func TestCreateSessionOverrideBeatsStoredAddress(t *testing.T) {
	customerID := uuid.New()
	f := newCheckoutFixture(t, twoSellerCart())

	stored, err := types.NewAddress("Gammel Kongevej 3", "Frederiksberg", "1610", "", "DK")
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	f.users.user = &models.User{ID: customerID, DeliveryAddress: &stored}

	override := testAddress(t)
	dto, err := f.svc.CreateSession(context.Background(), customerID.String(), CreateSessionInput{DeliveryAddress: override})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if dto.DeliveryAddress != override {
		t.Errorf("address = %+v, want override %+v", dto.DeliveryAddress, override)
	}
}

func TestCreateSessionWithoutAnyAddress(t *testing.T) {
	customerID := uuid.New()
	f := newCheckoutFixture(t, twoSellerCart())
	f.users.user = &models.User{ID: customerID}

	_, err := f.svc.CreateSession(context.Background(), customerID.String(), CreateSessionInput{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("want VALIDATION_ERROR, got %v", err)
	}
}

func TestConfirmPaymentMaterializesOrder(t *testing.T) {
	f := newCheckoutFixture(t, twoSellerCart())
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "cust-1", CreateSessionInput{DeliveryAddress: testAddress(t)})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	result, err := f.svc.ConfirmPayment(ctx, "cust-1", session.SessionID, ConfirmPaymentInput{PaymentToken: "tok_visa"})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if result.Status != enums.OrderStatusPaid {
		t.Errorf("status = %s", result.Status)
	}
	if f.repo.created == nil || len(f.repo.created.Items) != 2 {
		t.Fatalf("order not created with items: %+v", f.repo.created)
	}
	if !f.writer.paidAmount.Equal(decimal.RequireFromString("119.96")) {
		t.Errorf("paid amount = %s", f.writer.paidAmount)
	}
	if len(f.allocs.orders) != 1 {
		t.Errorf("allocations not created")
	}
	if len(f.carts.cleared) != 1 {
		t.Errorf("cart not cleared")
	}
	if len(f.sessions.deleted) != 1 {
		t.Errorf("session not deleted after confirmation")
	}
	if len(f.events.events) != 1 || f.events.events[0].EventType != enums.EventOrderCreated {
		t.Errorf("expected a single OrderCreated emission here, got %+v", f.events.events)
	}
}

func TestConfirmPaymentDeclinedKeepsSession(t *testing.T) {
	f := newCheckoutFixture(t, twoSellerCart())
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "cust-1", CreateSessionInput{DeliveryAddress: testAddress(t)})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	_, err = f.svc.ConfirmPayment(ctx, "cust-1", session.SessionID, ConfirmPaymentInput{PaymentToken: "tok_declined"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodePaymentDeclined {
		t.Fatalf("want PAYMENT_DECLINED, got %v", err)
	}
	if _, ok := f.sessions.sessions[session.SessionID]; !ok {
		t.Error("declined payment must keep the session for retry")
	}
	if f.repo.created != nil {
		t.Error("no order may be created on decline")
	}

	// Retry with a working token succeeds against the same session.
	if _, err := f.svc.ConfirmPayment(ctx, "cust-1", session.SessionID, ConfirmPaymentInput{PaymentToken: "tok_visa"}); err != nil {
		t.Fatalf("retry ConfirmPayment: %v", err)
	}
}

func TestConfirmPaymentExpiredSession(t *testing.T) {
	f := newCheckoutFixture(t, twoSellerCart())

	_, err := f.svc.ConfirmPayment(context.Background(), "cust-1", uuid.NewString(), ConfirmPaymentInput{PaymentToken: "tok_visa"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeSessionExpired {
		t.Fatalf("want SESSION_EXPIRED, got %v", err)
	}
}

func TestConfirmPaymentOwnership(t *testing.T) {
	f := newCheckoutFixture(t, twoSellerCart())
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "cust-1", CreateSessionInput{DeliveryAddress: testAddress(t)})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	_, err = f.svc.ConfirmPayment(ctx, "cust-2", session.SessionID, ConfirmPaymentInput{PaymentToken: "tok_visa"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("want FORBIDDEN, got %v", err)
	}
}

func TestSessionPricesAreFrozen(t *testing.T) {
	cartDto := twoSellerCart()
	f := newCheckoutFixture(t, cartDto)
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "cust-1", CreateSessionInput{DeliveryAddress: testAddress(t)})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Catalog price changes after session creation must not move the total.
	cartDto.Items[0].UnitPrice = decimal.RequireFromString("999.99")
	cartDto.Subtotal = decimal.RequireFromString("1039.98")

	result, err := f.svc.ConfirmPayment(ctx, "cust-1", session.SessionID, ConfirmPaymentInput{PaymentToken: "tok_visa"})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if !result.TotalAmount.Equal(decimal.RequireFromString("119.96")) {
		t.Errorf("total = %s, want frozen 119.96", result.TotalAmount)
	}
}
