package checkout

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/payloads"
	"github.com/mkrogh/bookmarket-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type cartManager interface {
	GetCart(ctx context.Context, customerID string) (*cart.CartDto, error)
	ClearCartTx(ctx context.Context, tx *gorm.DB, customerID string) error
}

type orderWriter interface {
	MarkPaidTx(ctx context.Context, tx *gorm.DB, order *models.Order, amount decimal.Decimal, currency enums.Currency, actor *outbox.ActorRef) error
}

type allocationWriter interface {
	Split(gross decimal.Decimal) payments.FeeSplit
	CreateAllocationsTx(ctx context.Context, tx *gorm.DB, order *models.Order) ([]models.PaymentAllocation, error)
}

type addressSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type sessionStore interface {
	TTL() time.Duration
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// Service drives the two-step checkout: freeze the cart into a session, then
// confirm payment and materialize the order.
type Service interface {
	CreateSession(ctx context.Context, customerID string, input CreateSessionInput) (*SessionDto, error)
	GetSession(ctx context.Context, customerID, sessionID string) (*SessionDto, error)
	ConfirmPayment(ctx context.Context, customerID, sessionID string, input ConfirmPaymentInput) (*ConfirmResult, error)
}

// CreateSessionInput captures the checkout inputs beyond the cart itself.
type CreateSessionInput struct {
	DeliveryAddress types.Address
}

// ConfirmPaymentInput carries the opaque payment token for capture.
type ConfirmPaymentInput struct {
	PaymentToken string
}

// ConfirmResult reports the materialized order after a successful capture.
type ConfirmResult struct {
	OrderID       uuid.UUID         `json:"orderId"`
	Status        enums.OrderStatus `json:"status"`
	TotalAmount   decimal.Decimal   `json:"totalAmount"`
	Currency      enums.Currency    `json:"currency"`
	TransactionID string            `json:"transactionId"`
}

type service struct {
	carts     cartManager
	sessions  sessionStore
	orderRepo orders.Repository
	orders    orderWriter
	payments  allocationWriter
	gateway   payments.Gateway
	tx        txRunner
	outbox    outboxPublisher
	users     addressSource
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a checkout service with the required stack.
func NewService(carts cartManager, sessions sessionStore, orderRepo orders.Repository, orderSvc orderWriter, allocations allocationWriter, gateway payments.Gateway, tx txRunner, outboxPub outboxPublisher, users addressSource, logg *logger.Logger) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart manager required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if allocations == nil {
		return nil, fmt.Errorf("allocation writer required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxPub == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if users == nil {
		return nil, fmt.Errorf("address source required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		carts:     carts,
		sessions:  sessions,
		orderRepo: orderRepo,
		orders:    orderSvc,
		payments:  allocations,
		gateway:   gateway,
		tx:        tx,
		outbox:    outboxPub,
		users:     users,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateSession freezes the current cart into a Redis-backed session. Prices
// and seller groupings stop following the catalog from this point on.
func (s *service) CreateSession(ctx context.Context, customerID string, input CreateSessionInput) (*SessionDto, error) {
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	address := input.DeliveryAddress
	if address.IsZero() {
		fallback, err := s.defaultAddress(ctx, customerID)
		if err != nil {
			return nil, err
		}
		address = fallback
	}

	cartDto, err := s.carts.GetCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(cartDto.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	now := s.now()
	session := &Session{
		SessionID:       uuid.NewString(),
		CustomerID:      customerID,
		Items:           make([]SessionItem, 0, len(cartDto.Items)),
		SellerGroups:    []SellerGroup{},
		TotalAmount:     cartDto.Subtotal,
		Currency:        cartDto.Currency,
		DeliveryAddress: address,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.sessions.TTL()),
	}

	groupIndex := map[string]int{}
	for _, item := range cartDto.Items {
		session.Items = append(session.Items, SessionItem{
			ISBN:      item.ISBN,
			SellerID:  item.SellerID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Currency:  item.Currency,
		})
		idx, ok := groupIndex[item.SellerID]
		if !ok {
			idx = len(session.SellerGroups)
			groupIndex[item.SellerID] = idx
			session.SellerGroups = append(session.SellerGroups, SellerGroup{
				SellerID:     item.SellerID,
				Subtotal:     decimal.Zero,
				PlatformFee:  decimal.Zero,
				SellerPayout: decimal.Zero,
			})
		}
		split := s.payments.Split(item.LineTotal)
		group := &session.SellerGroups[idx]
		group.Subtotal = group.Subtotal.Add(item.LineTotal)
		group.PlatformFee = group.PlatformFee.Add(split.Fee)
		group.SellerPayout = group.SellerPayout.Add(split.Net)
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout session")
	}
	return newSessionDto(session), nil
}

// defaultAddress loads the customer's stored delivery address when the
// request carries no override.
func (s *service) defaultAddress(ctx context.Context, customerID string) (types.Address, error) {
	userID, err := uuid.Parse(customerID)
	if err != nil {
		return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return types.Address{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer address")
	}
	if user.DeliveryAddress == nil || user.DeliveryAddress.IsZero() {
		return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	return *user.DeliveryAddress, nil
}

func (s *service) GetSession(ctx context.Context, customerID, sessionID string) (*SessionDto, error) {
	session, err := s.loadOwnedSession(ctx, customerID, sessionID)
	if err != nil {
		return nil, err
	}
	return newSessionDto(session), nil
}

// ConfirmPayment captures the session total and materializes the order. A
// declined capture keeps the session alive so the customer can retry with a
// different payment method until the TTL runs out.
func (s *service) ConfirmPayment(ctx context.Context, customerID, sessionID string, input ConfirmPaymentInput) (*ConfirmResult, error) {
	session, err := s.loadOwnedSession(ctx, customerID, sessionID)
	if err != nil {
		return nil, err
	}

	charge, err := s.gateway.Charge(ctx, payments.ChargeInput{
		Reference:    session.SessionID,
		CustomerID:   customerID,
		Amount:       session.TotalAmount,
		Currency:     session.Currency,
		PaymentToken: input.PaymentToken,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "charge payment")
	}
	if !charge.Captured {
		return nil, pkgerrors.New(pkgerrors.CodePaymentDeclined, "payment was declined").
			WithDetails(map[string]any{"reason": charge.DeclineReason})
	}

	now := s.now()
	order := buildOrder(session, now)
	actor := &outbox.ActorRef{UserID: customerID}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.orderRepo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := s.outbox.Emit(ctx, tx, createdEvent(order, actor)); err != nil {
			return err
		}
		if err := s.orders.MarkPaidTx(ctx, tx, order, session.TotalAmount, session.Currency, actor); err != nil {
			return err
		}
		if _, err := s.payments.CreateAllocationsTx(ctx, tx, order); err != nil {
			return err
		}
		return s.carts.ClearCartTx(ctx, tx, customerID)
	})
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Delete(ctx, session.SessionID); err != nil {
		s.logg.Error(ctx, "failed to delete checkout session", err)
	}

	return &ConfirmResult{
		OrderID:       order.ID,
		Status:        enums.OrderStatusPaid,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		TransactionID: charge.TransactionID,
	}, nil
}

func (s *service) loadOwnedSession(ctx context.Context, customerID, sessionID string) (*Session, error) {
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeSessionExpired, "checkout session expired")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	if session.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "session does not belong to customer")
	}
	return session, nil
}

func buildOrder(session *Session, now time.Time) *models.Order {
	orderID := uuid.New()
	order := &models.Order{
		ID:              orderID,
		CustomerID:      session.CustomerID,
		OrderDate:       now,
		TotalAmount:     session.TotalAmount,
		Currency:        session.Currency,
		Status:          enums.OrderStatusPending,
		DeliveryAddress: session.DeliveryAddress,
		Version:         1,
	}
	for _, item := range session.Items {
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   orderID,
			ISBN:      item.ISBN,
			SellerID:  item.SellerID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Currency:  item.Currency,
			Status:    enums.OrderItemStatusPending,
		})
	}
	return order
}

func createdEvent(order *models.Order, actor *outbox.ActorRef) outbox.DomainEvent {
	items := make([]payloads.OrderItemRef, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payloads.OrderItemRef{
			OrderItemID: item.ID,
			ISBN:        item.ISBN,
			SellerID:    item.SellerID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderCreatedEvent{
			OrderID:     order.ID,
			CustomerID:  order.CustomerID,
			TotalAmount: order.TotalAmount,
			Currency:    order.Currency,
			Items:       items,
			OrderDate:   order.OrderDate,
		},
	}
}
