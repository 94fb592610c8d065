package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/payloads"
	"github.com/mkrogh/bookmarket-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines order lifecycle operations beyond repository reads.
type Service interface {
	GetOrder(ctx context.Context, customerID string, orderID uuid.UUID) (*OrderDetail, error)
	ListOrders(ctx context.Context, customerID string, params pagination.Params, filters ListFilters) (*OrderList, error)
	MarkPaidTx(ctx context.Context, tx *gorm.DB, order *models.Order, amount decimal.Decimal, currency enums.Currency, actor *outbox.ActorRef) error
	MarkShipped(ctx context.Context, input TransitionInput) error
	MarkDelivered(ctx context.Context, input TransitionInput) error
	CompleteOrder(ctx context.Context, input TransitionInput) error
	CancelOrder(ctx context.Context, input ReasonedTransitionInput) error
	RefundOrder(ctx context.Context, input ReasonedTransitionInput) error
	RequestCancellation(ctx context.Context, orderID uuid.UUID, reason string) error
}

// TransitionInput carries the data required to move an order forward.
type TransitionInput struct {
	OrderID uuid.UUID
	Actor   *outbox.ActorRef
}

// ReasonedTransitionInput adds the recorded reason for cancel/refund moves.
type ReasonedTransitionInput struct {
	OrderID uuid.UUID
	Reason  string
	Actor   *outbox.ActorRef
}

type service struct {
	repo         Repository
	tx           txRunner
	outbox       outboxPublisher
	allocations  AllocationReverser
	refundWindow time.Duration
	now          func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxPub outboxPublisher, allocations AllocationReverser, refundWindow time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxPub == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if allocations == nil {
		return nil, fmt.Errorf("allocation reverser required")
	}
	if refundWindow <= 0 {
		return nil, fmt.Errorf("refund window must be positive")
	}
	return &service{
		repo:         repo,
		tx:           tx,
		outbox:       outboxPub,
		allocations:  allocations,
		refundWindow: refundWindow,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) GetOrder(ctx context.Context, customerID string, orderID uuid.UUID) (*OrderDetail, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if customerID != "" && order.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
	}
	return newOrderDetail(*order), nil
}

func (s *service) ListOrders(ctx context.Context, customerID string, params pagination.Params, filters ListFilters) (*OrderList, error) {
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	list, err := s.repo.ListByCustomer(ctx, customerID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// MarkPaidTx moves a pending order to paid inside the caller's transaction.
// The captured amount must equal the order total exactly, same currency.
func (s *service) MarkPaidTx(ctx context.Context, tx *gorm.DB, order *models.Order, amount decimal.Decimal, currency enums.Currency, actor *outbox.ActorRef) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if currency != order.Currency || !amount.Equal(order.TotalAmount) {
		return pkgerrors.New(pkgerrors.CodeValidation, "captured amount does not match order total").
			WithDetails(map[string]any{
				"orderTotal": order.TotalAmount.String(),
				"captured":   amount.String(),
			})
	}
	return s.applyTransition(ctx, tx, order, enums.OrderStatusPaid, nil, actor)
}

func (s *service) MarkShipped(ctx context.Context, input TransitionInput) error {
	return s.transition(ctx, input.OrderID, enums.OrderStatusShipped, nil, input.Actor, nil)
}

func (s *service) MarkDelivered(ctx context.Context, input TransitionInput) error {
	return s.transition(ctx, input.OrderID, enums.OrderStatusDelivered, nil, input.Actor, nil)
}

func (s *service) CompleteOrder(ctx context.Context, input TransitionInput) error {
	return s.transition(ctx, input.OrderID, enums.OrderStatusCompleted, nil, input.Actor, nil)
}

func (s *service) CancelOrder(ctx context.Context, input ReasonedTransitionInput) error {
	reason := input.Reason
	return s.transition(ctx, input.OrderID, enums.OrderStatusCancelled, &reason, input.Actor, nil)
}

func (s *service) RefundOrder(ctx context.Context, input ReasonedTransitionInput) error {
	reason := input.Reason
	guard := func(order *models.Order) error {
		if order.Status != enums.OrderStatusDelivered {
			return nil
		}
		if order.DeliveredDate == nil || s.now().Sub(*order.DeliveredDate) > s.refundWindow {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund window has closed")
		}
		return nil
	}
	return s.transition(ctx, input.OrderID, enums.OrderStatusRefunded, &reason, input.Actor, guard)
}

// RequestCancellation resolves a compensation-driven cancellation. Pending and
// paid orders are cancelled; anything else is left alone so the request stays
// idempotent for orders that already reached a terminal state.
func (s *service) RequestCancellation(ctx context.Context, orderID uuid.UUID, reason string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		switch order.Status {
		case enums.OrderStatusPending, enums.OrderStatusPaid:
			return s.applyTransition(ctx, tx, order, enums.OrderStatusCancelled, &reason, nil)
		default:
			return nil
		}
	})
}

func (s *service) transition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, reason *string, actor *outbox.ActorRef, guard func(order *models.Order) error) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if guard != nil {
			if err := guard(order); err != nil {
				return err
			}
		}
		return s.applyTransition(ctx, tx, order, to, reason, actor)
	})
}

// applyTransition performs the versioned status move, cascades item statuses,
// reverses captured allocations where the move demands it, and emits the
// domain event. Runs inside the caller's transaction.
func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, reason *string, actor *outbox.ActorRef) error {
	now := s.now()
	updates, err := transitionUpdates(*order, to, now, reason)
	if err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	if err := repo.UpdateWithVersion(ctx, order.ID, order.Version, updates); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	if itemStatus, ok := cascadedItemStatus(to); ok {
		for _, item := range order.Items {
			if item.Status == itemStatus {
				continue
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventOrderItemStatusChanged,
				AggregateType: enums.AggregateOrderItem,
				AggregateID:   item.ID,
				Actor:         actor,
				Data: payloads.OrderItemStatusChangedEvent{
					OrderID:     order.ID,
					OrderItemID: item.ID,
					OldStatus:   item.Status,
					NewStatus:   itemStatus,
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
		}
		if err := repo.UpdateItemStatuses(ctx, order.ID, itemStatus); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item statuses")
		}
	}

	if reversesCapture(order.Status, to) {
		if err := s.allocations.ReverseByOrder(ctx, tx, order.ID); err != nil {
			return err
		}
	}

	event, emit := s.orderEvent(*order, to, now, reason, actor)
	if !emit {
		return nil
	}
	return s.outbox.Emit(ctx, tx, event)
}

// cascadedItemStatus maps an order transition to the item status every item
// must land on, if any.
func cascadedItemStatus(to enums.OrderStatus) (enums.OrderItemStatus, bool) {
	switch to {
	case enums.OrderStatusPaid:
		return enums.OrderItemStatusReserved, true
	case enums.OrderStatusShipped:
		return enums.OrderItemStatusShipped, true
	case enums.OrderStatusCancelled:
		return enums.OrderItemStatusCancelled, true
	case enums.OrderStatusRefunded:
		return enums.OrderItemStatusRefunded, true
	default:
		return "", false
	}
}

// reversesCapture reports whether the move releases money already captured.
func reversesCapture(from, to enums.OrderStatus) bool {
	switch to {
	case enums.OrderStatusCancelled:
		return from == enums.OrderStatusPaid
	case enums.OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// orderEvent maps a transition to its domain event. Completion is a silent
// bookkeeping move with no downstream consumers, so nothing is emitted.
func (s *service) orderEvent(order models.Order, to enums.OrderStatus, now time.Time, reason *string, actor *outbox.ActorRef) (outbox.DomainEvent, bool) {
	event := outbox.DomainEvent{
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
	}
	reasonText := ""
	if reason != nil {
		reasonText = *reason
	}
	switch to {
	case enums.OrderStatusPaid:
		event.EventType = enums.EventOrderPaid
		event.Data = payloads.OrderPaidEvent{
			OrderID:     order.ID,
			CustomerID:  order.CustomerID,
			TotalAmount: order.TotalAmount,
			Currency:    order.Currency,
			PaidAt:      now,
		}
	case enums.OrderStatusShipped:
		event.EventType = enums.EventOrderShipped
		event.Data = payloads.OrderShippedEvent{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			ShippedAt:  now,
		}
	case enums.OrderStatusDelivered:
		event.EventType = enums.EventOrderDelivered
		event.Data = payloads.OrderDeliveredEvent{
			OrderID:     order.ID,
			CustomerID:  order.CustomerID,
			DeliveredAt: now,
		}
	case enums.OrderStatusCancelled:
		event.EventType = enums.EventOrderCancelled
		event.Data = payloads.OrderCancelledEvent{
			OrderID:     order.ID,
			CustomerID:  order.CustomerID,
			Reason:      reasonText,
			CancelledAt: now,
		}
	case enums.OrderStatusRefunded:
		event.EventType = enums.EventOrderRefunded
		event.Data = payloads.OrderRefundedEvent{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			Reason:     reasonText,
			RefundedAt: now,
		}
	default:
		return outbox.DomainEvent{}, false
	}
	return event, true
}

func newOrderDetail(order models.Order) *OrderDetail {
	items := make([]OrderItemDto, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDto{
			ID:        item.ID,
			ISBN:      item.ISBN,
			SellerID:  item.SellerID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Currency:  item.Currency,
			Status:    item.Status,
		})
	}
	return &OrderDetail{
		ID:                 order.ID,
		CustomerID:         order.CustomerID,
		OrderDate:          order.OrderDate,
		TotalAmount:        order.TotalAmount,
		Currency:           order.Currency,
		Status:             order.Status,
		DeliveryAddress:    order.DeliveryAddress,
		Items:              items,
		PaidDate:           order.PaidDate,
		ShippedDate:        order.ShippedDate,
		DeliveredDate:      order.DeliveredDate,
		CompletedDate:      order.CompletedDate,
		CancelledDate:      order.CancelledDate,
		RefundedDate:       order.RefundedDate,
		CancellationReason: order.CancellationReason,
		RefundReason:       order.RefundReason,
	}
}
