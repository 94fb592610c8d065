package orders

import (
	"time"

	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
)

// allowedTransitions is the authoritative order state machine. Any transition
// absent from this table is a fatal domain error, never retried.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:   {enums.OrderStatusPaid, enums.OrderStatusCancelled},
	enums.OrderStatusPaid:      {enums.OrderStatusShipped, enums.OrderStatusRefunded, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:   {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered: {enums.OrderStatusCompleted, enums.OrderStatusRefunded},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// CanBeModified reports whether the order still accepts item changes.
func CanBeModified(order models.Order) bool {
	return order.Status == enums.OrderStatusPending
}

// SellerIDs returns the distinct seller ids across items, ordered by first appearance.
func SellerIDs(order models.Order) []string {
	seen := make(map[string]struct{}, len(order.Items))
	out := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		if _, ok := seen[item.SellerID]; ok {
			continue
		}
		seen[item.SellerID] = struct{}{}
		out = append(out, item.SellerID)
	}
	return out
}

// transitionUpdates returns the column updates for a legal transition,
// including the timestamp that must be set iff the transition occurred.
func transitionUpdates(order models.Order, to enums.OrderStatus, now time.Time, reason *string) (map[string]any, error) {
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is in a terminal state")
	}
	if !CanTransition(order.Status, to) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "illegal order transition").
			WithDetails(map[string]any{"from": order.Status, "to": to})
	}

	updates := map[string]any{
		"status":  to,
		"version": order.Version + 1,
	}
	switch to {
	case enums.OrderStatusPaid:
		updates["paid_date"] = now
	case enums.OrderStatusShipped:
		updates["shipped_date"] = now
	case enums.OrderStatusDelivered:
		updates["delivered_date"] = now
	case enums.OrderStatusCompleted:
		updates["completed_date"] = now
	case enums.OrderStatusCancelled:
		updates["cancelled_date"] = now
		if reason != nil {
			updates["cancellation_reason"] = *reason
		}
	case enums.OrderStatusRefunded:
		updates["refunded_date"] = now
		if reason != nil {
			updates["refund_reason"] = *reason
		}
	}
	return updates, nil
}
