package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/idempotency"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/payloads"
)

const dispatcherConsumer = "notification-dispatcher"

// RecipientResolver turns a customer id into a deliverable email address.
type RecipientResolver interface {
	GetEmail(ctx context.Context, userID string) (string, error)
}

// Consumer turns order lifecycle events into customer notifications.
type Consumer struct {
	service      Service
	recipients   RecipientResolver
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the order-event notification consumer.
func NewConsumer(service Service, recipients RecipientResolver, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if service == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	if recipients == nil {
		return nil, fmt.Errorf("recipient resolver required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		service:      service,
		recipients:   recipients,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run receives order events until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	switch eventType {
	case enums.EventOrderPaid,
		enums.EventOrderShipped,
		enums.EventOrderDelivered,
		enums.EventOrderCancelled,
		enums.EventOrderRefunded:
	default:
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, dispatcherConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		return processResult{ack: true}
	}

	if err := c.handle(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification dispatch failed", err)
		_ = c.idempotency.Delete(ctx, dispatcherConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	input, err := notifyInputFor(eventType, data)
	if err != nil {
		return err
	}
	if input == nil {
		return nil
	}

	email, err := c.recipients.GetEmail(ctx, input.RecipientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Unknown recipient: nothing to deliver, nothing to retry.
			c.logg.Warn(logCtx, "dropping notification for unknown recipient")
			return nil
		}
		return fmt.Errorf("resolve recipient: %w", err)
	}
	input.Email = email

	c.logg.Info(c.logg.WithOrderID(logCtx, input.OrderID.String()), "dispatching order notification")
	if _, err := c.service.Notify(ctx, *input); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// notifyInputFor maps an order event to the notification it produces. The
// email is resolved by the caller.
func notifyInputFor(eventType enums.OutboxEventType, data json.RawMessage) (*NotifyInput, error) {
	switch eventType {
	case enums.EventOrderPaid:
		var payload payloads.OrderPaidEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("parse payload: %w", err)
		}
		return &NotifyInput{
			RecipientID: payload.CustomerID,
			OrderID:     &payload.OrderID,
			Type:        enums.NotificationTypeOrderConfirmation,
			Subject:     "Your order is confirmed",
			Body:        fmt.Sprintf("Payment of %s %s for order %s was captured.", payload.TotalAmount.StringFixed(2), payload.Currency, payload.OrderID),
		}, nil
	case enums.EventOrderShipped:
		var payload payloads.OrderShippedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("parse payload: %w", err)
		}
		return &NotifyInput{
			RecipientID: payload.CustomerID,
			OrderID:     &payload.OrderID,
			Type:        enums.NotificationTypeOrderShipped,
			Subject:     "Your order is on its way",
			Body:        fmt.Sprintf("Order %s was shipped on %s.", payload.OrderID, payload.ShippedAt.Format("2 January 2006")),
		}, nil
	case enums.EventOrderDelivered:
		var payload payloads.OrderDeliveredEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("parse payload: %w", err)
		}
		return &NotifyInput{
			RecipientID: payload.CustomerID,
			OrderID:     &payload.OrderID,
			Type:        enums.NotificationTypeOrderDelivered,
			Subject:     "Your order was delivered",
			Body:        fmt.Sprintf("Order %s was delivered on %s.", payload.OrderID, payload.DeliveredAt.Format("2 January 2006")),
		}, nil
	case enums.EventOrderCancelled:
		var payload payloads.OrderCancelledEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("parse payload: %w", err)
		}
		body := fmt.Sprintf("Order %s was cancelled.", payload.OrderID)
		if payload.Reason != "" {
			body = fmt.Sprintf("Order %s was cancelled: %s.", payload.OrderID, payload.Reason)
		}
		return &NotifyInput{
			RecipientID: payload.CustomerID,
			OrderID:     &payload.OrderID,
			Type:        enums.NotificationTypeOrderCancelled,
			Subject:     "Your order was cancelled",
			Body:        body,
		}, nil
	case enums.EventOrderRefunded:
		var payload payloads.OrderRefundedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("parse payload: %w", err)
		}
		return &NotifyInput{
			RecipientID: payload.CustomerID,
			OrderID:     &payload.OrderID,
			Type:        enums.NotificationTypeOrderRefunded,
			Subject:     "Your refund is underway",
			Body:        fmt.Sprintf("Order %s was refunded.", payload.OrderID),
		}, nil
	default:
		return nil, nil
	}
}
