package compensation

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/idempotency"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/payloads"
)

const orchestratorConsumer = "compensation-orchestrator"

// Consumer feeds the orchestrator from every topic that can carry failure or
// completion events. Failure events are spread across domains, so one
// subscriber per topic runs under a shared errgroup.
type Consumer struct {
	service       Service
	subscriptions []*pubsub.Subscriber
	idempotency   *idempotency.Manager
	logg          *logger.Logger
}

// NewConsumer builds the orchestrator consumer over its subscriptions.
func NewConsumer(service Service, subscriptions []*pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if service == nil {
		return nil, fmt.Errorf("compensation service required")
	}
	if len(subscriptions) == 0 {
		return nil, fmt.Errorf("at least one subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		service:       service,
		subscriptions: subscriptions,
		idempotency:   manager,
		logg:          logg,
	}, nil
}

// Run receives on every subscription until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, subscription := range c.subscriptions {
		sub := subscription
		group.Go(func() error {
			return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
				result := c.process(ctx, msg)
				if result.nack {
					msg.Nack()
					return
				}
				msg.Ack()
			})
		})
	}
	return group.Wait()
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
	case enums.EventInventoryReservationFailed,
		enums.EventSellerStatsUpdateFailed,
		enums.EventNotificationFailed,
		enums.EventCompensationCompleted:
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

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orchestratorConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		return processResult{ack: true}
	}

	if err := c.handle(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "compensation handling failed", err)
		_ = c.idempotency.Delete(ctx, orchestratorConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventInventoryReservationFailed:
		var payload payloads.InventoryReservationFailedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse payload: %w", err)
		}
		c.logg.Info(c.logg.WithOrderID(logCtx, payload.OrderID.String()), "recording inventory reservation failure")
		return c.service.RecordFailure(ctx, FailureInput{
			OrderID:      payload.OrderID,
			OrderItemID:  payload.OrderItemID,
			FailureType:  enums.FailureInventoryReservation,
			ErrorMessage: payload.Reason,
			FailedAt:     payload.FailedAt,
		})
	case enums.EventSellerStatsUpdateFailed:
		var payload payloads.SellerStatsUpdateFailedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse payload: %w", err)
		}
		c.logg.Info(c.logg.WithOrderID(logCtx, payload.OrderID.String()), "recording seller stats failure")
		return c.service.RecordFailure(ctx, FailureInput{
			OrderID:      payload.OrderID,
			FailureType:  enums.FailureSellerStatsUpdate,
			ErrorMessage: payload.Reason,
			FailedAt:     payload.FailedAt,
		})
	case enums.EventNotificationFailed:
		var payload payloads.NotificationFailedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse payload: %w", err)
		}
		if payload.OrderID == nil {
			// Not tied to an order; nothing to compensate.
			return nil
		}
		return c.service.RecordFailure(ctx, FailureInput{
			OrderID:      *payload.OrderID,
			FailureType:  enums.FailureNotification,
			ErrorMessage: payload.Reason,
			FailedAt:     payload.FailedAt,
		})
	case enums.EventCompensationCompleted:
		var payload payloads.CompensationCompletedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse payload: %w", err)
		}
		c.logg.Info(c.logg.WithOrderID(logCtx, payload.OrderID.String()), "handling compensation completion")
		return c.service.HandleCompletion(ctx, CompletionInput{
			OrderID:     payload.OrderID,
			OrderItemID: payload.OrderItemID,
			FailureType: payload.FailureType,
			CompletedAt: payload.CompletedAt,
		})
	default:
		return nil
	}
}
