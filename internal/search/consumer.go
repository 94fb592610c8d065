package search

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/idempotency"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/payloads"
)

const indexerConsumer = "search-indexer"

// Consumer feeds the search projection from the book, warehouse and user
// topics. Index writes are diff-based, so handlers for the same ISBN must not
// interleave: messages are hash-partitioned by ISBN onto a fixed set of
// locks, making the indexer a single writer per ISBN within this process.
type Consumer struct {
	indexer       *Indexer
	subscriptions []*pubsub.Subscriber
	idempotency   *idempotency.Manager
	logg          *logger.Logger
	partitions    []sync.Mutex
}

// NewConsumer builds the search indexing consumer.
func NewConsumer(indexer *Indexer, subscriptions []*pubsub.Subscriber, manager *idempotency.Manager, partitions int, logg *logger.Logger) (*Consumer, error) {
	if indexer == nil {
		return nil, fmt.Errorf("indexer required")
	}
	if len(subscriptions) == 0 {
		return nil, fmt.Errorf("at least one subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if partitions < 1 {
		return nil, fmt.Errorf("at least one partition required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		indexer:       indexer,
		subscriptions: subscriptions,
		idempotency:   manager,
		logg:          logg,
		partitions:    make([]sync.Mutex, partitions),
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
	case enums.EventBookCreated,
		enums.EventBookUpdated,
		enums.EventBookDeleted,
		enums.EventBookStockUpdated,
		enums.EventUserUpdated,
		enums.EventSellerCreated:
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

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, indexerConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		return processResult{ack: true}
	}

	if err := c.handle(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "index update failed", err)
		_ = c.idempotency.Delete(ctx, indexerConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventBookCreated, enums.EventBookUpdated:
		var payload payloads.BookUpsertEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse payload: %w", err)
		}
		c.logg.Info(c.logg.WithISBN(logCtx, payload.ISBN), "indexing book")
		return c.serialized(payload.ISBN, func() error {
			return c.indexer.UpsertBook(ctx, payload)
		})
	case enums.EventBookDeleted:
		var payload payloads.BookDeletedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse payload: %w", err)
		}
		c.logg.Info(c.logg.WithISBN(logCtx, payload.ISBN), "removing book from index")
		return c.serialized(payload.ISBN, func() error {
			return c.indexer.DeleteBook(ctx, payload.ISBN)
		})
	case enums.EventBookStockUpdated:
		var payload payloads.BookStockUpdatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse payload: %w", err)
		}
		c.logg.Info(c.logg.WithISBN(logCtx, payload.ISBN), "merging stock update")
		return c.serialized(payload.ISBN, func() error {
			return c.indexer.MergeStock(ctx, payload)
		})
	case enums.EventUserUpdated:
		var payload payloads.UserUpdatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse payload: %w", err)
		}
		if payload.DisplayName == "" {
			return nil
		}
		return c.serialized(payload.UserID, func() error {
			return c.indexer.SetSellerName(ctx, payload.UserID, payload.DisplayName)
		})
	case enums.EventSellerCreated:
		var payload payloads.SellerCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse payload: %w", err)
		}
		return c.serialized(payload.SellerID, func() error {
			return c.indexer.SetSellerName(ctx, payload.SellerID, payload.DisplayName)
		})
	default:
		return nil
	}
}

// serialized runs fn while holding the partition lock for the entity key.
func (c *Consumer) serialized(key string, fn func() error) error {
	idx := c.partition(key)
	c.partitions[idx].Lock()
	defer c.partitions[idx].Unlock()
	return fn()
}

func (c *Consumer) partition(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(c.partitions)))
}
