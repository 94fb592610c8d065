package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/mkrogh/bookmarket-backend/internal/compensation"
	"github.com/mkrogh/bookmarket-backend/internal/notifications"
	"github.com/mkrogh/bookmarket-backend/internal/search"
	"github.com/mkrogh/bookmarket-backend/internal/users"
	"github.com/mkrogh/bookmarket-backend/pkg/config"
	"github.com/mkrogh/bookmarket-backend/pkg/db"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
	"github.com/mkrogh/bookmarket-backend/pkg/migrate"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/idempotency"
	"github.com/mkrogh/bookmarket-backend/pkg/pubsub"
	"github.com/mkrogh/bookmarket-backend/pkg/redis"
)

const indexerPartitions = 16

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	usersService, err := users.NewService(users.NewRepository(dbClient.DB()), logg)
	requireResource(ctx, logg, "users service", err)

	// Search projection: book, warehouse and user events feed the indexer.
	indexer, err := search.NewIndexer(redisClient, logg)
	requireResource(ctx, logg, "search indexer", err)
	searchConsumer, err := search.NewConsumer(
		indexer,
		subscriptions(ctx, logg, map[string]*gcppubsub.Subscriber{
			"book_events":      pubsubClient.BookSubscription(),
			"warehouse_events": pubsubClient.WarehouseSubscription(),
			"user_events":      pubsubClient.UserSubscription(),
		}),
		manager,
		indexerPartitions,
		logg,
	)
	requireResource(ctx, logg, "search consumer", err)

	// Compensation orchestrator: failure events arrive on several topics.
	compensationService, err := compensation.NewService(compensation.NewRepository(dbClient.DB()), dbClient, outboxService)
	requireResource(ctx, logg, "compensation service", err)
	compensationConsumer, err := compensation.NewConsumer(
		compensationService,
		subscriptions(ctx, logg, map[string]*gcppubsub.Subscriber{
			"warehouse_events":    pubsubClient.WarehouseSubscription(),
			"search_events":       pubsubClient.SearchSubscription(),
			"compensation_events": pubsubClient.CompensationSubscription(),
		}),
		manager,
		logg,
	)
	requireResource(ctx, logg, "compensation consumer", err)

	// Cross-service sync: user lifecycle events land in the local store.
	usersConsumer, err := users.NewConsumer(usersService, pubsubClient.UserSubscription(), manager, logg)
	requireResource(ctx, logg, "users consumer", err)

	// Notifications: order lifecycle events become customer email.
	transport, err := notifications.NewLogTransport(logg)
	requireResource(ctx, logg, "notification transport", err)
	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()), dbClient, outboxService, transport, cfg.Notify, logg)
	requireResource(ctx, logg, "notifications service", err)
	notificationsConsumer, err := notifications.NewConsumer(notificationsService, usersService, pubsubClient.OrderSubscription(), manager, logg)
	requireResource(ctx, logg, "notifications consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "worker ready")

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return searchConsumer.Run(groupCtx) })
	group.Go(func() error { return compensationConsumer.Run(groupCtx) })
	group.Go(func() error { return usersConsumer.Run(groupCtx) })
	group.Go(func() error { return notificationsConsumer.Run(groupCtx) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "worker shutting down gracefully")
}

func subscriptions(ctx context.Context, logg *logger.Logger, named map[string]*gcppubsub.Subscriber) []*gcppubsub.Subscriber {
	subs := make([]*gcppubsub.Subscriber, 0, len(named))
	for name, sub := range named {
		if sub == nil {
			requireResource(ctx, logg, name, errors.New("subscription not configured"))
		}
		subs = append(subs, sub)
	}
	return subs
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
