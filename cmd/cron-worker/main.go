package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mkrogh/bookmarket-backend/internal/cron"
	"github.com/mkrogh/bookmarket-backend/internal/notifications"
	"github.com/mkrogh/bookmarket-backend/internal/payments"
	"github.com/mkrogh/bookmarket-backend/internal/search"
	"github.com/mkrogh/bookmarket-backend/internal/users"
	"github.com/mkrogh/bookmarket-backend/pkg/config"
	"github.com/mkrogh/bookmarket-backend/pkg/db"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
	"github.com/mkrogh/bookmarket-backend/pkg/metrics"
	"github.com/mkrogh/bookmarket-backend/pkg/migrate"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox"
	"github.com/mkrogh/bookmarket-backend/pkg/redis"
)

const lockKeyFormat = "bm:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	if err := registerJobs(registry, cfg, logg, dbClient, redisClient); err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func registerJobs(registry *cron.Registry, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) error {
	sweeper, err := cron.NewSessionSweeperJob(cron.SessionSweeperJobParams{
		Logger: logg,
		Store:  redisClient,
	})
	if err != nil {
		return fmt.Errorf("session sweeper: %w", err)
	}
	registry.Register(sweeper)

	paymentsService, err := payments.NewService(payments.NewRepository(dbClient.DB()), dbClient, cfg.Checkout.PlatformFeePct, cfg.Settlement.PeriodDays)
	if err != nil {
		return fmt.Errorf("payments service: %w", err)
	}
	settlement, err := cron.NewSettlementJob(cron.SettlementJobParams{
		Logger:   logg,
		Payments: paymentsService,
	})
	if err != nil {
		return fmt.Errorf("settlement job: %w", err)
	}
	registry.Register(settlement)

	usersService, err := users.NewService(users.NewRepository(dbClient.DB()), logg)
	if err != nil {
		return fmt.Errorf("users service: %w", err)
	}
	indexer, err := search.NewIndexer(redisClient, logg)
	if err != nil {
		return fmt.Errorf("search indexer: %w", err)
	}
	backfill, err := search.NewBackfill(indexer, usersService, cfg.Search.BackfillWorkers, logg)
	if err != nil {
		return fmt.Errorf("seller backfill: %w", err)
	}
	backfillJob, err := cron.NewSellerBackfillJob(cron.SellerBackfillJobParams{
		Logger:   logg,
		Backfill: backfill,
	})
	if err != nil {
		return fmt.Errorf("seller backfill job: %w", err)
	}
	registry.Register(backfillJob)

	outboxRepo := outbox.NewRepository(dbClient.DB())
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		Repository:    outboxRepo,
		RetentionDays: cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return fmt.Errorf("outbox retention job: %w", err)
	}
	registry.Register(retention)

	outboxService := outbox.NewService(outboxRepo, logg)
	transport, err := notifications.NewLogTransport(logg)
	if err != nil {
		return fmt.Errorf("notification transport: %w", err)
	}
	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()), dbClient, outboxService, transport, cfg.Notify, logg)
	if err != nil {
		return fmt.Errorf("notifications service: %w", err)
	}
	retry, err := cron.NewNotificationRetryJob(cron.NotificationRetryJobParams{
		Logger:        logg,
		Notifications: notificationsService,
		BatchSize:     cfg.Outbox.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("notification retry job: %w", err)
	}
	registry.Register(retry)

	return nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
