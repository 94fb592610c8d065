package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mkrogh/bookmarket-backend/api/controllers"
	"github.com/mkrogh/bookmarket-backend/api/routes"
	authsvc "github.com/mkrogh/bookmarket-backend/internal/auth"
	"github.com/mkrogh/bookmarket-backend/internal/cart"
	checkoutsvc "github.com/mkrogh/bookmarket-backend/internal/checkout"
	"github.com/mkrogh/bookmarket-backend/internal/notifications"
	"github.com/mkrogh/bookmarket-backend/internal/orders"
	"github.com/mkrogh/bookmarket-backend/internal/payments"
	"github.com/mkrogh/bookmarket-backend/internal/search"
	"github.com/mkrogh/bookmarket-backend/internal/users"
	"github.com/mkrogh/bookmarket-backend/pkg/auth/session"
	"github.com/mkrogh/bookmarket-backend/pkg/config"
	"github.com/mkrogh/bookmarket-backend/pkg/db"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
	"github.com/mkrogh/bookmarket-backend/pkg/metrics"
	"github.com/mkrogh/bookmarket-backend/pkg/migrate"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox"
	"github.com/mkrogh/bookmarket-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	usersRepo := users.NewRepository(dbClient.DB())

	authService, err := authsvc.NewService(authsvc.ServiceParams{
		DB:          dbClient,
		Users:       usersRepo,
		Session:     sessionManager,
		Outbox:      outboxService,
		JWTConfig:   cfg.JWT,
		PasswordCfg: cfg.Password,
		LockoutCfg:  cfg.Lockout,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	catalog, err := search.NewCatalog(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create offer catalog", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cart.NewRepository(dbClient.DB()), dbClient, catalog)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	paymentsService, err := payments.NewService(payments.NewRepository(dbClient.DB()), dbClient, cfg.Checkout.PlatformFeePct, cfg.Settlement.PeriodDays)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxService, paymentsService, cfg.Checkout.RefundWindow())
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	sessionStore, err := checkoutsvc.NewSessionStore(redisClient, cfg.Checkout.SessionTTL())
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout session store", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(cartService, sessionStore, ordersRepo, ordersService, paymentsService, payments.NewMockGateway(), dbClient, outboxService, usersRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	cacheMetrics := metrics.NewSearchCacheMetrics(prometheus.DefaultRegisterer)
	searchService, err := search.NewQueryService(redisClient, cfg.Search, cacheMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create search service", err)
		os.Exit(1)
	}

	transport, err := notifications.NewLogTransport(logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification transport", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()), dbClient, outboxService, transport, cfg.Notify, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:   cfg,
			Logger:   logg,
			Redis:    redisClient,
			Sessions: sessionManager,
			Pingers: map[string]controllers.Pinger{
				"postgres": dbClient,
				"redis":    redisClient,
			},
			Auth:          authService,
			Cart:          cartService,
			Checkout:      checkoutService,
			Orders:        ordersService,
			Search:        searchService,
			Notifications: notificationsService,
			Payments:      paymentsService,
			Users:         usersRepo,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
