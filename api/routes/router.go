package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkrogh/bookmarket-backend/api/controllers"
	"github.com/mkrogh/bookmarket-backend/api/middleware"
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
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
	pkgredis "github.com/mkrogh/bookmarket-backend/pkg/redis"
)

// Auth surfaces get tighter windows than the global per-IP limit.
const (
	loginWindow     = time.Minute
	loginIPLimit    = 10
	loginEmailLimit = 5

	registerWindow     = time.Hour
	registerIPLimit    = 20
	registerEmailLimit = 3
)

// Deps collects everything the HTTP surface needs.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	Redis         *pkgredis.Client
	Sessions      session.AccessSessionChecker
	Pingers       map[string]controllers.Pinger
	Auth          authsvc.Service
	Cart          cart.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Service
	Search        search.Service
	Notifications notifications.Service
	Payments      payments.Service
	Users         users.Repository
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
		middleware.RateLimit(cfg.RateLimit, deps.Redis, logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	loginPolicy := middleware.NewAuthRateLimitPolicy("login", loginWindow, loginIPLimit, loginEmailLimit)
	registerPolicy := middleware.NewAuthRateLimitPolicy("register", registerWindow, registerIPLimit, registerEmailLimit)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.Idempotency(deps.Redis, logg), middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).
			Post("/register", controllers.AuthRegister(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).
			Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(deps.Auth, cfg.JWT, logg))
	})

	// Public catalog reads served from the projection.
	r.Route("/api/v1/books", func(r chi.Router) {
		r.Get("/available", controllers.BooksAvailable(deps.Search, logg))
		r.Get("/search", controllers.BooksSearch(deps.Search, logg))
		r.Get("/autocomplete", controllers.BooksAutocomplete(deps.Search, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, deps.Sessions, logg),
			middleware.Idempotency(deps.Redis, logg),
		)

		r.Post("/api/v1/auth/become-seller", controllers.AuthBecomeSeller(deps.Auth, logg))

		r.Route("/api/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.Cart, logg))
			r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(deps.Cart, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(deps.Cart, logg))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
		})

		r.Route("/api/v1/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutCreate(deps.Checkout, logg))
			r.Get("/{sessionId}", controllers.CheckoutFetch(deps.Checkout, logg))
			r.Post("/{sessionId}/confirm", controllers.CheckoutConfirm(deps.Checkout, logg))
		})

		r.Route("/api/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrdersDetail(deps.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrdersCancel(deps.Orders, logg))
		})

		r.Route("/api/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			r.Get("/preferences", controllers.GetNotificationPreferences(deps.Notifications, logg))
			r.Put("/preferences", controllers.UpdateNotificationPreferences(deps.Notifications, logg))
		})

		r.Route("/api/v1/seller", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.RoleSeller), logg))
			r.Get("/settlements", controllers.SellerSettlements(deps.Payments, deps.Users, logg))
		})

		r.Get("/api/v1/search/analytics", controllers.SearchAnalytics(deps.Search, logg))
	})

	return r
}
