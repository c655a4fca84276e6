package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/wardrobe-backend/api/controllers"
	"github.com/angelmondragon/wardrobe-backend/api/middleware"
	"github.com/angelmondragon/wardrobe-backend/internal/auth"
	"github.com/angelmondragon/wardrobe-backend/internal/cart"
	"github.com/angelmondragon/wardrobe-backend/internal/catalog"
	"github.com/angelmondragon/wardrobe-backend/internal/checkout"
	"github.com/angelmondragon/wardrobe-backend/internal/orders"
	"github.com/angelmondragon/wardrobe-backend/pkg/auth/session"
	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/wardrobe-backend/pkg/redis"
)

// Store is the Redis surface the HTTP layer needs: idempotency replay, auth
// throttling and the readiness ping.
type Store interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// Dependencies carries everything the router mounts.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Store    Store
	Sessions session.AccessSessionChecker
	Auth     auth.Service
	Catalog  catalog.Service
	Cart     cart.Service
	Checkout checkout.Service
	Orders   orders.Service
	// Metrics defaults to the prometheus default gatherer.
	Metrics http.Handler
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.AuthThrottle{
		Name:        "login",
		Window:      cfg.AuthRateLimit.LoginWindow,
		PerIP:       cfg.AuthRateLimit.LoginIPLimit,
		PerIdentity: cfg.AuthRateLimit.LoginIdentifierLimit,
	}
	registerPolicy := middleware.AuthThrottle{
		Name:        "register",
		Window:      cfg.AuthRateLimit.RegisterWindow,
		PerIP:       cfg.AuthRateLimit.RegisterIPLimit,
		PerIdentity: cfg.AuthRateLimit.RegisterIdentifierLimit,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadyCheck{Name: "database", Pinger: deps.DB},
			controllers.ReadyCheck{Name: "redis", Pinger: deps.Store},
		))
	})

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		// Refresh accepts an expired access token, so it sits outside Identity.
		r.Post("/auth/refresh", controllers.AuthRefresh(deps.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Identity(cfg.JWT, deps.Sessions, logg))
			replayAddLine := middleware.Idempotency(deps.Store, middleware.OptionalKey(cfg.Cart.AddLineReplayTTL), logg)
			replayCheckout := middleware.Idempotency(deps.Store, middleware.RequiredKey(cfg.Cart.CheckoutReplayTTL), logg)

			r.Route("/auth", func(r chi.Router) {
				r.With(middleware.AuthRateLimit(loginPolicy, deps.Store, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
				r.With(middleware.AuthRateLimit(registerPolicy, deps.Store, logg)).Post("/register", controllers.AuthRegister(deps.Auth, logg))
				r.With(middleware.RequireUser(logg)).Post("/logout", controllers.AuthLogout(deps.Auth, logg))
			})

			r.Route("/catalog", func(r chi.Router) {
				r.Get("/items/{itemId}", controllers.CatalogItem(deps.Catalog, logg))
				r.Get("/{audience}/products", controllers.CatalogProducts(deps.Catalog, logg))
				r.Get("/{audience}/categories", controllers.CatalogCategories(deps.Catalog, logg))
				r.Get("/{audience}/filters", controllers.CatalogFilters(deps.Catalog, logg))
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(deps.Cart, logg))
				r.With(replayAddLine).Post("/lines", controllers.CartAddLine(deps.Cart, logg))
				r.Patch("/lines/{lineId}", controllers.CartSetLineQuantity(deps.Cart, logg))
				r.Delete("/lines/{lineId}", controllers.CartRemoveLine(deps.Cart, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser(logg))
				r.With(replayCheckout).Post("/checkout", controllers.CheckoutPlaceOrder(deps.Checkout, logg))
				r.Get("/orders", controllers.OrdersList(deps.Orders, logg))
				r.Get("/orders/{orderId}", controllers.OrdersDetail(deps.Orders, logg))
			})
		})
	})

	return r
}
