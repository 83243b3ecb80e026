package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brightcart/storefront-backend/api/controllers"
	"github.com/brightcart/storefront-backend/api/middleware"
	"github.com/brightcart/storefront-backend/internal/address"
	"github.com/brightcart/storefront-backend/internal/auth"
	"github.com/brightcart/storefront-backend/internal/cart"
	checkoutsvc "github.com/brightcart/storefront-backend/internal/checkout"
	"github.com/brightcart/storefront-backend/internal/orders"
	"github.com/brightcart/storefront-backend/internal/products"
	"github.com/brightcart/storefront-backend/pkg/auth/session"
	"github.com/brightcart/storefront-backend/pkg/config"
	"github.com/brightcart/storefront-backend/pkg/db"
	"github.com/brightcart/storefront-backend/pkg/logger"
	"github.com/brightcart/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	registry *prometheus.Registry,
	authService auth.Service,
	productService products.Service,
	cartService cart.Service,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	addressService address.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	var cache redis.Pinger
	if redisClient != nil {
		cache = redisClient
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cache))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))
		r.Post("/logout", controllers.AuthLogout(authService, cfg.JWT, logg))
	})

	// Catalogue browsing requires no session.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductsList(productService, logg))
		r.Get("/{productId}", controllers.ProductDetail(productService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Post("/", controllers.CartAdd(cartService, logg))
			r.Put("/{itemId}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/{itemId}", controllers.CartRemoveItem(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
		})

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(ordersService, logg))
			r.Post("/", controllers.OrderPlace(checkoutService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersService, logg))
			r.Delete("/{orderId}", controllers.OrderCancel(ordersService, logg))
		})

		r.Route("/v1/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(addressService, logg))
			r.Post("/", controllers.AddressCreate(addressService, logg))
			r.Put("/{addressId}", controllers.AddressUpdate(addressService, logg))
			r.Delete("/{addressId}", controllers.AddressDelete(addressService, logg))
			r.Post("/{addressId}/default", controllers.AddressSetDefault(addressService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole("admin", logg))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrdersList(ordersService, logg))
			r.Put("/{orderId}/status", controllers.AdminOrderUpdateStatus(ordersService, logg))
		})
		r.Route("/v1/products", func(r chi.Router) {
			r.Post("/", controllers.AdminProductCreate(productService, logg))
			r.Put("/{productId}", controllers.AdminProductUpdate(productService, logg))
			r.Delete("/{productId}", controllers.AdminProductDeactivate(productService, logg))
		})
	})

	return r
}
