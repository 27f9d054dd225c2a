package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adityamehra/shopkart-backend/api/controllers"
	webhookcontrollers "github.com/adityamehra/shopkart-backend/api/controllers/webhooks"
	"github.com/adityamehra/shopkart-backend/api/middleware"
	cartsvc "github.com/adityamehra/shopkart-backend/internal/cart"
	couponsvc "github.com/adityamehra/shopkart-backend/internal/coupons"
	ordersvc "github.com/adityamehra/shopkart-backend/internal/orders"
	paymentsvc "github.com/adityamehra/shopkart-backend/internal/payments"
	productsvc "github.com/adityamehra/shopkart-backend/internal/products"
	usersvc "github.com/adityamehra/shopkart-backend/internal/users"
	"github.com/adityamehra/shopkart-backend/pkg/auth/session"
	"github.com/adityamehra/shopkart-backend/pkg/cashfree"
	"github.com/adityamehra/shopkart-backend/pkg/config"
	"github.com/adityamehra/shopkart-backend/pkg/db"
	"github.com/adityamehra/shopkart-backend/pkg/enums"
	"github.com/adityamehra/shopkart-backend/pkg/logger"
	"github.com/adityamehra/shopkart-backend/pkg/metrics"
	"github.com/adityamehra/shopkart-backend/pkg/redis"
)

// Dependencies bundles everything the HTTP surface needs. The router only
// sees service interfaces, so tests can swap in stubs without a database.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Sessions session.AccessSessionChecker
	Metrics  *metrics.HTTPMetrics
	Registry prometheus.Gatherer

	Users    usersvc.Service
	Products productsvc.Service
	Cart     cartsvc.Service
	Coupons  couponsvc.Service
	Orders   ordersvc.Service
	Payments paymentsvc.Service
	Cashfree *cashfree.Client
}

// NewRouter wires the public, authenticated and admin route groups.
func NewRouter(deps Dependencies) chi.Router {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.CORS())

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

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).
				Post("/register", controllers.Register(deps.Users, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).
				Post("/login", controllers.Login(deps.Users, logg))
			r.Post("/refresh", controllers.Refresh(deps.Users, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
				r.Post("/logout", controllers.Logout(deps.Users, logg))
			})
		})

		r.Get("/products", controllers.ListProducts(deps.Products, logg))
		r.Get("/products/{productID}", controllers.GetProduct(deps.Products, logg))

		r.Post("/payments/webhook", webhookcontrollers.Cashfree(deps.Payments, deps.Cashfree, deps.Redis, logg))

		// Everything below requires a live session.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
			r.Use(middleware.Idempotency(deps.Redis, logg))

			r.Get("/profile", controllers.GetProfile(deps.Users, logg))
			r.Put("/profile", controllers.UpdateProfile(deps.Users, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.GetCart(deps.Cart, logg))
				r.Delete("/", controllers.ClearCart(deps.Cart, logg))
				r.Post("/items", controllers.AddCartItem(deps.Cart, logg))
				r.Put("/items/{itemID}", controllers.UpdateCartItem(deps.Cart, logg))
				r.Delete("/items/{itemID}", controllers.RemoveCartItem(deps.Cart, logg))
			})

			r.Post("/coupons/validate", controllers.ValidateCoupon(deps.Coupons, logg))
			r.Post("/checkout", controllers.Checkout(deps.Orders, deps.Payments, logg))

			r.Route("/payments", func(r chi.Router) {
				r.Post("/session", controllers.CreatePaymentSession(deps.Payments, logg))
				r.Get("/verify/{orderNumber}", controllers.VerifyPayment(deps.Payments, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListMyOrders(deps.Orders, logg))
				r.Get("/{orderID}", controllers.GetOrder(deps.Orders, logg))
				r.Post("/{orderID}/cancel", controllers.CancelOrder(deps.Orders, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

				r.Route("/products", func(r chi.Router) {
					r.Get("/", controllers.ListProducts(deps.Products, logg))
					r.Post("/", controllers.CreateProduct(deps.Products, logg))
					r.Put("/{productID}", controllers.UpdateProduct(deps.Products, logg))
					r.Delete("/{productID}", controllers.DeleteProduct(deps.Products, logg))
					r.Put("/{productID}/stock", controllers.SetProductStock(deps.Products, logg))
				})

				r.Route("/coupons", func(r chi.Router) {
					r.Get("/", controllers.ListCoupons(deps.Coupons, logg))
					r.Post("/", controllers.CreateCoupon(deps.Coupons, logg))
					r.Get("/{couponID}", controllers.GetCoupon(deps.Coupons, logg))
					r.Put("/{couponID}", controllers.UpdateCoupon(deps.Coupons, logg))
					r.Delete("/{couponID}", controllers.DeleteCoupon(deps.Coupons, logg))
				})

				r.Route("/orders", func(r chi.Router) {
					r.Get("/", controllers.AdminListOrders(deps.Orders, logg))
					r.Patch("/{orderID}/approve", controllers.ApproveOrder(deps.Orders, logg))
					r.Patch("/{orderID}/reject", controllers.RejectOrder(deps.Orders, logg))
					r.Patch("/{orderID}/status", controllers.UpdateOrderStatus(deps.Orders, logg))
					r.Patch("/{orderID}/shipping", controllers.SetOrderShipping(deps.Orders, logg))
					r.Patch("/{orderID}/delivered", controllers.MarkOrderDelivered(deps.Orders, logg))
					r.Post("/{orderID}/refund", controllers.RefundOrder(deps.Payments, logg))
				})
			})
		})
	})

	return r
}
