package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mieldesol/modhu-backend/api/controllers"
	webhookcontrollers "github.com/mieldesol/modhu-backend/api/controllers/webhooks"
	"github.com/mieldesol/modhu-backend/api/middleware"
	"github.com/mieldesol/modhu-backend/internal/auth"
	"github.com/mieldesol/modhu-backend/internal/cart"
	"github.com/mieldesol/modhu-backend/internal/catalog"
	checkoutsvc "github.com/mieldesol/modhu-backend/internal/checkout"
	"github.com/mieldesol/modhu-backend/internal/customers"
	"github.com/mieldesol/modhu-backend/internal/inventory"
	"github.com/mieldesol/modhu-backend/internal/orders"
	"github.com/mieldesol/modhu-backend/internal/promotions"
	"github.com/mieldesol/modhu-backend/internal/shipping"
	outbound "github.com/mieldesol/modhu-backend/internal/webhooks/outbound"
	stripewebhook "github.com/mieldesol/modhu-backend/internal/webhooks/stripe"
	"github.com/mieldesol/modhu-backend/pkg/auth/session"
	"github.com/mieldesol/modhu-backend/pkg/config"
	"github.com/mieldesol/modhu-backend/pkg/db"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/openai"
	"github.com/mieldesol/modhu-backend/pkg/redis"
	pkgstripe "github.com/mieldesol/modhu-backend/pkg/stripe"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// inventoryStore is what the admin stock endpoints need. Both the SQL
// repository and the demo fixture satisfy it.
type inventoryStore interface {
	Adjust(ctx context.Context, input inventory.AdjustInput) (*models.InventoryItem, error)
	ListLowStock(ctx context.Context) ([]inventory.LowStockRow, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionManager sessionManager,
	authService auth.Service,
	registerService auth.RegisterService,
	adminRegisterService auth.AdminRegisterService,
	catalogService catalog.Service,
	catalogStore catalog.Store,
	cartService cart.Service,
	promotionService promotions.Service,
	customersRepo *customers.Repository,
	shippingService shipping.Service,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	inventoryRepo inventoryStore,
	imageClient *openai.Client,
	webhookService outbound.Service,
	stripeClient *pkgstripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
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

	// A nil *openai.Client stored in the interface would dodge the
	// controller's nil check, so the untyped nil goes in explicitly.
	imageHandler := controllers.AdminProductImage(catalogService, nil, logg)
	if imageClient != nil {
		imageHandler = controllers.AdminProductImage(catalogService, imageClient, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
		if cfg.FeatureFlags.DemoMode {
			r.Post("/payment/demo", webhookcontrollers.DemoPaymentWebhook(stripeWebhookService, logg))
		}
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(registerService, authService, logg))
		r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		if !cfg.App.IsProd() {
			r.Post("/register", controllers.AdminAuthRegister(adminRegisterService, logg))
		}
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AdminAuthLogin(authService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", controllers.ProductList(catalogService, logg))
		r.Get("/products/{slug}", controllers.ProductBySlug(catalogService, logg))
		r.Get("/categories", controllers.CategoryList(catalogService, logg))
		r.Get("/orders/{orderNumber}", controllers.OrderLookup(ordersService, logg))

		// Session-scoped storefront surface. A signed-in customer is
		// recognized when a token is present, but none is required.
		r.Group(func(r chi.Router) {
			r.Use(middleware.CartSession(cfg.Cart.TTL, logg))
			r.Use(middleware.MaybeAuth(cfg.JWT, sessionManager, logg))
			r.Use(middleware.Idempotency(redisClient, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(cartService, logg))
				r.Post("/items", controllers.CartAddItem(cartService, logg))
				r.Patch("/items/{productId}", controllers.CartUpdateItem(cartService, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(cartService, logg))
				r.Delete("/", controllers.CartClear(cartService, logg))
				r.Get("/promotion", controllers.CartPromotion(cartService, promotionService, customersRepo, logg))
			})
			r.Post("/shipping/quotes", controllers.ShippingQuotes(shippingService, cartService, catalogStore, logg))
			r.Post("/checkout", controllers.Checkout(checkoutService, customersRepo, logg))
		})

		r.Route("/account", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
			r.Use(middleware.RequireRole("customer", logg))
			r.Get("/ping", controllers.PrivatePing())
			r.Get("/orders", controllers.AccountOrders(ordersService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyOr(cfg.Automation.APIKeys, middleware.Auth(cfg.JWT, sessionManager, logg), logg))
		r.Use(middleware.RequireBackoffice(logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		adminOnly := middleware.RequireRole("admin", logg)

		r.Get("/ping", controllers.AdminPing())

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminProductList(catalogService, logg))
			r.Post("/", controllers.AdminProductCreate(catalogService, logg))
			r.Get("/{productId}", controllers.AdminProductGet(catalogService, logg))
			r.Put("/{productId}", controllers.AdminProductUpdate(catalogService, logg))
			r.With(adminOnly).Delete("/{productId}", controllers.AdminProductDelete(catalogService, logg))
			r.Post("/{productId}/image", imageHandler)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Post("/", controllers.AdminCategoryCreate(catalogService, logg))
			r.Put("/{categoryId}", controllers.AdminCategoryUpdate(catalogService, logg))
			r.With(adminOnly).Delete("/{categoryId}", controllers.AdminCategoryDelete(catalogService, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/low-stock", controllers.InventoryLowStock(inventoryRepo, logg))
			r.Put("/{productId}", controllers.InventoryAdjust(inventoryRepo, logg))
		})

		r.Route("/promotions", func(r chi.Router) {
			r.Get("/", controllers.AdminPromotionList(promotionService, logg))
			r.Post("/", controllers.AdminPromotionCreate(promotionService, logg))
			r.Get("/{promotionId}", controllers.AdminPromotionGet(promotionService, logg))
			r.Put("/{promotionId}", controllers.AdminPromotionUpdate(promotionService, logg))
			r.Post("/{promotionId}/preview", controllers.AdminPromotionPreview(promotionService, logg))
			r.With(adminOnly).Delete("/{promotionId}", controllers.AdminPromotionDelete(promotionService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(ordersService, logg))
			r.Get("/{orderId}", controllers.AdminOrderGet(ordersService, logg))
			r.Post("/{orderId}/fulfil", controllers.AdminOrderFulfil(ordersService, logg))
			r.Post("/{orderId}/cancel", controllers.AdminOrderCancel(ordersService, logg))
			r.Post("/{orderId}/resend-confirmation", controllers.AdminOrderResendConfirmation(ordersService, logg))
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/", controllers.AdminWebhookList(webhookService, logg))
			r.Post("/", controllers.AdminWebhookCreate(webhookService, logg))
			r.Get("/{subscriptionId}", controllers.AdminWebhookGet(webhookService, logg))
			r.Put("/{subscriptionId}", controllers.AdminWebhookUpdate(webhookService, logg))
			r.With(adminOnly).Delete("/{subscriptionId}", controllers.AdminWebhookDelete(webhookService, logg))
			r.Get("/{subscriptionId}/deliveries", controllers.AdminWebhookDeliveries(webhookService, logg))
			r.Post("/deliveries/{deliveryId}/redeliver", controllers.AdminWebhookRedeliver(webhookService, logg))
		})
	})

	return r
}
