package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/api/routes"
	"github.com/mieldesol/modhu-backend/internal/auth"
	"github.com/mieldesol/modhu-backend/internal/cart"
	"github.com/mieldesol/modhu-backend/internal/catalog"
	"github.com/mieldesol/modhu-backend/internal/checkout"
	"github.com/mieldesol/modhu-backend/internal/customers"
	"github.com/mieldesol/modhu-backend/internal/inventory"
	"github.com/mieldesol/modhu-backend/internal/notifications"
	"github.com/mieldesol/modhu-backend/internal/orders"
	"github.com/mieldesol/modhu-backend/internal/promotions"
	"github.com/mieldesol/modhu-backend/internal/shipping"
	outboundwebhook "github.com/mieldesol/modhu-backend/internal/webhooks/outbound"
	stripewebhook "github.com/mieldesol/modhu-backend/internal/webhooks/stripe"
	"github.com/mieldesol/modhu-backend/pkg/auth/session"
	"github.com/mieldesol/modhu-backend/pkg/carriers"
	"github.com/mieldesol/modhu-backend/pkg/config"
	"github.com/mieldesol/modhu-backend/pkg/db"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/env"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/metrics"
	"github.com/mieldesol/modhu-backend/pkg/migrate"
	"github.com/mieldesol/modhu-backend/pkg/openai"
	"github.com/mieldesol/modhu-backend/pkg/outbox"
	"github.com/mieldesol/modhu-backend/pkg/redis"
	"github.com/mieldesol/modhu-backend/pkg/sendgrid"
	pkgstripe "github.com/mieldesol/modhu-backend/pkg/stripe"
)

// stockSource is the full stock surface the api wires once at startup: the
// SQL manager+repository pair in production, the seeded fixture in demo mode.
type stockSource interface {
	ReserveTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	RestockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	CommitTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	FindByProductTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.InventoryItem, error)
	UpsertTx(ctx context.Context, tx *gorm.DB, item *models.InventoryItem) error
	Adjust(ctx context.Context, input inventory.AdjustInput) (*models.InventoryItem, error)
	ListLowStock(ctx context.Context) ([]inventory.LowStockRow, error)
}

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

	cfg.Service.Kind = "api"
	if cfg.FeatureFlags.DemoMode || cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = config.DriverSQLite
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

	customersRepo := customers.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		Accounts:       customersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient.DB(),
		Events:         outboxService,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	adminRegisterService, err := auth.NewAdminRegisterService(auth.AdminRegisterServiceParams{
		DB:             dbClient.DB(),
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create admin register service", err)
		os.Exit(1)
	}

	// Demo mode swaps the catalog, promotion and stock backends for seeded
	// in-memory fixtures. The choice happens here, once; nothing downstream
	// branches on the flag again.
	var (
		catalogStore   catalog.Store
		promotionStore promotions.Store
		stock          stockSource
	)
	if cfg.FeatureFlags.DemoMode {
		fixture := catalog.NewSeededFixtureStore()
		categoryIDs, productIDs := fixture.SlugIndex()
		catalogStore = fixture
		promotionStore = promotions.NewSeededFixtureStore(promotions.SeedRefs{
			CategoryIDsBySlug: categoryIDs,
			ProductIDsBySlug:  productIDs,
		})
		stock = fixture
		logg.Info(context.Background(), "demo mode: serving the seeded in-memory catalog")
	} else {
		catalogStore = catalog.NewRepository(dbClient.DB())
		promotionStore = promotions.NewRepository(dbClient.DB())
		stock = inventory.Stock{
			Manager:    inventory.NewManager(),
			Repository: inventory.NewRepository(dbClient.DB()),
		}
	}

	catalogService, err := catalog.NewService(catalogStore, dbClient, stock)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	cartStore, err := cart.NewStore(redisClient, cfg.Cart.TTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart store", err)
		os.Exit(1)
	}
	cartService, err := cart.NewService(cartStore, catalogStore)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	promotionService, err := promotions.NewService(promotionStore, promotions.NewEngine(cfg.Promotions.LoyaltyMinOrders))
	if err != nil {
		logg.Error(context.Background(), "failed to create promotion service", err)
		os.Exit(1)
	}

	var rateProviders []shipping.RateProvider
	var labelProviders []orders.LabelProvider
	if cfg.Carriers.VelocityBaseURL != "" {
		velocity, err := carriers.NewClient("Velocity Express", cfg.Carriers.VelocityBaseURL, cfg.Carriers.VelocityAPIKey)
		if err != nil {
			logg.Error(context.Background(), "failed to create velocity carrier client", err)
			os.Exit(1)
		}
		rateProviders = append(rateProviders, velocity)
		labelProviders = append(labelProviders, velocity)
	}
	if cfg.Carriers.PosteoBaseURL != "" {
		posteo, err := carriers.NewClient("Posteo National", cfg.Carriers.PosteoBaseURL, cfg.Carriers.PosteoAPIKey)
		if err != nil {
			logg.Error(context.Background(), "failed to create posteo carrier client", err)
			os.Exit(1)
		}
		rateProviders = append(rateProviders, posteo)
		labelProviders = append(labelProviders, posteo)
	}

	shippingService, err := shipping.NewService(rateProviders, shipping.Config{
		QuoteTimeout:          cfg.Shipping.QuoteTimeout,
		FallbackStandardCents: cfg.Shipping.FallbackStandardCents,
		FallbackExpressCents:  cfg.Shipping.FallbackExpressCents,
		FreeShippingMinCents:  cfg.Shipping.FreeShippingMinCents,
	}, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping service", err)
		os.Exit(1)
	}

	dispatchMetrics := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)

	var sender notifications.Sender
	if cfg.FeatureFlags.DemoMode {
		logSender, err := notifications.NewLogSender(logg)
		if err != nil {
			logg.Error(context.Background(), "failed to build log sender", err)
			os.Exit(1)
		}
		sender = logSender
	} else {
		client, err := sendgrid.NewClient(cfg.Sendgrid.APIKey, cfg.Sendgrid.DefaultFrom)
		if err != nil {
			logg.Error(context.Background(), "failed to build sendgrid client", err)
			os.Exit(1)
		}
		sender = client
	}

	mailer, err := notifications.NewMailer(sender, cfg.Store, logg, dispatchMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build mailer", err)
		os.Exit(1)
	}

	var paymentClient checkout.PaymentClient
	var stripeClient *pkgstripe.Client
	if cfg.FeatureFlags.DemoMode {
		paymentClient = checkout.NewDemoPaymentClient(cfg.Checkout.SuccessURL)
	} else {
		stripeClient, err = pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe client", err)
			os.Exit(1)
		}
		paymentClient = checkout.NewStripePaymentClient(stripeClient, cfg.Store, cfg.Checkout)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(ordersRepo, dbClient.DB(), stock, outboxService, labelProviders, mailer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(
		dbClient.DB(),
		cartService,
		catalogStore,
		promotionService,
		shippingService,
		ordersRepo,
		stock,
		outboxService,
		paymentClient,
		cfg.Checkout,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookRepo := outboundwebhook.NewRepository(dbClient.DB())
	dispatcher, err := outboundwebhook.NewDispatcher(webhookRepo, cfg.Webhooks, logg, dispatchMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build webhook dispatcher", err)
		os.Exit(1)
	}
	webhookService, err := outboundwebhook.NewService(webhookRepo, dispatcher, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		DB:         dbClient.DB(),
		Orders:     ordersRepo,
		Stock:      stock,
		Inventory:  stock,
		Promotions: promotionService,
		Customers:  customersRepo,
		Carts:      cartService,
		Events:     outboxService,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment webhook service", err)
		os.Exit(1)
	}

	stripeWebhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Outbox.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment webhook guard", err)
		os.Exit(1)
	}

	var imageClient *openai.Client
	if cfg.OpenAI.APIKey != "" {
		imageClient, err = openai.NewClient(cfg.OpenAI.APIKey)
		if err != nil {
			logg.Error(context.Background(), "failed to create openai client", err)
			os.Exit(1)
		}
	}

	router := routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		sessionManager,
		authService,
		registerService,
		adminRegisterService,
		catalogService,
		catalogStore,
		cartService,
		promotionService,
		customersRepo,
		shippingService,
		checkoutService,
		ordersService,
		stock,
		imageClient,
		webhookService,
		stripeClient,
		stripeWebhookService,
		stripeWebhookGuard,
	)

	addr := ":" + env.Get("PORT", cfg.App.Port)
	id := env.Get("DYNO", "local")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})

	if cfg.Service.MetricsAddr != "" {
		go serveMetrics(ctx, logg, cfg.Service.MetricsAddr)
	}

	logg.Info(ctx, "starting api server")

	server := &http.Server{Addr: addr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

func serveMetrics(ctx context.Context, logg *logger.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	logg.Info(ctx, "metrics listener on "+addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics listener failed", err)
	}
}
