package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mieldesol/modhu-backend/internal/consumers/email"
	"github.com/mieldesol/modhu-backend/internal/notifications"
	"github.com/mieldesol/modhu-backend/internal/orders"
	outboundwebhook "github.com/mieldesol/modhu-backend/internal/webhooks/outbound"
	"github.com/mieldesol/modhu-backend/pkg/config"
	"github.com/mieldesol/modhu-backend/pkg/db"
	"github.com/mieldesol/modhu-backend/pkg/instance"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/metrics"
	"github.com/mieldesol/modhu-backend/pkg/migrate"
	"github.com/mieldesol/modhu-backend/pkg/outbox"
	"github.com/mieldesol/modhu-backend/pkg/outbox/idempotency"
	"github.com/mieldesol/modhu-backend/pkg/outbox/registry"
	"github.com/mieldesol/modhu-backend/pkg/redis"
	"github.com/mieldesol/modhu-backend/pkg/sendgrid"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"
	if cfg.FeatureFlags.DemoMode || cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = config.DriverSQLite
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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
			logg.Error(context.Background(), "error closing redis client", err)
		}
	}()

	dispatchMetrics := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)

	webhookRepo := outboundwebhook.NewRepository(dbClient.DB())
	dispatcher, err := outboundwebhook.NewDispatcher(webhookRepo, cfg.Webhooks, logg, dispatchMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build webhook dispatcher", err)
		os.Exit(1)
	}

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

	manager, err := idempotency.NewManager(redisClient, cfg.Outbox.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to build idempotency manager", err)
		os.Exit(1)
	}

	emailConsumer, err := email.NewConsumer(mailer, orders.NewRepository(dbClient.DB()), manager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build email consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   registry.NewEventRegistry(),
		Webhooks:   dispatcher,
		Emails:     emailConsumer,
		Metrics:    dispatchMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	if cfg.Service.MetricsAddr != "" {
		go serveMetrics(ctx, logg, cfg.Service.MetricsAddr)
	}

	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
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
