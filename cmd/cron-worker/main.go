package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mieldesol/modhu-backend/internal/cron"
	"github.com/mieldesol/modhu-backend/internal/inventory"
	"github.com/mieldesol/modhu-backend/internal/orders"
	"github.com/mieldesol/modhu-backend/internal/promotions"
	outboundwebhook "github.com/mieldesol/modhu-backend/internal/webhooks/outbound"
	"github.com/mieldesol/modhu-backend/pkg/config"
	"github.com/mieldesol/modhu-backend/pkg/db"
	"github.com/mieldesol/modhu-backend/pkg/instance"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/metrics"
	"github.com/mieldesol/modhu-backend/pkg/migrate"
	"github.com/mieldesol/modhu-backend/pkg/outbox"
	"github.com/mieldesol/modhu-backend/pkg/redis"
)

const lockKeyFormat = "mh:cron-worker:lock:%s"

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
	if cfg.FeatureFlags.DemoMode || cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = config.DriverSQLite
	}

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

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	stock := inventory.Stock{
		Manager:    inventory.NewManager(),
		Repository: inventory.NewRepository(dbClient.DB()),
	}
	ordersService, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient.DB(), stock, outboxService, nil, nil, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	promotionSweep, err := cron.NewPromotionSweepJob(cron.PromotionSweepJobParams{
		Logger:     logg,
		Promotions: promotions.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create promotion sweep job", err)
		os.Exit(1)
	}

	orderTTL, err := cron.NewOrderTTLJob(cron.OrderTTLJobParams{
		Logger: logg,
		Orders: ordersService,
		TTL:    cfg.Checkout.PendingOrderTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order ttl job", err)
		os.Exit(1)
	}

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		Repository:  outbox.NewRepository(dbClient.DB()),
		Retention:   cfg.Cron.OutboxRetentionDays,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	deliveryRetention, err := cron.NewDeliveryRetentionJob(cron.DeliveryRetentionJobParams{
		Logger:     logg,
		Deliveries: outboundwebhook.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.DeliveryRetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery retention job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(promotionSweep, orderTTL, outboxRetention, deliveryRetention),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
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
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
