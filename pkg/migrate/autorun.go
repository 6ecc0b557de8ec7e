package migrate

import (
	"context"
	"fmt"

	"github.com/mieldesol/modhu-backend/pkg/config"
	"github.com/mieldesol/modhu-backend/pkg/db"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/logger"
)

// sqliteModels is the schema the embedded driver needs: the tables demo mode
// persists between requests. Catalog, promotions and stock stay in the
// fixture stores, so they never reach SQLite.
var sqliteModels = []any{
	&models.Customer{},
	&models.AdminUser{},
	&models.Order{},
	&models.OrderLineItem{},
	&models.WebhookSubscription{},
	&models.WebhookDelivery{},
	&models.OutboxEvent{},
	&models.OutboxDLQ{},
}

// MaybeRunDev brings the schema up automatically when the auto-migrate flag
// is set. Postgres goes through Goose and only in dev; SQLite has no
// versioned migrations, so it builds its schema from the models on every
// start.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	if cfg.DB.Driver == config.DriverSQLite {
		ctx = logg.WithFields(ctx, map[string]any{"driver": cfg.DB.Driver})
		logg.Info(ctx, "building SQLite schema from models")
		if err := client.DB().WithContext(ctx).AutoMigrate(sqliteModels...); err != nil {
			return fmt.Errorf("automigrating sqlite schema: %w", err)
		}
		return nil
	}

	if !cfg.App.IsDev() {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "dir": DefaultDir}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running Goose migrations (dev auto-run)")

	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}
