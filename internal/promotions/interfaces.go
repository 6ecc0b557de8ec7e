package promotions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
)

// Store abstracts promotion persistence so the GORM repository and the demo
// fixture store are interchangeable at wiring time.
type Store interface {
	WithTx(tx *gorm.DB) Store

	Create(ctx context.Context, promotion *models.Promotion) (*models.Promotion, error)
	Update(ctx context.Context, promotion *models.Promotion) (*models.Promotion, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Promotion, error)
	FindByCode(ctx context.Context, code string) (*models.Promotion, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	// ListActive returns promotions that are switched on and inside their
	// validity window at the given instant. Day-of-week and usage gates
	// stay with the engine.
	ListActive(ctx context.Context, now time.Time) ([]*models.Promotion, error)

	// IncrementUsageTx atomically bumps current_uses inside the caller's
	// transaction so concurrent redemptions of a capped promotion cannot
	// lose updates.
	IncrementUsageTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	CreateUsageTx(ctx context.Context, tx *gorm.DB, usage *models.PromotionUsage) error
	CountUsage(ctx context.Context, promotionID uuid.UUID) (int64, error)
	UsageCountsForCustomer(ctx context.Context, customerID uuid.UUID) (map[uuid.UUID]int, error)

	// DeactivateEnded flips is_active off for promotions whose window has
	// closed. Used by the cron sweep; returns how many rows changed.
	DeactivateEnded(ctx context.Context, now time.Time) (int64, error)
}
