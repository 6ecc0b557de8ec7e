package promotions

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
)

// Repository is the GORM-backed promotion store.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) Store {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new promotion row.
func (r *Repository) Create(ctx context.Context, promotion *models.Promotion) (*models.Promotion, error) {
	if err := r.db.WithContext(ctx).Create(promotion).Error; err != nil {
		return nil, err
	}
	return promotion, nil
}

// Update saves the full promotion row.
func (r *Repository) Update(ctx context.Context, promotion *models.Promotion) (*models.Promotion, error) {
	if err := r.db.WithContext(ctx).Save(promotion).Error; err != nil {
		return nil, err
	}
	return promotion, nil
}

// Delete removes a promotion row. Callers are responsible for checking
// usage history first; rows with audit references get soft-disabled instead.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Promotion{}).Error
}

// FindByID loads one promotion.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Promotion, error) {
	var promotion models.Promotion
	if err := r.db.WithContext(ctx).First(&promotion, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &promotion, nil
}

// FindByCode loads a promotion by its redemption code, case-insensitively.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Promotion, error) {
	var promotion models.Promotion
	err := r.db.WithContext(ctx).
		First(&promotion, "UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		Error
	if err != nil {
		return nil, err
	}
	return &promotion, nil
}

// List returns one cursor page of promotions newest-first.
func (r *Repository) List(ctx context.Context, input ListInput) (*ListResult, error) {
	pageSize := pagination.NormalizeLimit(input.Pagination.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(input.Pagination.Limit)

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).Model(&models.Promotion{})
	if !input.IncludeInactive {
		qb = qb.Where("is_active = ?", true)
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Promotion
	if err := qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&rows).Error; err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	promotions := make([]PromotionDTO, 0, len(rows))
	for i := range rows {
		promotions = append(promotions, *NewPromotionDTO(&rows[i]))
	}
	return &ListResult{Promotions: promotions, NextCursor: nextCursor}, nil
}

// ListActive returns switched-on promotions inside their validity window,
// highest priority first.
func (r *Repository) ListActive(ctx context.Context, now time.Time) ([]*models.Promotion, error) {
	var rows []*models.Promotion
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("starts_at <= ?", now).
		Where("ends_at IS NULL OR ends_at >= ?", now).
		Order("priority DESC").
		Order("created_at DESC").
		Find(&rows).
		Error
	return rows, err
}

// IncrementUsageTx bumps current_uses atomically inside the transaction.
func (r *Repository) IncrementUsageTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "increment promotion usage requires a transaction")
	}
	result := tx.WithContext(ctx).Exec(
		"UPDATE promotions SET current_uses = current_uses + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		id,
	)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "db: increment promotion usage")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
	}
	return nil
}

// CreateUsageTx inserts the usage audit row inside the transaction.
func (r *Repository) CreateUsageTx(ctx context.Context, tx *gorm.DB, usage *models.PromotionUsage) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "create promotion usage requires a transaction")
	}
	return tx.WithContext(ctx).Create(usage).Error
}

// CountUsage reports how many audit rows reference the promotion.
func (r *Repository) CountUsage(ctx context.Context, promotionID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PromotionUsage{}).
		Where("promotion_id = ?", promotionID).
		Count(&count).
		Error
	return count, err
}

// UsageCountsForCustomer returns redemption counts per promotion for one
// customer, used to enforce per-customer caps during evaluation.
func (r *Repository) UsageCountsForCustomer(ctx context.Context, customerID uuid.UUID) (map[uuid.UUID]int, error) {
	var rows []struct {
		PromotionID uuid.UUID
		Uses        int
	}
	err := r.db.WithContext(ctx).
		Model(&models.PromotionUsage{}).
		Select("promotion_id, COUNT(*) AS uses").
		Where("customer_id = ?", customerID).
		Group("promotion_id").
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		counts[row.PromotionID] = row.Uses
	}
	return counts, nil
}

// DeactivateEnded switches off promotions whose end date has passed.
func (r *Repository) DeactivateEnded(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Promotion{}).
		Where("is_active = ?", true).
		Where("ends_at IS NOT NULL AND ends_at < ?", now).
		Update("is_active", false)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
